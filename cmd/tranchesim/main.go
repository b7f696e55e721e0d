package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"

	"tranchepool/config"
	"tranchepool/core/events"
	"tranchepool/native/epoch"
	"tranchepool/native/firstloss"
	"tranchepool/observability/logging"
	"tranchepool/observability/metrics"
	"tranchepool/storage/pooldb"
)

// poolState is the combined persistence surface the runner wires into the
// engines. Both the BoltDB store and the in-memory state satisfy it.
type poolState interface {
	GetPoolState() (*epoch.PoolState, error)
	PutPoolState(*epoch.PoolState) error
	GetCoverState(string) (*firstloss.State, error)
	PutCoverState(string, *firstloss.State) error
}

func main() {
	configFile := pflag.String("config", "./config.toml", "Path to the pool configuration file")
	scenarioFile := pflag.String("scenario", "", "Path to the scenario file to execute")
	persist := pflag.Bool("persist", false, "Keep pool state in the configured data directory between runs")
	logFormat := pflag.String("log-format", "", "Log output format: json or console (overrides config)")
	pflag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fatalf("loading config: %v", err)
	}

	format := logging.Format(strings.TrimSpace(*logFormat))
	if format == "" {
		format = logging.Format(cfg.Log.Format)
	}
	logger := logging.Setup("tranchesim", cfg.Log.Env, format)

	if *scenarioFile == "" {
		fatalf("no scenario given; pass --scenario")
	}
	scenario, err := LoadScenario(*scenarioFile)
	if err != nil {
		fatalf("loading scenario: %v", err)
	}

	var state poolState
	if *persist {
		if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
			fatalf("creating data dir: %v", err)
		}
		store, err := pooldb.NewStore(filepath.Join(cfg.Storage.DataDir, "pool.db"), nil)
		if err != nil {
			fatalf("opening pool db: %v", err)
		}
		defer store.Close()
		state = store
	} else {
		state = epoch.NewMemoryState()
	}

	capture := &events.Capture{}
	runner, err := NewRunner(cfg, state, metrics.NewEmitter(capture), logger)
	if err != nil {
		fatalf("wiring pool: %v", err)
	}

	if err := runner.Run(scenario); err != nil {
		fatalf("scenario failed: %v", err)
	}

	for _, ev := range capture.Events {
		logger.Info("event", "type", ev.EventType())
	}
	logger.Info("scenario complete", "name", scenario.Name, "events", len(capture.Events))
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "tranchesim: "+format+"\n", args...)
	os.Exit(1)
}
