package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"tranchepool/config"
	"tranchepool/core/events"
	"tranchepool/native/epoch"
)

const testScenario = `
name: senior-redemption
steps:
  - op: deposit
    tranche: senior
    amount: "10000"
  - op: deposit
    tranche: junior
    amount: "400000"
  - op: request
    tranche: senior
    shares: "2539"
  - op: advance
  - op: close
`

func writeScenario(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func testConfig() *config.Config {
	return &config.Config{
		Pool: config.PoolSection{
			Name:                 "pool-test",
			PayPeriodDuration:    "monthly",
			MaxSeniorJuniorRatio: 4,
		},
	}
}

func TestLoadScenario(t *testing.T) {
	scenario, err := LoadScenario(writeScenario(t, testScenario))
	require.NoError(t, err)
	require.Equal(t, "senior-redemption", scenario.Name)
	require.Len(t, scenario.Steps, 5)
	require.Equal(t, "deposit", scenario.Steps[0].Op)
}

func TestLoadScenarioRejectsEmpty(t *testing.T) {
	_, err := LoadScenario(writeScenario(t, "name: empty\nsteps: []\n"))
	require.Error(t, err)
}

func TestRunnerExecutesScenario(t *testing.T) {
	scenario, err := LoadScenario(writeScenario(t, testScenario))
	require.NoError(t, err)

	capture := &events.Capture{}
	runner, err := NewRunner(testConfig(), epoch.NewMemoryState(), capture, slog.Default())
	require.NoError(t, err)
	require.NoError(t, runner.Run(scenario))

	var closed bool
	for _, ev := range capture.Events {
		if ev.EventType() == epoch.EventTypeEpochClosed {
			closed = true
		}
	}
	require.True(t, closed)
}

func TestRunnerRejectsUnknownOp(t *testing.T) {
	scenario := &Scenario{Name: "bad", Steps: []Step{{Op: "explode"}}}
	runner, err := NewRunner(testConfig(), epoch.NewMemoryState(), &events.Capture{}, slog.Default())
	require.NoError(t, err)
	require.Error(t, runner.Run(scenario))
}
