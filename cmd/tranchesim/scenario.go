package main

import (
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"strings"
	"time"

	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"gopkg.in/yaml.v3"

	"tranchepool/config"
	"tranchepool/core/events"
	"tranchepool/native/epoch"
	"tranchepool/native/firstloss"
)

// Scenario scripts a sequence of pool operations against a simulated clock.
type Scenario struct {
	Name  string `yaml:"name"`
	Steps []Step `yaml:"steps"`
}

// Step is one scripted operation. Op selects the action; the remaining
// fields are read per op.
type Step struct {
	Op       string `yaml:"op"`
	Tranche  string `yaml:"tranche,omitempty"`
	Cover    string `yaml:"cover,omitempty"`
	Provider string `yaml:"provider,omitempty"`
	Amount   string `yaml:"amount,omitempty"`
	Shares   string `yaml:"shares,omitempty"`
	Profit   string `yaml:"profit,omitempty"`
	Loss     string `yaml:"loss,omitempty"`
	Recovery string `yaml:"recovery,omitempty"`
}

// LoadScenario parses a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	scenario := &Scenario{}
	if err := yaml.Unmarshal(raw, scenario); err != nil {
		return nil, fmt.Errorf("parsing scenario %s: %w", path, err)
	}
	if len(scenario.Steps) == 0 {
		return nil, fmt.Errorf("scenario %s has no steps", path)
	}
	return scenario, nil
}

// scriptedLedger replays the PnL queued by scenario steps. Each close
// consumes the pending figures and resets them to zero.
type scriptedLedger struct {
	profit   *big.Int
	loss     *big.Int
	recovery *big.Int
}

func (l *scriptedLedger) RefreshPnL() (*big.Int, *big.Int, *big.Int, error) {
	profit, loss, recovery := l.profit, l.loss, l.recovery
	l.profit, l.loss, l.recovery = nil, nil, nil
	return profit, loss, recovery, nil
}

// Runner executes scenarios against a fully wired pool.
type Runner struct {
	engine *epoch.Engine
	covers map[string]*firstloss.Engine
	ledger *scriptedLedger
	clock  *clockwork.FakeClock
	owner  gethcommon.Address
	logger *slog.Logger
}

// NewRunner wires a pool from the given configuration, backed by the given
// state store and liquidity safe.
func NewRunner(cfg *config.Config, state interface {
	GetPoolState() (*epoch.PoolState, error)
	PutPoolState(*epoch.PoolState) error
	GetCoverState(string) (*firstloss.State, error)
	PutCoverState(string, *firstloss.State) error
}, emitter events.Emitter, logger *slog.Logger) (*Runner, error) {
	owner, err := cfg.Pool.OwnerAddress()
	if err != nil {
		return nil, err
	}
	caller, err := cfg.Pool.CallerAddress()
	if err != nil {
		return nil, err
	}
	if (owner == gethcommon.Address{}) {
		owner = gethcommon.BytesToAddress([]byte("sim-pool-owner"))
	}
	if (caller == gethcommon.Address{}) {
		caller = gethcommon.BytesToAddress([]byte("sim-pool-caller"))
	}

	lpConfig, err := cfg.Pool.LPConfig()
	if err != nil {
		return nil, err
	}
	settings, err := cfg.Pool.Settings()
	if err != nil {
		return nil, err
	}

	clock := clockwork.NewFakeClockAt(time.Now().UTC())
	safe := epoch.NewSafe(nil)
	ledger := &scriptedLedger{}

	engine := epoch.NewEngine(caller, owner, lpConfig, settings)
	engine.SetState(state)
	engine.SetPoolSafe(safe)
	engine.SetCreditLedger(ledger)
	engine.SetClock(clock)
	engine.SetEmitter(emitter)
	engine.SetPauses(cfg.Pauses)

	covers := make(map[string]*firstloss.Engine, len(cfg.Covers))
	for _, section := range cfg.Covers {
		coverCfg, err := section.CoverConfig()
		if err != nil {
			return nil, err
		}
		cover := firstloss.NewEngine(section.Name, caller, coverCfg)
		cover.SetState(state)
		cover.SetPoolSafe(safe)
		cover.SetPoolView(engine)
		cover.SetEmitter(emitter)
		engine.AddFirstLossCover(cover)
		covers[section.Name] = cover
	}

	if err := engine.EnablePool(owner); err != nil {
		return nil, fmt.Errorf("enabling pool: %w", err)
	}
	return &Runner{
		engine: engine,
		covers: covers,
		ledger: ledger,
		clock:  clock,
		owner:  owner,
		logger: logger,
	}, nil
}

// Run executes every step in order, stopping at the first failure.
func (r *Runner) Run(scenario *Scenario) error {
	r.logger.Info("running scenario", "name", scenario.Name, "steps", len(scenario.Steps))
	for i, step := range scenario.Steps {
		stepID := uuid.NewString()
		log := r.logger.With("step", i+1, "op", step.Op, "step_id", stepID)
		if err := r.runStep(step, log); err != nil {
			return fmt.Errorf("step %d (%s): %w", i+1, step.Op, err)
		}
	}
	return nil
}

func (r *Runner) runStep(step Step, log *slog.Logger) error {
	switch strings.ToLower(strings.TrimSpace(step.Op)) {
	case "deposit":
		t, err := parseTranche(step.Tranche)
		if err != nil {
			return err
		}
		amount, err := parseAmount(step.Amount)
		if err != nil {
			return err
		}
		shares, err := r.engine.Deposit(t, amount)
		if err != nil {
			return err
		}
		log.Info("deposited", "tranche", t.String(), "amount", amount, "shares", shares)
	case "cover-deposit":
		cover, ok := r.covers[step.Cover]
		if !ok {
			return fmt.Errorf("unknown cover %q", step.Cover)
		}
		amount, err := parseAmount(step.Amount)
		if err != nil {
			return err
		}
		provider := gethcommon.HexToAddress(step.Provider)
		shares, err := cover.DepositCover(provider, amount)
		if err != nil {
			return err
		}
		log.Info("cover deposit", "cover", step.Cover, "amount", amount, "shares", shares)
	case "request":
		t, err := parseTranche(step.Tranche)
		if err != nil {
			return err
		}
		shares, err := parseAmount(step.Shares)
		if err != nil {
			return err
		}
		requester := r.owner
		if step.Provider != "" {
			requester = gethcommon.HexToAddress(step.Provider)
		}
		if err := r.engine.AddRedemptionRequest(requester, t, shares); err != nil {
			return err
		}
		log.Info("redemption requested", "tranche", t.String(), "shares", shares)
	case "cancel":
		t, err := parseTranche(step.Tranche)
		if err != nil {
			return err
		}
		shares, err := parseAmount(step.Shares)
		if err != nil {
			return err
		}
		if err := r.engine.CancelRedemptionRequest(t, shares); err != nil {
			return err
		}
		log.Info("redemption cancelled", "tranche", t.String(), "shares", shares)
	case "pnl":
		var err error
		if r.ledger.profit, err = parseOptionalAmount(step.Profit); err != nil {
			return err
		}
		if r.ledger.loss, err = parseOptionalAmount(step.Loss); err != nil {
			return err
		}
		if r.ledger.recovery, err = parseOptionalAmount(step.Recovery); err != nil {
			return err
		}
		log.Info("pnl queued", "profit", step.Profit, "loss", step.Loss, "recovery", step.Recovery)
	case "advance":
		current, err := r.engine.CurrentEpoch()
		if err != nil {
			return err
		}
		r.clock.Advance(current.EndTime.Sub(r.clock.Now()) + time.Minute)
		log.Info("advanced past epoch end", "epoch", current.ID, "end_time", current.EndTime)
	case "close":
		summary, err := r.engine.CloseEpoch()
		if err != nil {
			return err
		}
		log.Info("epoch closed",
			"epoch", summary.Epoch.ID,
			"profit", summary.Profit,
			"loss", summary.Loss,
			"recovery", summary.LossRecovery,
			"senior_shares", summary.SeniorSharesProcessed,
			"senior_amount", summary.SeniorAmountProcessed,
			"junior_shares", summary.JuniorSharesProcessed,
			"junior_amount", summary.JuniorAmountProcessed,
			"unprocessed", summary.UnprocessedAmount,
			"pool_fees", summary.PoolFeesAccrued,
		)
	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}
	return nil
}

func parseTranche(s string) (epoch.Tranche, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "senior":
		return epoch.SeniorTranche, nil
	case "junior":
		return epoch.JuniorTranche, nil
	default:
		return epoch.SeniorTranche, fmt.Errorf("unknown tranche %q", s)
	}
}

func parseAmount(s string) (*big.Int, error) {
	value, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	return value, nil
}

func parseOptionalAmount(s string) (*big.Int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	return parseAmount(s)
}
