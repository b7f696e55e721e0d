package config

import (
	"fmt"

	gethcommon "github.com/ethereum/go-ethereum/common"

	"tranchepool/native/calendar"
	"tranchepool/native/epoch"
	"tranchepool/native/firstloss"
)

// PoolSection captures the tranche and epoch parameters of one pool.
type PoolSection struct {
	Name                      string `toml:"Name"`
	PoolOwner                 string `toml:"PoolOwner"`
	PoolCaller                string `toml:"PoolCaller"`
	PayPeriodDuration         string `toml:"PayPeriodDuration"`
	MaxSeniorJuniorRatio      uint32 `toml:"MaxSeniorJuniorRatio"`
	TranchesRiskAdjustmentBps uint64 `toml:"TranchesRiskAdjustmentBps"`
	LiquidityCapWei           string `toml:"LiquidityCapWei"`
	PoolOwnerMinJuniorWei     string `toml:"PoolOwnerMinJuniorWei"`
}

// CoverSection configures one first-loss cover.
type CoverSection struct {
	Name                   string `toml:"Name"`
	CoverRateBps           uint64 `toml:"CoverRateBps"`
	CoverCapWei            string `toml:"CoverCapWei"`
	RiskYieldMultiplierBps uint64 `toml:"RiskYieldMultiplierBps"`
	PoolCapCoverageBps     uint64 `toml:"PoolCapCoverageBps"`
	PoolValueCoverageBps   uint64 `toml:"PoolValueCoverageBps"`
	MinCoverAssetsWei      string `toml:"MinCoverAssetsWei"`
}

// StorageSection locates the durable pool state.
type StorageSection struct {
	DataDir string `toml:"DataDir"`
}

// LogSection controls log output.
type LogSection struct {
	Env    string `toml:"Env"`
	Format string `toml:"Format"`
}

// PausesSection flags modules whose flows are halted.
type PausesSection struct {
	Epoch     bool `toml:"Epoch"`
	FirstLoss bool `toml:"FirstLoss"`
}

// IsPaused reports whether the named module is halted. It satisfies the
// engines' pause view.
func (p PausesSection) IsPaused(module string) bool {
	switch module {
	case "epoch":
		return p.Epoch
	case "firstloss":
		return p.FirstLoss
	}
	return false
}

// LPConfig converts the pool section into the epoch manager's runtime
// configuration.
func (s PoolSection) LPConfig() (epoch.LPConfig, error) {
	cfg := epoch.LPConfig{
		MaxSeniorJuniorRatio:      s.MaxSeniorJuniorRatio,
		TranchesRiskAdjustmentBps: s.TranchesRiskAdjustmentBps,
	}
	cap, err := parseUintAmount(s.LiquidityCapWei)
	if err != nil {
		return cfg, fmt.Errorf("invalid Pool.LiquidityCapWei: %w", err)
	}
	cfg.LiquidityCapWei = cap
	min, err := parseUintAmount(s.PoolOwnerMinJuniorWei)
	if err != nil {
		return cfg, fmt.Errorf("invalid Pool.PoolOwnerMinJuniorWei: %w", err)
	}
	cfg.PoolOwnerMinJuniorWei = min
	return cfg, cfg.Validate()
}

// Settings converts the pool section into the epoch manager's period
// settings.
func (s PoolSection) Settings() (epoch.PoolSettings, error) {
	duration, err := calendar.ParsePeriodDuration(s.PayPeriodDuration)
	if err != nil {
		return epoch.PoolSettings{}, fmt.Errorf("invalid Pool.PayPeriodDuration: %w", err)
	}
	return epoch.PoolSettings{PayPeriodDuration: duration}, nil
}

// OwnerAddress parses the pool owner address.
func (s PoolSection) OwnerAddress() (gethcommon.Address, error) {
	return parseAddress("Pool.PoolOwner", s.PoolOwner)
}

// CallerAddress parses the authorized pool caller address.
func (s PoolSection) CallerAddress() (gethcommon.Address, error) {
	return parseAddress("Pool.PoolCaller", s.PoolCaller)
}

// CoverConfig converts the section into the first-loss engine's runtime
// configuration.
func (s CoverSection) CoverConfig() (firstloss.Config, error) {
	cfg := firstloss.Config{
		CoverRateBps:           s.CoverRateBps,
		RiskYieldMultiplierBps: s.RiskYieldMultiplierBps,
		PoolCapCoverageBps:     s.PoolCapCoverageBps,
		PoolValueCoverageBps:   s.PoolValueCoverageBps,
	}
	cap, err := parseUintAmount(s.CoverCapWei)
	if err != nil {
		return cfg, fmt.Errorf("invalid Covers.%s.CoverCapWei: %w", s.Name, err)
	}
	cfg.CoverCapWei = cap
	min, err := parseUintAmount(s.MinCoverAssetsWei)
	if err != nil {
		return cfg, fmt.Errorf("invalid Covers.%s.MinCoverAssetsWei: %w", s.Name, err)
	}
	cfg.MinCoverAssetsWei = min
	return cfg, nil
}

func parseAddress(field, raw string) (gethcommon.Address, error) {
	if raw == "" {
		return gethcommon.Address{}, nil
	}
	if !gethcommon.IsHexAddress(raw) {
		return gethcommon.Address{}, fmt.Errorf("invalid %s: %q is not a hex address", field, raw)
	}
	return gethcommon.HexToAddress(raw), nil
}
