package firstloss

import (
	"math/big"

	gethcommon "github.com/ethereum/go-ethereum/common"
)

// Config captures the governance-controlled parameters of one first-loss
// cover.
type Config struct {
	// CoverRateBps is the share of each incoming loss the cover absorbs,
	// expressed in basis points.
	CoverRateBps uint64 `toml:"CoverRateBps"`
	// CoverCapWei bounds the cumulative loss the cover may carry. A nil or
	// zero cap disables the bound.
	CoverCapWei *big.Int `toml:"CoverCapWei"`
	// RiskYieldMultiplierBps scales the cover's weight when junior profit is
	// distributed. Zero excludes the cover from yield.
	RiskYieldMultiplierBps uint64 `toml:"RiskYieldMultiplierBps"`
	// PoolCapCoverageBps and PoolValueCoverageBps size the per-provider
	// minimum balance: max(liquidityCap*PoolCapCoverageBps,
	// poolValue*PoolValueCoverageBps)/10000.
	PoolCapCoverageBps   uint64 `toml:"PoolCapCoverageBps"`
	PoolValueCoverageBps uint64 `toml:"PoolValueCoverageBps"`
	// MinCoverAssetsWei is the aggregate balance the cover must retain for
	// the pool to stay protected; redemptions below it are refused until the
	// pool is marked ready for cover withdrawal.
	MinCoverAssetsWei *big.Int `toml:"MinCoverAssetsWei"`
}

// Clone returns a deep copy of the config.
func (c Config) Clone() Config {
	clone := c
	if c.CoverCapWei != nil {
		clone.CoverCapWei = new(big.Int).Set(c.CoverCapWei)
	}
	if c.MinCoverAssetsWei != nil {
		clone.MinCoverAssetsWei = new(big.Int).Set(c.MinCoverAssetsWei)
	}
	return clone
}

// State is the persisted accounting state of one first-loss cover.
type State struct {
	// TotalAssets is the asset value currently held by the cover.
	TotalAssets *big.Int `json:"totalAssets"`
	// TotalShares is the share supply across all providers.
	TotalShares *big.Int `json:"totalShares"`
	// CoveredLoss is the cumulative loss the cover currently carries. It
	// grows on coverage and shrinks on recovery, never exceeding the cap.
	CoveredLoss *big.Int `json:"coveredLoss"`
	// Providers maps each provider to its share balance.
	Providers map[gethcommon.Address]*big.Int `json:"providers"`
}

// NewState returns an empty, fully initialised cover state.
func NewState() *State {
	return &State{
		TotalAssets: big.NewInt(0),
		TotalShares: big.NewInt(0),
		CoveredLoss: big.NewInt(0),
		Providers:   make(map[gethcommon.Address]*big.Int),
	}
}

// Clone returns a deep copy of the state.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	clone := NewState()
	if s.TotalAssets != nil {
		clone.TotalAssets.Set(s.TotalAssets)
	}
	if s.TotalShares != nil {
		clone.TotalShares.Set(s.TotalShares)
	}
	if s.CoveredLoss != nil {
		clone.CoveredLoss.Set(s.CoveredLoss)
	}
	for addr, shares := range s.Providers {
		if shares != nil {
			clone.Providers[addr] = new(big.Int).Set(shares)
		}
	}
	return clone
}

func (s *State) ensureDefaults() {
	if s.TotalAssets == nil {
		s.TotalAssets = big.NewInt(0)
	}
	if s.TotalShares == nil {
		s.TotalShares = big.NewInt(0)
	}
	if s.CoveredLoss == nil {
		s.CoveredLoss = big.NewInt(0)
	}
	if s.Providers == nil {
		s.Providers = make(map[gethcommon.Address]*big.Int)
	}
}
