package epoch

import (
	"fmt"
	"math/big"

	"tranchepool/native/calendar"
)

// LPConfig carries the pool-owner-controlled parameters read by every
// settlement operation.
type LPConfig struct {
	// MaxSeniorJuniorRatio bounds the senior/junior leverage: after any
	// close, juniorAssets*MaxSeniorJuniorRatio must stay at or above
	// seniorAssets.
	MaxSeniorJuniorRatio uint32
	// TranchesRiskAdjustmentBps shifts senior profit toward the junior
	// tranche as compensation for its first-loss position.
	TranchesRiskAdjustmentBps uint64
	// LiquidityCapWei bounds the pool's total deposited value. Zero or nil
	// disables the bound.
	LiquidityCapWei *big.Int
	// PoolOwnerMinJuniorWei is the junior asset value the pool owner must
	// keep locked while the pool is on.
	PoolOwnerMinJuniorWei *big.Int
}

// Clone returns a deep copy of the config.
func (c LPConfig) Clone() LPConfig {
	clone := c
	if c.LiquidityCapWei != nil {
		clone.LiquidityCapWei = new(big.Int).Set(c.LiquidityCapWei)
	}
	if c.PoolOwnerMinJuniorWei != nil {
		clone.PoolOwnerMinJuniorWei = new(big.Int).Set(c.PoolOwnerMinJuniorWei)
	}
	return clone
}

// Validate ensures the configuration is self-consistent.
func (c LPConfig) Validate() error {
	if c.MaxSeniorJuniorRatio == 0 {
		return fmt.Errorf("epoch: max senior/junior ratio must be greater than zero")
	}
	if c.TranchesRiskAdjustmentBps > 10_000 {
		return fmt.Errorf("epoch: risk adjustment %d exceeds 10000 bps", c.TranchesRiskAdjustmentBps)
	}
	return nil
}

// PoolSettings groups the period cadence the epoch manager advances by.
type PoolSettings struct {
	PayPeriodDuration calendar.PeriodDuration
}
