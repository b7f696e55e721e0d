package epoch

import (
	"math/big"
	"time"

	"tranchepool/native/tranche"
)

// Tranche identifies one side of the senior/junior structure.
type Tranche uint8

const (
	// SeniorTranche is the lower-risk claim, paid first and losing last.
	SeniorTranche Tranche = iota
	// JuniorTranche is the higher-risk claim, absorbing losses ahead of the
	// senior tranche.
	JuniorTranche
)

// String implements fmt.Stringer.
func (t Tranche) String() string {
	if t == SeniorTranche {
		return "senior"
	}
	return "junior"
}

// Epoch is one settlement period. It is created when the previous epoch
// closes and mutated only by the closing operation.
type Epoch struct {
	ID      uint64    `json:"id"`
	EndTime time.Time `json:"endTime"`
}

// Clone returns a copy of the epoch.
func (e *Epoch) Clone() *Epoch {
	if e == nil {
		return nil
	}
	clone := *e
	return &clone
}

// PoolState is the settlement-relevant pool state persisted between
// operations: the current epoch, the tranche asset split, outstanding
// tranche losses, LP share supplies, accrued pool fees and the per-tranche
// redemption trackers.
type PoolState struct {
	Current      *Epoch           `json:"current"`
	Assets       *tranche.Assets  `json:"assets"`
	Losses       *tranche.Losses  `json:"losses"`
	SeniorSupply *big.Int         `json:"seniorSupply"`
	JuniorSupply *big.Int         `json:"juniorSupply"`
	AccruedFees  *big.Int         `json:"accruedFees"`
	Senior       *tranche.Tracker `json:"senior"`
	Junior       *tranche.Tracker `json:"junior"`
}

// NewPoolState returns an empty, fully initialised pool state.
func NewPoolState() *PoolState {
	return &PoolState{
		Assets:       tranche.NewAssets(nil, nil),
		Losses:       tranche.NewLosses(nil, nil),
		SeniorSupply: big.NewInt(0),
		JuniorSupply: big.NewInt(0),
		AccruedFees:  big.NewInt(0),
		Senior:       tranche.NewTracker(),
		Junior:       tranche.NewTracker(),
	}
}

// Clone returns a deep copy of the pool state.
func (s *PoolState) Clone() *PoolState {
	if s == nil {
		return nil
	}
	clone := &PoolState{
		Current: s.Current.Clone(),
		Assets:  s.Assets.Clone(),
		Losses:  s.Losses.Clone(),
		Senior:  s.Senior.Clone(),
		Junior:  s.Junior.Clone(),
	}
	clone.SeniorSupply = big.NewInt(0)
	if s.SeniorSupply != nil {
		clone.SeniorSupply.Set(s.SeniorSupply)
	}
	clone.JuniorSupply = big.NewInt(0)
	if s.JuniorSupply != nil {
		clone.JuniorSupply.Set(s.JuniorSupply)
	}
	clone.AccruedFees = big.NewInt(0)
	if s.AccruedFees != nil {
		clone.AccruedFees.Set(s.AccruedFees)
	}
	return clone
}

func (s *PoolState) ensureDefaults() {
	if s.Assets == nil {
		s.Assets = tranche.NewAssets(nil, nil)
	}
	if s.Assets.Senior == nil {
		s.Assets.Senior = big.NewInt(0)
	}
	if s.Assets.Junior == nil {
		s.Assets.Junior = big.NewInt(0)
	}
	if s.Losses == nil {
		s.Losses = tranche.NewLosses(nil, nil)
	}
	if s.SeniorSupply == nil {
		s.SeniorSupply = big.NewInt(0)
	}
	if s.JuniorSupply == nil {
		s.JuniorSupply = big.NewInt(0)
	}
	if s.AccruedFees == nil {
		s.AccruedFees = big.NewInt(0)
	}
	if s.Senior == nil {
		s.Senior = tranche.NewTracker()
	}
	if s.Junior == nil {
		s.Junior = tranche.NewTracker()
	}
}

// tracker returns the redemption tracker for the given tranche.
func (s *PoolState) tracker(t Tranche) *tranche.Tracker {
	if t == SeniorTranche {
		return s.Senior
	}
	return s.Junior
}

// price returns the LP token price of the given tranche as an assets/supply
// pair.
func (s *PoolState) price(t Tranche) tranche.SharePrice {
	if t == SeniorTranche {
		return tranche.SharePrice{Assets: s.Assets.Senior, Supply: s.SeniorSupply}
	}
	return tranche.SharePrice{Assets: s.Assets.Junior, Supply: s.JuniorSupply}
}
