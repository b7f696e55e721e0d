package tranche

import (
	"errors"
	"math/big"
)

var (
	// ErrZeroAmountProvided is returned when a redemption request or
	// cancellation carries no shares.
	ErrZeroAmountProvided = errors.New("tranche: zero amount provided")
	// ErrEpochNotOpen is returned when a request targets a tracker with no
	// open epoch.
	ErrEpochNotOpen = errors.New("tranche: no open epoch accepting requests")
	// ErrInsufficientSharesForRequest is returned when a cancellation exceeds
	// the shares requested in the open epoch.
	ErrInsufficientSharesForRequest = errors.New("tranche: insufficient shares for request")
)

// RedemptionSummary aggregates the redemption requests a tranche received
// during one epoch and the portion settled so far. SharesProcessed never
// exceeds TotalSharesRequested; AmountProcessed is derived from the LP token
// price at each closing.
type RedemptionSummary struct {
	EpochID              uint64   `json:"epochId"`
	TotalSharesRequested *big.Int `json:"totalSharesRequested"`
	SharesProcessed      *big.Int `json:"sharesProcessed"`
	AmountProcessed      *big.Int `json:"amountProcessed"`
}

// Clone returns a deep copy of the summary.
func (s *RedemptionSummary) Clone() *RedemptionSummary {
	if s == nil {
		return nil
	}
	clone := &RedemptionSummary{EpochID: s.EpochID}
	clone.TotalSharesRequested = cloneOrZero(s.TotalSharesRequested)
	clone.SharesProcessed = cloneOrZero(s.SharesProcessed)
	clone.AmountProcessed = cloneOrZero(s.AmountProcessed)
	return clone
}

// OutstandingShares returns the requested shares not yet settled.
func (s *RedemptionSummary) OutstandingShares() *big.Int {
	if s == nil || s.TotalSharesRequested == nil {
		return big.NewInt(0)
	}
	out := new(big.Int).Set(s.TotalSharesRequested)
	if s.SharesProcessed != nil {
		out.Sub(out, s.SharesProcessed)
	}
	if out.Sign() < 0 {
		out.SetInt64(0)
	}
	return out
}

// Fulfilled reports whether every requested share has been settled.
func (s *RedemptionSummary) Fulfilled() bool {
	return s.OutstandingShares().Sign() == 0
}

// Tracker accumulates one tranche's redemption requests per epoch and settles
// them against liquidity at each epoch close. Summaries is ordered oldest
// first and only holds epochs with outstanding shares; the open epoch's
// summary is created lazily on the first request.
type Tracker struct {
	CurrentEpoch uint64               `json:"currentEpoch"`
	HasEpoch     bool                 `json:"hasEpoch"`
	Summaries    []*RedemptionSummary `json:"summaries"`
}

// NewTracker constructs an empty tracker with no open epoch.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Clone returns a deep copy of the tracker.
func (t *Tracker) Clone() *Tracker {
	if t == nil {
		return nil
	}
	clone := &Tracker{CurrentEpoch: t.CurrentEpoch, HasEpoch: t.HasEpoch}
	if len(t.Summaries) > 0 {
		clone.Summaries = make([]*RedemptionSummary, len(t.Summaries))
		for i, s := range t.Summaries {
			clone.Summaries[i] = s.Clone()
		}
	}
	return clone
}

// StartEpoch opens a new epoch for request accumulation.
func (t *Tracker) StartEpoch(epochID uint64) {
	t.CurrentEpoch = epochID
	t.HasEpoch = true
}

// AddRedemptionRequest records shares requested for redemption in the open
// epoch.
func (t *Tracker) AddRedemptionRequest(shares *big.Int) error {
	if shares == nil || shares.Sign() <= 0 {
		return ErrZeroAmountProvided
	}
	if !t.HasEpoch {
		return ErrEpochNotOpen
	}
	summary := t.openSummary()
	if summary == nil {
		summary = &RedemptionSummary{
			EpochID:              t.CurrentEpoch,
			TotalSharesRequested: big.NewInt(0),
			SharesProcessed:      big.NewInt(0),
			AmountProcessed:      big.NewInt(0),
		}
		t.Summaries = append(t.Summaries, summary)
	}
	summary.TotalSharesRequested = new(big.Int).Add(summary.TotalSharesRequested, shares)
	return nil
}

// CancelRedemptionRequest removes shares from the open epoch's summary.
// Requests carried over from closed epochs can no longer be cancelled.
func (t *Tracker) CancelRedemptionRequest(shares *big.Int) error {
	if shares == nil || shares.Sign() <= 0 {
		return ErrZeroAmountProvided
	}
	if !t.HasEpoch {
		return ErrEpochNotOpen
	}
	summary := t.openSummary()
	if summary == nil || summary.TotalSharesRequested.Cmp(shares) < 0 {
		return ErrInsufficientSharesForRequest
	}
	summary.TotalSharesRequested = new(big.Int).Sub(summary.TotalSharesRequested, shares)
	if summary.TotalSharesRequested.Sign() == 0 && summary.SharesProcessed.Sign() == 0 {
		t.Summaries = t.Summaries[:len(t.Summaries)-1]
	}
	return nil
}

// PendingShares returns the outstanding shares across every unresolved epoch.
func (t *Tracker) PendingShares() *big.Int {
	total := big.NewInt(0)
	if t == nil {
		return total
	}
	for _, s := range t.Summaries {
		total.Add(total, s.OutstandingShares())
	}
	return total
}

// Unprocessed returns deep copies of the summaries that still carry
// outstanding shares, oldest first.
func (t *Tracker) Unprocessed() []*RedemptionSummary {
	if t == nil {
		return nil
	}
	out := make([]*RedemptionSummary, 0, len(t.Summaries))
	for _, s := range t.Summaries {
		out = append(out, s.Clone())
	}
	return out
}

// Settle advances unresolved epochs oldest first against a share budget at
// the given price. A newer epoch is never filled while an older one has
// outstanding shares, so the first-unprocessed-epoch index only moves
// forward. Fully fulfilled summaries leave the pending list. Returns the
// shares and asset amount settled in this pass.
func (t *Tracker) Settle(maxShares *big.Int, price SharePrice) (sharesProcessed, amountProcessed *big.Int) {
	sharesProcessed = big.NewInt(0)
	amountProcessed = big.NewInt(0)
	if t == nil || maxShares == nil || maxShares.Sign() <= 0 {
		return sharesProcessed, amountProcessed
	}
	budget := new(big.Int).Set(maxShares)
	remaining := t.Summaries[:0]
	for i, summary := range t.Summaries {
		if budget.Sign() == 0 {
			remaining = append(remaining, t.Summaries[i:]...)
			break
		}
		fill := summary.OutstandingShares()
		if fill.Cmp(budget) > 0 {
			fill.Set(budget)
		}
		if fill.Sign() > 0 {
			amount := price.AssetsForShares(fill)
			summary.SharesProcessed = new(big.Int).Add(summary.SharesProcessed, fill)
			summary.AmountProcessed = new(big.Int).Add(summary.AmountProcessed, amount)
			budget.Sub(budget, fill)
			sharesProcessed.Add(sharesProcessed, fill)
			amountProcessed.Add(amountProcessed, amount)
		}
		if !summary.Fulfilled() {
			remaining = append(remaining, summary)
		}
	}
	t.Summaries = remaining
	return sharesProcessed, amountProcessed
}

func (t *Tracker) openSummary() *RedemptionSummary {
	if len(t.Summaries) == 0 {
		return nil
	}
	last := t.Summaries[len(t.Summaries)-1]
	if last.EpochID != t.CurrentEpoch {
		return nil
	}
	return last
}

func cloneOrZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
