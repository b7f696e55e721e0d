package epoch

import (
	"math/big"
	"strconv"
	"time"

	"tranchepool/core/types"
)

const (
	EventTypeEpochStarted = "epoch.started"
	EventTypeEpochClosed  = "epoch.closed"
)

// EpochStarted signals that a new settlement period began accepting
// redemption requests.
type EpochStarted struct {
	EpochID uint64
	EndTime time.Time
}

// EventType implements the events.Event interface.
func (EpochStarted) EventType() string { return EventTypeEpochStarted }

// Event converts the payload into its canonical attribute form.
func (e EpochStarted) Event() *types.Event {
	return &types.Event{Type: EventTypeEpochStarted, Attributes: map[string]string{
		"epoch_id": strconv.FormatUint(e.EpochID, 10),
		"end_time": e.EndTime.UTC().Format(time.RFC3339),
	}}
}

// EpochClosed summarises one epoch's settlement: the post-distribution
// tranche assets and LP token prices along with the asset value of requests
// that remain unprocessed.
type EpochClosed struct {
	EpochID           uint64
	SeniorAssets      *big.Int
	SeniorPrice       *big.Rat
	JuniorAssets      *big.Int
	JuniorPrice       *big.Rat
	UnprocessedAmount *big.Int
}

// EventType implements the events.Event interface.
func (EpochClosed) EventType() string { return EventTypeEpochClosed }

// Event converts the payload into its canonical attribute form.
func (e EpochClosed) Event() *types.Event {
	return &types.Event{Type: EventTypeEpochClosed, Attributes: map[string]string{
		"epoch_id":           strconv.FormatUint(e.EpochID, 10),
		"senior_assets":      bigString(e.SeniorAssets),
		"senior_price":       ratString(e.SeniorPrice),
		"junior_assets":      bigString(e.JuniorAssets),
		"junior_price":       ratString(e.JuniorPrice),
		"unprocessed_amount": bigString(e.UnprocessedAmount),
	}}
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func ratString(v *big.Rat) string {
	if v == nil {
		return "0"
	}
	return v.FloatString(6)
}
