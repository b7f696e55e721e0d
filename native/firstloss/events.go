package firstloss

import (
	"math/big"

	gethcommon "github.com/ethereum/go-ethereum/common"

	"tranchepool/core/types"
)

const (
	EventTypeLossCovered    = "flc.loss_covered"
	EventTypeLossRecovered  = "flc.loss_recovered"
	EventTypeCoverDeposited = "flc.cover_deposited"
	EventTypeCoverRedeemed  = "flc.cover_redeemed"
)

// LossCovered signals that the cover absorbed part of an incoming loss.
type LossCovered struct {
	Cover       string
	Covered     *big.Int
	Remaining   *big.Int
	CoveredLoss *big.Int
}

// EventType implements the events.Event interface.
func (LossCovered) EventType() string { return EventTypeLossCovered }

// Event converts the payload into its canonical attribute form.
func (e LossCovered) Event() *types.Event {
	return &types.Event{Type: EventTypeLossCovered, Attributes: map[string]string{
		"cover":        e.Cover,
		"covered":      bigString(e.Covered),
		"remaining":    bigString(e.Remaining),
		"covered_loss": bigString(e.CoveredLoss),
	}}
}

// LossRecovered signals that recovered value flowed back into the cover.
type LossRecovered struct {
	Cover       string
	Recovered   *big.Int
	CoveredLoss *big.Int
}

// EventType implements the events.Event interface.
func (LossRecovered) EventType() string { return EventTypeLossRecovered }

// Event converts the payload into its canonical attribute form.
func (e LossRecovered) Event() *types.Event {
	return &types.Event{Type: EventTypeLossRecovered, Attributes: map[string]string{
		"cover":        e.Cover,
		"recovered":    bigString(e.Recovered),
		"covered_loss": bigString(e.CoveredLoss),
	}}
}

// CoverDeposited signals a provider deposit into the cover.
type CoverDeposited struct {
	Cover    string
	Provider gethcommon.Address
	Assets   *big.Int
	Shares   *big.Int
}

// EventType implements the events.Event interface.
func (CoverDeposited) EventType() string { return EventTypeCoverDeposited }

// Event converts the payload into its canonical attribute form.
func (e CoverDeposited) Event() *types.Event {
	return &types.Event{Type: EventTypeCoverDeposited, Attributes: map[string]string{
		"cover":    e.Cover,
		"provider": e.Provider.Hex(),
		"assets":   bigString(e.Assets),
		"shares":   bigString(e.Shares),
	}}
}

// CoverRedeemed signals a provider redemption out of the cover.
type CoverRedeemed struct {
	Cover    string
	Provider gethcommon.Address
	Receiver gethcommon.Address
	Assets   *big.Int
	Shares   *big.Int
}

// EventType implements the events.Event interface.
func (CoverRedeemed) EventType() string { return EventTypeCoverRedeemed }

// Event converts the payload into its canonical attribute form.
func (e CoverRedeemed) Event() *types.Event {
	return &types.Event{Type: EventTypeCoverRedeemed, Attributes: map[string]string{
		"cover":    e.Cover,
		"provider": e.Provider.Hex(),
		"receiver": e.Receiver.Hex(),
		"assets":   bigString(e.Assets),
		"shares":   bigString(e.Shares),
	}}
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
