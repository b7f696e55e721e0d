package metrics

import (
	"tranchepool/core/events"
	"tranchepool/native/epoch"
	"tranchepool/native/firstloss"
)

// Emitter forwards engine events to a downstream emitter while updating the
// settlement metrics. Wrap the real emitter with it when constructing the
// engines.
type Emitter struct {
	next    events.Emitter
	metrics *SettlementMetrics
}

// NewEmitter wraps next with metrics recording. A nil next discards events
// after observing them.
func NewEmitter(next events.Emitter) *Emitter {
	if next == nil {
		next = events.NoopEmitter{}
	}
	return &Emitter{next: next, metrics: Settlement()}
}

// Emit implements the events.Emitter interface.
func (e *Emitter) Emit(ev events.Event) {
	if e == nil || ev == nil {
		return
	}
	switch payload := ev.(type) {
	case epoch.EpochClosed:
		e.metrics.ObserveEpochClosed(payload.UnprocessedAmount)
	case firstloss.LossCovered:
		e.metrics.ObserveLossAbsorbed(payload.Cover, payload.Covered)
	case firstloss.LossRecovered:
		e.metrics.ObserveLossRecovered(payload.Cover, payload.Recovered)
	}
	e.next.Emit(ev)
}
