package firstloss

import (
	"math/big"

	"tranchepool/native/tranche"
)

// coverLayer adapts the engine to the loss waterfall so the epoch manager can
// iterate first-loss covers and tranches through one absorption interface.
// The adapter runs inside the pool's own settlement pass, so caller
// authorization is already established.
type coverLayer struct {
	engine *Engine
}

// Layer returns the engine's loss-waterfall adapter.
func (e *Engine) Layer() tranche.AbsorptionLayer {
	return coverLayer{engine: e}
}

// Name implements tranche.AbsorptionLayer.
func (l coverLayer) Name() string { return l.engine.Name() }

// Absorb implements tranche.AbsorptionLayer by routing through the cover's
// rate- and cap-bounded loss coverage.
func (l coverLayer) Absorb(loss *big.Int) (absorbed, remaining *big.Int) {
	remaining, err := l.engine.coverLoss(loss)
	if err != nil {
		// A broken persistence layer leaves the loss untouched for the next
		// layer; the close operation surfaces the failure via its snapshot
		// rollback.
		return big.NewInt(0), cloneOrZero(loss)
	}
	absorbed = new(big.Int).Sub(cloneOrZero(loss), remaining)
	return absorbed, remaining
}

// Recover implements tranche.AbsorptionLayer.
func (l coverLayer) Recover(recovery *big.Int) (recovered, remaining *big.Int) {
	recovered, err := l.engine.recoverLoss(recovery)
	if err != nil {
		return big.NewInt(0), cloneOrZero(recovery)
	}
	remaining = new(big.Int).Sub(cloneOrZero(recovery), recovered)
	return recovered, remaining
}

func cloneOrZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
