package tranche

import "math/big"

// AbsorptionLayer is one rung of the loss waterfall. Losses walk the layer
// list front to back; recoveries walk the same list back to front so that the
// most senior capital is restored first.
type AbsorptionLayer interface {
	// Name identifies the layer in settlement summaries.
	Name() string
	// Absorb consumes up to the layer's remaining capacity from loss and
	// returns the portion it absorbed alongside the unabsorbed remainder.
	Absorb(loss *big.Int) (absorbed, remaining *big.Int)
	// Recover restores previously absorbed losses from recovery and returns
	// the portion applied alongside the unapplied remainder.
	Recover(recovery *big.Int) (recovered, remaining *big.Int)
}

// CapitalLayer is an absorption layer backed by an asset balance. Its
// capacity is its current asset value; absorbed losses reduce the balance and
// are tracked so later recoveries can restore it.
type CapitalLayer struct {
	name   string
	assets *big.Int
	loss   *big.Int
	// cap optionally bounds the cumulative loss the layer may absorb. A nil
	// cap means the layer absorbs up to its full asset balance.
	cap *big.Int
}

// NewCapitalLayer builds a layer over the given asset balance. The balance is
// mutated in place as losses and recoveries are applied.
func NewCapitalLayer(name string, assets *big.Int) *CapitalLayer {
	if assets == nil {
		assets = big.NewInt(0)
	}
	return &CapitalLayer{name: name, assets: assets, loss: big.NewInt(0)}
}

// NewTrancheLayer builds a layer over existing asset and loss balances. Both
// pointers are mutated in place, letting a caller thread one tranche's
// accounting through the waterfall.
func NewTrancheLayer(name string, assets, loss *big.Int) *CapitalLayer {
	if assets == nil {
		assets = big.NewInt(0)
	}
	if loss == nil {
		loss = big.NewInt(0)
	}
	return &CapitalLayer{name: name, assets: assets, loss: loss}
}

// NewCappedLayer builds a layer whose cumulative absorption never exceeds
// cap, regardless of its asset balance.
func NewCappedLayer(name string, assets, cap *big.Int) *CapitalLayer {
	layer := NewCapitalLayer(name, assets)
	if cap != nil {
		layer.cap = new(big.Int).Set(cap)
	}
	return layer
}

// Name implements AbsorptionLayer.
func (l *CapitalLayer) Name() string { return l.name }

// Assets returns the layer's current asset balance.
func (l *CapitalLayer) Assets() *big.Int { return new(big.Int).Set(l.assets) }

// Loss returns the cumulative loss currently borne by the layer.
func (l *CapitalLayer) Loss() *big.Int { return new(big.Int).Set(l.loss) }

// Absorb implements AbsorptionLayer.
func (l *CapitalLayer) Absorb(loss *big.Int) (absorbed, remaining *big.Int) {
	if loss == nil || loss.Sign() <= 0 {
		return big.NewInt(0), big.NewInt(0)
	}
	capacity := new(big.Int).Set(l.assets)
	if l.cap != nil {
		headroom := new(big.Int).Sub(l.cap, l.loss)
		if headroom.Sign() < 0 {
			headroom.SetInt64(0)
		}
		if headroom.Cmp(capacity) < 0 {
			capacity = headroom
		}
	}
	absorbed = new(big.Int).Set(loss)
	if absorbed.Cmp(capacity) > 0 {
		absorbed.Set(capacity)
	}
	l.assets.Sub(l.assets, absorbed)
	l.loss.Add(l.loss, absorbed)
	remaining = new(big.Int).Sub(loss, absorbed)
	return absorbed, remaining
}

// Recover implements AbsorptionLayer.
func (l *CapitalLayer) Recover(recovery *big.Int) (recovered, remaining *big.Int) {
	if recovery == nil || recovery.Sign() <= 0 {
		return big.NewInt(0), big.NewInt(0)
	}
	recovered = new(big.Int).Set(recovery)
	if recovered.Cmp(l.loss) > 0 {
		recovered.Set(l.loss)
	}
	l.assets.Add(l.assets, recovered)
	l.loss.Sub(l.loss, recovered)
	remaining = new(big.Int).Sub(recovery, recovered)
	return recovered, remaining
}

// ApplyLoss walks the layers front to back, letting each absorb up to its
// capacity, and returns the loss no layer could take.
func ApplyLoss(loss *big.Int, layers []AbsorptionLayer) *big.Int {
	remaining := big.NewInt(0)
	if loss != nil {
		remaining = new(big.Int).Set(loss)
	}
	for _, layer := range layers {
		if remaining.Sign() == 0 {
			break
		}
		_, remaining = layer.Absorb(remaining)
	}
	return remaining
}

// ApplyRecovery walks the layers back to front, restoring the most recently
// listed (most senior) capital first, and returns the unapplied remainder.
func ApplyRecovery(recovery *big.Int, layers []AbsorptionLayer) *big.Int {
	remaining := big.NewInt(0)
	if recovery != nil {
		remaining = new(big.Int).Set(recovery)
	}
	for i := len(layers) - 1; i >= 0; i-- {
		if remaining.Sign() == 0 {
			break
		}
		_, remaining = layers[i].Recover(remaining)
	}
	return remaining
}
