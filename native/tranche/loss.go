package tranche

import "math/big"

// Layer names used in settlement summaries.
const (
	LayerSenior = "senior"
	LayerJunior = "junior"
)

// LossDistribution reports how a loss or recovery moved the tranche balances.
type LossDistribution struct {
	// Assets is the post-distribution asset split.
	Assets *Assets
	// Losses is the outstanding loss per tranche after the distribution.
	Losses *Losses
	// Remaining is the portion the tranches could not absorb (for a loss) or
	// did not need (for a recovery).
	Remaining *big.Int
}

// CalcLoss absorbs a loss across the tranches in strict seniority order:
// junior capital first, senior capital once junior is exhausted. First-loss
// covers sit ahead of both tranches in the waterfall and are applied by the
// epoch manager before this call. Inputs are not mutated.
func CalcLoss(loss *big.Int, assets *Assets, losses *Losses) *LossDistribution {
	next := assets.Clone()
	if next == nil {
		next = NewAssets(nil, nil)
	}
	nextLosses := losses.Clone()
	if nextLosses == nil {
		nextLosses = NewLosses(nil, nil)
	}

	junior := &CapitalLayer{name: LayerJunior, assets: next.Junior, loss: nextLosses.Junior}
	senior := &CapitalLayer{name: LayerSenior, assets: next.Senior, loss: nextLosses.Senior}
	remaining := ApplyLoss(loss, []AbsorptionLayer{junior, senior})

	return &LossDistribution{Assets: next, Losses: nextLosses, Remaining: remaining}
}

// CalcLossRecovery restores recovered value in the reverse of the absorption
// order: senior capital first, then junior. Whatever remains afterwards
// belongs to the first-loss covers, which recover last. Inputs are not
// mutated.
func CalcLossRecovery(recovery *big.Int, assets *Assets, losses *Losses) *LossDistribution {
	next := assets.Clone()
	if next == nil {
		next = NewAssets(nil, nil)
	}
	nextLosses := losses.Clone()
	if nextLosses == nil {
		nextLosses = NewLosses(nil, nil)
	}

	junior := &CapitalLayer{name: LayerJunior, assets: next.Junior, loss: nextLosses.Junior}
	senior := &CapitalLayer{name: LayerSenior, assets: next.Senior, loss: nextLosses.Senior}
	// Recovery iterates back to front, so listing junior before senior
	// restores the senior tranche first.
	remaining := ApplyRecovery(recovery, []AbsorptionLayer{junior, senior})

	return &LossDistribution{Assets: next, Losses: nextLosses, Remaining: remaining}
}
