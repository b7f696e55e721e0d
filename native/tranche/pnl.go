package tranche

import "math/big"

// CoverProfitInfo describes a first-loss cover participating in junior profit
// distribution. Covers with a zero multiplier take no yield slice.
type CoverProfitInfo struct {
	// Assets is the cover's current asset balance.
	Assets *big.Int
	// RiskYieldMultiplierBps scales the cover's weight relative to junior
	// LP capital when splitting junior profit.
	RiskYieldMultiplierBps uint64
}

// CalcProfitForRiskAdjustedPolicy splits profit across the tranches. The
// senior tranche first receives its proportional share of profit, then cedes
// adjustmentBps of that share to the junior tranche as compensation for the
// junior tranche absorbing losses first. Integer division truncates toward
// zero and the junior tranche receives the exact remainder, so
// seniorProfit+juniorProfit always equals profit.
func CalcProfitForRiskAdjustedPolicy(profit *big.Int, assets *Assets, adjustmentBps uint64) (seniorProfit, juniorProfit *big.Int) {
	seniorProfit = big.NewInt(0)
	juniorProfit = big.NewInt(0)
	if profit == nil || profit.Sign() <= 0 || assets == nil {
		return seniorProfit, juniorProfit
	}
	total := assets.Total()
	if total.Sign() > 0 && assets.Senior != nil && assets.Senior.Sign() > 0 {
		seniorProfit = new(big.Int).Mul(profit, assets.Senior)
		seniorProfit.Quo(seniorProfit, total)
		adjustment := new(big.Int).Mul(seniorProfit, new(big.Int).SetUint64(adjustmentBps))
		adjustment.Quo(adjustment, basisPoints)
		seniorProfit.Sub(seniorProfit, adjustment)
	}
	juniorProfit = new(big.Int).Sub(profit, seniorProfit)
	return seniorProfit, juniorProfit
}

// CalcProfitForFirstLossCovers carves the covers' yield slice out of the
// junior tranche's profit. Each cover's weight is its asset balance scaled by
// its risk-yield multiplier; the junior tranche weighs in with its full asset
// balance. Per-cover profit truncates toward zero and the junior tranche
// keeps every remainder, so the returned amounts always sum to juniorProfit.
func CalcProfitForFirstLossCovers(juniorProfit, juniorAssets *big.Int, covers []CoverProfitInfo) (remainingJuniorProfit *big.Int, coverProfits []*big.Int) {
	coverProfits = make([]*big.Int, len(covers))
	for i := range coverProfits {
		coverProfits[i] = big.NewInt(0)
	}
	remainingJuniorProfit = big.NewInt(0)
	if juniorProfit == nil || juniorProfit.Sign() <= 0 {
		return remainingJuniorProfit, coverProfits
	}
	remainingJuniorProfit = new(big.Int).Set(juniorProfit)

	totalWeight := new(big.Int)
	if juniorAssets != nil && juniorAssets.Sign() > 0 {
		totalWeight.Set(juniorAssets)
	}
	weights := make([]*big.Int, len(covers))
	for i, cover := range covers {
		weights[i] = big.NewInt(0)
		if cover.Assets == nil || cover.Assets.Sign() <= 0 || cover.RiskYieldMultiplierBps == 0 {
			continue
		}
		w := new(big.Int).Mul(cover.Assets, new(big.Int).SetUint64(cover.RiskYieldMultiplierBps))
		w.Quo(w, basisPoints)
		weights[i] = w
		totalWeight.Add(totalWeight, w)
	}
	if totalWeight.Sign() == 0 {
		return remainingJuniorProfit, coverProfits
	}
	for i, w := range weights {
		if w.Sign() == 0 {
			continue
		}
		share := new(big.Int).Mul(juniorProfit, w)
		share.Quo(share, totalWeight)
		if share.Cmp(remainingJuniorProfit) > 0 {
			share.Set(remainingJuniorProfit)
		}
		coverProfits[i] = share
		remainingJuniorProfit.Sub(remainingJuniorProfit, share)
	}
	return remainingJuniorProfit, coverProfits
}
