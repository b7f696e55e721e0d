package tranche

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCalcProfitForRiskAdjustedPolicy(t *testing.T) {
	cases := []struct {
		name          string
		profit        int64
		senior        int64
		junior        int64
		adjustmentBps uint64
		wantSenior    int64
		wantJunior    int64
	}{
		// 198 * 10000/410000 truncates to 4; the 8000 bps adjustment cedes
		// 4*8000/10000 = 3 to junior.
		{"reference figures", 198, 10_000, 400_000, 8_000, 1, 197},
		{"no adjustment", 1_000, 500_000, 500_000, 0, 500, 500},
		{"full adjustment", 1_000, 500_000, 500_000, 10_000, 0, 1_000},
		{"empty senior tranche", 777, 0, 100_000, 2_000, 0, 777},
		{"empty pool", 777, 0, 0, 2_000, 0, 777},
		{"zero profit", 0, 10_000, 400_000, 8_000, 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assets := NewAssets(big.NewInt(tc.senior), big.NewInt(tc.junior))
			seniorProfit, juniorProfit := CalcProfitForRiskAdjustedPolicy(big.NewInt(tc.profit), assets, tc.adjustmentBps)
			require.Equal(t, tc.wantSenior, seniorProfit.Int64())
			require.Equal(t, tc.wantJunior, juniorProfit.Int64())
		})
	}
}

func TestCalcProfitConservation(t *testing.T) {
	profits := []int64{1, 7, 198, 999, 123_456_789}
	adjustments := []uint64{0, 1, 2_500, 8_000, 9_999, 10_000}
	assets := NewAssets(big.NewInt(10_000), big.NewInt(400_000))
	for _, p := range profits {
		for _, adj := range adjustments {
			seniorProfit, juniorProfit := CalcProfitForRiskAdjustedPolicy(big.NewInt(p), assets, adj)
			sum := new(big.Int).Add(seniorProfit, juniorProfit)
			require.Zero(t, sum.Cmp(big.NewInt(p)),
				"profit %d adj %d leaked value: senior=%s junior=%s", p, adj, seniorProfit, juniorProfit)
			require.True(t, seniorProfit.Sign() >= 0)
			require.True(t, juniorProfit.Sign() >= 0)
		}
	}
}

func TestCalcProfitForFirstLossCovers(t *testing.T) {
	covers := []CoverProfitInfo{
		{Assets: big.NewInt(20_000), RiskYieldMultiplierBps: 5_000},
		{Assets: big.NewInt(10_000), RiskYieldMultiplierBps: 0},
	}
	remaining, coverProfits := CalcProfitForFirstLossCovers(big.NewInt(1_000), big.NewInt(90_000), covers)
	// Cover weight: 20000*5000/10000 = 10000 against 90000 of junior capital.
	require.Equal(t, int64(100), coverProfits[0].Int64())
	require.Equal(t, int64(0), coverProfits[1].Int64())
	require.Equal(t, int64(900), remaining.Int64())
}

func TestCalcProfitForFirstLossCoversConservation(t *testing.T) {
	covers := []CoverProfitInfo{
		{Assets: big.NewInt(33_333), RiskYieldMultiplierBps: 7_500},
		{Assets: big.NewInt(77), RiskYieldMultiplierBps: 12_000},
	}
	for _, profit := range []int64{1, 13, 197, 1_000_001} {
		remaining, coverProfits := CalcProfitForFirstLossCovers(big.NewInt(profit), big.NewInt(123_457), covers)
		sum := new(big.Int).Set(remaining)
		for _, cp := range coverProfits {
			sum.Add(sum, cp)
		}
		require.Zero(t, sum.Cmp(big.NewInt(profit)), "profit %d leaked value", profit)
	}
}

func TestCalcProfitForFirstLossCoversNoWeights(t *testing.T) {
	remaining, coverProfits := CalcProfitForFirstLossCovers(big.NewInt(500), big.NewInt(0), nil)
	require.Equal(t, int64(500), remaining.Int64())
	require.Empty(t, coverProfits)
}
