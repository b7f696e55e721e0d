package tranche

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCalcLossJuniorAbsorbsFirst(t *testing.T) {
	assets := NewAssets(big.NewInt(10_000), big.NewInt(400_000))
	dist := CalcLoss(big.NewInt(67), assets, nil)
	require.Equal(t, int64(10_000), dist.Assets.Senior.Int64())
	require.Equal(t, int64(399_933), dist.Assets.Junior.Int64())
	require.Equal(t, int64(0), dist.Losses.Senior.Int64())
	require.Equal(t, int64(67), dist.Losses.Junior.Int64())
	require.Equal(t, int64(0), dist.Remaining.Int64())
	// Inputs untouched.
	require.Equal(t, int64(400_000), assets.Junior.Int64())
}

func TestCalcLossSpillsToSenior(t *testing.T) {
	assets := NewAssets(big.NewInt(10_000), big.NewInt(400_000))
	dist := CalcLoss(big.NewInt(405_000), assets, nil)
	require.Equal(t, int64(0), dist.Assets.Junior.Int64())
	require.Equal(t, int64(5_000), dist.Assets.Senior.Int64())
	require.Equal(t, int64(400_000), dist.Losses.Junior.Int64())
	require.Equal(t, int64(5_000), dist.Losses.Senior.Int64())
	require.Equal(t, int64(0), dist.Remaining.Int64())
}

func TestCalcLossBeyondCapacity(t *testing.T) {
	assets := NewAssets(big.NewInt(10_000), big.NewInt(400_000))
	dist := CalcLoss(big.NewInt(450_000), assets, nil)
	require.Equal(t, int64(0), dist.Assets.Junior.Int64())
	require.Equal(t, int64(0), dist.Assets.Senior.Int64())
	require.Equal(t, int64(40_000), dist.Remaining.Int64())
}

func TestCalcLossRecoverySeniorFirst(t *testing.T) {
	assets := NewAssets(big.NewInt(5_000), big.NewInt(0))
	losses := NewLosses(big.NewInt(5_000), big.NewInt(400_000))
	dist := CalcLossRecovery(big.NewInt(7_500), assets, losses)
	// Senior is made whole before junior sees anything.
	require.Equal(t, int64(10_000), dist.Assets.Senior.Int64())
	require.Equal(t, int64(0), dist.Losses.Senior.Int64())
	require.Equal(t, int64(2_500), dist.Assets.Junior.Int64())
	require.Equal(t, int64(397_500), dist.Losses.Junior.Int64())
	require.Equal(t, int64(0), dist.Remaining.Int64())
}

func TestCalcLossRecoveryOverflowLeftForCovers(t *testing.T) {
	assets := NewAssets(big.NewInt(10_000), big.NewInt(399_933))
	losses := NewLosses(big.NewInt(0), big.NewInt(67))
	dist := CalcLossRecovery(big.NewInt(100), assets, losses)
	require.Equal(t, int64(400_000), dist.Assets.Junior.Int64())
	require.Equal(t, int64(0), dist.Losses.Junior.Int64())
	// 33 units remain for the first-loss covers to recover.
	require.Equal(t, int64(33), dist.Remaining.Int64())
}

func TestLossRecoveryRoundTripConservation(t *testing.T) {
	assets := NewAssets(big.NewInt(12_345), big.NewInt(98_765))
	total := assets.Total()
	for _, loss := range []int64{1, 67, 98_765, 111_110} {
		dist := CalcLoss(big.NewInt(loss), assets, nil)
		afterLoss := new(big.Int).Add(dist.Assets.Total(), dist.Losses.Senior)
		afterLoss.Add(afterLoss, dist.Losses.Junior)
		afterLoss.Add(afterLoss, dist.Remaining)
		require.Zero(t, afterLoss.Cmp(total), "loss %d broke conservation", loss)

		recovered := CalcLossRecovery(big.NewInt(loss), dist.Assets, dist.Losses)
		require.Zero(t, recovered.Assets.Total().Cmp(total), "loss %d round trip drifted", loss)
		require.Equal(t, int64(0), recovered.Losses.Senior.Int64())
		require.Equal(t, int64(0), recovered.Losses.Junior.Int64())
	}
}

func TestCappedLayerHonoursCap(t *testing.T) {
	layer := NewCappedLayer("cover", big.NewInt(1_000), big.NewInt(300))
	absorbed, remaining := layer.Absorb(big.NewInt(500))
	require.Equal(t, int64(300), absorbed.Int64())
	require.Equal(t, int64(200), remaining.Int64())
	require.Equal(t, int64(700), layer.Assets().Int64())

	// Cap is cumulative: nothing further may be absorbed.
	absorbed, remaining = layer.Absorb(big.NewInt(50))
	require.Equal(t, int64(0), absorbed.Int64())
	require.Equal(t, int64(50), remaining.Int64())

	// Recovery frees headroom again.
	recovered, _ := layer.Recover(big.NewInt(100))
	require.Equal(t, int64(100), recovered.Int64())
	absorbed, _ = layer.Absorb(big.NewInt(50))
	require.Equal(t, int64(50), absorbed.Int64())
}
