package tranche

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddRedemptionRequestRequiresOpenEpoch(t *testing.T) {
	tracker := NewTracker()
	err := tracker.AddRedemptionRequest(big.NewInt(100))
	require.ErrorIs(t, err, ErrEpochNotOpen)

	tracker.StartEpoch(1)
	require.ErrorIs(t, tracker.AddRedemptionRequest(nil), ErrZeroAmountProvided)
	require.ErrorIs(t, tracker.AddRedemptionRequest(big.NewInt(0)), ErrZeroAmountProvided)
	require.NoError(t, tracker.AddRedemptionRequest(big.NewInt(100)))
	require.Equal(t, int64(100), tracker.PendingShares().Int64())
}

func TestCancelRedemptionRequest(t *testing.T) {
	tracker := NewTracker()
	tracker.StartEpoch(1)
	require.NoError(t, tracker.AddRedemptionRequest(big.NewInt(100)))
	require.NoError(t, tracker.CancelRedemptionRequest(big.NewInt(40)))
	require.Equal(t, int64(60), tracker.PendingShares().Int64())

	require.ErrorIs(t, tracker.CancelRedemptionRequest(big.NewInt(61)), ErrInsufficientSharesForRequest)

	// Cancelling the full request drops the empty summary.
	require.NoError(t, tracker.CancelRedemptionRequest(big.NewInt(60)))
	require.Empty(t, tracker.Unprocessed())
}

func TestCancelCannotTouchCarriedOverEpoch(t *testing.T) {
	tracker := NewTracker()
	tracker.StartEpoch(1)
	require.NoError(t, tracker.AddRedemptionRequest(big.NewInt(100)))
	// Close with no liquidity: the summary carries over unresolved.
	tracker.Settle(big.NewInt(0), SharePrice{Assets: big.NewInt(1), Supply: big.NewInt(1)})
	tracker.StartEpoch(2)
	require.ErrorIs(t, tracker.CancelRedemptionRequest(big.NewInt(10)), ErrInsufficientSharesForRequest)
}

func TestSettleFullFill(t *testing.T) {
	tracker := NewTracker()
	tracker.StartEpoch(1)
	require.NoError(t, tracker.AddRedemptionRequest(big.NewInt(2_539)))

	price := SharePrice{Assets: big.NewInt(10_000), Supply: big.NewInt(10_000)}
	shares, amount := tracker.Settle(big.NewInt(10_000), price)
	require.Equal(t, int64(2_539), shares.Int64())
	require.Equal(t, int64(2_539), amount.Int64())
	require.Empty(t, tracker.Unprocessed())
}

func TestSettleFIFOAcrossEpochs(t *testing.T) {
	tracker := NewTracker()
	tracker.StartEpoch(1)
	require.NoError(t, tracker.AddRedemptionRequest(big.NewInt(1_000)))
	tracker.Settle(big.NewInt(0), SharePrice{Assets: big.NewInt(1), Supply: big.NewInt(1)})

	tracker.StartEpoch(2)
	require.NoError(t, tracker.AddRedemptionRequest(big.NewInt(500)))

	// Liquidity covers the old epoch and part of the new one.
	price := SharePrice{Assets: big.NewInt(2), Supply: big.NewInt(1)}
	shares, amount := tracker.Settle(big.NewInt(1_200), price)
	require.Equal(t, int64(1_200), shares.Int64())
	require.Equal(t, int64(2_400), amount.Int64())

	pending := tracker.Unprocessed()
	require.Len(t, pending, 1)
	require.Equal(t, uint64(2), pending[0].EpochID)
	require.Equal(t, int64(200), pending[0].OutstandingShares().Int64())
	require.Equal(t, int64(300), pending[0].SharesProcessed.Int64())
}

func TestSettleNeverSkipsOlderEpoch(t *testing.T) {
	tracker := NewTracker()
	price := SharePrice{Assets: big.NewInt(1), Supply: big.NewInt(1)}
	for epoch := uint64(1); epoch <= 3; epoch++ {
		tracker.StartEpoch(epoch)
		require.NoError(t, tracker.AddRedemptionRequest(big.NewInt(100)))
		tracker.Settle(big.NewInt(0), price)
	}
	tracker.StartEpoch(4)

	// Drip liquidity in and watch the head of the queue drain in order.
	firstUnprocessed := uint64(1)
	for i := 0; i < 6; i++ {
		tracker.Settle(big.NewInt(50), price)
		pending := tracker.Unprocessed()
		if len(pending) == 0 {
			break
		}
		require.GreaterOrEqual(t, pending[0].EpochID, firstUnprocessed)
		firstUnprocessed = pending[0].EpochID
		// No later epoch may be fulfilled while the head is outstanding.
		for _, s := range pending[1:] {
			require.Equal(t, int64(0), s.SharesProcessed.Int64())
		}
	}
	require.Empty(t, tracker.Unprocessed())
}

func TestSettleInvariantSharesProcessedBounded(t *testing.T) {
	tracker := NewTracker()
	tracker.StartEpoch(1)
	require.NoError(t, tracker.AddRedemptionRequest(big.NewInt(100)))
	price := SharePrice{Assets: big.NewInt(3), Supply: big.NewInt(2)}
	shares, _ := tracker.Settle(big.NewInt(1_000_000), price)
	require.Equal(t, int64(100), shares.Int64())
	require.Empty(t, tracker.Unprocessed())
}
