package pooldb

import (
	"math/big"
	"path/filepath"
	"testing"
	"time"

	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"tranchepool/native/epoch"
	"tranchepool/native/firstloss"
	"tranchepool/native/tranche"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "pool.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, store.Close()) })
	return store
}

func TestPoolStateRoundTrip(t *testing.T) {
	store := openTestStore(t)

	missing, err := store.GetPoolState()
	require.NoError(t, err)
	require.Nil(t, missing)

	state := epoch.NewPoolState()
	state.Current = &epoch.Epoch{
		ID:      7,
		EndTime: time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC),
	}
	state.Assets = tranche.NewAssets(big.NewInt(10_000), big.NewInt(400_000))
	state.SeniorSupply = big.NewInt(10_000)
	state.JuniorSupply = big.NewInt(400_000)
	state.Senior.StartEpoch(7)
	require.NoError(t, state.Senior.AddRedemptionRequest(big.NewInt(2_539)))

	require.NoError(t, store.PutPoolState(state))

	loaded, err := store.GetPoolState()
	require.NoError(t, err)
	require.Equal(t, uint64(7), loaded.Current.ID)
	require.Equal(t, state.Current.EndTime, loaded.Current.EndTime.UTC())
	require.Equal(t, big.NewInt(10_000), loaded.Assets.Senior)
	require.Equal(t, big.NewInt(400_000), loaded.Assets.Junior)
	require.Equal(t, big.NewInt(2_539), loaded.Senior.PendingShares())
}

func TestCoverStateRoundTrip(t *testing.T) {
	store := openTestStore(t)

	missing, err := store.GetCoverState("borrower")
	require.NoError(t, err)
	require.Nil(t, missing)

	provider := gethcommon.BytesToAddress([]byte{0xAA})
	state := firstloss.NewState()
	state.TotalAssets = big.NewInt(1_000)
	state.TotalShares = big.NewInt(1_000)
	state.CoveredLoss = big.NewInt(250)
	state.Providers[provider] = big.NewInt(1_000)

	require.NoError(t, store.PutCoverState("borrower", state))

	loaded, err := store.GetCoverState("borrower")
	require.NoError(t, err)
	require.Equal(t, big.NewInt(1_000), loaded.TotalAssets)
	require.Equal(t, big.NewInt(250), loaded.CoveredLoss)
	require.Equal(t, big.NewInt(1_000), loaded.Providers[provider])

	// Cover states are keyed by name.
	other, err := store.GetCoverState("admin")
	require.NoError(t, err)
	require.Nil(t, other)
}

func TestStoreBacksEpochManager(t *testing.T) {
	store := openTestStore(t)

	var mgrState interface {
		GetPoolState() (*epoch.PoolState, error)
		PutPoolState(*epoch.PoolState) error
	} = store
	var coverState interface {
		GetCoverState(string) (*firstloss.State, error)
		PutCoverState(string, *firstloss.State) error
	} = store

	state := epoch.NewPoolState()
	require.NoError(t, mgrState.PutPoolState(state))
	require.NoError(t, coverState.PutCoverState("borrower", firstloss.NewState()))
}
