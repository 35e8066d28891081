package policystore

import (
	"context"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"rebasechain/native/policy"
	"rebasechain/state"
	"rebasechain/state/ledger"
	"rebasechain/storage"
)

var (
	admin        = ethcommon.HexToAddress("0x00000000000000000000000000000000000000a1")
	orchestrator = ethcommon.HexToAddress("0x00000000000000000000000000000000000000b2")
)

func TestStoreRoundTrip(t *testing.T) {
	store := New(state.NewKV(storage.NewMemDB()))

	_, ok, err := store.LoadPolicyState()
	require.NoError(t, err)
	require.False(t, ok)

	want := policy.DefaultState(admin)
	want.Orchestrator = orchestrator
	want.Epoch = 12
	want.LastRebaseTimestampSec = 1_699_992_000
	want.RebaseWindowLengthSec = 0
	require.NoError(t, store.SavePolicyState(want))

	got, ok, err := store.LoadPolicyState()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, *want, *got)

	require.Error(t, store.SavePolicyState(nil))
}

// TestEngineSurvivesRestart drives a rebase against LevelDB, reopens the
// database and checks that the engine and ledger resume where they left off.
func TestEngineSurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db")
	now := time.Unix(1_699_920_000+72_000+5, 0).UTC()
	clock := func() time.Time { return now }

	db, err := storage.NewLevelDB(path)
	require.NoError(t, err)
	kv := state.NewKV(db)
	book := ledger.New(kv, "AMPL", nil)
	_, err = book.Genesis(big.NewInt(20_000))
	require.NoError(t, err)

	engine, err := policy.Initialize(admin, book,
		policy.WithStore(New(kv)),
		policy.WithNowFunc(clock),
		policy.WithMetrics(nil))
	require.NoError(t, err)
	require.NoError(t, engine.SetOrchestrator(admin, orchestrator))
	result, err := engine.Rebase(context.Background(), orchestrator)
	require.NoError(t, err)
	require.Equal(t, uint64(1), result.Epoch)
	require.NoError(t, db.Close())

	db, err = storage.NewLevelDB(path)
	require.NoError(t, err)
	defer db.Close()
	kv = state.NewKV(db)
	book = ledger.New(kv, "AMPL", nil)
	restored, err := policy.Initialize(admin, book,
		policy.WithStore(New(kv)),
		policy.WithNowFunc(clock),
		policy.WithMetrics(nil))
	require.NoError(t, err)
	require.Equal(t, uint64(1), restored.Epoch())
	require.Equal(t, orchestrator, restored.Orchestrator())
	require.Equal(t, uint64(1_699_920_000+72_000), restored.LastRebaseTimestampSec())

	_, err = restored.Rebase(context.Background(), orchestrator)
	require.ErrorIs(t, err, policy.ErrTooSoon)

	epoch, supply, err := restored.GlobalStateView()
	require.NoError(t, err)
	require.Equal(t, uint64(1), epoch)
	require.Equal(t, 0, supply.Cmp(big.NewInt(20_038)))
}
