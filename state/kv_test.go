package state

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"rebasechain/storage"
)

type record struct {
	Total *big.Int
	Epoch uint64
}

func TestKVRoundTrip(t *testing.T) {
	kv := NewKV(storage.NewMemDB())

	var out record
	ok, err := kv.KVGet([]byte("missing"), &out)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, kv.KVPut([]byte("supply"), record{Total: big.NewInt(20038), Epoch: 1}))
	ok, err = kv.KVGet([]byte("supply"), &out)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(1), out.Epoch)
	require.Equal(t, 0, out.Total.Cmp(big.NewInt(20038)))

	ok, err = kv.KVGet([]byte("supply"), nil)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestKVRejectsEmptyKey(t *testing.T) {
	kv := NewKV(storage.NewMemDB())
	require.Error(t, kv.KVPut(nil, uint64(1)))
	_, err := kv.KVGet(nil, nil)
	require.Error(t, err)
}
