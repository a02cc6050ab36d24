package kvstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dave-morgan/signalkv/errors"
)

func TestMemoryEngine_Contract(t *testing.T) {
	RunEngineTests(t, func(_ *testing.T) Engine {
		return NewMemoryEngine()
	})
}

func TestMemoryEngine_KeysPreserveInsertionOrder(t *testing.T) {
	ctx := context.Background()
	eng := NewMemoryEngine()

	for _, k := range []string{"c", "a", "b"} {
		require.NoError(t, eng.Set(ctx, k, []byte(k)))
	}
	// Overwriting must not move a key.
	require.NoError(t, eng.Set(ctx, "c", []byte("c2")))

	keys, err := eng.Keys(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"c", "a", "b"}, keys)

	require.NoError(t, eng.Delete(ctx, "a"))
	keys, err = eng.Keys(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"c", "b"}, keys)
}

func TestMemoryEngine_Closed(t *testing.T) {
	ctx := context.Background()
	eng := NewMemoryEngine()
	require.NoError(t, eng.Close())

	err := eng.Set(ctx, "k", []byte("v"))
	require.ErrorIs(t, err, errors.ErrEngineClosed)

	_, err = eng.Get(ctx, "k")
	require.ErrorIs(t, err, errors.ErrEngineClosed)
}

func TestMemoryEngine_ValueIsolation(t *testing.T) {
	ctx := context.Background()
	eng := NewMemoryEngine()

	buf := []byte("original")
	require.NoError(t, eng.Set(ctx, "k", buf))
	buf[0] = 'X'

	value, err := eng.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, []byte("original"), value, "engine must copy stored values")

	value[0] = 'Y'
	again, err := eng.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, []byte("original"), again, "returned values must be copies")
}
