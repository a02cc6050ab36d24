package kvstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dave-morgan/signalkv/errors"
)

// RunEngineTests runs the shared Engine contract suite against the engine
// produced by open. Backend packages call this from their own tests so every
// engine satisfies the same semantics.
func RunEngineTests(t *testing.T, open func(t *testing.T) Engine) {
	ctx := context.Background()

	t.Run("GetMissing", func(t *testing.T) {
		eng := open(t)
		_, err := eng.Get(ctx, "missing")
		require.Error(t, err)
		require.True(t, errors.IsNotFound(err))
	})

	t.Run("SetGetRoundTrip", func(t *testing.T) {
		eng := open(t)
		require.NoError(t, eng.Set(ctx, "alpha", []byte("one")))
		value, err := eng.Get(ctx, "alpha")
		require.NoError(t, err)
		require.Equal(t, []byte("one"), value)

		// Overwrite
		require.NoError(t, eng.Set(ctx, "alpha", []byte("two")))
		value, err = eng.Get(ctx, "alpha")
		require.NoError(t, err)
		require.Equal(t, []byte("two"), value)
	})

	t.Run("DeleteIsIdempotent", func(t *testing.T) {
		eng := open(t)
		require.NoError(t, eng.Set(ctx, "alpha", []byte("one")))
		require.NoError(t, eng.Delete(ctx, "alpha"))
		require.NoError(t, eng.Delete(ctx, "alpha"))
		_, err := eng.Get(ctx, "alpha")
		require.True(t, errors.IsNotFound(err))
	})

	t.Run("KeysAndCount", func(t *testing.T) {
		eng := open(t)
		require.NoError(t, eng.Set(ctx, "a", []byte("1")))
		require.NoError(t, eng.Set(ctx, "b", []byte("2")))
		require.NoError(t, eng.Set(ctx, "c", []byte("3")))

		keys, err := eng.Keys(ctx)
		require.NoError(t, err)
		require.ElementsMatch(t, []string{"a", "b", "c"}, keys)

		n, err := eng.Count(ctx)
		require.NoError(t, err)
		require.Equal(t, 3, n)
	})

	t.Run("Contains", func(t *testing.T) {
		eng := open(t)
		require.NoError(t, eng.Set(ctx, "present", []byte("x")))

		exists, err := eng.Contains(ctx, "present")
		require.NoError(t, err)
		require.True(t, exists)

		exists, err = eng.Contains(ctx, "absent")
		require.NoError(t, err)
		require.False(t, exists)
	})

	t.Run("Clear", func(t *testing.T) {
		eng := open(t)
		require.NoError(t, eng.Set(ctx, "a", []byte("1")))
		require.NoError(t, eng.Set(ctx, "b", []byte("2")))
		require.NoError(t, eng.Clear(ctx))

		n, err := eng.Count(ctx)
		require.NoError(t, err)
		require.Equal(t, 0, n)

		_, err = eng.Get(ctx, "a")
		require.True(t, errors.IsNotFound(err))
	})

	t.Run("TotalSize", func(t *testing.T) {
		eng := open(t)
		require.NoError(t, eng.Set(ctx, "sized", []byte("0123456789")))
		size, err := eng.TotalSize(ctx)
		require.NoError(t, err)
		require.GreaterOrEqual(t, size, int64(0))
	})

	t.Run("EmptyValueSurvives", func(t *testing.T) {
		eng := open(t)
		require.NoError(t, eng.Set(ctx, "empty", nil))
		value, err := eng.Get(ctx, "empty")
		require.NoError(t, err)
		require.Empty(t, value)
	})
}
