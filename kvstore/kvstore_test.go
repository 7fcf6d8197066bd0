package kvstore

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySetGetRemove(t *testing.T) {
	var ctx = context.Background()
	var m = NewMemory()

	require.NoError(t, m.Set(ctx, "a/1", []byte("x")))
	require.NoError(t, m.Set(ctx, "a/2", []byte("y")))
	require.NoError(t, m.Set(ctx, "b/1", []byte("z")))

	var v, ok, err = m.Get(ctx, "a/1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("x"), v)

	var all, allErr = m.GetAll(ctx, "a/")
	require.NoError(t, allErr)
	assert.Len(t, all, 2)

	require.NoError(t, m.Remove(ctx, "a/1"))
	var _, ok2, _ = m.Get(ctx, "a/1")
	assert.False(t, ok2)

	var count, _ = m.Count(ctx)
	assert.Equal(t, 2, count)
}

func TestMemoryRemovePrefixed(t *testing.T) {
	var ctx = context.Background()
	var m = NewMemory()
	require.NoError(t, m.Set(ctx, "a/1", []byte("x")))
	require.NoError(t, m.Set(ctx, "a/2", []byte("y")))
	require.NoError(t, m.Set(ctx, "b/1", []byte("z")))

	require.NoError(t, m.RemovePrefixed(ctx, "a/"))
	var count, _ = m.Count(ctx)
	assert.Equal(t, 1, count)
}

func TestMemoryWriteBatchIsAtomicOnSuccess(t *testing.T) {
	var ctx = context.Background()
	var m = NewMemory()
	var b = m.WriteBatch()
	b.Set("a", []byte("1"))
	b.Set("b", []byte("2"))
	b.Remove("a")
	require.NoError(t, b.Run(ctx))

	var _, ok, _ = m.Get(ctx, "a")
	assert.False(t, ok)
	var v, ok2, _ = m.Get(ctx, "b")
	require.True(t, ok2)
	assert.Equal(t, []byte("2"), v)
}

func TestAferoSetGetRemove(t *testing.T) {
	var ctx = context.Background()
	var a = NewAfero(afero.NewMemMapFs(), "store")

	require.NoError(t, a.Set(ctx, "a/1", []byte("x")))
	require.NoError(t, a.Set(ctx, "a/2", []byte("y")))

	var v, ok, err = a.Get(ctx, "a/1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("x"), v)

	var all, allErr = a.GetAll(ctx, "a/")
	require.NoError(t, allErr)
	assert.Len(t, all, 2)

	require.NoError(t, a.Remove(ctx, "a/1"))
	var _, ok2, _ = a.Get(ctx, "a/1")
	assert.False(t, ok2)
}

func TestAferoGetMissingKeyIsNotError(t *testing.T) {
	var a = NewAfero(afero.NewMemMapFs(), "store")
	var _, ok, err = a.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}
