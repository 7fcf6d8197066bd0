package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsayol/firebase-js-sdk/cachepolicy"
	"github.com/jsayol/firebase-js-sdk/kvstore"
	"github.com/jsayol/firebase-js-sdk/query"
	"github.com/jsayol/firebase-js-sdk/treenode"
	"github.com/jsayol/firebase-js-sdk/treepath"
)

func newTestManager(t *testing.T, policy cachepolicy.Policy) *Manager {
	t.Helper()
	var server, err = NewServerCacheStore(kvstore.NewMemory(), 16)
	require.NoError(t, err)
	var users = NewUserWriteStore(kvstore.NewMemory())
	var queries = NewTrackedQueryStore(kvstore.NewMemory())
	var m = NewManager(server, users, queries, policy)
	// the tracked query manager loads asynchronously off an empty store;
	// give it a moment so SetActive/Find calls below observe it loaded.
	time.Sleep(10 * time.Millisecond)
	return m
}

func TestApplyServerOverwriteThenGetServerCacheReturnsComplete(t *testing.T) {
	var ctx = context.Background()
	var m = newTestManager(t, nil)
	var path = treepath.Parse("rooms/1")
	var q = query.DefaultAtPath(path)

	require.NoError(t, m.ApplyServerOverwrite(ctx, treenode.NodeFrom(map[string]interface{}{"name": "a"}), q))

	var cache, err = m.GetServerCache(ctx, q).Wait()
	require.NoError(t, err)
	assert.True(t, cache.FullyInitialized)
	assert.Equal(t, "a", cache.GetNode().GetImmediateChild("name").Value())
}

func TestGetServerCacheIncompleteUsesKnownCompleteChildren(t *testing.T) {
	var ctx = context.Background()
	var m = newTestManager(t, nil)
	var childPath = treepath.Parse("rooms/1/messages/a")
	var childQ = query.DefaultAtPath(childPath)

	require.NoError(t, m.ApplyServerOverwrite(ctx, treenode.NodeFrom("hi"), childQ))

	var parentQ = query.DefaultAtPath(treepath.Parse("rooms/1/messages"))
	var cache, err = m.GetServerCache(ctx, parentQ).Wait()
	require.NoError(t, err)
	assert.False(t, cache.FullyInitialized)
	assert.Equal(t, "hi", cache.GetNode().GetImmediateChild("a").Value())
}

func TestApplyUserWriteOnlyAffectsCacheWithActiveDefault(t *testing.T) {
	var ctx = context.Background()
	var m = newTestManager(t, nil)
	var path = treepath.Parse("rooms/1")

	require.NoError(t, m.ApplyUserWrite(ctx, treenode.NodeFrom("x"), path))
	var cache1, _ = m.GetServerCache(ctx, query.DefaultAtPath(path)).Wait()
	assert.False(t, cache1.FullyInitialized)

	m.SetQueryActive(query.DefaultAtPath(path))
	require.NoError(t, m.ApplyUserWrite(ctx, treenode.NodeFrom("x"), path))

	var cache2, _ = m.GetServerCache(ctx, query.DefaultAtPath(path)).Wait()
	assert.True(t, cache2.FullyInitialized)
	assert.Equal(t, "x", cache2.GetNode().Value())
}

func TestSaveAndRemoveUserWriteRoundTrips(t *testing.T) {
	var ctx = context.Background()
	var m = newTestManager(t, nil)
	var path = treepath.Parse("a/b")

	require.NoError(t, m.SaveUserOverwrite(ctx, path, treenode.NodeFrom("v"), 3))
	var writes, err = m.GetUserWrites(ctx)
	require.NoError(t, err)
	require.Len(t, writes, 1)
	assert.EqualValues(t, 3, writes[0].ID)

	require.NoError(t, m.RemoveUserWrite(ctx, 3))
	writes, err = m.GetUserWrites(ctx)
	require.NoError(t, err)
	assert.Empty(t, writes)
}

type alwaysPrunePolicy struct{}

func (alwaysPrunePolicy) PercentQueriesPruneAtOnce() float64 { return 1 }
func (alwaysPrunePolicy) MaxPrunableQueriesToKeep() int      { return 0 }
func (alwaysPrunePolicy) ShouldPrune(int64, int) bool        { return true }
func (alwaysPrunePolicy) ShouldCheckSize(int) bool           { return true }

func TestPruneCheckEvictsInactiveTrackedQueries(t *testing.T) {
	var ctx = context.Background()
	var m = newTestManager(t, alwaysPrunePolicy{})
	var path = treepath.Parse("rooms/old")
	var q = query.DefaultAtPath(path)

	require.NoError(t, m.ApplyServerOverwrite(ctx, treenode.NodeFrom("v"), q))
	m.pruneCheck(ctx)

	// give the background prune goroutine a moment to run.
	time.Sleep(50 * time.Millisecond)

	var cache, err = m.GetServerCache(ctx, q).Wait()
	require.NoError(t, err)
	assert.False(t, cache.FullyInitialized)
}
