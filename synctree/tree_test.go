package synctree

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsayol/firebase-js-sdk/event"
	"github.com/jsayol/firebase-js-sdk/query"
	"github.com/jsayol/firebase-js-sdk/treenode"
	"github.com/jsayol/firebase-js-sdk/treepath"
)

func TestUserOverwriteVisibleThenRevertedOnAck(t *testing.T) {
	var tree = New(nil, nil)
	var path = treepath.Parse("a")

	var received []event.Event
	var reg = &event.CallbackRegistration{ID: "r", Callback: func(e event.Event) { received = append(received, e) }}
	tree.AddEventRegistration(context.Background(), query.DefaultAtPath(path), reg)

	var _, err = tree.ApplyServerOverwrite(context.Background(), path, treenode.NodeFrom(map[string]interface{}{"x": float64(1)}))
	require.NoError(t, err)
	_, err = tree.ApplyServerListenComplete(context.Background(), path)
	require.NoError(t, err)

	received = nil
	var writeEvents, writeErr = tree.ApplyUserOverwrite(context.Background(), path.Child("y"), treenode.NodeFrom(float64(2)), 1, true)
	require.NoError(t, writeErr)
	for _, e := range writeEvents {
		reg.Deliver(e)
	}
	var sawAdd bool
	for _, e := range received {
		if e.Type == event.ChildAdded {
			if k, ok := e.Path.Back(); ok && k == "y" {
				sawAdd = true
			}
		}
	}
	assert.True(t, sawAdd, "overlaying a pending write must emit a child_added for the new key")

	received = nil
	var ackEvents, ackErr = tree.AckUserWrite(context.Background(), 1, true)
	require.NoError(t, ackErr)
	for _, e := range ackEvents {
		reg.Deliver(e)
	}
	var sawRemove bool
	for _, e := range received {
		if e.Type == event.ChildRemoved {
			if k, ok := e.Path.Back(); ok && k == "y" {
				sawRemove = true
			}
		}
	}
	assert.True(t, sawRemove, "reverting an acknowledged write must emit a child_removed for the now-gone key")
}

func TestApplyServerMergeUpdatesMultipleChildren(t *testing.T) {
	var tree = New(nil, nil)
	var path = treepath.Parse("a")
	tree.AddEventRegistration(context.Background(), query.DefaultAtPath(path), &event.CallbackRegistration{ID: "r"})

	var _, err = tree.ApplyServerOverwrite(context.Background(), path, treenode.NodeFrom(map[string]interface{}{"x": float64(1)}))
	require.NoError(t, err)
	_, err = tree.ApplyServerListenComplete(context.Background(), path)
	require.NoError(t, err)

	var mergeEvents, mergeErr = tree.ApplyServerMerge(context.Background(), path, map[string]treenode.Node{
		"y": treenode.NodeFrom(float64(2)),
	})
	require.NoError(t, mergeErr)
	_ = mergeEvents

	var merged, ok = tree.CalcCompleteEventCache(path, nil)
	require.True(t, ok)
	assert.Equal(t, float64(1), merged.GetImmediateChild("x").Value())
	assert.Equal(t, float64(2), merged.GetImmediateChild("y").Value())
}

func TestCalcCompleteEventCacheOverlaysHiddenWrites(t *testing.T) {
	var tree = New(nil, nil)
	var path = treepath.Parse("a")
	tree.AddEventRegistration(context.Background(), query.DefaultAtPath(path), &event.CallbackRegistration{ID: "r"})

	var _, err = tree.ApplyServerOverwrite(context.Background(), path, treenode.Empty())
	require.NoError(t, err)
	_, err = tree.ApplyServerListenComplete(context.Background(), path)
	require.NoError(t, err)

	_, err = tree.ApplyUserOverwrite(context.Background(), path.Child("hidden"), treenode.NodeFrom(float64(9)), 1, false)
	require.NoError(t, err)

	var withHidden, ok = tree.CalcCompleteEventCache(path, nil)
	require.True(t, ok)
	assert.Equal(t, float64(9), withHidden.GetImmediateChild("hidden").Value())

	var excluded, excludedOK = tree.CalcCompleteEventCache(path, map[int64]bool{1: true})
	require.True(t, excludedOK)
	assert.True(t, excluded.GetImmediateChild("hidden").IsEmpty())
}
