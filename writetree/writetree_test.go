package writetree

import (
	"testing"

	"github.com/jsayol/firebase-js-sdk/treenode"
	"github.com/jsayol/firebase-js-sdk/treepath"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddOverwriteRejectsNonMonotonicID(t *testing.T) {
	var tr = New()
	require.NoError(t, tr.AddOverwrite(treepath.Empty, treenode.NewLeaf(1.0), 5, true))
	assert.Error(t, tr.AddOverwrite(treepath.Empty, treenode.NewLeaf(2.0), 5, true))
	assert.Error(t, tr.AddOverwrite(treepath.Empty, treenode.NewLeaf(2.0), 4, true))
}

func TestCalcCompleteEventCacheLayersOverwrite(t *testing.T) {
	var tr = New()
	require.NoError(t, tr.AddOverwrite(treepath.Parse("a"), treenode.NewLeaf(9.0), 1, true))

	var base treenode.Node = treenode.Empty()
	base = base.UpdateImmediateChild("a", treenode.NewLeaf(1.0))
	base = base.UpdateImmediateChild("b", treenode.NewLeaf(2.0))

	var node, ok = tr.ChildWrites(treepath.Empty).CalcCompleteEventCache(base)
	require.True(t, ok)
	assert.Equal(t, 9.0, node.GetImmediateChild("a").Value())
	assert.Equal(t, 2.0, node.GetImmediateChild("b").Value())
}

func TestCalcCompleteEventCacheAppliesMerge(t *testing.T) {
	var tr = New()
	require.NoError(t, tr.AddMerge(treepath.Empty, map[string]treenode.Node{
		"a": treenode.NewLeaf(9.0),
	}, 1))

	var base treenode.Node = treenode.Empty()
	base = base.UpdateImmediateChild("a", treenode.NewLeaf(1.0))
	base = base.UpdateImmediateChild("b", treenode.NewLeaf(2.0))

	var node, ok = tr.ChildWrites(treepath.Empty).CalcCompleteEventCache(base)
	require.True(t, ok)
	assert.Equal(t, 9.0, node.GetImmediateChild("a").Value())
	assert.Equal(t, 2.0, node.GetImmediateChild("b").Value())
}

func TestHiddenWritesDoNotAffectEventCache(t *testing.T) {
	var tr = New()
	require.NoError(t, tr.AddOverwrite(treepath.Empty, treenode.NewLeaf(9.0), 1, false))

	var node, ok = tr.ChildWrites(treepath.Empty).CalcCompleteEventCache(treenode.NewLeaf(1.0))
	require.True(t, ok)
	assert.Equal(t, 1.0, node.Value())
}

func TestChildWritesNarrowsPath(t *testing.T) {
	var tr = New()
	require.NoError(t, tr.AddOverwrite(treepath.Parse("a/b"), treenode.NewLeaf(5.0), 1, true))

	var child = tr.ChildWrites(treepath.Parse("a"))
	var node, ok = child.CalcCompleteEventCache(treenode.Empty())
	require.True(t, ok)
	assert.Equal(t, 5.0, node.GetImmediateChild("b").Value())
}

func TestRemoveWriteReportsVisibility(t *testing.T) {
	var tr = New()
	require.NoError(t, tr.AddOverwrite(treepath.Empty, treenode.NewLeaf(1.0), 1, true))
	require.NoError(t, tr.AddOverwrite(treepath.Empty, treenode.NewLeaf(2.0), 2, false))

	assert.True(t, tr.RemoveWrite(1))
	assert.False(t, tr.RemoveWrite(2))

	var _, ok = tr.GetWrite(1)
	assert.False(t, ok)
}
