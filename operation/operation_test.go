package operation

import (
	"testing"

	"github.com/jsayol/firebase-js-sdk/treenode"
	"github.com/jsayol/firebase-js-sdk/treepath"
	"github.com/stretchr/testify/assert"
)

func TestOverwriteForChildDescendsPath(t *testing.T) {
	var op = NewOverwrite(Server, treepath.Parse("a/b"), treenode.NewLeaf(1.0))

	var child, affected = op.ForChild("a")
	assert.True(t, affected)
	var front, _ = child.Path.Front()
	assert.Equal(t, "b", front)

	_, affected = op.ForChild("x")
	assert.False(t, affected)
}

func TestOverwriteForChildAtTargetSplitsSnap(t *testing.T) {
	var snap treenode.Node = treenode.Empty()
	snap = snap.UpdateImmediateChild("a", treenode.NewLeaf(1.0))
	var op = NewOverwrite(Server, treepath.Empty, snap)

	var child, affected = op.ForChild("a")
	assert.True(t, affected)
	assert.True(t, child.Path.IsEmpty())
	assert.Equal(t, 1.0, child.Snap.Value())

	var missing, ok = op.ForChild("b")
	assert.True(t, ok)
	assert.True(t, missing.Snap.IsEmpty())
}

func TestMergeForChildOnlyAffectsListedKeys(t *testing.T) {
	var op = NewMerge(Server, treepath.Empty, map[string]treenode.Node{
		"a": treenode.NewLeaf(1.0),
	})

	var child, affected = op.ForChild("a")
	assert.True(t, affected)
	assert.Equal(t, 1.0, child.Snap.Value())

	_, affected = op.ForChild("b")
	assert.False(t, affected)
}

func TestAckUserWriteWholeAlwaysPropagates(t *testing.T) {
	var op = NewAckUserWrite(treepath.Empty, WholeAffected(), false)

	var child, affected = op.ForChild("anything")
	assert.True(t, affected)
	assert.True(t, child.Affected.Whole)
}

func TestAckUserWriteMergeFiltersChildPaths(t *testing.T) {
	var op = NewAckUserWrite(treepath.Empty, MergeAffected([]treepath.Path{
		treepath.Parse("a/x"),
		treepath.Parse("b"),
	}), true)

	var child, affected = op.ForChild("a")
	assert.True(t, affected)
	assert.Equal(t, 1, len(child.Affected.ChildPaths))
	var front, _ = child.Affected.ChildPaths[0].Front()
	assert.Equal(t, "x", front)
	assert.True(t, child.Revert)

	_, affected = op.ForChild("c")
	assert.False(t, affected)
}

func TestListenCompleteAlwaysPropagates(t *testing.T) {
	var op = NewListenComplete(Server, treepath.Empty)
	var child, affected = op.ForChild("x")
	assert.True(t, affected)
	assert.Equal(t, ListenComplete, child.Kind)
}
