package prune

import (
	"testing"

	"github.com/jsayol/firebase-js-sdk/treepath"
	"github.com/stretchr/testify/assert"
)

func TestShouldPruneUsesLeafMostMark(t *testing.T) {
	var f = New()
	f.Prune(treepath.Parse("a"))
	f.Keep(treepath.Parse("a/b"))

	assert.True(t, f.ShouldPruneUnkeptDescendants(treepath.Parse("a/c")))
	assert.False(t, f.ShouldPruneUnkeptDescendants(treepath.Parse("a/b")))
	assert.False(t, f.ShouldPruneUnkeptDescendants(treepath.Parse("a/b/d")))
}

func TestPrunePathFailsUnderKeptSubtree(t *testing.T) {
	var f = New()
	f.Keep(treepath.Parse("a"))

	assert.False(t, f.PrunePath(treepath.Parse("a/b")))
	assert.True(t, f.PrunePath(treepath.Parse("c")))
}

func TestPrunesAnything(t *testing.T) {
	var f = New()
	assert.False(t, f.PrunesAnything())
	f.Keep(treepath.Parse("a"))
	assert.False(t, f.PrunesAnything())
	f.Prune(treepath.Parse("b"))
	assert.True(t, f.PrunesAnything())
}
