package treenode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmptyNodeIsEmpty(t *testing.T) {
	assert.True(t, Empty().IsEmpty())
	assert.True(t, IsEmptyNode(nil))
}

func TestUpdateImmediateChildRoundTrips(t *testing.T) {
	var n = Empty().UpdateImmediateChild("a", NewLeaf("x"))
	require.False(t, n.IsEmpty())
	assert.Equal(t, "x", n.GetImmediateChild("a").Value())
	assert.True(t, n.HasChild("a"))
	assert.False(t, n.HasChild("b"))
}

func TestUpdateImmediateChildWithEmptyRemoves(t *testing.T) {
	var n = Empty().UpdateImmediateChild("a", NewLeaf("x"))
	n = n.UpdateImmediateChild("a", Empty())
	assert.True(t, n.IsEmpty())
}

func TestLeafPromotesToChildrenOnChildUpdate(t *testing.T) {
	var leaf Node = NewLeaf("scalar")
	var n = leaf.UpdateImmediateChild("child", NewLeaf(1.0))

	assert.False(t, n.IsLeaf())
	assert.Equal(t, 1.0, n.GetImmediateChild("child").Value())
}

func TestForEachChildKeyOrderWithNumericKeys(t *testing.T) {
	var n = Empty().
		UpdateImmediateChild("10", NewLeaf("ten")).
		UpdateImmediateChild("2", NewLeaf("two")).
		UpdateImmediateChild("b", NewLeaf("bee")).
		UpdateImmediateChild("a", NewLeaf("ay"))

	var order []string
	n.ForEachChild(nil, false, func(key string, _ Node) bool {
		order = append(order, key)
		return true
	})
	assert.Equal(t, []string{"2", "10", "a", "b"}, order)
}

func TestForEachChildEarlyStop(t *testing.T) {
	var n = Empty().UpdateImmediateChild("a", NewLeaf(1.0)).UpdateImmediateChild("b", NewLeaf(2.0))

	var seen int
	var completed = n.ForEachChild(nil, false, func(string, Node) bool {
		seen++
		return false
	})
	assert.False(t, completed)
	assert.Equal(t, 1, seen)
}

func TestEqualStructural(t *testing.T) {
	var a = Empty().UpdateImmediateChild("x", NewLeaf(1.0))
	var b = Empty().UpdateImmediateChild("x", NewLeaf(1.0))
	var c = Empty().UpdateImmediateChild("x", NewLeaf(2.0))

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestHashStableAndSensitive(t *testing.T) {
	var a = Empty().UpdateImmediateChild("x", NewLeaf(1.0))
	var b = Empty().UpdateImmediateChild("x", NewLeaf(1.0))
	var c = Empty().UpdateImmediateChild("x", NewLeaf(2.0))

	assert.Equal(t, a.Hash(), b.Hash())
	assert.NotEqual(t, a.Hash(), c.Hash())
}

func TestNodeFromJSONRoundTrip(t *testing.T) {
	var v = map[string]interface{}{
		"a": "x",
		"b": map[string]interface{}{"c": 1.0},
	}
	var n = NodeFrom(v)
	assert.Equal(t, "x", n.GetImmediateChild("a").Value())
	assert.Equal(t, 1.0, n.GetImmediateChild("b").GetImmediateChild("c").Value())
	assert.Equal(t, v, n.Export())
}

func TestNodeFromJSONWithPriority(t *testing.T) {
	var v = map[string]interface{}{
		".value":    "x",
		".priority": 5.0,
	}
	var n = NodeFrom(v)
	assert.Equal(t, "x", n.Value())
	assert.Equal(t, NumPrio(5.0), n.Priority())
}

func TestExportWithPriorityWrapsLeaf(t *testing.T) {
	var n = NewLeafWithPriority("x", NumPrio(3.0))
	assert.Equal(t, map[string]interface{}{".value": "x", ".priority": 3.0}, n.ExportWithPriority())
}
