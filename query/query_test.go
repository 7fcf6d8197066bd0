package query

import (
	"testing"

	"github.com/jsayol/firebase-js-sdk/treenode"
	"github.com/jsayol/firebase-js-sdk/treepath"
	"github.com/stretchr/testify/assert"
)

func TestDefaultIdentifier(t *testing.T) {
	var q = DefaultAtPath(treepath.Parse("a/b"))
	assert.True(t, q.IsDefault())
	assert.True(t, q.LoadsAllData())
	assert.Equal(t, DefaultIdentifier, q.Identifier())
}

func TestFilteredIdentifierDiffers(t *testing.T) {
	var q1 = New(treepath.Empty, Params{Limit: &Limit{N: 2}})
	var q2 = New(treepath.Empty, Params{Limit: &Limit{N: 3}})

	assert.NotEqual(t, q1.Identifier(), q2.Identifier())
	assert.False(t, q1.IsDefault())
	assert.False(t, q1.LoadsAllData())
}

func TestNormalizePromotesLoadsAllDataToDefault(t *testing.T) {
	var q = New(treepath.Parse("x"), Params{Index: Index{Kind: PriorityIndex}})
	assert.True(t, q.LoadsAllData())
	assert.False(t, q.IsDefault())

	var n = q.Normalize()
	assert.True(t, n.IsDefault())
	assert.Equal(t, "x", must(n.Path().Front()))
}

func must(s string, ok bool) string {
	if !ok {
		return ""
	}
	return s
}

func buildList() treenode.Node {
	var n treenode.Node = treenode.Empty()
	n = n.UpdateImmediateChild("a", treenode.NewLeaf(1.0))
	n = n.UpdateImmediateChild("b", treenode.NewLeaf(2.0))
	n = n.UpdateImmediateChild("c", treenode.NewLeaf(3.0))
	n = n.UpdateImmediateChild("d", treenode.NewLeaf(4.0))
	return n
}

func TestFilterLimitToFirst(t *testing.T) {
	var q = New(treepath.Empty, Params{Limit: &Limit{N: 2}})
	var filtered = q.Filter(buildList())

	var keys []string
	filtered.ForEachChild(nil, false, func(k string, _ treenode.Node) bool {
		keys = append(keys, k)
		return true
	})
	assert.Equal(t, []string{"a", "b"}, keys)
}

func TestFilterLimitToLast(t *testing.T) {
	var q = New(treepath.Empty, Params{Limit: &Limit{N: 2, Reverse: true}})
	var filtered = q.Filter(buildList())

	var keys []string
	filtered.ForEachChild(nil, false, func(k string, _ treenode.Node) bool {
		keys = append(keys, k)
		return true
	})
	assert.Equal(t, []string{"c", "d"}, keys)
}

func TestFilterRangeByValue(t *testing.T) {
	var q = New(treepath.Empty, Params{
		Index: Index{Kind: ValueIndex},
		Start: &Bound{Value: 2.0, Inclusive: true},
		End:   &Bound{Value: 3.0, Inclusive: true},
	})
	var filtered = q.Filter(buildList())
	assert.Equal(t, 2, filtered.NumChildren())
	assert.True(t, filtered.HasChild("b"))
	assert.True(t, filtered.HasChild("c"))
}

func TestFilterUnfilteredQueryIsNoOp(t *testing.T) {
	var q = DefaultAtPath(treepath.Empty)
	var n = buildList()
	assert.True(t, q.Filter(n).Equal(n))
}

func TestQueryKeyFormat(t *testing.T) {
	var q = New(treepath.Parse("a/b"), Params{Limit: &Limit{N: 1}})
	assert.Equal(t, q.Path().String()+"$"+q.Identifier(), q.QueryKey())
}
