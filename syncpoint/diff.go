package syncpoint

import (
	"sort"

	"github.com/jsayol/firebase-js-sdk/event"
	"github.com/jsayol/firebase-js-sdk/query"
	"github.com/jsayol/firebase-js-sdk/treenode"
)

// diff compares |before| and |after| under q's ordering and produces the
// Change list in the fixed emission order spec §4.1 requires:
// CHILD_REMOVED, CHILD_ADDED, CHILD_MOVED, CHILD_CHANGED, then a single
// trailing VALUE when relevant. Non-filtered queries always get a VALUE
// change when the node differs; filtered queries only once fully
// initialized, matching spec §4.1.
func diff(q query.Query, before, after treenode.Node, wasComplete, isComplete bool) []event.Change {
	if before == nil {
		before = treenode.Empty()
	}
	if after == nil {
		after = treenode.Empty()
	}
	if before.Equal(after) {
		return nil
	}

	var cmp = q.Params().Index.Comparator()

	var oldOrder = orderedKeys(before, cmp)
	var newOrder = orderedKeys(after, cmp)
	var oldPos = positions(oldOrder)
	var newPos = positions(newOrder)

	var changes []event.Change

	for _, k := range oldOrder {
		if _, ok := newPos[k]; !ok {
			changes = append(changes, event.Change{Type: event.ChildRemoved, ChildKey: k, Node: before.GetImmediateChild(k)})
		}
	}

	for i, k := range newOrder {
		if _, ok := oldPos[k]; !ok {
			changes = append(changes, event.Change{Type: event.ChildAdded, ChildKey: k, Node: after.GetImmediateChild(k), PrevChildKey: prevOf(newOrder, i)})
		}
	}

	for i, k := range newOrder {
		if _, ok := oldPos[k]; !ok {
			continue
		}
		var newChild = after.GetImmediateChild(k)
		var moved = movedRelativeOrder(oldOrder, newOrder, k)
		if moved {
			changes = append(changes, event.Change{Type: event.ChildMoved, ChildKey: k, Node: newChild, PrevChildKey: prevOf(newOrder, i)})
		}
	}

	for i, k := range newOrder {
		if _, ok := oldPos[k]; !ok {
			continue
		}
		var oldChild = before.GetImmediateChild(k)
		var newChild = after.GetImmediateChild(k)
		if !oldChild.Equal(newChild) {
			changes = append(changes, event.Change{Type: event.ChildChanged, ChildKey: k, Node: newChild, PrevChildKey: prevOf(newOrder, i)})
		}
	}

	if !q.IsFiltered() || isComplete {
		changes = append(changes, event.Change{Type: event.ValueChanged, Node: after})
	}

	sort.SliceStable(changes, func(i, j int) bool {
		return event.Ordering(changes[i].Type) < event.Ordering(changes[j].Type)
	})
	return changes
}

func orderedKeys(n treenode.Node, cmp treenode.Comparator) []string {
	var keys []string
	n.ForEachChild(cmp, false, func(k string, _ treenode.Node) bool {
		keys = append(keys, k)
		return true
	})
	return keys
}

func positions(order []string) map[string]int {
	var m = make(map[string]int, len(order))
	for i, k := range order {
		m[k] = i
	}
	return m
}

func prevOf(order []string, i int) string {
	if i == 0 {
		return ""
	}
	return order[i-1]
}

// movedRelativeOrder reports whether k's predecessor in |newOrder| (among
// keys common to both orders) differs from its predecessor in |oldOrder|.
func movedRelativeOrder(oldOrder, newOrder []string, k string) bool {
	var oldPrev = commonPredecessor(oldOrder, newOrder, k)
	var newPrev = commonPredecessor(newOrder, oldOrder, k)
	return oldPrev != newPrev
}

func commonPredecessor(order, other []string, k string) string {
	var otherSet = positions(other)
	var idx = -1
	for i, key := range order {
		if key == k {
			idx = i
			break
		}
	}
	if idx <= 0 {
		return ""
	}
	for i := idx - 1; i >= 0; i-- {
		if _, ok := otherSet[order[i]]; ok {
			return order[i]
		}
	}
	return ""
}
