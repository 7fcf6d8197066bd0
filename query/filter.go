package query

import "github.com/jsayol/firebase-js-sdk/treenode"

// Filter applies the query's ordering, start/end bounds, and limit to |n|,
// returning a Node containing only the selected children with their
// original values. Filter is a no-op (returns n unchanged) for queries that
// LoadsAllData(), matching spec §4.1's "restricted by the query's
// filter/order/limit" wording: nothing to restrict when nothing is
// filtered.
func (q Query) Filter(n treenode.Node) treenode.Node {
	if q.params.LoadsAllData() {
		return n
	}
	var idx = q.params.Index
	var cmp = idx.Comparator()

	var kept []string
	n.ForEachChild(cmp, false, func(key string, child treenode.Node) bool {
		if q.inRange(idx, key, child) {
			kept = append(kept, key)
		}
		return true
	})

	if l := q.params.Limit; l != nil {
		kept = applyLimit(kept, l)
	}

	var result treenode.Node = treenode.Empty()
	for _, k := range kept {
		result = result.UpdateImmediateChild(k, n.GetImmediateChild(k))
	}
	return result
}

func applyLimit(kept []string, l *Limit) []string {
	if len(kept) <= l.N {
		return kept
	}
	if l.Reverse {
		return kept[len(kept)-l.N:]
	}
	return kept[:l.N]
}

func (q Query) inRange(idx Index, key string, child treenode.Node) bool {
	var ok = idx.extract(key, child)

	if s := q.params.Start; s != nil {
		var c = compareOrderKeys(ok, s.orderKey(idx))
		if c == 0 {
			c = compareKeyTiebreak(key, s.Key)
		}
		if c < 0 || (c == 0 && !s.Inclusive) {
			return false
		}
	}
	if e := q.params.End; e != nil {
		var c = compareOrderKeys(ok, e.orderKey(idx))
		if c == 0 {
			c = compareKeyTiebreak(key, e.Key)
		}
		if c > 0 || (c == 0 && !e.Inclusive) {
			return false
		}
	}
	return true
}

func compareKeyTiebreak(a, b string) int {
	if b == "" {
		return 0
	}
	return treenode.CompareKeys(a, b)
}

func (b *Bound) orderKey(idx Index) orderKey {
	switch idx.Kind {
	case PriorityIndex:
		return orderKey{kind: orderByPriority, prio: b.Priority}
	case ValueIndex, PathIndex:
		return orderKey{kind: orderByValue, val: b.Value}
	default:
		return orderKey{kind: orderByChildKey, str: b.Key}
	}
}
