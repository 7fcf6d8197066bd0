// Package query implements Query, the (path, parameters) pair spec §3
// describes: an optional ordering index, optional start/end bounds over that
// index, and an optional first/last-N limit.
package query

import (
	"github.com/jsayol/firebase-js-sdk/treenode"
	"github.com/jsayol/firebase-js-sdk/treepath"
)

// IndexKind selects which of a node's children an ordering is defined over.
type IndexKind int

const (
	// KeyIndex orders children by their own key (the default).
	KeyIndex IndexKind = iota
	// PriorityIndex orders children by their Priority.
	PriorityIndex
	// ValueIndex orders children by their (leaf) value.
	ValueIndex
	// PathIndex orders children by the value found by descending into each
	// child at a fixed relative Path (orderByChild("a/b") style queries).
	PathIndex
)

// Index names the ordering a Query uses.
type Index struct {
	Kind IndexKind
	Path treepath.Path // meaningful only when Kind == PathIndex
}

// Comparator returns the treenode.Comparator this Index implies, always
// breaking ties on key so that ordering is total.
func (idx Index) Comparator() treenode.Comparator {
	return func(keyA string, a treenode.Node, keyB string, b treenode.Node) bool {
		if c := compareOrderKeys(idx.extract(keyA, a), idx.extract(keyB, b)); c != 0 {
			return c < 0
		}
		return treenode.CompareKeys(keyA, keyB) < 0
	}
}

type orderKeyKind int

const (
	orderByChildKey orderKeyKind = iota
	orderByPriority
	orderByValue
)

type orderKey struct {
	kind orderKeyKind
	str  string
	prio treenode.Priority
	val  interface{}
}

func (idx Index) extract(key string, n treenode.Node) orderKey {
	switch idx.Kind {
	case PriorityIndex:
		return orderKey{kind: orderByPriority, prio: n.Priority()}
	case ValueIndex:
		return orderKey{kind: orderByValue, val: n.Value()}
	case PathIndex:
		var v treenode.Node = n
		for _, c := range idx.Path.Parts() {
			v = v.GetImmediateChild(c)
		}
		return orderKey{kind: orderByValue, val: v.Value()}
	default:
		return orderKey{kind: orderByChildKey, str: key}
	}
}

func compareOrderKeys(a, b orderKey) int {
	switch a.kind {
	case orderByChildKey:
		return treenode.CompareKeys(a.str, b.str)
	case orderByPriority:
		return a.prio.Compare(b.prio)
	default:
		return compareValues(a.val, b.val)
	}
}

// valueRank orders the JSON value-space total order: nil < false < true <
// numbers < strings < objects/arrays, matching the source system's rule
// that scalar comparisons never panic on mixed types.
func valueRank(v interface{}) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case float64, int, int64:
		return 2
	case string:
		return 3
	default:
		return 4
	}
}

func compareValues(a, b interface{}) int {
	if ra, rb := valueRank(a), valueRank(b); ra != rb {
		return ra - rb
	}
	switch av := a.(type) {
	case bool:
		bv := b.(bool)
		if av == bv {
			return 0
		} else if !av {
			return -1
		}
		return 1
	case float64:
		bv := toFloat(b)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	case string:
		bv := b.(string)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	default:
		return 0
	}
}

func toFloat(v interface{}) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case int64:
		return float64(t)
	default:
		return 0
	}
}
