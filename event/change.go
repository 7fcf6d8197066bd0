// Package event implements the Change and Event types spec §3/§4.1 describe:
// the diff output of applying an Operation to a View, and the per-
// registration Event instances derived from that diff.
package event

import "github.com/jsayol/firebase-js-sdk/treenode"

// ChangeType enumerates the kinds of view mutation spec §4.1 names.
type ChangeType int

const (
	ChildAdded ChangeType = iota
	ChildRemoved
	ChildChanged
	ChildMoved
	ValueChanged
)

func (t ChangeType) String() string {
	switch t {
	case ChildAdded:
		return "child_added"
	case ChildRemoved:
		return "child_removed"
	case ChildChanged:
		return "child_changed"
	case ChildMoved:
		return "child_moved"
	case ValueChanged:
		return "value"
	default:
		return "unknown"
	}
}

// Change is one diff entry produced by View.ApplyOperation. ChildKey is ""
// for ValueChanged. PrevChildKey names the child immediately preceding this
// one in the new ordering (empty if first), letting a caller maintain an
// ordered list without re-deriving sort order itself.
type Change struct {
	Type         ChangeType
	ChildKey     string
	Node         treenode.Node
	PrevChildKey string
}

// Ordering is the fixed emission order spec §4.1 requires:
// CHILD_REMOVED, then CHILD_ADDED, then CHILD_MOVED, then CHILD_CHANGED,
// with a single VALUE change appended last when relevant.
func Ordering(t ChangeType) int {
	switch t {
	case ChildRemoved:
		return 0
	case ChildAdded:
		return 1
	case ChildMoved:
		return 2
	case ChildChanged:
		return 3
	case ValueChanged:
		return 4
	default:
		return 5
	}
}
