// Package operation implements Operation and OperationSource, the tagged
// records spec §3 routes through SyncTree, SyncPoint, and View.
package operation

import (
	"github.com/jsayol/firebase-js-sdk/treenode"
	"github.com/jsayol/firebase-js-sdk/treepath"
)

// Kind tags which Operation variant a value holds.
type Kind int

const (
	Overwrite Kind = iota
	Merge
	AckUserWrite
	ListenComplete
)

func (k Kind) String() string {
	switch k {
	case Overwrite:
		return "overwrite"
	case Merge:
		return "merge"
	case AckUserWrite:
		return "ack_user_write"
	case ListenComplete:
		return "listen_complete"
	default:
		return "unknown"
	}
}

// SourceKind distinguishes who originated an Operation.
type SourceKind int

const (
	FromUser SourceKind = iota
	FromServer
	FromServerTagged
)

// Source names an Operation's origin; QueryID is only meaningful when Kind
// is FromServerTagged, naming the tagged query this update routes to.
type Source struct {
	Kind    SourceKind
	QueryID string
}

// User is the canonical user-originated Source.
var User = Source{Kind: FromUser}

// Server is the canonical untagged server Source.
var Server = Source{Kind: FromServer}

// ServerTagged builds a tagged-server Source for the given query identifier.
func ServerTagged(queryID string) Source {
	return Source{Kind: FromServerTagged, QueryID: queryID}
}

// AffectedTree marks which part of an AckUserWrite's subtree changed:
// either the whole subtree (Whole, an overwrite's ack) or a specific list of
// relative child paths (a merge's ack), per spec §3/§4.4.
type AffectedTree struct {
	Whole      bool
	ChildPaths []treepath.Path
}

// WholeAffected is the AffectedTree for an acknowledged overwrite.
func WholeAffected() AffectedTree { return AffectedTree{Whole: true} }

// MergeAffected is the AffectedTree for an acknowledged merge.
func MergeAffected(paths []treepath.Path) AffectedTree {
	return AffectedTree{ChildPaths: paths}
}

// Operation is the tagged record described by spec §3.
type Operation struct {
	Kind   Kind
	Path   treepath.Path
	Source Source

	// Overwrite
	Snap treenode.Node

	// Merge
	Children map[string]treenode.Node

	// AckUserWrite
	Affected AffectedTree
	Revert   bool
}

// NewOverwrite builds an Overwrite Operation.
func NewOverwrite(source Source, path treepath.Path, snap treenode.Node) Operation {
	return Operation{Kind: Overwrite, Path: path, Source: source, Snap: snap}
}

// NewMerge builds a Merge Operation.
func NewMerge(source Source, path treepath.Path, children map[string]treenode.Node) Operation {
	return Operation{Kind: Merge, Path: path, Source: source, Children: children}
}

// NewAckUserWrite builds an AckUserWrite Operation.
func NewAckUserWrite(path treepath.Path, affected AffectedTree, revert bool) Operation {
	return Operation{Kind: AckUserWrite, Path: path, Source: User, Affected: affected, Revert: revert}
}

// NewListenComplete builds a ListenComplete Operation.
func NewListenComplete(source Source, path treepath.Path) Operation {
	return Operation{Kind: ListenComplete, Path: path, Source: source}
}

// ForChild returns the Operation restricted to the subtree at child key |k|,
// and whether |k|'s subtree is affected at all.
func (op Operation) ForChild(k string) (Operation, bool) {
	if !op.Path.IsEmpty() {
		front, _ := op.Path.Front()
		if front != k {
			return Operation{}, false
		}
		var next = op
		next.Path = op.Path.PopFront()
		return next, true
	}

	switch op.Kind {
	case Overwrite:
		return NewOverwrite(op.Source, treepath.Empty, op.Snap.GetImmediateChild(k)), true
	case Merge:
		if child, ok := op.Children[k]; ok {
			return NewOverwrite(op.Source, treepath.Empty, child), true
		}
		return Operation{}, false
	case AckUserWrite:
		if op.Affected.Whole {
			return NewAckUserWrite(treepath.Empty, WholeAffected(), op.Revert), true
		}
		var remaining []treepath.Path
		for _, p := range op.Affected.ChildPaths {
			if front, ok := p.Front(); ok && front == k {
				remaining = append(remaining, p.PopFront())
			}
		}
		if len(remaining) == 0 {
			return Operation{}, false
		}
		return NewAckUserWrite(treepath.Empty, MergeAffected(remaining), op.Revert), true
	case ListenComplete:
		return NewListenComplete(op.Source, treepath.Empty), true
	default:
		return Operation{}, false
	}
}
