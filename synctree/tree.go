// Package synctree implements Tree (spec §4.4): the central entry point
// that owns the tree of SyncPoints, the pending-write overlay, and the
// tag-based routing of backend responses, and drives an injected
// ListenProvider to keep exactly the listeners the current set of views
// requires open.
package synctree

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/jsayol/firebase-js-sdk/event"
	"github.com/jsayol/firebase-js-sdk/metrics"
	"github.com/jsayol/firebase-js-sdk/operation"
	"github.com/jsayol/firebase-js-sdk/persistence"
	"github.com/jsayol/firebase-js-sdk/query"
	"github.com/jsayol/firebase-js-sdk/syncpoint"
	"github.com/jsayol/firebase-js-sdk/treenode"
	"github.com/jsayol/firebase-js-sdk/treepath"
	"github.com/jsayol/firebase-js-sdk/writetree"
)

// pointNode is the module's own "persistent tree keyed by Path": a
// recursive map structure holding an optional SyncPoint, mirroring the
// structural (not range-scanned) lookups spec §3 calls for.
type pointNode struct {
	point    *syncpoint.SyncPoint
	children map[string]*pointNode
}

func newPointNode() *pointNode {
	return &pointNode{children: map[string]*pointNode{}}
}

func (n *pointNode) childAt(k string, create bool) *pointNode {
	var c, ok = n.children[k]
	if !ok {
		if !create {
			return nil
		}
		c = newPointNode()
		n.children[k] = c
	}
	return c
}

// Tree is the SyncTree of spec §4.4.
type Tree struct {
	InstanceID uuid.UUID

	mu      sync.Mutex
	root    *pointNode
	writes  *writetree.Tree
	tags    *tagTable
	listens ListenProvider
	persist *persistence.Manager
}

// New constructs a Tree. listens may be nil (no backend listens are ever
// started; the tree still works purely off user writes and explicit server
// apply calls, useful for tests). persist may be nil (no durable state).
func New(listens ListenProvider, persist *persistence.Manager) *Tree {
	return &Tree{
		InstanceID: uuid.New(),
		root:       newPointNode(),
		writes:     writetree.New(),
		tags:       newTagTable(),
		listens:    listens,
		persist:    persist,
	}
}

func (t *Tree) logFields() logrus.Fields {
	return logrus.Fields{"tree": t.InstanceID.String()}
}

// ApplyUserOverwrite records a user overwrite and propagates it to every
// affected sync point, per spec §4.4. If persistence is configured the
// write is durably recorded first.
func (t *Tree) ApplyUserOverwrite(ctx context.Context, path treepath.Path, snap treenode.Node, writeID int64, visible bool) ([]event.Event, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.persist != nil {
		if err := t.persist.SaveUserOverwrite(ctx, path, snap, writeID); err != nil {
			return nil, errors.Wrap(err, "persisting user overwrite")
		}
	}
	if err := t.writes.AddOverwrite(path, snap, writeID, visible); err != nil {
		return nil, err
	}
	if !visible {
		return nil, nil
	}
	return t.applyOperationLocked(operation.NewOverwrite(operation.User, path, snap), nil), nil
}

// ApplyUserMerge records a user merge and propagates it.
func (t *Tree) ApplyUserMerge(ctx context.Context, path treepath.Path, children map[string]treenode.Node, writeID int64) ([]event.Event, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.persist != nil {
		if err := t.persist.SaveUserMerge(ctx, path, children, writeID); err != nil {
			return nil, errors.Wrap(err, "persisting user merge")
		}
	}
	if err := t.writes.AddMerge(path, children, writeID); err != nil {
		return nil, err
	}
	return t.applyOperationLocked(operation.NewMerge(operation.User, path, children), nil), nil
}

// AckUserWrite removes the pending write with the given id — acknowledged
// if !revert, discarded if revert — durably forgets it, folds the
// confirmed value into the server cache via the persistence manager, and
// re-emits any events the removal causes, per spec §4.4.
func (t *Tree) AckUserWrite(ctx context.Context, writeID int64, revert bool) ([]event.Event, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var record, ok = t.writes.GetWrite(writeID)
	if !ok {
		return nil, nil
	}
	var wasVisible = t.writes.RemoveWrite(writeID)
	metrics.UserWritesAckedTotal.Inc()
	if revert {
		metrics.UserWritesRevertedTotal.Inc()
	}

	if t.persist != nil {
		if err := t.persist.RemoveUserWrite(ctx, writeID); err != nil {
			logrus.WithError(err).WithFields(t.logFields()).Warn("sync tree: failed to remove persisted user write")
		}
		if !revert {
			if record.IsMerge {
				if err := t.persist.ApplyUserMerge(ctx, record.Children, record.Path); err != nil {
					logrus.WithError(err).WithFields(t.logFields()).Warn("sync tree: failed to apply acked user merge")
				}
			} else {
				if err := t.persist.ApplyUserWrite(ctx, record.Snap, record.Path); err != nil {
					logrus.WithError(err).WithFields(t.logFields()).Warn("sync tree: failed to apply acked user write")
				}
			}
		}
	}

	if !wasVisible {
		return nil, nil
	}

	var affected operation.AffectedTree
	if record.IsMerge {
		var paths = make([]treepath.Path, 0, len(record.Children))
		for k := range record.Children {
			paths = append(paths, treepath.New(k))
		}
		affected = operation.MergeAffected(paths)
	} else {
		affected = operation.WholeAffected()
	}
	return t.applyOperationLocked(operation.NewAckUserWrite(record.Path, affected, revert), nil), nil
}

// RestoreUserWrites implements the startup half of spec §6's restart
// recovery: it loads every persisted pending write, replays each into the
// in-memory tree with visible=true in ascending write-id order, re-sends it
// to sender (nil skips re-sending) with its original id, and returns the
// events the replay produced (the caller delivers these exactly as it would
// events from any other Apply* call) plus the write id the caller should
// start handing out for new writes (max(persisted.id)+1, or 1 if nothing
// was persisted), per spec §8 scenario 6. It is meant to be called once,
// right after New, before any caller-issued write.
func (t *Tree) RestoreUserWrites(ctx context.Context, sender WriteSender) ([]event.Event, int64, error) {
	if t.persist == nil {
		return nil, 1, nil
	}
	var writes, err = t.persist.GetUserWrites(ctx)
	if err != nil {
		return nil, 1, errors.Wrap(err, "sync tree: loading persisted user writes for restart recovery")
	}

	var events []event.Event
	var nextWriteID int64 = 1
	for _, w := range writes {
		if w.ID >= nextWriteID {
			nextWriteID = w.ID + 1
		}

		if w.IsMerge {
			var children = make(map[string]treenode.Node, len(w.Merge))
			for k, v := range w.Merge {
				children[k] = treenode.NodeFrom(v)
			}
			var evs, err = t.ApplyUserMerge(ctx, w.Path, children, w.ID)
			if err != nil {
				return events, nextWriteID, errors.Wrapf(err, "sync tree: replaying persisted merge %d", w.ID)
			}
			events = append(events, evs...)
			if sender != nil {
				sender.SendMerge(w.ID, w.Path, children)
			}
			continue
		}

		var node = treenode.NodeFrom(w.Overwrite)
		var evs, err = t.ApplyUserOverwrite(ctx, w.Path, node, w.ID, true)
		if err != nil {
			return events, nextWriteID, errors.Wrapf(err, "sync tree: replaying persisted overwrite %d", w.ID)
		}
		events = append(events, evs...)
		if sender != nil {
			sender.SendWrite(w.ID, w.Path, node)
		}
	}
	return events, nextWriteID, nil
}

// ApplyServerOverwrite durably applies and propagates an untagged
// server-delivered overwrite at path.
func (t *Tree) ApplyServerOverwrite(ctx context.Context, path treepath.Path, snap treenode.Node) ([]event.Event, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.persist != nil {
		if err := t.persist.ApplyServerOverwrite(ctx, snap, query.DefaultAtPath(path)); err != nil {
			return nil, errors.Wrap(err, "persisting server overwrite")
		}
	}
	return t.applyOperationLocked(operation.NewOverwrite(operation.Server, path, snap), nil), nil
}

// ApplyServerMerge durably applies and propagates an untagged
// server-delivered merge at path.
func (t *Tree) ApplyServerMerge(ctx context.Context, path treepath.Path, children map[string]treenode.Node) ([]event.Event, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.persist != nil {
		if err := t.persist.ApplyServerMerge(ctx, children, path); err != nil {
			return nil, errors.Wrap(err, "persisting server merge")
		}
	}
	return t.applyOperationLocked(operation.NewMerge(operation.Server, path, children), nil), nil
}

// ApplyServerListenComplete marks the default query at path complete in the
// tracked-query manager and applies a ListenComplete to every view at or
// below path, per spec §4.4.
func (t *Tree) ApplyServerListenComplete(ctx context.Context, path treepath.Path) ([]event.Event, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var complete, _ = t.calcCompleteEventCacheLocked(path, nil)
	if t.persist != nil {
		t.persist.SetQueryComplete(query.DefaultAtPath(path))
	}
	var completePtr *treenode.Node
	if complete != nil {
		completePtr = &complete
	}
	return t.applyOperationLocked(operation.NewListenComplete(operation.Server, path), completePtr), nil
}

// ApplyTaggedServerOverwrite routes a tagged overwrite to the query the tag
// was assigned to, or silently drops it if the query has been forgotten.
func (t *Tree) ApplyTaggedServerOverwrite(ctx context.Context, tagID string, path treepath.Path, snap treenode.Node) ([]event.Event, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var q, ok = t.tags.queryFor(tagID)
	if !ok {
		return nil, nil
	}
	var rel, relOK = path.RelativeTo(q.Path())
	if !relOK {
		return nil, nil
	}

	if t.persist != nil {
		var target = q
		if !rel.IsEmpty() {
			target = query.DefaultAtPath(path)
		}
		if err := t.persist.ApplyServerOverwrite(ctx, snap, target); err != nil {
			return nil, errors.Wrap(err, "persisting tagged server overwrite")
		}
	}
	return t.applyOperationLocked(operation.NewOverwrite(operation.ServerTagged(q.Identifier()), path, snap), nil), nil
}

// ApplyTaggedServerMerge is ApplyTaggedServerOverwrite's merge counterpart.
func (t *Tree) ApplyTaggedServerMerge(ctx context.Context, tagID string, path treepath.Path, children map[string]treenode.Node) ([]event.Event, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var q, ok = t.tags.queryFor(tagID)
	if !ok {
		return nil, nil
	}
	if t.persist != nil {
		if err := t.persist.ApplyServerMerge(ctx, children, path); err != nil {
			return nil, errors.Wrap(err, "persisting tagged server merge")
		}
	}
	return t.applyOperationLocked(operation.NewMerge(operation.ServerTagged(q.Identifier()), path, children), nil), nil
}

// ApplyTaggedServerListenComplete marks the tagged query complete.
func (t *Tree) ApplyTaggedServerListenComplete(ctx context.Context, tagID string, path treepath.Path) ([]event.Event, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var q, ok = t.tags.queryFor(tagID)
	if !ok {
		return nil, nil
	}
	if t.persist != nil {
		t.persist.SetQueryComplete(q)
	}
	return t.applyOperationLocked(operation.NewListenComplete(operation.ServerTagged(q.Identifier()), path), nil), nil
}

// applyOperationLocked traverses the sync-point tree under t.mu, fanning
// op out to every affected SyncPoint.
func (t *Tree) applyOperationLocked(op operation.Operation, complete *treenode.Node) []event.Event {
	var events = t.applyOperationRec(t.root, op, t.writes.ChildWrites(treepath.Empty), complete)
	metrics.EventsEmittedTotal.Add(float64(len(events)))
	return events
}

func (t *Tree) applyOperationRec(node *pointNode, op operation.Operation, writes writetree.Ref, complete *treenode.Node) []event.Event {
	var events []event.Event

	if op.Path.IsEmpty() {
		for k, child := range node.children {
			if childOp, ok := op.ForChild(k); ok {
				events = append(events, t.applyOperationRec(child, childOp, writes.Child(k), narrowComplete(complete, k))...)
			}
		}
	} else if front, ok := op.Path.Front(); ok {
		if child, exists := node.children[front]; exists {
			if childOp, ok2 := op.ForChild(front); ok2 {
				events = append(events, t.applyOperationRec(child, childOp, writes.Child(front), complete)...)
			}
		}
	}

	if node.point != nil {
		var evs, err = node.point.ApplyOperation(op, writes, complete)
		if err != nil {
			logrus.WithError(err).WithFields(t.logFields()).Warn("sync tree: apply operation failed")
		} else {
			events = append(events, evs...)
		}
	}
	return events
}

func narrowComplete(complete *treenode.Node, k string) *treenode.Node {
	if complete == nil {
		return nil
	}
	var child = (*complete).GetImmediateChild(k)
	return &child
}

// CalcCompleteEventCache finds the deepest known-complete server cache on
// path among existing sync points and overlays every pending write
// (visible or hidden) except those named in excludeWriteIDs, per spec
// §4.4.
func (t *Tree) CalcCompleteEventCache(path treepath.Path, excludeWriteIDs map[int64]bool) (treenode.Node, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calcCompleteEventCacheLocked(path, excludeWriteIDs)
}

func (t *Tree) calcCompleteEventCacheLocked(path treepath.Path, excludeWriteIDs map[int64]bool) (treenode.Node, bool) {
	var base, found = t.deepestServerCache(path)
	var ref = t.writes.ChildWrites(path)
	if excludeWriteIDs != nil {
		ref = ref.Excluding(excludeWriteIDs)
	}
	if found {
		return ref.CalcCompleteEventCacheIncludingHidden(base)
	}
	return ref.CalcCompleteEventCacheIncludingHidden(nil)
}

func (t *Tree) deepestServerCache(path treepath.Path) (treenode.Node, bool) {
	var cur = t.root
	var remaining = path
	var found treenode.Node
	var ok bool
	for {
		if cur.point != nil {
			if n, has := cur.point.GetCompleteServerCache(remaining); has {
				found, ok = n, true
			}
		}
		var front, hasFront = remaining.Front()
		if !hasFront {
			break
		}
		var next, exists = cur.children[front]
		if !exists {
			break
		}
		cur = next
		remaining = remaining.PopFront()
	}
	return found, ok
}
