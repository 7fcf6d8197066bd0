// Package writetree implements the pending-user-write overlay described in
// spec §4.3: an ordered, totally-ordered-by-id list of user writes plus a
// by-path index and an id index, and the bounded Ref view SyncPoint layers
// onto server data.
package writetree

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/jsayol/firebase-js-sdk/treenode"
	"github.com/jsayol/firebase-js-sdk/treepath"
)

// Record is one pending user write. Exactly one of Snap or Children is set,
// selected by IsMerge.
type Record struct {
	WriteID  int64
	Path     treepath.Path
	IsMerge  bool
	Snap     treenode.Node
	Children map[string]treenode.Node
	Visible  bool
}

// Tree holds every pending write, ordered by ascending WriteID, plus a
// secondary path index (a nested map keyed by path component) so ChildWrites
// is proportional to path depth rather than the total write count, and an
// id index so GetWrite/RemoveWrite don't have to scan records either.
type Tree struct {
	records []Record
	byPath  *pathIndex
	byID    map[int64]int
}

type pathIndex struct {
	writeIndices []int
	children     map[string]*pathIndex
}

func newPathIndex() *pathIndex {
	return &pathIndex{children: map[string]*pathIndex{}}
}

func (n *pathIndex) at(path treepath.Path) *pathIndex {
	var cur = n
	for _, part := range path.Parts() {
		var next, ok = cur.children[part]
		if !ok {
			next = newPathIndex()
			cur.children[part] = next
		}
		cur = next
	}
	return cur
}

// lookup descends to the node for path without creating anything, returning
// nil if no write was ever recorded anywhere under it.
func (n *pathIndex) lookup(path treepath.Path) *pathIndex {
	var cur = n
	for _, part := range path.Parts() {
		var next, ok = cur.children[part]
		if !ok {
			return nil
		}
		cur = next
	}
	return cur
}

func collectIndices(n *pathIndex, out *[]int) {
	*out = append(*out, n.writeIndices...)
	for _, c := range n.children {
		collectIndices(c, out)
	}
}

// New returns an empty Tree.
func New() *Tree {
	return &Tree{byPath: newPathIndex(), byID: map[int64]int{}}
}

// AddOverwrite appends an overwrite record. It fails if writeID is not
// strictly greater than every existing id, per spec §4.3.
func (t *Tree) AddOverwrite(path treepath.Path, snap treenode.Node, writeID int64, visible bool) error {
	if err := t.checkMonotonic(writeID); err != nil {
		return err
	}
	t.append(Record{WriteID: writeID, Path: path, Snap: snap, Visible: visible})
	return nil
}

// AddMerge appends a merge record.
func (t *Tree) AddMerge(path treepath.Path, children map[string]treenode.Node, writeID int64) error {
	if err := t.checkMonotonic(writeID); err != nil {
		return err
	}
	t.append(Record{WriteID: writeID, Path: path, IsMerge: true, Children: children, Visible: true})
	return nil
}

func (t *Tree) checkMonotonic(writeID int64) error {
	if len(t.records) > 0 && writeID <= t.records[len(t.records)-1].WriteID {
		return errors.Errorf("write id %d is not greater than the last recorded id %d", writeID, t.records[len(t.records)-1].WriteID)
	}
	return nil
}

func (t *Tree) append(r Record) {
	var idx = len(t.records)
	t.records = append(t.records, r)
	t.byPath.at(r.Path).writeIndices = append(t.byPath.at(r.Path).writeIndices, idx)
	t.byID[r.WriteID] = idx
}

// GetWrite returns the record with the given id, if present.
func (t *Tree) GetWrite(writeID int64) (Record, bool) {
	var idx, ok = t.byID[writeID]
	if !ok {
		return Record{}, false
	}
	return t.records[idx], true
}

// RemoveWrite drops the record with the given id and reports whether any
// visible overlay changed as a result (the caller must recompute affected
// sync points when true).
func (t *Tree) RemoveWrite(writeID int64) bool {
	var idx, ok = t.byID[writeID]
	if !ok {
		return false
	}
	var visible = t.records[idx].Visible
	t.records = append(t.records[:idx], t.records[idx+1:]...)
	t.rebuildIndex()
	return visible
}

func (t *Tree) rebuildIndex() {
	var records = t.records
	t.records = nil
	t.byPath = newPathIndex()
	t.byID = map[int64]int{}
	for _, r := range records {
		t.append(r)
	}
}

// ChildWrites returns the bounded view of writes at or below |path|.
func (t *Tree) ChildWrites(path treepath.Path) Ref {
	return Ref{tree: t, root: path}
}

// Ref is a bounded view of a Tree rooted at a path, the type SyncPoint's
// Views layer onto server data.
type Ref struct {
	tree    *Tree
	root    treepath.Path
	exclude map[int64]bool
}

// Excluding narrows the Ref to skip the named write ids, used by
// SyncTree.CalcCompleteEventCache while acknowledging a write so the write
// being removed doesn't reappear in its own recomputed cache.
func (ref Ref) Excluding(ids map[int64]bool) Ref {
	return Ref{tree: ref.tree, root: ref.root, exclude: ids}
}

// recordsAt returns every record whose path is at or under Ref's root, with
// paths rewritten relative to it, in ascending write-id order. It walks
// byPath to the root node and collects write indices from it and every
// descendant, so the path descent is proportional to root's depth rather
// than the total number of pending writes; the indices gathered from
// different children still need sorting since t.records' index order (not
// map iteration order) is what carries ascending write-id order.
func (ref Ref) recordsAt() []Record {
	var node = ref.tree.byPath.lookup(ref.root)
	if node == nil {
		return nil
	}
	var indices []int
	collectIndices(node, &indices)
	sort.Ints(indices)

	var out []Record
	for _, idx := range indices {
		var r = ref.tree.records[idx]
		if ref.exclude != nil && ref.exclude[r.WriteID] {
			continue
		}
		if rel, ok := r.Path.RelativeTo(ref.root); ok {
			var copyRec = r
			copyRec.Path = rel
			out = append(out, copyRec)
		}
	}
	return out
}

// CalcCompleteEventCache returns the fully resolved node with visible writes
// applied atop |base| (nil if no base is known and no overwrite at the root
// supplies one).
func (ref Ref) CalcCompleteEventCache(base treenode.Node) (treenode.Node, bool) {
	return ref.calcCompleteEventCache(base, true)
}

// CalcCompleteEventCacheIncludingHidden is CalcCompleteEventCache's
// SyncTree-facing variant: it layers every pending write, visible or not, so
// callers computing "what will this path look like if a hidden write later
// becomes visible" (SyncTree.CalcCompleteEventCache, spec §4.4) see it too.
func (ref Ref) CalcCompleteEventCacheIncludingHidden(base treenode.Node) (treenode.Node, bool) {
	return ref.calcCompleteEventCache(base, false)
}

func (ref Ref) calcCompleteEventCache(base treenode.Node, visibleOnly bool) (treenode.Node, bool) {
	var node = base
	var haveNode = base != nil
	for _, r := range ref.recordsAt() {
		if visibleOnly && !r.Visible {
			continue
		}
		if r.IsMerge {
			if !haveNode {
				continue
			}
			node = applyMerge(node, r.Path, r.Children)
			continue
		}
		if r.Path.IsEmpty() {
			node = r.Snap
			haveNode = true
			continue
		}
		if !haveNode {
			continue
		}
		node = setAtPath(node, r.Path, r.Snap)
	}
	if !haveNode {
		return nil, false
	}
	return node, true
}

// CalcCompleteEventChildren is the children-only variant used when the
// caller only knows the immediate children of the server cache, not a fully
// assembled node.
func (ref Ref) CalcCompleteEventChildren(baseChildren treenode.Node) treenode.Node {
	var node = baseChildren
	if node == nil {
		node = treenode.Empty()
	}
	for _, r := range ref.recordsAt() {
		if !r.Visible {
			continue
		}
		if r.IsMerge {
			node = applyMerge(node, r.Path, r.Children)
			continue
		}
		if r.Path.IsEmpty() {
			node = r.Snap
			continue
		}
		node = setAtPath(node, r.Path, r.Snap)
	}
	return node
}

// Child narrows the Ref to the given child key.
func (ref Ref) Child(key string) Ref {
	return Ref{tree: ref.tree, root: ref.root.Child(key), exclude: ref.exclude}
}

func setAtPath(node treenode.Node, path treepath.Path, value treenode.Node) treenode.Node {
	front, ok := path.Front()
	if !ok {
		return value
	}
	var child = node.GetImmediateChild(front)
	return node.UpdateImmediateChild(front, setAtPath(child, path.PopFront(), value))
}

func applyMerge(node treenode.Node, path treepath.Path, children map[string]treenode.Node) treenode.Node {
	if path.IsEmpty() {
		for k, v := range children {
			node = node.UpdateImmediateChild(k, v)
		}
		return node
	}
	var front, _ = path.Front()
	var child = node.GetImmediateChild(front)
	return node.UpdateImmediateChild(front, applyMerge(child, path.PopFront(), children))
}
