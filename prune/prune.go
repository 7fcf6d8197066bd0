// Package prune implements PruneForest (spec §3): a persistent tree whose
// value at each node is keep, prune, or unset, used to express "evict these
// subtrees of the server cache while preserving those."
package prune

import "github.com/jsayol/firebase-js-sdk/treepath"

// Mark is the tri-state value a Forest node carries.
type Mark int

const (
	Unset Mark = iota
	Keep
	Prune
)

// Forest is a persistent tree of Marks keyed by Path.
type Forest struct {
	root *node
}

type node struct {
	mark     Mark
	children map[string]*node
}

func newNode() *node { return &node{children: map[string]*node{}} }

// New returns an empty Forest (every path Unset).
func New() *Forest { return &Forest{root: newNode()} }

func (f *Forest) at(path treepath.Path, create bool) *node {
	var cur = f.root
	for _, part := range path.Parts() {
		var next, ok = cur.children[part]
		if !ok {
			if !create {
				return nil
			}
			next = newNode()
			cur.children[part] = next
		}
		cur = next
	}
	return cur
}

// Keep marks path and everything under it as kept.
func (f *Forest) Keep(path treepath.Path) {
	f.at(path, true).mark = Keep
}

// Prune marks path and everything under it as prunable, unless it or an
// ancestor is already kept.
func (f *Forest) Prune(path treepath.Path) {
	if f.hasKeptAncestorOrSelf(path) {
		return
	}
	f.at(path, true).mark = Prune
}

// leafMostMark walks path from the root, returning the mark of the deepest
// node encountered that has an explicit (non-Unset) mark.
func (f *Forest) leafMostMark(path treepath.Path) Mark {
	var cur = f.root
	var mark = cur.mark
	for _, part := range path.Parts() {
		var next, ok = cur.children[part]
		if !ok {
			break
		}
		cur = next
		if cur.mark != Unset {
			mark = cur.mark
		}
	}
	return mark
}

// ShouldPruneUnkeptDescendants reports whether descendants of path should be
// pruned, per the leaf-most set value on the path to it.
func (f *Forest) ShouldPruneUnkeptDescendants(path treepath.Path) bool {
	return f.leafMostMark(path) == Prune
}

// PrunePath reports whether path may be pruned: false if path or any of its
// ancestors is marked Keep, true otherwise.
func (f *Forest) PrunePath(path treepath.Path) bool {
	return !f.hasKeptAncestorOrSelf(path)
}

func (f *Forest) hasKeptAncestorOrSelf(path treepath.Path) bool {
	var cur = f.root
	if cur.mark == Keep {
		return true
	}
	for _, part := range path.Parts() {
		var next, ok = cur.children[part]
		if !ok {
			break
		}
		cur = next
		if cur.mark == Keep {
			return true
		}
	}
	return false
}

// PrunesAnything reports whether any node in the forest is marked Prune.
func (f *Forest) PrunesAnything() bool {
	return anyPrune(f.root)
}

func anyPrune(n *node) bool {
	if n.mark == Prune {
		return true
	}
	for _, c := range n.children {
		if anyPrune(c) {
			return true
		}
	}
	return false
}

// NumPruned counts the nodes marked Prune, for reporting how many tracked
// queries a prune pass evicted.
func (f *Forest) NumPruned() int {
	return countPrune(f.root)
}

func countPrune(n *node) int {
	var total int
	if n.mark == Prune {
		total++
	}
	for _, c := range n.children {
		total += countPrune(c)
	}
	return total
}
