package syncpoint

import (
	"github.com/jsayol/firebase-js-sdk/operation"
	"github.com/jsayol/firebase-js-sdk/treenode"
	"github.com/jsayol/firebase-js-sdk/treepath"
)

// applyToServerCache merges op into the View's authoritative server
// snapshot, per spec §4.1: Overwrite replaces the subtree at op.Path, Merge
// updates per named child, AckUserWrite never touches the server cache (it
// only ever changes the write overlay), and ListenComplete marks the cache
// fully initialized, optionally substituting a freshly resolved snapshot.
func applyToServerCache(sc treenode.CacheNode, op operation.Operation, complete *treenode.Node) treenode.CacheNode {
	switch op.Kind {
	case operation.Overwrite:
		return treenode.CacheNode{
			Node:             setAtPath(sc.GetNode(), op.Path, op.Snap),
			FullyInitialized: sc.FullyInitialized,
			Filtered:         sc.Filtered,
		}
	case operation.Merge:
		return treenode.CacheNode{
			Node:             mergeAtPath(sc.GetNode(), op.Path, op.Children),
			FullyInitialized: sc.FullyInitialized,
			Filtered:         sc.Filtered,
		}
	case operation.ListenComplete:
		var node = sc.GetNode()
		if complete != nil {
			node = *complete
		}
		return treenode.CacheNode{Node: node, FullyInitialized: true, Filtered: sc.Filtered}
	default:
		return sc
	}
}

func setAtPath(node treenode.Node, path treepath.Path, value treenode.Node) treenode.Node {
	front, ok := path.Front()
	if !ok {
		return value
	}
	var child = node.GetImmediateChild(front)
	return node.UpdateImmediateChild(front, setAtPath(child, path.PopFront(), value))
}

func mergeAtPath(node treenode.Node, path treepath.Path, children map[string]treenode.Node) treenode.Node {
	if path.IsEmpty() {
		for k, v := range children {
			node = node.UpdateImmediateChild(k, v)
		}
		return node
	}
	var front, _ = path.Front()
	var child = node.GetImmediateChild(front)
	return node.UpdateImmediateChild(front, mergeAtPath(child, path.PopFront(), children))
}
