// Package treenode implements Node, the persistent JSON tree at the heart of
// spec §3: either a leaf carrying a primitive value plus an optional
// priority, or a children node holding a sorted mapping from child key to
// Node.
package treenode

// Comparator orders two (key, Node) pairs; it returns true if the first
// sorts strictly before the second. ForEachChild and the query package's
// filtering logic both parameterize on this, so the same tree machinery
// serves key/priority/value/path ordered queries (spec §3's Query Index
// variants) without the Node implementations knowing about Query at all.
type Comparator func(keyA string, a Node, keyB string, b Node) bool

// KeyComparator orders children by CompareKeys, the default ordering used
// whenever a Query has no explicit Index.
func KeyComparator(keyA string, _ Node, keyB string, _ Node) bool {
	return CompareKeys(keyA, keyB) < 0
}

// Node is the persistent JSON tree node. Implementations (Leaf, Children)
// are immutable: every mutating-looking method returns a new Node sharing
// unmodified structure with the receiver.
type Node interface {
	// IsLeaf is true for Leaf nodes (including nil/empty-value leaves), false
	// for Children nodes.
	IsLeaf() bool
	// Value returns the leaf's primitive payload, or nil for a Children node.
	Value() interface{}
	// Priority returns the node's ordering priority, or NoPrio.
	Priority() Priority
	// WithPriority returns a copy of the node carrying the given priority.
	WithPriority(Priority) Node
	// GetImmediateChild returns the Node at the single path component |key|,
	// or Empty() if absent. Always returns Empty() for Leaf receivers.
	GetImmediateChild(key string) Node
	// UpdateImmediateChild returns a new Node with |key| bound to |child|. If
	// |child| is Empty(), the key is removed. Updating a Leaf's child
	// promotes the receiver's value to EMPTY_NODE first (the leaf's own
	// value is discarded, matching the source's overwrite-on-structural-
	// conflict rule).
	UpdateImmediateChild(key string, child Node) Node
	// HasChild reports whether |key| names a present, non-empty child.
	HasChild(key string) bool
	// NumChildren returns the count of immediate children (zero for Leaf).
	NumChildren() int
	// ForEachChild visits children in the order defined by |cmp| (or key
	// order if cmp is nil), in reverse if |reverse|. Visitation stops early
	// if |cb| returns false; ForEachChild then itself returns false.
	ForEachChild(cmp Comparator, reverse bool, cb func(key string, child Node) bool) bool
	// IsEmpty is true for EMPTY_NODE (a childless Children node with no
	// value and no priority).
	IsEmpty() bool
	// Hash returns a stable content hash over value/priority/children,
	// suitable for the ListenProvider hashFn revalidation hook (spec §6).
	Hash() string
	// Equal reports deep structural equality.
	Equal(other Node) bool
	// Export renders the node as a plain JSON-compatible value (map, slice-
	// like object, primitive, or nil), without priority wrapping.
	Export() interface{}
	// ExportWithPriority is like Export, but keeps priorities: a Leaf with a
	// priority renders as {".value": ..., ".priority": ...}, and a Children
	// node with a priority gains a ".priority" entry beside its children;
	// descendants are rendered the same way. This is the wire format the
	// source system uses to round-trip priorities through JSON.
	ExportWithPriority() interface{}
}

var empty = &Children{kids: nil}

// Empty returns the canonical EMPTY_NODE: a Children node with no entries,
// no value, and no priority.
func Empty() Node { return empty }

// IsEmptyNode reports whether |n| is nil or the canonical EMPTY_NODE.
func IsEmptyNode(n Node) bool {
	return n == nil || n.IsEmpty()
}

// NodeFrom wraps a plain JSON-decoded value (map[string]interface{}, slice,
// string, float64, bool, or nil) into a Node tree, mirroring the external
// JSON-parsing collaborator referenced in spec §1/§6 (nodeFromJSON).
func NodeFrom(v interface{}) Node {
	return nodeFromJSON(v, NoPrio)
}

func nodeFromJSON(v interface{}, prio Priority) Node {
	switch t := v.(type) {
	case nil:
		return Empty()
	case map[string]interface{}:
		var p = prio
		var value = t
		if raw, ok := t[".priority"]; ok {
			p = priorityFromJSON(raw)
		}
		if inner, ok := value[".value"]; ok {
			return nodeFromJSON(inner, p)
		}
		var c = &Children{kids: map[string]Node{}, prio: p}
		for k, cv := range value {
			if k == ".priority" {
				continue
			}
			c.kids[k] = nodeFromJSON(cv, NoPrio)
		}
		if len(c.kids) == 0 {
			c.kids = nil
		}
		return c
	case []interface{}:
		var c = &Children{kids: map[string]Node{}, prio: prio}
		for i, cv := range t {
			if cv == nil {
				continue
			}
			c.kids[intToKey(i)] = nodeFromJSON(cv, NoPrio)
		}
		if len(c.kids) == 0 {
			c.kids = nil
		}
		return c
	default:
		return &Leaf{value: t, prio: prio}
	}
}

func priorityFromJSON(v interface{}) Priority {
	switch t := v.(type) {
	case float64:
		return NumPrio(t)
	case string:
		return StrPrio(t)
	default:
		return NoPrio
	}
}

func intToKey(i int) string {
	const digits = "0123456789"
	if i == 0 {
		return "0"
	}
	var buf []byte
	for i > 0 {
		buf = append([]byte{digits[i%10]}, buf...)
		i /= 10
	}
	return string(buf)
}
