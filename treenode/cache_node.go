package treenode

// CacheNode is (node, fullyInitialized, filtered) per spec §3: filtered
// means some server-side limit was applied, so the node may not represent
// the complete keyspace at its path even when fullyInitialized is true.
type CacheNode struct {
	Node              Node
	FullyInitialized  bool
	Filtered          bool
}

// EmptyCacheNode is the canonical "nothing known yet" CacheNode.
var EmptyCacheNode = CacheNode{Node: Empty()}

// IsFullyInitialized reports whether this cache reflects a complete
// server-delivered snapshot for its query.
func (c CacheNode) IsFullyInitialized() bool { return c.FullyInitialized }

// IsFiltered reports whether a limit restricted this snapshot.
func (c CacheNode) IsFiltered() bool { return c.Filtered }

// GetNode returns the underlying Node, defaulting to Empty() if unset.
func (c CacheNode) GetNode() Node {
	if c.Node == nil {
		return Empty()
	}
	return c.Node
}
