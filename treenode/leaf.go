package treenode

// Leaf is a Node carrying a primitive JSON value (string, float64, bool) and
// an optional Priority.
type Leaf struct {
	value interface{}
	prio  Priority
}

// NewLeaf builds a Leaf with no priority.
func NewLeaf(value interface{}) *Leaf { return &Leaf{value: value} }

// NewLeafWithPriority builds a Leaf carrying the given priority.
func NewLeafWithPriority(value interface{}, p Priority) *Leaf {
	return &Leaf{value: value, prio: p}
}

func (l *Leaf) IsLeaf() bool       { return true }
func (l *Leaf) Value() interface{} { return l.value }
func (l *Leaf) Priority() Priority { return l.prio }

func (l *Leaf) WithPriority(p Priority) Node {
	return &Leaf{value: l.value, prio: p}
}

func (l *Leaf) GetImmediateChild(string) Node { return Empty() }

func (l *Leaf) UpdateImmediateChild(key string, child Node) Node {
	// A Leaf has no children of its own; introducing one promotes the
	// receiver to a Children node rooted at EMPTY_NODE, discarding the
	// leaf's scalar value per the source's overwrite rule.
	return Empty().UpdateImmediateChild(key, child).WithPriority(l.prio)
}

func (l *Leaf) HasChild(string) bool { return false }
func (l *Leaf) NumChildren() int     { return 0 }

func (l *Leaf) ForEachChild(Comparator, bool, func(string, Node) bool) bool { return true }

func (l *Leaf) IsEmpty() bool { return false }

func (l *Leaf) Equal(other Node) bool {
	var o, ok = other.(*Leaf)
	return ok && o.value == l.value && o.prio == l.prio
}

func (l *Leaf) Export() interface{} { return l.value }

func (l *Leaf) ExportWithPriority() interface{} {
	if l.prio.IsNone() {
		return l.value
	}
	return map[string]interface{}{".value": l.value, ".priority": l.prio.Export()}
}

func (l *Leaf) Hash() string { return hashNode(l) }
