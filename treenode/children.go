package treenode

import "sort"

// Children is a Node holding a mapping from child key to Node, plus an
// optional Priority on the node itself (a children node's own ordering
// priority, distinct from any of its childrens' priorities).
type Children struct {
	kids map[string]Node
	prio Priority
}

func (c *Children) IsLeaf() bool       { return false }
func (c *Children) Value() interface{} { return nil }
func (c *Children) Priority() Priority { return c.prio }

func (c *Children) WithPriority(p Priority) Node {
	return &Children{kids: c.kids, prio: p}
}

func (c *Children) GetImmediateChild(key string) Node {
	if child, ok := c.kids[key]; ok {
		return child
	}
	return Empty()
}

func (c *Children) UpdateImmediateChild(key string, child Node) Node {
	var next = make(map[string]Node, len(c.kids)+1)
	for k, v := range c.kids {
		next[k] = v
	}
	if IsEmptyNode(child) {
		delete(next, key)
	} else {
		next[key] = child
	}
	if len(next) == 0 {
		next = nil
	}
	return &Children{kids: next, prio: c.prio}
}

func (c *Children) HasChild(key string) bool {
	child, ok := c.kids[key]
	return ok && !IsEmptyNode(child)
}

func (c *Children) NumChildren() int { return len(c.kids) }

func (c *Children) IsEmpty() bool { return len(c.kids) == 0 && c.prio.IsNone() }

func (c *Children) sortedKeys(cmp Comparator) []string {
	if cmp == nil {
		cmp = KeyComparator
	}
	var keys = make([]string, 0, len(c.kids))
	for k := range c.kids {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return cmp(keys[i], c.kids[keys[i]], keys[j], c.kids[keys[j]])
	})
	return keys
}

func (c *Children) ForEachChild(cmp Comparator, reverse bool, cb func(key string, child Node) bool) bool {
	var keys = c.sortedKeys(cmp)
	if reverse {
		for i, j := 0, len(keys)-1; i < j; i, j = i+1, j-1 {
			keys[i], keys[j] = keys[j], keys[i]
		}
	}
	for _, k := range keys {
		if !cb(k, c.kids[k]) {
			return false
		}
	}
	return true
}

func (c *Children) Equal(other Node) bool {
	var o, ok = other.(*Children)
	if !ok || o.prio != c.prio || len(o.kids) != len(c.kids) {
		return false
	}
	for k, v := range c.kids {
		var ov, present = o.kids[k]
		if !present || !v.Equal(ov) {
			return false
		}
	}
	return true
}

func (c *Children) Export() interface{} {
	if len(c.kids) == 0 {
		return map[string]interface{}{}
	}
	var out = make(map[string]interface{}, len(c.kids))
	for k, v := range c.kids {
		out[k] = v.Export()
	}
	return out
}

func (c *Children) ExportWithPriority() interface{} {
	var out = make(map[string]interface{}, len(c.kids)+1)
	for k, v := range c.kids {
		out[k] = v.ExportWithPriority()
	}
	if !c.prio.IsNone() {
		out[".priority"] = c.prio.Export()
	}
	if len(out) == 0 {
		return map[string]interface{}{}
	}
	return out
}

func (c *Children) Hash() string { return hashNode(c) }
