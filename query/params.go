package query

import "github.com/jsayol/firebase-js-sdk/treenode"

// Bound is one endpoint of a Start/End range restriction, expressed against
// whichever Index the enclosing Params names.
type Bound struct {
	Key       string
	Priority  treenode.Priority
	Value     interface{}
	Inclusive bool
}

// Limit restricts a query to the first or last N children after ordering
// and range filtering. Reverse selects "last N" (limitToLast).
type Limit struct {
	N       int
	Reverse bool
}

// Params is the filter/order/limit portion of a Query.
type Params struct {
	Index Index
	Start *Bound
	End   *Bound
	Limit *Limit
}

// IsDefault is true iff Params carries no restriction at all: default key
// ordering, no bounds, no limit.
func (p Params) IsDefault() bool {
	return p.Index.Kind == KeyIndex && p.Start == nil && p.End == nil && p.Limit == nil
}

// LoadsAllData is true iff Params selects the entire node at its path: any
// ordering is fine, but no range or limit restriction may be present.
func (p Params) LoadsAllData() bool {
	return p.Start == nil && p.End == nil && p.Limit == nil
}

// IsFiltered is true iff a limit is present, matching the CacheNode.Filtered
// convention of spec §3 ("filtered means some server-side limit was
// applied").
func (p Params) IsFiltered() bool {
	return p.Limit != nil
}
