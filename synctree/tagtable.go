package synctree

import (
	"strconv"

	"github.com/jsayol/firebase-js-sdk/query"
)

// tagTable is the bidirectional queryKey<->tag map spec §3 describes, used
// to route tagged server responses back to the query that requested them.
// Tags are monotonically assigned positive integers.
type tagTable struct {
	next       int
	queryToTag map[string]int
	tagToQuery map[string]query.Query
}

func newTagTable() *tagTable {
	return &tagTable{queryToTag: map[string]int{}, tagToQuery: map[string]query.Query{}}
}

// assign allocates (or returns the existing) tag for q.
func (t *tagTable) assign(q query.Query) int {
	var key = q.QueryKey()
	if tag, ok := t.queryToTag[key]; ok {
		return tag
	}
	t.next++
	t.queryToTag[key] = t.next
	t.tagToQuery[strconv.Itoa(t.next)] = q
	return t.next
}

// tagFor returns the assigned tag for q, if any.
func (t *tagTable) tagFor(q query.Query) (int, bool) {
	tag, ok := t.queryToTag[q.QueryKey()]
	return tag, ok
}

// queryFor resolves a tag id (as delivered with a tagged server update) back
// to the query it was assigned to; the operation built for that update then
// carries the query's Identifier (see operation.ServerTagged). Returns
// false if the query has since been forgotten (spec §4.4's "drop the
// update silently").
func (t *tagTable) queryFor(tagID string) (query.Query, bool) {
	q, ok := t.tagToQuery[tagID]
	return q, ok
}

// forget removes every tag entry for q.
func (t *tagTable) forget(q query.Query) {
	var key = q.QueryKey()
	if tag, ok := t.queryToTag[key]; ok {
		delete(t.queryToTag, key)
		delete(t.tagToQuery, strconv.Itoa(tag))
	}
}
