package query

import (
	"fmt"
	"strings"

	"github.com/jsayol/firebase-js-sdk/treepath"
)

// DefaultIdentifier is the distinguished Identifier() value reserved for
// default (unfiltered) queries, per spec §3.
const DefaultIdentifier = ".default"

// Query is a (path, parameters) pair, per spec §3.
type Query struct {
	path   treepath.Path
	params Params
}

// New builds a Query.
func New(path treepath.Path, params Params) Query {
	return Query{path: path, params: params}
}

// DefaultAtPath returns the unfiltered, default query rooted at |path|.
func DefaultAtPath(path treepath.Path) Query {
	return Query{path: path}
}

// Path returns the query's root path.
func (q Query) Path() treepath.Path { return q.path }

// Params returns the query's filter/order/limit parameters.
func (q Query) Params() Params { return q.params }

// LoadsAllData is true iff this query selects the whole node at its path.
func (q Query) LoadsAllData() bool { return q.params.LoadsAllData() }

// IsDefault is true iff there are no parameters at all.
func (q Query) IsDefault() bool { return q.params.IsDefault() }

// IsFiltered mirrors Params.IsFiltered.
func (q Query) IsFiltered() bool { return q.params.IsFiltered() }

// Normalize maps any loadsAllData query to the default query at its path,
// per the TrackedQuery normalization rule in spec §3 and the
// queryForListening promotion in spec §4.4: both a tracked query and a
// backend listen only ever need to distinguish "everything" from "a proper
// filtered subset," never the ordering used to view "everything."
func (q Query) Normalize() Query {
	if q.LoadsAllData() && !q.IsDefault() {
		return DefaultAtPath(q.path)
	}
	return q
}

// Identifier returns a deterministic fingerprint of the query's parameters.
// Two queries with equal Path and Identifier are interchangeable per §3.
func (q Query) Identifier() string {
	if q.IsDefault() {
		return DefaultIdentifier
	}
	var b strings.Builder

	switch q.params.Index.Kind {
	case KeyIndex:
		b.WriteString("ix=key")
	case PriorityIndex:
		b.WriteString("ix=priority")
	case ValueIndex:
		b.WriteString("ix=value")
	case PathIndex:
		fmt.Fprintf(&b, "ix=path:%s", q.params.Index.Path.String())
	}
	if s := q.params.Start; s != nil {
		fmt.Fprintf(&b, "|s=%s:%v:%v:%v", s.Key, s.Priority.Export(), s.Value, s.Inclusive)
	}
	if e := q.params.End; e != nil {
		fmt.Fprintf(&b, "|e=%s:%v:%v:%v", e.Key, e.Priority.Export(), e.Value, e.Inclusive)
	}
	if l := q.params.Limit; l != nil {
		fmt.Fprintf(&b, "|l=%d:%v", l.N, l.Reverse)
	}
	return b.String()
}

// QueryKey returns the "path$identifier" key spec §3 uses for the
// SyncTree's bidirectional tag map.
func (q Query) QueryKey() string {
	return q.path.String() + "$" + q.Identifier()
}

func (q Query) String() string {
	return q.QueryKey()
}
