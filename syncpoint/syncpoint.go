package syncpoint

import (
	"github.com/pkg/errors"

	"github.com/jsayol/firebase-js-sdk/event"
	"github.com/jsayol/firebase-js-sdk/operation"
	"github.com/jsayol/firebase-js-sdk/query"
	"github.com/jsayol/firebase-js-sdk/treenode"
	"github.com/jsayol/firebase-js-sdk/treepath"
	"github.com/jsayol/firebase-js-sdk/writetree"
)

// TrackedKeyRecorder is the seam SyncPoint uses to report filtered-query
// child membership changes without importing persistence directly (spec
// §4.2's "side effects"). persistence.Manager satisfies this interface.
type TrackedKeyRecorder interface {
	SetTrackedQueryKeys(q query.Query, keys []string)
	UpdateTrackedQueryKeys(q query.Query, added, removed []string)
}

// SyncPoint owns the set of Views at one path and fans an Operation out to
// every affected view, or to exactly one when the operation is tagged for a
// specific query (spec §4.2).
type SyncPoint struct {
	Path     treepath.Path
	views    map[string]*View
	recorder TrackedKeyRecorder
}

// New constructs an empty SyncPoint at path, reporting filtered-query
// membership changes to recorder (may be nil).
func New(path treepath.Path, recorder TrackedKeyRecorder) *SyncPoint {
	return &SyncPoint{Path: path, views: map[string]*View{}, recorder: recorder}
}

// IsEmpty reports whether the SyncPoint has no views left, per the spec §3
// invariant that empty sync points are removed from SyncTree.
func (sp *SyncPoint) IsEmpty() bool { return len(sp.views) == 0 }

// ViewForQuery returns the view for q's identifier, if any.
func (sp *SyncPoint) ViewForQuery(q query.Query) (*View, bool) {
	v, ok := sp.views[q.Identifier()]
	return v, ok
}

// ViewExistsForQuery reports whether a view for q's identifier exists.
func (sp *SyncPoint) ViewExistsForQuery(q query.Query) bool {
	_, ok := sp.views[q.Identifier()]
	return ok
}

// GetQueryViews returns every view at this point whose query restricts its
// keyspace (a range bound or a limit), i.e. every view that listens with its
// own tag.
func (sp *SyncPoint) GetQueryViews() []*View {
	var out []*View
	for _, v := range sp.views {
		if !v.Query.LoadsAllData() {
			out = append(out, v)
		}
	}
	return out
}

// GetCompleteView returns the first loads-all-data view found at this point
// whose server cache is fully initialized. A loads-all-data view that has
// not yet received a complete snapshot is not reported, and the point may
// hold more than one loads-all-data view (e.g. a default and an
// ordering-only query).
func (sp *SyncPoint) GetCompleteView() (*View, bool) {
	for _, v := range sp.views {
		if v.Query.LoadsAllData() && v.Cache().ServerCache.IsFullyInitialized() {
			return v, true
		}
	}
	return nil, false
}

// HasCompleteView reports whether GetCompleteView would succeed.
func (sp *SyncPoint) HasCompleteView() bool {
	_, ok := sp.GetCompleteView()
	return ok
}

// GetCompleteServerCache returns the complete view's server cache narrowed
// to relPath, if a complete view exists.
func (sp *SyncPoint) GetCompleteServerCache(relPath treepath.Path) (treenode.Node, bool) {
	v, ok := sp.GetCompleteView()
	if !ok {
		return nil, false
	}
	var node = v.Cache().ServerCache.GetNode()
	for _, part := range relPath.Parts() {
		node = node.GetImmediateChild(part)
	}
	return node, true
}

// AddEventRegistration attaches registration to the view for q, creating
// the view (seeded per spec §4.2) if it doesn't exist yet.
func (sp *SyncPoint) AddEventRegistration(q query.Query, r event.Registration, writes writetree.Ref, serverCache treenode.Node, serverCacheComplete bool) []event.Event {
	v, existed := sp.views[q.Identifier()]
	if !existed {
		var seedNode treenode.Node
		var ok bool
		if serverCacheComplete {
			seedNode, ok = writes.CalcCompleteEventCache(serverCache)
		}
		if !ok {
			seedNode = writes.CalcCompleteEventChildren(serverCache)
		}
		v = NewView(q, ViewCache{
			EventCache:  treenode.CacheNode{Node: q.Filter(seedNode), FullyInitialized: serverCacheComplete, Filtered: q.IsFiltered()},
			ServerCache: treenode.CacheNode{Node: serverCache, FullyInitialized: serverCacheComplete, Filtered: q.IsFiltered()},
		})
		sp.views[q.Identifier()] = v

		if q.IsFiltered() && sp.recorder != nil {
			var keys []string
			v.Cache().EventCache.GetNode().ForEachChild(nil, false, func(k string, _ treenode.Node) bool {
				keys = append(keys, k)
				return true
			})
			sp.recorder.SetTrackedQueryKeys(q, keys)
		}
	}

	v.AddEventRegistration(r)
	return v.GetInitialEvents(r)
}

// RemoveEventRegistration removes r (or every registration for q if r is
// nil) from the view for q, dropping the view if it becomes empty. It
// reports the queries whose listeners must now be stopped and any events
// produced (only nonempty when cancelErr is set), per spec §4.2.
func (sp *SyncPoint) RemoveEventRegistration(q query.Query, r event.Registration, cancelErr error) ([]query.Query, []event.Event) {
	var targets []query.Query
	if q.IsDefault() {
		for _, v := range sp.views {
			targets = append(targets, v.Query)
		}
	} else if _, ok := sp.views[q.Identifier()]; ok {
		targets = append(targets, q)
	}

	var removed []query.Query
	var events []event.Event
	var hadComplete = sp.HasCompleteView()

	for _, target := range targets {
		var v = sp.views[target.Identifier()]
		events = append(events, v.RemoveEventRegistration(r, cancelErr)...)
		if v.IsEmpty() {
			delete(sp.views, target.Identifier())
			removed = append(removed, target)
		}
	}

	if hadComplete && !sp.HasCompleteView() {
		removed = append(removed, query.DefaultAtPath(sp.Path))
	}

	return removed, events
}

// ApplyOperation fans op out to every view (or, when op is tagged for a
// specific query, to that one view only, which must exist), per spec §4.2.
// It also reports filtered-query child add/remove to the TrackedKeyRecorder.
func (sp *SyncPoint) ApplyOperation(op operation.Operation, writes writetree.Ref, complete *treenode.Node) ([]event.Event, error) {
	if op.Source.Kind == operation.FromServerTagged {
		v, ok := sp.views[op.Source.QueryID]
		if !ok {
			return nil, errors.Errorf("tagged operation for unknown query %q at %s", op.Source.QueryID, sp.Path.String())
		}
		return sp.applyToView(v, op, writes, complete), nil
	}

	var events []event.Event
	for _, v := range sp.views {
		events = append(events, sp.applyToView(v, op, writes, complete)...)
	}
	return events, nil
}

func (sp *SyncPoint) applyToView(v *View, op operation.Operation, writes writetree.Ref, complete *treenode.Node) []event.Event {
	var result, events = v.ApplyOperation(op, writes, complete)

	if v.Query.IsFiltered() && sp.recorder != nil {
		var added, removed = childKeyDelta(result.Changes)
		if len(added) > 0 || len(removed) > 0 {
			sp.recorder.UpdateTrackedQueryKeys(v.Query, added, removed)
		}
	}

	return events
}

// childKeyDelta extracts the filtered-query child membership delta spec
// §4.2 wants reported to the TrackedKeyRecorder directly from the Changes
// View.ApplyOperation already computed against the event cache, rather than
// re-deriving it with a separate before/after walk.
func childKeyDelta(changes []event.Change) (added, removed []string) {
	for _, c := range changes {
		switch c.Type {
		case event.ChildAdded:
			added = append(added, c.ChildKey)
		case event.ChildRemoved:
			removed = append(removed, c.ChildKey)
		}
	}
	return added, removed
}
