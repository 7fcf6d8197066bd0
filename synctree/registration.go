package synctree

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/jsayol/firebase-js-sdk/event"
	"github.com/jsayol/firebase-js-sdk/metrics"
	"github.com/jsayol/firebase-js-sdk/query"
	"github.com/jsayol/firebase-js-sdk/syncpoint"
	"github.com/jsayol/firebase-js-sdk/treenode"
	"github.com/jsayol/firebase-js-sdk/treepath"
)

// needsTag reports whether q, once normalized for listening, still needs its
// own tag to route tagged server responses: true for any query that
// restricts its keyspace by range or limit. A query whose only restriction
// is ordering (LoadsAllData but not IsDefault) is promoted to the default
// query for listening and never needs a tag, per spec §4.4's
// queryForListening rule.
func needsTag(q query.Query) bool {
	return !q.IsDefault() && !q.LoadsAllData()
}

func (t *Tree) pointNodeAt(path treepath.Path, create bool) *pointNode {
	var cur = t.root
	for _, part := range path.Parts() {
		cur = cur.childAt(part, create)
		if cur == nil {
			return nil
		}
	}
	return cur
}

func (t *Tree) syncPointAt(path treepath.Path, create bool) *syncpoint.SyncPoint {
	var pn = t.pointNodeAt(path, create)
	if pn == nil {
		return nil
	}
	if pn.point == nil {
		if !create {
			return nil
		}
		var recorder syncpoint.TrackedKeyRecorder
		if t.persist != nil {
			recorder = t.persist
		}
		pn.point = syncpoint.New(path, recorder)
	}
	return pn.point
}

// deleteSyncPointAt drops the SyncPoint at path if it is empty, per the spec
// §3 invariant that empty sync points are removed from the tree. The
// pointNode itself is kept (it may still have descendants) but its point
// reference is cleared.
func (t *Tree) deleteSyncPointAt(path treepath.Path) {
	var pn = t.pointNodeAt(path, false)
	if pn != nil && pn.point != nil && pn.point.IsEmpty() {
		pn.point = nil
	}
}

// AddEventRegistration registers r against q, creating the sync point (and
// view, if needed) at q's path, resolving the best available server cache
// for it, and opening a backend listen unless an ancestor default listener
// already covers this keyspace, per spec §4.4.
func (t *Tree) AddEventRegistration(ctx context.Context, q query.Query, r event.Registration) []event.Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.addEventRegistrationLocked(ctx, q, r)
}

func (t *Tree) addEventRegistrationLocked(ctx context.Context, q query.Query, r event.Registration) []event.Event {
	var node, complete, covered = t.resolveRegistrationCacheLocked(ctx, q)

	var sp = t.syncPointAt(q.Path(), true)
	if t.persist != nil {
		t.persist.SetQueryActive(q)
	}

	var isNew = !sp.ViewExistsForQuery(q)
	if isNew && needsTag(q) {
		t.tags.assign(q)
	}

	var writesRef = t.writes.ChildWrites(q.Path())
	var events = sp.AddEventRegistration(q, r, writesRef, node, complete)

	if isNew && !covered {
		events = append(events, t.setupListenerLocked(q, sp)...)
	}
	return events
}

// resolveRegistrationCacheLocked implements spec §4.4 step 4: prefer an
// in-memory complete cache found by walking the path, else fall back to
// persistence, else EMPTY_NODE augmented by any already-complete immediate
// children. The returned covered flag reports whether some node on path
// (inclusive) already holds a complete view, the condition under which no
// new backend listen is needed.
func (t *Tree) resolveRegistrationCacheLocked(ctx context.Context, q query.Query) (node treenode.Node, complete bool, covered bool) {
	if n, found := t.deepestServerCache(q.Path()); found {
		return n, true, true
	}
	if t.persist != nil {
		var cn, _ = t.persist.GetServerCache(ctx, q).Wait()
		return cn.GetNode(), cn.FullyInitialized, false
	}
	var base = treenode.Empty()
	if pn := t.pointNodeAt(q.Path(), false); pn != nil {
		for k, child := range pn.children {
			if child.point == nil {
				continue
			}
			if n, ok := child.point.GetCompleteServerCache(treepath.Empty); ok {
				base = base.UpdateImmediateChild(k, n)
			}
		}
	}
	return base, false, false
}

// setupListenerLocked opens the backend listen appropriate for q (promoted
// to default if q merely orders without restricting, per
// query.Query.Normalize) and, if that promotion produced a default listen,
// stops every filtered listen it now shadows in the subtree, per spec
// §4.4 step 6.
func (t *Tree) setupListenerLocked(q query.Query, sp *syncpoint.SyncPoint) []event.Event {
	if t.listens == nil {
		return nil
	}
	var listenQuery = q.Normalize()
	var tag = t.tagPtrLocked(q)
	var path = q.Path()

	var hashFn = func() string {
		var n, ok = sp.GetCompleteServerCache(treepath.Empty)
		if !ok || n == nil {
			return treenode.Empty().Hash()
		}
		return n.Hash()
	}
	var onComplete = func(status ListenStatus) []event.Event {
		t.mu.Lock()
		defer t.mu.Unlock()
		if status.OK {
			return nil
		}
		metrics.ListenFailuresTotal.Inc()
		logrus.WithFields(t.logFields()).WithField("query", q.String()).WithField("reason", status.Reason).
			Warn("sync tree: backend listen failed, cancelling registrations")
		return t.removeEventRegistrationLocked(q, nil, errors.New(status.Reason))
	}

	metrics.ListensOpenedTotal.Inc()
	var events = t.listens.StartListening(listenQuery, tag, hashFn, onComplete)

	if listenQuery.IsDefault() {
		t.stopShadowedListensLocked(path)
	}
	return events
}

// stopShadowedListensLocked implements spec §4.4 step 6(b): once a default
// listen is open at path, every listen in the subtree it now shadows —
// filtered listens at path itself, and every listen (default or filtered)
// at a strict descendant — is redundant and must be stopped.

func (t *Tree) tagPtrLocked(q query.Query) *int {
	if !needsTag(q) {
		return nil
	}
	if tag, ok := t.tags.tagFor(q); ok {
		return &tag
	}
	return nil
}

func (t *Tree) stopShadowedListensLocked(path treepath.Path) {
	var pn = t.pointNodeAt(path, false)
	if pn == nil {
		return
	}
	t.stopShadowedListensRec(pn, true)
}

func (t *Tree) stopShadowedListensRec(pn *pointNode, isRoot bool) {
	if pn.point != nil {
		if !isRoot {
			if v, ok := pn.point.GetCompleteView(); ok {
				metrics.ListensClosedTotal.Inc()
				t.listens.StopListening(v.Query, nil)
			}
		}
		for _, v := range pn.point.GetQueryViews() {
			metrics.ListensClosedTotal.Inc()
			t.listens.StopListening(v.Query, t.tagPtrLocked(v.Query))
			t.tags.forget(v.Query)
		}
	}
	for _, c := range pn.children {
		t.stopShadowedListensRec(c, false)
	}
}

// RemoveEventRegistration removes r (or every registration for q, if r is
// nil) and tears down any backend listens no longer needed, re-establishing
// coverage for uncovered descendants first, per spec §4.4.
func (t *Tree) RemoveEventRegistration(q query.Query, r event.Registration, cancelErr error) []event.Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.removeEventRegistrationLocked(q, r, cancelErr)
}

func (t *Tree) removeEventRegistrationLocked(q query.Query, r event.Registration, cancelErr error) []event.Event {
	var sp = t.syncPointAt(q.Path(), false)
	if sp == nil {
		return nil
	}
	if !q.IsDefault() && !sp.ViewExistsForQuery(q) {
		return nil
	}

	var removed, events = sp.RemoveEventRegistration(q, r, cancelErr)
	t.deleteSyncPointAt(q.Path())

	for _, rq := range removed {
		if t.persist != nil {
			t.persist.SetQueryInactive(rq)
		}
	}

	var removingDefault bool
	for _, rq := range removed {
		if rq.LoadsAllData() {
			removingDefault = true
		}
	}
	var _, covered = t.deepestServerCache(q.Path())

	if removingDefault && !covered {
		for _, v := range t.collectCoverageViewsLocked(q.Path()) {
			if childSP := t.syncPointAt(v.Query.Path(), false); childSP != nil {
				events = append(events, t.setupListenerLocked(v.Query, childSP)...)
			}
		}
	}

	if !covered && len(removed) > 0 && cancelErr == nil && t.listens != nil {
		for _, rq := range removed {
			metrics.ListensClosedTotal.Inc()
			t.listens.StopListening(rq.Normalize(), t.tagPtrLocked(rq))
		}
	}

	for _, rq := range removed {
		if needsTag(rq) {
			t.tags.forget(rq)
		}
	}
	return events
}

// collectCoverageViewsLocked implements spec §4.4 step 5: for every
// immediate child subtree of path, the shallowest complete default view if
// one exists, else every filtered view in that subtree (flattened).
func (t *Tree) collectCoverageViewsLocked(path treepath.Path) []*syncpoint.View {
	var pn = t.pointNodeAt(path, false)
	if pn == nil {
		return nil
	}
	var out []*syncpoint.View
	for _, child := range pn.children {
		if v, ok := findShallowestCompleteView(child); ok {
			out = append(out, v)
		} else {
			out = append(out, collectFilteredViews(child)...)
		}
	}
	return out
}

func findShallowestCompleteView(pn *pointNode) (*syncpoint.View, bool) {
	if pn.point != nil {
		if v, ok := pn.point.GetCompleteView(); ok {
			return v, true
		}
	}
	for _, c := range pn.children {
		if v, ok := findShallowestCompleteView(c); ok {
			return v, true
		}
	}
	return nil, false
}

func collectFilteredViews(pn *pointNode) []*syncpoint.View {
	var out []*syncpoint.View
	if pn.point != nil {
		out = append(out, pn.point.GetQueryViews()...)
	}
	for _, c := range pn.children {
		out = append(out, collectFilteredViews(c)...)
	}
	return out
}
