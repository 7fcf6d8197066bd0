// Package syncpoint implements View, ViewCache, and SyncPoint (spec §4.1,
// §4.2): the per-path containers that apply Operations, maintain the
// server/event cache pair, and emit Change/Event records to registered
// listeners.
package syncpoint

import (
	"github.com/sirupsen/logrus"

	"github.com/jsayol/firebase-js-sdk/event"
	"github.com/jsayol/firebase-js-sdk/operation"
	"github.com/jsayol/firebase-js-sdk/query"
	"github.com/jsayol/firebase-js-sdk/treenode"
	"github.com/jsayol/firebase-js-sdk/treepath"
	"github.com/jsayol/firebase-js-sdk/writetree"
)

// ViewCache holds the two CacheNodes a View maintains: the event cache
// (what the caller sees, server data with pending writes layered on top)
// and the server cache (the authoritative remote snapshot for this view).
type ViewCache struct {
	EventCache  treenode.CacheNode
	ServerCache treenode.CacheNode
}

// ViewOperationResult reports the event-cache Change list produced by an
// applied Operation (spec §4.1), for callers that need the raw diff rather
// than just the per-registration Events derived from it.
type ViewOperationResult struct {
	Changes []event.Change
}

// View maintains a ViewCache for one (query, path) and turns applied
// Operations into Change/Event records for its registrations.
type View struct {
	Query         query.Query
	cache         ViewCache
	registrations []event.Registration
}

// NewView constructs a View seeded with the given ViewCache.
func NewView(q query.Query, seed ViewCache) *View {
	return &View{Query: q, cache: seed}
}

// Cache returns the View's current ViewCache.
func (v *View) Cache() ViewCache { return v.cache }

// IsEmpty reports whether the View has no registrations left.
func (v *View) IsEmpty() bool { return len(v.registrations) == 0 }

// AddEventRegistration appends a registration.
func (v *View) AddEventRegistration(r event.Registration) {
	v.registrations = append(v.registrations, r)
}

// GetInitialEvents returns the synthetic initial Change sequence a newly
// added registration should observe: a CHILD_ADDED per current child (in
// query order) plus a trailing VALUE.
func (v *View) GetInitialEvents(r event.Registration) []event.Event {
	var node = v.cache.EventCache.GetNode()
	var changes []event.Change
	var prev = ""
	node.ForEachChild(v.Query.Params().Index.Comparator(), false, func(k string, child treenode.Node) bool {
		changes = append(changes, event.Change{Type: event.ChildAdded, ChildKey: k, Node: child, PrevChildKey: prev})
		prev = k
		return true
	})
	changes = append(changes, event.Change{Type: event.ValueChanged, Node: node})
	return eventsFor(r, changes, v.Query.Path())
}

// RemoveEventRegistration removes matching registrations (all, if r is nil)
// and returns a cancel Event per removed registration when cancelErr is set.
func (v *View) RemoveEventRegistration(r event.Registration, cancelErr error) []event.Event {
	var kept []event.Registration
	var removed []event.Registration
	for _, existing := range v.registrations {
		if r == nil || existing.Matches(r) {
			removed = append(removed, existing)
			continue
		}
		kept = append(kept, existing)
	}
	v.registrations = kept

	if cancelErr == nil {
		return nil
	}
	var events []event.Event
	for _, reg := range removed {
		events = append(events, reg.CreateCancelEvent(cancelErr, v.Query.Path()))
	}
	return events
}

// ApplyOperation updates both caches for op and returns the resulting
// Changes plus the per-registration Events they translate to.
func (v *View) ApplyOperation(op operation.Operation, writes writetree.Ref, complete *treenode.Node) (ViewOperationResult, []event.Event) {
	var oldServer = v.cache.ServerCache
	var newServer = applyToServerCache(oldServer, op, complete)

	var oldFiltered = v.Query.Filter(v.cache.EventCache.GetNode())
	var newEventNode, ok = writes.CalcCompleteEventCache(newServer.GetNode())
	if !ok {
		newEventNode = writes.CalcCompleteEventChildren(newServer.GetNode())
	}
	var newFiltered = v.Query.Filter(newEventNode)

	var changes = diff(v.Query, oldFiltered, newFiltered, oldServer.FullyInitialized, newServer.FullyInitialized)

	v.cache = ViewCache{
		EventCache:  treenode.CacheNode{Node: newEventNode, FullyInitialized: newServer.FullyInitialized, Filtered: v.Query.IsFiltered()},
		ServerCache: newServer,
	}

	logrus.WithFields(logrus.Fields{
		"path":    v.Query.Path().String(),
		"query":   v.Query.Identifier(),
		"changes": len(changes),
	}).Debug("view applied operation")

	var events []event.Event
	for _, r := range v.registrations {
		events = append(events, eventsFor(r, changes, v.Query.Path())...)
	}
	return ViewOperationResult{Changes: changes}, events
}

func eventsFor(r event.Registration, changes []event.Change, path treepath.Path) []event.Event {
	var events = make([]event.Event, 0, len(changes))
	for _, c := range changes {
		events = append(events, r.CreateEvent(c, path))
	}
	return events
}
