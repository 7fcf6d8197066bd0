package synctree

import (
	"github.com/jsayol/firebase-js-sdk/event"
	"github.com/jsayol/firebase-js-sdk/query"
)

// ListenStatus reports the outcome of a backend listen, per spec §6.
type ListenStatus struct {
	OK     bool
	Reason string
}

// ListenProvider is the external collaborator SyncTree drives to start and
// stop backend listens for a query, per spec §6. Tag is nil for an
// untagged (default-routed) listen and non-nil for a query-tagged one.
type ListenProvider interface {
	// StartListening opens a backend listen for q. hashFn returns a content
	// hash of the sync point's current server cache, for revalidation.
	// onComplete is invoked by the caller (not synchronously by
	// StartListening) once the backend reports success or failure; its
	// return value is delivered back through SyncTree as the events that
	// result from that completion (e.g. cancel events on failure).
	StartListening(q query.Query, tag *int, hashFn func() string, onComplete func(ListenStatus) []event.Event) []event.Event
	// StopListening closes the backend listen for q.
	StopListening(q query.Query, tag *int)
}
