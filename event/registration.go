package event

import (
	"github.com/jsayol/firebase-js-sdk/treenode"
	"github.com/jsayol/firebase-js-sdk/treepath"
)

// Registration is a caller-supplied listener attached to a View via
// SyncPoint.AddEventRegistration. It is opaque to the sync engine beyond
// identity comparison (Matches) and event construction.
type Registration interface {
	// Matches reports whether |other| refers to the same logical listener,
	// used by View.RemoveEventRegistration to find the registration(s) to
	// drop. A nil |other| (remove-all) is handled by the caller, not here.
	Matches(other Registration) bool
	// CreateEvent builds the caller-facing Event for |change| observed at
	// |queryPath|.
	CreateEvent(change Change, queryPath treepath.Path) Event
	// CreateCancelEvent builds the Event delivered when this registration is
	// torn down due to a listen failure (spec §7).
	CreateCancelEvent(err error, path treepath.Path) Event
}

// Event is the fully-resolved, per-registration notification delivered to
// callers.
type Event struct {
	Registration Registration
	Type         ChangeType
	Path         treepath.Path
	Node         treenode.Node
	PrevChildKey string
	Error        error
}

// IsCancel is true for a cancellation Event (spec §7/§8).
func (e Event) IsCancel() bool { return e.Error != nil }
