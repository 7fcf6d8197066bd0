package event

import (
	"github.com/jsayol/firebase-js-sdk/treepath"
)

// CallbackRegistration is a minimal Registration backed by a plain callback,
// identified by a caller-chosen comparable ID. It is sufficient for most
// embedders of this module and for the module's own tests; nothing about
// SyncPoint or View depends on it specifically, only on the Registration
// interface.
type CallbackRegistration struct {
	ID       interface{}
	Callback func(Event)
}

func (r *CallbackRegistration) Matches(other Registration) bool {
	o, ok := other.(*CallbackRegistration)
	return ok && o.ID == r.ID
}

func (r *CallbackRegistration) CreateEvent(change Change, queryPath treepath.Path) Event {
	return Event{
		Registration: r,
		Type:         change.Type,
		Path:         queryPath.Child(change.ChildKey),
		Node:         change.Node,
		PrevChildKey: change.PrevChildKey,
	}
}

func (r *CallbackRegistration) CreateCancelEvent(err error, path treepath.Path) Event {
	return Event{Registration: r, Path: path, Error: err}
}

// Deliver invokes the callback if present; a nil Callback makes this a
// no-op sink, useful in tests that only care about returned Events.
func (r *CallbackRegistration) Deliver(e Event) {
	if r.Callback != nil {
		r.Callback(e)
	}
}
