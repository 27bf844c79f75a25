// Package transcript turns a conversation's event stream into the ordered
// list of entries a chat view renders.
package transcript

import "github.com/user/deskdev/internal/event"

// EntryKind distinguishes real events from the client-side pending message.
type EntryKind int

const (
	EntryEvent EntryKind = iota
	EntryOptimistic
)

func (k EntryKind) String() string {
	if k == EntryOptimistic {
		return "optimistic"
	}
	return "event"
}

// Entry is one renderable row of a transcript.
type Entry struct {
	Kind EntryKind

	// Event is nil for optimistic entries.
	Event event.Event
	// Index is the event's position in the full stream, or -1.
	Index int

	HasObservationPair bool
	IsLast             bool
	// InRecent is set for the trailing entries inside the recent window;
	// views show more detail for these.
	InRecent bool
	// AwaitingConfirmation is set on the last entry while the agent waits
	// for the user to approve it.
	AwaitingConfirmation bool

	// Type and Message are only set on optimistic entries.
	Type    string
	Message string
}

// ID returns the event id behind the entry, if any.
func (e Entry) ID() (int64, bool) {
	h, ok := event.HeaderOf(e.Event)
	if !ok {
		return 0, false
	}
	return h.ID, true
}
