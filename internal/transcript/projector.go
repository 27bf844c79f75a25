package transcript

import "github.com/user/deskdev/internal/event"

// DefaultRecentWindow is how many trailing entries count as recent.
const DefaultRecentWindow = 10

type options struct {
	recent int
}

// Option tunes Project.
type Option func(*options)

// WithRecentWindow changes the number of trailing entries flagged InRecent.
// Values below zero are treated as zero.
func WithRecentWindow(n int) Option {
	return func(o *options) {
		if n < 0 {
			n = 0
		}
		o.recent = n
	}
}

// Project filters events down to what should be rendered, annotates each
// survivor and appends the optimistic message when one is set. It never
// reorders events and holds no state, so equal inputs give equal output.
//
// Pairing is resolved against the full stream because hidden observations
// still complete their actions. Positional flags are computed over the
// visible entries only.
func Project(events []event.Event, optimistic string, opts ...Option) []Entry {
	o := options{recent: DefaultRecentWindow}
	for _, fn := range opts {
		fn(&o)
	}

	pairs := event.NewPairIndex(events)
	entries := make([]Entry, 0, len(events)+1)
	for i, ev := range events {
		if !event.ShouldRender(ev) {
			continue
		}
		entries = append(entries, Entry{
			Kind:               EntryEvent,
			Event:              ev,
			Index:              i,
			HasObservationPair: pairs.HasObservationPair(ev),
		})
	}

	n := len(entries)
	awaiting := AwaitingConfirmation(events)
	for i := range entries {
		entries[i].IsLast = i == n-1
		entries[i].InRecent = i >= n-o.recent
		entries[i].AwaitingConfirmation = awaiting && entries[i].IsLast
	}

	if optimistic != "" {
		entries = append(entries, Entry{
			Kind:    EntryOptimistic,
			Index:   -1,
			Type:    "user",
			Message: optimistic,
		})
	}
	return entries
}
