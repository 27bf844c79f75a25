package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasObservationPair(t *testing.T) {
	events := []Event{
		action(1, SourceAgent, TypeRun),
		observation(2, 1, SourceAgent, TypeRun),
		action(3, SourceAgent, TypeRead),
	}

	assert.True(t, HasObservationPair(events[0], events))
	assert.False(t, HasObservationPair(events[2], events), "read has no result yet")
	assert.False(t, HasObservationPair(events[1], events), "observations never pair")
}

func TestHasObservationPairDanglingCause(t *testing.T) {
	events := []Event{
		action(1, SourceAgent, TypeRun),
		observation(2, 99, SourceAgent, TypeRun),
	}
	assert.False(t, HasObservationPair(events[0], events))
}

func TestHasObservationPairIgnoresMissingCause(t *testing.T) {
	// id 0 must not pair with an observation that has no cause at all
	noCause := mustDecodeString(`{"id":5,"source":"agent","observation":"run","content":"","extras":{}}`)
	zero := action(0, SourceAgent, TypeRun)
	assert.False(t, HasObservationPair(zero, []Event{zero, noCause}))
	assert.False(t, NewPairIndex([]Event{zero, noCause}).HasObservationPair(zero))
}

func TestHasObservationPairNonEvents(t *testing.T) {
	events := []Event{action(1, SourceAgent, TypeRun), nil, Unrecognized{}, StatusUpdate{}}
	assert.False(t, HasObservationPair(events[0], events))
	assert.False(t, HasObservationPair(nil, events))
	assert.False(t, HasObservationPair(StatusUpdate{}, events))
}

func TestPairIndexMatchesScan(t *testing.T) {
	events := []Event{
		action(1, SourceAgent, TypeRun),
		observation(2, 1, SourceAgent, TypeRun),
		action(3, SourceAgent, TypeEdit),
		action(4, SourceAgent, TypeBrowse),
		observation(5, 4, SourceAgent, TypeBrowse),
		observation(6, 42, SourceAgent, TypeError),
	}
	idx := NewPairIndex(events)
	for _, ev := range events {
		assert.Equal(t, HasObservationPair(ev, events), idx.HasObservationPair(ev))
	}
}

func TestPairingReflectsAppends(t *testing.T) {
	events := []Event{action(1, SourceAgent, TypeRun)}
	assert.False(t, HasObservationPair(events[0], events))

	events = append(events, observation(2, 1, SourceAgent, TypeRun))
	assert.True(t, HasObservationPair(events[0], events))
}
