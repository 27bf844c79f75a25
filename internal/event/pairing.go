package event

// HasObservationPair reports whether some observation in events was caused
// by the action ev. It is always false for anything that is not an action.
// Observations whose cause matches no action are simply unpaired.
func HasObservationPair(ev Event, events []Event) bool {
	a, ok := ev.(Action)
	if !ok {
		return false
	}
	id := a.EventHeader().ID
	for _, other := range events {
		o, ok := other.(Observation)
		if !ok {
			continue
		}
		if cause, ok := o.CauseID(); ok && cause == id {
			return true
		}
	}
	return false
}

// PairIndex answers HasObservationPair in constant time for one snapshot
// of the event list. Build a new index whenever the list changes.
type PairIndex struct {
	caused map[int64]struct{}
}

// NewPairIndex indexes the cause ids of every observation in events.
func NewPairIndex(events []Event) *PairIndex {
	idx := &PairIndex{caused: make(map[int64]struct{})}
	for _, ev := range events {
		o, ok := ev.(Observation)
		if !ok {
			continue
		}
		if cause, ok := o.CauseID(); ok {
			idx.caused[cause] = struct{}{}
		}
	}
	return idx
}

// HasObservationPair matches the package-level function for the indexed list.
func (p *PairIndex) HasObservationPair(ev Event) bool {
	a, ok := ev.(Action)
	if !ok {
		return false
	}
	_, paired := p.caused[a.EventHeader().ID]
	return paired
}
