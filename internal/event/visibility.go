package event

// Bookkeeping tags hidden in both families.
var commonNoRender = map[Type]bool{
	TypeSystem:            true,
	TypeAgentStateChanged: true,
	TypeChangeAgentState:  true,
}

// Recall requests are hidden, their results are not.
var actionNoRender = map[Type]bool{
	TypeRecall: true,
}

// ShouldRender decides whether ev belongs in the transcript. It depends
// only on the event's own fields. Events that are neither actions nor
// observations, including unrecognized objects, are shown.
func ShouldRender(ev Event) bool {
	switch e := ev.(type) {
	case Action:
		t := e.ActionType()
		if t == TypeRun && e.EventHeader().Source == SourceUser {
			// user commands are echoed by the terminal, not the chat
			return false
		}
		return !commonNoRender[t] && !actionNoRender[t]
	case Observation:
		t := e.ObservationType()
		if t == TypeRun && e.EventHeader().Source == SourceUser {
			return false
		}
		return !commonNoRender[t]
	default:
		return true
	}
}

// Visible returns the events that pass ShouldRender, in order.
func Visible(events []Event) []Event {
	out := make([]Event, 0, len(events))
	for _, ev := range events {
		if ShouldRender(ev) {
			out = append(out, ev)
		}
	}
	return out
}
