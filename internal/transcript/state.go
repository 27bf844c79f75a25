package transcript

import "github.com/user/deskdev/internal/event"

// AgentState returns the most recent controller state reported in events.
// The bool is false when no state change has been seen.
func AgentState(events []event.Event) (event.AgentState, bool) {
	for i := len(events) - 1; i >= 0; i-- {
		if o, ok := events[i].(event.AgentStateChangeObservation); ok {
			return o.Extras.AgentState, true
		}
	}
	return "", false
}

// AwaitingConfirmation reports whether the agent is blocked on the user
// approving its last action.
func AwaitingConfirmation(events []event.Event) bool {
	state, ok := AgentState(events)
	return ok && state == event.AgentStateAwaitingConfirmation
}
