// Package event models the agent event stream of a conversation: the closed
// set of actions, observations and status updates, how raw JSON is decoded
// into them, which of them reach the transcript, and how actions pair with
// the observations they caused.
package event

import "time"

// Type is the discriminant carried in an event's "action" or "observation"
// field. The same value names both the requested action and its result.
type Type string

const (
	TypeMessage           Type = "message"
	TypeSystem            Type = "system"
	TypeAgentStateChanged Type = "agent_state_changed"
	TypeChangeAgentState  Type = "change_agent_state"
	TypeRun               Type = "run"
	TypeRead              Type = "read"
	TypeWrite             Type = "write"
	TypeEdit              Type = "edit"
	TypeRunIPython        Type = "run_ipython"
	TypeDelegate          Type = "delegate"
	TypeBrowse            Type = "browse"
	TypeBrowseInteractive Type = "browse_interactive"
	TypeReject            Type = "reject"
	TypeThink             Type = "think"
	TypeFinish            Type = "finish"
	TypeError             Type = "error"
	TypeRecall            Type = "recall"
	TypeMCP               Type = "mcp"
	TypeCallToolMCP       Type = "call_tool_mcp"
	TypeUserRejected      Type = "user_rejected"
)

// Source identifies who produced an event.
type Source string

const (
	SourceAgent       Source = "agent"
	SourceUser        Source = "user"
	SourceEnvironment Source = "environment"
)

// Family separates the disjoint event shapes.
type Family int

const (
	FamilyNone Family = iota
	FamilyAction
	FamilyObservation
	FamilyVariance
)

func (f Family) String() string {
	switch f {
	case FamilyAction:
		return "action"
	case FamilyObservation:
		return "observation"
	case FamilyVariance:
		return "variance"
	default:
		return "none"
	}
}

// Event is any item decoded from a conversation stream.
type Event interface {
	Family() Family
}

// Header holds the fields every action and observation carries.
type Header struct {
	ID        int64  `json:"id"`
	Source    Source `json:"source"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// EventHeader returns the header itself so variants expose it through embedding.
func (h Header) EventHeader() Header { return h }

// Time parses Timestamp. The backend emits ISO-8601 without a zone as well
// as RFC 3339, so both are accepted.
func (h Header) Time() (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, h.Timestamp); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02T15:04:05.999999999", h.Timestamp)
}

// ActionHeader is embedded by every action variant.
type ActionHeader struct {
	Header
}

// Family reports FamilyAction.
func (ActionHeader) Family() Family { return FamilyAction }

// ObservationHeader is embedded by every observation variant.
type ObservationHeader struct {
	Header
	Cause   *int64 `json:"cause,omitempty"`
	Content string `json:"content"`
}

// Family reports FamilyObservation.
func (ObservationHeader) Family() Family { return FamilyObservation }

// CauseID returns the id of the action that produced the observation.
func (h ObservationHeader) CauseID() (int64, bool) {
	if h.Cause == nil {
		return 0, false
	}
	return *h.Cause, true
}

// Action is implemented by every action variant.
type Action interface {
	Event
	EventHeader() Header
	ActionType() Type
}

// Observation is implemented by every observation variant.
type Observation interface {
	Event
	EventHeader() Header
	ObservationType() Type
	CauseID() (int64, bool)
}

// HeaderOf returns the header of an action or observation.
func HeaderOf(ev Event) (Header, bool) {
	switch e := ev.(type) {
	case Action:
		return e.EventHeader(), true
	case Observation:
		return e.EventHeader(), true
	default:
		return Header{}, false
	}
}

// Discriminant returns the action or observation tag of ev.
func Discriminant(ev Event) (Type, bool) {
	switch e := ev.(type) {
	case Action:
		return e.ActionType(), true
	case Observation:
		return e.ObservationType(), true
	default:
		return "", false
	}
}

// CauseRef builds the optional cause pointer for an observation.
func CauseRef(id int64) *int64 { return &id }
