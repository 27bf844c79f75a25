package event

import "encoding/json"

// StatusUpdate is a transient connection or runtime notice. It is not part
// of the action/observation stream and carries a string id.
type StatusUpdate struct {
	StatusUpdate bool   `json:"status_update"`
	Type         string `json:"type"`
	ID           string `json:"id"`
	Message      string `json:"message,omitempty"`
}

// Family reports FamilyVariance.
func (StatusUpdate) Family() Family { return FamilyVariance }

// Unrecognized wraps a JSON object that matches no family. It is kept so
// the transcript can still show it.
type Unrecognized struct {
	Raw json.RawMessage
}

// Family reports FamilyNone.
func (Unrecognized) Family() Family { return FamilyNone }
