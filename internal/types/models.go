// internal/types/models.go
package types

import (
	"encoding/json"
	"time"
)

// Record is one event as stored in a conversation's local log. Event holds
// the raw server JSON so unknown fields survive a round trip.
type Record struct {
	ConversationID ConversationID  `json:"conversation_id"`
	Seq            int64           `json:"seq"`
	EventID        int64           `json:"event_id"`
	ReceivedAt     time.Time       `json:"received_at"`
	Event          json.RawMessage `json:"event"`
}

type ConversationIndex struct {
	ConversationID ConversationID `json:"conversation_id"`
	Title          string         `json:"title"`
	Status         string         `json:"status"`
	Repository     string         `json:"repository,omitempty"`
	DeliveryKey    DeliveryKey    `json:"delivery_key,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	LastEventID    int64          `json:"last_event_id"`
	LastEventSeq   int64          `json:"last_event_seq"`
}

// Batch is a group of raw events received together from the server.
type Batch struct {
	ID             BatchID
	ConversationID ConversationID
	Events         []json.RawMessage
	ReceivedAt     time.Time
}

// InboundMessage is user text arriving from a chat channel or the local API.
type InboundMessage struct {
	Source         string         `json:"source"`
	DeliveryKey    DeliveryKey    `json:"delivery_key,omitempty"`
	ConversationID ConversationID `json:"conversation_id"`
	UserID         string         `json:"user_id,omitempty"`
	Text           string         `json:"text"`
}
