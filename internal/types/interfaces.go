// internal/types/interfaces.go
package types

import (
	"context"
)

type ConversationStore interface {
	Upsert(ctx context.Context, conv *ConversationIndex) error
	Get(ctx context.Context, id ConversationID) (*ConversationIndex, error)
	List(ctx context.Context) ([]*ConversationIndex, error)
}

type EventStore interface {
	Append(ctx context.Context, rec *Record) error
	Tail(ctx context.Context, id ConversationID, limit int) ([]*Record, error)
	List(ctx context.Context, id ConversationID) ([]*Record, error)
	Count(ctx context.Context, id ConversationID) (int64, error)
	LastEventID(ctx context.Context, id ConversationID) (int64, bool, error)
}
