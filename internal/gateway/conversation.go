package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/user/deskdev/internal/event"
	"github.com/user/deskdev/internal/transcript"
	"github.com/user/deskdev/internal/types"
)

// conversation is the in-memory view of one followed conversation.
type conversation struct {
	id         types.ConversationID
	optimistic transcript.Optimistic

	// deliverMu is taken before mu and held while messages are delivered.
	deliverMu sync.Mutex

	mu     sync.Mutex
	events []event.Event
	key    types.DeliveryKey
	stop   context.CancelFunc
	live   EventStream
}

func (c *conversation) setLive(s EventStream) {
	c.mu.Lock()
	c.live = s
	c.mu.Unlock()
}

func (c *conversation) liveStream() EventStream {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.live
}

// conversation returns the cached state for id, loading stored events on
// first use.
func (g *Gateway) conversation(ctx context.Context, id types.ConversationID) (*conversation, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}
	g.mu.Lock()
	conv, ok := g.convs[id]
	g.mu.Unlock()
	if ok {
		return conv, nil
	}

	records, err := g.events.List(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	conv = &conversation{id: id, events: make([]event.Event, 0, len(records))}
	for _, rec := range records {
		ev, err := event.Decode(rec.Event)
		if err != nil {
			slog.Warn("skipping stored event", "conversation_id", string(id), "seq", rec.Seq, "error", err)
			continue
		}
		conv.events = append(conv.events, ev)
	}
	if idx, err := g.conversations.Get(ctx, id); err == nil {
		conv.key = idx.DeliveryKey
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if existing, ok := g.convs[id]; ok {
		return existing, nil
	}
	g.convs[id] = conv
	return conv, nil
}
