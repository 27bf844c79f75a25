package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/user/deskdev/internal/event"
	"github.com/user/deskdev/internal/render"
	"github.com/user/deskdev/internal/state"
	"github.com/user/deskdev/internal/transcript"
	"github.com/user/deskdev/internal/types"
)

// process stores the new events of a batch and delivers whatever became
// visible. Events already stored are skipped, so overlapping batches are
// harmless.
func (g *Gateway) process(ctx context.Context, batch *types.Batch) error {
	conv, err := g.conversation(ctx, batch.ConversationID)
	if err != nil {
		return err
	}

	// Delivery may be a network call, so it runs after conv.mu is released.
	// deliverMu keeps batches of one conversation delivered in order.
	conv.deliverMu.Lock()
	defer conv.deliverMu.Unlock()

	key, msgs, err := g.apply(ctx, conv, batch)
	if err != nil {
		return err
	}
	for _, m := range msgs {
		if err := g.delivery.Deliver(key, m); err != nil {
			slog.Error("delivery failed", "conversation_id", string(conv.id), "delivery_key", string(key), "error", err)
		}
	}
	return nil
}

// apply stores the batch and returns the messages to deliver.
func (g *Gateway) apply(ctx context.Context, conv *conversation, batch *types.Batch) (types.DeliveryKey, []render.Message, error) {
	conv.mu.Lock()
	defer conv.mu.Unlock()

	before := len(conv.events)
	var (
		status  []render.Message
		lastID  int64
		lastSeq int64
	)
	for _, raw := range batch.Events {
		ev, err := event.Decode(raw)
		if err != nil {
			slog.Debug("dropping undecodable event", "conversation_id", string(conv.id), "error", err)
			continue
		}
		h, ok := event.HeaderOf(ev)
		if !ok {
			// status notices have no id and are not kept
			if su, ok := ev.(event.StatusUpdate); ok && g.renderer != nil {
				status = append(status, g.renderer.Entry(transcript.Entry{Kind: transcript.EntryEvent, Event: su, Index: -1}))
			}
			continue
		}

		rec := &types.Record{
			ConversationID: conv.id,
			EventID:        h.ID,
			ReceivedAt:     batch.ReceivedAt,
			Event:          raw,
		}
		if rec.ReceivedAt.IsZero() {
			rec.ReceivedAt = time.Now()
		}
		if err := g.events.Append(ctx, rec); err != nil {
			if errors.Is(err, state.ErrOutOfOrder) {
				continue
			}
			return "", nil, fmt.Errorf("store event %d: %w", h.ID, err)
		}
		conv.events = append(conv.events, ev)
		lastID, lastSeq = h.ID, rec.Seq
	}

	added := conv.events[before:]
	if len(added) > 0 {
		if conv.optimistic.Supersede(added) {
			slog.Debug("optimistic message confirmed", "conversation_id", string(conv.id))
		}
		err := g.conversations.Upsert(ctx, &types.ConversationIndex{
			ConversationID: conv.id,
			LastEventID:    lastID,
			LastEventSeq:   lastSeq,
		})
		if err != nil {
			slog.Warn("update conversation index", "conversation_id", string(conv.id), "error", err)
		}
	}

	return conv.key, g.pending(conv, before, status), nil
}

// pending renders entries for events at index >= from, followed by status
// notices. Caller must hold conv.mu.
func (g *Gateway) pending(conv *conversation, from int, status []render.Message) []render.Message {
	if g.delivery == nil || g.renderer == nil || conv.key == "" {
		return nil
	}
	var msgs []render.Message
	if from < len(conv.events) {
		entries := transcript.Project(conv.events, "", transcript.WithRecentWindow(g.opts.RecentWindow))
		for _, e := range entries {
			if e.Index >= from {
				msgs = append(msgs, g.renderer.Entry(e))
			}
		}
	}
	return append(msgs, status...)
}
