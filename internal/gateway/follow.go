package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/user/deskdev/internal/types"
	"github.com/user/deskdev/pkg/api"
)

// cursor returns the id the next fetch should start at.
func (g *Gateway) cursor(ctx context.Context, id types.ConversationID) (int64, error) {
	last, ok, err := g.events.LastEventID(ctx, id)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return last + 1, nil
}

// maxEventID returns the highest id among raw events, or -1.
func maxEventID(raws []json.RawMessage) int64 {
	highest := int64(-1)
	for _, raw := range raws {
		var head struct {
			ID *int64 `json:"id"`
		}
		if json.Unmarshal(raw, &head) != nil || head.ID == nil {
			continue
		}
		if *head.ID > highest {
			highest = *head.ID
		}
	}
	return highest
}

// poll pages through the event list until ctx is cancelled.
func (g *Gateway) poll(ctx context.Context, id types.ConversationID) error {
	next, err := g.cursor(ctx, id)
	if err != nil {
		return err
	}

	for {
		var page *api.EventPage
		err := g.retry.Execute(ctx, func(ctx context.Context) error {
			var err error
			page, err = g.source.ListEvents(ctx, string(id), next, g.opts.PageSize)
			return err
		})
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil
			}
			slog.Warn("poll failed", "conversation_id", string(id), "error", err)
		case len(page.Events) > 0:
			if err := g.enqueue(id, page.Events); err != nil {
				slog.Warn("poll batch dropped", "conversation_id", string(id), "error", err)
				break
			}
			if m := maxEventID(page.Events); m >= next {
				next = m + 1
			}
			if page.HasMore {
				continue
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(g.opts.PollInterval):
		}
	}
}

// stream reads the websocket feed, reconnecting with backoff after errors.
func (g *Gateway) stream(ctx context.Context, id types.ConversationID) error {
	conv, err := g.conversation(ctx, id)
	if err != nil {
		return err
	}
	attempt := 0
	for {
		latest, ok, err := g.events.LastEventID(ctx, id)
		if err != nil {
			return err
		}
		if !ok {
			latest = -1
		}

		s, err := g.opts.Dialer(ctx, string(id), latest)
		if err == nil {
			attempt = 0
			conv.setLive(s)
			err = g.readStream(ctx, id, s)
			conv.setLive(nil)
			s.Close()
		}
		if ctx.Err() != nil {
			return nil
		}
		if api.IsClosed(err) {
			slog.Info("stream closed by server, reconnecting", "conversation_id", string(id))
		}
		if !IsRetryable(err) {
			return fmt.Errorf("stream events: %w", err)
		}

		attempt++
		delay := g.retry.NextDelay(attempt)
		slog.Warn("stream interrupted, reconnecting", "conversation_id", string(id), "attempt", attempt, "delay", delay, "error", err)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}

func (g *Gateway) readStream(ctx context.Context, id types.ConversationID, s EventStream) error {
	// Next blocks; closing the stream unblocks it on cancel.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-done:
		}
	}()

	for {
		raw, err := s.Next()
		if err != nil {
			return err
		}
		if err := g.enqueue(id, []json.RawMessage{raw}); err != nil {
			return err
		}
	}
}

func (g *Gateway) enqueue(id types.ConversationID, raws []json.RawMessage) error {
	return g.Queue.Enqueue(&types.Batch{
		ID:             types.NewBatchID(),
		ConversationID: id,
		Events:         raws,
		ReceivedAt:     time.Now(),
	})
}

// Refresh fetches every event newer than the stored ones and processes them
// before returning. It returns how many raw events were fetched.
func (g *Gateway) Refresh(ctx context.Context, id types.ConversationID) (int, error) {
	next, err := g.cursor(ctx, id)
	if err != nil {
		return 0, err
	}

	total := 0
	for {
		var page *api.EventPage
		err := g.retry.Execute(ctx, func(ctx context.Context) error {
			var err error
			page, err = g.source.ListEvents(ctx, string(id), next, g.opts.PageSize)
			return err
		})
		if err != nil {
			return total, fmt.Errorf("refresh events: %w", err)
		}
		if len(page.Events) == 0 {
			return total, nil
		}

		batch := &types.Batch{
			ID:             types.NewBatchID(),
			ConversationID: id,
			Events:         page.Events,
			ReceivedAt:     time.Now(),
		}
		if err := g.process(ctx, batch); err != nil {
			return total, err
		}
		total += len(page.Events)

		m := maxEventID(page.Events)
		if !page.HasMore || m < next {
			return total, nil
		}
		next = m + 1
	}
}
