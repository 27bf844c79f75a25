package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/user/deskdev/internal/event"
	"github.com/user/deskdev/internal/render"
	"github.com/user/deskdev/internal/transcript"
	"github.com/user/deskdev/internal/types"
	"github.com/user/deskdev/pkg/api"
)

// Source is the remote side of a conversation.
type Source interface {
	ListEvents(ctx context.Context, conversationID string, startID int64, limit int) (*api.EventPage, error)
	SendMessage(ctx context.Context, conversationID string, msg api.Message) error
	GetUserConversations(ctx context.Context) ([]api.Conversation, error)
}

// EventStream is a live feed of raw events that also carries user messages
// back to the server.
type EventStream interface {
	Next() (json.RawMessage, error)
	Send(msg api.Message) error
	Close() error
}

// Dialer opens an EventStream that starts after latestEventID.
type Dialer func(ctx context.Context, conversationID string, latestEventID int64) (EventStream, error)

// APIDialer streams events over the platform websocket.
func APIDialer(c *api.Client) Dialer {
	return func(ctx context.Context, id string, latest int64) (EventStream, error) {
		s, err := c.StreamEvents(ctx, id, latest)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// Deliverer sends rendered messages to a chat channel.
type Deliverer interface {
	Deliver(key types.DeliveryKey, msg render.Message) error
}

// Transport selects how followers receive events.
type Transport string

const (
	TransportPoll      Transport = "poll"
	TransportWebsocket Transport = "websocket"
)

// Options tunes a Gateway. Zero values pick defaults.
type Options struct {
	MaxConcurrent int64
	Transport     Transport
	PollInterval  time.Duration
	PageSize      int
	RecentWindow  int
	Dialer        Dialer
	Retry         *RetryPolicy
}

// Gateway follows remote conversations. Incoming event batches are stored,
// projected into a transcript and delivered to the chat channel bound to
// each conversation.
type Gateway struct {
	source        Source
	conversations types.ConversationStore
	events        types.EventStore
	renderer      *render.Renderer
	delivery      Deliverer
	Queue         *Queue
	retry         *RetryPolicy
	opts          Options

	mu    sync.Mutex
	convs map[types.ConversationID]*conversation

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Gateway wired to the provided stores. delivery may be nil
// when nothing should be pushed anywhere.
func New(source Source, conversations types.ConversationStore, events types.EventStore, renderer *render.Renderer, delivery Deliverer, opts Options) *Gateway {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 2
	}
	if opts.Transport == "" {
		opts.Transport = TransportPoll
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 100
	}
	if opts.RecentWindow <= 0 {
		opts.RecentWindow = transcript.DefaultRecentWindow
	}
	retry := opts.Retry
	if retry == nil {
		retry = DefaultRetryPolicy()
	}
	g := &Gateway{
		source:        source,
		conversations: conversations,
		events:        events,
		renderer:      renderer,
		delivery:      delivery,
		Queue:         NewQueue(opts.MaxConcurrent),
		retry:         retry,
		opts:          opts,
		convs:         make(map[types.ConversationID]*conversation),
	}
	g.Queue.SetProcessor(g.process)
	return g
}

// Start initialises the gateway's context and starts the internal queue.
func (g *Gateway) Start(ctx context.Context) {
	g.ctx, g.cancel = context.WithCancel(ctx)
	g.Queue.Start(g.ctx)
}

// Stop cancels the gateway context, stops every follower and the queue, and
// waits for any outstanding work to finish.
func (g *Gateway) Stop() {
	if g.cancel != nil {
		g.cancel()
	}
	g.wg.Wait()
	g.Queue.Stop()
}

// Follow starts receiving events for a conversation and binds it to a
// delivery key. Following an already followed conversation only updates
// the key.
func (g *Gateway) Follow(ctx context.Context, id types.ConversationID, key types.DeliveryKey) error {
	if g.ctx == nil {
		return fmt.Errorf("gateway not started")
	}
	if err := g.conversations.Upsert(ctx, &types.ConversationIndex{ConversationID: id, DeliveryKey: key}); err != nil {
		return fmt.Errorf("register conversation: %w", err)
	}

	conv, err := g.conversation(ctx, id)
	if err != nil {
		return err
	}
	conv.mu.Lock()
	conv.key = key
	running := conv.stop != nil
	var fctx context.Context
	if !running {
		fctx, conv.stop = context.WithCancel(g.ctx)
	}
	conv.mu.Unlock()
	if running {
		return nil
	}

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		var err error
		if g.opts.Transport == TransportWebsocket && g.opts.Dialer != nil {
			err = g.stream(fctx, id)
		} else {
			err = g.poll(fctx, id)
		}
		if err != nil && fctx.Err() == nil {
			slog.Error("follower stopped", "conversation_id", string(id), "error", err)
		}
	}()
	slog.Info("following conversation", "conversation_id", string(id), "transport", string(g.opts.Transport))
	return nil
}

// Unfollow stops the follower of a conversation. Stored events are kept.
func (g *Gateway) Unfollow(id types.ConversationID) {
	g.mu.Lock()
	conv, ok := g.convs[id]
	g.mu.Unlock()
	if !ok {
		return
	}
	conv.mu.Lock()
	if conv.stop != nil {
		conv.stop()
		conv.stop = nil
	}
	conv.mu.Unlock()
}

// Following lists conversations with a running follower.
func (g *Gateway) Following() []types.ConversationID {
	g.mu.Lock()
	defer g.mu.Unlock()
	var ids []types.ConversationID
	for id, conv := range g.convs {
		conv.mu.Lock()
		if conv.stop != nil {
			ids = append(ids, id)
		}
		conv.mu.Unlock()
	}
	return ids
}

// SendMessage shows text as the conversation's optimistic message and sends
// it to the server, over the open stream when the conversation is followed
// by websocket and by POST otherwise. The optimistic message is cleared
// again when the send fails or once the server echoes the message back.
func (g *Gateway) SendMessage(ctx context.Context, id types.ConversationID, text string) error {
	if text == "" {
		return fmt.Errorf("send message: empty text")
	}
	conv, err := g.conversation(ctx, id)
	if err != nil {
		return err
	}
	conv.optimistic.Set(text)

	msg := api.Message{Content: text, Timestamp: time.Now().UTC().Format(time.RFC3339Nano)}
	if live := conv.liveStream(); live != nil {
		err := live.Send(msg)
		if err == nil {
			return nil
		}
		slog.Warn("stream send failed, posting instead", "conversation_id", string(id), "error", err)
	}
	// A POST that got any response may already be stored, so only retry
	// when the request never left.
	err = g.retry.ExecuteWhen(ctx, IsUnsent, func(ctx context.Context) error {
		return g.source.SendMessage(ctx, string(id), msg)
	})
	if err != nil {
		conv.optimistic.Clear()
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// ClearOptimistic drops the pending message of a conversation.
func (g *Gateway) ClearOptimistic(ctx context.Context, id types.ConversationID) error {
	conv, err := g.conversation(ctx, id)
	if err != nil {
		return err
	}
	conv.optimistic.Clear()
	return nil
}

// Events returns the decoded events of a conversation in stream order.
func (g *Gateway) Events(ctx context.Context, id types.ConversationID) ([]event.Event, error) {
	conv, err := g.conversation(ctx, id)
	if err != nil {
		return nil, err
	}
	conv.mu.Lock()
	defer conv.mu.Unlock()
	return append([]event.Event(nil), conv.events...), nil
}

// Transcript projects the conversation's events and pending message.
func (g *Gateway) Transcript(ctx context.Context, id types.ConversationID) ([]transcript.Entry, error) {
	conv, err := g.conversation(ctx, id)
	if err != nil {
		return nil, err
	}
	conv.mu.Lock()
	events := conv.events
	conv.mu.Unlock()
	return transcript.Project(events, conv.optimistic.Get(), transcript.WithRecentWindow(g.opts.RecentWindow)), nil
}

// Sync refreshes the local conversation index from the server.
func (g *Gateway) Sync(ctx context.Context) (int, error) {
	var remote []api.Conversation
	err := g.retry.Execute(ctx, func(ctx context.Context) error {
		var err error
		remote, err = g.source.GetUserConversations(ctx)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("sync conversations: %w", err)
	}
	for _, c := range remote {
		idx := &types.ConversationIndex{
			ConversationID: types.ConversationID(c.ID),
			Title:          c.Title,
			Status:         c.Status,
			Repository:     c.Repository,
			CreatedAt:      c.CreatedAt,
			UpdatedAt:      c.LastUpdated,
		}
		if err := g.conversations.Upsert(ctx, idx); err != nil {
			return 0, fmt.Errorf("sync conversations: %w", err)
		}
	}
	return len(remote), nil
}
