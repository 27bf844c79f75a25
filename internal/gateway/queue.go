package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/user/deskdev/internal/types"
)

// Queue manages per-conversation lanes with a global concurrency semaphore.
// Each conversation gets its own FIFO channel (lane) so that batches of one
// conversation are processed in arrival order, while the semaphore limits
// the total number of concurrent processors across all conversations.
type Queue struct {
	lanes     map[types.ConversationID]chan *types.Batch
	semaphore *semaphore.Weighted
	processor func(context.Context, *types.Batch) error
	// inflight counts batches enqueued but not yet fully processed.
	inflight atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.RWMutex
}

// NewQueue creates a Queue that allows up to maxConcurrent batches to be
// processed simultaneously across all conversation lanes.
func NewQueue(maxConcurrent int64) *Queue {
	return &Queue{
		lanes:     make(map[types.ConversationID]chan *types.Batch),
		semaphore: semaphore.NewWeighted(maxConcurrent),
	}
}

// Start initialises the queue's context. Must be called before Enqueue.
func (q *Queue) Start(ctx context.Context) {
	q.ctx, q.cancel = context.WithCancel(ctx)
}

// Stop cancels the queue context, closes all lanes, and waits for in-flight
// processors to finish.
func (q *Queue) Stop() {
	if q.cancel != nil {
		q.cancel()
	}
	q.mu.Lock()
	for id, lane := range q.lanes {
		close(lane)
		delete(q.lanes, id)
	}
	q.mu.Unlock()
	q.wg.Wait()
}

// Enqueue adds a batch to the conversation's lane, creating the lane (and its
// goroutine) on first use. Returns an error if the lane's buffer is full.
func (q *Queue) Enqueue(batch *types.Batch) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.ctx == nil || q.ctx.Err() != nil {
		return fmt.Errorf("queue not running")
	}

	lane, exists := q.lanes[batch.ConversationID]
	if !exists {
		lane = make(chan *types.Batch, 100)
		q.lanes[batch.ConversationID] = lane
		q.wg.Add(1)
		go q.processLane(batch.ConversationID, lane)
	}

	q.inflight.Add(1)
	select {
	case lane <- batch:
		return nil
	default:
		q.inflight.Add(-1)
		return fmt.Errorf("queue full for conversation %s", batch.ConversationID)
	}
}

// processLane drains a single conversation lane, acquiring a semaphore slot
// before running the processor synchronously. This ensures strict FIFO
// ordering within a conversation while the semaphore limits cross-conversation
// parallelism.
func (q *Queue) processLane(id types.ConversationID, lane chan *types.Batch) {
	defer q.wg.Done()
	for {
		select {
		case batch, ok := <-lane:
			if !ok {
				return
			}
			if err := q.semaphore.Acquire(q.ctx, 1); err != nil {
				q.inflight.Add(-1)
				return
			}
			q.mu.RLock()
			processor := q.processor
			q.mu.RUnlock()
			if processor != nil {
				if err := processor(q.ctx, batch); err != nil {
					slog.Error("batch failed", "batch_id", string(batch.ID), "conversation_id", string(id), "error", err)
				}
			}
			q.semaphore.Release(1)
			q.inflight.Add(-1)
		case <-q.ctx.Done():
			return
		}
	}
}

// WaitIdle blocks until every lane is drained and no batch is being
// processed, or the timeout expires. Returns true if idle, false if timed out.
func (q *Queue) WaitIdle(timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		if q.inflight.Load() == 0 {
			return true
		}
		select {
		case <-deadline:
			return false
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// SetProcessor sets the function invoked for each dequeued batch.
func (q *Queue) SetProcessor(fn func(context.Context, *types.Batch) error) {
	q.mu.Lock()
	q.processor = fn
	q.mu.Unlock()
}
