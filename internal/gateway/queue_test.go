package gateway

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/user/deskdev/internal/types"
)

func newBatch(conv string, marker int) *types.Batch {
	return &types.Batch{
		ID:             types.NewBatchID(),
		ConversationID: types.ConversationID(conv),
		ReceivedAt:     time.Unix(int64(marker), 0),
	}
}

func TestQueueConcurrency(t *testing.T) {
	queue := NewQueue(2)
	ctx := context.Background()
	queue.Start(ctx)
	defer queue.Stop()

	var running int32
	var maxSeen int32

	queue.SetProcessor(func(context.Context, *types.Batch) error {
		current := atomic.AddInt32(&running, 1)
		for {
			old := atomic.LoadInt32(&maxSeen)
			if current <= old || atomic.CompareAndSwapInt32(&maxSeen, old, current) {
				break
			}
		}
		time.Sleep(50 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		return nil
	})

	for i := 0; i < 5; i++ {
		if err := queue.Enqueue(newBatch(fmt.Sprintf("conv-%d", i), i)); err != nil {
			t.Fatal(err)
		}
	}

	if !queue.WaitIdle(2 * time.Second) {
		t.Fatal("queue did not drain")
	}

	if m := atomic.LoadInt32(&maxSeen); m > 2 {
		t.Errorf("expected max 2 concurrent, saw %d", m)
	}
}

func TestQueueProcessorCalled(t *testing.T) {
	queue := NewQueue(1)
	ctx := context.Background()
	queue.Start(ctx)
	defer queue.Stop()

	var processed int32

	queue.SetProcessor(func(context.Context, *types.Batch) error {
		atomic.AddInt32(&processed, 1)
		return nil
	})

	if err := queue.Enqueue(newBatch("test-conv", 0)); err != nil {
		t.Fatal(err)
	}

	queue.WaitIdle(time.Second)

	if atomic.LoadInt32(&processed) != 1 {
		t.Errorf("expected 1 processed batch, got %d", processed)
	}
}

func TestQueueSameConversationOrdering(t *testing.T) {
	queue := NewQueue(1)
	ctx := context.Background()
	queue.Start(ctx)
	defer queue.Stop()

	var mu sync.Mutex
	var order []int64
	done := make(chan struct{})

	queue.SetProcessor(func(_ context.Context, b *types.Batch) error {
		mu.Lock()
		order = append(order, b.ReceivedAt.Unix())
		n := len(order)
		mu.Unlock()
		if n == 3 {
			close(done)
		}
		return nil
	})

	for i := 0; i < 3; i++ {
		if err := queue.Enqueue(newBatch("same-conv", i)); err != nil {
			t.Fatal(err)
		}
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for batches to process")
	}

	mu.Lock()
	defer mu.Unlock()
	for i, v := range order {
		if v != int64(i) {
			t.Errorf("expected order[%d] = %d, got %d", i, i, v)
		}
	}
}

func TestQueueNoProcessor(t *testing.T) {
	queue := NewQueue(1)
	ctx := context.Background()
	queue.Start(ctx)
	defer queue.Stop()

	// Enqueue without setting a processor -- should not panic
	if err := queue.Enqueue(newBatch("no-proc", 0)); err != nil {
		t.Fatal(err)
	}

	queue.WaitIdle(time.Second)
}

func TestQueueRejectsBeforeStart(t *testing.T) {
	queue := NewQueue(1)
	if err := queue.Enqueue(newBatch("x", 0)); err == nil {
		t.Error("expected error before Start")
	}
}
