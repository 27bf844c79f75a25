// internal/state/event.go
package state

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/user/deskdev/internal/types"
)

// ErrOutOfOrder is returned by Append when the record's event id is not
// greater than the last stored one. Overlapping pages hit this routinely.
var ErrOutOfOrder = errors.New("event id not after last stored event")

// maxLine bounds a single stored record. Observations can carry whole files.
const maxLine = 16 << 20

// EventStore is a JSONL-backed append-only event store.
// Events are stored per conversation in conversations/<id>/events.jsonl.
type EventStore struct {
	root  string
	mu    sync.Mutex
	locks map[types.ConversationID]*sync.Mutex
	heads map[types.ConversationID]*head
}

// head caches the tail position of one log. Guarded by the conversation lock.
type head struct {
	seq    int64
	lastID int64
	any    bool
}

// NewEventStore creates a new file-backed EventStore rooted at the given directory.
func NewEventStore(root string) *EventStore {
	return &EventStore{
		root:  root,
		locks: make(map[types.ConversationID]*sync.Mutex),
		heads: make(map[types.ConversationID]*head),
	}
}

// getLock returns the per-conversation mutex, creating one if it doesn't exist.
func (e *EventStore) getLock(id types.ConversationID) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()

	if lock, ok := e.locks[id]; ok {
		return lock
	}
	lock := &sync.Mutex{}
	e.locks[id] = lock
	return lock
}

func (e *EventStore) eventsPath(id types.ConversationID) string {
	return filepath.Join(e.root, "conversations", string(id), "events.jsonl")
}

// read returns every stored record. Caller must hold the conversation lock.
func (e *EventStore) read(id types.ConversationID) ([]*types.Record, error) {
	f, err := os.Open(e.eventsPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open events file: %w", err)
	}
	defer f.Close()

	var records []*types.Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)
	for scanner.Scan() {
		var rec types.Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			return nil, fmt.Errorf("unmarshal record: %w", err)
		}
		records = append(records, &rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan events file: %w", err)
	}
	return records, nil
}

// head loads the tail position on first use. Caller must hold the conversation lock.
func (e *EventStore) head(id types.ConversationID) (*head, error) {
	e.mu.Lock()
	h, ok := e.heads[id]
	e.mu.Unlock()
	if ok {
		return h, nil
	}

	records, err := e.read(id)
	if err != nil {
		return nil, err
	}
	h = &head{}
	if n := len(records); n > 0 {
		h.seq = records[n-1].Seq
		h.lastID = records[n-1].EventID
		h.any = true
	}

	e.mu.Lock()
	e.heads[id] = h
	e.mu.Unlock()
	return h, nil
}

// Append adds a record to the conversation's log with an auto-incremented
// sequence number. Records must arrive in increasing event id order.
func (e *EventStore) Append(_ context.Context, rec *types.Record) error {
	if err := rec.ConversationID.Validate(); err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	lock := e.getLock(rec.ConversationID)
	lock.Lock()
	defer lock.Unlock()

	h, err := e.head(rec.ConversationID)
	if err != nil {
		return err
	}
	if h.any && rec.EventID <= h.lastID {
		return fmt.Errorf("append event %d after %d: %w", rec.EventID, h.lastID, ErrOutOfOrder)
	}

	dir := filepath.Dir(e.eventsPath(rec.ConversationID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create conversation dir: %w", err)
	}

	rec.Seq = h.seq + 1

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	f, err := os.OpenFile(e.eventsPath(rec.ConversationID), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open events file: %w", err)
	}
	defer f.Close()

	data = append(data, '\n')
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write record: %w", err)
	}

	h.seq = rec.Seq
	h.lastID = rec.EventID
	h.any = true
	return nil
}

// Tail returns the last N records for the given conversation.
func (e *EventStore) Tail(_ context.Context, id types.ConversationID, limit int) ([]*types.Record, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}
	lock := e.getLock(id)
	lock.Lock()
	defer lock.Unlock()

	records, err := e.read(id)
	if err != nil {
		return nil, err
	}
	if len(records) > limit {
		records = records[len(records)-limit:]
	}
	return records, nil
}

// List returns every record of the conversation in stream order.
func (e *EventStore) List(_ context.Context, id types.ConversationID) ([]*types.Record, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}
	lock := e.getLock(id)
	lock.Lock()
	defer lock.Unlock()

	return e.read(id)
}

// Count returns the number of records for the given conversation.
func (e *EventStore) Count(_ context.Context, id types.ConversationID) (int64, error) {
	if err := id.Validate(); err != nil {
		return 0, err
	}
	lock := e.getLock(id)
	lock.Lock()
	defer lock.Unlock()

	h, err := e.head(id)
	if err != nil {
		return 0, err
	}
	return h.seq, nil
}

// LastEventID returns the id of the newest stored event. The bool is false
// when nothing has been stored yet.
func (e *EventStore) LastEventID(_ context.Context, id types.ConversationID) (int64, bool, error) {
	if err := id.Validate(); err != nil {
		return 0, false, err
	}
	lock := e.getLock(id)
	lock.Lock()
	defer lock.Unlock()

	h, err := e.head(id)
	if err != nil {
		return 0, false, err
	}
	return h.lastID, h.any, nil
}
