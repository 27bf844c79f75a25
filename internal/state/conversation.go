// internal/state/conversation.go
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/user/deskdev/internal/types"
)

// ConversationStore is a JSON-file-backed index of followed conversations.
// The index lives in conversations/conversations.json next to the
// per-conversation event logs.
type ConversationStore struct {
	root string
	mu   sync.RWMutex
}

// NewConversationStore creates a new file-backed ConversationStore rooted at the given directory.
func NewConversationStore(root string) *ConversationStore {
	return &ConversationStore{root: root}
}

func (s *ConversationStore) indexPath() string {
	return filepath.Join(s.root, "conversations", "conversations.json")
}

func (s *ConversationStore) dir() string {
	return filepath.Join(s.root, "conversations")
}

// loadIndex reads conversations.json and returns a map keyed by id.
func (s *ConversationStore) loadIndex() (map[types.ConversationID]*types.ConversationIndex, error) {
	data, err := os.ReadFile(s.indexPath())
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[types.ConversationID]*types.ConversationIndex), nil
		}
		return nil, fmt.Errorf("read conversation index: %w", err)
	}

	var convs []*types.ConversationIndex
	if err := json.Unmarshal(data, &convs); err != nil {
		return nil, fmt.Errorf("unmarshal conversation index: %w", err)
	}

	index := make(map[types.ConversationID]*types.ConversationIndex, len(convs))
	for _, c := range convs {
		index[c.ConversationID] = c
	}
	return index, nil
}

// saveIndex marshals the index with indentation and writes it atomically.
func (s *ConversationStore) saveIndex(index map[types.ConversationID]*types.ConversationIndex) error {
	data, err := json.MarshalIndent(sorted(index), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal conversation index: %w", err)
	}

	if err := os.MkdirAll(s.dir(), 0o755); err != nil {
		return fmt.Errorf("create conversations dir: %w", err)
	}

	// Atomic write: write to temp file then rename
	tmp := s.indexPath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp index: %w", err)
	}
	if err := os.Rename(tmp, s.indexPath()); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp index: %w", err)
	}
	return nil
}

// sorted orders conversations newest update first.
func sorted(index map[types.ConversationID]*types.ConversationIndex) []*types.ConversationIndex {
	convs := make([]*types.ConversationIndex, 0, len(index))
	for _, c := range index {
		convs = append(convs, c)
	}
	sort.Slice(convs, func(i, j int) bool {
		if convs[i].UpdatedAt.Equal(convs[j].UpdatedAt) {
			return convs[i].ConversationID < convs[j].ConversationID
		}
		return convs[i].UpdatedAt.After(convs[j].UpdatedAt)
	})
	return convs
}

// Upsert creates or replaces the entry for conv.ConversationID. Zero fields
// in conv do not overwrite values already stored, and a zero UpdatedAt
// means now.
func (s *ConversationStore) Upsert(_ context.Context, conv *types.ConversationIndex) error {
	if err := conv.ConversationID.Validate(); err != nil {
		return fmt.Errorf("upsert conversation: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := s.loadIndex()
	if err != nil {
		return err
	}

	now := time.Now()
	merged := *conv
	if existing, ok := index[conv.ConversationID]; ok {
		merged = merge(*existing, *conv)
	} else if merged.CreatedAt.IsZero() {
		merged.CreatedAt = now
	}
	if merged.UpdatedAt.IsZero() {
		merged.UpdatedAt = now
	}
	index[conv.ConversationID] = &merged

	return s.saveIndex(index)
}

func merge(old, upd types.ConversationIndex) types.ConversationIndex {
	if upd.Title != "" {
		old.Title = upd.Title
	}
	if upd.Status != "" {
		old.Status = upd.Status
	}
	if upd.Repository != "" {
		old.Repository = upd.Repository
	}
	if upd.DeliveryKey != "" {
		old.DeliveryKey = upd.DeliveryKey
	}
	if !upd.CreatedAt.IsZero() {
		old.CreatedAt = upd.CreatedAt
	}
	if upd.LastEventID > old.LastEventID {
		old.LastEventID = upd.LastEventID
	}
	if upd.LastEventSeq > old.LastEventSeq {
		old.LastEventSeq = upd.LastEventSeq
	}
	old.UpdatedAt = upd.UpdatedAt
	return old
}

// Get returns the conversation with the given ID.
func (s *ConversationStore) Get(_ context.Context, id types.ConversationID) (*types.ConversationIndex, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	index, err := s.loadIndex()
	if err != nil {
		return nil, err
	}

	if c, ok := index[id]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("conversation not found: %s", id)
}

// List returns all conversations, most recently updated first.
func (s *ConversationStore) List(_ context.Context) ([]*types.ConversationIndex, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	index, err := s.loadIndex()
	if err != nil {
		return nil, err
	}
	return sorted(index), nil
}
