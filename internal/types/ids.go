// internal/types/ids.go
package types

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type ConversationID string

// Validate rejects ids that are empty or contain anything but ASCII
// letters, digits, '-' and '_'. Ids name directories on disk.
func (id ConversationID) Validate() error {
	if id == "" {
		return fmt.Errorf("empty conversation id")
	}
	for _, c := range []byte(id) {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return fmt.Errorf("invalid conversation id %q", string(id))
		}
	}
	return nil
}

type DeliveryKey string
type BatchID string

func NewBatchID() BatchID {
	return BatchID(uuid.New().String())
}

func NewDeliveryKey(parts ...string) DeliveryKey {
	return DeliveryKey(strings.Join(parts, ":"))
}

// Prefix returns the channel part of the key, e.g. "telegram".
func (k DeliveryKey) Prefix() string {
	prefix, _, _ := strings.Cut(string(k), ":")
	return prefix
}
