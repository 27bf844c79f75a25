// internal/delivery/registry.go
package delivery

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/user/deskdev/internal/render"
	"github.com/user/deskdev/internal/types"
)

// Handler delivers a rendered message to the destination named by key.
type Handler func(key types.DeliveryKey, msg render.Message) error

// Registry routes messages to the appropriate delivery handler based on
// delivery key prefix (e.g. "telegram:", "stdout").
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty delivery registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
	}
}

// Register adds a handler for delivery keys starting with prefix.
func (r *Registry) Register(prefix string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[prefix] = handler
}

// Deliver finds the handler with the longest prefix matching key and calls it.
// Returns an error if no handler is registered for the key.
func (r *Registry) Deliver(key types.DeliveryKey, msg render.Message) error {
	r.mu.RLock()
	var (
		best    string
		handler Handler
	)
	for prefix, h := range r.handlers {
		if strings.HasPrefix(string(key), prefix) && (handler == nil || len(prefix) > len(best)) {
			best, handler = prefix, h
		}
	}
	r.mu.RUnlock()

	if handler == nil {
		return fmt.Errorf("no delivery handler for key: %s", key)
	}
	return handler(key, msg)
}

// Writer returns a handler that prints each message as plain text to w.
func Writer(w io.Writer) Handler {
	var mu sync.Mutex
	return func(key types.DeliveryKey, msg render.Message) error {
		mu.Lock()
		defer mu.Unlock()
		prefix := ""
		if msg.HasID {
			prefix = fmt.Sprintf("[%d] ", msg.EventID)
		}
		if _, err := fmt.Fprintf(w, "%s%s: %s\n\n", prefix, msg.Role, msg.Text()); err != nil {
			return fmt.Errorf("write message: %w", err)
		}
		return nil
	}
}
