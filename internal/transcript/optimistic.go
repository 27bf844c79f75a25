package transcript

import (
	"sync"

	"github.com/user/deskdev/internal/event"
)

// Optimistic holds the one user message that has been sent but not yet
// echoed back by the server. The zero value is empty and ready to use.
type Optimistic struct {
	mu  sync.Mutex
	msg string
}

// Set replaces the pending message. An empty string clears it.
func (o *Optimistic) Set(msg string) {
	o.mu.Lock()
	o.msg = msg
	o.mu.Unlock()
}

// Clear drops the pending message.
func (o *Optimistic) Clear() {
	o.Set("")
}

// Get returns the pending message, or "" when none is set.
func (o *Optimistic) Get() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.msg
}

// Supersede clears the pending message once events contain a user message
// with the same content. It reports whether the message was cleared.
func (o *Optimistic) Supersede(events []event.Event) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.msg == "" {
		return false
	}
	for _, ev := range events {
		m, ok := ev.(event.UserMessageAction)
		if ok && m.Args.Content == o.msg {
			o.msg = ""
			return true
		}
	}
	return false
}
