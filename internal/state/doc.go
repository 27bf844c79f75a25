// Package state provides filesystem-backed storage implementations.
package state

import "github.com/user/deskdev/internal/types"

// Compile-time interface compliance checks.
var _ types.ConversationStore = (*ConversationStore)(nil)
var _ types.EventStore = (*EventStore)(nil)
