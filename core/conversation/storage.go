package conversation

import (
	"context"
	"fmt"
)

// ID identifies one conversation: a (chat, user) pair.
type ID struct {
	ChatID int64
	UserID int64
}

// String renders the id as chatID:userID for logs.
func (id ID) String() string {
	return fmt.Sprintf("%d:%d", id.ChatID, id.UserID)
}

// Store persists conversation contexts. Update exposes a scoped
// read-modify-write transaction: the context is loaded, fn mutates it
// under exclusive access, and the result is persisted when fn returns
// nil. A context that was never stored is presented as a fresh empty
// one.
type Store interface {
	Update(ctx context.Context, id ID, fn func(*Context) error) error

	// View runs fn with read access to the stored context without
	// persisting changes.
	View(ctx context.Context, id ID, fn func(*Context) error) error
}
