package transcript

import (
	"context"
	"time"
)

// Roles for a conversation turn.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one immutable message in an interview transcript. ID is a
// storage-internal identity and must never reach model-facing code.
type Turn struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is an append-only, per-session conversation log. Append must be
// durable (or fail) before it returns; ReadAll returns turns in exact
// append order. There is no update or delete.
type Store interface {
	Append(ctx context.Context, turn Turn) error
	ReadAll(ctx context.Context, sessionID string) ([]Turn, error)
	Close() error
}
