package memory

import "context"

// Turn stores a single user or assistant conversational turn.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	TS      int64  `json:"ts"` // millisecond ordering key
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// DefaultHistoryLimit bounds the rolling turn history per conversation.
const DefaultHistoryLimit = 8

// ValidRole reports whether a role may be persisted.
func ValidRole(role string) bool {
	return role == RoleUser || role == RoleAssistant
}

// Store persists per-conversation mode selection and a bounded turn history.
// Implementations surface errors for logging only: callers are expected to
// continue with degraded memory (a fresh-looking conversation) instead of
// failing the conversation.
type Store interface {
	// GetMode returns the stored mode for identity, or "" when unset.
	GetMode(ctx context.Context, identity string) (string, error)
	SetMode(ctx context.Context, identity, mode string) error
	ClearHistory(ctx context.Context, identity string) error
	// AppendTurn is a no-op for invalid roles or empty content.
	AppendTurn(ctx context.Context, identity, role, content string) error
	// LoadRecentHistory returns at most limit turns, oldest first, selecting
	// the most recent by ordering key.
	LoadRecentHistory(ctx context.Context, identity string, limit int) ([]Turn, error)
	// TrimHistory deletes all but the keep most recent turns, oldest first.
	TrimHistory(ctx context.Context, identity string, keep int) error
	// Driver names the active backend for the health surface.
	Driver() string
	Close() error
}
