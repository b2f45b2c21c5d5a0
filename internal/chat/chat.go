// Package chat defines the conversation message model and the backend
// boundary for executing one chat completion, batch or streamed.
package chat

import "context"

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is a single conversation turn. Slice order is turn order and
// must be preserved exactly as constructed.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Outcome is the result of one completed exchange. TokenCount 0 means
// the provider did not report usage; callers substitute a local estimate
// for display instead of treating it as a real count.
type Outcome struct {
	Text       string
	TokenCount int
}

// StreamEvent is one element of a streamed completion. Exactly one
// terminal event arrives per stream: Done (optionally carrying the usage
// total) or Err. The channel is closed after the terminal event.
type StreamEvent struct {
	Delta      string
	Done       bool
	TokenCount int
	Err        error
}

// Backend executes one chat completion against a hosted model.
type Backend interface {
	SendBatch(ctx context.Context, messages []Message) (Outcome, error)
	SendStream(ctx context.Context, messages []Message) (<-chan StreamEvent, error)
}
