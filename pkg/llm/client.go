package llm

import (
	"context"
	"errors"
)

// Role values sent to the completion service.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrUnknownProvider is returned for a provider name with no constructor.
var ErrUnknownProvider = errors.New("unknown llm provider")

// Message represents a message in a conversation
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Chunk is one piece of a streamed completion. A chunk with Err set is
// the last value on the channel.
type Chunk struct {
	Content string
	Err     error
}

// CompletionClient streams an assistant reply for a conversation history.
// The returned channel is closed when the reply is complete, the request
// fails, or ctx is cancelled.
type CompletionClient interface {
	StreamCompletion(ctx context.Context, history []Message) (<-chan Chunk, error)
}
