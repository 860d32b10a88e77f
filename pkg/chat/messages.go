package chat

import (
	"strings"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of a conversation. Content grows while Streaming is
// true and is frozen once Streaming flips to false.
type Message struct {
	ID        string `json:"id"`
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
	Streaming bool   `json:"streaming,omitempty"`
}

func NewUserMessage(id, content string, at int64) Message {
	return Message{
		ID:        id,
		Role:      RoleUser,
		Content:   strings.TrimSpace(content),
		Timestamp: at,
	}
}

// NewAssistantPlaceholder returns the empty assistant message that chunks
// are appended to.
func NewAssistantPlaceholder(id string, at int64) Message {
	return Message{
		ID:        id,
		Role:      RoleAssistant,
		Content:   "",
		Timestamp: at,
		Streaming: true,
	}
}

func (m Message) IsUser() bool {
	return m.Role == RoleUser
}

func (m Message) IsAssistant() bool {
	return m.Role == RoleAssistant
}

func (m Message) IsEmpty() bool {
	return strings.TrimSpace(m.Content) == ""
}

func cloneMessages(msgs []Message) []Message {
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}

func appendMessage(msgs []Message, msg Message) []Message {
	out := make([]Message, len(msgs)+1)
	copy(out, msgs)
	out[len(msgs)] = msg
	return out
}

func indexOfMessage(msgs []Message, id string) int {
	for i, m := range msgs {
		if m.ID == id {
			return i
		}
	}
	return -1
}

func lastMessage(msgs []Message) (Message, bool) {
	if len(msgs) == 0 {
		return Message{}, false
	}
	return msgs[len(msgs)-1], true
}

func hasUserMessage(msgs []Message) bool {
	for _, m := range msgs {
		if m.IsUser() {
			return true
		}
	}
	return false
}
