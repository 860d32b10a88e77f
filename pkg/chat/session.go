package chat

// DefaultSessionTitle names a session until its first user message arrives.
const DefaultSessionTitle = "New Chat"

const maxTitleLength = 50

// Session is one named conversation thread.
type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt int64     `json:"created_at"`
	UpdatedAt int64     `json:"updated_at"`
}

func NewSession(id string, at int64) Session {
	return Session{
		ID:        id,
		Title:     DefaultSessionTitle,
		Messages:  []Message{},
		CreatedAt: at,
		UpdatedAt: at,
	}
}

// DeriveTitle builds a session title from the first user message: the
// first 50 characters, with "..." appended when the content was longer.
func DeriveTitle(content string) string {
	if content == "" {
		return DefaultSessionTitle
	}
	return Truncate(content, maxTitleLength)
}

// Truncate cuts s to max runes and appends "..." when anything was cut.
func Truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

func (s Session) clone() Session {
	s.Messages = cloneMessages(s.Messages)
	return s
}

func replaceSession(sessions []Session, idx int, sess Session) []Session {
	out := make([]Session, len(sessions))
	copy(out, sessions)
	out[idx] = sess
	return out
}

func removeSession(sessions []Session, idx int) []Session {
	out := make([]Session, 0, len(sessions)-1)
	out = append(out, sessions[:idx]...)
	return append(out, sessions[idx+1:]...)
}

// mostRecentlyUpdated returns the index of the session with the largest
// UpdatedAt; the earliest entry wins ties.
func mostRecentlyUpdated(sessions []Session) int {
	best := -1
	for i, s := range sessions {
		if best == -1 || s.UpdatedAt > sessions[best].UpdatedAt {
			best = i
		}
	}
	return best
}
