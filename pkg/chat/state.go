package chat

import "sort"

// State is the whole chat state container. Messages mirrors the active
// session's messages, or holds a freestanding buffer when no session is
// active.
type State struct {
	Messages         []Message `json:"messages"`
	Sessions         []Session `json:"sessions"`
	CurrentSessionID string    `json:"current_session_id,omitempty"`

	IsStreaming  bool   `json:"is_streaming"`
	IsOpen       bool   `json:"is_open"`
	IsFullscreen bool   `json:"is_fullscreen"`
	Error        string `json:"error,omitempty"`

	UnreadCount       int    `json:"unread_count"`
	LastReadMessageID string `json:"last_read_message_id,omitempty"`
	// UnreadMessageIDs are the messages UnreadCount has counted since the
	// last reset.
	UnreadMessageIDs []string `json:"unread_message_ids,omitempty"`

	ShowTooltip               bool  `json:"show_tooltip"`
	UserInteracted            bool  `json:"user_interacted"`
	LastInteractivePromptTime int64 `json:"last_interactive_prompt_time,omitempty"`
}

func NewState() State {
	return State{
		Messages: []Message{},
		Sessions: []Session{},
	}
}

// Clone returns a deep copy so callers can hold a snapshot without sharing
// slices with the store.
func (s State) Clone() State {
	s.Messages = cloneMessages(s.Messages)
	sessions := make([]Session, len(s.Sessions))
	for i, sess := range s.Sessions {
		sessions[i] = sess.clone()
	}
	s.Sessions = sessions
	if s.UnreadMessageIDs != nil {
		s.UnreadMessageIDs = append([]string(nil), s.UnreadMessageIDs...)
	}
	return s
}

func (s State) HasError() bool {
	return s.Error != ""
}

func (s State) sessionIndex(id string) int {
	if id == "" {
		return -1
	}
	for i, sess := range s.Sessions {
		if sess.ID == id {
			return i
		}
	}
	return -1
}

// CurrentSession returns the active session, if any.
func (s State) CurrentSession() (Session, bool) {
	idx := s.sessionIndex(s.CurrentSessionID)
	if idx < 0 {
		return Session{}, false
	}
	return s.Sessions[idx], true
}

func (s State) Session(id string) (Session, bool) {
	idx := s.sessionIndex(id)
	if idx < 0 {
		return Session{}, false
	}
	return s.Sessions[idx], true
}

// FindMessage looks for id in the mirror first, then in every session.
func (s State) FindMessage(id string) (Message, bool) {
	if i := indexOfMessage(s.Messages, id); i >= 0 {
		return s.Messages[i], true
	}
	for _, sess := range s.Sessions {
		if i := indexOfMessage(sess.Messages, id); i >= 0 {
			return sess.Messages[i], true
		}
	}
	return Message{}, false
}

// containingMessages returns the message list holding id: the mirror
// first, then the sessions.
func (s State) containingMessages(id string) []Message {
	if indexOfMessage(s.Messages, id) >= 0 {
		return s.Messages
	}
	for _, sess := range s.Sessions {
		if indexOfMessage(sess.Messages, id) >= 0 {
			return sess.Messages
		}
	}
	return nil
}

func (s State) LastMessage() (Message, bool) {
	return lastMessage(s.Messages)
}

// SessionsByRecency returns the sessions ordered by UpdatedAt, newest first.
func (s State) SessionsByRecency() []Session {
	out := make([]Session, len(s.Sessions))
	copy(out, s.Sessions)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt > out[j].UpdatedAt
	})
	return out
}
