package chat

// Reduce applies one command to s and returns the next state. It never
// mutates s and never fails: commands that target unknown ids return s
// unchanged, since a stream may race with a session switch or clear.
func Reduce(s State, cmd Command) State {
	switch c := cmd.(type) {
	case AddMessage:
		return addMessage(s, c)
	case UpdateMessage:
		return updateMessage(s, c)
	case FinishStreaming:
		return finishStreaming(s, c)
	case FailStreaming:
		return failStreaming(s, c)
	case SetStreaming:
		s.IsStreaming = c.Streaming
		return s
	case SetError:
		s.Error = c.Message
		s.IsStreaming = false
		return s
	case OpenChat:
		return openChat(s, c)
	case CloseChat:
		s.IsOpen = false
		return s
	case ToggleFullscreen:
		s.IsFullscreen = !s.IsFullscreen
		return s
	case SetFullscreen:
		s.IsFullscreen = c.Fullscreen
		return s
	case ClearMessages:
		return clearMessages(s, c)
	case CreateNewSession:
		return createNewSession(s, c)
	case SwitchSession:
		return switchSession(s, c)
	case DeleteSession:
		return deleteSession(s, c)
	case GoBackToSessions:
		return goBackToSessions(s)
	case ShowTooltip:
		s.ShowTooltip = true
		s.LastInteractivePromptTime = c.At
		return s
	case HideTooltip:
		s.ShowTooltip = false
		return s
	case SetUserInteracted:
		s.UserInteracted = c.Interacted
		if c.Interacted {
			s.ShowTooltip = false
		}
		return s
	case MarkAsRead:
		return markAsRead(s)
	default:
		return s
	}
}

func addMessage(s State, c AddMessage) State {
	next := s
	next.Messages = appendMessage(s.Messages, c.Message)
	next.Error = ""

	idx := s.sessionIndex(s.CurrentSessionID)
	if idx < 0 {
		return next
	}

	sess := s.Sessions[idx]
	if c.Message.IsUser() && !hasUserMessage(sess.Messages) {
		sess.Title = DeriveTitle(c.Message.Content)
	}
	sess.Messages = appendMessage(sess.Messages, c.Message)
	sess.UpdatedAt = c.At
	next.Sessions = replaceSession(s.Sessions, idx, sess)
	return next
}

// rewriteMessage applies fn to every copy of message id: the mirror and the
// session that owns it. fn reports false to leave the state untouched.
func rewriteMessage(s State, id string, at int64, fn func(Message) (Message, bool)) (State, bool) {
	orig, ok := s.FindMessage(id)
	if !ok {
		return s, false
	}
	updated, apply := fn(orig)
	if !apply {
		return s, false
	}

	next := s
	if i := indexOfMessage(s.Messages, id); i >= 0 {
		next.Messages = cloneMessages(s.Messages)
		next.Messages[i] = updated
	}
	for idx, sess := range s.Sessions {
		i := indexOfMessage(sess.Messages, id)
		if i < 0 {
			continue
		}
		sess.Messages = cloneMessages(sess.Messages)
		sess.Messages[i] = updated
		sess.UpdatedAt = at
		next.Sessions = replaceSession(next.Sessions, idx, sess)
	}
	return next, true
}

func updateMessage(s State, c UpdateMessage) State {
	next, _ := rewriteMessage(s, c.ID, c.At, func(m Message) (Message, bool) {
		if !m.Streaming {
			return m, false
		}
		m.Content += c.Delta
		m.Streaming = true
		return m, true
	})
	return next
}

func finishStreaming(s State, c FinishStreaming) State {
	orig, ok := s.FindMessage(c.ID)
	if !ok {
		return s
	}

	next, _ := rewriteMessage(s, c.ID, c.At, func(m Message) (Message, bool) {
		if !m.Streaming {
			return m, false
		}
		m.Streaming = false
		return m, true
	})
	next.IsStreaming = false

	if countsAsUnread(s, orig) {
		next.UnreadCount++
		next.UnreadMessageIDs = append(append([]string(nil), s.UnreadMessageIDs...), orig.ID)
	}
	return next
}

// countsAsUnread reports whether finishing m while the panel is closed
// adds to the unread count. A message is counted at most once between
// resets, and never when it sits at or before the last read message.
func countsAsUnread(s State, m Message) bool {
	if s.IsOpen || !m.IsAssistant() || m.IsEmpty() {
		return false
	}
	for _, id := range s.UnreadMessageIDs {
		if id == m.ID {
			return false
		}
	}
	if s.LastReadMessageID == "" {
		return true
	}
	msgs := s.containingMessages(m.ID)
	read := indexOfMessage(msgs, s.LastReadMessageID)
	return read < 0 || read < indexOfMessage(msgs, m.ID)
}

func failStreaming(s State, c FailStreaming) State {
	if _, ok := s.FindMessage(c.ID); !ok {
		return s
	}
	next, _ := rewriteMessage(s, c.ID, c.At, func(m Message) (Message, bool) {
		if !m.Streaming {
			return m, false
		}
		m.Content = c.Content
		m.Streaming = false
		return m, true
	})
	next.IsStreaming = false
	return next
}

func openChat(s State, c OpenChat) State {
	next := s
	next.IsOpen = true
	next.UnreadCount = 0
	next.UnreadMessageIDs = nil
	if last, ok := lastMessage(s.Messages); ok {
		next.LastReadMessageID = last.ID
	}
	if s.sessionIndex(s.CurrentSessionID) >= 0 {
		return next
	}

	// A freestanding buffer is adopted by the new session so the mirror
	// stays consistent.
	sess := NewSession(c.NewSessionID, c.At)
	sess.Messages = cloneMessages(s.Messages)
	for _, m := range sess.Messages {
		if m.IsUser() {
			sess.Title = DeriveTitle(m.Content)
			break
		}
	}
	next.Sessions = append(cloneSessions(s.Sessions), sess)
	next.CurrentSessionID = sess.ID
	next.Messages = cloneMessages(sess.Messages)
	return next
}

func clearMessages(s State, c ClearMessages) State {
	next := s
	next.Messages = []Message{}
	next.Error = ""

	idx := s.sessionIndex(s.CurrentSessionID)
	if idx < 0 {
		return next
	}
	sess := s.Sessions[idx]
	sess.Messages = []Message{}
	sess.Title = DefaultSessionTitle
	sess.UpdatedAt = c.At
	next.Sessions = replaceSession(s.Sessions, idx, sess)
	return next
}

func createNewSession(s State, c CreateNewSession) State {
	if s.sessionIndex(c.SessionID) >= 0 {
		return s
	}
	next := s
	next.Sessions = append(cloneSessions(s.Sessions), NewSession(c.SessionID, c.At))
	next.CurrentSessionID = c.SessionID
	next.Messages = []Message{}
	next.Error = ""
	return next
}

func switchSession(s State, c SwitchSession) State {
	idx := s.sessionIndex(c.ID)
	if idx < 0 {
		return s
	}
	next := s
	next.CurrentSessionID = c.ID
	next.Messages = cloneMessages(s.Sessions[idx].Messages)
	next.Error = ""
	return next
}

func deleteSession(s State, c DeleteSession) State {
	idx := s.sessionIndex(c.ID)
	if idx < 0 {
		return s
	}
	next := s
	next.Sessions = removeSession(s.Sessions, idx)
	if c.ID != s.CurrentSessionID {
		return next
	}

	if best := mostRecentlyUpdated(next.Sessions); best >= 0 {
		next.CurrentSessionID = next.Sessions[best].ID
		next.Messages = cloneMessages(next.Sessions[best].Messages)
		return next
	}
	next.CurrentSessionID = ""
	next.Messages = []Message{}
	return next
}

func goBackToSessions(s State) State {
	next := s
	if idx := s.sessionIndex(s.CurrentSessionID); idx >= 0 && len(s.Messages) > 0 {
		sess := s.Sessions[idx]
		sess.Messages = cloneMessages(s.Messages)
		next.Sessions = replaceSession(s.Sessions, idx, sess)
	}
	next.CurrentSessionID = ""
	next.Messages = []Message{}
	return next
}

func markAsRead(s State) State {
	s.UnreadCount = 0
	s.UnreadMessageIDs = nil
	if last, ok := lastMessage(s.Messages); ok {
		s.LastReadMessageID = last.ID
	}
	return s
}

func cloneSessions(sessions []Session) []Session {
	out := make([]Session, len(sessions), len(sessions)+1)
	copy(out, sessions)
	return out
}
