package chat

// Command is one of the fixed set of state mutations understood by Reduce.
// The set is closed: only types in this package implement it.
type Command interface {
	Name() string
	isCommand()
}

// AddMessage appends a message to the mirror and the active session.
type AddMessage struct {
	Message Message
	At      int64
}

// UpdateMessage appends Delta to a streaming message.
type UpdateMessage struct {
	ID    string
	Delta string
	At    int64
}

// FinishStreaming finalizes a message and counts it as unread when the
// panel is closed.
type FinishStreaming struct {
	ID string
	At int64
}

// FailStreaming replaces a streaming message's content with Content and
// finalizes it. Failed messages are never counted as unread.
type FailStreaming struct {
	ID      string
	Content string
	At      int64
}

type SetStreaming struct {
	Streaming bool
}

// SetError records a user-visible error; an empty Message clears it. Either
// way the streaming flag drops.
type SetError struct {
	Message string
}

// OpenChat shows the panel. NewSessionID is used only when no session is
// active.
type OpenChat struct {
	NewSessionID string
	At           int64
}

type CloseChat struct{}

type ToggleFullscreen struct{}

type SetFullscreen struct {
	Fullscreen bool
}

type ClearMessages struct {
	At int64
}

type CreateNewSession struct {
	SessionID string
	At        int64
}

type SwitchSession struct {
	ID string
}

type DeleteSession struct {
	ID string
}

// GoBackToSessions leaves the active session so a picker can be shown.
type GoBackToSessions struct {
	At int64
}

type ShowTooltip struct {
	At int64
}

type HideTooltip struct{}

type SetUserInteracted struct {
	Interacted bool
}

type MarkAsRead struct{}

func (AddMessage) Name() string        { return "add_message" }
func (UpdateMessage) Name() string     { return "update_message" }
func (FinishStreaming) Name() string   { return "finish_streaming" }
func (FailStreaming) Name() string     { return "fail_streaming" }
func (SetStreaming) Name() string      { return "set_streaming" }
func (SetError) Name() string          { return "set_error" }
func (OpenChat) Name() string          { return "open_chat" }
func (CloseChat) Name() string         { return "close_chat" }
func (ToggleFullscreen) Name() string  { return "toggle_fullscreen" }
func (SetFullscreen) Name() string     { return "set_fullscreen" }
func (ClearMessages) Name() string     { return "clear_messages" }
func (CreateNewSession) Name() string  { return "create_new_session" }
func (SwitchSession) Name() string     { return "switch_session" }
func (DeleteSession) Name() string     { return "delete_session" }
func (GoBackToSessions) Name() string  { return "go_back_to_sessions" }
func (ShowTooltip) Name() string       { return "show_tooltip" }
func (HideTooltip) Name() string       { return "hide_tooltip" }
func (SetUserInteracted) Name() string { return "set_user_interacted" }
func (MarkAsRead) Name() string        { return "mark_as_read" }

func (AddMessage) isCommand()        {}
func (UpdateMessage) isCommand()     {}
func (FinishStreaming) isCommand()   {}
func (FailStreaming) isCommand()     {}
func (SetStreaming) isCommand()      {}
func (SetError) isCommand()          {}
func (OpenChat) isCommand()          {}
func (CloseChat) isCommand()         {}
func (ToggleFullscreen) isCommand()  {}
func (SetFullscreen) isCommand()     {}
func (ClearMessages) isCommand()     {}
func (CreateNewSession) isCommand()  {}
func (SwitchSession) isCommand()     {}
func (DeleteSession) isCommand()     {}
func (GoBackToSessions) isCommand()  {}
func (ShowTooltip) isCommand()       {}
func (HideTooltip) isCommand()       {}
func (SetUserInteracted) isCommand() {}
func (MarkAsRead) isCommand()        {}

// Stamp fills in the timestamp and session id a command needs but was
// dispatched without, keeping Reduce free of clocks and id sources.
func Stamp(cmd Command, now int64, newSessionID func() string) Command {
	switch c := cmd.(type) {
	case AddMessage:
		if c.At == 0 {
			c.At = now
		}
		if c.Message.Timestamp == 0 {
			c.Message.Timestamp = c.At
		}
		return c
	case UpdateMessage:
		if c.At == 0 {
			c.At = now
		}
		return c
	case FinishStreaming:
		if c.At == 0 {
			c.At = now
		}
		return c
	case FailStreaming:
		if c.At == 0 {
			c.At = now
		}
		return c
	case OpenChat:
		if c.At == 0 {
			c.At = now
		}
		if c.NewSessionID == "" {
			c.NewSessionID = newSessionID()
		}
		return c
	case ClearMessages:
		if c.At == 0 {
			c.At = now
		}
		return c
	case CreateNewSession:
		if c.At == 0 {
			c.At = now
		}
		if c.SessionID == "" {
			c.SessionID = newSessionID()
		}
		return c
	case GoBackToSessions:
		if c.At == 0 {
			c.At = now
		}
		return c
	case ShowTooltip:
		if c.At == 0 {
			c.At = now
		}
		return c
	default:
		return cmd
	}
}
