package chat

import (
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// IDGenerator mints message and session identifiers.
type IDGenerator interface {
	MessageID() string
	SessionID() string
}

// DefaultIDs uses ULIDs for messages, which sort by creation time, and
// UUIDs for sessions.
type DefaultIDs struct{}

func (DefaultIDs) MessageID() string {
	return ulid.Make().String()
}

func (DefaultIDs) SessionID() string {
	return uuid.New().String()
}

// Clock returns the current time; tests swap it for a fixed one.
type Clock func() time.Time

func (c Clock) NowMillis() int64 {
	if c == nil {
		return time.Now().UnixMilli()
	}
	return c().UnixMilli()
}
