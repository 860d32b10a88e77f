package store

import (
	"sync"

	"github.com/killallgit/foliochat/pkg/chat"
	"github.com/killallgit/foliochat/pkg/logger"
)

// Handle is the narrow view of the store used by the streamer and the
// notification coordinator.
type Handle interface {
	Dispatch(cmd chat.Command) chat.State
	Snapshot() chat.State
}

// Change describes one applied command.
type Change struct {
	Command chat.Command
	Before  chat.State
	After   chat.State
}

// Observer is notified after every dispatch, outside the store lock.
// Observers must not call Dispatch.
type Observer interface {
	OnStateChanged(change Change)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(change Change)

func (f ObserverFunc) OnStateChanged(change Change) { f(change) }

// Store owns the chat state and serializes every mutation through
// chat.Reduce.
type Store struct {
	mu        sync.Mutex
	state     chat.State
	observers []Observer
	clock     chat.Clock
	ids       chat.IDGenerator
	log       *logger.Logger

	// notifyMu keeps observers seeing changes in dispatch order.
	notifyMu sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces the wall clock used to stamp commands.
func WithClock(clock chat.Clock) Option {
	return func(s *Store) { s.clock = clock }
}

// WithIDs replaces the generator used to mint session ids.
func WithIDs(ids chat.IDGenerator) Option {
	return func(s *Store) { s.ids = ids }
}

func New(opts ...Option) *Store {
	s := &Store{
		state: chat.NewState(),
		ids:   chat.DefaultIDs{},
		log:   logger.WithComponent("chat_store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dispatch stamps cmd, applies it and returns the resulting state.
func (s *Store) Dispatch(cmd chat.Command) chat.State {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	stamped := chat.Stamp(cmd, s.clock.NowMillis(), s.ids.SessionID)
	before := s.state
	after := chat.Reduce(before, stamped)
	s.state = after
	observers := make([]Observer, len(s.observers))
	copy(observers, s.observers)
	s.mu.Unlock()

	if _, chunk := stamped.(chat.UpdateMessage); !chunk {
		s.log.Debug("Command applied", "command", stamped.Name(),
			"session", after.CurrentSessionID, "streaming", after.IsStreaming, "unread", after.UnreadCount)
	}

	change := Change{Command: stamped, Before: before, After: after}
	for _, obs := range observers {
		obs.OnStateChanged(change)
	}
	return after.Clone()
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() chat.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Restore replaces the whole state, sweeping messages left mid-stream.
// Observers are not notified.
func (s *Store) Restore(state chat.State) {
	swept := chat.SweepStale(state)
	if n := chat.StaleCount(state); n > 0 {
		s.log.Info("Swept stale streaming messages", "count", n)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = swept
}

// Subscribe registers obs for every subsequent dispatch.
func (s *Store) Subscribe(obs Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, obs)
}
