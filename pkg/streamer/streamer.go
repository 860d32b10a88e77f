// Package streamer runs one exchange with the completion service, feeding
// the reply into the chat store as it arrives.
package streamer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/killallgit/foliochat/pkg/chat"
	"github.com/killallgit/foliochat/pkg/llm"
	"github.com/killallgit/foliochat/pkg/logger"
	"github.com/killallgit/foliochat/pkg/store"
	"github.com/killallgit/foliochat/pkg/tokens"
)

// CancelPolicy decides what happens to the reply when the caller cancels
// mid-stream.
type CancelPolicy string

const (
	// CancelFinalize freezes the reply with whatever content arrived.
	CancelFinalize CancelPolicy = "finalize"
	// CancelAbandon leaves the reply streaming and the store busy.
	CancelAbandon CancelPolicy = "abandon"
)

// ParseCancelPolicy maps a config value to a policy, defaulting to
// CancelFinalize.
func ParseCancelPolicy(s string) (CancelPolicy, error) {
	switch CancelPolicy(s) {
	case "", CancelFinalize:
		return CancelFinalize, nil
	case CancelAbandon:
		return CancelAbandon, nil
	default:
		return "", fmt.Errorf("unknown cancel policy %q", s)
	}
}

// Notifier is told about replies finished while the panel is closed.
type Notifier interface {
	NotifyIfHidden(ctx context.Context, content string)
}

// Streamer sends user messages and streams the assistant's reply.
type Streamer struct {
	client   llm.CompletionClient
	ids      chat.IDGenerator
	clock    chat.Clock
	policy   CancelPolicy
	notifier Notifier
	counter  *tokens.Counter
	budget   int
	log      *logger.Logger
}

// Option configures a Streamer.
type Option func(*Streamer)

func WithIDs(ids chat.IDGenerator) Option {
	return func(s *Streamer) { s.ids = ids }
}

func WithClock(clock chat.Clock) Option {
	return func(s *Streamer) { s.clock = clock }
}

func WithCancelPolicy(policy CancelPolicy) Option {
	return func(s *Streamer) { s.policy = policy }
}

func WithNotifier(n Notifier) Option {
	return func(s *Streamer) { s.notifier = n }
}

// WithHistoryBudget trims the oldest history so the request fits in
// budget tokens. A budget of zero sends the whole conversation.
func WithHistoryBudget(counter *tokens.Counter, budget int) Option {
	return func(s *Streamer) {
		s.counter = counter
		s.budget = budget
	}
}

func New(client llm.CompletionClient, opts ...Option) *Streamer {
	s := &Streamer{
		client: client,
		ids:    chat.DefaultIDs{},
		policy: CancelFinalize,
		log:    logger.WithComponent("streamer"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SendMessage adds content as a user message, streams the reply into a new
// assistant message and finalizes it. Blank content is ignored.
//
// Transport failures are recorded in the store and also returned. When ctx
// is cancelled the reply is handled per the cancel policy and ctx.Err() is
// returned; a passed deadline is treated as a transport failure.
func (s *Streamer) SendMessage(ctx context.Context, content string, h store.Handle) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}

	userID := s.ids.MessageID()
	assistantID := s.ids.MessageID()

	now := s.clock.NowMillis()
	h.Dispatch(chat.AddMessage{Message: chat.NewUserMessage(userID, content, now), At: now})
	h.Dispatch(chat.AddMessage{Message: chat.NewAssistantPlaceholder(assistantID, now), At: now})
	// SetError drops the streaming flag, so it goes first.
	h.Dispatch(chat.SetError{})
	h.Dispatch(chat.SetStreaming{Streaming: true})

	history := s.buildHistory(h.Snapshot(), assistantID)
	s.log.Debug("Sending message", "assistant_id", assistantID, "history", len(history))

	chunks, err := s.client.StreamCompletion(ctx, history)
	if err != nil {
		return s.fail(h, assistantID, err)
	}

	received := 0
	for {
		select {
		case <-ctx.Done():
			return s.interrupted(ctx, h, assistantID)
		case chunk, ok := <-chunks:
			if !ok {
				if ctx.Err() != nil {
					return s.interrupted(ctx, h, assistantID)
				}
				s.log.Debug("Stream complete", "assistant_id", assistantID, "chunks", received)
				return s.complete(ctx, h, assistantID)
			}
			if ctx.Err() != nil {
				return s.interrupted(ctx, h, assistantID)
			}
			if chunk.Err != nil {
				return s.fail(h, assistantID, chunk.Err)
			}
			received++
			h.Dispatch(chat.UpdateMessage{ID: assistantID, Delta: chunk.Content})
		}
	}
}

func (s *Streamer) buildHistory(state chat.State, assistantID string) []llm.Message {
	history := make([]llm.Message, 0, len(state.Messages))
	for _, m := range state.Messages {
		if m.ID == assistantID {
			continue
		}
		history = append(history, llm.Message{Role: string(m.Role), Content: m.Content})
	}

	if s.counter == nil || s.budget <= 0 {
		return history
	}

	kept := s.counter.TrimHistory(history, s.budget)
	if dropped := len(history) - len(kept); dropped > 0 {
		s.log.Debug("Trimmed history to token budget", "dropped", dropped, "budget", s.budget)
	}
	return kept
}

func (s *Streamer) complete(ctx context.Context, h store.Handle, assistantID string) error {
	state := h.Dispatch(chat.FinishStreaming{ID: assistantID})

	msg, ok := state.FindMessage(assistantID)
	if !ok {
		s.recoverLostTarget(h, state, assistantID)
		return nil
	}

	if !state.IsOpen && s.notifier != nil && !msg.IsEmpty() {
		s.notifier.NotifyIfHidden(ctx, msg.Content)
	}
	return nil
}

func (s *Streamer) fail(h store.Handle, assistantID string, err error) error {
	s.log.Warn("Completion failed", "assistant_id", assistantID, "error", err)

	h.Dispatch(chat.SetError{Message: chat.HumanReadableError(err)})
	h.Dispatch(chat.FailStreaming{ID: assistantID, Content: chat.FallbackContent})
	return fmt.Errorf("completion failed: %w", err)
}

func (s *Streamer) interrupted(ctx context.Context, h store.Handle, assistantID string) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return s.fail(h, assistantID, ctx.Err())
	}

	s.log.Info("Stream cancelled", "assistant_id", assistantID, "policy", string(s.policy))
	if s.policy == CancelFinalize {
		state := h.Dispatch(chat.FinishStreaming{ID: assistantID})
		if _, ok := state.FindMessage(assistantID); !ok {
			s.recoverLostTarget(h, state, assistantID)
		}
	}
	return ctx.Err()
}

// recoverLostTarget clears the busy flag when the reply was removed
// mid-stream, since finishing an unknown message is a no-op.
func (s *Streamer) recoverLostTarget(h store.Handle, state chat.State, assistantID string) {
	s.log.Debug("Reply removed before it finished", "assistant_id", assistantID)
	if state.IsStreaming {
		h.Dispatch(chat.SetStreaming{Streaming: false})
	}
}
