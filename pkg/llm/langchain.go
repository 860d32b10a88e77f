package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/killallgit/foliochat/pkg/logger"
	"github.com/tmc/langchaingo/llms"
)

// LangChainClient streams completions from any langchaingo model.
type LangChainClient struct {
	model        llms.Model
	name         string
	systemPrompt string
	counter      HistoryCounter
	hideThinking bool
	log          *logger.Logger
}

// HistoryCounter measures a request history in model tokens.
type HistoryCounter interface {
	CountHistory(history []Message) int
}

// ClientOption configures a LangChainClient.
type ClientOption func(*LangChainClient)

// WithSystemPrompt prepends a system message to every request.
func WithSystemPrompt(prompt string) ClientOption {
	return func(c *LangChainClient) { c.systemPrompt = prompt }
}

// WithTokenCounter enables token usage logging.
func WithTokenCounter(counter HistoryCounter) ClientOption {
	return func(c *LangChainClient) { c.counter = counter }
}

// WithThinkingHidden strips <think> blocks from replies.
func WithThinkingHidden() ClientOption {
	return func(c *LangChainClient) { c.hideThinking = true }
}

// WithModelName labels log entries with the model name.
func WithModelName(name string) ClientOption {
	return func(c *LangChainClient) { c.name = name }
}

func NewLangChainClient(model llms.Model, opts ...ClientOption) *LangChainClient {
	c := &LangChainClient{
		model: model,
		log:   logger.WithComponent("llm_client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StreamCompletion starts the request in the background and forwards every
// streamed fragment on the returned channel.
func (c *LangChainClient) StreamCompletion(ctx context.Context, history []Message) (<-chan Chunk, error) {
	if len(history) == 0 {
		return nil, errors.New("history cannot be empty")
	}

	messages := c.toMessageContent(history)
	out := make(chan Chunk)

	go func() {
		defer close(out)

		streamed := false
		received := 0
		var filter *thinkFilter
		if c.hideThinking {
			filter = &thinkFilter{}
		}
		visible := func(text string) string {
			if filter == nil {
				return text
			}
			return filter.Write(text)
		}
		send := func(chunk Chunk) bool {
			select {
			case out <- chunk:
				return true
			case <-ctx.Done():
				return false
			}
		}

		streamFunc := func(ctx context.Context, chunk []byte) error {
			if len(chunk) == 0 {
				return nil
			}
			streamed = true
			received += len(chunk)
			text := visible(string(chunk))
			if text == "" {
				return nil
			}
			if !send(Chunk{Content: text}) {
				return ctx.Err()
			}
			return nil
		}

		resp, err := c.model.GenerateContent(ctx, messages, llms.WithStreamingFunc(streamFunc))
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Warn("Completion failed", "model", c.name, "error", err)
			send(Chunk{Err: fmt.Errorf("completion request failed: %w", err)})
			return
		}

		// Models that ignore the streaming option return the whole reply.
		if !streamed && resp != nil && len(resp.Choices) > 0 && resp.Choices[0].Content != "" {
			received = len(resp.Choices[0].Content)
			if text := visible(resp.Choices[0].Content); text != "" {
				send(Chunk{Content: text})
			}
		}
		if filter != nil {
			if rest := filter.Flush(); rest != "" {
				send(Chunk{Content: rest})
			}
		}

		if c.counter != nil {
			c.log.Debug("Completion finished", "model", c.name,
				"prompt_tokens", c.counter.CountHistory(history), "response_bytes", received)
		}
	}()

	return out, nil
}

func (c *LangChainClient) toMessageContent(history []Message) []llms.MessageContent {
	messages := make([]llms.MessageContent, 0, len(history)+1)
	if c.systemPrompt != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, c.systemPrompt))
	}

	for _, msg := range history {
		var msgType llms.ChatMessageType
		switch msg.Role {
		case RoleUser:
			msgType = llms.ChatMessageTypeHuman
		case RoleAssistant:
			msgType = llms.ChatMessageTypeAI
		case RoleSystem:
			msgType = llms.ChatMessageTypeSystem
		default:
			msgType = llms.ChatMessageTypeGeneric
		}
		messages = append(messages, llms.TextParts(msgType, msg.Content))
	}
	return messages
}
