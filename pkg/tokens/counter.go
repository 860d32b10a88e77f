package tokens

import (
	"strings"
	"sync"

	"github.com/killallgit/foliochat/pkg/llm"
	"github.com/killallgit/foliochat/pkg/logger"
	"github.com/pkoukk/tiktoken-go"
)

const (
	// perMessage covers the role markers wrapped around each turn.
	perMessage = 4
	// replyPriming is added once for the assistant turn the model opens.
	replyPriming     = 3
	fallbackEncoding = "cl100k_base"
)

// Counter measures conversation histories in model tokens.
type Counter struct {
	model   string
	once    sync.Once
	encoder *tiktoken.Tiktoken
}

// NewCounter returns a counter for model. The encoding is loaded on first
// use: the model's own, else cl100k_base, else word estimates.
func NewCounter(model string) *Counter {
	return &Counter{model: model}
}

// NewEstimator returns a counter that never loads an encoding and
// approximates token counts from word and character counts.
func NewEstimator() *Counter {
	c := &Counter{}
	c.once.Do(func() {})
	return c
}

func (c *Counter) load() {
	encoder, err := tiktoken.EncodingForModel(strings.ToLower(c.model))
	if err != nil {
		encoder, err = tiktoken.GetEncoding(fallbackEncoding)
	}
	if err != nil {
		logger.WithComponent("tokens").Warn("Falling back to estimated token counts", "model", c.model, "error", err)
		return
	}
	c.encoder = encoder
}

// CountText returns the number of tokens in text.
func (c *Counter) CountText(text string) int {
	c.once.Do(c.load)
	if c.encoder == nil {
		return estimate(text)
	}
	return len(c.encoder.Encode(text, nil, nil))
}

// CountHistory returns the prompt size of history, including the
// per-turn framing the chat APIs add.
func (c *Counter) CountHistory(history []llm.Message) int {
	total := replyPriming
	for _, m := range history {
		total += c.CountText(m.Role) + c.CountText(m.Content) + perMessage
	}
	return total
}

// TrimHistory drops the oldest turns until history fits in budget tokens.
// A turn is a user message with the replies that follow it, so the
// result never opens on an orphaned assistant reply. The newest message
// is always kept and a budget of zero or less disables trimming.
func (c *Counter) TrimHistory(history []llm.Message, budget int) []llm.Message {
	if budget <= 0 || len(history) == 0 {
		return history
	}

	start := 0
	for start < len(history)-1 && c.CountHistory(history[start:]) > budget {
		start = nextTurn(history, start)
	}
	return history[start:]
}

// nextTurn returns the index of the first user message after i, or the
// last index when there is none.
func nextTurn(history []llm.Message, i int) int {
	j := i + 1
	for j < len(history)-1 && history[j].Role != llm.RoleUser {
		j++
	}
	return j
}

// estimate takes the larger of one token per word and one per four bytes.
func estimate(text string) int {
	words := len(strings.Fields(text))
	if chars := len(text) / 4; chars > words {
		return chars
	}
	return words
}
