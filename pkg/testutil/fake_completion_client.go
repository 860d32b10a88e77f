package testutil

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/killallgit/foliochat/pkg/llm"
)

// FakeCompletionClient implements llm.CompletionClient for testing
type FakeCompletionClient struct {
	mu           sync.Mutex
	chunks       []string
	chunkDelay   time.Duration // Delay between chunks
	failAfter    int           // Fail after N chunks (-1 = no failure)
	errorMessage string        // Custom error message
	blockAfter   int           // Block until cancelled after N chunks (-1 = never)
	startErr     error
	pauseAfter   int // Wait for resume after N chunks (-1 = never)
	resume       <-chan struct{}
	histories    [][]llm.Message
	started      chan struct{}
}

// NewFakeCompletionClient creates a client that streams chunks in order
func NewFakeCompletionClient(chunks ...string) *FakeCompletionClient {
	return &FakeCompletionClient{
		chunks:     chunks,
		failAfter:  -1,
		blockAfter: -1,
		pauseAfter: -1,
		started:    make(chan struct{}, 16),
	}
}

// StreamCompletion implements the llm.CompletionClient interface
func (c *FakeCompletionClient) StreamCompletion(ctx context.Context, history []llm.Message) (<-chan llm.Chunk, error) {
	c.mu.Lock()
	recorded := make([]llm.Message, len(history))
	copy(recorded, history)
	c.histories = append(c.histories, recorded)
	chunks := append([]string(nil), c.chunks...)
	delay, failAfter, errMsg, blockAfter, startErr := c.chunkDelay, c.failAfter, c.errorMessage, c.blockAfter, c.startErr
	pauseAfter, resume := c.pauseAfter, c.resume
	c.mu.Unlock()

	if startErr != nil {
		return nil, startErr
	}

	out := make(chan llm.Chunk)
	go func() {
		defer close(out)
		select {
		case c.started <- struct{}{}:
		default:
		}

		for i := 0; ; i++ {
			if failAfter >= 0 && i == failAfter {
				if errMsg == "" {
					errMsg = "simulated streaming error"
				}
				select {
				case out <- llm.Chunk{Err: errors.New(errMsg)}:
				case <-ctx.Done():
				}
				return
			}
			if blockAfter >= 0 && i == blockAfter {
				<-ctx.Done()
				return
			}
			if pauseAfter >= 0 && i == pauseAfter {
				select {
				case <-resume:
				case <-ctx.Done():
					return
				}
			}
			if i >= len(chunks) {
				return
			}

			if delay > 0 {
				select {
				case <-time.After(delay):
				case <-ctx.Done():
					return
				}
			}

			select {
			case out <- llm.Chunk{Content: chunks[i]}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// SetChunkDelay sets the delay between chunks
func (c *FakeCompletionClient) SetChunkDelay(delay time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chunkDelay = delay
}

// SetFailAfter configures the client to fail after N chunks
func (c *FakeCompletionClient) SetFailAfter(chunks int, errorMessage string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failAfter = chunks
	c.errorMessage = errorMessage
}

// SetBlockAfter makes the stream hang after N chunks until its context ends
func (c *FakeCompletionClient) SetBlockAfter(chunks int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blockAfter = chunks
}

// SetPauseAfter holds the stream after N chunks until resume is closed
func (c *FakeCompletionClient) SetPauseAfter(chunks int, resume <-chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pauseAfter = chunks
	c.resume = resume
}

// SetStartError makes StreamCompletion fail before streaming
func (c *FakeCompletionClient) SetStartError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.startErr = err
}

// Started is signalled each time a stream begins
func (c *FakeCompletionClient) Started() <-chan struct{} {
	return c.started
}

// Histories returns every history passed to StreamCompletion
func (c *FakeCompletionClient) Histories() [][]llm.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]llm.Message, len(c.histories))
	copy(out, c.histories)
	return out
}

// LastHistory returns the most recent history, or nil
func (c *FakeCompletionClient) LastHistory() []llm.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.histories) == 0 {
		return nil
	}
	return c.histories[len(c.histories)-1]
}
