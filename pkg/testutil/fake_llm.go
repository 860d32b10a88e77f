package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/tmc/langchaingo/llms"
)

// FakeLLM is an llms.Model that replies with canned answers in turn and
// feeds them through the streaming func in chunkSize pieces.
type FakeLLM struct {
	mu           sync.Mutex
	responses    []string
	next         int
	callCount    int
	errorOnCall  int
	errorMessage string
	chunkSize    int
	lastMessages []llms.MessageContent
}

func NewFakeLLM(responses ...string) *FakeLLM {
	return &FakeLLM{
		responses: responses,
		chunkSize: 5,
	}
}

// Call satisfies llms.Model.
func (f *FakeLLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

// GenerateContent returns the next canned answer, streaming it first when
// a streaming func is set.
func (f *FakeLLM) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	response, chunkSize, err := f.take(messages)
	if err != nil {
		return nil, err
	}

	opts := llms.CallOptions{}
	for _, opt := range options {
		opt(&opts)
	}
	if opts.StreamingFunc != nil {
		for i := 0; i < len(response); i += chunkSize {
			end := min(i+chunkSize, len(response))
			if err := opts.StreamingFunc(ctx, []byte(response[i:end])); err != nil {
				return nil, err
			}
		}
	}

	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: response}},
	}, nil
}

func (f *FakeLLM) take(messages []llms.MessageContent) (string, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.callCount++
	f.lastMessages = messages
	if f.errorOnCall > 0 && f.callCount == f.errorOnCall {
		if f.errorMessage != "" {
			return "", 0, errors.New(f.errorMessage)
		}
		return "", 0, fmt.Errorf("fake error on call %d", f.callCount)
	}
	if len(f.responses) == 0 {
		return "", 0, errors.New("no responses configured")
	}

	response := f.responses[f.next]
	f.next = (f.next + 1) % len(f.responses)
	return response, max(f.chunkSize, 1), nil
}

// SetChunkSize sets the number of bytes per streamed chunk.
func (f *FakeLLM) SetChunkSize(size int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chunkSize = size
}

// SetErrorOnCall fails the callNumber-th request with errorMessage.
func (f *FakeLLM) SetErrorOnCall(callNumber int, errorMessage string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errorOnCall = callNumber
	f.errorMessage = errorMessage
}

func (f *FakeLLM) GetCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.callCount
}

// GetLastMessages returns the messages of the last request.
func (f *FakeLLM) GetLastMessages() []llms.MessageContent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastMessages
}
