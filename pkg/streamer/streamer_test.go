package streamer_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/killallgit/foliochat/pkg/chat"
	"github.com/killallgit/foliochat/pkg/llm"
	"github.com/killallgit/foliochat/pkg/store"
	"github.com/killallgit/foliochat/pkg/streamer"
	"github.com/killallgit/foliochat/pkg/testutil"
	"github.com/killallgit/foliochat/pkg/tokens"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type recordingNotifier struct {
	mu       sync.Mutex
	contents []string
}

func (r *recordingNotifier) NotifyIfHidden(ctx context.Context, content string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contents = append(r.contents, content)
}

func (r *recordingNotifier) calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.contents...)
}

func commandNames(changes []store.Change) []string {
	names := make([]string, len(changes))
	for i, c := range changes {
		names[i] = c.Command.Name()
	}
	return names
}

var _ = Describe("Streamer", func() {
	var (
		s        *store.Store
		client   *testutil.FakeCompletionClient
		notifier *recordingNotifier
		changes  []store.Change
		mu       sync.Mutex
	)

	recorded := func() []store.Change {
		mu.Lock()
		defer mu.Unlock()
		return append([]store.Change(nil), changes...)
	}

	BeforeEach(func() {
		s = store.New()
		client = testutil.NewFakeCompletionClient("Hi", " there", "!")
		notifier = &recordingNotifier{}
		changes = nil
		s.Subscribe(store.ObserverFunc(func(c store.Change) {
			mu.Lock()
			changes = append(changes, c)
			mu.Unlock()
		}))
	})

	newStreamer := func(opts ...streamer.Option) *streamer.Streamer {
		return streamer.New(client, append([]streamer.Option{streamer.WithNotifier(notifier)}, opts...)...)
	}

	Describe("a successful exchange", func() {
		It("should stream the reply and count it as unread while closed", func() {
			err := newStreamer().SendMessage(context.Background(), "Hello", s)
			Expect(err).NotTo(HaveOccurred())

			state := s.Snapshot()
			Expect(state.Messages).To(HaveLen(2))
			Expect(state.Messages[0].Role).To(Equal(chat.RoleUser))
			Expect(state.Messages[0].Content).To(Equal("Hello"))
			Expect(state.Messages[1].Role).To(Equal(chat.RoleAssistant))
			Expect(state.Messages[1].Content).To(Equal("Hi there!"))
			Expect(state.Messages[1].Streaming).To(BeFalse())
			Expect(state.IsStreaming).To(BeFalse())
			Expect(state.UnreadCount).To(Equal(1))
			Expect(notifier.calls()).To(Equal([]string{"Hi there!"}))
		})

		It("should dispatch in a fixed order", func() {
			Expect(newStreamer().SendMessage(context.Background(), "Hello", s)).To(Succeed())

			Expect(commandNames(recorded())).To(Equal([]string{
				"add_message", "add_message", "set_error", "set_streaming",
				"update_message", "update_message", "update_message",
				"finish_streaming",
			}))
		})

		It("should have the placeholder in place before the request", func() {
			blocking := testutil.NewFakeCompletionClient("late")
			resume := make(chan struct{})
			blocking.SetPauseAfter(0, resume)

			done := make(chan error, 1)
			go func() { done <- streamer.New(blocking).SendMessage(context.Background(), "Hello", s) }()
			Eventually(blocking.Started()).Should(Receive())

			state := s.Snapshot()
			Expect(state.IsStreaming).To(BeTrue())
			Expect(state.Messages).To(HaveLen(2))
			Expect(state.Messages[1].Streaming).To(BeTrue())
			Expect(state.Messages[1].Content).To(BeEmpty())

			close(resume)
			Eventually(done).Should(Receive(BeNil()))
		})

		It("should send the history without the placeholder", func() {
			st := newStreamer()
			Expect(st.SendMessage(context.Background(), "Hello", s)).To(Succeed())
			Expect(st.SendMessage(context.Background(), "  Tell me more  ", s)).To(Succeed())

			Expect(client.LastHistory()).To(Equal([]llm.Message{
				{Role: "user", Content: "Hello"},
				{Role: "assistant", Content: "Hi there!"},
				{Role: "user", Content: "Tell me more"},
			}))
		})

		It("should not notify or count unread while open", func() {
			s.Dispatch(chat.OpenChat{})
			Expect(newStreamer().SendMessage(context.Background(), "Hello", s)).To(Succeed())

			Expect(s.Snapshot().UnreadCount).To(Equal(0))
			Expect(notifier.calls()).To(BeEmpty())
		})

		It("should title the active session", func() {
			s.Dispatch(chat.CreateNewSession{})
			Expect(newStreamer().SendMessage(context.Background(), "What have you built with Go?", s)).To(Succeed())

			sess, ok := s.Snapshot().CurrentSession()
			Expect(ok).To(BeTrue())
			Expect(sess.Title).To(Equal("What have you built with Go?"))
			Expect(sess.Messages).To(Equal(s.Snapshot().Messages))
		})
	})

	It("should ignore blank input", func() {
		Expect(newStreamer().SendMessage(context.Background(), "   \n\t", s)).To(Succeed())
		Expect(s.Snapshot()).To(Equal(chat.NewState()))
		Expect(client.Histories()).To(BeEmpty())
	})

	Describe("cancellation", func() {
		cancelAfterFirstChunk := func() (context.Context, context.CancelFunc) {
			ctx, cancel := context.WithCancel(context.Background())
			s.Subscribe(store.ObserverFunc(func(c store.Change) {
				if _, ok := c.Command.(chat.UpdateMessage); ok {
					cancel()
				}
			}))
			return ctx, cancel
		}

		It("should leave the reply streaming under the abandon policy", func() {
			ctx, cancel := cancelAfterFirstChunk()
			defer cancel()

			err := newStreamer(streamer.WithCancelPolicy(streamer.CancelAbandon)).SendMessage(ctx, "Hello", s)
			Expect(err).To(MatchError(context.Canceled))

			state := s.Snapshot()
			Expect(state.Messages[1].Content).To(Equal("Hi"))
			Expect(state.Messages[1].Streaming).To(BeTrue())
			Expect(state.IsStreaming).To(BeTrue())
			Expect(commandNames(recorded())).NotTo(ContainElement("finish_streaming"))
			Expect(notifier.calls()).To(BeEmpty())
		})

		It("should freeze the partial reply under the finalize policy", func() {
			ctx, cancel := cancelAfterFirstChunk()
			defer cancel()

			err := newStreamer().SendMessage(ctx, "Hello", s)
			Expect(err).To(MatchError(context.Canceled))

			state := s.Snapshot()
			Expect(state.Messages[1].Content).To(Equal("Hi"))
			Expect(state.Messages[1].Streaming).To(BeFalse())
			Expect(state.IsStreaming).To(BeFalse())
			Expect(state.Error).To(BeEmpty())
		})
	})

	Describe("failures", func() {
		It("should replace the reply with the fallback when the stream fails immediately", func() {
			client.SetFailAfter(0, "connection reset")

			err := newStreamer().SendMessage(context.Background(), "Hello", s)
			Expect(err).To(HaveOccurred())

			state := s.Snapshot()
			Expect(state.Messages[1].Content).To(Equal(chat.FallbackContent))
			Expect(state.Messages[1].Streaming).To(BeFalse())
			Expect(state.Error).To(ContainSubstring("connection reset"))
			Expect(state.IsStreaming).To(BeFalse())
			Expect(state.UnreadCount).To(Equal(0))
			Expect(notifier.calls()).To(BeEmpty())
		})

		It("should discard partial content on a mid-stream failure", func() {
			client.SetFailAfter(2, "stream broke")

			Expect(newStreamer().SendMessage(context.Background(), "Hello", s)).NotTo(Succeed())
			Expect(s.Snapshot().Messages[1].Content).To(Equal(chat.FallbackContent))
		})

		It("should handle a request that never starts", func() {
			client.SetStartError(errors.New("dial tcp: refused"))

			Expect(newStreamer().SendMessage(context.Background(), "Hello", s)).NotTo(Succeed())

			state := s.Snapshot()
			Expect(state.Messages[1].Content).To(Equal(chat.FallbackContent))
			Expect(state.Error).To(Equal("Failed to get a response: dial tcp: refused"))
			Expect(state.IsStreaming).To(BeFalse())
		})

		It("should treat a passed deadline as a failure", func() {
			client.SetBlockAfter(1)
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()

			err := newStreamer().SendMessage(ctx, "Hello", s)
			Expect(errors.Is(err, context.DeadlineExceeded)).To(BeTrue())

			state := s.Snapshot()
			Expect(state.Messages[1].Content).To(Equal(chat.FallbackContent))
			Expect(state.Error).To(ContainSubstring("took too long"))
			Expect(state.IsStreaming).To(BeFalse())
		})

		It("should clear a previous error when a new message is sent", func() {
			s.Dispatch(chat.SetError{Message: "old failure"})
			Expect(newStreamer().SendMessage(context.Background(), "Hello", s)).To(Succeed())
			Expect(s.Snapshot().Error).To(BeEmpty())
		})
	})

	It("should clear the busy flag when the reply is deleted mid-stream", func() {
		s.Dispatch(chat.CreateNewSession{SessionID: "s1"})
		resume := make(chan struct{})
		client.SetPauseAfter(1, resume)

		done := make(chan error, 1)
		go func() { done <- newStreamer().SendMessage(context.Background(), "Hello", s) }()

		Eventually(func() string {
			state := s.Snapshot()
			if len(state.Messages) < 2 {
				return ""
			}
			return state.Messages[1].Content
		}).Should(Equal("Hi"))

		s.Dispatch(chat.DeleteSession{ID: "s1"})
		close(resume)

		Eventually(done).Should(Receive(BeNil()))
		state := s.Snapshot()
		Expect(state.IsStreaming).To(BeFalse())
		Expect(state.Messages).To(BeEmpty())
		Expect(notifier.calls()).To(BeEmpty())
	})

	It("should keep streaming into its own session after a switch", func() {
		s.Dispatch(chat.CreateNewSession{SessionID: "s1"})
		resume := make(chan struct{})
		client.SetPauseAfter(1, resume)

		done := make(chan error, 1)
		go func() { done <- newStreamer().SendMessage(context.Background(), "Hello", s) }()
		Eventually(func() int { return len(s.Snapshot().Messages) }).Should(Equal(2))

		s.Dispatch(chat.CreateNewSession{SessionID: "s2"})
		close(resume)
		Eventually(done).Should(Receive(BeNil()))

		state := s.Snapshot()
		Expect(state.Messages).To(BeEmpty())
		s1, _ := state.Session("s1")
		Expect(s1.Messages[1].Content).To(Equal("Hi there!"))
		Expect(s1.Messages[1].Streaming).To(BeFalse())
	})

	It("should trim history to the token budget", func() {
		counter := tokens.NewEstimator()
		st := newStreamer(streamer.WithHistoryBudget(counter, 12))

		Expect(st.SendMessage(context.Background(), "Tell me about every project you have shipped so far", s)).To(Succeed())
		Expect(st.SendMessage(context.Background(), "Thanks", s)).To(Succeed())

		history := client.LastHistory()
		Expect(len(history)).To(BeNumerically("<", 3))
		Expect(history[0].Role).To(Equal(llm.RoleUser))
		Expect(history[len(history)-1].Content).To(Equal("Thanks"))
	})
})

var _ = Describe("ParseCancelPolicy", func() {
	It("should default to finalize", func() {
		Expect(streamer.ParseCancelPolicy("")).To(Equal(streamer.CancelFinalize))
		Expect(streamer.ParseCancelPolicy("abandon")).To(Equal(streamer.CancelAbandon))
	})

	It("should reject unknown values", func() {
		_, err := streamer.ParseCancelPolicy("retry")
		Expect(err).To(HaveOccurred())
	})
})
