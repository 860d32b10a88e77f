package store_test

import (
	"fmt"
	"sync"
	"time"

	"github.com/killallgit/foliochat/pkg/chat"
	"github.com/killallgit/foliochat/pkg/store"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type sequentialIDs struct {
	mu sync.Mutex
	n  int
}

func (s *sequentialIDs) next(prefix string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("%s-%d", prefix, s.n)
}

func (s *sequentialIDs) MessageID() string { return s.next("msg") }
func (s *sequentialIDs) SessionID() string { return s.next("session") }

var _ = Describe("Store", func() {
	var (
		s   *store.Store
		now time.Time
	)

	BeforeEach(func() {
		now = time.UnixMilli(1_700_000_000_000)
		s = store.New(
			store.WithClock(func() time.Time { return now }),
			store.WithIDs(&sequentialIDs{}),
		)
	})

	It("should start empty", func() {
		Expect(s.Snapshot()).To(Equal(chat.NewState()))
	})

	It("should stamp commands dispatched without times or ids", func() {
		state := s.Dispatch(chat.OpenChat{})

		Expect(state.CurrentSessionID).To(Equal("session-1"))
		sess, ok := state.CurrentSession()
		Expect(ok).To(BeTrue())
		Expect(sess.CreatedAt).To(Equal(now.UnixMilli()))
	})

	It("should stamp message timestamps", func() {
		s.Dispatch(chat.CreateNewSession{})
		state := s.Dispatch(chat.AddMessage{Message: chat.Message{ID: "m1", Role: chat.RoleUser, Content: "hi"}})
		Expect(state.Messages[0].Timestamp).To(Equal(now.UnixMilli()))
	})

	It("should hand out snapshots that do not alias the store", func() {
		s.Dispatch(chat.CreateNewSession{})
		s.Dispatch(chat.AddMessage{Message: chat.NewUserMessage("m1", "hello", 1)})

		snap := s.Snapshot()
		snap.Messages[0].Content = "tampered"
		snap.Sessions[0].Messages[0].Content = "tampered"

		Expect(s.Snapshot().Messages[0].Content).To(Equal("hello"))
		Expect(s.Snapshot().Sessions[0].Messages[0].Content).To(Equal("hello"))
	})

	It("should notify observers with before and after states", func() {
		var changes []store.Change
		s.Subscribe(store.ObserverFunc(func(c store.Change) {
			changes = append(changes, c)
		}))

		s.Dispatch(chat.OpenChat{})
		s.Dispatch(chat.CloseChat{})

		Expect(changes).To(HaveLen(2))
		Expect(changes[0].Command.Name()).To(Equal("open_chat"))
		Expect(changes[0].Before.IsOpen).To(BeFalse())
		Expect(changes[0].After.IsOpen).To(BeTrue())
		Expect(changes[1].Command).To(Equal(chat.CloseChat{}))
		Expect(changes[1].After.IsOpen).To(BeFalse())
	})

	It("should let observers read the store", func() {
		var seen bool
		s.Subscribe(store.ObserverFunc(func(c store.Change) {
			seen = s.Snapshot().IsOpen
		}))
		s.Dispatch(chat.OpenChat{})
		Expect(seen).To(BeTrue())
	})

	It("should sweep stale messages on restore", func() {
		saved := chat.NewState()
		saved = chat.Reduce(saved, chat.CreateNewSession{SessionID: "s1", At: 1})
		saved = chat.Reduce(saved, chat.SetStreaming{Streaming: true})
		saved = chat.Reduce(saved, chat.AddMessage{Message: chat.NewAssistantPlaceholder("a1", 2), At: 2})

		s.Restore(saved)
		state := s.Snapshot()

		Expect(state.IsStreaming).To(BeFalse())
		Expect(state.Messages).To(BeEmpty())
		Expect(state.CurrentSessionID).To(Equal("s1"))
	})

	It("should serialize concurrent dispatches", func() {
		s.Dispatch(chat.CreateNewSession{SessionID: "s1"})

		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				s.Dispatch(chat.AddMessage{Message: chat.NewUserMessage(fmt.Sprintf("m%d", i), "hi", 1)})
			}(i)
		}
		wg.Wait()

		state := s.Snapshot()
		Expect(state.Messages).To(HaveLen(50))
		Expect(state.Sessions[0].Messages).To(Equal(state.Messages))
	})
})
