package engage_test

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/killallgit/foliochat/pkg/chat"
	"github.com/killallgit/foliochat/pkg/engage"
	"github.com/killallgit/foliochat/pkg/store"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var _ = Describe("Scheduler", func() {
	var (
		s     *store.Store
		clock *fakeClock
		sched *engage.Scheduler
	)

	newScheduler := func(settings engage.Settings) *engage.Scheduler {
		return engage.New(s, settings, engage.WithClock(clock.Now))
	}

	BeforeEach(func() {
		clock = &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
		s = store.New(store.WithClock(clock.Now))
	})

	AfterEach(func() {
		if sched != nil {
			sched.Stop()
			sched = nil
		}
	})

	It("should show the tooltip after the delay and hide it later", func() {
		sched = newScheduler(engage.Settings{
			ShowAfter: 20 * time.Millisecond,
			HideAfter: 60 * time.Millisecond,
		})
		Expect(sched.Start()).To(Succeed())

		Expect(s.Snapshot().ShowTooltip).To(BeFalse())
		Eventually(func() bool { return s.Snapshot().ShowTooltip }).Should(BeTrue())
		Expect(s.Snapshot().LastInteractivePromptTime).To(Equal(clock.Now().UnixMilli()))

		Eventually(func() bool { return s.Snapshot().ShowTooltip }).Should(BeFalse())
	})

	It("should not prompt a user who already interacted", func() {
		s.Dispatch(chat.SetUserInteracted{Interacted: true})
		sched = newScheduler(engage.Settings{ShowAfter: 10 * time.Millisecond})
		Expect(sched.Start()).To(Succeed())

		Eventually(sched.Pending).Should(BeZero())
		Consistently(func() bool { return s.Snapshot().ShowTooltip }, 50*time.Millisecond).Should(BeFalse())
	})

	It("should not prompt while the panel is open", func() {
		s.Dispatch(chat.OpenChat{})
		sched = newScheduler(engage.Settings{ShowAfter: 10 * time.Millisecond})
		Expect(sched.Start()).To(Succeed())

		Eventually(sched.Pending).Should(BeZero())
		Expect(s.Snapshot().ShowTooltip).To(BeFalse())
	})

	It("should drop pending prompts on stop", func() {
		sched = newScheduler(engage.Settings{ShowAfter: time.Hour})
		Expect(sched.Start()).To(Succeed())
		Expect(sched.Pending()).To(Equal(1))

		sched.Stop()
		Expect(sched.Pending()).To(BeZero())
	})

	It("should refuse to start twice", func() {
		sched = newScheduler(engage.Settings{ShowAfter: time.Hour})
		Expect(sched.Start()).To(Succeed())
		Expect(sched.Start()).To(HaveOccurred())
	})

	Describe("After", func() {
		It("should run the task once", func() {
			sched = newScheduler(engage.Settings{ShowAfter: time.Hour})
			Expect(sched.Start()).To(Succeed())

			var runs atomic.Int32
			sched.After(5*time.Millisecond, func() { runs.Add(1) })
			Eventually(runs.Load).Should(Equal(int32(1)))
			Consistently(runs.Load, 30*time.Millisecond).Should(Equal(int32(1)))
		})

		It("should not run a cancelled task", func() {
			sched = newScheduler(engage.Settings{ShowAfter: time.Hour})
			Expect(sched.Start()).To(Succeed())

			var runs atomic.Int32
			cancel := sched.After(20*time.Millisecond, func() { runs.Add(1) })
			cancel()
			Consistently(runs.Load, 60*time.Millisecond).Should(BeZero())
		})

		It("should ignore tasks scheduled before start", func() {
			sched = newScheduler(engage.Settings{})
			var runs atomic.Int32
			sched.After(time.Millisecond, func() { runs.Add(1) })
			Expect(sched.Pending()).To(BeZero())
		})
	})

	Describe("CheckFollowUp", func() {
		BeforeEach(func() {
			sched = newScheduler(engage.Settings{
				ShowAfter:        time.Hour,
				FollowUpCooldown: 5 * time.Minute,
			})
			Expect(sched.Start()).To(Succeed())
		})

		It("should prompt when nothing was shown yet", func() {
			sched.CheckFollowUp()
			Expect(s.Snapshot().ShowTooltip).To(BeTrue())
		})

		It("should wait out the cooldown after an ignored prompt", func() {
			s.Dispatch(chat.ShowTooltip{})
			s.Dispatch(chat.HideTooltip{})

			clock.Advance(4 * time.Minute)
			sched.CheckFollowUp()
			Expect(s.Snapshot().ShowTooltip).To(BeFalse())

			clock.Advance(time.Minute)
			sched.CheckFollowUp()
			Expect(s.Snapshot().ShowTooltip).To(BeTrue())
			Expect(s.Snapshot().LastInteractivePromptTime).To(Equal(clock.Now().UnixMilli()))
		})

		It("should stay quiet once the user interacted", func() {
			s.Dispatch(chat.SetUserInteracted{Interacted: true})
			clock.Advance(time.Hour)
			sched.CheckFollowUp()
			Expect(s.Snapshot().ShowTooltip).To(BeFalse())
		})
	})

	It("should run the follow-up check on its cron schedule", func() {
		s.Dispatch(chat.ShowTooltip{})
		s.Dispatch(chat.HideTooltip{})
		clock.Advance(10 * time.Minute)

		sched = newScheduler(engage.Settings{
			ShowAfter:        time.Hour,
			FollowUpEvery:    time.Second,
			FollowUpCooldown: time.Minute,
		})
		Expect(sched.Start()).To(Succeed())

		Eventually(func() bool { return s.Snapshot().ShowTooltip }, 3*time.Second, 50*time.Millisecond).Should(BeTrue())
	})
})

var _ = Describe("Eligible", func() {
	const cooldown = time.Minute

	It("should allow a first prompt", func() {
		Expect(engage.Eligible(chat.NewState(), 1000, cooldown)).To(BeTrue())
	})

	It("should respect the cooldown boundary", func() {
		state := chat.NewState()
		state.LastInteractivePromptTime = 1000
		Expect(engage.Eligible(state, 1000+cooldown.Milliseconds()-1, cooldown)).To(BeFalse())
		Expect(engage.Eligible(state, 1000+cooldown.Milliseconds(), cooldown)).To(BeTrue())
	})

	It("should refuse while the tooltip is already visible", func() {
		state := chat.NewState()
		state.ShowTooltip = true
		Expect(engage.Eligible(state, 1000, cooldown)).To(BeFalse())
	})
})
