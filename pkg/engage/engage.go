// Package engage shows the attention tooltip on a timer: once shortly
// after start, then again on a periodic follow-up whenever the previous
// prompt was ignored long enough.
package engage

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/killallgit/foliochat/pkg/chat"
	"github.com/killallgit/foliochat/pkg/config"
	"github.com/killallgit/foliochat/pkg/logger"
	"github.com/killallgit/foliochat/pkg/store"
)

// cronParser accepts standard expressions, an optional seconds field and
// descriptors such as "@every 1m".
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

type Settings struct {
	ShowAfter        time.Duration
	HideAfter        time.Duration
	FollowUpEvery    time.Duration
	FollowUpCooldown time.Duration
}

func SettingsFromConfig(cfg config.EngagementConfig) Settings {
	return Settings{
		ShowAfter:        cfg.ShowAfter,
		HideAfter:        cfg.HideAfter,
		FollowUpEvery:    cfg.FollowUpEvery,
		FollowUpCooldown: cfg.FollowUpCooldown,
	}
}

// Scheduler drives ShowTooltip / HideTooltip through the store.
type Scheduler struct {
	handle   store.Handle
	settings Settings
	clock    chat.Clock
	log      *logger.Logger

	mu      sync.Mutex
	pending map[int]*time.Timer
	nextID  int
	cron    *cron.Cron
	running bool
}

type Option func(*Scheduler)

func WithClock(clock chat.Clock) Option {
	return func(s *Scheduler) { s.clock = clock }
}

func New(handle store.Handle, settings Settings, opts ...Option) *Scheduler {
	s := &Scheduler{
		handle:   handle,
		settings: settings,
		pending:  make(map[int]*time.Timer),
		log:      logger.WithComponent("engage"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start schedules the first prompt and, when FollowUpEvery is set, the
// periodic follow-up check.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("engagement scheduler already running")
	}

	c := cron.New(cron.WithParser(cronParser))
	if s.settings.FollowUpEvery > 0 {
		schedule := "@every " + s.settings.FollowUpEvery.String()
		if _, err := c.AddFunc(schedule, s.CheckFollowUp); err != nil {
			return fmt.Errorf("invalid follow-up schedule %q: %w", schedule, err)
		}
	}
	c.Start()
	s.cron = c
	s.running = true

	s.afterLocked(s.settings.ShowAfter, s.showInitial)
	s.log.Debug("Engagement scheduler started",
		"show_after", s.settings.ShowAfter, "follow_up_every", s.settings.FollowUpEvery)
	return nil
}

// Stop cancels pending prompts and waits for a running follow-up check.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	for id, t := range s.pending {
		t.Stop()
		delete(s.pending, id)
	}
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	<-c.Stop().Done()
}

// After runs fn once d has elapsed unless the returned cancel is called
// first or the scheduler stops.
func (s *Scheduler) After(d time.Duration, fn func()) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.afterLocked(d, fn)
}

func (s *Scheduler) afterLocked(d time.Duration, fn func()) func() {
	if !s.running {
		return func() {}
	}

	id := s.nextID
	s.nextID++
	s.pending[id] = time.AfterFunc(d, func() {
		s.mu.Lock()
		_, live := s.pending[id]
		delete(s.pending, id)
		s.mu.Unlock()
		if live {
			fn()
		}
	})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if t, ok := s.pending[id]; ok {
			t.Stop()
			delete(s.pending, id)
		}
	}
}

// Pending reports how many delayed tasks have not fired yet.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *Scheduler) showInitial() {
	state := s.handle.Snapshot()
	if state.UserInteracted || state.IsOpen || state.ShowTooltip {
		return
	}
	s.prompt("initial")
}

// CheckFollowUp re-shows the tooltip when the user has ignored it for at
// least FollowUpCooldown.
func (s *Scheduler) CheckFollowUp() {
	state := s.handle.Snapshot()
	if !Eligible(state, s.clock.NowMillis(), s.settings.FollowUpCooldown) {
		return
	}
	s.prompt("follow_up")
}

// Eligible reports whether a follow-up prompt may be shown at now.
func Eligible(state chat.State, now int64, cooldown time.Duration) bool {
	if state.UserInteracted || state.IsOpen || state.ShowTooltip {
		return false
	}
	if state.LastInteractivePromptTime == 0 {
		return true
	}
	return now-state.LastInteractivePromptTime >= cooldown.Milliseconds()
}

func (s *Scheduler) prompt(reason string) {
	s.handle.Dispatch(chat.ShowTooltip{At: s.clock.NowMillis()})
	s.log.Debug("Showing engagement tooltip", "reason", reason)

	if s.settings.HideAfter > 0 {
		s.After(s.settings.HideAfter, s.hide)
	}
}

func (s *Scheduler) hide() {
	if !s.handle.Snapshot().ShowTooltip {
		return
	}
	s.handle.Dispatch(chat.HideTooltip{})
}
