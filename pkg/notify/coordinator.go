package notify

import (
	"context"
	"sync"

	"github.com/killallgit/foliochat/pkg/logger"
	"github.com/killallgit/foliochat/pkg/store"
	"golang.org/x/sync/errgroup"
)

// Coordinator decides which notifications to deliver for a finished reply
// and keeps the title in step with the unread count.
type Coordinator struct {
	state    StateReader
	prefs    Preferences
	sound    SoundPlayer
	notifier Notifier
	title    TitleSetter
	log      *logger.Logger

	mu        sync.Mutex
	lastTitle string
}

// Option configures a Coordinator.
type Option func(*Coordinator)

func WithSound(p SoundPlayer) Option {
	return func(c *Coordinator) { c.sound = p }
}

func WithNotifier(n Notifier) Option {
	return func(c *Coordinator) { c.notifier = n }
}

func WithTitle(t TitleSetter) Option {
	return func(c *Coordinator) { c.title = t }
}

func NewCoordinator(state StateReader, prefs Preferences, opts ...Option) *Coordinator {
	c := &Coordinator{
		state: state,
		prefs: prefs,
		log:   logger.WithComponent("notify"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NotifyIfHidden plays a sound and shows a notification for content when
// the chat panel is closed. Delivery failures are logged and dropped.
func (c *Coordinator) NotifyIfHidden(ctx context.Context, content string) {
	if c.state.Snapshot().IsOpen {
		return
	}

	// Each task reports nil so one failure never cancels the other.
	g, gctx := errgroup.WithContext(ctx)
	if c.prefs.SoundEnabled && c.sound != nil {
		c.deliver(g, "sound", func() error { return c.sound.Play(gctx, SoundMessage) })
	}
	if c.prefs.BrowserNotifications && c.notifier != nil {
		c.deliver(g, "notification", func() error {
			return c.notifier.Notify(gctx, notificationTitle, Preview(content))
		})
	}
	_ = g.Wait()
}

// deliver runs fn on g, logging its error or panic instead of returning it.
func (c *Coordinator) deliver(g *errgroup.Group, kind string, fn func() error) {
	g.Go(func() error {
		defer func() {
			if r := recover(); r != nil {
				c.log.Error("Notification adapter panicked", "kind", kind, "error", r)
			}
		}()
		if err := fn(); err != nil {
			c.log.Debug("Notification delivery failed", "kind", kind, "error", err)
		}
		return nil
	})
}

// OnStateChanged keeps the title showing the unread count while the panel
// is closed and restores it otherwise.
func (c *Coordinator) OnStateChanged(change store.Change) {
	if c.title == nil {
		return
	}

	unread := 0
	if c.prefs.PageTitleNotifications && !change.After.IsOpen {
		unread = change.After.UnreadCount
	}
	want := PageTitle(c.prefs.PageTitle, unread)

	c.mu.Lock()
	defer c.mu.Unlock()
	if want == c.lastTitle {
		return
	}
	if err := c.title.SetTitle(want); err != nil {
		c.log.Debug("Title update failed", "error", err)
		return
	}
	c.lastTitle = want
}

// Badge returns the badge text for the current state, or "" when the
// badge is disabled or there is nothing unread.
func (c *Coordinator) Badge() string {
	if !c.prefs.BadgeEnabled {
		return ""
	}
	return FormatBadge(c.state.Snapshot().UnreadCount)
}
