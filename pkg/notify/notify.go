// Package notify tells the user about assistant replies that arrive while
// the chat panel is closed.
package notify

import (
	"context"
	"fmt"

	"github.com/killallgit/foliochat/pkg/chat"
	"github.com/killallgit/foliochat/pkg/config"
)

// SoundMessage is the sound played for a new reply.
const SoundMessage = "message"

const (
	previewLength     = 100
	badgeCap          = 99
	notificationTitle = "New message from the assistant"
	defaultPageTitle  = "Portfolio"
)

// SoundPlayer plays a short sound of the given kind.
type SoundPlayer interface {
	Play(ctx context.Context, kind string) error
}

// Notifier shows a platform notification.
type Notifier interface {
	Notify(ctx context.Context, title, body string) error
}

// TitleSetter replaces the window or page title.
type TitleSetter interface {
	SetTitle(title string) error
}

// StateReader reads the current chat state.
type StateReader interface {
	Snapshot() chat.State
}

// Preferences are the user's notification switches.
type Preferences struct {
	SoundEnabled           bool
	BrowserNotifications   bool
	PageTitleNotifications bool
	BadgeEnabled           bool
	PageTitle              string
}

// PreferencesFromConfig maps the notifications config section.
func PreferencesFromConfig(cfg config.NotificationsConfig) Preferences {
	return Preferences{
		SoundEnabled:           cfg.SoundEnabled,
		BrowserNotifications:   cfg.BrowserNotifications,
		PageTitleNotifications: cfg.PageTitleNotifications,
		BadgeEnabled:           cfg.BadgeEnabled,
		PageTitle:              cfg.PageTitle,
	}
}

// FormatBadge renders an unread count for display, capping it at "99+".
// Zero renders as the empty string.
func FormatBadge(unread int) string {
	switch {
	case unread <= 0:
		return ""
	case unread > badgeCap:
		return fmt.Sprintf("%d+", badgeCap)
	default:
		return fmt.Sprintf("%d", unread)
	}
}

// Preview shortens a reply for a notification body.
func Preview(content string) string {
	return chat.Truncate(content, previewLength)
}

// PageTitle returns the title to show for unread replies, or base when
// there are none.
func PageTitle(base string, unread int) string {
	if base == "" {
		base = defaultPageTitle
	}
	if unread <= 0 {
		return base
	}
	return fmt.Sprintf("(%s) %s", FormatBadge(unread), base)
}
