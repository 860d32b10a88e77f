package testutil

import (
	"context"
	"sync"
)

// Notification is one call recorded by RecordingNotifier
type Notification struct {
	Title string
	Body  string
}

// RecordingSound records every sound played
type RecordingSound struct {
	mu    sync.Mutex
	plays []string
	Err   error
}

func (r *RecordingSound) Play(ctx context.Context, kind string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plays = append(r.plays, kind)
	return r.Err
}

func (r *RecordingSound) Plays() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.plays...)
}

// RecordingNotifier records every notification shown
type RecordingNotifier struct {
	mu            sync.Mutex
	notifications []Notification
	Err           error
}

func (r *RecordingNotifier) Notify(ctx context.Context, title, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, Notification{Title: title, Body: body})
	return r.Err
}

func (r *RecordingNotifier) Notifications() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.notifications...)
}

// RecordingTitle records every title set
type RecordingTitle struct {
	mu     sync.Mutex
	titles []string
	Err    error
}

func (r *RecordingTitle) SetTitle(title string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.titles = append(r.titles, title)
	return nil
}

func (r *RecordingTitle) Titles() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.titles...)
}

// Current returns the last title set, or ""
func (r *RecordingTitle) Current() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.titles) == 0 {
		return ""
	}
	return r.titles[len(r.titles)-1]
}
