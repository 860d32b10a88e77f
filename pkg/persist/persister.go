package persist

import (
	"context"
	"sync"
	"time"

	"github.com/killallgit/foliochat/pkg/chat"
	"github.com/killallgit/foliochat/pkg/logger"
	"github.com/killallgit/foliochat/pkg/store"
)

const saveTimeout = 5 * time.Second

// Persister is a store observer that writes the envelope after every
// command except streamed chunk updates.
type Persister struct {
	repo  *Repository
	log   *logger.Logger
	mu    sync.Mutex
	theme string
	err   error
}

func NewPersister(repo *Repository, theme string) *Persister {
	return &Persister{
		repo:  repo,
		theme: theme,
		log:   logger.WithComponent("persister"),
	}
}

func (p *Persister) OnStateChanged(change store.Change) {
	if _, ok := change.Command.(chat.UpdateMessage); ok {
		return
	}
	p.save(change.After)
}

// Flush writes state unconditionally.
func (p *Persister) Flush(state chat.State) error {
	p.save(state)
	return p.LastError()
}

func (p *Persister) SetTheme(theme string) {
	p.mu.Lock()
	p.theme = theme
	p.mu.Unlock()
}

// LastError returns the error from the most recent save, if any.
func (p *Persister) LastError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *Persister) save(state chat.State) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	p.err = p.repo.Save(ctx, state, p.theme)
	if p.err != nil {
		p.log.Warn("Failed to persist chat state", "error", p.err)
	}
}
