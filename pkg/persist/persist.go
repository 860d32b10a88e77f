package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/killallgit/foliochat/pkg/chat"
	"github.com/killallgit/foliochat/pkg/config"
)

// CurrentVersion is the envelope format written by Save.
const CurrentVersion = 1

// ErrNotFound is returned when nothing has been saved under a namespace.
var ErrNotFound = errors.New("no saved state")

// Envelope is the persisted shape: the chat state and the theme.
type Envelope struct {
	Version int        `json:"version"`
	Chat    chat.State `json:"chat"`
	Theme   string     `json:"theme,omitempty"`
}

// Storage is a namespaced blob store.
type Storage interface {
	Load(ctx context.Context, namespace string) ([]byte, error)
	Save(ctx context.Context, namespace string, data []byte) error
	Delete(ctx context.Context, namespace string) error
	Close() error
}

// NewStorage builds the backend selected by cfg.Backend.
func NewStorage(cfg config.StorageConfig) (Storage, error) {
	switch cfg.Backend {
	case "", "file":
		return NewFileStorage(cfg.Path), nil
	case "memory":
		return NewMemoryStorage(), nil
	case "redis":
		return NewRedisStorage(cfg.Redis)
	case "sqlite":
		return NewSQLStorage(cfg.SQLite.Path)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// Repository reads and writes the envelope under one namespace.
type Repository struct {
	storage   Storage
	namespace string
}

func NewRepository(storage Storage, namespace string) *Repository {
	return &Repository{storage: storage, namespace: namespace}
}

// Load returns the saved envelope, or ErrNotFound when none exists.
func (r *Repository) Load(ctx context.Context) (Envelope, error) {
	data, err := r.storage.Load(ctx, r.namespace)
	if err != nil {
		return Envelope{}, err
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("failed to decode %s: %w", r.namespace, err)
	}
	if env.Version > CurrentVersion {
		return Envelope{}, fmt.Errorf("saved state version %d is newer than supported version %d", env.Version, CurrentVersion)
	}
	if env.Chat.Messages == nil {
		env.Chat.Messages = []chat.Message{}
	}
	if env.Chat.Sessions == nil {
		env.Chat.Sessions = []chat.Session{}
	}
	return env, nil
}

// LoadState returns the saved chat state and theme, or a fresh state when
// nothing was saved. Messages may still be marked streaming; Store.Restore
// sweeps them.
func (r *Repository) LoadState(ctx context.Context) (chat.State, string, error) {
	env, err := r.Load(ctx)
	if errors.Is(err, ErrNotFound) {
		return chat.NewState(), "", nil
	}
	if err != nil {
		return chat.State{}, "", err
	}
	return env.Chat, env.Theme, nil
}

func (r *Repository) Save(ctx context.Context, state chat.State, theme string) error {
	data, err := json.Marshal(Envelope{
		Version: CurrentVersion,
		Chat:    state,
		Theme:   theme,
	})
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", r.namespace, err)
	}
	if err := r.storage.Save(ctx, r.namespace, data); err != nil {
		return fmt.Errorf("failed to save %s: %w", r.namespace, err)
	}
	return nil
}

func (r *Repository) Clear(ctx context.Context) error {
	return r.storage.Delete(ctx, r.namespace)
}
