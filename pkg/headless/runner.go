// Package headless runs the chat core without a UI: one store, one
// streamer and the notification and persistence observers around them.
package headless

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/killallgit/foliochat/pkg/chat"
	"github.com/killallgit/foliochat/pkg/config"
	"github.com/killallgit/foliochat/pkg/llm"
	"github.com/killallgit/foliochat/pkg/logger"
	"github.com/killallgit/foliochat/pkg/notify"
	"github.com/killallgit/foliochat/pkg/persist"
	"github.com/killallgit/foliochat/pkg/store"
	"github.com/killallgit/foliochat/pkg/streamer"
	"github.com/killallgit/foliochat/pkg/tokens"
)

// Runner owns the chat state for one CLI invocation.
type Runner struct {
	cfg         *config.Config
	store       *store.Store
	streamer    *streamer.Streamer
	coordinator *notify.Coordinator
	storage     persist.Storage
	persister   *persist.Persister
	out         io.Writer
	log         *logger.Logger

	client     llm.CompletionClient
	clientErr  error
	notifyOpts []notify.Option
	storeOpts  []store.Option
}

type Option func(*Runner)

// WithClient replaces the configured completion client.
func WithClient(client llm.CompletionClient) Option {
	return func(r *Runner) { r.client = client }
}

// WithStorage replaces the configured storage backend.
func WithStorage(storage persist.Storage) Option {
	return func(r *Runner) { r.storage = storage }
}

// WithOutput sets where streamed replies are written. Defaults to stdout.
func WithOutput(w io.Writer) Option {
	return func(r *Runner) { r.out = w }
}

// WithNotifyOptions replaces the default sound, notifier and title adapters.
func WithNotifyOptions(opts ...notify.Option) Option {
	return func(r *Runner) { r.notifyOpts = opts }
}

// WithStoreOptions passes options through to the store.
func WithStoreOptions(opts ...store.Option) Option {
	return func(r *Runner) { r.storeOpts = opts }
}

// NewRunner restores the saved state and wires the observers.
func NewRunner(ctx context.Context, cfg *config.Config, opts ...Option) (*Runner, error) {
	r := &Runner{
		cfg: cfg,
		out: os.Stdout,
		log: logger.WithComponent("headless"),
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.storage == nil {
		storage, err := persist.NewStorage(cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("failed to open storage: %w", err)
		}
		r.storage = storage
	}

	repo := persist.NewRepository(r.storage, cfg.Storage.Namespace)
	state, theme, err := repo.LoadState(ctx)
	if err != nil {
		r.storage.Close()
		return nil, fmt.Errorf("failed to load chat state: %w", err)
	}
	if theme == "" {
		theme = cfg.Theme
	}

	// Session management works without a model, so a client error only
	// surfaces when a message is sent.
	counter := tokens.NewCounter(cfg.Chat.TokenModel)
	if r.client == nil {
		client, err := llm.NewFromConfig(cfg, llm.WithTokenCounter(counter))
		if err != nil {
			r.log.Warn("Completion client unavailable", "error", err)
			r.clientErr = err
		} else {
			r.client = client
		}
	}

	r.store = store.New(r.storeOpts...)
	r.store.Restore(state)

	if r.notifyOpts == nil {
		r.notifyOpts = r.defaultNotifyOptions()
	}
	r.coordinator = notify.NewCoordinator(r.store, notify.PreferencesFromConfig(cfg.Notifications), r.notifyOpts...)

	policy, err := streamer.ParseCancelPolicy(cfg.Chat.CancelPolicy)
	if err != nil {
		r.storage.Close()
		return nil, err
	}
	streamOpts := []streamer.Option{
		streamer.WithCancelPolicy(policy),
		streamer.WithNotifier(r.coordinator),
	}
	if cfg.Chat.MaxHistoryTokens > 0 {
		streamOpts = append(streamOpts, streamer.WithHistoryBudget(counter, cfg.Chat.MaxHistoryTokens))
	}
	if r.client != nil {
		r.streamer = streamer.New(r.client, streamOpts...)
	}

	r.persister = persist.NewPersister(repo, theme)
	r.store.Subscribe(&chunkPrinter{out: r.out})
	r.store.Subscribe(r.coordinator)
	r.store.Subscribe(r.persister)

	return r, nil
}

func (r *Runner) defaultNotifyOptions() []notify.Option {
	opts := []notify.Option{
		notify.WithSound(notify.NewBellPlayer(os.Stderr)),
		notify.WithTitle(notify.NewTerminalTitle(os.Stderr)),
	}
	if r.cfg.Telegram.Token != "" {
		tg, err := notify.NewTelegramNotifier(r.cfg.Telegram.Token, r.cfg.Telegram.ChatID)
		if err != nil {
			r.log.Warn("Telegram notifications disabled", "error", err)
		} else {
			opts = append(opts, notify.WithNotifier(tg))
		}
	}
	return opts
}

// AskOptions shapes a single Ask.
type AskOptions struct {
	// Closed sends the message with the panel closed, so the reply is
	// counted as unread and notifications fire.
	Closed bool
	// NewSession starts a fresh session first.
	NewSession bool
}

// Ask sends prompt and streams the reply to the output.
func (r *Runner) Ask(ctx context.Context, prompt string, opts AskOptions) error {
	if r.streamer == nil {
		return fmt.Errorf("cannot send messages: %w", r.clientErr)
	}
	if opts.NewSession {
		r.store.Dispatch(chat.CreateNewSession{})
	}
	if opts.Closed {
		r.store.Dispatch(chat.CloseChat{})
	} else {
		r.store.Dispatch(chat.OpenChat{})
		r.store.Dispatch(chat.SetUserInteracted{Interacted: true})
	}

	err := r.streamer.SendMessage(ctx, prompt, r.store)
	fmt.Fprintln(r.out)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Dispatch applies a command directly, for session management.
func (r *Runner) Dispatch(cmd chat.Command) chat.State {
	return r.store.Dispatch(cmd)
}

func (r *Runner) Snapshot() chat.State {
	return r.store.Snapshot()
}

func (r *Runner) Store() *store.Store {
	return r.store
}

// Badge returns the unread badge text, or "" when there is none.
func (r *Runner) Badge() string {
	return r.coordinator.Badge()
}

// Close writes the final state and releases the storage backend.
func (r *Runner) Close() error {
	flushErr := r.persister.Flush(r.store.Snapshot())
	if err := r.storage.Close(); err != nil {
		return errors.Join(flushErr, fmt.Errorf("failed to close storage: %w", err))
	}
	return flushErr
}

// chunkPrinter writes streamed deltas as they arrive.
type chunkPrinter struct {
	out io.Writer
}

func (p *chunkPrinter) OnStateChanged(change store.Change) {
	if update, ok := change.Command.(chat.UpdateMessage); ok {
		fmt.Fprint(p.out, update.Delta)
	}
}
