package internal

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/starford/folio/internal/contentstore"
	"github.com/starford/folio/internal/drafts"
	"github.com/starford/folio/internal/store"
	"github.com/starford/folio/internal/workspace"
)

// session is one opened store with its workspace.
type session struct {
	store  *store.Store
	ws     *workspace.Service
	drafts *drafts.DB
}

func (s *session) Close() {
	if s.drafts != nil {
		_ = s.drafts.Close()
	}
}

func newApplication(opts []Option) (*application, error) {
	app := &application{out: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

func newLogger(cfg *Config, w io.Writer) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// contentClient returns the configured client: an explicit one, an
// in-memory repository, or the GitHub REST client.
func (a *application) contentClient() (contentstore.Client, error) {
	switch {
	case a.client != nil:
		return a.client, nil
	case a.memory:
		return contentstore.NewMemory(a.config.Remote.Branch), nil
	}
	if err := a.config.Remote.Validate(); err != nil {
		return nil, fmt.Errorf("remote config: %w", err)
	}
	return contentstore.NewGitHub(a.config.Remote.GitHubOptions())
}

// openSession opens the store and the workspace on top of it. onEvent may be nil.
func (a *application) openSession(ctx context.Context, logger *slog.Logger, onEvent workspace.EventCallback) (*session, error) {
	cfg := a.config
	client, err := a.contentClient()
	if err != nil {
		return nil, err
	}
	if cfg.Remote.Branch == "" {
		cfg.Remote.Branch = "master"
	}

	st, err := store.Open(ctx, client, store.Options{Branch: cfg.Remote.Branch, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	sess := &session{store: st}
	wsOpts := workspace.Options{
		Key:     cfg.Remote.DraftKey(),
		Logger:  logger,
		OnEvent: onEvent,
	}
	if cfg.Drafts.Enabled() && !a.memory {
		db, err := drafts.Open(cfg.Drafts.Path)
		if err != nil {
			return nil, fmt.Errorf("open drafts: %w", err)
		}
		sess.drafts = db
		wsOpts.Drafts = db
	}
	sess.ws = workspace.New(st, wsOpts)

	if a.memory && !st.Available() {
		if err := sess.ws.Init(ctx, ""); err != nil {
			sess.Close()
			return nil, fmt.Errorf("init memory store: %w", err)
		}
	}
	return sess, nil
}
