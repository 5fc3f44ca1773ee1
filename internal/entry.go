// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/folio/internal/api"
	"github.com/starford/folio/internal/mirror"
	"github.com/starford/folio/internal/sse"
	"github.com/starford/folio/internal/storage"
	"github.com/starford/folio/internal/workspace"
)

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger := newLogger(cfg, os.Stdout)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("repository", cfg.Remote.OwnerName()+"/"+cfg.Remote.Repo),
		slog.String("branch", cfg.Remote.Branch),
		slog.Bool("memory_store", app.memory),
		slog.String("drafts_path", cfg.Drafts.Path),
		slog.String("mirror_path", cfg.Mirror.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// SSE broker.
	broker := sse.NewBroker(2*time.Second, 15*time.Second)
	defer broker.Close()

	var mir *mirror.Mirror
	onEvent := func(kind, name string) {
		broker.PublishArticleEvent(kind, name)
		if mir != nil && (kind == workspace.EventArticlesSaved || kind == workspace.EventIndexReloaded) {
			mir.Trigger()
		}
	}

	sess, err := app.openSession(ctx, logger, onEvent)
	if err != nil {
		return err
	}
	defer sess.Close()

	if !sess.store.Available() {
		logger.Warn("Repository is not initialized; run `folio init`",
			slog.String("branch", cfg.Remote.Branch))
	}

	if cfg.Mirror.Enabled() {
		fs, err := storage.NewFS(cfg.Mirror.Path)
		if err != nil {
			return fmt.Errorf("init mirror: %w", err)
		}
		mir = mirror.New(fs, sess.ws, logger, func(kind, name string) {
			logger.Info("Mirror change applied", slog.String("kind", kind), slog.String("name", name))
			eventType := sse.MirrorImported
			if kind == mirror.EventRemoved {
				eventType = sse.MirrorRemoved
			}
			broker.Publish(sse.Event{Type: eventType, Data: map[string]string{"name": name}})
		})
	}

	apiRouter := api.NewRouter(sess.ws, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !sess.store.Available() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	g, gCtx := errgroup.WithContext(runCtx)

	if mir != nil {
		g.Go(func() error {
			if !cfg.Mirror.Watch {
				if _, err := mir.Export(gCtx); err != nil {
					logger.Warn("mirror export failed", slog.String("error", err.Error()))
				}
				return nil
			}
			if err := mir.Watch(gCtx); err != nil {
				logger.Warn("mirror watcher failed", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")
		stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}
