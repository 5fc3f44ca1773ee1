package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/starford/folio/internal/mcpserver"
	"github.com/starford/folio/internal/render"
)

// Version is reported by the MCP server.
var Version = "dev"

// RunMCP serves the MCP tools over stdio. Logs go to stderr since stdout
// carries the protocol.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := newLogger(app.config, os.Stderr)

	sess, err := app.openSession(ctx, logger, nil)
	if err != nil {
		return err
	}
	defer sess.Close()

	logger.Info("MCP server starting", "branch", app.config.Remote.Branch)
	return mcpserver.New(sess.ws, Version).ServeStdio()
}

// PrintStatus writes the session status and the index briefs as JSON.
func PrintStatus(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := newLogger(app.config, os.Stderr)

	sess, err := app.openSession(ctx, logger, nil)
	if err != nil {
		return err
	}
	defer sess.Close()

	out := struct {
		Status   any `json:"status"`
		Articles any `json:"articles,omitempty"`
	}{Status: sess.ws.Status()}
	if sess.store.Available() {
		briefs, err := sess.store.Index()
		if err != nil {
			return err
		}
		out.Articles = briefs
	}
	enc := json.NewEncoder(app.out)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// InitRepository bootstraps an uninitialized repository. An empty
// templatePath stores the default article template.
func InitRepository(ctx context.Context, templatePath string, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := newLogger(app.config, os.Stderr)

	page := render.DefaultPage
	if templatePath != "" {
		data, err := os.ReadFile(templatePath)
		if err != nil {
			return fmt.Errorf("read template: %w", err)
		}
		if _, err := render.New(string(data)); err != nil {
			return err
		}
		page = string(data)
	}

	sess, err := app.openSession(ctx, logger, nil)
	if err != nil {
		return err
	}
	defer sess.Close()

	if err := sess.ws.Init(ctx, page); err != nil {
		return fmt.Errorf("init repository: %w", err)
	}
	head := sess.store.Head()
	fmt.Fprintf(app.out, "initialized %s at %s\n", app.config.Remote.Branch, head.Commit)
	return nil
}
