// Package testutil provides shared test helpers for seeding in-memory
// repositories, injecting remote faults and opening draft databases.
package testutil

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/folio/internal/codec"
	"github.com/starford/folio/internal/contentstore"
	"github.com/starford/folio/internal/models"
)

// Branch is the branch used by seeded repositories.
const Branch = "master"

// SeedArticle is one article written into a seeded repository.
type SeedArticle struct {
	Name   string
	Title  string
	Tags   []string
	Source string
}

// Logger returns a logger that only reports errors.
func Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// EmptyRepo returns a repository whose branch exists but holds no files.
func EmptyRepo(t *testing.T) *contentstore.Memory {
	t.Helper()
	return contentstore.NewMemory(Branch)
}

// SeedRepo returns an initialized repository holding the given articles.
func SeedRepo(t *testing.T, articles ...SeedArticle) *contentstore.Memory {
	t.Helper()
	m := contentstore.NewMemory(Branch)
	files := map[string]string{
		"simple-pages.init": "",
		"index.json":        IndexJSON(t, articles...),
	}
	for _, a := range articles {
		files["articles/"+a.Name] = codec.Embed(a.Source, "<p>"+a.Name+"</p>")
	}
	if _, err := m.Write(context.Background(), Branch, files, "seed"); err != nil {
		t.Fatalf("seed repo: %v", err)
	}
	return m
}

// IndexJSON encodes the briefs of articles as an index file.
func IndexJSON(t *testing.T, articles ...SeedArticle) string {
	t.Helper()
	briefs := make([]models.Brief, 0, len(articles))
	for _, a := range articles {
		tags := a.Tags
		if tags == nil {
			tags = []string{}
		}
		briefs = append(briefs, models.Brief{
			Name:          a.Name,
			Title:         a.Title,
			PublishTime:   "2024-01-01T00:00:00.000Z",
			Tags:          tags,
			RenderedBrief: "<p>" + a.Name + "</p>",
		})
	}
	data, err := json.Marshal(briefs)
	if err != nil {
		t.Fatalf("encode index: %v", err)
	}
	return string(data)
}

// TempDBPath returns a path for a temporary SQLite database.
func TempDBPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "folio-test.db")
}

// Faulty wraps a Client and lets tests intercept each call. A hook that
// returns a non-nil error fails the call without reaching the wrapped client.
type Faulty struct {
	contentstore.Client

	OnReadFile     func(path string) error
	OnCreateTree   func(deltas []contentstore.Delta) error
	OnCreateCommit func() error
	OnUpdateHead   func() error

	Calls map[string]int
}

// NewFaulty wraps c.
func NewFaulty(c contentstore.Client) *Faulty {
	return &Faulty{Client: c, Calls: make(map[string]int)}
}

func (f *Faulty) ReadFile(ctx context.Context, commit, path string) ([]byte, error) {
	f.Calls["ReadFile"]++
	if f.OnReadFile != nil {
		if err := f.OnReadFile(path); err != nil {
			return nil, err
		}
	}
	return f.Client.ReadFile(ctx, commit, path)
}

func (f *Faulty) CreateTree(ctx context.Context, baseTree string, deltas []contentstore.Delta) (string, error) {
	f.Calls["CreateTree"]++
	if f.OnCreateTree != nil {
		if err := f.OnCreateTree(deltas); err != nil {
			return "", err
		}
	}
	return f.Client.CreateTree(ctx, baseTree, deltas)
}

func (f *Faulty) CreateCommit(ctx context.Context, parent, tree, message string) (string, error) {
	f.Calls["CreateCommit"]++
	if f.OnCreateCommit != nil {
		if err := f.OnCreateCommit(); err != nil {
			return "", err
		}
	}
	return f.Client.CreateCommit(ctx, parent, tree, message)
}

func (f *Faulty) UpdateBranchHead(ctx context.Context, branch, commit string, force bool) error {
	f.Calls["UpdateBranchHead"]++
	if f.OnUpdateHead != nil {
		if err := f.OnUpdateHead(); err != nil {
			return err
		}
	}
	return f.Client.UpdateBranchHead(ctx, branch, commit, force)
}
