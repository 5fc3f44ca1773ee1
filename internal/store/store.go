// Package store is the synchronization engine: it loads the remote article
// index, fetches article bodies on demand and flushes modified articles plus
// a fresh index to the remote as one fast-forward commit.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/contentstore"
	"github.com/starford/folio/internal/models"
)

// Well-known repository paths.
const (
	DefaultMarkerFile    = "simple-pages.init"
	DefaultIndexFile     = "index.json"
	DefaultTemplateFile  = "article.templ"
	DefaultArticlePrefix = "articles/"
)

// Options configures a Store.
type Options struct {
	Branch        string
	Logger        *slog.Logger
	MarkerFile    string
	IndexFile     string
	TemplateFile  string
	ArticlePrefix string
}

func (o *Options) applyDefaults() {
	if o.Branch == "" {
		o.Branch = "master"
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.MarkerFile == "" {
		o.MarkerFile = DefaultMarkerFile
	}
	if o.IndexFile == "" {
		o.IndexFile = DefaultIndexFile
	}
	if o.TemplateFile == "" {
		o.TemplateFile = DefaultTemplateFile
	}
	if o.ArticlePrefix == "" {
		o.ArticlePrefix = DefaultArticlePrefix
	}
}

// state is replaced wholesale; readers never observe a partial update.
// A nil index means the store is unavailable.
type state struct {
	head  contentstore.Head
	index []models.Brief
}

// Store is one open session against a remote branch.
//
// Reload, LoadBody, SaveAll and Init must not overlap: a second call while
// one is outstanding panics. Available, Index and Head never block.
type Store struct {
	client contentstore.Client
	opts   Options
	logger *slog.Logger

	state atomic.Pointer[state]
	busy  atomic.Pointer[string]

	tmplMu     sync.Mutex
	tmplCommit string
	tmpl       string
}

// Open resolves the branch head and makes a best-effort attempt to load the
// index. Authentication and lookup failures are returned; a repository that
// is reachable but not initialized yields a Store with Available() == false.
func Open(ctx context.Context, client contentstore.Client, opts Options) (*Store, error) {
	opts.applyDefaults()
	s := &Store{client: client, opts: opts, logger: opts.Logger}

	head, err := client.GetBranchHead(ctx, opts.Branch)
	if err != nil {
		return nil, fmt.Errorf("store: resolve branch %q: %w", opts.Branch, err)
	}
	s.state.Store(&state{head: head})

	if err := s.load(ctx, head); err != nil {
		s.logger.Warn("store: initial load failed",
			slog.String("branch", opts.Branch),
			slog.String("error", err.Error()))
	}
	return s, nil
}

// Branch returns the configured branch.
func (s *Store) Branch() string {
	return s.opts.Branch
}

// ArticlePath returns the repository path of the named article.
func (s *Store) ArticlePath(name string) string {
	return s.opts.ArticlePrefix + name
}

// Available reports whether the index was loaded successfully.
func (s *Store) Available() bool {
	return s.state.Load().index != nil
}

// Head returns the engine's belief about the branch tip.
func (s *Store) Head() contentstore.Head {
	return s.state.Load().head
}

// Index returns a copy of the current index.
func (s *Store) Index() ([]models.Brief, error) {
	st := s.state.Load()
	if st.index == nil {
		return nil, apperr.ErrUnavailable
	}
	out := make([]models.Brief, len(st.index))
	for i, b := range st.index {
		b.Tags = append([]string{}, b.Tags...)
		out[i] = b
	}
	return out, nil
}

// Entries returns freshly tracked, unmodified entries for every index brief.
// Their bodies are not loaded.
func (s *Store) Entries() ([]*models.Entry, error) {
	index, err := s.Index()
	if err != nil {
		return nil, err
	}
	out := make([]*models.Entry, len(index))
	for i, b := range index {
		out[i] = models.TrackedEntry(models.FromBrief(b))
	}
	return out, nil
}

// begin marks verb as running and returns the function that ends it.
func (s *Store) begin(verb string) func() {
	if !s.busy.CompareAndSwap(nil, &verb) {
		running := "another operation"
		if cur := s.busy.Load(); cur != nil {
			running = *cur
		}
		panic(fmt.Sprintf("store: %s called while %s is in progress", verb, running))
	}
	return func() { s.busy.Store(nil) }
}
