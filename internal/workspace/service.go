// Package workspace owns one open store session and the working set of
// tracked articles. All access from the API, the MCP tools and the mirror
// watcher goes through a Service, which serializes it.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"sync"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/contentstore"
	"github.com/starford/folio/internal/drafts"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/render"
	"github.com/starford/folio/internal/store"
)

// Event kinds passed to the event callback.
const (
	EventArticleUpdated = "article.updated"
	EventArticleRemoved = "article.removed"
	EventArticlesSaved  = "articles.saved"
	EventIndexReloaded  = "index.reloaded"
)

// DefaultCommitMessage is used when Save is called without a message.
const DefaultCommitMessage = "Update articles"

var nameRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// EventCallback is called after a working-set change. name is empty for
// events that concern the whole working set.
type EventCallback func(kind, name string)

// Options configures a Service.
type Options struct {
	Drafts  drafts.Cache // optional
	Key     drafts.Key
	Logger  *slog.Logger
	OnEvent EventCallback
	// Page is the article template used when the repository has none.
	Page string
}

// Service coordinates the store and the working set.
type Service struct {
	mu      sync.Mutex
	store   *store.Store
	entries []*models.Entry
	opts    Options
	logger  *slog.Logger
}

// New creates a service over an open store. When the store is available the
// working set is populated from its index and any saved drafts are recovered.
func New(st *store.Store, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	s := &Service{store: st, opts: opts, logger: opts.Logger}
	s.resetEntries()
	if s.store.Available() && opts.Drafts != nil {
		records, err := opts.Drafts.Load(opts.Key)
		if err != nil {
			s.logger.Warn("workspace: load drafts failed", slog.String("error", err.Error()))
		} else if len(records) > 0 {
			s.entries = drafts.Recover(s.entries, records)
			s.logger.Info("workspace: recovered drafts", slog.Int("records", len(records)))
		}
	}
	return s
}

// Status summarizes the session.
type Status struct {
	Available bool              `json:"available"`
	Branch    string            `json:"branch"`
	Head      contentstore.Head `json:"head"`
	Articles  int               `json:"articles"`
	Pending   int               `json:"pending"`
}

// Status returns the current session summary.
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		Available: s.store.Available(),
		Branch:    s.store.Branch(),
		Head:      s.store.Head(),
		Articles:  len(s.entries),
	}
	for _, e := range s.entries {
		if e.Pending() {
			st.Pending++
		}
	}
	return st
}

// List returns every article of the working set without bodies.
func (s *Service) List() ([]ArticleView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.store.Available() {
		return nil, apperr.ErrUnavailable
	}
	out := make([]ArticleView, len(s.entries))
	for i, e := range s.entries {
		out[i] = viewOf(e, false)
	}
	return out, nil
}

// Get returns one article, fetching its body first when it is not loaded
// and has no local edits.
func (s *Service) Get(ctx context.Context, name string) (*ArticleView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.find(name)
	if err != nil {
		return nil, err
	}
	if !e.Loaded && !e.Modified() {
		if err := s.store.LoadBody(ctx, e); err != nil {
			return nil, err
		}
	}
	v := viewOf(e, true)
	return &v, nil
}

// CreateInput describes a new article.
type CreateInput struct {
	Name        string
	Title       string
	PublishTime string
	Tags        []string
	Source      string
}

// Validate checks the fields a new article needs before it enters the working set.
func (in CreateInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.Match(nameRe)),
	)
}

// Create adds a new, unsaved article to the working set.
func (s *Service) Create(in CreateInput) (*ArticleView, error) {
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrValidation, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.store.Available() {
		return nil, apperr.ErrUnavailable
	}
	if models.Find(s.entries, in.Name) != nil {
		return nil, fmt.Errorf("%w: article %q", apperr.ErrAlreadyExists, in.Name)
	}
	return s.create(in), nil
}

func (s *Service) create(in CreateInput) *ArticleView {
	a := models.NewArticle(in.Name)
	a.Title = in.Title
	if in.PublishTime != "" {
		a.PublishTime = in.PublishTime
	}
	if in.Tags != nil {
		a.Tags = slices.Clone(in.Tags)
	}
	a.SetSource(in.Source)
	e := models.NewEntry(a)
	s.entries = append(s.entries, e)
	s.changed(EventArticleUpdated, e.Name)
	v := viewOf(e, true)
	return &v
}

// Patch holds optional field updates. Nil fields are left unchanged.
type Patch struct {
	Title       *string
	PublishTime *string
	Tags        *[]string
	Source      *string
}

// Update applies p to the named article. The body is fetched first when it
// is not loaded yet, so the edited article can be rendered at save time.
func (s *Service) Update(ctx context.Context, name string, p Patch) (*ArticleView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.find(name)
	if err != nil {
		return nil, err
	}
	if !e.Loaded && !e.Modified() && p.Source == nil {
		if err := s.store.LoadBody(ctx, e); err != nil {
			return nil, err
		}
	}
	if p.Title != nil {
		e.Title = *p.Title
	}
	if p.PublishTime != nil {
		e.PublishTime = *p.PublishTime
	}
	if p.Tags != nil {
		e.Tags = slices.Clone(*p.Tags)
		if e.Tags == nil {
			e.Tags = []string{}
		}
	}
	if p.Source != nil {
		e.SetSource(*p.Source)
	}
	s.changed(EventArticleUpdated, e.Name)
	v := viewOf(e, true)
	return &v, nil
}

// Remove flags the named article for removal at the next save. A new
// article that was never saved leaves the working set immediately.
func (s *Service) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.find(name)
	if err != nil {
		return err
	}
	if !e.HasBaseline() {
		s.entries = slices.DeleteFunc(s.entries, func(x *models.Entry) bool { return x == e })
	} else {
		e.Removed = true
	}
	s.changed(EventArticleRemoved, name)
	return nil
}

// Restore clears the removal flag of the named article.
func (s *Service) Restore(name string) (*ArticleView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.find(name)
	if err != nil {
		return nil, err
	}
	e.Removed = false
	s.changed(EventArticleUpdated, name)
	v := viewOf(e, true)
	return &v, nil
}

// Discard reverts the named article to its last loaded or saved state.
// A never-saved article has nothing to revert to and yields ErrConflict.
func (s *Service) Discard(name string) (*ArticleView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.find(name)
	if err != nil {
		return nil, err
	}
	if !e.HasBaseline() {
		return nil, fmt.Errorf("%w: article %q was never saved", apperr.ErrConflict, name)
	}
	e.Revert()
	e.Removed = false
	s.changed(EventArticleUpdated, name)
	v := viewOf(e, true)
	return &v, nil
}

// Save commits every pending change as one commit.
func (s *Service) Save(ctx context.Context, message string) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.store.Available() {
		return Status{}, apperr.ErrUnavailable
	}
	if message == "" {
		message = DefaultCommitMessage
	}
	r, err := s.renderer(ctx)
	if err != nil {
		return Status{}, err
	}
	if err := s.store.SaveAll(ctx, s.entries, articleRenderer(r, s.entries), message); err != nil {
		return Status{}, err
	}
	s.entries = models.Prune(s.entries)
	if s.opts.Drafts != nil {
		if err := s.opts.Drafts.Clear(s.opts.Key); err != nil {
			s.logger.Warn("workspace: clear drafts failed", slog.String("error", err.Error()))
		}
	}
	s.notify(EventArticlesSaved, "")
	return Status{
		Available: true,
		Branch:    s.store.Branch(),
		Head:      s.store.Head(),
		Articles:  len(s.entries),
	}, nil
}

// Reload refreshes the index from the remote branch. Unsaved edits are
// discarded.
func (s *Service) Reload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.store.Reload(ctx)
	s.resetEntries()
	s.persistDrafts()
	s.notify(EventIndexReloaded, "")
	return err
}

// Init bootstraps an uninitialized repository. An empty page stores the
// default article template.
func (s *Service) Init(ctx context.Context, page string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if page == "" {
		page = render.DefaultPage
	}
	if err := s.store.Init(ctx, s.store.DefaultInitFiles(page), "Initialize folio"); err != nil {
		return err
	}
	s.resetEntries()
	s.notify(EventIndexReloaded, "")
	return nil
}

func (s *Service) renderer(ctx context.Context) (*render.Renderer, error) {
	page, err := s.store.Template(ctx)
	if errors.Is(err, apperr.ErrNotFound) {
		page = s.opts.Page
	} else if err != nil {
		return nil, err
	}
	return render.New(page)
}

// articleRenderer binds each source SaveAll renders to the entry it belongs
// to, so the page template sees that article's metadata.
func articleRenderer(r *render.Renderer, entries []*models.Entry) store.RenderFunc {
	var queue []*models.Entry
	for _, e := range entries {
		if e.Pending() && !e.Removed {
			queue = append(queue, e)
		}
	}
	return func(source string) (models.Rendered, error) {
		if len(queue) == 0 || queue[0].Source != source {
			return r.Render(source)
		}
		e := queue[0]
		queue = queue[1:]
		return r.RenderArticle(e.Article)
	}
}

func (s *Service) find(name string) (*models.Entry, error) {
	if !s.store.Available() {
		return nil, apperr.ErrUnavailable
	}
	e := models.Find(s.entries, name)
	if e == nil {
		return nil, fmt.Errorf("%w: article %q", apperr.ErrNotFound, name)
	}
	return e, nil
}

func (s *Service) resetEntries() {
	es, err := s.store.Entries()
	if err != nil {
		s.entries = nil
		return
	}
	s.entries = es
}

// changed persists drafts and notifies listeners after a local edit.
func (s *Service) changed(kind, name string) {
	s.persistDrafts()
	s.notify(kind, name)
}

func (s *Service) persistDrafts() {
	if s.opts.Drafts == nil {
		return
	}
	if err := s.opts.Drafts.Save(s.opts.Key, drafts.Snapshot(s.entries)); err != nil {
		s.logger.Warn("workspace: save drafts failed", slog.String("error", err.Error()))
	}
}

func (s *Service) notify(kind, name string) {
	if s.opts.OnEvent != nil {
		s.opts.OnEvent(kind, name)
	}
}
