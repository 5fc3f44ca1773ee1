package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/codec"
	"github.com/starford/folio/internal/contentstore"
	"github.com/starford/folio/internal/models"
)

// RenderFunc renders one article source. It must not have side effects.
// SaveAll calls it once per modified, non-removed entry, in working-set order.
type RenderFunc func(source string) (models.Rendered, error)

// SaveAll commits every modified or removed entry of the working set,
// together with a fresh index built from the surviving entries in order.
// entries must be the whole working set.
//
// On any failure the store, the entries and their baselines are left as they
// were before the call. On success saved entries become unmodified and the
// index no longer lists removed entries.
func (s *Store) SaveAll(ctx context.Context, entries []*models.Entry, render RenderFunc, message string) error {
	defer s.begin("saveAll")()

	st := s.state.Load()
	if st.index == nil {
		return apperr.ErrUnavailable
	}

	var pending []*models.Entry
	for _, e := range entries {
		if e.Pending() {
			pending = append(pending, e)
		}
	}
	if len(pending) == 0 {
		return nil
	}
	if err := validate(st.index, entries, pending); err != nil {
		return err
	}

	rendered := make(map[*models.Entry]models.Rendered, len(pending))
	deltas := make([]contentstore.Delta, 0, len(pending)+1)
	for _, e := range pending {
		if e.Removed {
			continue
		}
		r, err := render(e.Source)
		if err != nil {
			return fmt.Errorf("store: render %q: %w: %w", e.Name, apperr.ErrRender, err)
		}
		rendered[e] = r
		deltas = append(deltas, contentstore.Delta{
			Path:    s.ArticlePath(e.Name),
			Content: codec.Embed(e.Source, r.Full),
		})
	}

	briefs := make([]models.Brief, 0, len(entries))
	for _, e := range entries {
		if e.Removed {
			continue
		}
		b := e.Brief()
		if r, ok := rendered[e]; ok {
			b.RenderedBrief = r.Brief
		}
		briefs = append(briefs, b)
	}
	index, err := EncodeIndex(briefs)
	if err != nil {
		return err
	}
	deltas = append(deltas, contentstore.Delta{Path: s.opts.IndexFile, Content: index})

	head, err := s.commit(ctx, st.head, deltas, message)
	if err != nil {
		return err
	}

	for e, r := range rendered {
		e.RenderedBrief = r.Brief
		e.RenderedBody = r.Body
		e.RenderedFull = r.Full
		e.Capture()
	}
	s.state.Store(&state{head: head, index: briefs})
	s.logger.Info("store: saved",
		slog.String("commit", head.Commit),
		slog.Int("written", len(rendered)),
		slog.Int("removed", len(pending)-len(rendered)))
	return nil
}

// Init bootstraps an uninitialized repository with files in one commit and
// loads the result.
func (s *Store) Init(ctx context.Context, files []contentstore.Delta, message string) error {
	defer s.begin("init")()

	st := s.state.Load()
	if st.index != nil {
		return apperr.ErrAlreadyInitialized
	}
	head, err := s.commit(ctx, st.head, files, message)
	if err != nil {
		return err
	}
	s.state.Store(&state{head: head})
	return s.load(ctx, head)
}

// DefaultInitFiles returns the marker, an empty index and, when page is not
// empty, the article template.
func (s *Store) DefaultInitFiles(page string) []contentstore.Delta {
	files := []contentstore.Delta{
		{Path: s.opts.MarkerFile, Content: ""},
		{Path: s.opts.IndexFile, Content: "[]"},
	}
	if page != "" {
		files = append(files, contentstore.Delta{Path: s.opts.TemplateFile, Content: page})
	}
	return files
}

// commit writes deltas on top of base and fast-forwards the branch.
func (s *Store) commit(ctx context.Context, base contentstore.Head, deltas []contentstore.Delta, message string) (contentstore.Head, error) {
	tree, err := s.client.CreateTree(ctx, base.Tree, deltas)
	if err != nil {
		return contentstore.Head{}, fmt.Errorf("store: create tree: %w", err)
	}
	commit, err := s.client.CreateCommit(ctx, base.Commit, tree, message)
	if err != nil {
		return contentstore.Head{}, fmt.Errorf("store: create commit: %w", err)
	}
	if err := s.client.UpdateBranchHead(ctx, s.opts.Branch, commit, false); err != nil {
		return contentstore.Head{}, fmt.Errorf("store: update branch %q: %w", s.opts.Branch, err)
	}
	return contentstore.Head{Commit: commit, Tree: tree}, nil
}

// validate checks the batch before any rendering or remote I/O.
func validate(index []models.Brief, entries, pending []*models.Entry) error {
	for _, e := range pending {
		switch {
		case e.Name == "":
			return &apperr.ValidationError{Name: e.Name, Field: "name"}
		case e.Title == "":
			return &apperr.ValidationError{Name: e.Name, Field: "title"}
		case e.PublishTime == "":
			return &apperr.ValidationError{Name: e.Name, Field: "publish time"}
		}
		if e.Removed {
			continue
		}
		if !e.Loaded {
			return &apperr.ValidationError{Name: e.Name, Field: "source", Reason: "body not loaded"}
		}
		if prior := e.PriorName(); prior != "" && prior != e.Name {
			return &apperr.ValidationError{Name: e.Name, Field: "name", Reason: fmt.Sprintf("renamed from %q", prior)}
		}
	}

	present := make(map[string]struct{}, len(entries))
	surviving := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		present[e.Name] = struct{}{}
		if baseline := e.PriorName(); baseline != "" {
			present[baseline] = struct{}{}
		}
		if e.Removed {
			continue
		}
		if _, dup := surviving[e.Name]; dup {
			return &apperr.ValidationError{Name: e.Name, Field: "name", Reason: "duplicate name"}
		}
		surviving[e.Name] = struct{}{}
	}
	for _, b := range index {
		if _, ok := present[b.Name]; !ok {
			return &apperr.ValidationError{Name: b.Name, Field: "name", Reason: "indexed article missing from save batch"}
		}
	}
	return nil
}
