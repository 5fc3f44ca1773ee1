package store

import (
	"context"
	"fmt"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/codec"
	"github.com/starford/folio/internal/models"
)

// LoadBody fetches the article file for e, extracts its embedded source and
// folds it into e's baseline. It panics if e has unsaved modifications:
// loading would overwrite them.
func (s *Store) LoadBody(ctx context.Context, e *models.Entry) error {
	defer s.begin("loadBody")()

	st := s.state.Load()
	if st.index == nil {
		return apperr.ErrUnavailable
	}
	if e.Modified() {
		panic(fmt.Sprintf("store: loadBody over unsaved edits of %q", e.Name))
	}

	data, err := s.client.ReadFile(ctx, st.head.Commit, s.ArticlePath(e.Name))
	if err != nil {
		return fmt.Errorf("store: read article %q: %w", e.Name, err)
	}
	source, err := codec.Extract(data)
	if err != nil {
		return fmt.Errorf("store: article %q: %w", e.Name, err)
	}
	e.SetSource(source)
	e.CaptureSource()
	return nil
}

// Template returns the article page template stored in the repository. The
// content is cached per head commit.
func (s *Store) Template(ctx context.Context) (string, error) {
	head := s.Head()

	s.tmplMu.Lock()
	defer s.tmplMu.Unlock()
	if s.tmplCommit != "" && s.tmplCommit == head.Commit {
		return s.tmpl, nil
	}
	data, err := s.client.ReadFile(ctx, head.Commit, s.opts.TemplateFile)
	if err != nil {
		return "", fmt.Errorf("store: read template %s: %w", s.opts.TemplateFile, err)
	}
	s.tmplCommit = head.Commit
	s.tmpl = string(data)
	return s.tmpl, nil
}
