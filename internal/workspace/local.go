package workspace

import (
	"context"
	"fmt"
	"slices"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/models"
)

// Upsert applies a full article from a local source, such as a mirror file,
// creating the article when the working set does not hold it yet. Fields that
// already match leave the entry untouched. A local edit of an article
// flagged for removal restores it.
func (s *Service) Upsert(in CreateInput) (*ArticleView, bool, error) {
	if err := in.Validate(); err != nil {
		return nil, false, fmt.Errorf("%w: %v", apperr.ErrValidation, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.store.Available() {
		return nil, false, apperr.ErrUnavailable
	}
	e := models.Find(s.entries, in.Name)
	if e == nil {
		return s.create(in), true, nil
	}
	before, removed := e.Monitored(), e.Removed
	e.Removed = false
	e.Title = in.Title
	if in.PublishTime != "" {
		e.PublishTime = in.PublishTime
	}
	e.Tags = slices.Clone(in.Tags)
	if e.Tags == nil {
		e.Tags = []string{}
	}
	e.SetSource(in.Source)
	if removed || !e.Monitored().Equal(before) {
		s.changed(EventArticleUpdated, e.Name)
	}
	v := viewOf(e, true)
	return &v, false, nil
}

// Articles returns every article that is not flagged for removal with its
// source, fetching bodies that are not loaded yet. Modified articles whose
// body was never loaded are skipped.
func (s *Service) Articles(ctx context.Context) ([]ArticleView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.store.Available() {
		return nil, apperr.ErrUnavailable
	}
	out := make([]ArticleView, 0, len(s.entries))
	for _, e := range s.entries {
		if e.Removed {
			continue
		}
		if !e.Loaded {
			if e.Modified() {
				s.logger.Warn("workspace: skipping article without body", "name", e.Name)
				continue
			}
			if err := s.store.LoadBody(ctx, e); err != nil {
				return nil, err
			}
		}
		out = append(out, viewOf(e, true))
	}
	return out, nil
}
