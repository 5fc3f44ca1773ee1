package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/contentstore"
	"github.com/starford/folio/internal/models"
)

// Reload refreshes the branch head and reloads the index from it. The old
// index is discarded first, so a failed reload leaves the store unavailable
// rather than serving stale data.
func (s *Store) Reload(ctx context.Context) error {
	defer s.begin("reload")()

	prev := s.state.Load()
	s.state.Store(&state{head: prev.head})

	head, err := s.client.GetBranchHead(ctx, s.opts.Branch)
	if err != nil {
		return fmt.Errorf("store: resolve branch %q: %w", s.opts.Branch, err)
	}
	s.state.Store(&state{head: head})
	return s.load(ctx, head)
}

// load reads the marker and the index at head and installs the index.
func (s *Store) load(ctx context.Context, head contentstore.Head) error {
	if _, err := s.client.ReadFile(ctx, head.Commit, s.opts.MarkerFile); err != nil {
		return fmt.Errorf("store: read marker %s: %w", s.opts.MarkerFile, err)
	}
	data, err := s.client.ReadFile(ctx, head.Commit, s.opts.IndexFile)
	if err != nil {
		return fmt.Errorf("store: read index %s: %w", s.opts.IndexFile, err)
	}
	index, err := ParseIndex(data)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	s.state.Store(&state{head: head, index: index})
	s.logger.Debug("store: index loaded",
		slog.String("commit", head.Commit),
		slog.Int("articles", len(index)))
	return nil
}

// ParseIndex decodes an index file. The content must be a JSON array of
// objects, each with a non-empty unique name.
func ParseIndex(data []byte) ([]models.Brief, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("%w: not a JSON array", apperr.ErrInvalidIndex)
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidIndex, err)
	}
	out := make([]models.Brief, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for i, r := range raw {
		item := bytes.TrimSpace(r)
		if len(item) == 0 || item[0] != '{' {
			return nil, fmt.Errorf("%w: entry %d is not an object", apperr.ErrInvalidIndex, i)
		}
		var b models.Brief
		if err := json.Unmarshal(item, &b); err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", apperr.ErrInvalidIndex, i, err)
		}
		if b.Name == "" {
			return nil, fmt.Errorf("%w: entry %d has no name", apperr.ErrInvalidIndex, i)
		}
		if _, dup := seen[b.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate name %q", apperr.ErrInvalidIndex, b.Name)
		}
		seen[b.Name] = struct{}{}
		if b.Tags == nil {
			b.Tags = []string{}
		}
		out = append(out, b)
	}
	return out, nil
}

// EncodeIndex serializes briefs as the index file content.
func EncodeIndex(briefs []models.Brief) (string, error) {
	if briefs == nil {
		briefs = []models.Brief{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(briefs); err != nil {
		return "", fmt.Errorf("store: encode index: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
