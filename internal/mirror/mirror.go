// Package mirror keeps a local directory of article files in step with the
// workspace. Export writes every article as <name>.md; Watch applies local
// edits back to the workspace and re-exports when asked to.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/checksum"
	"github.com/starford/folio/internal/parser"
	"github.com/starford/folio/internal/storage"
	"github.com/starford/folio/internal/workspace"
)

// Event kinds passed to the event callback.
const (
	EventImported = "imported"
	EventRemoved  = "removed"
)

// EventCallback is called after a local file change was applied.
type EventCallback func(kind, name string)

// Mirror binds a mirror directory to a workspace.
type Mirror struct {
	fs     *storage.FS
	ws     *workspace.Service
	logger *slog.Logger
	cb     EventCallback

	mu      sync.Mutex
	written map[string]string // name -> checksum of the content last written or applied

	trigger chan struct{}
}

// New creates a mirror over fs. cb may be nil.
func New(fs *storage.FS, ws *workspace.Service, logger *slog.Logger, cb EventCallback) *Mirror {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mirror{
		fs:      fs,
		ws:      ws,
		logger:  logger,
		cb:      cb,
		written: make(map[string]string),
		trigger: make(chan struct{}, 1),
	}
}

// Trigger asks a running Watch loop to export again. It never blocks.
func (m *Mirror) Trigger() {
	select {
	case m.trigger <- struct{}{}:
	default:
	}
}

// Export writes every article of the workspace that is not flagged for
// removal. Files whose content is already current are left alone. Files the
// mirror wrote for articles that no longer exist in the workspace are
// deleted unless they were edited since. It returns the number of files
// written.
func (m *Mirror) Export(ctx context.Context) (int, error) {
	articles, err := m.ws.Articles(ctx)
	if err != nil {
		return 0, fmt.Errorf("mirror: export: %w", err)
	}
	n := 0
	for _, a := range articles {
		data, err := parser.Format(a.Title, a.PublishTime, a.Tags, *a.Source)
		if err != nil {
			return n, err
		}
		sum := checksum.Sum(data)
		if existing, err := m.fs.Read(a.Name); err == nil && checksum.Sum(existing) == sum {
			m.remember(a.Name, sum)
			continue
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			return n, fmt.Errorf("mirror: export: %w", err)
		}
		m.remember(a.Name, sum)
		if err := m.fs.Write(a.Name, data); err != nil {
			m.forget(a.Name)
			return n, fmt.Errorf("mirror: export: %w", err)
		}
		n++
	}
	deleted, err := m.prune()
	if err != nil {
		return n, err
	}
	m.logger.Debug("mirror: exported",
		slog.Int("written", n),
		slog.Int("deleted", deleted),
		slog.Int("articles", len(articles)))
	return n, nil
}

// prune deletes unedited files of articles that left the working set.
// Articles pending removal keep their file so a restore finds it.
func (m *Mirror) prune() (int, error) {
	views, err := m.ws.List()
	if err != nil {
		return 0, fmt.Errorf("mirror: prune: %w", err)
	}
	present := make(map[string]bool, len(views))
	for _, v := range views {
		present[v.Name] = true
	}

	m.mu.Lock()
	stale := make(map[string]string)
	for name, sum := range m.written {
		if !present[name] {
			stale[name] = sum
		}
	}
	m.mu.Unlock()

	deleted := 0
	for name, sum := range stale {
		data, err := m.fs.Read(name)
		if errors.Is(err, os.ErrNotExist) {
			m.forget(name)
			continue
		} else if err != nil {
			return deleted, fmt.Errorf("mirror: prune: %w", err)
		}
		if checksum.Sum(data) != sum {
			continue
		}
		m.forget(name)
		if err := m.fs.Delete(name); err != nil && !errors.Is(err, os.ErrNotExist) {
			return deleted, fmt.Errorf("mirror: prune: %w", err)
		}
		deleted++
	}
	return deleted, nil
}

// Apply reads the mirror file of name and applies it to the workspace
// unless its content is what the mirror last wrote or applied. It reports
// whether the workspace was touched.
func (m *Mirror) Apply(name string) (bool, error) {
	data, err := m.fs.Read(name)
	if err != nil {
		return false, err
	}
	sum := checksum.Sum(data)
	if m.known(name, sum) {
		return false, nil
	}
	res, err := parser.Parse(data)
	if err != nil {
		return false, fmt.Errorf("mirror: parse %s: %w", name, err)
	}
	if _, _, err := m.ws.Upsert(workspace.CreateInput{
		Name:        name,
		Title:       res.Title,
		PublishTime: res.PublishTime,
		Tags:        res.Tags,
		Source:      res.Source,
	}); err != nil {
		return false, fmt.Errorf("mirror: apply %s: %w", name, err)
	}
	m.remember(name, sum)
	return true, nil
}

// Vanished flags name for removal when its mirror file no longer exists. It
// reports whether the workspace was touched.
func (m *Mirror) Vanished(name string) (bool, error) {
	if _, err := m.fs.Read(name); err == nil {
		return false, nil
	}
	m.forget(name)
	if err := m.ws.Remove(name); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (m *Mirror) remember(name, sum string) {
	m.mu.Lock()
	m.written[name] = sum
	m.mu.Unlock()
}

func (m *Mirror) forget(name string) {
	m.mu.Lock()
	delete(m.written, name)
	m.mu.Unlock()
}

func (m *Mirror) known(name, sum string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.written[name] == sum
}

func (m *Mirror) emit(kind, name string) {
	if m.cb != nil {
		m.cb(kind, name)
	}
}
