package mirror

import (
	"context"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
)

const removeDelay = 200 * time.Millisecond

// Watch exports the workspace once, then watches the mirror directory and
// applies local edits until ctx is cancelled. Calls to Trigger cause another
// export.
//
// Editors often replace a file by renaming it away and creating it again, so
// Remove and Rename events only flag an article after a short delay, and only
// if the file is still missing then.
func (m *Mirror) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(m.fs.Root()); err != nil {
		return err
	}
	if _, err := m.Export(ctx); err != nil {
		m.logger.Warn("mirror: initial export failed", slog.String("error", err.Error()))
	}
	m.logger.Info("mirror: watching", slog.String("root", m.fs.Root()))

	var removeTimer *time.Timer
	var removeCh <-chan time.Time
	gone := make(map[string]struct{})

	scheduleRemove := func(name string) {
		gone[name] = struct{}{}
		if removeTimer == nil {
			removeTimer = time.NewTimer(removeDelay)
			removeCh = removeTimer.C
		} else {
			removeTimer.Reset(removeDelay)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if removeTimer != nil {
				removeTimer.Stop()
			}
			m.logger.Info("mirror: stopped")
			return nil

		case <-m.trigger:
			if _, err := m.Export(ctx); err != nil {
				m.logger.Warn("mirror: export failed", slog.String("error", err.Error()))
			}

		case <-removeCh:
			for name := range gone {
				delete(gone, name)
				touched, err := m.Vanished(name)
				if err != nil {
					m.logger.Warn("mirror: remove failed", slog.String("name", name), slog.String("error", err.Error()))
					continue
				}
				if touched {
					m.logger.Debug("mirror: removed", slog.String("name", name))
					m.emit(EventRemoved, name)
				}
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			name, isArticle := m.fs.NameOf(ev.Name)
			if !isArticle {
				continue
			}
			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				delete(gone, name)
				touched, err := m.Apply(name)
				if err != nil {
					m.logger.Warn("mirror: apply failed", slog.String("name", name), slog.String("error", err.Error()))
					continue
				}
				if touched {
					m.logger.Debug("mirror: imported", slog.String("name", name))
					m.emit(EventImported, name)
				}
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				scheduleRemove(name)
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			m.logger.Error("mirror: watcher error", slog.String("error", watchErr.Error()))
		}
	}
}
