// Package watch implements `add --watch`: a long-running loop that
// re-runs the add pipeline whenever a watched file's mtime changes. This
// is a supplemented feature (SPEC_FULL.md §5) — the one-shot `add` is
// still the only indexing primitive; watch mode is just a scheduler
// around repeated one-shot runs.
package watch

import (
	"context"
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// ReindexFunc re-runs the add pipeline against the given files. It is
// called once up front and again for every batch of fsnotify write
// events.
type ReindexFunc func(paths []string) error

// Run watches paths for writes and calls reindex whenever one fires,
// batching events that arrive within the same tick. It blocks until ctx
// is canceled.
func Run(ctx context.Context, paths []string, reindex ReindexFunc, logger *slog.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	for _, p := range paths {
		if err := watcher.Add(p); err != nil {
			return err
		}
	}

	if err := reindex(paths); err != nil {
		return err
	}

	pending := make(map[string]struct{})
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			pending[event.Name] = struct{}{}

			// drain any events already queued before reindexing once.
			draining := true
			for draining {
				select {
				case ev, ok := <-watcher.Events:
					if !ok {
						draining = false
						break
					}
					if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
						pending[ev.Name] = struct{}{}
					}
				default:
					draining = false
				}
			}

			batch := make([]string, 0, len(pending))
			for p := range pending {
				batch = append(batch, p)
			}
			pending = make(map[string]struct{})

			logger.Info("re-indexing changed files", "count", len(batch))
			if err := reindex(batch); err != nil {
				logger.Error("re-index failed", "error", err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("watch error", "error", err)
		}
	}
}
