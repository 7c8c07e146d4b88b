// Package filewatcher watches an inbox directory for new documents.
package filewatcher

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultSettle = 2 * time.Second

// InboxWatcher emits the path of a watched file once it has stopped changing
// for the settle window, so a file still being copied is not picked up early.
type InboxWatcher struct {
	extensions []string
	settle     time.Duration
	logger     *slog.Logger
}

func New(extensions []string, settle time.Duration, logger *slog.Logger) *InboxWatcher {
	if len(extensions) == 0 {
		extensions = []string{".pdf"}
	}
	if settle <= 0 {
		settle = defaultSettle
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &InboxWatcher{
		extensions: extensions,
		settle:     settle,
		logger:     logger,
	}
}

// Watch starts monitoring dir. The returned channel is closed when ctx is
// done or the underlying watcher fails.
func (w *InboxWatcher) Watch(ctx context.Context, dir string) (<-chan string, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	out := make(chan string, 64)
	go w.loop(ctx, fw, out)
	return out, nil
}

func (w *InboxWatcher) loop(ctx context.Context, fw *fsnotify.Watcher, out chan<- string) {
	ready := make(chan string)
	done := make(chan struct{})
	var mu sync.Mutex
	timers := make(map[string]*time.Timer)

	defer func() {
		close(done)
		mu.Lock()
		for _, t := range timers {
			t.Stop()
		}
		mu.Unlock()
		_ = fw.Close()
		close(out)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if !w.isWatchedExtension(event.Name) {
				continue
			}
			path := event.Name
			switch {
			case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
				mu.Lock()
				if t, ok := timers[path]; ok {
					t.Reset(w.settle)
				} else {
					timers[path] = time.AfterFunc(w.settle, func() {
						select {
						case ready <- path:
						case <-done:
						}
					})
				}
				mu.Unlock()
			case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
				mu.Lock()
				if t, ok := timers[path]; ok {
					t.Stop()
					delete(timers, path)
				}
				mu.Unlock()
			}
		case path := <-ready:
			mu.Lock()
			delete(timers, path)
			mu.Unlock()
			select {
			case out <- path:
			case <-ctx.Done():
				return
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("inbox_watch_error", "error", err)
		}
	}
}

func (w *InboxWatcher) isWatchedExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range w.extensions {
		if ext == e {
			return true
		}
	}
	return false
}
