package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stwalsh4118/covidroom/internal/config"
	"github.com/stwalsh4118/covidroom/internal/logger"
	"github.com/stwalsh4118/covidroom/internal/models"
)

// Delay between the last change to a file and its reload.
const defaultWatchDebounce = 500 * time.Millisecond

// SourceWatcher reloads file-backed data sources when their files change.
type SourceWatcher struct {
	sources  DataSourceService
	log      *logger.Logger
	debounce time.Duration

	// tables maps cleaned absolute paths to table names.
	tables map[string]string
	dirs   []string

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewSourceWatcher creates a watcher for the file-typed sources. URL
// sources are ignored.
func NewSourceWatcher(sources DataSourceService, log *logger.Logger) (*SourceWatcher, error) {
	w := &SourceWatcher{
		sources:  sources,
		log:      log.WithComponent("watcher"),
		debounce: defaultWatchDebounce,
		tables:   map[string]string{},
		timers:   map[string]*time.Timer{},
	}

	seenDirs := map[string]struct{}{}
	for _, ds := range sources.Sources() {
		if ds.Type != config.SourceTypeFile {
			continue
		}
		abs, err := filepath.Abs(ds.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", ds.URL, err)
		}
		w.tables[abs] = ds.TableName

		dir := filepath.Dir(abs)
		if _, ok := seenDirs[dir]; !ok {
			seenDirs[dir] = struct{}{}
			w.dirs = append(w.dirs, dir)
		}
	}
	return w, nil
}

// Run watches until ctx is cancelled. It returns nil when there is nothing
// to watch.
func (w *SourceWatcher) Run(ctx context.Context) error {
	if len(w.dirs) == 0 {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	// Watch directories, not files: editors replace files on save.
	for _, dir := range w.dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	w.log.Info("Watching data sources", map[string]interface{}{
		"dirs":   w.dirs,
		"tables": len(w.tables),
	})

	for {
		select {
		case <-ctx.Done():
			w.stopTimers()
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, ev)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Error("File watcher error", err, nil)
		}
	}
}

func (w *SourceWatcher) handle(ctx context.Context, ev fsnotify.Event) {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
		return
	}

	table, ok := w.tables[filepath.Clean(ev.Name)]
	if !ok {
		return
	}
	w.schedule(ctx, table)
}

// schedule coalesces bursts of events into one reload per table.
func (w *SourceWatcher) schedule(ctx context.Context, table string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[table]; ok {
		t.Stop()
	}
	var timer *time.Timer
	timer = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		self := timer
		w.mu.Unlock()
		w.fire(ctx, table, self)
	})
	w.timers[table] = timer
}

// fire unregisters the expired timer and reloads. A timer armed by schedule
// in the meantime stays registered so stopTimers can still cancel it.
func (w *SourceWatcher) fire(ctx context.Context, table string, fired *time.Timer) {
	w.mu.Lock()
	if w.timers[table] == fired {
		delete(w.timers, table)
	}
	w.mu.Unlock()

	w.reload(ctx, table)
}

func (w *SourceWatcher) reload(ctx context.Context, table string) {
	if ctx.Err() != nil {
		return
	}

	st, err := w.sources.Reload(ctx, table)
	switch {
	case errors.Is(err, ErrTableLoading):
		// A load is already in flight; retry once it settles.
		w.schedule(ctx, table)
	case err != nil:
		w.log.Error("Reload after file change failed", err, map[string]interface{}{
			"table": table,
		})
	case st.Status == models.StatusReady:
		w.log.Info("Reloaded data source after file change", map[string]interface{}{
			"table": table,
			"rows":  st.Rows,
		})
	}
}

func (w *SourceWatcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for table, t := range w.timers {
		t.Stop()
		delete(w.timers, table)
	}
}
