package culture

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is the quiet period before a reload runs.
const DefaultDebounce = 250 * time.Millisecond

// ChangeFunc receives the culture codes affected by a reload.
type ChangeFunc func(changed []string)

// Watcher reloads a culture directory into a Registry when its files change.
// A reload that fails keeps the previous set active.
type Watcher struct {
	dir      string
	registry *Registry
	onChange ChangeFunc
	debounce time.Duration
	logger   *zap.Logger

	fsw   *fsnotify.Watcher
	mu    sync.Mutex
	timer *time.Timer
	done  chan struct{}
}

// NewWatcher creates a Watcher for dir.
func NewWatcher(dir string, registry *Registry, onChange ChangeFunc, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	return &Watcher{
		dir:      dir,
		registry: registry,
		onChange: onChange,
		debounce: DefaultDebounce,
		logger:   logger,
		fsw:      fsw,
		done:     make(chan struct{}),
	}, nil
}

// SetDebounce overrides the quiet period. Call before Run.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

// Run processes file events until ctx is cancelled. It closes the underlying
// fsnotify watcher on return.
func (w *Watcher) Run(ctx context.Context) {
	defer close(w.done)
	defer w.fsw.Close()

	w.logger.Info("watching culture directory", zap.String("dir", w.dir))
	for {
		select {
		case <-ctx.Done():
			w.stopTimer()
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Chmod) || !IsDefinitionFile(ev.Name) {
				continue
			}
			w.logger.Debug("culture file event", zap.String("file", ev.Name), zap.String("op", ev.Op.String()))
			w.schedule()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("culture watcher error", zap.Error(err))
		}
	}
}

// Done is closed when Run returns.
func (w *Watcher) Done() <-chan struct{} {
	return w.done
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.Reload)
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}

// Reload loads the directory now and swaps the registry contents.
func (w *Watcher) Reload() {
	templates, err := LoadDir(w.dir, w.logger)
	if err != nil {
		w.logger.Error("culture reload failed, keeping previous set", zap.Error(err))
		return
	}
	if len(templates) == 0 {
		w.logger.Warn("culture reload found no valid definitions, keeping previous set", zap.String("dir", w.dir))
		return
	}

	changed := w.registry.Replace(templates)
	if len(changed) == 0 {
		return
	}
	w.logger.Info("cultures reloaded", zap.Strings("changed", changed), zap.Int("total", len(templates)))
	if w.onChange != nil {
		w.onChange(changed)
	}
}
