package collector

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/claimstore/agent/internal/logging"
)

// watcher turns create notifications in the check-in directories into
// debounced wake-ups of the collector loop. It only shortens the wait for
// the next pass; the ticker still drives collection when notifications are
// lost or unsupported (e.g. on network shares).
type watcher struct {
	fsw      *fsnotify.Watcher
	debounce time.Duration
	ignore   func(base string) bool
	logger   *logging.Logger
}

func newWatcher(dirs []string, debounce time.Duration, ignore func(string) bool, logger *logging.Logger) (*watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	for _, dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			_ = fsw.Close()
			return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}
	return &watcher{
		fsw:      fsw,
		debounce: debounce,
		ignore:   ignore,
		logger:   logger.WithComponent("watcher"),
	}, nil
}

func (w *watcher) run(ctx context.Context, wake chan<- struct{}) {
	timer := time.NewTimer(0)
	<-timer.C
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&fsnotify.Create == 0 || w.ignore(filepath.Base(ev.Name)) {
				continue
			}
			timer.Reset(w.debounce)

		case <-timer.C:
			select {
			case wake <- struct{}{}:
			default:
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watcher error", "error", err)
		}
	}
}

func (w *watcher) Close() error {
	return w.fsw.Close()
}
