package artifact

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher forwards filesystem events on the artifact set so a tamper
// scan can run immediately instead of waiting for the next guardian
// tick. The mtime comparison stays the classifier; this is only an
// earlier trigger.
type Watcher struct {
	fsw      *fsnotify.Watcher
	trigger  func()
	watched  []string
	debounce time.Duration
}

// NewWatcher watches the given paths and calls trigger after each
// write burst. Paths that do not exist yet are skipped.
func NewWatcher(paths []string, trigger func()) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("artifact: create file watcher: %w", err)
	}

	var watched []string
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := fsw.Add(p); err != nil {
			fsw.Close()
			return nil, fmt.Errorf("artifact: watch %q: %w", p, err)
		}
		watched = append(watched, p)
	}

	return &Watcher{
		fsw:      fsw,
		trigger:  trigger,
		watched:  watched,
		debounce: 500 * time.Millisecond,
	}, nil
}

// Watched returns the paths actually under watch.
func (w *Watcher) Watched() []string {
	out := make([]string, len(w.watched))
	copy(out, w.watched)
	return out
}

// Run blocks until ctx is cancelled, debouncing event bursts so one
// save produces one trigger.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	var debounce *time.Timer

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Chmod) {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(w.debounce, w.trigger)
			}

		case _, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
		}
	}
}
