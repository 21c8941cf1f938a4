// Package watch reports changes to model and texture files in a
// directory.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	"github.com/taigrr/meshview/pkg/importer"
)

// DefaultDelay is how long a burst of events must settle before it is
// reported.
const DefaultDelay = 200 * time.Millisecond

var assetExts = []string{".mtl", ".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tif", ".tiff", ".webp"}

// IsAsset reports whether name is a scene, material library or image file.
func IsAsset(name string) bool {
	if importer.Supported(name) {
		return true
	}
	return slices.Contains(assetExts, strings.ToLower(filepath.Ext(name)))
}

// Watcher coalesces file events in one directory into batches of changed
// paths.
type Watcher struct {
	fs      *fsnotify.Watcher
	logger  *log.Logger
	delay   time.Duration
	filter  func(string) bool
	changes chan []string
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger for watcher errors.
func WithLogger(l *log.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// WithDelay sets the settle time of a batch.
func WithDelay(d time.Duration) Option {
	return func(w *Watcher) { w.delay = d }
}

// WithFilter replaces IsAsset as the file filter.
func WithFilter(f func(string) bool) Option {
	return func(w *Watcher) { w.filter = f }
}

// New watches dir (not recursively).
func New(dir string, opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	w := &Watcher{
		fs:      fsw,
		logger:  log.Default(),
		delay:   DefaultDelay,
		filter:  IsAsset,
		changes: make(chan []string, 1),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Changes delivers sorted batches of changed paths. It is closed when Run
// returns.
func (w *Watcher) Changes() <-chan []string {
	return w.changes
}

// Run forwards batches until ctx is done, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.changes)
	defer w.fs.Close()

	timer := time.NewTimer(w.delay)
	timer.Stop()
	pending := map[string]struct{}{}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if !w.filter(ev.Name) {
				continue
			}
			w.logger.Debug("file changed", "path", ev.Name, "op", ev.Op)
			pending[ev.Name] = struct{}{}
			timer.Reset(w.delay)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watch", "err", err)

		case <-timer.C:
			batch := make([]string, 0, len(pending))
			for p := range pending {
				batch = append(batch, p)
			}
			slices.Sort(batch)
			clear(pending)
			select {
			case w.changes <- batch:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}
