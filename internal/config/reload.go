package config

import (
	"context"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Reloader watches a debug config file for writes and re-parses it,
// handing the caller a fresh Config to act on. Grounded on
// 99souls-ariadne's HotReloadSystem.WatchConfigChanges: a single
// fsnotify.Watcher on the containing directory, filtered to the exact
// file path, debounced so an editor's multi-write save only triggers
// one reload.
type Reloader struct {
	path   string
	args   []string
	logger *log.Logger
}

// NewReloader builds a Reloader for the debug file at path. args is the
// original CLI argument slice, reparsed on every reload; as in Parse,
// the debug file's values are applied on top of the flags.
func NewReloader(path string, args []string, logger *log.Logger) *Reloader {
	if logger == nil {
		logger = log.Default()
	}
	return &Reloader{path: path, args: args, logger: logger}
}

// Watch starts a watcher goroutine that runs until ctx is cancelled,
// sending a freshly reloaded Config on the returned channel after each
// debounced write to the debug file. Watch itself returns at once; the
// channel is closed when the watcher goroutine exits.
func (r *Reloader) Watch(ctx context.Context) (<-chan *Config, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(r.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}

	out := make(chan *Config, 1)
	go func() {
		defer watcher.Close()
		defer close(out)

		var pending *time.Timer
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Name != r.path || ev.Op&fsnotify.Write == 0 {
					continue
				}
				if pending != nil {
					pending.Stop()
				}
				pending = time.AfterFunc(ReloadInterval, func() {
					cfg, err := Parse(r.args)
					if err != nil {
						r.logger.Printf("config: reload failed: %v", err)
						return
					}
					select {
					case out <- cfg:
					case <-ctx.Done():
					}
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				r.logger.Printf("config: watcher error: %v", err)
			}
		}
	}()

	return out, nil
}
