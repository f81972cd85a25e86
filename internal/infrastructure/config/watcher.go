package config

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period after the last file event before the
// configuration is reloaded.
const DefaultDebounce = 250 * time.Millisecond

// ErrWatcherStarted is returned by Start on a running watcher.
var ErrWatcherStarted = errors.New("config: watcher already started")

// ChangeHandler receives the previous and the newly loaded configuration.
type ChangeHandler func(prev, next *Config)

// Watcher reloads the configuration file when it changes on disk.
//
// The parent directory is watched rather than the file itself, so editors
// that save by writing a temporary file and renaming it over the original
// are picked up. Bursts of events are collapsed by a debounce window. A
// file that fails to load or validate is reported through the error
// callback and the previous configuration stays current.
type Watcher struct {
	path     string
	debounce time.Duration
	handler  ChangeHandler
	fsw      *fsnotify.Watcher

	mu      sync.Mutex
	current *Config
	onError func(err error)
	started bool

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewWatcher creates a watcher for the file at path.
//
// Parameters:
//   - path: Configuration file path
//   - current: The configuration currently in effect
//   - handler: Called after each successful reload
//   - debounce: Quiet period before reloading; zero uses DefaultDebounce
func NewWatcher(path string, current *Config, handler ChangeHandler, debounce time.Duration) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving config path: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	return &Watcher{
		path:     abs,
		debounce: debounce,
		handler:  handler,
		fsw:      fsw,
		current:  current,
		done:     make(chan struct{}),
	}, nil
}

// SetOnError sets a callback for reload and watch errors.
func (w *Watcher) SetOnError(callback func(err error)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onError = callback
}

// Current returns the configuration currently in effect.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Start begins watching. The watch loop exits when ctx is cancelled or
// Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return ErrWatcherStarted
	}
	w.started = true
	w.mu.Unlock()

	if err := w.fsw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(w.path), err)
	}

	w.wg.Add(1)
	go w.loop(ctx)
	return nil
}

// Stop ends the watch loop and waits for it to exit.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		err = w.fsw.Close()
		w.wg.Wait()
	})
	return err
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()

	var timer *time.Timer
	var timerC <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.reportError(fmt.Errorf("watching config: %w", err))

		case <-timerC:
			timer = nil
			timerC = nil
			w.reload()
		}
	}
}

// reload loads the file and hands the change to the handler.
func (w *Watcher) reload() {
	next, err := Load(w.path)
	if err != nil {
		w.reportError(fmt.Errorf("reloading config: %w", err))
		return
	}

	w.mu.Lock()
	prev := w.current
	w.current = next
	w.mu.Unlock()

	if w.handler != nil {
		w.handler(prev, next)
	}
}

func (w *Watcher) reportError(err error) {
	w.mu.Lock()
	cb := w.onError
	w.mu.Unlock()
	if cb != nil {
		cb(err)
	}
}
