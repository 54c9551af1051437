// Package watcher notices changes to the job data file so the browser can
// reload it. It uses fsnotify on local filesystems and falls back to stat
// polling on remote ones, when fsnotify is unavailable, or when
// JW_FORCE_POLLING is set.
package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vanderheijden86/jobwork/pkg/debug"
)

// DefaultPollInterval is the stat interval in polling mode.
const DefaultPollInterval = 2 * time.Second

var (
	ErrFileRemoved    = errors.New("watched file was removed")
	ErrPermission     = errors.New("permission denied")
	ErrAlreadyStarted = errors.New("watcher already started")
)

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounceDuration sets the quiet period before a change is reported.
func WithDebounceDuration(d time.Duration) Option {
	return func(w *Watcher) { w.debounceDuration = d }
}

// WithPollInterval sets the stat interval used in polling mode.
func WithPollInterval(d time.Duration) Option {
	return func(w *Watcher) { w.pollInterval = d }
}

// WithOnChange sets a callback run after each debounced change.
func WithOnChange(fn func()) Option {
	return func(w *Watcher) { w.onChange = fn }
}

// WithOnError sets a callback for removal, permission and backend errors.
func WithOnError(fn func(error)) Option {
	return func(w *Watcher) { w.onError = fn }
}

// WithForcePoll selects polling even where fsnotify works.
func WithForcePoll(force bool) Option {
	return func(w *Watcher) { w.forcePoll = force }
}

// Watcher reports changes to a single file.
type Watcher struct {
	path             string
	debounceDuration time.Duration
	pollInterval     time.Duration
	onChange         func()
	onError          func(error)
	forcePoll        bool

	debouncer *Debouncer
	changeCh  chan struct{}

	mu        sync.RWMutex
	started   bool
	polling   bool
	fsType    FilesystemType
	fsWatcher *fsnotify.Watcher
	cancel    context.CancelFunc
	lastMtime time.Time
	lastSize  int64
}

// NewWatcher returns a stopped watcher for path.
func NewWatcher(path string, opts ...Option) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		path:             abs,
		debounceDuration: DefaultDebounceDuration,
		pollInterval:     DefaultPollInterval,
		onChange:         func() {},
		onError:          func(error) {},
		changeCh:         make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.debouncer = NewDebouncer(w.debounceDuration)
	return w, nil
}

// Start begins watching until ctx is canceled or Stop is called. A file that
// does not exist yet is fine; its creation counts as a change.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return ErrAlreadyStarted
	}

	info, err := os.Stat(w.path)
	switch {
	case err == nil:
		w.lastMtime, w.lastSize = info.ModTime(), info.Size()
	case os.IsPermission(err):
		return ErrPermission
	default:
		w.lastMtime, w.lastSize = time.Time{}, 0
	}

	w.fsType = detectFilesystemTypeFunc(w.path)
	w.polling = w.forcePoll || envBool("JW_FORCE_POLLING") || envBool("JW_FORCE_POLL") ||
		isRemoteFilesystem(w.fsType)

	ctx, w.cancel = context.WithCancel(ctx)

	if !w.polling {
		if fsw, err := w.newFsnotify(); err == nil {
			w.fsWatcher = fsw
			go w.watchFsnotify(ctx, fsw)
		} else {
			debug.Log("watcher: fsnotify unavailable for %s: %v", w.path, err)
			w.polling = true
		}
	}
	if w.polling {
		go w.watchPolling(ctx)
	}

	debug.Log("watcher: watching %s (fs=%s, polling=%v)", w.path, w.fsType, w.polling)
	w.started = true
	return nil
}

// newFsnotify watches the parent directory, which keeps working across the
// rename-over-target writes most tools use.
func (w *Watcher) newFsnotify() (*fsnotify.Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		fsw.Close()
		return nil, err
	}
	return fsw, nil
}

// Stop stops watching. It is safe to call more than once.
// Changed() is left open so a receiver blocked on it does not spin.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.started {
		return
	}
	w.cancel()
	if w.fsWatcher != nil {
		w.fsWatcher.Close()
		w.fsWatcher = nil
	}
	w.debouncer.Cancel()
	w.started = false
}

// IsPolling reports whether the watcher stats the file instead of using
// fsnotify.
func (w *Watcher) IsPolling() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.polling
}

// IsStarted reports whether the watcher is running.
func (w *Watcher) IsStarted() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.started
}

// Changed receives once per debounced change. Changes arriving while a
// previous one is still unconsumed are merged.
func (w *Watcher) Changed() <-chan struct{} {
	return w.changeCh
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string {
	return w.path
}

// FilesystemType returns the classification made by Start.
func (w *Watcher) FilesystemType() FilesystemType {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.fsType
}

// PollInterval returns the stat interval used in polling mode.
func (w *Watcher) PollInterval() time.Duration {
	return w.pollInterval
}

func envBool(name string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}

func (w *Watcher) watchFsnotify(ctx context.Context, fsw *fsnotify.Watcher) {
	target := filepath.Base(w.path)
	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != target {
				continue
			}
			switch {
			case ev.Op.Has(fsnotify.Remove):
				w.onError(ErrFileRemoved)
			case ev.Op.Has(fsnotify.Write), ev.Op.Has(fsnotify.Create), ev.Op.Has(fsnotify.Rename):
				w.debouncer.Trigger(w.notifyChange)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.onError(err)
		}
	}
}

func (w *Watcher) watchPolling(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			changed, err := w.poll()
			if err != nil {
				w.onError(err)
			}
			if changed {
				w.debouncer.Trigger(w.notifyChange)
			}
		}
	}
}

// poll stats the file once and reports whether it changed since last time.
func (w *Watcher) poll() (bool, error) {
	info, err := os.Stat(w.path)

	w.mu.Lock()
	defer w.mu.Unlock()

	switch {
	case os.IsNotExist(err):
		// Only a file that existed can be removed; report it once.
		if w.lastMtime.IsZero() {
			return false, nil
		}
		w.lastMtime, w.lastSize = time.Time{}, 0
		return false, ErrFileRemoved
	case os.IsPermission(err):
		return false, ErrPermission
	case err != nil:
		return false, err
	}

	if !info.ModTime().After(w.lastMtime) && info.Size() == w.lastSize {
		return false, nil
	}
	w.lastMtime, w.lastSize = info.ModTime(), info.Size()
	return true, nil
}

func (w *Watcher) notifyChange() {
	if !w.IsStarted() {
		return
	}
	debug.Log("watcher: %s changed", w.path)
	w.onChange()

	select {
	case w.changeCh <- struct{}{}:
	default:
	}
}
