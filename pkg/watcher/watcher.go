// Package watcher reports changes to a single file, coalescing bursts of
// events into one notification.
//
// The containing directory is watched rather than the file itself so editors
// that save by renaming a temp file over the original are seen. On remote
// filesystems, or when fsnotify cannot be set up, the watcher polls the
// file's size and modification time instead.
package watcher

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	DefaultDebounce     = 200 * time.Millisecond
	DefaultPollInterval = 2 * time.Second
)

// Watcher watches one file.
type Watcher struct {
	path         string
	debounce     time.Duration
	pollInterval time.Duration
	forcePoll    bool

	fsw     *fsnotify.Watcher
	polling bool
	fsType  FilesystemType

	changed chan struct{}
	stop    chan struct{}
	done    chan struct{}

	mu      sync.Mutex
	started bool
	stopped bool
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounceDuration sets the quiet period that must follow the last event
// before a change is reported.
func WithDebounceDuration(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// WithPollInterval sets the polling period used in polling mode.
func WithPollInterval(d time.Duration) Option {
	return func(w *Watcher) { w.pollInterval = d }
}

// WithPolling forces polling mode.
func WithPolling(on bool) Option {
	return func(w *Watcher) { w.forcePoll = on }
}

// NewWatcher prepares a watcher for path. Nothing is watched until Start.
func NewWatcher(path string, opts ...Option) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	w := &Watcher{
		path:         abs,
		debounce:     DefaultDebounce,
		pollInterval: DefaultPollInterval,
		changed:      make(chan struct{}, 1),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.fsType = DetectFilesystemType(abs)
	return w, nil
}

// Changed delivers one value per coalesced burst of changes. A pending value
// is not duplicated, so a slow reader sees at most one queued change.
func (w *Watcher) Changed() <-chan struct{} {
	return w.changed
}

// Polling reports whether the watcher polls instead of using fsnotify.
func (w *Watcher) Polling() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.polling
}

// FilesystemType returns the detected filesystem type of the watched file.
func (w *Watcher) FilesystemType() FilesystemType {
	return w.fsType
}

// Start begins watching. It is idempotent.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return nil
	}
	if w.stopped {
		return fmt.Errorf("watcher for %s already stopped", w.path)
	}
	w.started = true

	if w.forcePoll || w.fsType.IsRemote() {
		w.polling = true
		go w.pollLoop()
		return nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err == nil {
		err = fsw.Add(filepath.Dir(w.path))
		if err != nil {
			fsw.Close()
		}
	}
	if err != nil {
		log.Printf("warning: fsnotify unavailable for %s, polling instead: %v", w.path, err)
		w.polling = true
		go w.pollLoop()
		return nil
	}
	w.fsw = fsw
	go w.eventLoop()
	return nil
}

// Stop ends watching and waits for the loop to exit. It is idempotent.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	started := w.started
	w.mu.Unlock()

	close(w.stop)
	if w.fsw != nil {
		w.fsw.Close()
	}
	if started {
		<-w.done
	}
}

func (w *Watcher) notify() {
	select {
	case w.changed <- struct{}{}:
	default:
	}
}

func (w *Watcher) eventLoop() {
	defer close(w.done)

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-w.stop:
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			w.notify()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Printf("warning: watcher error on %s: %v", w.path, err)
		}
	}
}

type fileStamp struct {
	size    int64
	modTime time.Time
	exists  bool
}

func stampOf(path string) fileStamp {
	info, err := os.Stat(path)
	if err != nil {
		return fileStamp{}
	}
	return fileStamp{size: info.Size(), modTime: info.ModTime(), exists: true}
}

func (w *Watcher) pollLoop() {
	defer close(w.done)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	last := stampOf(w.path)
	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			if cur := stampOf(w.path); cur != last {
				last = cur
				w.notify()
			}
		}
	}
}
