// This file implements the BackgroundWorker, which reloads the tree document
// off the UI thread whenever it changes on disk.
package ui

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"runtime/debug"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vanderheijden86/checktree/pkg/loader"
	"github.com/vanderheijden86/checktree/pkg/model"
	"github.com/vanderheijden86/checktree/pkg/watcher"
)

// WorkerState represents the current state of the background worker.
type WorkerState int

const (
	// WorkerIdle means the worker is waiting for file changes.
	WorkerIdle WorkerState = iota
	// WorkerProcessing means the worker is reloading the document.
	WorkerProcessing
	// WorkerStopped means the worker has been stopped.
	WorkerStopped
)

func (s WorkerState) String() string {
	switch s {
	case WorkerIdle:
		return "idle"
	case WorkerProcessing:
		return "processing"
	case WorkerStopped:
		return "stopped"
	}
	return fmt.Sprintf("WorkerState(%d)", int(s))
}

// WorkerError wraps errors with phase and retry context.
type WorkerError struct {
	Phase   string    // "read" or "parse"
	Cause   error     // The underlying error
	Time    time.Time // When the error occurred
	Retries int       // Consecutive failures including this one
}

func (e WorkerError) Error() string {
	return fmt.Sprintf("%s failed: %v (retries: %d)", e.Phase, e.Cause, e.Retries)
}

func (e WorkerError) Unwrap() error {
	return e.Cause
}

// Sender delivers messages to the running program. *tea.Program satisfies it.
type Sender interface {
	Send(msg tea.Msg)
}

// BackgroundWorker owns the file watcher, coalesces bursts of changes and
// parses the document outside the bubbletea event loop. Parsed trees are
// delivered as TreeReloadedMsg; the model applies them on its own thread.
type BackgroundWorker struct {
	dataPath      string
	debounceDelay time.Duration

	mu       sync.RWMutex
	state    WorkerState
	dirty    bool // A change arrived while processing
	tree     model.Tree
	started  bool
	lastHash string // Content hash of the last delivered tree

	lastError  *WorkerError
	errorCount int

	watcher *watcher.Watcher
	sender  Sender

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// WorkerConfig configures the BackgroundWorker.
type WorkerConfig struct {
	DataPath      string
	DebounceDelay time.Duration
	PollInterval  time.Duration
	ForcePoll     bool
	Sender        Sender
}

// NewBackgroundWorker creates a worker for cfg.DataPath. An empty path yields
// a worker that never reloads.
func NewBackgroundWorker(cfg WorkerConfig) (*BackgroundWorker, error) {
	ctx, cancel := context.WithCancel(context.Background())

	if cfg.DebounceDelay == 0 {
		cfg.DebounceDelay = 200 * time.Millisecond
	}

	w := &BackgroundWorker{
		dataPath:      cfg.DataPath,
		debounceDelay: cfg.DebounceDelay,
		sender:        cfg.Sender,
		state:         WorkerIdle,
		ctx:           ctx,
		cancel:        cancel,
		done:          make(chan struct{}),
	}

	if cfg.DataPath != "" {
		opts := []watcher.Option{watcher.WithDebounceDuration(cfg.DebounceDelay)}
		if cfg.PollInterval > 0 {
			opts = append(opts, watcher.WithPollInterval(cfg.PollInterval))
		}
		if cfg.ForcePoll {
			opts = append(opts, watcher.WithPolling(true))
		}
		fw, err := watcher.NewWatcher(cfg.DataPath, opts...)
		if err != nil {
			cancel()
			return nil, err
		}
		w.watcher = fw
	}

	return w, nil
}

// SetSender sets where reload messages go. It must be called before Start
// when the program is created after the worker.
func (w *BackgroundWorker) SetSender(s Sender) {
	w.mu.Lock()
	w.sender = s
	w.mu.Unlock()
}

// Start begins watching for file changes. It is idempotent.
func (w *BackgroundWorker) Start() error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	w.started = true
	w.mu.Unlock()

	if w.watcher == nil {
		close(w.done)
		return nil
	}
	if err := w.watcher.Start(); err != nil {
		return err
	}
	if w.watcher.Polling() {
		log.Printf("warning: watching %s by polling (%s filesystem)", w.dataPath, w.watcher.FilesystemType())
	}
	go w.processLoop()
	return nil
}

// Stop halts the worker and its watcher. It is idempotent.
func (w *BackgroundWorker) Stop() {
	w.mu.Lock()
	if w.state == WorkerStopped {
		w.mu.Unlock()
		return
	}
	w.state = WorkerStopped
	wasStarted := w.started
	w.mu.Unlock()

	w.cancel()
	if w.watcher != nil {
		w.watcher.Stop()
	}

	if wasStarted {
		select {
		case <-w.done:
		case <-time.After(2 * time.Second):
		}
	}
}

// TriggerRefresh reloads the document now. A refresh requested while one is
// running is coalesced into a single follow-up run.
func (w *BackgroundWorker) TriggerRefresh() {
	w.mu.Lock()
	switch w.state {
	case WorkerStopped:
		w.mu.Unlock()
		return
	case WorkerProcessing:
		w.dirty = true
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()

	go w.process()
}

// Tree returns the last tree the worker delivered (may be nil).
func (w *BackgroundWorker) Tree() model.Tree {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.tree
}

// State returns the current worker state.
func (w *BackgroundWorker) State() WorkerState {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

func (w *BackgroundWorker) processLoop() {
	defer close(w.done)
	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.watcher.Changed():
			w.process()
		}
	}
}

func (w *BackgroundWorker) process() {
	w.mu.Lock()
	if w.state != WorkerIdle {
		if w.state == WorkerProcessing {
			w.dirty = true
		}
		w.mu.Unlock()
		return
	}
	w.state = WorkerProcessing
	w.dirty = false
	w.mu.Unlock()

	t, hash := w.reload()

	w.mu.Lock()
	if w.state == WorkerStopped {
		w.mu.Unlock()
		return
	}
	if t != nil {
		w.tree = t
	}
	wasDirty := w.dirty
	w.state = WorkerIdle
	sender := w.sender
	w.mu.Unlock()

	if sender != nil && t != nil {
		sender.Send(TreeReloadedMsg{Tree: t, Hash: hash})
	}

	if wasDirty {
		go w.process()
	}
}

// safeCompute runs fn and converts an error or a panic into a WorkerError.
func (w *BackgroundWorker) safeCompute(phase string, fn func() error) *WorkerError {
	var result *WorkerError
	func() {
		defer func() {
			if r := recover(); r != nil {
				result = &WorkerError{
					Phase: phase,
					Cause: fmt.Errorf("panic: %v\n%s", r, debug.Stack()),
					Time:  time.Now(),
				}
			}
		}()
		if err := fn(); err != nil {
			result = &WorkerError{Phase: phase, Cause: err, Time: time.Now()}
		}
	}()
	return result
}

func (w *BackgroundWorker) recordError(err *WorkerError) {
	w.mu.Lock()
	w.lastError = err
	if err != nil {
		w.errorCount++
		err.Retries = w.errorCount
	} else {
		w.errorCount = 0
	}
	w.mu.Unlock()
}

// LastError returns the most recent error (nil if the last reload succeeded).
func (w *BackgroundWorker) LastError() *WorkerError {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastError
}

func (w *BackgroundWorker) fail(err *WorkerError) {
	log.Printf("warning: reload %s: %v", w.dataPath, err)
	w.recordError(err)
	w.mu.RLock()
	sender := w.sender
	w.mu.RUnlock()
	if sender != nil {
		sender.Send(ReloadErrorMsg{Err: err, Recoverable: true})
	}
}

// reload reads and parses the document. It returns a nil tree when the path
// is empty, the content is unchanged or loading failed.
func (w *BackgroundWorker) reload() (model.Tree, string) {
	if w.dataPath == "" {
		return nil, ""
	}
	start := time.Now()

	var data []byte
	if werr := w.safeCompute("read", func() error {
		var err error
		data, err = os.ReadFile(w.dataPath)
		return err
	}); werr != nil {
		w.fail(werr)
		return nil, ""
	}

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	w.mu.RLock()
	lastHash := w.lastHash
	w.mu.RUnlock()
	if hash == lastHash {
		log.Printf("reload: content unchanged (hash=%s), skipping", hashPrefix(hash))
		w.recordError(nil)
		return nil, ""
	}

	var t model.Tree
	if werr := w.safeCompute("parse", func() error {
		var err error
		t, err = loader.Parse(data, loader.FormatOf(w.dataPath))
		return err
	}); werr != nil {
		w.fail(werr)
		return nil, ""
	}

	w.recordError(nil)
	w.mu.Lock()
	w.lastHash = hash
	w.mu.Unlock()

	log.Printf("reload: loaded %d top-level nodes in %v (hash=%s)", len(t), time.Since(start), hashPrefix(hash))
	return t, hash
}

// TreeReloadedMsg carries a freshly parsed document.
type TreeReloadedMsg struct {
	Tree model.Tree
	Hash string
}

// ReloadErrorMsg reports a failed reload.
type ReloadErrorMsg struct {
	Err         error
	Recoverable bool // True if the next file change may fix it
}

// WatcherChanged returns the watcher's change channel, or nil without a path.
func (w *BackgroundWorker) WatcherChanged() <-chan struct{} {
	if w.watcher == nil {
		return nil
	}
	return w.watcher.Changed()
}

// LastHash returns the content hash of the last delivered tree.
func (w *BackgroundWorker) LastHash() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastHash
}

// hashPrefix returns up to 16 characters of hash for logging.
func hashPrefix(hash string) string {
	if len(hash) > 16 {
		return hash[:16]
	}
	return hash
}

// ResetHash forces the next reload to deliver a tree even if the content is
// unchanged.
func (w *BackgroundWorker) ResetHash() {
	w.mu.Lock()
	w.lastHash = ""
	w.mu.Unlock()
}
