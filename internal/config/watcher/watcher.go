// Package watcher reports changes to configuration files for live reload.
//
// Files are watched through their parent directory, so editors that save by
// writing a temporary file and renaming it over the original are seen as a
// create of the watched path. Bursts of events for one file are coalesced
// into a single event once the file has been quiet for the debounce period.
package watcher

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ErrNotWatching is returned by Unwatch for a path that is not watched.
var ErrNotWatching = errors.New("path not watched")

// Event represents a file change event.
type Event struct {
	// Path is the absolute path to the changed file.
	Path string

	// Op is the operation that triggered the event.
	Op Operation

	// Time is when the last coalesced change was seen.
	Time time.Time
}

// Operation represents the type of file operation.
type Operation int

const (
	// OpWrite indicates the file was modified.
	OpWrite Operation = iota

	// OpCreate indicates a new file was created.
	OpCreate

	// OpRemove indicates the file was deleted.
	OpRemove

	// OpRename indicates the file was renamed.
	OpRename
)

// String returns the operation name.
func (op Operation) String() string {
	switch op {
	case OpWrite:
		return "write"
	case OpCreate:
		return "create"
	case OpRemove:
		return "remove"
	case OpRename:
		return "rename"
	default:
		return "unknown"
	}
}

// Handler is called when a file change is detected.
type Handler func(event Event)

// Watcher monitors files for changes.
type Watcher struct {
	mu sync.RWMutex

	// Watched files and the reference count of their directories.
	files map[string]struct{}
	dirs  map[string]int

	handlers []Handler
	onError  func(error)

	debounce time.Duration

	fsw     *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
	running bool

	pendingMu sync.Mutex
	pending   map[string]*pendingEvent
}

// pendingEvent is a coalesced event waiting for its file to go quiet.
type pendingEvent struct {
	op    Operation
	time  time.Time
	timer *time.Timer
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period before an event is delivered.
// Zero delivers every event immediately.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d >= 0 {
			w.debounce = d
		}
	}
}

// WithErrorHandler sets the function receiving fsnotify errors.
func WithErrorHandler(fn func(error)) Option {
	return func(w *Watcher) {
		w.onError = fn
	}
}

// New creates a new file watcher.
func New(opts ...Option) *Watcher {
	w := &Watcher{
		files:    make(map[string]struct{}),
		dirs:     make(map[string]int),
		debounce: 100 * time.Millisecond,
		pending:  make(map[string]*pendingEvent),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Watch adds a file to the watch list. The file need not exist yet, but its
// directory must.
func (w *Watcher) Watch(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(absPath)

	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch %s: %s is not a directory", path, dir)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.files[absPath]; ok {
		return nil
	}

	if w.dirs[dir] == 0 && w.running {
		if err := w.fsw.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
	}
	w.dirs[dir]++
	w.files[absPath] = struct{}{}
	return nil
}

// Unwatch removes a file from the watch list.
func (w *Watcher) Unwatch(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(absPath)

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.files[absPath]; !ok {
		return fmt.Errorf("unwatch %s: %w", path, ErrNotWatching)
	}
	delete(w.files, absPath)

	w.dirs[dir]--
	if w.dirs[dir] > 0 {
		return nil
	}
	delete(w.dirs, dir)
	if w.running {
		return w.fsw.Remove(dir)
	}
	return nil
}

// OnChange registers a handler for file change events.
func (w *Watcher) OnChange(handler Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers = append(w.handlers, handler)
}

// Start begins watching files for changes.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	for dir := range w.dirs {
		if err := fsw.Add(dir); err != nil {
			_ = fsw.Close()
			return fmt.Errorf("start watcher: %w", err)
		}
	}

	w.fsw = fsw
	w.done = make(chan struct{})
	w.running = true

	w.wg.Add(1)
	go w.processLoop(fsw, w.done)
	return nil
}

// Stop stops watching files. Pending debounced events are dropped.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.done)
	fsw := w.fsw
	w.mu.Unlock()

	w.wg.Wait()
	_ = fsw.Close()

	w.pendingMu.Lock()
	for path, p := range w.pending {
		p.timer.Stop()
		delete(w.pending, path)
	}
	w.pendingMu.Unlock()
}

// IsRunning returns whether the watcher is active.
func (w *Watcher) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

// WatchedFiles returns the watched files, sorted.
func (w *Watcher) WatchedFiles() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	files := make([]string, 0, len(w.files))
	for path := range w.files {
		files = append(files, path)
	}
	sort.Strings(files)
	return files
}

// processLoop handles incoming fsnotify events.
func (w *Watcher) processLoop(fsw *fsnotify.Watcher, done <-chan struct{}) {
	defer w.wg.Done()

	for {
		select {
		case <-done:
			return

		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handleFSEvent(ev)

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			if w.onError != nil {
				w.onError(err)
			}
		}
	}
}

// handleFSEvent filters an fsnotify event down to the watched files.
func (w *Watcher) handleFSEvent(ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)

	w.mu.RLock()
	_, watched := w.files[path]
	w.mu.RUnlock()
	if !watched {
		return
	}

	op, ok := convertOp(ev.Op)
	if !ok {
		return
	}

	event := Event{Path: path, Op: op, Time: time.Now()}
	if w.debounce > 0 {
		w.queueEvent(event)
	} else {
		w.emitEvent(event)
	}
}

// convertOp maps an fsnotify operation to an Operation. Chmod is dropped.
func convertOp(op fsnotify.Op) (Operation, bool) {
	switch {
	case op.Has(fsnotify.Remove):
		return OpRemove, true
	case op.Has(fsnotify.Rename):
		return OpRename, true
	case op.Has(fsnotify.Create):
		return OpCreate, true
	case op.Has(fsnotify.Write):
		return OpWrite, true
	default:
		return 0, false
	}
}

// queueEvent coalesces an event with the one pending for its path:
//   - remove and create replace the pending operation
//   - rename replaces a pending write
//   - write keeps the pending operation
func (w *Watcher) queueEvent(event Event) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	p, exists := w.pending[event.Path]
	if !exists {
		path := event.Path
		w.pending[path] = &pendingEvent{
			op:    event.Op,
			time:  event.Time,
			timer: time.AfterFunc(w.debounce, func() { w.flush(path) }),
		}
		return
	}

	switch event.Op {
	case OpRemove, OpCreate:
		p.op = event.Op
	case OpRename:
		if p.op == OpWrite {
			p.op = OpRename
		}
	}
	p.time = event.Time
	p.timer.Reset(w.debounce)
}

// flush delivers the pending event for path.
func (w *Watcher) flush(path string) {
	w.pendingMu.Lock()
	p, ok := w.pending[path]
	if ok {
		delete(w.pending, path)
	}
	w.pendingMu.Unlock()

	if ok {
		w.emitEvent(Event{Path: path, Op: p.op, Time: p.time})
	}
}

// emitEvent calls all handlers with the event.
func (w *Watcher) emitEvent(event Event) {
	w.mu.RLock()
	handlers := make([]Handler, len(w.handlers))
	copy(handlers, w.handlers)
	w.mu.RUnlock()

	for _, handler := range handlers {
		safeCallHandler(handler, event)
	}
}

// safeCallHandler calls a handler, keeping the watcher alive if it panics.
func safeCallHandler(handler Handler, event Event) {
	defer func() {
		_ = recover()
	}()
	handler(event)
}
