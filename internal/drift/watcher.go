package drift

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tidelab/swell/internal/filelock"
	"github.com/tidelab/swell/internal/logging"
)

// debounceWindow batches rapid consecutive events for the same path.
// Editors and build tools commonly emit several events per save.
const debounceWindow = 50 * time.Millisecond

// Finding records one write that landed outside every declared ownership
// set while a wave was running.
type Finding struct {
	// Path is workspace-relative and slash-separated.
	Path string

	// Op names the filesystem operation, "create" or "write".
	Op string

	// ObservedAt is when the watcher saw the event.
	ObservedAt time.Time
}

// String renders the finding the way wave issues are phrased.
func (f Finding) String() string {
	return fmt.Sprintf("unowned %s to %s", f.Op, f.Path)
}

// Watcher observes a workspace during a wave and records writes that land
// outside every ownership claim. It blocks nothing; ownership is enforced
// by construction at scheduling time, and the watcher exists to catch
// workers drifting outside their declared file sets.
type Watcher struct {
	root     string
	registry *filelock.Registry
	fsw      *fsnotify.Watcher
	log      *logging.Logger
	ignore   map[string]struct{}

	mu        sync.RWMutex
	findings  []Finding
	flagged   map[string]struct{}
	onFinding func(Finding)

	stopCh   chan struct{}
	stopOnce sync.Once
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger routes watcher warnings through log.
func WithLogger(log *logging.Logger) Option {
	return func(w *Watcher) {
		if log != nil {
			w.log = log
		}
	}
}

// WithIgnore adds entry names the watcher skips, on top of the defaults
// (.git, .swell, node_modules). Matching is by path segment.
func WithIgnore(names ...string) Option {
	return func(w *Watcher) {
		for _, n := range names {
			if n != "" {
				w.ignore[n] = struct{}{}
			}
		}
	}
}

// WithFindingCallback registers cb to run once per new finding, on the
// watcher goroutine.
func WithFindingCallback(cb func(Finding)) Option {
	return func(w *Watcher) {
		w.onFinding = cb
	}
}

// NewWatcher builds a watcher rooted at the workspace directory. Ownership
// questions are answered by the registry the dispatcher claims paths in.
func NewWatcher(root string, reg *filelock.Registry, opts ...Option) (*Watcher, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("workspace root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("workspace root %s is not a directory", root)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	w := &Watcher{
		root:     root,
		registry: reg,
		fsw:      fsw,
		log:      logging.NopLogger(),
		ignore:   map[string]struct{}{".git": {}, ".swell": {}, "node_modules": {}},
		flagged:  make(map[string]struct{}),
		stopCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start registers the workspace tree and begins processing events.
func (w *Watcher) Start() error {
	if err := w.watchTree(w.root); err != nil {
		return fmt.Errorf("watch workspace: %w", err)
	}
	go w.loop()
	return nil
}

// Stop ends observation and releases the underlying watcher. Safe to call
// more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		_ = w.fsw.Close()
	})
}

// Findings returns a copy of the drift observed so far, in observation
// order.
func (w *Watcher) Findings() []Finding {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]Finding, len(w.findings))
	copy(out, w.findings)
	return out
}

// HasFindings reports whether any unowned write was observed.
func (w *Watcher) HasFindings() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.findings) > 0
}

// Reset clears recorded findings between waves. The watch set stays in
// place.
func (w *Watcher) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.findings = nil
	w.flagged = make(map[string]struct{})
}

// watchTree adds root and every non-ignored subdirectory to the watcher.
// fsnotify watches directories, so files in new subdirectories only show
// up once the directory's create event has been handled.
func (w *Watcher) watchTree(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		if path != w.root && w.ignored(w.relPath(path)) {
			return filepath.SkipDir
		}
		_ = w.fsw.Add(path)
		return nil
	})
}

func (w *Watcher) loop() {
	debounce := time.NewTimer(0)
	<-debounce.C

	pending := make(map[string]fsnotify.Event)

	for {
		select {
		case <-w.stopCh:
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			pending[ev.Name] = ev
			debounce.Reset(debounceWindow)

		case <-debounce.C:
			for _, ev := range pending {
				w.handle(ev)
			}
			pending = make(map[string]fsnotify.Event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	rel := w.relPath(ev.Name)
	if rel == "" || rel == "." || strings.HasPrefix(rel, "../") {
		return
	}
	if w.ignored(rel) {
		return
	}

	// New directories join the watch set; their contents arrive as
	// separate events. Directories themselves are never findings.
	if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
		if ev.Op&fsnotify.Create != 0 {
			_ = w.watchTree(ev.Name)
		}
		return
	}

	if _, owned := w.registry.Owner(rel); owned {
		return
	}

	op := "write"
	if ev.Op&fsnotify.Create != 0 {
		op = "create"
	}

	w.mu.Lock()
	if _, seen := w.flagged[rel]; seen {
		w.mu.Unlock()
		return
	}
	w.flagged[rel] = struct{}{}
	f := Finding{Path: rel, Op: op, ObservedAt: time.Now()}
	w.findings = append(w.findings, f)
	cb := w.onFinding
	w.mu.Unlock()

	w.log.Warn("write outside ownership", "path", rel, "op", op)
	if cb != nil {
		cb(f)
	}
}

func (w *Watcher) relPath(path string) string {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return ""
	}
	return filepath.ToSlash(rel)
}

// ignored reports whether any path segment names an ignored entry.
func (w *Watcher) ignored(rel string) bool {
	if rel == "" {
		return true
	}
	for _, seg := range strings.Split(rel, "/") {
		if _, skip := w.ignore[seg]; skip {
			return true
		}
	}
	return false
}
