// Package watcher turns raw filesystem notifications into the host event
// stream titlekeep consumes: create/modify/delete/rename events for markdown
// documents, debounced per path, with glob-based exclusion filtering.
package watcher

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"

	"github.com/adalundhe/titlekeep/core/vault"
)

// =============================================================================
// Constants
// =============================================================================

// DefaultDebounce is the default per-path debounce interval.
const DefaultDebounce = 100 * time.Millisecond

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrRootNotDirectory indicates the vault root is not a directory.
	ErrRootNotDirectory = errors.New("vault root is not a directory")

	// ErrInvalidPattern indicates an exclude pattern could not be compiled.
	ErrInvalidPattern = errors.New("invalid exclude pattern")
)

// =============================================================================
// Event
// =============================================================================

// Op is the kind of document event.
type Op int

const (
	// OpCreate indicates a document was created.
	OpCreate Op = iota

	// OpModify indicates a document was written.
	OpModify

	// OpDelete indicates a document was deleted.
	OpDelete

	// OpRename indicates a document path stopped existing under its old
	// name; the new name arrives as a separate OpCreate.
	OpRename
)

// String returns a human-readable name for the operation.
func (op Op) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpModify:
		return "modify"
	case OpDelete:
		return "delete"
	case OpRename:
		return "rename"
	default:
		return "unknown"
	}
}

// Event is one debounced document event, with a vault-relative path.
type Event struct {
	Path string
	Op   Op
	Time time.Time
}

// =============================================================================
// Config
// =============================================================================

// Config configures a vault watcher.
type Config struct {
	// Root is the vault directory watched recursively.
	Root string

	// ExcludePatterns are glob patterns for paths to ignore.
	ExcludePatterns []string

	// Debounce is the per-path quiet interval before an event is emitted.
	Debounce time.Duration
}

// =============================================================================
// VaultWatcher
// =============================================================================

type pending struct {
	event Event
	timer *time.Timer
}

// VaultWatcher emits debounced markdown document events for one vault root.
type VaultWatcher struct {
	config   Config
	watcher  *fsnotify.Watcher
	excludes []glob.Glob

	mu      sync.Mutex
	pending map[string]*pending
	eventCh chan Event
	stopped bool

	stopOnce sync.Once
}

// New creates a watcher for the vault rooted at config.Root.
func New(config Config) (*VaultWatcher, error) {
	info, err := os.Stat(config.Root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, ErrRootNotDirectory
	}
	if config.Debounce <= 0 {
		config.Debounce = DefaultDebounce
	}

	excludes := make([]glob.Glob, 0, len(config.ExcludePatterns))
	for _, pattern := range config.ExcludePatterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, errors.Join(ErrInvalidPattern, err)
		}
		excludes = append(excludes, g)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &VaultWatcher{
		config:   config,
		watcher:  fsw,
		excludes: excludes,
		pending:  make(map[string]*pending),
	}, nil
}

// Start begins watching. The returned channel closes when the context is
// cancelled or Stop is called.
func (w *VaultWatcher) Start(ctx context.Context) (<-chan Event, error) {
	w.eventCh = make(chan Event, 64)

	if err := w.addRecursive(w.config.Root); err != nil {
		close(w.eventCh)
		return nil, err
	}

	go w.run(ctx)
	return w.eventCh, nil
}

// Stop stops the watcher and cancels every pending debounce timer.
// Safe to call multiple times.
func (w *VaultWatcher) Stop() error {
	w.stopOnce.Do(func() {
		w.mu.Lock()
		w.stopped = true
		for _, p := range w.pending {
			p.timer.Stop()
		}
		w.pending = make(map[string]*pending)
		w.mu.Unlock()

		w.watcher.Close()
	})
	return nil
}

// =============================================================================
// Event Loop
// =============================================================================

func (w *VaultWatcher) run(ctx context.Context) {
	defer w.closeChannel()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)
		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

func (w *VaultWatcher) handle(event fsnotify.Event) {
	if w.isExcluded(event.Name) {
		return
	}

	// New directories join the recursive watch.
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			_ = w.addRecursive(event.Name)
			return
		}
	}

	rel, ok := w.relativeMarkdownPath(event.Name)
	if !ok {
		return
	}

	op, ok := mapOp(event.Op)
	if !ok {
		return
	}
	w.schedule(rel, op)
}

func mapOp(op fsnotify.Op) (Op, bool) {
	switch {
	case op.Has(fsnotify.Create):
		return OpCreate, true
	case op.Has(fsnotify.Write):
		return OpModify, true
	case op.Has(fsnotify.Remove):
		return OpDelete, true
	case op.Has(fsnotify.Rename):
		return OpRename, true
	default:
		return 0, false
	}
}

// =============================================================================
// Debouncing
// =============================================================================

// schedule queues an event to fire after the debounce interval. A newer
// event for the same path replaces the queued one and restarts its timer,
// except that create and delete always override a queued modify.
func (w *VaultWatcher) schedule(relPath string, op Op) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return
	}

	event := Event{Path: relPath, Op: op, Time: time.Now()}

	if existing, ok := w.pending[relPath]; ok {
		existing.timer.Stop()
		if existing.event.Op != OpModify && op == OpModify {
			event.Op = existing.event.Op
		}
	}
	w.pending[relPath] = &pending{
		event: event,
		timer: time.AfterFunc(w.config.Debounce, func() { w.emit(relPath) }),
	}
}

func (w *VaultWatcher) emit(relPath string) {
	w.mu.Lock()
	p, ok := w.pending[relPath]
	delete(w.pending, relPath)
	stopped := w.stopped
	w.mu.Unlock()

	if !ok || stopped {
		return
	}

	select {
	case w.eventCh <- p.event:
	default:
		// Consumer is behind; drop rather than block the timer goroutine.
	}
}

func (w *VaultWatcher) closeChannel() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.stopped {
		w.stopped = true
		for _, p := range w.pending {
			p.timer.Stop()
		}
		w.pending = make(map[string]*pending)
	}
	close(w.eventCh)
}

// =============================================================================
// Paths
// =============================================================================

func (w *VaultWatcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") && path != w.config.Root {
			return filepath.SkipDir
		}
		if w.isExcluded(path) {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}

func (w *VaultWatcher) relativeMarkdownPath(absPath string) (string, bool) {
	if !strings.EqualFold(filepath.Ext(absPath), vault.MarkdownExtension) {
		return "", false
	}
	rel, err := filepath.Rel(w.config.Root, absPath)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func (w *VaultWatcher) isExcluded(path string) bool {
	normalized := filepath.ToSlash(path)
	base := filepath.Base(path)
	for _, pattern := range w.excludes {
		if pattern.Match(normalized) || pattern.Match(base) {
			return true
		}
	}
	return false
}
