// Package engine wires titlekeep together: it consumes watcher events,
// routes them through the state store's debounce windows, and invokes the
// rename orchestrator and the creation decision tree. It also schedules the
// periodic state maintenance sweep and guarantees total timer cancellation
// at teardown.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/adalundhe/titlekeep/core/cache"
	"github.com/adalundhe/titlekeep/core/config"
	"github.com/adalundhe/titlekeep/core/creation"
	"github.com/adalundhe/titlekeep/core/events"
	"github.com/adalundhe/titlekeep/core/rename"
	"github.com/adalundhe/titlekeep/core/state"
	"github.com/adalundhe/titlekeep/core/vault"
	"github.com/adalundhe/titlekeep/core/watcher"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrAlreadyRunning indicates the engine was started twice.
	ErrAlreadyRunning = errors.New("engine is already running")
)

// =============================================================================
// Engine
// =============================================================================

// Engine is the event-driven composition of the titlekeep core.
type Engine struct {
	cfg     *config.Manager
	state   *state.Store
	cache   *cache.Manager
	orch    *rename.Orchestrator
	handler *creation.Handler
	probe   creation.TemplateProbe
	bus     *events.TemplateBus
	ws      vault.Workspace
	vlt     vault.Vault
	watch   *watcher.VaultWatcher
	log     *slog.Logger

	// tree is rebuilt and swapped whole on config reload while creation
	// handling reads it from other goroutines.
	tree atomic.Pointer[creation.Tree]

	loadTime time.Time
	running  atomic.Bool
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// Deps collects the engine's collaborators.
type Deps struct {
	Config       *config.Manager
	State        *state.Store
	Cache        *cache.Manager
	Orchestrator *rename.Orchestrator
	Handler      *creation.Handler
	Probe        creation.TemplateProbe
	Bus          *events.TemplateBus
	Workspace    vault.Workspace
	Vault        vault.Vault
	Watcher      *watcher.VaultWatcher
	Log          *slog.Logger
}

// New assembles an engine. Watcher and Workspace may be nil for embedded
// (library-driven) use, where the host feeds events via the Handle methods.
func New(deps Deps) (*Engine, error) {
	tree, err := creation.NewTree(deps.Config.Get())
	if err != nil {
		return nil, err
	}

	log := deps.Log
	if log == nil {
		log = slog.Default()
	}

	e := &Engine{
		cfg:      deps.Config,
		state:    deps.State,
		cache:    deps.Cache,
		orch:     deps.Orchestrator,
		handler:  deps.Handler,
		probe:    deps.Probe,
		bus:      deps.Bus,
		ws:       deps.Workspace,
		vlt:      deps.Vault,
		watch:    deps.Watcher,
		log:      log,
		loadTime: time.Now(),
	}
	e.tree.Store(tree)

	deps.Config.OnChange(func(c *config.Config) {
		if t, terr := creation.NewTree(c); terr == nil {
			e.tree.Store(t)
		}
	})

	return e, nil
}

// TemplateBus exposes the bus external integrations publish into.
func (e *Engine) TemplateBus() *events.TemplateBus {
	return e.bus
}

// =============================================================================
// Lifecycle
// =============================================================================

// Start begins consuming watcher events and scheduling maintenance sweeps.
func (e *Engine) Start(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	e.stopCh = make(chan struct{})

	if e.watch != nil {
		eventCh, err := e.watch.Start(ctx)
		if err != nil {
			e.running.Store(false)
			return err
		}
		e.wg.Add(1)
		go e.eventLoop(ctx, eventCh)
	}

	e.wg.Add(1)
	go e.maintenanceLoop(ctx)

	return nil
}

// Stop tears the engine down. All live timers for all paths are cancelled
// before state is dropped, so no callback fires after Stop returns.
func (e *Engine) Stop() error {
	if !e.running.Load() {
		return nil
	}

	close(e.stopCh)
	if e.watch != nil {
		e.watch.Stop()
	}
	e.wg.Wait()

	e.state.CancelAllTimers()
	e.running.Store(false)
	return nil
}

func (e *Engine) eventLoop(ctx context.Context, eventCh <-chan watcher.Event) {
	defer e.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stopCh:
			return
		case event, ok := <-eventCh:
			if !ok {
				return
			}
			e.dispatch(ctx, event)
		}
	}
}

func (e *Engine) maintenanceLoop(ctx context.Context) {
	defer e.wg.Done()

	interval := e.cfg.Get().Timing.MaintenanceInterval
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stopCh:
			return
		case <-ticker.C:
			e.state.Maintain()
		}
	}
}

// =============================================================================
// Event Dispatch
// =============================================================================

func (e *Engine) dispatch(ctx context.Context, event watcher.Event) {
	doc := vault.Document{Path: event.Path, CreatedAt: event.Time, ModifiedAt: event.Time}

	switch event.Op {
	case watcher.OpCreate:
		e.HandleCreated(ctx, doc)
	case watcher.OpModify:
		e.HandleModified(ctx, doc)
	case watcher.OpDelete:
		e.HandleDeleted(doc.Path)
	case watcher.OpRename:
		// Only the old name is observable here; the new name arrives as
		// its own create event.
		e.HandleDeleted(doc.Path)
	}
}

// HandleCreated processes a document creation: the cache layer learns the
// path, the creation decision tree runs, and the rename pipeline fires after
// the creation-delay window.
func (e *Engine) HandleCreated(ctx context.Context, doc vault.Document) {
	cfg := e.cfg.Get()
	e.cache.NotifyCreated(doc.Path)

	if doc.CreatedAt.Before(e.loadTime) {
		// Startup discovery, not a user creation.
		return
	}

	e.spawnCreationActions(ctx, doc)

	if !cfg.Features.RenameOnCreate {
		return
	}

	e.state.SetCreationDelay(doc.Path, cfg.Timing.CreationDelay, func() {
		e.process(doc, rename.Options{Manual: true, NoDelay: true})
	})
}

// HandleModified processes an edit event: rapid successive edits collapse
// into a single rename attempt through the per-path throttle window.
func (e *Engine) HandleModified(ctx context.Context, doc vault.Document) {
	cfg := e.cfg.Get()
	if !cfg.Features.RenameOnEdit {
		return
	}
	if e.state.IsSyncingEditors(doc.Path) {
		return
	}

	hasEditor := false
	var editor vault.Editor
	if e.ws != nil {
		if active, ok := e.ws.ActiveEditor(); ok && active.Path() == doc.Path {
			hasEditor = true
			editor = active
		}
	}

	e.state.SetThrottle(doc.Path, cfg.Timing.Throttle, func() {
		e.process(doc, rename.Options{
			HasActiveEditor: hasEditor,
			Editor:          editor,
		})
	})
}

// HandleDeleted drops all per-path state, cancelling live timers first.
func (e *Engine) HandleDeleted(path string) {
	e.state.NotifyDeleted(path)
	e.cache.NotifyDeleted(path)
}

// HandleRenamed migrates per-path state after an externally initiated
// rename.
func (e *Engine) HandleRenamed(oldPath, newPath string) {
	e.state.CancelTimers(oldPath)
	e.state.NotifyRenamed(oldPath, newPath)
	e.cache.NotifyRenamed(oldPath, newPath)
}

// spawnCreationActions runs the creation decision on its own goroutine. The
// decision can wait out the template budget, so it must never run on the
// event loop. Per-path ordering holds because the watcher debounces to one
// create event per path per quiet window.
func (e *Engine) spawnCreationActions(ctx context.Context, doc vault.Document) {
	cfg := e.cfg.Get()
	if !cfg.Features.InsertTitle && !cfg.Features.MoveCursor {
		return
	}

	stop := e.stopCh
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		cctx, cancel := context.WithCancel(ctx)
		defer cancel()
		if stop != nil {
			go func() {
				select {
				case <-stop:
					cancel()
				case <-cctx.Done():
				}
			}()
		}

		e.runCreationActions(cctx, doc)
	}()
}

func (e *Engine) runCreationActions(ctx context.Context, doc vault.Document) {

	initial := ""
	if content, ok := e.cache.Content(doc.Path); ok {
		initial = content
	} else if e.vlt != nil {
		if content, err := e.vlt.ReadCached(ctx, doc.Path); err == nil {
			initial = content
		}
	}

	actions := e.tree.Load().DetermineActions(ctx, doc, creation.Context{
		InitialContent: initial,
		PluginLoadTime: e.loadTime,
		Probe:          e.probe,
		Waiter:         e.bus,
	})
	e.log.Debug("creation decision", "path", doc.Path, "decision", actions.DecisionPath)

	if e.handler != nil {
		e.handler.Apply(doc, actions)
	}
}

func (e *Engine) process(doc vault.Document, opts rename.Options) {
	// Timer callbacks run off the event loop; bound them independently.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	res := e.orch.ProcessFile(ctx, doc, opts)
	if res.Err != nil && !res.Skipped {
		e.log.Error("process failed", "path", doc.Path, "error", res.Err)
	}
}
