// Package rename implements the path-conflict-safe renaming pipeline: per
// document it acquires the non-blocking state lock, obtains content through a
// strategy chain, derives a candidate name from the title-source line,
// resolves collisions against the cache layer, performs the rename, and
// migrates all per-path state to the new key.
package rename

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"sync/atomic"

	"github.com/adalundhe/titlekeep/core/cache"
	"github.com/adalundhe/titlekeep/core/config"
	"github.com/adalundhe/titlekeep/core/exclude"
	"github.com/adalundhe/titlekeep/core/state"
	"github.com/adalundhe/titlekeep/core/title"
	"github.com/adalundhe/titlekeep/core/vault"
)

// =============================================================================
// Constants
// =============================================================================

// MaxSuffixAttempts is the hard ceiling for the collision-suffix loop.
// Hitting it is a fatal per-document error, never an infinite loop.
const MaxSuffixAttempts = 100

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrLocked indicates another operation holds the per-path lock.
	ErrLocked = errors.New("document is locked by another operation")

	// ErrExcluded indicates an exclusion rule matched.
	ErrExcluded = errors.New("document is excluded")

	// ErrDisabled indicates the disable property is set on the document.
	ErrDisabled = errors.New("document has renaming disabled")

	// ErrNoActiveEditor indicates a non-manual invocation with no editor,
	// i.e. an external or programmatic write titlekeep must not react to.
	ErrNoActiveEditor = errors.New("no active editor for document")

	// ErrRecentlyRenamed indicates the just-renamed guard window is open.
	ErrRecentlyRenamed = errors.New("document was just renamed")

	// ErrSyncingEditors indicates titlekeep itself is pushing content into
	// open views for this path.
	ErrSyncingEditors = errors.New("editor sync in progress")

	// ErrNoTitleSource indicates the document has no usable title line.
	ErrNoTitleSource = errors.New("no title source line")

	// ErrTooManyCollisions indicates the suffix loop hit its ceiling.
	ErrTooManyCollisions = errors.New("could not resolve filename collision")
)

// =============================================================================
// Options / Result
// =============================================================================

// Options tune one ProcessFile invocation.
type Options struct {
	// Manual marks a user-initiated operation: the active-editor gate is
	// skipped and notices are eligible.
	Manual bool

	// NoDelay bypasses debounce bookkeeping (batch and manual callers).
	NoDelay bool

	// ShowNotices surfaces outcome notices (rate-limited per path).
	ShowNotices bool

	// ProvidedContent short-circuits the content strategy chain.
	ProvidedContent *string

	// IsBatch marks a bulk invocation.
	IsBatch bool

	// Exclusion overrides, each independent.
	IgnoreFolderExclusion   bool
	IgnoreTagExclusion      bool
	IgnorePropertyExclusion bool

	// HasActiveEditor reports that a live edit surface triggered this
	// call. Editor, when non-nil, is that surface.
	HasActiveEditor bool
	Editor          vault.Editor
}

// Result is the per-document outcome.
type Result struct {
	// Success is true when the pipeline completed, renamed or not.
	Success bool

	// Renamed is true when the document actually moved.
	Renamed bool

	// NewPath is the post-rename path when Renamed is true.
	NewPath string

	// Skipped marks admission failures and stale-data short-circuits:
	// silent non-errors that batch reports do not count as failures.
	Skipped bool

	// Err carries the cause for skips and failures.
	Err error
}

// =============================================================================
// Orchestrator
// =============================================================================

// Orchestrator coordinates the state store, the cache layer, and the vault
// for rename operations.
type Orchestrator struct {
	state   *state.Store
	cache   *cache.Manager
	vault   vault.Vault
	ws      vault.Workspace
	cfg     *config.Manager
	extract title.ExtractFunc
	log     *slog.Logger

	// folders is swapped whole on config reload while ProcessFile reads it
	// from other goroutines.
	folders atomic.Pointer[exclude.FolderMatcher]
}

// New creates an orchestrator. workspace may be nil when no live editors
// exist (batch/CLI use). extract may be nil to use the default transform.
func New(
	st *state.Store,
	ca *cache.Manager,
	v vault.Vault,
	workspace vault.Workspace,
	cfg *config.Manager,
	extract title.ExtractFunc,
	log *slog.Logger,
) (*Orchestrator, error) {
	if log == nil {
		log = slog.Default()
	}

	o := &Orchestrator{
		state: st,
		cache: ca,
		vault: v,
		ws:    workspace,
		cfg:   cfg,
		log:   log,
	}

	if extract == nil {
		extract = title.NewExtractor(cfg.Get().Title)
	}
	o.extract = extract

	folders, err := exclude.NewFolderMatcher(cfg.Get().Exclusions)
	if err != nil {
		return nil, err
	}
	o.folders.Store(folders)

	// Recompile folder rules whenever configuration swaps.
	cfg.OnChange(func(c *config.Config) {
		if m, ferr := exclude.NewFolderMatcher(c.Exclusions); ferr == nil {
			o.folders.Store(m)
		}
	})

	return o, nil
}

// =============================================================================
// ProcessFile
// =============================================================================

// ProcessFile runs the rename pipeline for one document. Admission failures
// and stale-data guards return Skipped results; only host I/O failures and
// collision exhaustion are real errors.
func (o *Orchestrator) ProcessFile(ctx context.Context, doc vault.Document, opts Options) Result {
	cfg := o.cfg.Get()

	if res, ok := o.checkAdmission(ctx, doc, opts, cfg); !ok {
		return res
	}

	if !o.state.AcquireLock(doc.Path) {
		o.log.Debug("skipping locked document", "path", doc.Path)
		return Result{Skipped: true, Err: ErrLocked}
	}
	defer o.state.ReleaseLock(doc.Path)

	content, err := o.resolveContent(ctx, doc, opts, cfg)
	if err != nil {
		return Result{Err: fmt.Errorf("read %s: %w", doc.Path, err)}
	}

	if res, ok := o.checkContentExclusions(content, opts, cfg); !ok {
		return res
	}

	source, ok := title.Scan(content, cfg.Title)
	if !ok {
		return Result{Success: true, Skipped: true, Err: ErrNoTitleSource}
	}
	o.state.SetTitleRegion(doc.Path, state.TitleRegion{
		FirstNonEmptyLine: source.FirstNonEmpty,
		TitleSourceLine:   source.Line,
	})

	derived := o.extract(source.Line)
	if derived == doc.Basename() {
		return Result{Success: true}
	}

	target, err := o.resolveCollision(doc, derived)
	if err != nil {
		return Result{Err: err}
	}
	if target == doc.Path {
		return Result{Success: true}
	}

	// A target differing from the current path only in case is still a
	// rename; the vault handles the case-only move.
	return o.executeRename(ctx, doc, target, content)
}

// PreviewTarget computes the path ProcessFile would rename doc to, without
// renaming. An empty result means no rename would occur.
func (o *Orchestrator) PreviewTarget(ctx context.Context, doc vault.Document) (string, error) {
	cfg := o.cfg.Get()

	content, err := o.readFromDisk(ctx, doc.Path, cfg)
	if err != nil {
		return "", err
	}

	source, ok := title.Scan(content, cfg.Title)
	if !ok {
		return "", nil
	}

	derived := o.extract(source.Line)
	if derived == doc.Basename() {
		return "", nil
	}
	return o.resolveCollision(doc, derived)
}

// =============================================================================
// Admission Gates
// =============================================================================

func (o *Orchestrator) checkAdmission(ctx context.Context, doc vault.Document, opts Options, cfg *config.Config) (Result, bool) {
	if o.state.RecentlyRenamed(doc.Path) {
		return Result{Skipped: true, Err: ErrRecentlyRenamed}, false
	}
	if o.state.IsSyncingEditors(doc.Path) {
		return Result{Skipped: true, Err: ErrSyncingEditors}, false
	}
	if !opts.Manual && !opts.HasActiveEditor {
		// External or programmatic write; not ours to react to.
		return Result{Skipped: true, Err: ErrNoActiveEditor}, false
	}

	if metadata, err := o.vault.Frontmatter(ctx, doc.Path); err == nil {
		if exclude.Disabled(metadata, cfg.Exclusions.DisableProperty) {
			return Result{Skipped: true, Err: ErrDisabled}, false
		}
	}

	if !opts.IgnoreFolderExclusion && o.folders.Load().Excluded(doc.Folder()) {
		return Result{Skipped: true, Err: ErrExcluded}, false
	}

	return Result{}, true
}

func (o *Orchestrator) checkContentExclusions(content string, opts Options, cfg *config.Config) (Result, bool) {
	if !opts.IgnoreTagExclusion && exclude.ContentHasTag(content, cfg.Exclusions.Tags) {
		return Result{Skipped: true, Err: ErrExcluded}, false
	}
	if !opts.IgnorePropertyExclusion && exclude.ContentHasProperty(content, cfg.Exclusions.Properties) {
		return Result{Skipped: true, Err: ErrExcluded}, false
	}
	return Result{}, true
}

// =============================================================================
// Content Strategy Chain
// =============================================================================

// resolveContent obtains document content from the first available source:
// explicitly provided content, the triggering editor, an open view for the
// path (hover popovers preferred, they are fresher during interaction), and
// finally disk.
func (o *Orchestrator) resolveContent(ctx context.Context, doc vault.Document, opts Options, cfg *config.Config) (string, error) {
	if opts.ProvidedContent != nil {
		return *opts.ProvidedContent, nil
	}

	if opts.Editor != nil && strings.EqualFold(opts.Editor.Path(), doc.Path) {
		content := opts.Editor.Content()
		o.state.SetEditorContent(doc.Path, content)
		return content, nil
	}

	if editor, ok := o.findOpenView(doc.Path); ok {
		content := editor.Content()
		o.state.SetEditorContent(doc.Path, content)
		return content, nil
	}

	return o.readFromDisk(ctx, doc.Path, cfg)
}

func (o *Orchestrator) findOpenView(docPath string) (vault.Editor, bool) {
	if o.ws == nil {
		return nil, false
	}

	var fallback vault.Editor
	for _, view := range o.ws.OpenViews() {
		if !strings.EqualFold(view.Editor.Path(), docPath) {
			continue
		}
		if view.IsHover {
			return view.Editor, true
		}
		if fallback == nil {
			fallback = view.Editor
		}
	}
	return fallback, fallback != nil
}

func (o *Orchestrator) readFromDisk(ctx context.Context, docPath string, cfg *config.Config) (string, error) {
	if o.state.NeedsFreshRead(docPath) || cfg.Cache.DirectReads {
		content, err := o.vault.ReadFresh(ctx, docPath)
		if err != nil {
			return "", err
		}
		o.state.ClearFreshRead(docPath)
		o.cache.SetContent(docPath, content)
		return content, nil
	}

	if content, ok := o.cache.Content(docPath); ok {
		return content, nil
	}

	content, err := o.vault.ReadCached(ctx, docPath)
	if err != nil {
		return "", err
	}
	o.cache.SetContent(docPath, content)
	return content, nil
}

// =============================================================================
// Collision Resolution
// =============================================================================

// resolveCollision finds the first unreserved, non-existing target path for
// the derived name, appending an incrementing numeric suffix. The document's
// own current path is never a conflict with itself.
func (o *Orchestrator) resolveCollision(doc vault.Document, derived string) (string, error) {
	folder := doc.Folder()

	for attempt := 0; attempt <= MaxSuffixAttempts; attempt++ {
		name := derived
		if attempt > 0 {
			name = fmt.Sprintf("%s %d", derived, attempt)
		}

		candidate := name + vault.MarkdownExtension
		if folder != "." && folder != "" {
			candidate = path.Join(folder, candidate)
		}

		if strings.EqualFold(candidate, doc.Path) {
			return candidate, nil
		}
		if !o.cache.HasPathConflict(candidate) {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("%w: %q after %d attempts", ErrTooManyCollisions, derived, MaxSuffixAttempts)
}

// =============================================================================
// Rename Execution
// =============================================================================

// executeRename reserves the target, performs the host rename, and migrates
// every per-path record to the new key. The reservation is always released,
// success or failure.
func (o *Orchestrator) executeRename(ctx context.Context, doc vault.Document, target, content string) Result {
	o.cache.ReservePath(target)
	defer o.cache.ReleasePath(target)

	if err := o.vault.Rename(ctx, doc.Path, target); err != nil {
		o.log.Error("rename failed", "path", doc.Path, "target", target, "error", err)
		return Result{Err: fmt.Errorf("rename %s: %w", doc.Path, err)}
	}

	// Timers scheduled against the old path must not ride the migrated
	// record and fire after the key changes.
	o.state.CancelTimers(doc.Path)
	o.state.NotifyRenamed(doc.Path, target)
	o.cache.NotifyRenamed(doc.Path, target)
	o.cache.SetContent(target, content)
	o.state.MarkRenamed(target)
	o.state.RecordOperation(target, content)

	o.log.Info("renamed document", "from", doc.Path, "to", target)
	return Result{Success: true, Renamed: true, NewPath: target}
}
