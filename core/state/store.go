// Package state holds ephemeral per-document coordination state for
// titlekeep: non-blocking rename locks, debounce/throttle timer slots,
// content snapshots with capture timestamps, staleness flags, and notice
// rate limits. All state is process-local and pruned by an externally
// driven maintenance sweep.
package state

import (
	"strings"
	"sync"
	"time"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// DefaultContentMaxAge is the staleness horizon for content snapshots.
	DefaultContentMaxAge = 5 * time.Minute

	// LockMaxAge is how long a lock may be held before the maintenance
	// sweep force-releases it as abandoned.
	LockMaxAge = 60 * time.Second

	// RenamedFlagMaxAge is the reprocessing guard window after a rename.
	RenamedFlagMaxAge = time.Second

	// FreshReadFlagMaxAge is how long a fresh-read flag stays effective.
	FreshReadFlagMaxAge = 5 * time.Minute

	// OperationDataMaxAge is the retention horizon for operation tracking.
	OperationDataMaxAge = 10 * time.Minute

	// SnapshotMaxAge is the retention horizon for content snapshots.
	SnapshotMaxAge = 10 * time.Minute

	// AliasStatusMaxAge is the retention horizon for pending alias flags.
	AliasStatusMaxAge = 5 * time.Minute

	// NoticeMaxAge is the retention horizon for notice rate-limit stamps.
	NoticeMaxAge = 10 * time.Minute
)

// =============================================================================
// NoticeKind
// =============================================================================

// NoticeKind distinguishes the two independently rate-limited notice streams.
type NoticeKind int

const (
	// NoticeRename covers rename outcome notices.
	NoticeRename NoticeKind = iota

	// NoticeError covers failure notices.
	NoticeError
)

// =============================================================================
// Snapshots and per-path records
// =============================================================================

// Snapshot is a content observation with its capture time.
type Snapshot struct {
	Content    string
	CapturedAt time.Time
}

// TitleRegion is the memoized result of title-line scanning for a document.
type TitleRegion struct {
	FirstNonEmptyLine string
	TitleSourceLine   string
	UpdatedAt         time.Time
}

// OperationData tracks per-path operation frequency for duplicate detection.
type OperationData struct {
	Count       int
	LastContent string
	LastUpdate  time.Time
}

// fileState is the full per-document record. A record with every optional
// field empty is pruned by the maintenance sweep.
type fileState struct {
	locked         bool
	lockAcquiredAt time.Time

	creationDelay    *time.Timer
	creationDelaySeq uint64
	throttle         *time.Timer
	throttleSeq      uint64

	editorContent *Snapshot
	savedContent  *Snapshot

	titleRegion *TitleRegion
	opData      *OperationData

	pendingAliasRecheck bool
	pendingAliasEditor  any
	aliasFlaggedAt      time.Time

	needsFreshRead   bool
	freshReadFlagged time.Time
	renamedAt        time.Time
	syncingEditors   bool

	noticeAt [2]time.Time
}

func (fs *fileState) empty() bool {
	return !fs.locked &&
		fs.creationDelay == nil &&
		fs.throttle == nil &&
		fs.editorContent == nil &&
		fs.savedContent == nil &&
		fs.titleRegion == nil &&
		fs.opData == nil &&
		!fs.pendingAliasRecheck &&
		!fs.needsFreshRead &&
		fs.renamedAt.IsZero() &&
		!fs.syncingEditors &&
		fs.noticeAt[0].IsZero() &&
		fs.noticeAt[1].IsZero()
}

// =============================================================================
// Store
// =============================================================================

// Store coordinates all per-document state. It is safe for concurrent use;
// callers never block on a lock acquisition (AcquireLock returns false
// instead of waiting).
type Store struct {
	mu    sync.Mutex
	files map[string]*fileState
	now   func() time.Time

	// timerSeq issues generation numbers for armed timers. Monotonic for
	// the store's lifetime so a number is never reissued after a record
	// is pruned and recreated.
	timerSeq uint64
}

// NewStore creates an empty state store.
func NewStore() *Store {
	return NewStoreWithClock(time.Now)
}

// NewStoreWithClock creates a store with an injected clock, for tests.
func NewStoreWithClock(clock func() time.Time) *Store {
	return &Store{
		files: make(map[string]*fileState),
		now:   clock,
	}
}

// key folds paths for case-insensitive filesystem safety.
func key(path string) string {
	return strings.ToLower(path)
}

// get returns the record for path, creating it lazily.
// Caller must hold s.mu.
func (s *Store) get(path string) *fileState {
	k := key(path)
	fs, ok := s.files[k]
	if !ok {
		fs = &fileState{}
		s.files[k] = fs
	}
	return fs
}

// peek returns the record for path without creating it.
// Caller must hold s.mu.
func (s *Store) peek(path string) (*fileState, bool) {
	fs, ok := s.files[key(path)]
	return fs, ok
}

// pruneLocked drops the record for path if it carries no payload.
// Caller must hold s.mu.
func (s *Store) pruneLocked(path string) {
	k := key(path)
	if fs, ok := s.files[k]; ok && fs.empty() {
		delete(s.files, k)
	}
}

// Len returns the number of live records, for diagnostics.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}

// =============================================================================
// Locks
// =============================================================================

// AcquireLock claims the per-path rename lock. It never blocks: if the lock
// is already held it returns false and the caller must drop the operation.
func (s *Store) AcquireLock(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	fs := s.get(path)
	if fs.locked {
		return false
	}
	fs.locked = true
	fs.lockAcquiredAt = s.now()
	return true
}

// ReleaseLock releases the per-path rename lock.
func (s *Store) ReleaseLock(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if fs, ok := s.peek(path); ok {
		fs.locked = false
		fs.lockAcquiredAt = time.Time{}
		s.pruneLocked(path)
	}
}

// IsLocked reports whether the per-path rename lock is held.
func (s *Store) IsLocked(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	fs, ok := s.peek(path)
	return ok && fs.locked
}

// =============================================================================
// Content Snapshots
// =============================================================================

// SetEditorContent records content observed from a live edit surface.
func (s *Store) SetEditorContent(path, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.get(path).editorContent = &Snapshot{Content: content, CapturedAt: s.now()}
}

// EditorContent returns the most recent live-editor snapshot.
func (s *Store) EditorContent(path string) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if fs, ok := s.peek(path); ok && fs.editorContent != nil {
		return *fs.editorContent, true
	}
	return Snapshot{}, false
}

// SetSavedContent records the content snapshot at a disk-write observation.
// It is compared against editor content to detect frontmatter-only edits.
func (s *Store) SetSavedContent(path, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.get(path).savedContent = &Snapshot{Content: content, CapturedAt: s.now()}
}

// SavedContent returns the last disk-write snapshot.
func (s *Store) SavedContent(path string) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if fs, ok := s.peek(path); ok && fs.savedContent != nil {
		return *fs.savedContent, true
	}
	return Snapshot{}, false
}

// IsStale reports whether the newest content snapshot for path is older than
// maxAge. Pass zero for the default horizon. A path with no snapshot at all
// is stale.
func (s *Store) IsStale(path string, maxAge time.Duration) bool {
	if maxAge <= 0 {
		maxAge = DefaultContentMaxAge
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	fs, ok := s.peek(path)
	if !ok {
		return true
	}

	var newest time.Time
	if fs.editorContent != nil {
		newest = fs.editorContent.CapturedAt
	}
	if fs.savedContent != nil && fs.savedContent.CapturedAt.After(newest) {
		newest = fs.savedContent.CapturedAt
	}
	if newest.IsZero() {
		return true
	}
	return s.now().Sub(newest) > maxAge
}

// =============================================================================
// Title Region
// =============================================================================

// SetTitleRegion memoizes the result of a title-line scan.
func (s *Store) SetTitleRegion(path string, region TitleRegion) {
	s.mu.Lock()
	defer s.mu.Unlock()

	region.UpdatedAt = s.now()
	r := region
	s.get(path).titleRegion = &r
}

// TitleRegionFor returns the memoized title-line scan, if present.
func (s *Store) TitleRegionFor(path string) (TitleRegion, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if fs, ok := s.peek(path); ok && fs.titleRegion != nil {
		return *fs.titleRegion, true
	}
	return TitleRegion{}, false
}

// =============================================================================
// Operation Tracking
// =============================================================================

// RecordOperation bumps the per-path operation counter and returns the new
// count. The counter resets when its retention horizon lapses.
func (s *Store) RecordOperation(path, content string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	fs := s.get(path)
	now := s.now()

	if fs.opData == nil || now.Sub(fs.opData.LastUpdate) > OperationDataMaxAge {
		fs.opData = &OperationData{}
	}
	fs.opData.Count++
	fs.opData.LastContent = content
	fs.opData.LastUpdate = now
	return fs.opData.Count
}

// OperationDataFor returns the per-path operation tracking record.
func (s *Store) OperationDataFor(path string) (OperationData, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if fs, ok := s.peek(path); ok && fs.opData != nil {
		return *fs.opData, true
	}
	return OperationData{}, false
}

// =============================================================================
// Flags
// =============================================================================

// FlagFreshRead forces the next content read for path to bypass caches.
func (s *Store) FlagFreshRead(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fs := s.get(path)
	fs.needsFreshRead = true
	fs.freshReadFlagged = s.now()
}

// NeedsFreshRead reports whether a fresh-read flag is set for path.
func (s *Store) NeedsFreshRead(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	fs, ok := s.peek(path)
	return ok && fs.needsFreshRead
}

// ClearFreshRead clears the fresh-read flag after a direct read.
func (s *Store) ClearFreshRead(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if fs, ok := s.peek(path); ok {
		fs.needsFreshRead = false
		fs.freshReadFlagged = time.Time{}
		s.pruneLocked(path)
	}
}

// MarkRenamed stamps path as just-renamed, guarding against reprocessing
// with stale content.
func (s *Store) MarkRenamed(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.get(path).renamedAt = s.now()
}

// RecentlyRenamed reports whether path was renamed inside the guard window.
func (s *Store) RecentlyRenamed(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	fs, ok := s.peek(path)
	if !ok || fs.renamedAt.IsZero() {
		return false
	}
	return s.now().Sub(fs.renamedAt) <= RenamedFlagMaxAge
}

// SetSyncingEditors marks that titlekeep itself is pushing content into open
// views for path, suppressing spurious recheck triggers.
func (s *Store) SetSyncingEditors(path string, syncing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if syncing {
		s.get(path).syncingEditors = true
		return
	}
	if fs, ok := s.peek(path); ok {
		fs.syncingEditors = false
		s.pruneLocked(path)
	}
}

// IsSyncingEditors reports whether titlekeep is currently syncing editors
// for path.
func (s *Store) IsSyncingEditors(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	fs, ok := s.peek(path)
	return ok && fs.syncingEditors
}

// =============================================================================
// Alias Recheck
// =============================================================================

// SetPendingAliasRecheck defers an alias recheck for path. The editor
// reference is opaque to this store; alias logic lives outside the core.
func (s *Store) SetPendingAliasRecheck(path string, editorRef any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fs := s.get(path)
	fs.pendingAliasRecheck = true
	fs.pendingAliasEditor = editorRef
	fs.aliasFlaggedAt = s.now()
}

// TakePendingAliasRecheck consumes a deferred alias recheck, returning the
// stored editor reference.
func (s *Store) TakePendingAliasRecheck(path string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fs, ok := s.peek(path)
	if !ok || !fs.pendingAliasRecheck {
		return nil, false
	}

	ref := fs.pendingAliasEditor
	fs.pendingAliasRecheck = false
	fs.pendingAliasEditor = nil
	fs.aliasFlaggedAt = time.Time{}
	s.pruneLocked(path)
	return ref, true
}

// =============================================================================
// Notices
// =============================================================================

// AllowNotice reports whether a notice of the given kind may be shown for
// path, enforcing a minimum interval between notices of the same kind.
func (s *Store) AllowNotice(path string, kind NoticeKind, minInterval time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	fs := s.get(path)
	now := s.now()

	last := fs.noticeAt[kind]
	if !last.IsZero() && now.Sub(last) < minInterval {
		return false
	}
	fs.noticeAt[kind] = now
	return true
}
