// Package cache provides the path-safety layer for titlekeep: a bounded LRU
// content cache, an O(1) reservation set for in-flight rename targets, and a
// TTL'd existence index rebuilt wholesale from the vault listing. Together
// they let the rename pipeline answer "is this path free" without a disk
// query in the common case.
package cache

import (
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// DefaultContentCapacity bounds the content LRU.
	DefaultContentCapacity = 128

	// DefaultExistenceTTL is how long the existence index answers without a
	// rebuild. Bounded staleness is acceptable because reservations close
	// the gap for paths this process itself is about to create.
	DefaultExistenceTTL = 5 * time.Second
)

// =============================================================================
// Lister
// =============================================================================

// Lister is the read-only existence capability the cache layer needs from
// the host.
type Lister interface {
	Exists(path string) bool
	ListAll() ([]string, error)
}

// =============================================================================
// Manager
// =============================================================================

// Config configures a cache Manager.
type Config struct {
	// ContentCapacity is the LRU capacity, fixed at construction.
	ContentCapacity int

	// ExistenceTTL is the rebuild horizon for the existence index.
	ExistenceTTL time.Duration
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() Config {
	return Config{
		ContentCapacity: DefaultContentCapacity,
		ExistenceTTL:    DefaultExistenceTTL,
	}
}

// Manager owns the content cache, the reservation set, and the existence
// index. All path keys are folded to lower case for case-insensitive
// filesystem safety.
type Manager struct {
	lister Lister

	content *lru.Cache[string, string]

	mu         sync.Mutex
	reserved   map[string]struct{}
	index      map[string]struct{}
	indexBuilt time.Time
	existTTL   time.Duration
	clock      func() time.Time
}

// NewManager creates a cache manager over the given lister.
func NewManager(lister Lister, config Config) (*Manager, error) {
	if config.ContentCapacity <= 0 {
		config.ContentCapacity = DefaultContentCapacity
	}
	if config.ExistenceTTL <= 0 {
		config.ExistenceTTL = DefaultExistenceTTL
	}

	content, err := lru.New[string, string](config.ContentCapacity)
	if err != nil {
		return nil, err
	}

	return &Manager{
		lister:   lister,
		content:  content,
		reserved: make(map[string]struct{}),
		existTTL: config.ExistenceTTL,
		clock:    time.Now,
	}, nil
}

// SetClock injects a clock for tests.
func (m *Manager) SetClock(clock func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clock = clock
}

func fold(path string) string {
	return strings.ToLower(path)
}

// =============================================================================
// Content Cache
// =============================================================================

// SetContent stores document content under path. Eviction is purely by
// capacity, never by time.
func (m *Manager) SetContent(path, content string) {
	m.content.Add(fold(path), content)
}

// Content returns cached content for path, promoting the entry to
// most-recently-used.
func (m *Manager) Content(path string) (string, bool) {
	return m.content.Get(fold(path))
}

// InvalidateContent drops the cached content for path.
func (m *Manager) InvalidateContent(path string) {
	m.content.Remove(fold(path))
}

// ContentLen returns the number of cached entries, for diagnostics.
func (m *Manager) ContentLen() int {
	return m.content.Len()
}

// =============================================================================
// Reservations
// =============================================================================

// ReservePath claims a target path for an in-flight rename before it becomes
// visible to the host's own existence index.
func (m *Manager) ReservePath(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reserved[fold(path)] = struct{}{}
}

// ReleasePath releases a single reservation. Reservations are only ever
// released explicitly; a time-based release could silently unblock a path
// still being renamed.
func (m *Manager) ReleasePath(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.reserved, fold(path))
}

// ReleasePathsBatch releases every reservation in paths. Batch callers use
// it as their finally-block safety net.
func (m *Manager) ReleasePathsBatch(paths []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range paths {
		delete(m.reserved, fold(p))
	}
}

// ClearReservedPaths drops every reservation.
func (m *Manager) ClearReservedPaths() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reserved = make(map[string]struct{})
}

// IsReserved reports whether path is currently reserved.
func (m *Manager) IsReserved(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.reserved[fold(path)]
	return ok
}

// =============================================================================
// Existence Index
// =============================================================================

// Exists reports whether a document exists at path. If the index is younger
// than its TTL the answer comes from the cached set; otherwise the whole
// index is rebuilt from a full listing first. When the listing fails the
// host is queried directly.
func (m *Manager) Exists(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.index == nil || m.clock().Sub(m.indexBuilt) > m.existTTL {
		if !m.rebuildIndexLocked() {
			return m.lister.Exists(path)
		}
	}

	_, ok := m.index[fold(path)]
	return ok
}

// HasPathConflict reports whether path is unusable as a rename target:
// it exists on disk or is reserved by an in-flight operation.
func (m *Manager) HasPathConflict(path string) bool {
	m.mu.Lock()
	reserved := false
	if _, ok := m.reserved[fold(path)]; ok {
		reserved = true
	}
	m.mu.Unlock()

	if reserved {
		return true
	}
	return m.Exists(path)
}

// InvalidateIndex forces the next existence query to rebuild.
func (m *Manager) InvalidateIndex() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.index = nil
	m.indexBuilt = time.Time{}
}

// rebuildIndexLocked rebuilds the existence index from a full listing.
// Caller must hold m.mu. Returns false when the listing failed.
func (m *Manager) rebuildIndexLocked() bool {
	paths, err := m.lister.ListAll()
	if err != nil {
		return false
	}

	index := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		index[fold(p)] = struct{}{}
	}
	m.index = index
	m.indexBuilt = m.clock()
	return true
}

// =============================================================================
// Host Event Notifications
// =============================================================================

// NotifyCreated records a host-reported file creation.
func (m *Manager) NotifyCreated(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.index != nil {
		m.index[fold(path)] = struct{}{}
	}
}

// NotifyDeleted records a host-reported file deletion, dropping both the
// index entry and any cached content.
func (m *Manager) NotifyDeleted(path string) {
	m.mu.Lock()
	if m.index != nil {
		delete(m.index, fold(path))
	}
	m.mu.Unlock()

	m.content.Remove(fold(path))
}

// NotifyRenamed migrates the index entry and cached content from oldPath to
// newPath.
func (m *Manager) NotifyRenamed(oldPath, newPath string) {
	if fold(oldPath) == fold(newPath) {
		return
	}

	m.mu.Lock()
	if m.index != nil {
		delete(m.index, fold(oldPath))
		m.index[fold(newPath)] = struct{}{}
	}
	m.mu.Unlock()

	if content, ok := m.content.Get(fold(oldPath)); ok {
		m.content.Add(fold(newPath), content)
	}
	m.content.Remove(fold(oldPath))
}
