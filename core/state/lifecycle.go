package state

import "time"

// =============================================================================
// Rename / Delete Migration
// =============================================================================

// NotifyRenamed migrates the entire record from oldPath to newPath in one
// step: after it returns, every getter for oldPath reports empty and every
// prior value is retrievable under newPath.
func (s *Store) NotifyRenamed(oldPath, newPath string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	oldKey, newKey := key(oldPath), key(newPath)
	if oldKey == newKey {
		return
	}

	fs, ok := s.files[oldKey]
	if !ok {
		return
	}

	delete(s.files, oldKey)
	s.files[newKey] = fs
}

// NotifyDeleted drops all state for path. Live timers are cancelled first so
// no callback fires against the dead path.
func (s *Store) NotifyDeleted(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelTimersLocked(path)
	delete(s.files, key(path))
}

// =============================================================================
// Maintenance Sweep
// =============================================================================

// Maintain walks every record and ages out expired payloads: operation data,
// fresh-read flags, renamed guards, abandoned locks, content snapshots,
// alias status, and notice stamps, each on its own horizon. Records left
// with no payload are deleted. The sweep is idempotent: running it twice in
// immediate succession changes nothing the second time. The caller schedules
// it; the store never self-schedules.
func (s *Store) Maintain() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	for k, fs := range s.files {
		s.sweepRecord(fs, now)
		if fs.empty() {
			delete(s.files, k)
		}
	}
}

func (s *Store) sweepRecord(fs *fileState, now time.Time) {
	if fs.opData != nil && now.Sub(fs.opData.LastUpdate) > OperationDataMaxAge {
		fs.opData = nil
	}
	if fs.needsFreshRead && now.Sub(fs.freshReadFlagged) > FreshReadFlagMaxAge {
		fs.needsFreshRead = false
		fs.freshReadFlagged = time.Time{}
	}
	if !fs.renamedAt.IsZero() && now.Sub(fs.renamedAt) > RenamedFlagMaxAge {
		fs.renamedAt = time.Time{}
	}
	if fs.locked && now.Sub(fs.lockAcquiredAt) > LockMaxAge {
		// Deadlock safeguard: the holder crashed mid-operation.
		fs.locked = false
		fs.lockAcquiredAt = time.Time{}
	}
	if fs.editorContent != nil && now.Sub(fs.editorContent.CapturedAt) > SnapshotMaxAge {
		fs.editorContent = nil
	}
	if fs.savedContent != nil && now.Sub(fs.savedContent.CapturedAt) > SnapshotMaxAge {
		fs.savedContent = nil
	}
	if fs.titleRegion != nil && now.Sub(fs.titleRegion.UpdatedAt) > SnapshotMaxAge {
		fs.titleRegion = nil
	}
	if fs.pendingAliasRecheck && now.Sub(fs.aliasFlaggedAt) > AliasStatusMaxAge {
		fs.pendingAliasRecheck = false
		fs.pendingAliasEditor = nil
		fs.aliasFlaggedAt = time.Time{}
	}
	for i := range fs.noticeAt {
		if !fs.noticeAt[i].IsZero() && now.Sub(fs.noticeAt[i]) > NoticeMaxAge {
			fs.noticeAt[i] = time.Time{}
		}
	}
}
