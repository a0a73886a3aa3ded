package state

import "time"

// =============================================================================
// Timer Slots
// =============================================================================
//
// Each document has at most one creation-delay timer and one throttle timer.
// Setting a new timer always cancels the prior one for the same slot, so
// rapid successive events collapse into a single callback. Cancellation is
// total: deletion, rename, and store teardown stop every live timer before
// state is dropped, so a callback never fires against a stale path.
//
// A timer that expires races its own cancellation: Stop can return after the
// callback goroutine has already started. Every armed timer therefore carries
// a generation number from a store-wide counter, and the callback claims its
// slot through takeTimer before invoking fn. A callback whose generation no
// longer matches the slot, because the timer was replaced or cancelled in the
// meantime, is a no-op.

// SetCreationDelay schedules fn after d, replacing any prior creation-delay
// timer for path.
func (s *Store) SetCreationDelay(path string, d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fs := s.get(path)
	if fs.creationDelay != nil {
		fs.creationDelay.Stop()
	}
	s.timerSeq++
	seq := s.timerSeq
	fs.creationDelaySeq = seq
	fs.creationDelay = time.AfterFunc(d, func() {
		if !s.takeTimer(path, timerCreationDelay, seq) {
			return
		}
		fn()
	})
}

// SetThrottle schedules fn after d, replacing any prior throttle timer
// for path.
func (s *Store) SetThrottle(path string, d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fs := s.get(path)
	if fs.throttle != nil {
		fs.throttle.Stop()
	}
	s.timerSeq++
	seq := s.timerSeq
	fs.throttleSeq = seq
	fs.throttle = time.AfterFunc(d, func() {
		if !s.takeTimer(path, timerThrottle, seq) {
			return
		}
		fn()
	})
}

// CancelTimers stops both timer slots for path.
func (s *Store) CancelTimers(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelTimersLocked(path)
}

// CancelAllTimers stops every live timer in the store. Used at teardown.
func (s *Store) CancelAllTimers() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k := range s.files {
		s.cancelTimersLocked(k)
	}
}

type timerSlot int

const (
	timerCreationDelay timerSlot = iota
	timerThrottle
)

// takeTimer claims a fired timer's slot: it clears the handle and reports
// whether the callback may run. The claim fails when the slot was replaced
// or cancelled after this timer was armed.
func (s *Store) takeTimer(path string, slot timerSlot, seq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	fs, ok := s.peek(path)
	if !ok {
		return false
	}
	switch slot {
	case timerCreationDelay:
		if fs.creationDelay == nil || fs.creationDelaySeq != seq {
			return false
		}
		fs.creationDelay = nil
	case timerThrottle:
		if fs.throttle == nil || fs.throttleSeq != seq {
			return false
		}
		fs.throttle = nil
	}
	s.pruneLocked(path)
	return true
}

// cancelTimersLocked stops both timers for path. Caller must hold s.mu.
func (s *Store) cancelTimersLocked(path string) {
	fs, ok := s.peek(path)
	if !ok {
		return
	}
	if fs.creationDelay != nil {
		fs.creationDelay.Stop()
		fs.creationDelay = nil
	}
	if fs.throttle != nil {
		fs.throttle.Stop()
		fs.throttle = nil
	}
	s.pruneLocked(path)
}
