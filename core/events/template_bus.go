// Package events carries the asynchronous signals titlekeep consumes from
// external integrations. The only channel currently defined is the
// templating integration's "template applied" event, scoped by target path.
package events

import (
	"context"
	"strings"
	"sync"
	"time"
)

// =============================================================================
// TemplateAppliedEvent
// =============================================================================

// TemplateAppliedEvent announces that the templating integration finished
// populating a newly created document.
type TemplateAppliedEvent struct {
	// Path is the document the template was applied to.
	Path string

	// Content is the populated document content after templating.
	Content string

	// Time is when the integration reported completion.
	Time time.Time
}

// =============================================================================
// TemplateBus
// =============================================================================

// TemplateBus delivers template-applied events to path-scoped waiters.
// A waiter registers for one specific path and receives at most one event;
// events for paths with no waiter are dropped.
type TemplateBus struct {
	mu      sync.Mutex
	waiters map[string][]chan TemplateAppliedEvent
}

// NewTemplateBus creates an empty bus.
func NewTemplateBus() *TemplateBus {
	return &TemplateBus{
		waiters: make(map[string][]chan TemplateAppliedEvent),
	}
}

func fold(path string) string {
	return strings.ToLower(path)
}

// Publish delivers an event to every waiter registered for its path and
// unregisters them.
func (b *TemplateBus) Publish(event TemplateAppliedEvent) {
	k := fold(event.Path)

	b.mu.Lock()
	chans := b.waiters[k]
	delete(b.waiters, k)
	b.mu.Unlock()

	for _, ch := range chans {
		// Waiter channels are buffered; a waiter that already gave up
		// simply never reads the value.
		ch <- event
	}
}

// WaitFor blocks until an event for path arrives, the timeout lapses, or the
// context is cancelled. The second return is false on timeout/cancellation.
func (b *TemplateBus) WaitFor(ctx context.Context, path string, timeout time.Duration) (TemplateAppliedEvent, bool) {
	if timeout <= 0 {
		return TemplateAppliedEvent{}, false
	}

	ch := make(chan TemplateAppliedEvent, 1)
	k := fold(path)

	b.mu.Lock()
	b.waiters[k] = append(b.waiters[k], ch)
	b.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case event := <-ch:
		return event, true
	case <-timer.C:
		b.drop(k, ch)
		return TemplateAppliedEvent{}, false
	case <-ctx.Done():
		b.drop(k, ch)
		return TemplateAppliedEvent{}, false
	}
}

// drop unregisters a single waiter channel for a path key.
func (b *TemplateBus) drop(k string, ch chan TemplateAppliedEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	chans := b.waiters[k]
	for i, c := range chans {
		if c == ch {
			b.waiters[k] = append(chans[:i], chans[i+1:]...)
			break
		}
	}
	if len(b.waiters[k]) == 0 {
		delete(b.waiters, k)
	}
}
