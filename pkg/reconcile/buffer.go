// Package reconcile merges a client's optimistic local appends with the
// authoritative server-confirmed records. The buffer keeps an ordered local
// view keyed by temporary id; a confirmation replaces the placeholder in
// place (never splices it elsewhere), and reconciling twice is a no-op so
// duplicate fanout events are harmless.
package reconcile

import (
	"sort"
	"sync"
	"time"

	"msgsync/pkg/models"
)

// State is the display state of a local entry.
type State string

const (
	// StatePending: appended locally, not yet confirmed by the server.
	StatePending State = "pending"
	// StateConfirmed: replaced by the authoritative record.
	StateConfirmed State = "confirmed"
	// StateFailed: the underlying append failed; the entry stays visible as
	// "failed, tap to retry" until the caller retries or discards it.
	StateFailed State = "failed"
)

// Entry is one row in the local ordered view.
type Entry struct {
	LocalID string
	State   State
	Msg     models.Message
}

// Buffer is a thread-scoped optimistic view. Safe for concurrent use.
type Buffer struct {
	Thread string

	mu      sync.Mutex
	order   []string
	entries map[string]*Entry
}

// NewBuffer builds a Buffer for one thread.
func NewBuffer(threadID string) *Buffer {
	return &Buffer{Thread: threadID, entries: map[string]*Entry{}}
}

// ApplyOptimistic inserts a placeholder message for a local append and
// returns it. The placeholder carries a provisional timestamp only for
// display; the confirmed record's server position wins on reconcile.
func (b *Buffer) ApplyOptimistic(localID, sender string, body models.Content) Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	e := &Entry{
		LocalID: localID,
		State:   StatePending,
		Msg: models.Message{
			ID:        localID,
			Thread:    b.Thread,
			Sender:    sender,
			Body:      body,
			CreatedTS: time.Now().UTC().UnixNano(),
		},
	}
	if _, ok := b.entries[localID]; !ok {
		b.order = append(b.order, localID)
	}
	b.entries[localID] = e
	return *e
}

// Reconcile replaces the placeholder with the confirmed record, preserving
// its list position. Returns false (no-op) when the placeholder is unknown
// or already reconciled, which guards against duplicate fanout events.
func (b *Buffer) Reconcile(localID string, confirmed models.Message) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[localID]
	if !ok || e.State == StateConfirmed {
		return false
	}
	e.State = StateConfirmed
	e.Msg = confirmed
	return true
}

// MarkFailed transitions a pending placeholder to the failed display state.
// Failed entries are never silently dropped; Discard removes them when the
// user gives up.
func (b *Buffer) MarkFailed(localID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[localID]
	if !ok || e.State == StateConfirmed {
		return false
	}
	e.State = StateFailed
	return true
}

// Retry flips a failed entry back to pending for a re-send with the same
// placeholder, so a transient append failure cannot create a duplicate.
func (b *Buffer) Retry(localID string) (Entry, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[localID]
	if !ok || e.State != StateFailed {
		return Entry{}, false
	}
	e.State = StatePending
	return *e, true
}

// Discard removes an entry (user dismissed a failed append).
func (b *Buffer) Discard(localID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.entries[localID]; !ok {
		return
	}
	delete(b.entries, localID)
	for i, id := range b.order {
		if id == localID {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

// Snapshot returns the entries in display order: confirmed records sort by
// their server (ts, seq) position; pending/failed placeholders keep their
// optimistic position at the tail in insertion order.
func (b *Buffer) Snapshot() []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Entry, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, *b.entries[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		ei, ej := out[i], out[j]
		if ei.State == StateConfirmed && ej.State == StateConfirmed {
			if ei.Msg.CreatedTS != ej.Msg.CreatedTS {
				return ei.Msg.CreatedTS < ej.Msg.CreatedTS
			}
			return ei.Msg.Seq < ej.Msg.Seq
		}
		// placeholders stay after confirmed rows, in insertion order
		if ei.State == StateConfirmed {
			return true
		}
		if ej.State == StateConfirmed {
			return false
		}
		return false
	})
	return out
}
