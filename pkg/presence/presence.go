// Package presence tracks ephemeral signals: who is typing in a thread and
// who is online. Nothing here is persisted; signals expire on their own and
// never touch thread activity or unread counts.
package presence

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"msgsync/pkg/directory"
	"msgsync/pkg/logger"
	"msgsync/pkg/store"
)

// Tracker holds live typing and online state.
type Tracker struct {
	ttl time.Duration
	dir *directory.Cache

	mu sync.Mutex
	// typing: thread -> user -> expiry
	typing map[string]map[string]time.Time
	// conns counts open connections per user; lastSeen is set on disconnect
	conns    map[string]int
	lastSeen map[string]int64

	stop chan struct{}
	once sync.Once
}

// NewTracker builds a Tracker whose signals expire after ttl. The directory
// cache is used to render aggregated indicator lines.
func NewTracker(ttl time.Duration, dir *directory.Cache) *Tracker {
	if ttl <= 0 {
		ttl = 6 * time.Second
	}
	return &Tracker{
		ttl:      ttl,
		dir:      dir,
		typing:   map[string]map[string]time.Time{},
		conns:    map[string]int{},
		lastSeen: map[string]int64{},
		stop:     make(chan struct{}),
	}
}

// StartSweeping launches the expiry sweep loop. Signals also expire lazily
// on read, so the sweeper only bounds memory for threads nobody looks at.
func (t *Tracker) StartSweeping(interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}
	go func() {
		tick := time.NewTicker(interval)
		defer tick.Stop()
		for {
			select {
			case <-tick.C:
				t.sweep(time.Now())
			case <-t.stop:
				return
			}
		}
	}()
}

// Stop shuts the sweep loop down.
func (t *Tracker) Stop() {
	t.once.Do(func() { close(t.stop) })
}

// StartTyping records (or refreshes) a typing signal for user in thread.
// Callers refresh by repeating the call while composition is active.
func (t *Tracker) StartTyping(threadID, user string) {
	t.mu.Lock()
	if t.typing[threadID] == nil {
		t.typing[threadID] = map[string]time.Time{}
	}
	t.typing[threadID][user] = time.Now().Add(t.ttl)
	t.mu.Unlock()
	t.updateGauge()
}

// StopTyping clears the signal early; expiry handles clients that vanish.
func (t *Tracker) StopTyping(threadID, user string) {
	t.mu.Lock()
	if m := t.typing[threadID]; m != nil {
		delete(m, user)
		if len(m) == 0 {
			delete(t.typing, threadID)
		}
	}
	t.mu.Unlock()
	t.updateGauge()
}

// TypingIn returns the users with an unexpired typing signal in the thread,
// excluding the given user (nobody needs their own indicator).
func (t *Tracker) TypingIn(threadID, exclude string) []string {
	now := time.Now()
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []string
	for user, exp := range t.typing[threadID] {
		if exp.Before(now) {
			delete(t.typing[threadID], user)
			continue
		}
		if user != exclude {
			out = append(out, user)
		}
	}
	if len(t.typing[threadID]) == 0 {
		delete(t.typing, threadID)
	}
	return out
}

// Indicator renders one human-readable line aggregating all simultaneous
// typers, e.g. "Maya and Jonas are typing…". Returns "" when nobody types.
func (t *Tracker) Indicator(ctx context.Context, tenant, threadID, exclude string) (string, error) {
	ids := t.TypingIn(threadID, exclude)
	if len(ids) == 0 {
		return "", nil
	}
	names := make([]string, 0, len(ids))
	if t.dir != nil {
		profiles, err := t.dir.Lookup(ctx, tenant, ids)
		if err != nil {
			logger.Log.Warn("typing_name_lookup_failed", zap.Error(err))
		}
		for _, p := range profiles {
			names = append(names, p.DisplayName)
		}
	}
	if len(names) == 0 {
		names = ids
	}
	switch len(names) {
	case 1:
		return names[0] + " is typing…", nil
	case 2:
		return names[0] + " and " + names[1] + " are typing…", nil
	default:
		return fmt.Sprintf("%s, %s and %d others are typing…", names[0], names[1], len(names)-2), nil
	}
}

// Connected records a live connection for user.
func (t *Tracker) Connected(user string) {
	t.mu.Lock()
	t.conns[user]++
	t.mu.Unlock()
}

// Disconnected drops a connection and stamps last-seen when it was the last.
func (t *Tracker) Disconnected(user string) {
	t.mu.Lock()
	if t.conns[user] > 0 {
		t.conns[user]--
	}
	if t.conns[user] == 0 {
		delete(t.conns, user)
		t.lastSeen[user] = time.Now().UTC().UnixNano()
	}
	t.mu.Unlock()
}

// Online reports whether the user has at least one live connection.
func (t *Tracker) Online(user string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conns[user] > 0
}

// LastSeen returns the last disconnect timestamp (ns) and whether one exists.
func (t *Tracker) LastSeen(user string) (int64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ts, ok := t.lastSeen[user]
	return ts, ok
}

func (t *Tracker) sweep(now time.Time) {
	t.mu.Lock()
	for threadID, users := range t.typing {
		for user, exp := range users {
			if exp.Before(now) {
				delete(users, user)
			}
		}
		if len(users) == 0 {
			delete(t.typing, threadID)
		}
	}
	t.mu.Unlock()
	t.updateGauge()
}

func (t *Tracker) updateGauge() {
	t.mu.Lock()
	n := 0
	for _, users := range t.typing {
		n += len(users)
	}
	t.mu.Unlock()
	store.TypingActiveGauge.Set(float64(n))
}
