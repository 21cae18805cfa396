package inflight

import (
	"context"
	"sync"
	"time"
)

type holder struct {
	token   string
	expires time.Time
}

// Local is an in-process Slot. Entries expire after ttl so a crashed request
// cannot wedge a tree forever.
type Local struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	slots map[string]holder
}

// NewLocal creates a Local slot with the given expiry.
func NewLocal(ttl time.Duration) *Local {
	return &Local{ttl: ttl, now: time.Now, slots: make(map[string]holder)}
}

// Acquire implements Slot.
func (l *Local) Acquire(_ context.Context, tree, token string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if h, ok := l.slots[tree]; ok && h.token != token && (l.ttl <= 0 || now.Before(h.expires)) {
		return false, nil
	}
	l.slots[tree] = holder{token: token, expires: now.Add(l.ttl)}
	return true, nil
}

// Release implements Slot.
func (l *Local) Release(_ context.Context, tree, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if h, ok := l.slots[tree]; ok && h.token == token {
		delete(l.slots, tree)
	}
	return nil
}

// pending reports whether tree currently has a live reorder.
func (l *Local) pending(tree string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	h, ok := l.slots[tree]
	return ok && (l.ttl <= 0 || l.now().Before(h.expires))
}
