// Package inflight keeps at most one reorder per tree in flight.
//
// A reorder is computed against a snapshot of the record list. Until the store
// has applied it, a second reorder for the same tree would be planned against
// stale positions, so callers acquire the tree's slot before planning and
// release it once the mutation has been applied or has failed.
package inflight

import (
	"context"
	"fmt"
	"time"

	"github.com/starford/dagaz/internal/apperr"
)

// Slot is a single-owner lock keyed by tree.
type Slot interface {
	// Acquire claims the slot for token. It reports false when another token holds it.
	Acquire(ctx context.Context, tree, token string) (bool, error)
	// Release frees the slot if token still owns it.
	Release(ctx context.Context, tree, token string) error
}

// Policies for a request that finds the slot taken.
const (
	PolicyReject = "reject"
	PolicyWait   = "wait"
)

// Gate applies a policy on top of a Slot.
type Gate struct {
	slot    Slot
	policy  string
	timeout time.Duration
	poll    time.Duration
}

// NewGate wraps slot. With PolicyWait, Enter retries until timeout elapses.
func NewGate(slot Slot, policy string, timeout time.Duration) *Gate {
	if policy == "" {
		policy = PolicyReject
	}
	return &Gate{slot: slot, policy: policy, timeout: timeout, poll: 25 * time.Millisecond}
}

// Enter claims the tree's slot for token and returns a release func.
// It fails with apperr.ErrBusy when the slot stays taken.
func (g *Gate) Enter(ctx context.Context, tree, token string) (func(), error) {
	ok, err := g.slot.Acquire(ctx, tree, token)
	if err != nil {
		return nil, fmt.Errorf("inflight: acquire %s: %w", tree, err)
	}
	if !ok && g.policy == PolicyWait && g.timeout > 0 {
		ok, err = g.wait(ctx, tree, token)
		if err != nil {
			return nil, err
		}
	}
	if !ok {
		return nil, fmt.Errorf("inflight: tree %s: %w", tree, apperr.ErrBusy)
	}

	release := func() {
		// The request context may already be done; release must still happen.
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		_ = g.slot.Release(rctx, tree, token)
	}
	return release, nil
}

// Ping checks the slot backend when it is remote. In-process slots are
// always reachable.
func (g *Gate) Ping(ctx context.Context) error {
	p, ok := g.slot.(interface{ Ping(context.Context) error })
	if !ok {
		return nil
	}
	if err := p.Ping(ctx); err != nil {
		return fmt.Errorf("inflight: ping: %w", err)
	}
	return nil
}

func (g *Gate) wait(ctx context.Context, tree, token string) (bool, error) {
	wctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	ticker := time.NewTicker(g.poll)
	defer ticker.Stop()
	for {
		select {
		case <-wctx.Done():
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			return false, nil
		case <-ticker.C:
			ok, err := g.slot.Acquire(ctx, tree, token)
			if err != nil {
				return false, fmt.Errorf("inflight: acquire %s: %w", tree, err)
			}
			if ok {
				return true, nil
			}
		}
	}
}
