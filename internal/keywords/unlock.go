package keywords

import (
	"context"
	"fmt"
	"sync"

	"github.com/nichepulse/nichepulse-go/internal/metrics"
	"github.com/nichepulse/nichepulse-go/internal/session"
)

// UnlockCost is the number of credits one reveal spends. The remote service
// enforces the actual charge; this is only what the confirmation gate shows.
const UnlockCost = 1

// UnlockState is a step in the unlock flow.
type UnlockState string

const (
	// UnlockLocked is the resting state of a locked item.
	UnlockLocked UnlockState = "locked"
	// UnlockAnonymousGate means the viewer must log in before unlocking.
	// Reaching it makes no network call: an anonymous unlock is a
	// guaranteed 401, so the flow short-circuits client-side.
	UnlockAnonymousGate UnlockState = "anonymous_gate"
	// UnlockConfirmGate presents the cost and balance before spending.
	UnlockConfirmGate UnlockState = "confirm_gate"
	// UnlockUnlocking means the remote call is in flight. Confirm is
	// disabled in this state, so one item cannot be unlocked twice
	// concurrently from the same flow.
	UnlockUnlocking UnlockState = "unlocking"
	// UnlockUnlocked is terminal: the server confirmed the reveal.
	UnlockUnlocked UnlockState = "unlocked"
	// UnlockFailed is reported after a rejected attempt; the flow re-arms
	// at the confirmation gate.
	UnlockFailed UnlockState = "failed"
)

// UnlockFlow walks one locked item through Locked -> {AnonymousGate |
// ConfirmGate} -> Unlocking -> {Unlocked | Failed}.
//
// The caller-held item is only ever patched after a server-confirmed
// success. Credits are a real scarce resource: a false-positive unlock would
// show premium data the server never agreed to release, so nothing here is
// optimistic.
type UnlockFlow struct {
	mu      sync.Mutex
	svc     *Service
	session *session.Manager
	item    *Keyword
	state   UnlockState
	lastErr error
}

// NewUnlockFlow creates a flow for the given item. The pointer must address
// the caller's live copy (e.g. an element of the slice backing the list
// view) so a confirmed reveal patches what the caller renders.
func (s *Service) NewUnlockFlow(sess *session.Manager, item *Keyword) *UnlockFlow {
	state := UnlockLocked
	if !item.IsLocked {
		state = UnlockUnlocked
	}
	return &UnlockFlow{
		svc:     s,
		session: sess,
		item:    item,
		state:   state,
	}
}

// State returns the current flow state.
func (f *UnlockFlow) State() UnlockState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Err returns the error from the last failed attempt, if any.
func (f *UnlockFlow) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastErr
}

// Cost returns the gate's display data: the credit cost and the viewer's
// current balance.
func (f *UnlockFlow) Cost() (cost, balance int) {
	balance = 0
	if user := f.session.User(); user != nil {
		balance = user.Credits
	}
	return UnlockCost, balance
}

// Begin advances from Locked to the appropriate gate. Anonymous viewers land
// on the login gate without any network traffic.
func (f *UnlockFlow) Begin() UnlockState {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch f.state {
	case UnlockLocked, UnlockAnonymousGate, UnlockConfirmGate, UnlockFailed:
	default:
		return f.state
	}

	if !f.session.IsAuthenticated() {
		f.state = UnlockAnonymousGate
	} else {
		f.state = UnlockConfirmGate
	}
	return f.state
}

// Confirm spends one credit to reveal the item. Valid only from the
// confirmation gate; a second Confirm while one is in flight fails
// immediately without a remote call.
//
// On success the target item is patched in place, the caches are
// invalidated, and the session is refreshed to pick up the decremented
// balance. On failure nothing local changes - the remote service is the sole
// source of truth for whether a credit was actually spent.
func (f *UnlockFlow) Confirm(ctx context.Context) error {
	f.mu.Lock()
	if f.state != UnlockConfirmGate {
		state := f.state
		f.mu.Unlock()
		return fmt.Errorf("keywords: unlock not confirmable from state %q", state)
	}
	f.state = UnlockUnlocking
	f.lastErr = nil
	id := f.item.ID
	f.mu.Unlock()

	revealed, err := f.svc.unlock(ctx, id)
	if err != nil {
		metrics.ObserveUnlock("failed")
		f.mu.Lock()
		f.state = UnlockConfirmGate
		f.lastErr = err
		f.mu.Unlock()
		return err
	}

	f.mu.Lock()
	*f.item = revealed
	f.item.IsLocked = false
	f.state = UnlockUnlocked
	f.mu.Unlock()

	metrics.ObserveUnlock("success")

	// Pick up the decremented balance. The unlock response itself may have
	// carried it via the interceptor; the explicit refresh covers services
	// that do not.
	if err := f.session.Refresh(ctx, false); err != nil {
		f.svc.logger.WithContext(ctx).WithError(err).Warn("post-unlock session refresh failed")
	}
	return nil
}
