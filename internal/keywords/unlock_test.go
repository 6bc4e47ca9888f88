package keywords

import (
	"context"
	"strings"
	"testing"

	apperrors "github.com/nichepulse/nichepulse-go/internal/errors"
)

// lockedItem fetches the first page and returns a pointer to its first locked
// item, the way a list view would hold it.
func lockedItem(t *testing.T, h *harness) ([]Keyword, *Keyword) {
	t.Helper()
	items, err := h.svc.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	for i := range items {
		if items[i].IsLocked {
			return items, &items[i]
		}
	}
	t.Fatal("no locked item on the first page")
	return nil, nil
}

func TestUnlockFlow_AnonymousGate(t *testing.T) {
	h := newHarness(t)
	_, item := lockedItem(t, h)
	before := h.server.Requests("/keywords/" + item.ID + "/unlock")

	flow := h.svc.NewUnlockFlow(h.manager, item)
	if got := flow.Begin(); got != UnlockAnonymousGate {
		t.Fatalf("Begin() while anonymous = %s, want anonymous_gate", got)
	}

	// The login gate is reached without any network traffic.
	if got := h.server.Requests("/keywords/" + item.ID + "/unlock"); got != before {
		t.Error("anonymous gate made a network call")
	}
	if !item.IsLocked {
		t.Error("anonymous gate mutated the item")
	}
}

func TestUnlockFlow_ConfirmRevealsAndSpends(t *testing.T) {
	h := newHarness(t)
	user := h.login(t, 3)
	_, item := lockedItem(t, h)
	id := item.ID

	flow := h.svc.NewUnlockFlow(h.manager, item)
	if got := flow.Begin(); got != UnlockConfirmGate {
		t.Fatalf("Begin() = %s, want confirm_gate", got)
	}
	if cost, balance := flow.Cost(); cost != UnlockCost || balance != 3 {
		t.Fatalf("Cost() = (%d, %d), want (%d, 3)", cost, balance, UnlockCost)
	}

	if err := flow.Confirm(context.Background()); err != nil {
		t.Fatalf("Confirm() error = %v", err)
	}
	if got := flow.State(); got != UnlockUnlocked {
		t.Errorf("state = %s, want unlocked", got)
	}

	// The caller-held item has been patched with the revealed record.
	if item.IsLocked {
		t.Error("item is still locked after a confirmed unlock")
	}
	if item.Term == "" || item.Volume == 0 {
		t.Errorf("revealed item is missing premium fields: %+v", item)
	}

	// Exactly one credit was spent, and the refreshed session sees it.
	if got := h.server.Credits(user.ID); got != 2 {
		t.Errorf("server credits = %d, want 2", got)
	}
	if got := h.manager.User().Credits; got != 2 {
		t.Errorf("session credits = %d, want 2", got)
	}

	// The cache was invalidated, so the next list is a fresh fetch that
	// shows the item revealed.
	calls := h.server.Requests("/keywords")
	items, err := h.svc.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("List() after unlock error = %v", err)
	}
	if got := h.server.Requests("/keywords"); got != calls+1 {
		t.Error("List() after unlock served the stale cache")
	}
	for _, k := range items {
		if k.ID == id && k.IsLocked {
			t.Error("refetched list still shows the item locked")
		}
	}
}

func TestUnlockFlow_InsufficientCredits(t *testing.T) {
	h := newHarness(t)
	user := h.login(t, 0)
	_, item := lockedItem(t, h)

	flow := h.svc.NewUnlockFlow(h.manager, item)
	flow.Begin()

	err := flow.Confirm(context.Background())
	se := apperrors.GetServiceError(err)
	if se == nil || se.Status != 402 {
		t.Fatalf("Confirm() with no credits error = %v, want 402 remote rejection", err)
	}

	// Nothing local changed: the item stays locked, the balance stays put,
	// and the flow re-arms at the confirmation gate.
	if !item.IsLocked {
		t.Error("rejected unlock revealed the item locally")
	}
	if got := h.server.Credits(user.ID); got != 0 {
		t.Errorf("server credits = %d, want 0", got)
	}
	if got := flow.State(); got != UnlockConfirmGate {
		t.Errorf("state after rejection = %s, want confirm_gate", got)
	}
	if flow.Err() == nil {
		t.Error("Err() = nil after a rejected attempt")
	}
}

func TestUnlockFlow_ConfirmRequiresGate(t *testing.T) {
	h := newHarness(t)
	h.login(t, 3)
	_, item := lockedItem(t, h)

	flow := h.svc.NewUnlockFlow(h.manager, item)

	// Confirm before Begin is a programming error, not a network call.
	err := flow.Confirm(context.Background())
	if err == nil || !strings.Contains(err.Error(), "not confirmable") {
		t.Fatalf("Confirm() from locked state error = %v, want state guard", err)
	}
	if got := h.server.Requests("/keywords/" + item.ID + "/unlock"); got != 0 {
		t.Error("guarded Confirm() made a network call")
	}
}

func TestUnlockFlow_AlreadyUnlockedItem(t *testing.T) {
	h := newHarness(t)
	h.login(t, 3)

	items, err := h.svc.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	var open *Keyword
	for i := range items {
		if !items[i].IsLocked {
			open = &items[i]
			break
		}
	}
	if open == nil {
		t.Fatal("no open item on the first page")
	}

	flow := h.svc.NewUnlockFlow(h.manager, open)
	if got := flow.State(); got != UnlockUnlocked {
		t.Errorf("flow over an open item starts at %s, want unlocked", got)
	}
	if got := flow.Begin(); got != UnlockUnlocked {
		t.Errorf("Begin() over an open item = %s, want unlocked", got)
	}
}
