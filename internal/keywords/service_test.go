package keywords

import (
	"context"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/nichepulse/nichepulse-go/internal/api"
	apperrors "github.com/nichepulse/nichepulse-go/internal/errors"
	"github.com/nichepulse/nichepulse-go/internal/identity"
	"github.com/nichepulse/nichepulse-go/internal/session"
	"github.com/nichepulse/nichepulse-go/pkg/apitest"
)

type harness struct {
	server  *apitest.Server
	store   *identity.Store
	manager *session.Manager
	svc     *Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	server := apitest.New()
	t.Cleanup(server.Close)

	store := identity.NewStore(identity.NewMemoryStorage(), "testapp")
	interceptor := &api.Interceptor{Store: store}
	client, err := api.New(api.Config{
		BaseURL:     server.URL,
		TokenSource: store.Token,
		Interceptor: interceptor,
	})
	if err != nil {
		t.Fatalf("api.New() error = %v", err)
	}

	manager := session.New(session.Config{Store: store, Client: client})
	interceptor.OnUnauthorized = manager.HandleUnauthorized
	interceptor.OnUserUpdate = manager.HandleUserUpdate

	svc := NewService(Config{Client: client, PageSize: 10})
	return &harness{server: server, store: store, manager: manager, svc: svc}
}

func (h *harness) login(t *testing.T, credits int) *apitest.User {
	t.Helper()
	user := h.server.CreateUser("ana@example.com", credits)
	if err := h.manager.LoginWithCode(context.Background(), h.server.CodeFor(user)); err != nil {
		t.Fatalf("LoginWithCode() error = %v", err)
	}
	return user
}

func TestList_ReadThrough(t *testing.T) {
	h := newHarness(t)

	first, err := h.svc.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(first) != 10 {
		t.Fatalf("List() returned %d items, want 10", len(first))
	}
	if got := h.server.Requests("/keywords"); got != 1 {
		t.Fatalf("/keywords calls after first List = %d, want 1", got)
	}

	// A fresh cache entry is served without a network call.
	second, err := h.svc.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if got := h.server.Requests("/keywords"); got != 1 {
		t.Errorf("/keywords calls after cache hit = %d, want still 1", got)
	}
	if len(second) != len(first) || second[0].ID != first[0].ID {
		t.Error("cache hit returned different items than the fetch")
	}
}

func TestList_DistinctPages(t *testing.T) {
	h := newHarness(t)

	page0, err := h.svc.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("List(0) error = %v", err)
	}
	page1, err := h.svc.List(context.Background(), 1)
	if err != nil {
		t.Fatalf("List(1) error = %v", err)
	}

	if got := h.server.Requests("/keywords"); got != 2 {
		t.Errorf("/keywords calls = %d, want 2 (one per page)", got)
	}
	if page0[0].ID == page1[0].ID {
		t.Error("page 0 and page 1 returned the same leading item")
	}
}

func TestList_ExpiredEntryRefetches(t *testing.T) {
	h := newHarness(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	h.svc.PageCache().SetClock(func() time.Time { return now })

	if _, err := h.svc.List(context.Background(), 0); err != nil {
		t.Fatalf("List() error = %v", err)
	}

	now = now.Add(defaultPageCacheTTL + time.Second)
	if _, err := h.svc.List(context.Background(), 0); err != nil {
		t.Fatalf("List() after expiry error = %v", err)
	}
	if got := h.server.Requests("/keywords"); got != 2 {
		t.Errorf("/keywords calls = %d, want 2 after TTL expiry", got)
	}
}

func TestList_NegativePage(t *testing.T) {
	h := newHarness(t)
	if _, err := h.svc.List(context.Background(), -1); err == nil {
		t.Error("List(-1) succeeded, want error")
	}
}

func TestList_LockedItemsAreTeasers(t *testing.T) {
	h := newHarness(t)

	items, err := h.svc.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	sawLocked := false
	for _, k := range items {
		if !k.IsLocked {
			continue
		}
		sawLocked = true
		if k.Term != "" || k.Volume != 0 {
			t.Errorf("locked item %s leaked premium fields: %+v", k.ID, k)
		}
		if k.Highlight == "" {
			t.Errorf("locked item %s is missing its teaser highlight", k.ID)
		}
	}
	if !sawLocked {
		t.Error("first page contained no locked items; fixture assumption broken")
	}
}

func TestLive_ReadThrough(t *testing.T) {
	h := newHarness(t)

	if _, err := h.svc.Live(context.Background()); err != nil {
		t.Fatalf("Live() error = %v", err)
	}
	if _, err := h.svc.Live(context.Background()); err != nil {
		t.Fatalf("Live() error = %v", err)
	}
	if got := h.server.Requests("/keywords/live"); got != 1 {
		t.Errorf("/keywords/live calls = %d, want 1 (second read cached)", got)
	}
}

func TestRefreshLive_BypassesCache(t *testing.T) {
	h := newHarness(t)

	if _, err := h.svc.Live(context.Background()); err != nil {
		t.Fatalf("Live() error = %v", err)
	}
	if _, err := h.svc.RefreshLive(context.Background()); err != nil {
		t.Fatalf("RefreshLive() error = %v", err)
	}
	if got := h.server.Requests("/keywords/live"); got != 2 {
		t.Errorf("/keywords/live calls = %d, want 2 (refresh always fetches)", got)
	}
}

func TestList_RateLimited(t *testing.T) {
	h := newHarness(t)
	h.server.SetRateLimit(rate.Limit(0.001), 0)

	_, err := h.svc.List(context.Background(), 0)
	se := apperrors.GetServiceError(err)
	if se == nil || se.Code != apperrors.CodeRemote || se.Status != 429 {
		t.Errorf("rate-limited List() error = %v, want remote rejection with status 429", err)
	}
}

func TestPoller_StartStop(t *testing.T) {
	h := newHarness(t)
	p := NewPoller(h.svc, time.Second, nil)

	if err := p.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := p.Start(); err == nil {
		t.Error("second Start() succeeded, want error")
	}

	p.Stop()
	p.Stop() // stopping a stopped poller is a no-op

	if err := p.Start(); err != nil {
		t.Errorf("Start() after Stop() error = %v", err)
	}
	p.Stop()
}
