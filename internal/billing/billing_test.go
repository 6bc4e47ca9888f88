package billing

import (
	"context"
	"strings"
	"testing"

	"github.com/nichepulse/nichepulse-go/internal/api"
	apperrors "github.com/nichepulse/nichepulse-go/internal/errors"
	"github.com/nichepulse/nichepulse-go/internal/identity"
	"github.com/nichepulse/nichepulse-go/pkg/apitest"
)

func newService(t *testing.T) (*Service, *apitest.Server, *identity.Store) {
	t.Helper()

	server := apitest.New()
	t.Cleanup(server.Close)

	store := identity.NewStore(identity.NewMemoryStorage(), "testapp")
	client, err := api.New(api.Config{
		BaseURL:     server.URL,
		TokenSource: store.Token,
		Interceptor: &api.Interceptor{Store: store},
	})
	if err != nil {
		t.Fatalf("api.New() error = %v", err)
	}
	return NewService(client, nil), server, store
}

func TestCheckoutURL(t *testing.T) {
	svc, server, store := newService(t)
	user := server.CreateUser("ana@example.com", 0)
	if err := store.Set(server.TokenFor(user), &identity.User{ID: user.ID, Email: user.Email}); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	plan, ok := PlanByID("pro-monthly")
	if !ok {
		t.Fatal("pro-monthly plan missing from catalog")
	}

	url, err := svc.CheckoutURL(context.Background(), plan)
	if err != nil {
		t.Fatalf("CheckoutURL() error = %v", err)
	}
	if !strings.Contains(url, "/checkout/") {
		t.Errorf("CheckoutURL() = %q, want a checkout session URL", url)
	}
}

// A plan without a price identifier is a local configuration failure; it is
// recovered by sending the viewer to the pricing page, not surfaced as an
// error.
func TestCheckoutURL_MissingPriceFallsBack(t *testing.T) {
	svc, server, _ := newService(t)

	url, err := svc.CheckoutURL(context.Background(), Plan{ID: "broken", Name: "Broken"})
	if err != nil {
		t.Fatalf("CheckoutURL() error = %v, want nil with fallback", err)
	}
	if url != FallbackURL {
		t.Errorf("CheckoutURL() = %q, want %q", url, FallbackURL)
	}
	if got := server.Requests(pathCheckout); got != 0 {
		t.Error("misconfigured plan still hit the network")
	}
}

func TestCheckoutURL_RequiresAuth(t *testing.T) {
	svc, _, _ := newService(t)

	_, err := svc.CheckoutURL(context.Background(), Plans[0])
	if !apperrors.IsUnauthorized(err) {
		t.Errorf("anonymous CheckoutURL() error = %v, want unauthorized", err)
	}
}

func TestPlanByID_Unknown(t *testing.T) {
	if _, ok := PlanByID("no-such-plan"); ok {
		t.Error("PlanByID() found a plan that does not exist")
	}
}
