// Package billing creates checkout redirects. Payment itself is an opaque
// remote concern: this layer only asks for a session URL and hands it to the
// caller.
package billing

import (
	"context"
	"net/http"

	"github.com/nichepulse/nichepulse-go/internal/api"
	apperrors "github.com/nichepulse/nichepulse-go/internal/errors"
	"github.com/nichepulse/nichepulse-go/internal/logging"
)

const pathCheckout = "/billing/checkout"

// FallbackURL is where a viewer lands when a plan is misconfigured. A
// missing price identifier is a local configuration failure recovered by
// sending the viewer to the pricing page rather than surfacing a hard error.
const FallbackURL = "https://nichepulse.io/pricing"

// Plan is a purchasable subscription tier.
type Plan struct {
	ID       string
	Name     string
	PriceID  string
	Interval string // "month" or "year"
}

// Plans are the tiers offered by the dashboard.
var Plans = []Plan{
	{ID: "starter-monthly", Name: "Starter", PriceID: "price_starter_m", Interval: "month"},
	{ID: "starter-yearly", Name: "Starter", PriceID: "price_starter_y", Interval: "year"},
	{ID: "pro-monthly", Name: "Pro", PriceID: "price_pro_m", Interval: "month"},
	{ID: "pro-yearly", Name: "Pro", PriceID: "price_pro_y", Interval: "year"},
}

// PlanByID looks up a plan.
func PlanByID(id string) (Plan, bool) {
	for _, p := range Plans {
		if p.ID == id {
			return p, true
		}
	}
	return Plan{}, false
}

// Service creates checkout sessions.
type Service struct {
	client *api.Client
	logger *logging.Logger
}

// NewService creates a billing service.
func NewService(client *api.Client, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{client: client, logger: logger}
}

// CheckoutURL asks the remote service for a payment session and returns the
// redirect URL. A plan without a price identifier falls back to the pricing
// page instead of failing.
func (s *Service) CheckoutURL(ctx context.Context, plan Plan) (string, error) {
	if plan.PriceID == "" {
		cfgErr := apperrors.Config("plan is missing a price identifier").
			WithDetails("plan", plan.ID)
		s.logger.WithContext(ctx).WithError(cfgErr).Warn("falling back to pricing page")
		return FallbackURL, nil
	}

	resp, err := api.Do[struct {
		URL string `json:"url"`
	}](ctx, s.client, http.MethodPost, pathCheckout, map[string]string{
		"price_id": plan.PriceID,
	})
	if err != nil {
		return "", err
	}
	if resp.URL == "" {
		return "", apperrors.InvalidResponse("checkout response is missing the URL")
	}
	return resp.URL, nil
}
