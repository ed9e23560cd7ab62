package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/oddfellowcoffee/storefront-backend/pkg/config"
	"github.com/oddfellowcoffee/storefront-backend/pkg/logger"
	"github.com/oddfellowcoffee/storefront-backend/pkg/security"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

func testRouterConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Env:     "test",
			Port:    "8080",
			SiteURL: "https://shop.example.com",
		},
		Admin: config.AdminConfig{Token: "admin-secret"},
		RateLimit: config.RateLimitConfig{
			CheckoutWindow:  time.Minute,
			CheckoutIPLimit: 10,
			WebhookWindow:   time.Minute,
			WebhookLimit:    120,
		},
		Subscriptions: config.SubscriptionsConfig{
			ManageTokenSecret: "manage-secret",
			ManageTokenTTL:    time.Hour,
		},
	}
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	cfg := testRouterConfig()
	logg := logger.New(logger.Options{ServiceName: "routes-test", Output: io.Discard})
	signer, err := security.NewTokenSigner(cfg.Subscriptions.ManageTokenSecret)
	if err != nil {
		t.Fatalf("signer setup: %v", err)
	}
	return NewRouter(
		cfg,
		logg,
		stubPinger{},
		nil, // redis
		nil, // products
		nil, // drops
		nil, // orders
		nil, // subscriptions
		nil, // reservations
		nil, // checkout
		nil, // settings
		nil, // notifications
		nil, // shipping export
		nil, // payments
		nil, // stripe
		nil, // webhook guard
		nil, // webhook metrics
		signer,
	)
}

func TestRouter_HealthLive(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
}

func TestRouter_AdminRequiresBearerToken(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/orders", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/api/admin/v1/orders", nil)
	req2.Header.Set("Authorization", "Bearer wrong-token")
	rec2 := httptest.NewRecorder()
	router.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", rec2.Code)
	}
}

func TestRouter_UnknownRoute(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/nope", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
