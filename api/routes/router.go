package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/oddfellowcoffee/storefront-backend/api/controllers"
	webhookcontrollers "github.com/oddfellowcoffee/storefront-backend/api/controllers/webhooks"
	"github.com/oddfellowcoffee/storefront-backend/api/middleware"
	checkoutsvc "github.com/oddfellowcoffee/storefront-backend/internal/checkout"
	dropsvc "github.com/oddfellowcoffee/storefront-backend/internal/drops"
	"github.com/oddfellowcoffee/storefront-backend/internal/exports"
	"github.com/oddfellowcoffee/storefront-backend/internal/notifications"
	ordersvc "github.com/oddfellowcoffee/storefront-backend/internal/orders"
	"github.com/oddfellowcoffee/storefront-backend/internal/payments"
	productsvc "github.com/oddfellowcoffee/storefront-backend/internal/products"
	reservationsvc "github.com/oddfellowcoffee/storefront-backend/internal/reservations"
	settingsvc "github.com/oddfellowcoffee/storefront-backend/internal/settings"
	subscriptionsvc "github.com/oddfellowcoffee/storefront-backend/internal/subscriptions"
	"github.com/oddfellowcoffee/storefront-backend/pkg/config"
	"github.com/oddfellowcoffee/storefront-backend/pkg/db"
	"github.com/oddfellowcoffee/storefront-backend/pkg/logger"
	"github.com/oddfellowcoffee/storefront-backend/pkg/metrics"
	"github.com/oddfellowcoffee/storefront-backend/pkg/redis"
	"github.com/oddfellowcoffee/storefront-backend/pkg/security"
	"github.com/oddfellowcoffee/storefront-backend/pkg/stripe"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	productsService productsvc.Service,
	dropsService dropsvc.Service,
	ordersService ordersvc.Service,
	subscriptionsService subscriptionsvc.Service,
	reservationsService *reservationsvc.Service,
	checkoutService *checkoutsvc.Service,
	settingsService *settingsvc.Service,
	notificationsService *notifications.Service,
	shippingExport *exports.ShippingCSV,
	paymentsService *payments.Service,
	stripeClient *stripe.Client,
	webhookGuard *payments.IdempotencyGuard,
	webhookMetrics *metrics.WebhookMetrics,
	manageTokens *security.TokenSigner,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.SiteURL),
	)

	checkoutPolicy := middleware.NewRateLimitPolicy(
		"checkout",
		cfg.RateLimit.CheckoutWindow,
		cfg.RateLimit.CheckoutIPLimit,
	)
	webhookPolicy := middleware.NewRateLimitPolicy(
		"webhook",
		cfg.RateLimit.WebhookWindow,
		cfg.RateLimit.WebhookLimit,
	)
	manageLinkPolicy := middleware.NewRateLimitPolicy(
		"manage-link",
		cfg.RateLimit.CheckoutWindow,
		cfg.RateLimit.CheckoutIPLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Use(middleware.RateLimit(webhookPolicy, redisClient, logg))
		r.Post("/stripe", webhookcontrollers.StripeWebhook(paymentsService, stripeClient, webhookGuard, webhookMetrics, logg))
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ListProducts(productsService, logg))
			r.Get("/{productId}", controllers.GetProduct(productsService, logg))
		})
		r.Get("/drops", controllers.ListOpenDrops(dropsService, logg))
		r.Get("/slots", controllers.ListSlots(reservationsService, logg))
		r.Post("/reservations", controllers.CreateReservation(reservationsService, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(checkoutPolicy, redisClient, logg))
			r.Post("/checkout", controllers.CreateCheckout(checkoutService, logg))
			r.Post("/subscribe", controllers.CreateSubscribeSession(checkoutService, logg))
		})

		r.Route("/subscriptions", func(r chi.Router) {
			r.With(middleware.RateLimit(manageLinkPolicy, redisClient, logg)).
				Post("/link", controllers.RequestManageLink(subscriptionsService, manageTokens, notificationsService, cfg.Subscriptions.ManageTokenTTL, logg))
			r.Get("/", controllers.ListMySubscriptions(subscriptionsService, manageTokens, logg))
			r.Post("/{subscriptionId}/pause", controllers.PauseMySubscription(subscriptionsService, manageTokens, logg))
			r.Post("/{subscriptionId}/resume", controllers.ResumeMySubscription(subscriptionsService, manageTokens, logg))
			r.Post("/{subscriptionId}/cancel", controllers.CancelMySubscription(subscriptionsService, manageTokens, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.AdminAuth(cfg.Admin, logg))

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.AdminListProducts(productsService, logg))
			r.Post("/", controllers.AdminCreateProduct(productsService, logg))
			r.Patch("/{productId}", controllers.AdminUpdateProduct(productsService, logg))
			r.Delete("/{productId}", controllers.AdminDeleteProduct(productsService, logg))
		})

		r.Route("/drops", func(r chi.Router) {
			r.Get("/", controllers.AdminListDrops(dropsService, logg))
			r.Post("/", controllers.AdminCreateDrop(dropsService, logg))
			r.Patch("/{dropId}/status", controllers.AdminUpdateDropStatus(dropsService, logg))
			r.Post("/{dropId}/close", controllers.AdminCloseDrop(dropsService, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.AdminListOrders(ordersService, logg))
			r.Get("/export.csv", controllers.AdminExportShippingCSV(shippingExport, logg))
			r.Post("/bulk-status", controllers.AdminBulkUpdateStatus(ordersService, logg))
			r.Get("/{orderId}", controllers.AdminGetOrder(ordersService, logg))
			r.Post("/{orderId}/stage", controllers.AdminAdvanceStage(ordersService, logg))
			r.Put("/{orderId}/shipping", controllers.AdminSetShipping(ordersService, logg))
			r.Put("/{orderId}/tracking", controllers.AdminSetTracking(ordersService, logg))
		})

		r.Route("/reservations", func(r chi.Router) {
			r.Get("/", controllers.AdminListReservations(reservationsService, logg))
			r.Post("/{reservationId}/cancel", controllers.AdminCancelReservation(reservationsService, logg))
		})

		r.Route("/subscriptions", func(r chi.Router) {
			r.Get("/", controllers.AdminListSubscriptions(subscriptionsService, logg))
			r.Post("/{subscriptionId}/pause", controllers.AdminPauseSubscription(subscriptionsService, logg))
			r.Post("/{subscriptionId}/resume", controllers.AdminResumeSubscription(subscriptionsService, logg))
			r.Put("/{subscriptionId}/variant", controllers.AdminChangeVariant(subscriptionsService, logg))
			r.Post("/{subscriptionId}/fulfill", controllers.AdminFulfillSubscription(subscriptionsService, logg))
			r.Post("/{subscriptionId}/cancel", controllers.AdminCancelSubscription(subscriptionsService, logg))
		})

		r.Route("/settings", func(r chi.Router) {
			r.Get("/", controllers.AdminGetSettings(settingsService, logg))
			r.Put("/", controllers.AdminPutSettings(settingsService, logg))
		})

		r.Get("/calendar", controllers.AdminCalendar(ordersService, reservationsService, subscriptionsService, logg))
	})

	return r
}
