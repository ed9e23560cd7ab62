package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/oddfellowcoffee/storefront-backend/api/routes"
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
	"github.com/oddfellowcoffee/storefront-backend/pkg/migrate"
	"github.com/oddfellowcoffee/storefront-backend/pkg/redis"
	"github.com/oddfellowcoffee/storefront-backend/pkg/security"
	pkgstripe "github.com/oddfellowcoffee/storefront-backend/pkg/stripe"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	stripeClient, err := pkgstripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to initialize stripe", err)
		os.Exit(1)
	}

	settingsService := settingsvc.NewService(dbClient.DB())
	notificationsService := notifications.NewService(
		notifications.NewSMTPMailer(cfg.SMTP),
		settingsService,
		logg,
		cfg.App.SiteURL,
		cfg.SMTP.Enabled(),
	)

	productsService, err := productsvc.NewService(productsvc.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create products service", err)
		os.Exit(1)
	}

	dropsService, err := dropsvc.NewService(dbClient.DB())
	if err != nil {
		logg.Error(context.Background(), "failed to create drops service", err)
		os.Exit(1)
	}

	ordersService, err := ordersvc.NewService(
		ordersvc.NewRepository(dbClient.DB()),
		dbClient,
		ordersvc.NewDropInventory(),
		ordersvc.NewProductLoader(),
		notificationsService,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	subscriptionsService, err := subscriptionsvc.NewService(
		subscriptionsvc.NewRepository(dbClient.DB()),
		dbClient,
		subscriptionsvc.NewStripeClient(stripeClient),
		subscriptionsvc.NewProductChecker(),
		notificationsService,
		cfg.Subscriptions.FirstDeliveryLeadDays,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create subscriptions service", err)
		os.Exit(1)
	}

	reservationsService, err := reservationsvc.NewService(dbClient.DB())
	if err != nil {
		logg.Error(context.Background(), "failed to create reservations service", err)
		os.Exit(1)
	}

	checkoutService, err := checkoutsvc.NewService(
		ordersService,
		checkoutsvc.NewStripeClient(stripeClient),
		checkoutsvc.NewProductCatalog(dbClient.DB()),
		reservationsService,
		logg,
		checkoutsvc.Options{
			SiteURL:           cfg.App.SiteURL,
			LocalZip:          cfg.Checkout.LocalZip,
			FlatShippingCents: cfg.Checkout.FlatShippingCents,
			SessionTTL:        cfg.Checkout.SessionTTL,
		},
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	paymentsService, err := payments.NewService(payments.ServiceParams{
		Orders:        ordersService,
		Subscriptions: subscriptionsService,
		StripeClient:  subscriptionsvc.NewStripeClient(stripeClient),
		Notifier:      notificationsService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}

	webhookGuard, err := payments.NewIdempotencyGuard(redisClient, cfg.Checkout.WebhookEventCacheTTL, "stripe")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook idempotency guard", err)
		os.Exit(1)
	}

	shippingExport, err := exports.NewShippingCSV(ordersService)
	if err != nil {
		logg.Error(context.Background(), "failed to create shipping export", err)
		os.Exit(1)
	}

	manageTokens, err := security.NewTokenSigner(cfg.Subscriptions.ManageTokenSecret)
	if err != nil {
		logg.Error(context.Background(), "failed to create manage-link signer", err)
		os.Exit(1)
	}

	webhookMetrics := metrics.NewWebhookMetrics(prometheus.DefaultRegisterer)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			productsService,
			dropsService,
			ordersService,
			subscriptionsService,
			reservationsService,
			checkoutService,
			settingsService,
			notificationsService,
			shippingExport,
			paymentsService,
			stripeClient,
			webhookGuard,
			webhookMetrics,
			manageTokens,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
