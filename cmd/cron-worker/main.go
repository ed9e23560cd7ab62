package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/oddfellowcoffee/storefront-backend/internal/cron"
	"github.com/oddfellowcoffee/storefront-backend/internal/notifications"
	ordersvc "github.com/oddfellowcoffee/storefront-backend/internal/orders"
	reservationsvc "github.com/oddfellowcoffee/storefront-backend/internal/reservations"
	settingsvc "github.com/oddfellowcoffee/storefront-backend/internal/settings"
	subscriptionsvc "github.com/oddfellowcoffee/storefront-backend/internal/subscriptions"
	"github.com/oddfellowcoffee/storefront-backend/pkg/config"
	"github.com/oddfellowcoffee/storefront-backend/pkg/db"
	"github.com/oddfellowcoffee/storefront-backend/pkg/instance"
	"github.com/oddfellowcoffee/storefront-backend/pkg/logger"
	"github.com/oddfellowcoffee/storefront-backend/pkg/metrics"
	"github.com/oddfellowcoffee/storefront-backend/pkg/migrate"
	"github.com/oddfellowcoffee/storefront-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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

	settingsService := settingsvc.NewService(dbClient.DB())
	notificationsService := notifications.NewService(
		notifications.NewSMTPMailer(cfg.SMTP),
		settingsService,
		logg,
		cfg.App.SiteURL,
		cfg.SMTP.Enabled(),
	)

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

	subscriptionsRepo := subscriptionsvc.NewRepository(dbClient.DB())

	reservationsService, err := reservationsvc.NewService(dbClient.DB())
	if err != nil {
		logg.Error(context.Background(), "failed to create reservations service", err)
		os.Exit(1)
	}

	registry := cron.NewRegistry()
	if cfg.Cron.DigestEnabled {
		digestJob, err := cron.NewDailyDigestJob(
			subscriptionsRepo,
			reservationsService,
			ordersService,
			notificationsService,
			cfg.Cron.DigestHour,
			cfg.Checkout.PendingOrderMaxAge,
		)
		if err != nil {
			logg.Error(context.Background(), "failed to create digest job", err)
			os.Exit(1)
		}
		registry.Register(digestJob)
	}

	lock, err := cron.NewRedisLock(redisClient, lockKey(redisClient, cfg.App.Env), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.TickInterval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.GetID(),
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockKey(client *redis.Client, env string) string {
	if env == "" {
		env = "local"
	}
	return client.LockKey(fmt.Sprintf("cron-worker:%s", env))
}
