package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/craftcv/craftcv-backend/api/controllers"
	"github.com/craftcv/craftcv-backend/api/routes"
	"github.com/craftcv/craftcv-backend/internal/orders"
	"github.com/craftcv/craftcv-backend/internal/payments"
	"github.com/craftcv/craftcv-backend/internal/reconcile"
	momowebhook "github.com/craftcv/craftcv-backend/internal/webhooks/momo"
	"github.com/craftcv/craftcv-backend/pkg/config"
	"github.com/craftcv/craftcv-backend/pkg/db"
	"github.com/craftcv/craftcv-backend/pkg/logger"
	"github.com/craftcv/craftcv-backend/pkg/metrics"
	"github.com/craftcv/craftcv-backend/pkg/migrate"
	"github.com/craftcv/craftcv-backend/pkg/momo"
	"github.com/craftcv/craftcv-backend/pkg/redis"
	"github.com/craftcv/craftcv-backend/pkg/vnpay"
	"github.com/prometheus/client_golang/prometheus"
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

	momoClient, err := momo.NewClient(context.Background(), cfg.MoMo, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create momo client", err)
		os.Exit(1)
	}
	vnpayClient, err := vnpay.NewClient(cfg.VNPay.TMNCode, cfg.VNPay.HashSecret)
	if err != nil {
		logg.Error(context.Background(), "failed to create vnpay client", err)
		os.Exit(1)
	}

	ordersRepo := orders.NewRepository(dbClient.DB())
	ordersSvc, err := orders.NewService(ordersRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	paymentsSvc, err := payments.NewService(payments.ServiceParams{
		Intents:  payments.NewIntentRepository(dbClient.DB()),
		Orders:   ordersRepo,
		Ledger:   ordersSvc,
		Provider: momoClient,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}

	reconcileMetrics := metrics.NewReconcileMetrics(prometheus.DefaultRegisterer)
	poller, err := reconcile.NewPoller(reconcile.PollerParams{
		Provider: momoClient,
		Payments: paymentsSvc,
		Metrics:  reconcileMetrics,
		Logger:   logg,
		Interval: cfg.Reconcile.PollInterval,
		Attempts: cfg.Reconcile.PollAttempts,
		Source:   "poller",
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reconcile poller", err)
		os.Exit(1)
	}

	webhookGuard, err := momowebhook.NewIdempotencyGuard(redisClient, cfg.Reconcile.WebhookIdempotencyTTL, "momo-ipn")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook guard", err)
		os.Exit(1)
	}
	momoWebhookSvc, err := momowebhook.NewService(momowebhook.ServiceParams{
		Payments: paymentsSvc,
		Verifier: momoClient,
		Guard:    webhookGuard,
		Metrics:  reconcileMetrics,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create momo webhook service", err)
		os.Exit(1)
	}

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
			redisClient,
			map[string]controllers.Pinger{
				"database": dbClient,
				"redis":    redisClient,
			},
			ordersSvc,
			paymentsSvc,
			poller,
			momoWebhookSvc,
			vnpayClient,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
