package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/craftcv/craftcv-backend/api/controllers"
	webhookcontrollers "github.com/craftcv/craftcv-backend/api/controllers/webhooks"
	"github.com/craftcv/craftcv-backend/api/middleware"
	"github.com/craftcv/craftcv-backend/internal/orders"
	"github.com/craftcv/craftcv-backend/internal/payments"
	"github.com/craftcv/craftcv-backend/internal/reconcile"
	momowebhook "github.com/craftcv/craftcv-backend/internal/webhooks/momo"
	"github.com/craftcv/craftcv-backend/pkg/config"
	"github.com/craftcv/craftcv-backend/pkg/logger"
	"github.com/craftcv/craftcv-backend/pkg/redis"
	"github.com/craftcv/craftcv-backend/pkg/vnpay"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	redisClient *redis.Client,
	healthDeps map[string]controllers.Pinger,
	ordersSvc orders.Service,
	paymentsSvc payments.Service,
	poller *reconcile.Poller,
	momoWebhookSvc *momowebhook.Service,
	vnpayClient *vnpay.Client,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		cors.Handler(cors.Options{
			AllowedOrigins:   []string{"https://*", "http://*"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Request-Id"},
			AllowCredentials: true,
			MaxAge:           300,
		}),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, healthDeps))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/momo", webhookcontrollers.MoMoIPN(momoWebhookSvc, logg))
	})

	// Public but signed; the payer lands here from the gateway redirect.
	r.Get("/api/v1/payments/vnpay/return", controllers.VNPayReturn(paymentsSvc, vnpayClient, logg))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", controllers.CreateOrder(ordersSvc, logg))
			r.Get("/", controllers.ListOrders(ordersSvc, logg))
			r.Get("/{serviceCategory}/{orderId}", controllers.GetOrder(ordersSvc, logg))
			r.Post("/{serviceCategory}/{orderId}/payments/momo", controllers.InitiateMoMoPayment(paymentsSvc, logg))
		})

		r.Route("/payments", func(r chi.Router) {
			r.Get("/{token}", controllers.GetPayment(paymentsSvc, logg))
			r.Post("/{token}/reconcile", controllers.ReconcilePayment(paymentsSvc, poller, logg))
		})
	})

	return r
}
