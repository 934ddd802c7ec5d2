package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dfrestrepo/mercaflow-backend/api/controllers"
	webhookcontrollers "github.com/dfrestrepo/mercaflow-backend/api/controllers/webhooks"
	"github.com/dfrestrepo/mercaflow-backend/api/middleware"
	cartsvc "github.com/dfrestrepo/mercaflow-backend/internal/cart"
	checkoutsvc "github.com/dfrestrepo/mercaflow-backend/internal/checkout"
	"github.com/dfrestrepo/mercaflow-backend/internal/geography"
	ordersvc "github.com/dfrestrepo/mercaflow-backend/internal/orders"
	paymentsvc "github.com/dfrestrepo/mercaflow-backend/internal/payments"
	"github.com/dfrestrepo/mercaflow-backend/internal/payments/gateway"
	psewebhook "github.com/dfrestrepo/mercaflow-backend/internal/webhooks/pse"
	"github.com/dfrestrepo/mercaflow-backend/internal/webhooks/replay"
	stripewebhook "github.com/dfrestrepo/mercaflow-backend/internal/webhooks/stripe"
	"github.com/dfrestrepo/mercaflow-backend/pkg/config"
	dbpkg "github.com/dfrestrepo/mercaflow-backend/pkg/db"
	"github.com/dfrestrepo/mercaflow-backend/pkg/logger"
	"github.com/dfrestrepo/mercaflow-backend/pkg/metrics"
	"github.com/dfrestrepo/mercaflow-backend/pkg/pse"
	pkgredis "github.com/dfrestrepo/mercaflow-backend/pkg/redis"
	pkgstripe "github.com/dfrestrepo/mercaflow-backend/pkg/stripe"
)

// Webhook intake is throttled per sender host; providers retry on 429.
const (
	webhookRateLimit  = 300
	webhookRateWindow = time.Minute
)

// Deps bundles everything the HTTP surface needs. Webhook routes stay outside
// the authenticated group; cart routes admit guests through OptionalAuth.
type Deps struct {
	Config          *config.Config
	Logger          *logger.Logger
	DB              dbpkg.Pinger
	Redis           *pkgredis.Client
	CartService     cartsvc.Service
	CheckoutService checkoutsvc.Service
	OrderService    ordersvc.Service
	PaymentService  paymentsvc.Service
	Geography       *geography.Repository
	GatewayRegistry *gateway.Registry
	StripeClient    *pkgstripe.Client
	PSEClient       *pse.Client
	StripeWebhooks  *stripewebhook.Service
	PSEWebhooks     *psewebhook.Service
	StripeGuard     *replay.Guard
	PSEGuard        *replay.Guard
	PaymentMetrics  *metrics.PaymentMetrics
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, deps.DB, deps.Redis, logg))
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		if deps.Redis != nil {
			r.Use(middleware.RateLimit(deps.Redis, "webhooks", webhookRateLimit, webhookRateWindow, logg))
		}
		r.Post("/stripe", webhookcontrollers.StripeWebhook(deps.StripeWebhooks, deps.StripeClient, deps.StripeGuard, deps.PaymentMetrics, logg))
		r.Post("/pse", webhookcontrollers.PSEWebhook(deps.PSEWebhooks, deps.PSEClient, deps.PSEGuard, deps.PaymentMetrics, logg))
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.OptionalAuth(cfg.JWT, logg))
		r.Get("/api/v1/cart", controllers.GetCart(deps.CartService, logg))
		r.Post("/api/v1/cart/lines", controllers.CartAddLine(deps.CartService, logg))
		r.Patch("/api/v1/cart/lines/{productID}", controllers.CartUpdateLine(deps.CartService, logg))
		r.Delete("/api/v1/cart/lines/{productID}", controllers.CartRemoveLine(deps.CartService, logg))
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(deps.Redis, logg))

		r.Post("/api/v1/cart/merge", controllers.CartMerge(deps.CartService, logg))

		r.Post("/api/v1/checkout", controllers.CheckoutBegin(deps.CheckoutService, logg))
		r.Post("/api/v1/checkout/order", controllers.CheckoutCreateOrder(deps.CheckoutService, logg))
		r.Route("/api/v1/checkout/{sessionID}", func(r chi.Router) {
			r.Get("/", controllers.CheckoutGet(deps.CheckoutService, logg))
			r.Put("/delivery", controllers.CheckoutSetDelivery(deps.CheckoutService, logg))
			r.Put("/payment-method", controllers.CheckoutSetPaymentMethod(deps.CheckoutService, logg))
		})

		r.Route("/api/v1/orders", func(r chi.Router) {
			r.Get("/", controllers.OrdersList(deps.OrderService, logg))
			r.Get("/{orderID}", controllers.OrderDetail(deps.OrderService, logg))
			r.Post("/{orderID}/cancel", controllers.OrderCancel(deps.OrderService, logg))
			r.Get("/{orderID}/payments", controllers.OrderPayments(deps.PaymentService, logg))
		})

		r.Post("/api/v1/payments", controllers.ProcessPayment(deps.PaymentService, logg))
		r.Get("/api/v1/payments/gateways", controllers.PaymentGateways(deps.GatewayRegistry, logg))
		r.Get("/api/v1/payments/pse/banks", controllers.PSEBanks(deps.GatewayRegistry, logg))
		r.Get("/api/v1/payments/{transactionID}", controllers.PaymentStatus(deps.PaymentService, logg))

		r.Get("/api/v1/addresses", controllers.ListAddresses(deps.Geography, logg))
		r.Get("/api/v1/agencies", controllers.ListAgencies(deps.Geography, logg))
	})

	return r
}
