package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/dfrestrepo/mercaflow-backend/api/routes"
	"github.com/dfrestrepo/mercaflow-backend/internal/cart"
	"github.com/dfrestrepo/mercaflow-backend/internal/catalog"
	"github.com/dfrestrepo/mercaflow-backend/internal/checkout"
	"github.com/dfrestrepo/mercaflow-backend/internal/geography"
	"github.com/dfrestrepo/mercaflow-backend/internal/orders"
	"github.com/dfrestrepo/mercaflow-backend/internal/payments"
	"github.com/dfrestrepo/mercaflow-backend/internal/payments/gateway"
	"github.com/dfrestrepo/mercaflow-backend/internal/payments/gateway/offline"
	psegw "github.com/dfrestrepo/mercaflow-backend/internal/payments/gateway/pse"
	"github.com/dfrestrepo/mercaflow-backend/internal/payments/gateway/stripecard"
	psewebhook "github.com/dfrestrepo/mercaflow-backend/internal/webhooks/pse"
	"github.com/dfrestrepo/mercaflow-backend/internal/webhooks/replay"
	stripewebhook "github.com/dfrestrepo/mercaflow-backend/internal/webhooks/stripe"
	"github.com/dfrestrepo/mercaflow-backend/pkg/config"
	"github.com/dfrestrepo/mercaflow-backend/pkg/db"
	"github.com/dfrestrepo/mercaflow-backend/pkg/logger"
	"github.com/dfrestrepo/mercaflow-backend/pkg/metrics"
	"github.com/dfrestrepo/mercaflow-backend/pkg/migrate"
	"github.com/dfrestrepo/mercaflow-backend/pkg/outbox"
	"github.com/dfrestrepo/mercaflow-backend/pkg/pse"
	"github.com/dfrestrepo/mercaflow-backend/pkg/redis"
	pkgstripe "github.com/dfrestrepo/mercaflow-backend/pkg/stripe"
)

const (
	shutdownTimeout = 15 * time.Second
	webhookMarkTTL  = 48 * time.Hour
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

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}

	closeAll := func() {
		err := multierr.Combine(redisClient.Close(), dbClient.Close())
		if err != nil {
			logg.Error(context.Background(), "error closing clients", err)
		}
	}

	deps, err := buildDeps(context.Background(), cfg, logg, dbClient, redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to wire services", err)
		closeAll()
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			closeAll()
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(ctx, "shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "error draining api server", err)
		}
	}

	closeAll()
	logg.Info(ctx, "api server shut down gracefully")
}

// buildDeps assembles the service graph behind the HTTP surface.
func buildDeps(ctx context.Context, cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client) (routes.Deps, error) {
	catalogService, err := catalog.NewService(catalog.NewRepository(dbClient.DB()), logg)
	if err != nil {
		return routes.Deps{}, err
	}

	cartRepo := cart.NewRepository(dbClient.DB())
	cartService, err := cart.NewService(cartRepo, catalogService, dbClient, cfg.Cart, logg)
	if err != nil {
		return routes.Deps{}, err
	}

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	ordersRepo := orders.NewRepository(dbClient.DB())
	orderService, err := orders.NewService(
		ordersRepo,
		cartRepo,
		catalog.NewRepository(dbClient.DB()),
		outboxService,
		dbClient,
		cfg.Checkout,
		cfg.Payments.DefaultCurrency,
		logg,
	)
	if err != nil {
		return routes.Deps{}, err
	}

	geoRepo := geography.NewRepository(dbClient.DB())

	sessions, err := checkout.NewSessionManager(redisClient, cfg.Checkout.SessionTTL)
	if err != nil {
		return routes.Deps{}, err
	}
	checkoutService, err := checkout.NewService(
		sessions,
		cartService,
		cartRepo,
		geoRepo,
		checkout.NewMethodLoader(dbClient.DB()),
		orderService,
		logg,
	)
	if err != nil {
		return routes.Deps{}, err
	}

	stripeClient, err := pkgstripe.NewClient(ctx, cfg.Stripe, logg)
	if err != nil {
		return routes.Deps{}, err
	}
	pseClient, err := pse.NewClient(ctx, cfg.PSE, logg)
	if err != nil {
		return routes.Deps{}, err
	}

	registry := gateway.NewRegistry()
	registry.Register("stripe", func() (gateway.Gateway, error) {
		return stripecard.New(stripeClient, logg)
	})
	registry.Register("pse", func() (gateway.Gateway, error) {
		return psegw.New(pseClient, cfg.App.Env, logg)
	})
	registry.Register("offline", func() (gateway.Gateway, error) {
		return offline.New(logg)
	})

	gatewayRouter, err := gateway.NewRouter(gateway.NewConfigSource(dbClient.DB()), registry)
	if err != nil {
		return routes.Deps{}, err
	}

	payMetrics := metrics.NewPaymentMetrics(prometheus.DefaultRegisterer)
	paymentService, err := payments.NewService(
		payments.NewRepository(dbClient.DB()),
		ordersRepo,
		payments.NewMethodSource(dbClient.DB()),
		gatewayRouter,
		outboxService,
		dbClient,
		cfg.Payments,
		payMetrics,
		logg,
	)
	if err != nil {
		return routes.Deps{}, err
	}

	stripeWebhooks, err := stripewebhook.NewService(paymentService, logg)
	if err != nil {
		return routes.Deps{}, err
	}
	pseWebhooks, err := psewebhook.NewService(paymentService, logg)
	if err != nil {
		return routes.Deps{}, err
	}

	stripeGuard, err := replay.NewGuard(redisClient, webhookMarkTTL, "stripe")
	if err != nil {
		return routes.Deps{}, err
	}
	pseGuard, err := replay.NewGuard(redisClient, webhookMarkTTL, "pse")
	if err != nil {
		return routes.Deps{}, err
	}

	return routes.Deps{
		Config:          cfg,
		Logger:          logg,
		DB:              dbClient,
		Redis:           redisClient,
		CartService:     cartService,
		CheckoutService: checkoutService,
		OrderService:    orderService,
		PaymentService:  paymentService,
		Geography:       geoRepo,
		GatewayRegistry: registry,
		StripeClient:    stripeClient,
		PSEClient:       pseClient,
		StripeWebhooks:  stripeWebhooks,
		PSEWebhooks:     pseWebhooks,
		StripeGuard:     stripeGuard,
		PSEGuard:        pseGuard,
		PaymentMetrics:  payMetrics,
	}, nil
}
