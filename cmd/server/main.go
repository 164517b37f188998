package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/slotta-engine/internal/config"
	"github.com/iliyamo/slotta-engine/internal/database"
	"github.com/iliyamo/slotta-engine/internal/handler"
	"github.com/iliyamo/slotta-engine/internal/logger"
	"github.com/iliyamo/slotta-engine/internal/middleware"
	"github.com/iliyamo/slotta-engine/internal/payment"
	"github.com/iliyamo/slotta-engine/internal/queue"
	"github.com/iliyamo/slotta-engine/internal/repository"
	"github.com/iliyamo/slotta-engine/internal/router"
	"github.com/iliyamo/slotta-engine/internal/service"
)

// processor is what the engine and the webhook route need from the card
// processor.
type processor interface {
	payment.Gateway
	payment.WebhookVerifier
}

func newProcessor(cfg config.StripeConfig, env string, log *logrus.Logger) processor {
	if cfg.SecretKey == "" {
		if env == "prod" {
			log.Fatal("STRIPE_SECRET_KEY is required in prod")
		}
		log.Warn("STRIPE_SECRET_KEY not set; using the in-memory sandbox gateway")
		return payment.NewSandbox()
	}
	return payment.NewStripeGateway(payment.StripeConfig{
		SecretKey:     cfg.SecretKey,
		WebhookSecret: cfg.WebhookSecret,
		Logger:        log,
	})
}

func main() {
	log := logger.New()
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.WithError(err).Fatal("database connection failed")
	}
	defer db.Close()
	if cfg.AutoMigrate {
		mctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		err := database.Migrate(mctx, db)
		cancel()
		if err != nil {
			log.WithError(err).Fatal("schema migration failed")
		}
	}

	// Redis is optional: without it rate limiting, the response cache and
	// the analytics cache are off.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Warn("redis unavailable; rate limiting and caching disabled")
	} else {
		defer rdb.Close()
	}
	cacheCfg := config.LoadCacheConfig()
	rlCfg := config.LoadRateLimitConfig()
	rabbitCfg := config.LoadRabbitConfig()
	pol := config.LoadPolicyConfig()

	gw := newProcessor(config.LoadStripeConfig(), cfg.Env, log)
	events := queue.NewPublisher(rabbitCfg, log)
	defer events.Close()

	reg := prometheus.DefaultRegisterer
	var analyticsCache *service.AnalyticsCache
	if cacheCfg.Enabled {
		analyticsCache = service.NewAnalyticsCache(rdb, cacheCfg.Prefix, cacheCfg.AnalyticsTTL)
	}
	deps := service.Deps{
		Store:   repository.NewSQLStore(db),
		Gateway: gw,
		Policy:  pol,
		Events:  events,
		Metrics: service.NewMetrics(reg),
		Cache:   analyticsCache,
		Log:     log,
	}
	ledger := service.NewLedger(deps)
	bookings := service.NewBookingService(deps, ledger)
	payouts := service.NewPayoutService(deps, ledger)
	analytics := service.NewAnalyticsService(deps)

	providers := repository.NewProviderRepo(db)
	tokens := repository.NewTokenRepo(db)
	catalog := repository.NewServiceRepo(db)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.RequestLogger(log))
	e.Use(middleware.NewHTTPMetrics(reg).Middleware())
	e.Use(echomw.Recover())

	router.RegisterRoutes(e, db, rdb, prometheus.DefaultGatherer)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, providers, tokens), cfg.JWTSecret)
	router.RegisterPublic(e,
		handler.NewPublicHandler(providers, catalog, bookings, gw, log),
		publicLimiter(rlCfg, rdb, log),
		publicCache(cacheCfg, rdb),
	)
	router.RegisterProvider(e,
		handler.NewServiceHandler(catalog),
		handler.NewBookingHandler(bookings),
		handler.NewWalletHandler(providers, ledger, payouts, analytics),
		cfg.JWTSecret,
	)

	if rabbitCfg.Enabled {
		go func() {
			if err := queue.StartConsumer(ctx, rabbitCfg, log, queue.LogNotifier(log)); err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Error("notify-consumer stopped")
			}
		}()
	}

	addr := ":" + cfg.Port
	go func() {
		log.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env}).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(sctx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
}

func publicLimiter(cfg config.RateLimitConfig, rdb *redis.Client, log *logrus.Logger) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return nil
	}
	return middleware.NewRateLimiter(cfg, rdb, log).Middleware()
}

func publicCache(cfg config.CacheConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return nil
	}
	return middleware.NewRedisCache(cfg, rdb)
}
