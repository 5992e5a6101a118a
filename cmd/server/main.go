package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/storefront-backend/internal/config"
	"github.com/iliyamo/storefront-backend/internal/database"
	"github.com/iliyamo/storefront-backend/internal/handler"
	"github.com/iliyamo/storefront-backend/internal/logger"
	"github.com/iliyamo/storefront-backend/internal/middleware"
	"github.com/iliyamo/storefront-backend/internal/observability"
	"github.com/iliyamo/storefront-backend/internal/queue"
	"github.com/iliyamo/storefront-backend/internal/repository"
	"github.com/iliyamo/storefront-backend/internal/router"
	"github.com/iliyamo/storefront-backend/internal/service"
)

func main() {
	cfg := config.Load()

	lg, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: !cfg.IsProduction(),
		File:        cfg.LogFile,
	})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	zap.ReplaceGlobals(lg)
	defer func() { _ = lg.Sync() }()

	if err := observability.InitSentry(cfg.SentryDSN, cfg.Env); err != nil {
		lg.Warn("sentry init failed", zap.Error(err))
	}
	defer observability.FlushSentry()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		lg.Fatal("mysql unavailable", zap.Error(err))
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		lg.Fatal("migrations failed", zap.Error(err))
	}

	// Revocation records live in Redis, so sessions cannot work without it.
	rdb, err := config.NewRedisClient(config.LoadRedisConfig())
	if err != nil {
		lg.Fatal("redis unavailable", zap.Error(err))
	}
	defer rdb.Close()

	users := repository.NewUserRepo(db, cfg.BcryptCost)
	products := repository.NewProductRepo(db)
	coupons := repository.NewCouponRepo(db)
	orders := repository.NewOrderRepo(db)
	analytics := repository.NewAnalyticsRepo(db)
	featured := repository.NewFeaturedCache(rdb, 0)

	tokens := service.NewTokenService(repository.NewTokenRepo(rdb),
		cfg.AccessTokenSecret, cfg.RefreshTokenSecret, cfg.AccessTTL, cfg.RefreshTTL)
	gate := middleware.NewGate(tokens, users)

	var gateway handler.PaymentGateway
	if cfg.StripeSecretKey != "" {
		gateway = service.NewStripeGateway(cfg.StripeSecretKey, "")
	} else {
		lg.Warn("STRIPE_SECRET_KEY not set, payments disabled")
	}
	var images handler.ImageStore
	if cfg.CloudinaryURL != "" {
		cld, err := service.NewCloudinary(cfg.CloudinaryURL)
		if err != nil {
			lg.Fatal("invalid CLOUDINARY_URL", zap.Error(err))
		}
		images = cld
	}
	publisher := service.NewEventPublisher(cfg.RabbitMQURL)

	if cfg.OrderConsumer {
		orderLog := queue.NewOrderLog(cfg.OrderLogFile)
		defer orderLog.Close()
		go func() {
			if err := queue.StartOrderConsumer(ctx, cfg.RabbitMQURL, orderLog); err != nil && !errors.Is(err, context.Canceled) {
				lg.Error("order consumer stopped", zap.Error(err))
			}
		}()
	}

	e := echo.New()
	router.Setup(e, lg, cfg.ClientURL)
	router.RegisterRoutes(e, handler.NewHealthHandler(map[string]handler.Check{
		"mysql": db.PingContext,
		"redis": func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	}))
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, tokens), gate,
		middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
	cacheCfg := config.LoadCacheConfig()
	catalog := handler.NewProductHandler(products, featured, images)
	catalog.Listings = middleware.NewCachePurger(cacheCfg, rdb)
	router.RegisterCatalog(e, catalog, gate, middleware.NewRedisCache(cacheCfg, rdb))
	router.RegisterCustomer(e,
		handler.NewCartHandler(users, products),
		handler.NewCouponHandler(coupons),
		handler.NewPaymentHandler(gateway, products, coupons, orders, publisher, cfg.ClientURL),
		gate)
	router.RegisterAdmin(e, handler.NewAnalyticsHandler(analytics), gate)
	router.RegisterFrontend(e, cfg.FrontendDir)

	addr := ":" + cfg.Port
	go func() {
		lg.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error("server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		lg.Error("shutdown", zap.Error(err))
	}
}
