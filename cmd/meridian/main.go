package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/meridian-id/meridian/internal/app"
	"github.com/meridian-id/meridian/internal/authn"
	"github.com/meridian-id/meridian/internal/identity"
	"github.com/meridian-id/meridian/internal/observability"
	"github.com/meridian-id/meridian/internal/permission"
	"github.com/meridian-id/meridian/internal/platform/cache"
	"github.com/meridian-id/meridian/internal/platform/db"
	"github.com/meridian-id/meridian/internal/token"
	"github.com/meridian-id/meridian/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	maker, err := token.NewMaker(cfg.TokenSecret)
	if err != nil {
		logger.Error("init token maker", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()

	authenticator := authn.New(maker, cfg.AccessTokenCookie)
	authenticator.SetMetrics(metrics)

	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	permissionCache := permission.NewCache(redisClient, cfg.PermissionCacheTTL)
	permissionCache.SetMetrics(metrics)
	permissionRepo := permission.NewRepository(dbpool)
	permissionService := permission.NewService(logger, permissionRepo, permissionCache, jobsClient)
	permissionHandler := permission.NewHandler(logger, permissionService, authenticator)

	identityRepo := identity.NewRepository(dbpool)
	identityService := identity.NewService(logger, identityRepo, maker, permissionService, identity.ServiceConfig{
		AccessTokenTTL:  cfg.AccessTokenTTL,
		RefreshTokenTTL: cfg.RefreshTokenTTL,
		InstanceID:      cfg.InstanceID,
	})
	identityService.SetMetrics(metrics)
	identityHandler := identity.NewHandler(logger, identityService, authenticator, identity.CookieConfig{
		AccessName: cfg.AccessTokenCookie,
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
		Secure:     cfg.IsProduction(),
	})

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		IdentityHandler:   identityHandler,
		PermissionHandler: permissionHandler,
		JobHandler:        jobHandler,
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server exit", slog.Any("error", err))
		os.Exit(1)
	}
}
