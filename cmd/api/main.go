package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/alteris-io/guardian/internal/audit"
	"github.com/alteris-io/guardian/internal/auth"
	"github.com/alteris-io/guardian/internal/background"
	"github.com/alteris-io/guardian/internal/config"
	"github.com/alteris-io/guardian/internal/handlers"
	"github.com/alteris-io/guardian/internal/middleware"
	"github.com/alteris-io/guardian/internal/models"
	"github.com/alteris-io/guardian/internal/routes"
	"github.com/alteris-io/guardian/internal/security"
	"github.com/alteris-io/guardian/internal/services"
	pkghttp "github.com/alteris-io/guardian/pkg/http"
	pkglogger "github.com/alteris-io/guardian/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := pkglogger.NewAppLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)
	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Durable audit sink
	sink, closeSink, err := pkglogger.NewAuditSink(cfg.Audit.LogFile)
	if err != nil {
		logger.Error("failed to open audit sink", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = closeSink() }()

	// Security engines — constructed once, torn down at shutdown.
	trail := audit.NewTrail(cfg.Audit.RingSize, sink)
	limiter := security.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
	authLimiter := security.NewRateLimiter(cfg.RateLimit.AuthRequests, cfg.RateLimit.AuthWindow)
	guard := security.NewGuard(security.GuardConfig{
		MaxAttempts:          cfg.Lockout.MaxLoginAttempts,
		LockoutDuration:      cfg.Lockout.LockoutDuration,
		AttemptWindow:        cfg.Lockout.AttemptWindow,
		ProgressiveLockout:   cfg.Lockout.ProgressiveLockout,
		DistributedThreshold: cfg.Lockout.DistributedThreshold,
	}, trail)
	tokenManager := auth.NewTokenManager(
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenExpiry,
		cfg.Auth.RefreshTokenExpiry,
		cfg.Auth.MaxSessionsPerUser,
	)

	// Credential collaborator. The business services own the canonical
	// user store; this directory backs development deployments.
	users := services.NewUserDirectory()
	if email := os.Getenv("BOOTSTRAP_ADMIN_EMAIL"); email != "" {
		if _, err := users.Seed(email, os.Getenv("BOOTSTRAP_ADMIN_PASSWORD"), models.RoleAdmin); err != nil {
			logger.Error("failed to seed admin user", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("admin user seeded")
	}

	authService := services.NewAuthService(users, guard, authLimiter, tokenManager, trail, logger)
	adminService := services.NewAdminService(guard, tokenManager, trail, logger)

	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}
	authHandler := handlers.NewAuthHandler(authService, ipConfig)
	adminHandler := handlers.NewAdminHandler(adminService)

	cleanupManager := background.NewCleanupManager(
		[]*security.RateLimiter{limiter, authLimiter},
		guard,
		tokenManager,
		logger,
		cfg.Cleanup.Interval,
		cfg.Cleanup.DeepInterval,
	)

	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.SecurityHeaders(middleware.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middleware.SecureLogger(logger))
	router.Use(middleware.RequestThrottle(cfg.RateLimit.Requests))
	router.Use(chimiddleware.Recoverer)
	router.Use(chimiddleware.Timeout(60 * time.Second))

	routes.Register(router, routes.Deps{
		AuthHandler:  authHandler,
		AdminHandler: adminHandler,
		TokenManager: tokenManager,
		Trail:        trail,
		Limiter:      limiter,
		AuthLimiter:  authLimiter,
		LimiterCap:   cfg.RateLimit.Requests,
		AuthCap:      cfg.RateLimit.AuthRequests,
		IPConfig:     ipConfig,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	go cleanupManager.Start(cleanupCtx)

	trail.Log(&audit.Event{
		Type:     audit.EventServiceStart,
		Severity: audit.SeverityInfo,
		Success:  true,
		Details:  map[string]interface{}{"port": cfg.Server.Port},
	})

	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	trail.Log(&audit.Event{
		Type:     audit.EventServiceStop,
		Severity: audit.SeverityInfo,
		Success:  true,
	})

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped")
}
