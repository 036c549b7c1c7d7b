package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/smartshop/smartshop-backend/config"
	"github.com/smartshop/smartshop-backend/internal/app/controller"
	"github.com/smartshop/smartshop-backend/internal/app/repository"
	"github.com/smartshop/smartshop-backend/internal/app/service"
	"github.com/smartshop/smartshop-backend/internal/db"
	"github.com/smartshop/smartshop-backend/internal/metrics"
	"github.com/smartshop/smartshop-backend/internal/middleware"
	"github.com/smartshop/smartshop-backend/internal/router"
	"github.com/smartshop/smartshop-backend/internal/scheduler"
	"github.com/smartshop/smartshop-backend/internal/storage"
	ws "github.com/smartshop/smartshop-backend/internal/websocket"
	"github.com/smartshop/smartshop-backend/pkg/logger"
	"github.com/smartshop/smartshop-backend/pkg/mailer"
	"github.com/smartshop/smartshop-backend/pkg/redis"
	"github.com/smartshop/smartshop-backend/pkg/vies"
)

// 배송 실패 streak 보관 기간 (redis)
const failureStreakTTL = 7 * 24 * time.Hour

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", err)
	}

	// Initialize logger
	logLevel := "info"
	logFormat := "json"
	if cfg.Server.Environment == "development" {
		logLevel = "debug"
		logFormat = "console"
	}
	logger.Initialize(logger.Config{
		Level:       logLevel,
		Format:      logFormat,
		EnableColor: true,
	})

	logger.Info("Starting SmartShop partner backend", map[string]interface{}{
		"environment": cfg.Server.Environment,
		"port":        cfg.Server.Port,
		"log_level":   logLevel,
	})

	// Initialize database
	if err := db.Initialize(&cfg.Database); err != nil {
		logger.Fatal("Failed to initialize database", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database connection", err)
		}
	}()

	if err := db.Migrate(&cfg.Admin); err != nil {
		logger.Fatal("Failed to run migrations", err)
	}

	// Redis (optional): token blacklist, delivery streaks
	if cfg.Redis.Enabled {
		if err := redis.Init(&cfg.Redis); err != nil {
			logger.Warn("Redis unavailable, continuing without it", map[string]interface{}{
				"error": err.Error(),
			})
		} else {
			defer redis.Close()
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	// Admin console push
	hub := ws.NewHub()
	go hub.Run(ctx)

	// Repositories
	gormDB := db.GetDB()
	userRepo := repository.NewUserRepository(gormDB)
	companyRepo := repository.NewCompanyRepository(gormDB)
	eventRepo := repository.NewVerificationEventRepository(gormDB)
	alertRepo := repository.NewCRMAlertRepository(gormDB)

	// Services
	alertService := service.NewCRMAlertService(alertRepo, hub, m)

	var tracker service.FailureTracker
	if cfg.Notification.UseRedisTracking && redis.GetClient() != nil {
		tracker = redis.NewFailureTracker(redis.GetClient(), failureStreakTTL)
	} else {
		tracker = service.NewDBFailureTracker(repository.NewDeliveryStreakRepository(gormDB))
	}

	dispatcher := service.NewNotificationDispatcher(
		service.NewDispatcherConfig(cfg.Notification, cfg.Mail.FrontendURL),
		companyRepo,
		mailer.NewSMTPSender(cfg.Mail),
		alertService,
		tracker,
		m,
	)
	dispatcher.Start(ctx)

	verificationService := service.NewVerificationService(
		companyRepo,
		eventRepo,
		service.NewVerificationEvaluator(service.NewVerificationRules(
			cfg.Verification.AllowedCountries,
			cfg.Verification.BlockedCountries,
			cfg.Verification.RequireDocuments,
		)),
		dispatcher,
		alertService,
		m,
	)

	var checker service.VATChecker
	if cfg.VIES.Enabled {
		client, err := vies.NewClient(vies.Config{BaseURL: cfg.VIES.BaseURL, Timeout: cfg.VIES.Timeout})
		if err != nil {
			logger.Warn("VIES client disabled", map[string]interface{}{
				"error": err.Error(),
			})
		} else {
			checker = client
		}
	}

	recheckService := service.NewPartnerRecheckService(
		service.NewRecheckConfig(cfg.Scheduler),
		companyRepo,
		verificationService,
		alertService,
		checker,
		m,
	)

	var verificationScheduler *scheduler.VerificationScheduler
	if cfg.Scheduler.Enabled {
		verificationScheduler = scheduler.NewVerificationScheduler(recheckService, cfg.Scheduler.RecheckSpec, cfg.Scheduler.PendingSweepSpec)
		if err := verificationScheduler.Start(); err != nil {
			logger.Fatal("Failed to start verification scheduler", err)
		}
	}

	authService := service.NewAuthService(
		userRepo,
		cfg.JWT.Secret,
		cfg.JWT.AccessTokenExpiry,
		cfg.JWT.RefreshTokenExpiry,
	)
	documentService := service.NewDocumentService(storage.NewS3Storage(&cfg.S3))

	// Controllers
	r := router.NewRouter(
		controller.NewAuthController(authService),
		controller.NewCompanyController(verificationService, documentService),
		controller.NewAdminCompanyController(verificationService),
		controller.NewAlertController(alertService, hub, cfg.CORS.AllowedOrigins),
		middleware.NewAuthMiddleware(cfg.JWT.Secret),
		m,
		registry,
		cfg,
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           r.Setup(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server started successfully", map[string]interface{}{
			"address": srv.Addr,
			"pid":     os.Getpid(),
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", err)
	}

	if verificationScheduler != nil {
		verificationScheduler.Stop()
	}
	// 큐에 남은 알림 발송 후 종료
	dispatcher.Stop()
	cancel()

	logger.Info("Server stopped successfully")
}
