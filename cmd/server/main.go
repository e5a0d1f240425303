package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"foodwaste_ussd/internal/config"
	"foodwaste_ussd/internal/handler"
	"foodwaste_ussd/internal/logger"
	"foodwaste_ussd/internal/metrics"
	"foodwaste_ussd/internal/middleware"
	"foodwaste_ussd/internal/notifier"
	"foodwaste_ussd/internal/repository"
	"foodwaste_ussd/internal/service"
	"foodwaste_ussd/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	log := logger.New()
	defer func() { _ = log.Sync() }()

	// --- Configuration ---
	cfg, envLoaded, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}
	if !envLoaded {
		log.Info("No .env file in the working directory, relying on environment variables")
	}
	loc, err := cfg.Location()
	if err != nil {
		log.Fatal("Failed to load time zone", zap.Error(err))
	}

	// --- Database Connection ---
	ctx := context.Background()
	dbPool, err := config.ConnectDB(ctx, cfg.DB, log)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer dbPool.Close()

	// --- Auto Migration ---
	if err := config.AutoMigrate(ctx, dbPool, log); err != nil {
		log.Fatal("Failed to auto-migrate database", zap.Error(err))
	}

	// --- Repositories ---
	userRepo := repository.NewUserRepository(dbPool)
	listingRepo := repository.NewListingRepository(dbPool)

	// --- SMS ---
	var sms notifier.Sender
	if cfg.ATAPIKey != "" {
		sms = notifier.NewATSender(notifier.ATConfig{
			Username: cfg.ATUsername,
			APIKey:   cfg.ATAPIKey,
			SenderID: cfg.ATSenderID,
			BaseURL:  cfg.ATBaseURL,
			Timeout:  cfg.SMSTimeout,
		}, log)
	} else {
		log.Warn("AT_API_KEY not set, SMS will only be logged")
		sms = notifier.NewLogSender(log)
	}

	// --- Services ---
	m := metrics.New()
	ussdService := service.NewUSSDService(userRepo, listingRepo, sms, m, log, service.USSDOptions{
		Location:       loc,
		SMSConcurrency: cfg.SMSConcurrency,
		SMSTimeout:     cfg.SMSTimeout,
	})

	// --- Router ---
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(log))

	handler.NewUSSDHandler(ussdService, m, log).RegisterUSSDRoutes(router)

	if cfg.AdminEnabled() {
		jwtUtil := utils.NewJWTUtil(cfg.JWTSecret, cfg.JWTExpirationHours)
		adminService := service.NewAdminService(userRepo, listingRepo, jwtUtil, service.AdminCredentials{
			Phone:        cfg.AdminPhone,
			PasswordHash: cfg.AdminPasswordHash,
		})
		apiGroup := router.Group("/api/v1")
		handler.NewAdminHandler(adminService, log).RegisterAdminRoutes(apiGroup, middleware.JWTAuthMiddleware(jwtUtil))
	} else {
		log.Info("Operator API disabled, set JWT_SECRET_KEY, ADMIN_PHONE and ADMIN_PASSWORD_HASH to enable it")
	}

	router.GET("/health", func(c *gin.Context) {
		if err := dbPool.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "db": "unhealthy"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "db": "healthy"})
	})
	router.GET("/metrics", gin.WrapH(m.Handler()))

	// --- Start Server ---
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("Server starting", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	// handlers are done; let their SMS finish before the pool closes
	drainCtx, cancelDrain := context.WithTimeout(context.Background(), cfg.SMSTimeout+time.Second)
	defer cancelDrain()
	if err := ussdService.Drain(drainCtx); err != nil {
		log.Warn("Exiting with SMS still in flight", zap.Error(err))
	}

	log.Info("Server exiting")
}
