package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/campaignwala/backend/docs"
	"github.com/campaignwala/backend/internal/audit"
	"github.com/campaignwala/backend/internal/config"
	"github.com/campaignwala/backend/internal/database"
	"github.com/campaignwala/backend/internal/handlers"
	"github.com/campaignwala/backend/internal/logging"
	mW "github.com/campaignwala/backend/internal/middleware"
	"github.com/campaignwala/backend/internal/notify"
	"github.com/campaignwala/backend/internal/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"
)

// @title Campaignwala Backend API
// @version 1.0
// @description Referral and lead-generation API: offers, leads, commissions, wallets and withdrawals.
// @host localhost:8080
// @BasePath /api
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the JWT.

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logging.InitLogger(cfg.IsProduction()); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	logger := logging.Logger
	defer logger.Sync()

	if cfg.ConfigFile == "" {
		logger.Info("no .env file found, using environment and defaults")
	}

	docs.SwaggerInfo.Host = "localhost:" + cfg.Port
	docs.SwaggerInfo.BasePath = "/api"

	db := database.InitDatabase(logger)
	defer db.Close()

	if cfg.AutoMigrate {
		applied, err := database.Migrate(context.Background(), db)
		if err != nil {
			logger.Fatal("failed to apply migrations", zap.Error(err))
		}
		logger.Info("migrations applied", zap.Strings("applied", applied))
	}

	redisClient := database.InitRedis(logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	auditLogger := audit.NewAuditLogger(logger)
	hasher := services.NewPasswordHasher(cfg.Argon2)
	tokens := services.NewTokenIssuer(cfg.JWT)

	userService := services.NewUserService(db, hasher, logger)
	ledger := services.NewWalletLedger(db, auditLogger, logger)
	authService := services.NewAuthService(userService, tokens, hasher, redisClient,
		notify.NewSMTPMailer(cfg.SMTP, cfg.OTP, logger), notify.NewHTTPSMSSender(cfg.SMS, logger), cfg.OTP, logger)

	exposeErrors := !cfg.IsProduction()
	api := &handlers.Handlers{
		Auth:        handlers.NewAuthHandler(authService, exposeErrors, logger),
		Users:       handlers.NewUserHandler(userService, exposeErrors, logger),
		Offers:      handlers.NewOfferHandler(services.NewOfferService(db, cfg.PublicBaseURL, logger), exposeErrors, logger),
		Leads:       handlers.NewLeadHandler(services.NewLeadService(db, ledger, auditLogger, logger), exposeErrors, logger),
		Wallet:      handlers.NewWalletHandler(ledger, exposeErrors, logger),
		Withdrawals: handlers.NewWithdrawalHandler(services.NewWithdrawalService(db, ledger, auditLogger, logger), exposeErrors, logger),
	}
	auth := mW.NewAuth(tokens, redisClient, userService, logger)

	// Setup router
	r := chi.NewRouter()

	r.Use(mW.SecurityHeaders)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mW.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		status, code := "healthy", http.StatusOK
		if err := db.PingContext(r.Context()); err != nil {
			status, code = "unhealthy", http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]any{
			"status":   status,
			"redis":    redisClient != nil,
			"database": code == http.StatusOK,
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	// Offer images, with a placeholder for anything missing
	r.Handle("/uploads/offers/*", http.StripPrefix("/uploads/offers", mW.OfferImageServer(cfg.UploadDir)))

	r.Route("/api", func(r chi.Router) {
		api.Mount(r, auth)
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", server.Addr), zap.String("env", cfg.Env))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
