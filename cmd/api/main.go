package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/cicalumni/alumni-api/internal/auth"
	"github.com/cicalumni/alumni-api/internal/background"
	"github.com/cicalumni/alumni-api/internal/config"
	"github.com/cicalumni/alumni-api/internal/database"
	"github.com/cicalumni/alumni-api/internal/handlers"
	middlewareCustom "github.com/cicalumni/alumni-api/internal/middleware"
	"github.com/cicalumni/alumni-api/internal/repositories"
	"github.com/cicalumni/alumni-api/internal/routes"
	"github.com/cicalumni/alumni-api/internal/services"
	pkgauth "github.com/cicalumni/alumni-api/pkg/auth"
	pkghttp "github.com/cicalumni/alumni-api/pkg/http"
	pkglogger "github.com/cicalumni/alumni-api/pkg/logger"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.Server.LogLevel)}))
	slog.SetDefault(logger)
	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Schema first, then the pool
	migrateCtx, migrateCancel := context.WithTimeout(context.Background(), time.Minute)
	if err := database.Migrate(migrateCtx, cfg.Database.DSN(), logger); err != nil {
		migrateCancel()
		logger.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}
	migrateCancel()

	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	accountRepo := repositories.NewAccountRepository(db)

	tokenManager := auth.NewTokenManager(
		cfg.Auth.AccessSecret,
		cfg.Auth.RefreshSecret,
		cfg.Auth.AccessTokenExpiry,
		cfg.Auth.RefreshTokenExpiry,
	)
	hasher := pkgauth.NewPasswordHasher(cfg.Auth.BcryptCost)
	failureDelay := auth.NewFailureDelay(cfg.Auth.LoginFailureDelay, cfg.Auth.LoginFailureJitter)
	auditLogger := pkglogger.NewAuditLogger(logger)

	mailer, err := newMailer(cfg.Mail, logger)
	if err != nil {
		logger.Error("failed to initialize mailer", slog.Any("error", err))
		os.Exit(1)
	}

	// Initialize services
	authService := services.NewAuthService(accountRepo, tokenManager, hasher, mailer, failureDelay, services.AuthConfig{
		OpaqueTokenTTL:         cfg.Auth.OpaqueTokenExpiry,
		AllowAdminSignup:       cfg.Auth.AllowAdminSignup,
		VerifyURL:              cfg.Mail.VerifyURL,
		VerifiedRedirectURL:    cfg.Mail.VerifiedRedirectURL,
		AllowedRedirectOrigins: cfg.Server.AllowedOrigins,
	}, logger, auditLogger)
	adminService := services.NewAdminService(accountRepo, hasher, logger, auditLogger)

	// Bootstrap the first administrator if configured
	if cfg.Admin.Email != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := adminService.EnsureAdmin(ctx, cfg.Admin.Email, cfg.Admin.Username, cfg.Admin.Password); err != nil {
			logger.Error("failed to ensure admin account", slog.Any("error", err))
		}
		cancel()
	} else {
		logger.Info("no ADMIN_EMAIL set, skipping admin bootstrap")
	}

	ipConfig := pkghttp.ParseTrustedProxies(cfg.Server.TrustedProxies)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService, ipConfig)
	adminHandler := handlers.NewAdminHandler(adminService)

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(middlewareCustom.DefaultCORSConfig(cfg.Server.AllowedOrigins)))
	router.Use(middlewareCustom.SecureLogger(logger, ipConfig))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	router.Route("/api", func(r chi.Router) {
		routes.RegisterRoutes(r, routes.Dependencies{
			AuthHandler:  authHandler,
			AdminHandler: adminHandler,
			Tokens:       tokenManager,
			Accounts:     accountRepo,
			RateLimit: middlewareCustom.RateLimitConfig{
				RequestsPerMinute: cfg.Server.AuthRateLimit,
				IPConfig:          ipConfig,
			},
		})
	})

	// Health check with database
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			pkghttp.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "database": "down"})
			return
		}
		pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy", "database": "up"})
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start token sweeper
	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	defer sweepCancel()

	sweeper := background.NewTokenSweeper(accountRepo, logger, cfg.Auth.SweepInterval)
	go sweeper.Start(sweepCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	sweeper.Stop()
	sweepCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

// newMailer selects the outbound mail transport.
func newMailer(cfg config.MailConfig, logger *slog.Logger) (services.Mailer, error) {
	if cfg.Provider == "ses" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return services.NewSESMailer(ctx, cfg.AWSRegion, cfg.From, logger)
	}
	return services.NewSMTPMailer(cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.From, cfg.InsecureSkipVerify, logger), nil
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
