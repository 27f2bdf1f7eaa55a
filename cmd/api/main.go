package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/nakamastream/accounts/internal/auth"
	"github.com/nakamastream/accounts/internal/background"
	"github.com/nakamastream/accounts/internal/captcha"
	"github.com/nakamastream/accounts/internal/config"
	"github.com/nakamastream/accounts/internal/database"
	"github.com/nakamastream/accounts/internal/handlers"
	middlewareCustom "github.com/nakamastream/accounts/internal/middleware"
	"github.com/nakamastream/accounts/internal/models"
	"github.com/nakamastream/accounts/internal/repositories"
	"github.com/nakamastream/accounts/internal/routes"
	"github.com/nakamastream/accounts/internal/services"
	"github.com/nakamastream/accounts/internal/session"
	pkgauth "github.com/nakamastream/accounts/pkg/auth"
	pkghttp "github.com/nakamastream/accounts/pkg/http"
	pkglogger "github.com/nakamastream/accounts/pkg/logger"
	"github.com/redis/go-redis/v9"
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

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Initialize Redis session store
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		pingCancel()
		logger.Error("failed to connect to redis", slog.Any("error", err))
		os.Exit(1)
	}
	pingCancel()

	sessionStore := session.NewStore(redisClient, cfg.Policy.SessionTTL, logger)

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	resetRepo := repositories.NewPasswordResetRepository(db)
	attemptRepo := repositories.NewLoginAttemptRepository(db)

	// Initialize cleanup manager
	cleanupManager := background.NewCleanupManager(resetRepo, attemptRepo, logger, cfg.Policy.CleanupInterval)

	auditLogger := pkglogger.NewAuditLogger(logger)

	// Captcha: external proof verifier for registration, session-bound
	// word challenge for login
	proofVerifier := captcha.NewVerifier(cfg.Captcha.Secret, cfg.Captcha.VerifyURL, cfg.Captcha.VerifyTimeout, logger)
	phraseManager := captcha.NewManager(cfg.Captcha.Words, sessionStore, logger)

	// Timing delay for auth security
	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelayMs:   100,
		RandomDelayMs: 100,
	})

	// AWS SES email service
	emailService, err := services.NewAWSSESEmailService(
		cfg.Email.AWSRegion,
		cfg.Email.FromAddress,
		cfg.Email.ResetTemplates,
		logger,
	)
	if err != nil {
		logger.Error("failed to initialize email service", slog.Any("error", err))
		os.Exit(1)
	}

	// Initialize services
	registrationService := services.NewRegistrationService(
		userRepo,
		proofVerifier,
		cfg.Policy.AllowedEmailDomains,
		cfg.Policy.MaxAccountsPerIP,
		logger,
		auditLogger,
	)
	authService := services.NewAuthService(
		userRepo,
		attemptRepo,
		sessionStore,
		phraseManager,
		timingDelay,
		cfg.Policy.MaxLoginAttempts,
		cfg.Policy.LoginWindow,
		logger,
		auditLogger,
	)
	resetService := services.NewPasswordResetService(
		userRepo,
		resetRepo,
		db,
		emailService,
		cfg.Email.ResetBaseURL,
		cfg.Policy.ResetTokenTTL,
		logger,
		auditLogger,
	)
	userService := services.NewUserService(userRepo, logger, auditLogger)

	cookieConfig := auth.CookieConfig{
		Secure:   cfg.Server.Env == "production",
		SameSite: "lax",
	}
	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(registrationService, authService, phraseManager, cookieConfig, ipConfig)
	passwordHandler := handlers.NewPasswordHandler(resetService, userService, ipConfig)
	profileHandler := handlers.NewProfileHandler(userService, sessionStore, logger)
	adminHandler := handlers.NewAdminHandler(userService)

	// Bootstrap first admin user if configured
	bootCtx, bootCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := ensureAdminUser(bootCtx, userRepo, logger); err != nil {
		logger.Error("failed to ensure admin user", slog.Any("error", err))
	}
	bootCancel()

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// Register routes
	routes.RegisterRoutes(
		router,
		authHandler,
		passwordHandler,
		profileHandler,
		adminHandler,
		sessionStore,
		cookieConfig,
		int(cfg.Policy.SessionTTL.Seconds()),
	)

	// Health check with database
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","database":"up"}`))
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start cleanup task
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

// ensureAdminUser creates the first admin user if ADMIN_USERNAME,
// ADMIN_EMAIL and ADMIN_PASSWORD are set
func ensureAdminUser(ctx context.Context, userRepo *repositories.UserRepository, logger *slog.Logger) error {
	adminUsername := os.Getenv("ADMIN_USERNAME")
	adminEmail := os.Getenv("ADMIN_EMAIL")
	adminPassword := os.Getenv("ADMIN_PASSWORD")

	if adminUsername == "" || adminEmail == "" || adminPassword == "" {
		logger.Info("admin bootstrap variables not set, skipping admin user creation")
		return nil
	}

	_, err := userRepo.GetByEmail(ctx, adminEmail)
	if err == nil {
		logger.Info("admin user already exists")
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to check if admin exists: %w", err)
	}

	hashedPassword, err := pkgauth.HashPassword(adminPassword)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	admin := &models.User{
		Username:       adminUsername,
		Email:          adminEmail,
		PasswordHash:   hashedPassword,
		IsAdmin:        true,
		RegistrationIP: "127.0.0.1",
	}

	if _, err := userRepo.Create(ctx, admin); err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	logger.Info("admin user created successfully")
	return nil
}
