package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/rewardly/rewards-api/internal/config"
	"github.com/rewardly/rewards-api/internal/domain/auth"
	"github.com/rewardly/rewards-api/internal/domain/catalog"
	"github.com/rewardly/rewards-api/internal/domain/notification"
	"github.com/rewardly/rewards-api/internal/domain/reward"
	"github.com/rewardly/rewards-api/internal/domain/user"
	"github.com/rewardly/rewards-api/internal/domain/wallet"
	"github.com/rewardly/rewards-api/internal/middleware"
	"github.com/rewardly/rewards-api/internal/pkg/database"
	"github.com/rewardly/rewards-api/internal/pkg/jwt"
	pkgresponse "github.com/rewardly/rewards-api/internal/pkg/response"
	"github.com/rewardly/rewards-api/internal/pkg/stripe"
)

func main() {
	cfg := config.Load()
	setupLogger(cfg)

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Msg("Starting Rewards API")

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	redisClient, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(redisClient)

	jwtService := jwt.NewService(cfg.JWTSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL)

	stripeClient := stripe.NewClient(stripe.Config{
		SecretKey: cfg.StripeSecretKey,
		BaseURL:   cfg.StripeBaseURL,
		Timeout:   10 * time.Second,
	})

	// ---------- Repositories ----------
	userRepo := user.NewRepository(db)
	catalogRepo := catalog.NewRepository(db)
	walletRepo := wallet.NewRepository(db)
	rewardRepo := reward.NewRepository(db)
	notificationRepo := notification.NewRepository(db)

	// ---------- WebSocket hub ----------
	hub := notification.NewHub(redisClient)
	go hub.Run()
	defer hub.Shutdown()

	// ---------- Services ----------
	notificationService := notification.NewService(notificationRepo, notification.NewWSPublisher(hub))
	authService := auth.NewService(userRepo, jwtService, redisClient, notificationService)
	walletService := wallet.NewService(walletRepo, stripeClient, cfg.DefaultCurrency)
	rewardService := reward.NewService(db, rewardRepo, catalogRepo, userRepo, walletService, notificationService)

	// ---------- Background jobs ----------
	jobCtx, jobCancel := context.WithCancel(context.Background())
	defer jobCancel()
	cleanupJob := notification.NewCleanupJob(notificationRepo, 90*24*time.Hour)
	go cleanupJob.Start(jobCtx, 12*time.Hour)

	// ---------- Handlers ----------
	authHandler := auth.NewHandler(authService)
	userHandler := user.NewHandler(userRepo)
	walletHandler := wallet.NewHandler(walletService, &userResolver{repo: userRepo}, cfg.StripeWebhookSecret)
	rewardHandler := reward.NewHandler(rewardService)
	notificationHandler := notification.NewHandler(notificationService, hub, cfg.AllowedOrigins, cfg.IsDevelopment())

	authMiddleware := middleware.Auth(jwtService)

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))

	// WebSocket endpoint (before Compress; token may arrive as query param)
	r.Get("/ws/notifications", func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token != "" {
			r.Header.Set("Authorization", "Bearer "+token)
		}
		authMiddleware(http.HandlerFunc(notificationHandler.WebSocket)).ServeHTTP(w, r)
	})

	r.Group(func(r chi.Router) {
		r.Use(chimw.Compress(5))

		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			pkgresponse.OK(w, map[string]string{
				"status":  "ok",
				"version": "1.0.0",
			})
		})

		r.Route("/api/v1", func(r chi.Router) {
			r.Mount("/auth", authHandler.Routes(authMiddleware))
			r.Mount("/users", userHandler.Routes(authMiddleware))
			r.Mount("/wallet", walletHandler.Routes(authMiddleware))
			r.Mount("/rewards", rewardHandler.Routes(authMiddleware))
			r.Mount("/notifications", notificationHandler.Routes(authMiddleware))
		})
	})

	r.Mount("/webhooks", walletHandler.WebhookRoutes())

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}

func setupLogger(cfg *config.Config) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.IsDevelopment() {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05",
		})
	}
}

// userResolver adapts user.Repository to the wallet webhook's lookup interface
type userResolver struct {
	repo user.Repository
}

func (a *userResolver) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	u, err := a.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return u != nil, nil
}
