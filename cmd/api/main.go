package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/notemarket/backend/api/routes"
	"github.com/notemarket/backend/internal/accounts"
	"github.com/notemarket/backend/internal/admin"
	"github.com/notemarket/backend/internal/auth"
	"github.com/notemarket/backend/internal/entitlements"
	"github.com/notemarket/backend/internal/forum"
	"github.com/notemarket/backend/internal/ledger"
	"github.com/notemarket/backend/internal/notes"
	"github.com/notemarket/backend/internal/purchases"
	"github.com/notemarket/backend/internal/reviews"
	"github.com/notemarket/backend/internal/studyaids"
	"github.com/notemarket/backend/internal/subscriptions"
	"github.com/notemarket/backend/internal/tutoring"
	"github.com/notemarket/backend/internal/users"
	"github.com/notemarket/backend/internal/wallet"
	"github.com/notemarket/backend/pkg/auth/session"
	"github.com/notemarket/backend/pkg/config"
	"github.com/notemarket/backend/pkg/db"
	"github.com/notemarket/backend/pkg/logger"
	"github.com/notemarket/backend/pkg/metrics"
	"github.com/notemarket/backend/pkg/migrate"
	"github.com/notemarket/backend/pkg/openai"
	"github.com/notemarket/backend/pkg/outbox"
	"github.com/notemarket/backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	svcs, registry, err := buildServices(cfg, logg, dbClient, redisClient, sessionManager)
	if err != nil {
		logg.Error(context.Background(), "failed to wire services", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, sessionManager, svcs, registry),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown error", err)
		}
	}

	logg.Info(ctx, "api server shutting down gracefully")
}

func buildServices(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	redisClient *redis.Client,
	sessionManager *session.Manager,
) (routes.Services, *prometheus.Registry, error) {
	registry := prometheus.NewRegistry()
	walletMetrics := metrics.NewWalletMetrics(registry)

	commission, err := cfg.Wallet.Commission()
	if err != nil {
		return routes.Services{}, nil, err
	}
	platformID, err := uuid.Parse(cfg.Wallet.PlatformUserID)
	if err != nil {
		return routes.Services{}, nil, err
	}

	usersRepo := users.NewRepository(dbClient.DB())
	notesRepo := notes.NewRepository(dbClient.DB())
	purchasesRepo := purchases.NewRepository(dbClient.DB())
	reviewsRepo := reviews.NewRepository(dbClient.DB())
	tutoringRepo := tutoring.NewRepository(dbClient.DB())

	accountsSvc, err := accounts.NewService(accounts.NewRepository(dbClient.DB()))
	if err != nil {
		return routes.Services{}, nil, err
	}
	ledgerSvc, err := ledger.NewService(ledger.NewRepository(dbClient.DB()))
	if err != nil {
		return routes.Services{}, nil, err
	}
	events := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	entitlementsSvc, err := entitlements.NewService(purchasesRepo, accountsSvc)
	if err != nil {
		return routes.Services{}, nil, err
	}

	authSvc, err := auth.NewService(auth.ServiceParams{
		UserRepo:        usersRepo,
		SessionManager:  sessionManager,
		RateLimiter:     redisClient,
		JWTConfig:       cfg.JWT,
		PasswordConfig:  cfg.Password,
		RateLimitConfig: cfg.AuthRateLimit,
	})
	if err != nil {
		return routes.Services{}, nil, err
	}

	usersSvc, err := users.NewService(usersRepo)
	if err != nil {
		return routes.Services{}, nil, err
	}

	notesSvc, err := notes.NewService(notesRepo, dbClient, entitlementsSvc, events)
	if err != nil {
		return routes.Services{}, nil, err
	}

	purchasesSvc, err := purchases.NewService(purchases.Deps{
		DB:             dbClient,
		Repo:           purchasesRepo,
		NotesRepo:      notesRepo,
		Accounts:       accountsSvc,
		Ledger:         ledgerSvc,
		Events:         events,
		Metrics:        walletMetrics,
		CommissionRate: commission,
		PlatformID:     platformID,
	})
	if err != nil {
		return routes.Services{}, nil, err
	}

	walletSvc, err := wallet.NewService(wallet.Deps{
		DB:            dbClient,
		Accounts:      accountsSvc,
		Ledger:        ledgerSvc,
		Events:        events,
		Metrics:       walletMetrics,
		TopUpMaxCents: cfg.Wallet.TopUpMaxCents,
	})
	if err != nil {
		return routes.Services{}, nil, err
	}

	subscriptionsSvc, err := subscriptions.NewService(subscriptions.Deps{
		DB:         dbClient,
		Accounts:   accountsSvc,
		Ledger:     ledgerSvc,
		Events:     events,
		Metrics:    walletMetrics,
		PriceCents: cfg.Wallet.SubscriptionPriceCents,
		Duration:   time.Duration(cfg.Wallet.SubscriptionDurationDays) * 24 * time.Hour,
		PlatformID: platformID,
	})
	if err != nil {
		return routes.Services{}, nil, err
	}

	openaiClient, err := openai.NewFromConfig(cfg.OpenAI)
	if err != nil {
		return routes.Services{}, nil, err
	}
	generator, err := studyaids.NewOpenAIGenerator(openaiClient)
	if err != nil {
		return routes.Services{}, nil, err
	}
	studyAidsSvc, err := studyaids.NewService(studyaids.Deps{
		NotesRepo: notesRepo,
		Access:    entitlementsSvc,
		Generator: generator,
	})
	if err != nil {
		return routes.Services{}, nil, err
	}

	tutoringSvc, err := tutoring.NewService(tutoring.Deps{
		DB:       dbClient,
		Repo:     tutoringRepo,
		Accounts: accountsSvc,
		Ledger:   ledgerSvc,
		Events:   events,
		Metrics:  walletMetrics,
	})
	if err != nil {
		return routes.Services{}, nil, err
	}

	reviewsSvc, err := reviews.NewService(reviews.Deps{
		DB:        dbClient,
		Repo:      reviewsRepo,
		NotesRepo: notesRepo,
		Purchases: purchasesRepo,
	})
	if err != nil {
		return routes.Services{}, nil, err
	}

	forumSvc, err := forum.NewService(forum.NewRepository(dbClient.DB()), dbClient)
	if err != nil {
		return routes.Services{}, nil, err
	}

	adminSvc, err := admin.NewService(admin.NewRepository(dbClient.DB()), dbClient, events)
	if err != nil {
		return routes.Services{}, nil, err
	}

	return routes.Services{
		Auth:          authSvc,
		Users:         usersSvc,
		Notes:         notesSvc,
		Purchases:     purchasesSvc,
		Wallet:        walletSvc,
		Subscriptions: subscriptionsSvc,
		StudyAids:     studyAidsSvc,
		Tutoring:      tutoringSvc,
		Reviews:       reviewsSvc,
		Forum:         forumSvc,
		Admin:         adminSvc,
	}, registry, nil
}
