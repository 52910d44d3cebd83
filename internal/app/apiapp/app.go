package apiapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/amouradev/amoura/backend/internal/config"
	"github.com/amouradev/amoura/backend/internal/infra/storeapi"
	syncjob "github.com/amouradev/amoura/backend/internal/jobs/sync"
	pgrepo "github.com/amouradev/amoura/backend/internal/repo/postgres"
	redrepo "github.com/amouradev/amoura/backend/internal/repo/redis"
	authsvc "github.com/amouradev/amoura/backend/internal/services/auth"
	entsvc "github.com/amouradev/amoura/backend/internal/services/entitlements"
	ledgersvc "github.com/amouradev/amoura/backend/internal/services/ledger"
	paysvc "github.com/amouradev/amoura/backend/internal/services/payments"
	ratesvc "github.com/amouradev/amoura/backend/internal/services/rate"
	reconcilesvc "github.com/amouradev/amoura/backend/internal/services/reconcile"
)

type App struct {
	cfg        config.Config
	logger     *zap.Logger
	server     *http.Server
	postgres   *pgxpool.Pool
	redis      *goredis.Client
	syncJob    *syncjob.Job
	httpRouter http.Handler
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	r := chi.NewRouter()
	ApplyMiddlewares(r, log)

	var pool *pgxpool.Pool
	if p, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN); err != nil {
		log.Warn("postgres init failed, continuing in degraded mode", zap.Error(err))
	} else {
		pool = p
	}

	redisClient := redrepo.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	sessionRepo := redrepo.NewSessionRepo(redisClient)
	otpRepo := redrepo.NewOTPRepo(redisClient)
	rateRepo := redrepo.NewRateRepo(redisClient)
	userRepo := pgrepo.NewUserRepo(pool)
	ledgerRepo := pgrepo.NewLedgerRepo(pool)
	purchaseRepo := pgrepo.NewPurchaseRepo(pool)

	ledgerService := ledgersvc.NewService(ledgerRepo, ledgersvc.Config{
		DefaultTimezone: cfg.Membership.DefaultTimezone,
	})
	entitlementService := entsvc.NewService(ledgerService)
	reconcileService := reconcilesvc.NewService(ledgerService, log)
	jwtManager := authsvc.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTAccessTTL)
	authService := authsvc.NewService(authsvc.Dependencies{
		JWT:      jwtManager,
		Sessions: sessionRepo,
		Codes:    otpRepo,
		Users:    userRepo,
		Ledger:   ledgerService,
	}, authsvc.Config{
		RefreshTTL:  cfg.Auth.RefreshTTL,
		CodeTTL:     cfg.Auth.CodeTTL,
		MaxAttempts: cfg.Auth.CodeAttempts,
	})
	paymentService := paysvc.NewService(paysvc.Dependencies{
		Purchases: purchaseRepo,
		Credits:   ledgerService,
		Snapshots: reconcileService,
	})
	rateLimiter := ratesvc.NewLimiter(
		rateRepo,
		cfg.Limits.ActionsPerMinute,
		cfg.Limits.ActionsPerBurst,
	)

	var job *syncjob.Job
	if cfg.Sync.Enabled && cfg.StoreAPI.BaseURL != "" {
		fetcher, err := storeapi.NewClient(storeapi.Config{
			BaseURL: cfg.StoreAPI.BaseURL,
			Token:   cfg.StoreAPI.Token,
			Timeout: cfg.StoreAPI.Timeout,
		})
		if err != nil {
			log.Warn("store api init failed, sync job disabled", zap.Error(err))
		} else {
			job = syncjob.New(ledgerRepo, fetcher, reconcileService, cfg.Sync.Staleness, log)
		}
	}

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	RegisterRoutes(r, Dependencies{
		AuthService:        authService,
		LedgerService:      ledgerService,
		EntitlementService: entitlementService,
		ReconcileService:   reconcileService,
		PaymentService:     paymentService,
		RateLimiter:        rateLimiter,
		Logger:             log,
		Config:             cfg,
	})

	return &App{
		cfg:        cfg,
		logger:     log,
		server:     server,
		postgres:   pool,
		redis:      redisClient,
		syncJob:    job,
		httpRouter: r,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	if a.syncJob != nil {
		go a.syncJob.Start(ctx, a.cfg.Sync.Interval)
	}

	a.logger.Info("api server started", zap.String("addr", a.cfg.HTTP.Addr))
	err := a.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error

	if err := a.server.Shutdown(ctx); err != nil {
		shutdownErr = err
	}
	if a.postgres != nil {
		a.postgres.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil && shutdownErr == nil {
			shutdownErr = err
		}
	}

	return shutdownErr
}

func (a *App) Handler() http.Handler {
	return a.httpRouter
}
