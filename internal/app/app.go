// Package app wires configuration, stores and services into the HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"branch-ledger/config"
	"branch-ledger/internal/adapter/events"
	httpHandler "branch-ledger/internal/adapter/http/handler"
	"branch-ledger/internal/adapter/storage/memory"
	pgStorage "branch-ledger/internal/adapter/storage/postgres"
	redisStorage "branch-ledger/internal/adapter/storage/redis"
	"branch-ledger/internal/branch"
	"branch-ledger/internal/core/domain"
	"branch-ledger/internal/core/ports"
	"branch-ledger/internal/observability"
	"branch-ledger/internal/service"
	"branch-ledger/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const shutdownTimeout = 10 * time.Second

// App is the assembled service.
type App struct {
	cfg     *config.Config
	log     zerolog.Logger
	handler http.Handler
	closers []func()
}

// New connects every configured store and builds the router. On error,
// whatever was already opened is closed again.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (a *App, err error) {
	a = &App{cfg: cfg, log: log}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	observability.Init()

	dir, err := branch.NewDirectory(cfg.Database, cfg.Branches)
	if err != nil {
		return nil, fmt.Errorf("building branch directory: %w", err)
	}

	var dailyLimit *decimal.Decimal
	if cfg.Ledger.DailyLimit != "" {
		limit, err := decimal.NewFromString(cfg.Ledger.DailyLimit)
		if err != nil || !limit.IsPositive() {
			return nil, fmt.Errorf("ledger.daily_limit %q must be a positive decimal", cfg.Ledger.DailyLimit)
		}
		dailyLimit = &limit
	}

	var (
		checkers []ports.HealthChecker
		userRepo ports.UserRepository
		opener   service.BackendOpener
	)

	switch cfg.Ledger.Backend {
	case "memory":
		log.Warn().Msg("using in-process ledger stores, balances are lost on restart")
		userRepo = memory.NewUserRepo()
		opener = func(_ context.Context, target domain.ConnectionTarget) (ports.Backend, error) {
			return memory.NewBackend(target.Name), nil
		}
	default:
		central := dir.ResolveCentralTarget()
		centralPool, err := a.openPool(ctx, central, true)
		if err != nil {
			return nil, err
		}
		userRepo = pgStorage.NewUserRepo(centralPool)
		checkers = append(checkers, pgStorage.NewStoreHealth(centralPool, central.Name, true))

		opener = func(ctx context.Context, target domain.ConnectionTarget) (ports.Backend, error) {
			pool := centralPool
			if target.DSN != central.DSN {
				branchPool, err := a.openPool(ctx, target, false)
				if err != nil {
					return ports.Backend{}, err
				}
				pool = branchPool
				checkers = append(checkers, pgStorage.NewStoreHealth(pool, target.Name, false))
			}
			return pgStorage.NewBackend(target.Name, pool, pgStorage.NewTransactor(pool, cfg.Ledger.LockTimeout)), nil
		}
	}

	router, err := service.NewLedgerRouter(ctx, dir, opener)
	if err != nil {
		return nil, err
	}

	var (
		idempCache ports.IdempotencyCache
		rateLimits ports.RateLimitStore
	)
	if cfg.Redis.Host != "" {
		rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = rdb.Close() })
		idempCache = redisStorage.NewIdempotencyCache(rdb)
		rateLimits = redisStorage.NewRateLimitStore(rdb)
		checkers = append(checkers, redisStorage.NewGuardHealth(rdb))
	} else {
		log.Warn().Msg("redis disabled: no transfer replay protection or rate limiting")
	}

	var publisher ports.EventPublisher = events.NoopPublisher{}
	if cfg.Kafka.Enabled() {
		kp := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger.Component(log, "events"))
		a.closers = append(a.closers, func() { _ = kp.Close() })
		publisher = kp
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("publishing ledger events")
	}

	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	hashSvc, err := service.NewArgon2HashService(service.Argon2Params{
		Time:      cfg.Password.Time,
		MemoryKiB: cfg.Password.MemoryKiB,
		Threads:   cfg.Password.Threads,
	})
	if err != nil {
		return nil, fmt.Errorf("password hashing: %w", err)
	}
	authSvc := service.NewAuthService(userRepo, dir, hashSvc, tokenSvc, logger.Component(log, "auth"))
	ledgerLog := logger.Component(log, "ledger")

	if cfg.Admin.Username != "" {
		created, err := authSvc.EnsureBankUser(ctx, cfg.Admin.Username, cfg.Admin.Password)
		if err != nil {
			return nil, err
		}
		if created {
			log.Info().Str("username", cfg.Admin.Username).Msg("bootstrap bank-level user created")
		}
	}

	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	a.handler = httpHandler.SetupRouter(httpHandler.RouterDeps{
		AuthSvc:        authSvc,
		LedgerSvc:      service.NewLedgerService(router, dir, publisher, ledgerLog),
		TransferSvc:    service.NewTransferService(router, idempCache, publisher, ledgerLog),
		HistorySvc:     service.NewHistoryService(router, dailyLimit),
		TokenSvc:       tokenSvc,
		Branches:       dir,
		RateLimitStore: rateLimits,
		HealthCheckers: checkers,
		Logger:         logger.Component(log, "http"),
	})

	log.Info().
		Str("backend", cfg.Ledger.Backend).
		Int("branches", len(dir.Branches())).
		Msg("application assembled")
	return a, nil
}

func (a *App) openPool(ctx context.Context, target domain.ConnectionTarget, central bool) (*pgxpool.Pool, error) {
	pool, err := pgStorage.NewPool(ctx, target, a.cfg.Database, a.log)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, pool.Close)

	if err := pgStorage.EnsureSchema(ctx, pool, central); err != nil {
		return nil, fmt.Errorf("%s: %w", target.Name, err)
	}
	return pool, nil
}

// Handler exposes the router, mainly for tests.
func (a *App) Handler() http.Handler {
	return a.handler
}

// Run serves HTTP until ctx is cancelled, then drains in-flight requests.
func (a *App) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", a.cfg.Server.Host, a.cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.log.Info().Msg("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

// Close releases connections in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
