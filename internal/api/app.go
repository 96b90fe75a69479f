package api

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/felixgeelhaar/polyglot/internal/auth"
	"github.com/felixgeelhaar/polyglot/internal/cache"
	"github.com/felixgeelhaar/polyglot/internal/client"
	"github.com/felixgeelhaar/polyglot/internal/config"
	"github.com/felixgeelhaar/polyglot/internal/learningpath"
	"github.com/felixgeelhaar/polyglot/internal/onboarding"
	"github.com/felixgeelhaar/polyglot/internal/queue"
	"github.com/felixgeelhaar/polyglot/internal/storage/local"
	"github.com/felixgeelhaar/polyglot/internal/storage/sqlite"
)

// App holds all application dependencies
type App struct {
	Config *config.Config
	Logger *slog.Logger

	DB    *sqlite.DB
	Local *local.Store
	Cache *cache.SessionCache

	// Auth is nil when no Postgres connection is configured; the router
	// then falls back to header-based user identification.
	Auth       *auth.Service
	Onboarding *onboarding.Service
	Path       *learningpath.Service
	Exercising client.ExercisingAPI
	AuthAPI    client.AuthAPI

	Queue *queue.Connection

	pool          *pgxpool.Pool
	onboardingAPI *client.ResilientOnboarding
}

// NewApp wires up all application dependencies from the configuration.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	app := &App{Config: cfg, Logger: logger}

	dataDir := cfg.DataDir
	if dataDir == "" {
		dir, err := config.EnsurePolyglotDir()
		if err != nil {
			return nil, fmt.Errorf("ensure data dir: %w", err)
		}
		dataDir = filepath.Join(dir, "store")
	}

	store, err := local.NewStore(dataDir)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	app.Local = store

	var cacheOpts []cache.Option
	if cfg.CacheTTLMinutes > 0 {
		cacheOpts = append(cacheOpts, cache.WithTTL(time.Duration(cfg.CacheTTLMinutes)*time.Minute))
	}
	if cfg.CacheMaxEntries > 0 {
		cacheOpts = append(cacheOpts, cache.WithMaxEntries(cfg.CacheMaxEntries))
	}
	app.Cache = cache.New(store, cacheOpts...)

	db, err := sqlite.Open(cfg.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	app.DB = db

	// Backend clients: fixtures serve precanned content for local
	// development, REST clients talk to the real backends.
	var onboardingAPI client.OnboardingAPI
	if cfg.UseFixtures {
		fixtures, err := client.NewFixtureOnboarding()
		if err != nil {
			return nil, fmt.Errorf("load onboarding fixtures: %w", err)
		}
		onboardingAPI = fixtures
		app.Exercising = client.NewFixtureExercising()
		app.AuthAPI = client.NewFixtureAuth()
	} else {
		onboardingAPI = client.NewRESTOnboarding(cfg.OnboardingAPIURL, cfg.BackendToken)
		app.Exercising = client.NewRESTExercising(cfg.ExercisingAPIURL, cfg.BackendToken)
		app.AuthAPI = client.NewRESTAuth(cfg.AuthAPIURL)
	}
	resilient := client.NewResilientOnboarding(onboardingAPI, client.ResilientConfig{Logger: logger})
	app.onboardingAPI = resilient

	// Queue connection is optional: a dead broker degrades event
	// publishing, not the core flow.
	var onboardingEvents onboarding.EventPublisher
	var pathEvents learningpath.EventPublisher
	if cfg.RabbitMQURL != "" {
		conn, err := queue.NewConnection(cfg.RabbitMQURL)
		if err != nil {
			logger.Warn("rabbitmq unavailable, events disabled", "error", err)
		} else {
			app.Queue = conn
			producer := queue.NewProducer(conn)
			onboardingEvents = producer
			pathEvents = producer
		}
	}

	app.Onboarding = onboarding.NewService(
		resilient,
		sqlite.NewOnboardingStore(db),
		app.Cache,
		onboardingEvents,
		logger,
	)
	app.Path = learningpath.NewService(
		sqlite.NewPathStore(db),
		app.Cache,
		pathEvents,
		logger,
	)

	// Postgres-backed auth. Skipped in fixture mode so the daemon runs
	// without any external infrastructure.
	if !cfg.UseFixtures && cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("create pgx pool: %w", err)
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = pool.Ping(pingCtx)
		cancel()
		if err != nil {
			pool.Close()
			logger.Warn("postgres unavailable, session auth disabled", "error", err)
		} else {
			app.pool = pool
			repo := auth.NewPostgresRepository(pool)
			app.Auth = auth.NewService(repo, time.Duration(cfg.SessionMaxAge)*time.Second)
		}
	}

	return app, nil
}

// Close releases all application resources.
func (a *App) Close() error {
	var firstErr error

	if a.onboardingAPI != nil {
		if err := a.onboardingAPI.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if a.Queue != nil {
		if err := a.Queue.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}
