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

	"github.com/geocoder89/herapt/internal/auth"
	"github.com/geocoder89/herapt/internal/config"
	"github.com/geocoder89/herapt/internal/db"
	"github.com/geocoder89/herapt/internal/graph"
	httpx "github.com/geocoder89/herapt/internal/http"
	"github.com/geocoder89/herapt/internal/http/middlewares"
	"github.com/geocoder89/herapt/internal/ml"
	"github.com/geocoder89/herapt/internal/observability"
	"github.com/geocoder89/herapt/internal/redisclient"
	"github.com/geocoder89/herapt/internal/repo/memory"
	"github.com/geocoder89/herapt/internal/repo/mongodb"
	"github.com/geocoder89/herapt/internal/repo/postgres"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	// .env is optional; real environment wins
	_ = godotenv.Load()

	// Load the config set up
	cfg := config.Load()

	// start up the observability logger
	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid config", "err", err)
		os.Exit(1)
	}

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx := context.Background()

	shutdownTracer, err := observability.InitTracer(ctx, cfg.OTelEnabled, cfg.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracer(sctx)
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := observability.NewProm(reg)

	// wire up the user store
	users, closeStore, err := openStore(ctx, cfg, prom, log)
	if err != nil {
		return err
	}
	defer closeStore()

	if created, err := db.EnsureSeedMentor(ctx, users, cfg); err != nil {
		log.Warn("seed mentor failed", "err", err)
	} else if created {
		log.Info("seed mentor created", "email", cfg.SeedMentorEmail)
	}

	deps := httpx.Deps{
		Config:   cfg,
		Users:    users,
		Tokens:   auth.NewManager(cfg.JWTSecret, cfg.JWTTTL),
		Prom:     prom,
		Gatherer: reg,
	}

	// ML service behind the circuit breaker
	mlClient := ml.NewClient(cfg.MLServiceURL, cfg.MLTimeout, prom)
	deps.ML = ml.NewBreaker(mlClient, ml.BreakerConfig{
		Timeout:          cfg.MLTimeout,
		FailureThreshold: cfg.MLFailureThreshold,
		Cooldown:         cfg.MLCooldown,
	})

	// shared rate limit counters
	if cfg.RedisAddr != "" {
		rdb := redisclient.New(redisclient.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer func() { _ = rdb.Close() }()

		pctx, cancel := config.WithTimeout(ctx, 2*time.Second)
		err := rdb.Ping(pctx)
		cancel()

		if err != nil {
			log.Warn("redis unavailable, using in-process rate limiter", "addr", cfg.RedisAddr, "err", err)
		} else {
			deps.Limiter = middlewares.NewRedisLimiterStore(rdb)
			log.Info("redis rate limiter enabled", "addr", cfg.RedisAddr)
		}
	}

	// optional match graph projection
	if cfg.GraphURI != "" {
		gclient, err := graph.NewNeo4jClient(ctx, graph.Options{
			URI:      cfg.GraphURI,
			Database: cfg.GraphDatabase,
			Username: cfg.GraphUsername,
			Password: cfg.GraphPassword,
		})
		if err != nil {
			return fmt.Errorf("connect graph: %w", err)
		}
		defer func() { _ = gclient.Close(context.Background()) }()

		matchGraph := graph.NewMatchGraph(gclient, users)
		deps.Matches = matchGraph
		deps.Mentees = matchGraph
		log.Info("match graph enabled", "uri", cfg.GraphURI)
	}

	router := httpx.NewRouter(log, deps)

	// server set up
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.MLTimeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)

	go func() {
		log.Info("Server starting", "port", cfg.Port, "env", cfg.Env, "store", cfg.StoreDriver)
		err := srv.ListenAndServe()

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Graceful shutdown

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		return fmt.Errorf("server failed: %w", err)
	case <-stop:
	}

	log.Info("server shutting down")

	sctx, cancel := config.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	log.Info("shutdown complete")
	return nil
}

func openStore(ctx context.Context, cfg config.Config, prom *observability.Prom, log *slog.Logger) (httpx.UserStore, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreMemory:
		log.Warn("using in-memory user store; data is lost on restart")
		return memory.NewUsersRepo(), func() {}, nil

	case config.StoreMongo:
		repo, err := mongodb.Connect(ctx, cfg.MongoURI, cfg.MongoDB, prom)
		if err != nil {
			return nil, nil, fmt.Errorf("connect mongo: %w", err)
		}
		return repo, func() { _ = repo.Close(context.Background()) }, nil

	default:
		pool, err := db.NewPool(ctx, cfg.DBURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := db.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		return postgres.NewUsersRepo(pool, prom), pool.Close, nil
	}
}
