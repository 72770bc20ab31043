package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/bugzapp/internal/auth"
	"github.com/geocoder89/bugzapp/internal/cache"
	"github.com/geocoder89/bugzapp/internal/config"
	"github.com/geocoder89/bugzapp/internal/db"
	httpx "github.com/geocoder89/bugzapp/internal/http"
	"github.com/geocoder89/bugzapp/internal/observability"
	"github.com/geocoder89/bugzapp/internal/repo/memory"
	"github.com/geocoder89/bugzapp/internal/repo/postgres"
	"github.com/geocoder89/bugzapp/internal/service"
)

func main() {
	cfg := config.Load()

	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid config", "err", err)
		os.Exit(1)
	}

	policy, err := service.ParsePolicy(cfg.BugMutationPolicy)
	if err != nil {
		log.Error("invalid config", "err", err)
		os.Exit(1)
	}

	rootCtx, stopSignals := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()

	shutdownTracer, err := observability.InitTracer(rootCtx, observability.TracerConfig{
		ServiceName: "bugzapp-api",
		Env:         cfg.Env,
		Endpoint:    cfg.OTelEndpoint,
		SampleRatio: cfg.OTelSampleRatio,
	})
	if err != nil {
		log.Error("tracer init failed", "err", err)
		os.Exit(1)
	}

	prom := observability.NewProm()

	// storage
	var (
		users   service.UserStore
		bugs    service.BugStore
		ping    func(ctx context.Context) error
		closers []func()
	)

	switch cfg.StorageDriver {
	case "memory":
		log.Warn("using in-memory storage, data is lost on restart")
		users = memory.NewUsersRepo()
		bugs = memory.NewBugsRepo()

	default:
		pool, err := db.NewPool(rootCtx, db.PoolConfig{URL: cfg.DBURL, MaxConns: cfg.DBMaxConns})
		if err != nil {
			log.Error("db connect failed", "err", err)
			os.Exit(1)
		}
		closers = append(closers, pool.Close)

		if cfg.DBAutoMigrate {
			if err := db.Migrate(rootCtx, pool); err != nil {
				log.Error("db migrate failed", "err", err)
				os.Exit(1)
			}
		}

		users = postgres.NewUsersRepo(pool, prom)
		bugs = postgres.NewBugsRepo(pool, prom)
		ping = func(ctx context.Context) error {
			return db.Ping(ctx, pool)
		}
	}

	// read cache
	bugOpts := []service.BugOption{service.WithPolicy(policy), service.WithMetrics(prom)}

	switch {
	case cfg.RedisAddr != "":
		rs := cache.NewRedisStore(cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, cacheTTL(cfg))

		pingCtx, cancel := context.WithTimeout(rootCtx, 2*time.Second)
		if err := rs.Ping(pingCtx); err != nil {
			// lookups degrade to misses while redis is away
			log.Warn("redis unreachable at startup", "addr", cfg.RedisAddr, "err", err)
		}
		cancel()

		closers = append(closers, func() { _ = rs.Close() })
		bugOpts = append(bugOpts, service.WithCache(rs))

	case cfg.CacheTTL > 0:
		bugOpts = append(bugOpts, service.WithCache(cache.New(cfg.CacheTTL)))
	}

	tokens := auth.NewManager(cfg.JWTSecret, cfg.JWTTTL)
	authSvc := service.NewAuthService(users, tokens, prom)
	bugSvc := service.NewBugService(bugs, bugOpts...)

	if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
		seedCtx, cancel := context.WithTimeout(rootCtx, 5*time.Second)
		if err := authSvc.EnsureAdmin(seedCtx, cfg.AdminEmail, cfg.AdminPassword, cfg.AdminName); err != nil {
			log.Error("admin seed failed", "err", err)
		}
		cancel()
	}

	router := httpx.NewRouter(httpx.Deps{
		Log:      log,
		Cfg:      cfg,
		Auth:     authSvc,
		Bugs:     bugSvc,
		Verifier: tokens,
		Prom:     prom,
		Ping:     ping,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("server starting",
			"port", cfg.Port,
			"env", cfg.Env,
			"storage", cfg.StorageDriver,
			"policy", string(policy),
		)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	// graceful shutdown
	<-rootCtx.Done()
	log.Info("server shutting down")

	ctx, cancel := config.WithTimeout(10 * time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "err", err)
	}

	for i := len(closers) - 1; i >= 0; i-- {
		closers[i]()
	}

	if err := shutdownTracer(ctx); err != nil {
		log.Error("tracer shutdown failed", "err", err)
	}

	log.Info("shutdown complete")
}

// redis entries need an expiry even when no TTL is configured
func cacheTTL(cfg config.Config) time.Duration {
	if cfg.CacheTTL > 0 {
		return cfg.CacheTTL
	}
	return 30 * time.Second
}
