package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"authguard/internal/audit"
	"authguard/internal/auth"
	"authguard/internal/config"
	"authguard/internal/guard"
	"authguard/internal/httpapi"
	"authguard/internal/ratelimit"
	"authguard/internal/rbac"
	"authguard/internal/users"
	"authguard/pkg/logger"
	"authguard/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	res := &resources{log: log}

	codec, err := auth.NewCodec(cfg.Auth)
	if err != nil {
		res.fatal("auth init failed", err)
	}

	var (
		db        *sql.DB
		userRepo  users.Repository
		auditRepo audit.Repository
	)
	switch cfg.App.Storage {
	case config.StoragePostgres:
		db, err = utils.OpenPostgres(rootCtx, cfg.PostgresDSN(), utils.PostgresPoolConfig{})
		if err != nil {
			res.fatal("postgres init failed", err)
		}
		res.add("postgres", db)

		schema := append(append([]string{}, users.Schema...), audit.Schema...)
		if err := utils.ApplySchema(rootCtx, db, schema...); err != nil {
			res.fatal("schema apply failed", err)
		}
		userRepo = users.NewPostgresRepo(db)
		auditRepo = audit.NewPostgresRepo(db)
	default:
		log.Warn("using in-memory storage; accounts are lost on restart")
		userRepo = users.NewMemoryRepo()
		auditRepo = audit.NewMemoryRepo()
	}

	var store ratelimit.Store
	switch cfg.RateLimit.Backend {
	case config.BackendRedis:
		rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{
			Addrs:    cfg.RedisAddrs(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			res.fatal("redis init failed", err)
		}
		res.add("redis", rdb)
		store = ratelimit.NewRedisStore(rdb, "authguard:ratelimit:")
	default:
		store = ratelimit.NewMemoryStore()
	}
	limiter := ratelimit.New(store, cfg.RateLimit.MaxAttempts, cfg.RateLimit.Window, ratelimit.WithLogger(log))
	go limiter.RunSweeper(rootCtx, cfg.RateLimit.SweepInterval)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	auditSvc := audit.NewService(auditRepo)
	guards := guard.New(auth.NewResolver(codec), rbac.NewTable(), limiter,
		guard.WithMetrics(guard.NewMetrics(registry)),
		guard.OnRateLimited(func(c *gin.Context, scope string) {
			auditSvc.RateLimited(c.Request.Context(), scope, c.ClientIP())
		}),
	)

	h := &httpapi.Handlers{
		Users:   users.NewService(userRepo, auth.NewHasher(cfg.Auth.BcryptCost)),
		Codec:   codec,
		Cookies: auth.NewCookieStore(codec, cfg.Cookie, httpapi.RefreshPath),
		Guards:  guards,
		Audit:   auditSvc,
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           newRouter(log, h, registry, db),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env, "storage", cfg.App.Storage, "rate_limit_backend", cfg.RateLimit.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
	res.close()
}
