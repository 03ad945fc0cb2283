package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/lzjever/mbos-devbox/internal/api"
	"github.com/lzjever/mbos-devbox/internal/auth"
	"github.com/lzjever/mbos-devbox/internal/mirror"
	"github.com/lzjever/mbos-devbox/internal/observability"
	"github.com/lzjever/mbos-devbox/internal/quota"
	"github.com/lzjever/mbos-devbox/internal/store"
	"github.com/lzjever/mbos-devbox/internal/terminal"
	"github.com/lzjever/mbos-devbox/internal/workdir"
	"github.com/lzjever/mbos-devbox/internal/workspace"
)

type auditStore interface {
	workspace.AuditSink
	api.AuditReader
}

func main() {
	var cfg api.Config
	if err := envconfig.Process("", &cfg); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, _ := observability.NewLogger(cfg.LogLevel)
	defer log.Sync()

	zap.ReplaceGlobals(log)

	reg := prometheus.DefaultRegisterer
	observability.RegisterAll(reg)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var (
		files     mirror.Store
		directory auth.Directory
		audit     auditStore
		checks    []func(context.Context) error
	)
	if cfg.DBDSN != "" {
		pool, err := store.NewPool(ctx, cfg.DBDSN)
		if err != nil {
			log.Fatal("db connect failed", zap.Error(err))
		}
		defer pool.Close()
		if err := store.Migrate(ctx, pool); err != nil {
			log.Fatal("db migrate failed", zap.Error(err))
		}
		files = store.NewProjectStore(pool)
		directory = store.NewDirectory(pool)
		audit = store.NewAuditLog(pool)
		checks = append(checks, pool.Ping)
	} else {
		log.Warn("DEVBOX_DB_DSN not set, using in-memory store")
		mem := store.NewMemoryStore()
		dev := auth.NewMemoryDirectory()
		for _, pair := range cfg.DevOwners {
			if user, ws, ok := strings.Cut(pair, ":"); ok {
				dev.Grant(user, ws)
			}
		}
		for _, pair := range cfg.DevShares {
			if user, ws, ok := strings.Cut(pair, ":"); ok {
				dev.Share(user, ws)
			}
		}
		files, directory, audit = mem, dev, mem
	}
	if cfg.DirectoryURL != "" {
		directory = auth.NewHTTPDirectory(cfg.DirectoryURL, cfg.DirectoryToken, cfg.DirectoryTimeout)
	}

	limits := quota.UniformLimits(cfg.QuotaInterval, cfg.QuotaBurst)
	var gate quota.Gate
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		gate = quota.NewRedis(rdb, limits)
		checks = append(checks, func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	} else {
		local := quota.NewLocal(limits)
		go local.RunPruner(ctx, time.Minute, 10*time.Minute)
		gate = local
	}

	dir, err := workdir.New(cfg.WorkRoot, log)
	if err != nil {
		log.Fatal("work root unusable", zap.String("root", cfg.WorkRoot), zap.Error(err))
	}
	log.Info("working directory ready", zap.String("root", dir.Root()))

	registry := workspace.NewRegistry(cfg.Workspace, workspace.Deps{
		Store:   files,
		Dir:     dir,
		Quota:   gate,
		Audit:   audit,
		Spawner: terminal.PTYSpawner{Shell: cfg.Shell},
		Log:     log,
	})

	ready := func(ctx context.Context) error {
		for _, check := range checks {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}

	apiHandler := api.NewAPI(auth.NewGate(directory), registry, api.Options{
		Session:        cfg.Session,
		AllowedOrigins: cfg.AllowedOrigins,
		Ready:          ready,
		Audit:          audit,
	}, log)
	// no WriteTimeout: websocket connections are long lived
	srv := &http.Server{
		Addr:        cfg.HTTPAddr,
		Handler:     apiHandler.Router(),
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: mux,
	}

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Fatal("listen failed", zap.Error(err))
	}
	healthSrv := health.NewServer()
	grpcSrv := grpc.NewServer()
	healthpb.RegisterHealthServer(grpcSrv, healthSrv)

	go func() {
		log.Info("metrics server starting", zap.String("addr", cfg.MetricsAddr))
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("metrics server failed", zap.Error(err))
		}
	}()

	go func() {
		log.Info("gRPC health server starting", zap.String("addr", cfg.GRPCAddr))
		if err := grpcSrv.Serve(lis); err != nil {
			log.Fatal("grpc serve failed", zap.Error(err))
		}
	}()

	go watchReadiness(ctx, healthSrv, ready, log)

	go func() {
		log.Info("devbox server starting", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("devbox server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down devbox server")
	healthSrv.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	registry.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
	grpcSrv.GracefulStop()

	log.Info("devbox server stopped")
}

// watchReadiness mirrors the backing-service checks into the gRPC health status.
func watchReadiness(ctx context.Context, hs *health.Server, ready func(context.Context) error, log *zap.Logger) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	last := healthpb.HealthCheckResponse_UNKNOWN
	for {
		checkCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		status := healthpb.HealthCheckResponse_SERVING
		if err := ready(checkCtx); err != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
			if last != status {
				log.Warn("backing services unavailable", zap.Error(err))
			}
		}
		cancel()
		if status != last {
			hs.SetServingStatus("", status)
			last = status
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
