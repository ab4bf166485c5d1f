package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pribylovaa/placenotes/pkg/interceptors"
	"github.com/pribylovaa/placenotes/pkg/redact"

	"github.com/pribylovaa/placenotes/internal/cache"
	"github.com/pribylovaa/placenotes/internal/cache/broadcast"
	"github.com/pribylovaa/placenotes/internal/config"
	"github.com/pribylovaa/placenotes/internal/metrics"
	"github.com/pribylovaa/placenotes/internal/service"
	pnmongo "github.com/pribylovaa/placenotes/internal/storage/mongo"
	pnhttp "github.com/pribylovaa/placenotes/internal/transport/http"
	"github.com/pribylovaa/placenotes/internal/transport/http/middleware"

	"google.golang.org/grpc"
	health "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to config file (overrides CONFIG_PATH env)")
	flag.Parse()

	cfg := config.MustLoad(configPath)

	log := setupLogger(cfg.Env)
	slog.SetDefault(log)
	log.Info("starting placenotes-service", "env", cfg.Env)

	rootCtx, rootCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	log.Info("mongo_connecting", slog.String("url", redact.URL(cfg.DB.URL)))
	dbCtx, dbCancel := context.WithTimeout(rootCtx, 10*time.Second)
	store, err := pnmongo.New(dbCtx, cfg)
	dbCancel()
	if err != nil {
		log.Error("mongo_connect_failed", slog.String("err", err.Error()))
		rootCancel()
		os.Exit(1)
	}
	log.Info("mongo_connected")

	collector := metrics.NewCollector(prometheus.DefaultRegisterer)

	respCache, err := cache.New(cache.Options{
		TTL:        cfg.Cache.TTL,
		MaxEntries: cfg.Cache.MaxEntries,
		Metrics:    collector,
		Logger:     log,
	})
	if err != nil {
		log.Error("cache_init_failed", slog.String("err", err.Error()))
		rootCancel()
		_ = store.Close(context.Background())
		os.Exit(1)
	}

	var bc broadcast.Broadcaster = broadcast.Nop{}
	if cfg.Broadcast.RedisURL != "" {
		redisCtx, redisCancel := context.WithTimeout(rootCtx, 5*time.Second)
		rbc, err := broadcast.NewRedis(redisCtx, cfg.Broadcast.RedisURL, cfg.Broadcast.Channel, log)
		redisCancel()
		if err != nil {
			log.Error("redis_connect_failed", slog.String("err", err.Error()))
			rootCancel()
			_ = store.Close(context.Background())
			os.Exit(1)
		}
		log.Info("redis_connected",
			slog.String("url", redact.URL(cfg.Broadcast.RedisURL)),
			slog.String("channel", cfg.Broadcast.Channel),
		)
		bc = rbc
	}

	inv := cache.NewInvalidator(respCache, bc)

	bcDone := make(chan struct{})
	go func() {
		defer close(bcDone)
		err := bc.Run(rootCtx, func(ctx context.Context, ev broadcast.Event) {
			inv.Apply(ctx, ev)
		})
		if err != nil {
			log.Error("broadcast_run_failed", slog.String("err", err.Error()))
		}
	}()

	svc := service.New(store, respCache, inv, cfg.Query)
	log.Info("service_initialized")

	limiter := middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst, 5*time.Minute)

	api := pnhttp.NewRouter(svc, pnhttp.Options{
		Logger:      log,
		Timeout:     cfg.Timeouts.Service,
		Metrics:     collector,
		RateLimiter: limiter,
		Auth: middleware.AuthOptions{
			Secret:   cfg.Auth.JWTSecret,
			Issuer:   cfg.Auth.Issuer,
			Audience: cfg.Auth.Audience,
		},
		DefaultRadius: cfg.Query.DefaultRadius,
	})

	// HTTP: REST API + readiness/liveness/metrics
	var ready int32 // 0: not ready; 1: ready
	httpAddr := cfg.HTTP.Addr()

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if atomic.LoadInt32(&ready) == 1 {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
			return
		}
		http.Error(w, "not ready", http.StatusServiceUnavailable)
	})
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", api)

	httpSrv := &http.Server{
		Addr:              httpAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("http_listen_start", "addr", httpAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http_serve_failed", slog.String("err", err.Error()))
		}
	}()

	grpc_prometheus.EnableHandlingTimeHistogram()

	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			interceptors.Recover(log),
			interceptors.UnaryLoggingInterceptor(log),
			interceptors.WithTimeout(cfg.Timeouts.Service),
			grpc_prometheus.UnaryServerInterceptor,
		),
		grpc.ChainStreamInterceptor(
			grpc_prometheus.StreamServerInterceptor,
		),
	)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)

	if cfg.Env == envLocal || cfg.Env == envDev {
		reflection.Register(grpcServer)
	}

	addr := cfg.GRPC.Addr()
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		log.Error("grpc_listen_failed",
			slog.String("addr", addr),
			slog.String("err", err.Error()),
		)
		rootCancel()
		_ = httpSrv.Shutdown(context.Background())
		_ = bc.Close()
		_ = store.Close(context.Background())
		os.Exit(1)
	}
	log.Info("grpc_listen_start", slog.String("addr", addr))

	grpc_prometheus.Register(grpcServer)

	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	atomic.StoreInt32(&ready, 1)

	serveErrCh := make(chan error, 1)
	go func() {
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			serveErrCh <- err
		}
		close(serveErrCh)
	}()

	select {
	case <-rootCtx.Done():
		log.Info("shutdown_requested")
	case err := <-serveErrCh:
		if err != nil {
			log.Error("grpc_serve_failed", slog.String("err", err.Error()))
		}
	}

	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	atomic.StoreInt32(&ready, 0)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	done := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		log.Info("grpc_stopped")
	case <-shutdownCtx.Done():
		log.Warn("grpc_force_stop")
		grpcServer.Stop()
	}

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http_shutdown_failed", slog.String("err", err.Error()))
	}
	shutdownCancel()
	limiter.Stop()

	rootCancel()
	<-bcDone
	_ = bc.Close()
	_ = store.Close(context.Background())

	log.Info("service_stopped")
	os.Exit(0)
}

// setupLogger: text/debug для local, JSON/debug для dev, JSON/info для prod.
func setupLogger(env string) *slog.Logger {
	switch env {
	case envLocal:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envDev:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envProd:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
}
