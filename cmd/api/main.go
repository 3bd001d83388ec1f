package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"tasdeeq.app/internal/auth"
	"tasdeeq.app/internal/config"
	"tasdeeq.app/internal/events"
	"tasdeeq.app/internal/httpapi"
	"tasdeeq.app/internal/kyc"
	"tasdeeq.app/internal/migrate"
	"tasdeeq.app/internal/obs"
	"tasdeeq.app/internal/store/pg"
	"tasdeeq.app/internal/stream"
	"tasdeeq.app/migrations"
)

var (
	version = "0.1.0"
	commit  = ""
)

func main() {
	cfgPath := flag.String("config", os.Getenv("TASDEEQ_CONFIG"), "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger, err := obs.NewLogger(obs.LogConfig{
		Level:      cfg.Log.Level,
		Service:    cfg.ServiceName,
		Env:        cfg.Env,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	obs.SetLogger(logger)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("service stopped with error", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	obs.Init()
	obs.InitBuildInfo(cfg.ServiceName, version, commit)
	auth.SetSecret(cfg.Auth.Secret)

	probe := httpapi.ReadyProbe{Checks: map[string]func(context.Context) error{}}
	var cleanup []func()
	defer func() {
		for i := len(cleanup) - 1; i >= 0; i-- {
			cleanup[i]()
		}
	}()

	store, err := openStore(ctx, cfg, logger, &probe)
	if err != nil {
		return err
	}
	if closer, ok := store.(interface{ Close() error }); ok {
		cleanup = append(cleanup, func() { _ = closer.Close() })
	}

	var (
		hub     *stream.Hub
		mgrOpts = []kyc.Option{
			kyc.WithLogger(logger.Named("kyc")),
			kyc.WithPolicy(kyc.Policy{
				AllowRedecision: cfg.KYC.AllowRedecision,
				NotifyOnReview:  cfg.KYC.NotifyOnReview,
			}),
			kyc.WithObserver("stream", kyc.ObserverFunc(func(ctx context.Context, evt kyc.Event) error {
				return hub.Observe(ctx, evt)
			})),
		}
	)

	var (
		redisClient *redis.Client
		bridge      *stream.RedisBridge
	)
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		cleanup = append(cleanup, func() { _ = redisClient.Close() })
		probe.Checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
		mgrOpts = append(mgrOpts, kyc.WithObserver("redis", kyc.ObserverFunc(func(ctx context.Context, evt kyc.Event) error {
			return bridge.Observe(ctx, evt)
		})))
	}

	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := events.NewSyncProducer(events.ProducerConfig{
			Brokers:  cfg.Kafka.Brokers,
			ClientID: cfg.Kafka.ClientID,
		}, logger.Named("kafka"), events.NewProducerMetrics(prometheus.DefaultRegisterer))
		if err != nil {
			return fmt.Errorf("kafka producer: %w", err)
		}
		cleanup = append(cleanup, func() { _ = producer.Close() })
		mgrOpts = append(mgrOpts, kyc.WithObserver("kafka", events.NewSink(producer, cfg.Kafka.Topic)))
	}

	mgr := kyc.NewManager(store, mgrOpts...)
	hub = stream.NewHub(mgr,
		stream.WithLogger(logger.Named("stream")),
		stream.WithQueryTimeout(cfg.Stream.QueryTimeout))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	errc := make(chan error, 3)

	if redisClient != nil {
		bridge = stream.NewRedisBridge(redisClient, hub, cfg.Redis.Channel)
		go func() {
			if err := bridge.Run(ctx); err != nil {
				errc <- fmt.Errorf("redis bridge: %w", err)
			}
		}()
	}

	apiOpts := []httpapi.Option{
		httpapi.WithVersion(version),
		httpapi.WithReadyProbe(probe),
		httpapi.WithLogger(logger.Named("http")),
		httpapi.WithCORSOrigins(cfg.HTTP.CORSOrigins),
		httpapi.WithRateLimit(cfg.HTTP.RateLimitRPS, cfg.HTTP.RateLimitBurst),
		httpapi.WithBodyLimit(cfg.HTTP.BodyLimitBytes),
		httpapi.WithHeartbeat(cfg.Stream.Heartbeat),
	}
	if cfg.Auth.DevTokens {
		logger.Warn("development token endpoint enabled")
		apiOpts = append(apiOpts, httpapi.WithDevTokens(cfg.Auth.TokenTTL))
	}
	api := httpapi.New(mgr, hub, apiOpts...)

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
	}
	go func() {
		logger.Info("http listening", zap.String("addr", srv.Addr), zap.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- fmt.Errorf("http: %w", err)
		}
	}()

	var grpcSrv *httpapi.GRPCServer
	if cfg.GRPC.Addr != "" {
		lis, err := net.Listen("tcp", cfg.GRPC.Addr)
		if err != nil {
			return fmt.Errorf("grpc listen: %w", err)
		}
		grpcSrv = httpapi.NewGRPCServer(probe, version, logger.Named("grpc"))
		go grpcSrv.RunProbes(ctx, 10*time.Second)
		go func() {
			logger.Info("grpc listening", zap.String("addr", cfg.GRPC.Addr))
			if err := grpcSrv.Serve(lis); err != nil {
				errc <- fmt.Errorf("grpc: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case runErr = <-errc:
	}
	cancel()

	shutdownCtx, done := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer done()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if grpcSrv != nil {
		grpcSrv.GracefulStop()
	}
	logger.Info("stopped")
	return runErr
}

// openStore picks the record store and registers its readiness check.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger, probe *httpapi.ReadyProbe) (kyc.Store, error) {
	if cfg.Store.Driver != "postgres" {
		logger.Warn("using in-memory store; records are lost on restart")
		return kyc.NewMemoryStore(), nil
	}

	pool := pg.DefaultPool()
	if cfg.Store.MaxOpenConns > 0 {
		pool.MaxOpenConns = cfg.Store.MaxOpenConns
	}
	if cfg.Store.MaxIdleConns > 0 {
		pool.MaxIdleConns = cfg.Store.MaxIdleConns
	}
	if cfg.Store.ConnMaxLifetime > 0 {
		pool.ConnMaxLifetime = cfg.Store.ConnMaxLifetime
	}
	store, err := pg.Open(cfg.Store.DSN, pool)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	probe.Checks["postgres"] = store.Ping

	if cfg.Store.MigrateOnStart {
		mctx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		applied, err := migrate.NewManager(store.DB(), migrations.SQL(), migrations.Seeds(),
			migrate.WithLogger(logger.Named("migrate"))).Up(mctx)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		logger.Info("migrations applied", zap.Strings("files", applied))
	}
	return store, nil
}
