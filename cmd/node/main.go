package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/devrev/pairdb/replicator/internal/algorithm"
	"github.com/devrev/pairdb/replicator/internal/client"
	"github.com/devrev/pairdb/replicator/internal/config"
	apperrors "github.com/devrev/pairdb/replicator/internal/errors"
	"github.com/devrev/pairdb/replicator/internal/handler"
	"github.com/devrev/pairdb/replicator/internal/health"
	"github.com/devrev/pairdb/replicator/internal/metrics"
	"github.com/devrev/pairdb/replicator/internal/model"
	"github.com/devrev/pairdb/replicator/internal/server"
	"github.com/devrev/pairdb/replicator/internal/service"
	"github.com/devrev/pairdb/replicator/internal/store"
	"github.com/devrev/pairdb/replicator/internal/util/workerpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Logging)
	defer logger.Sync()

	logger.Info("Starting replicator node",
		zap.String("self_url", cfg.Server.SelfURL),
		zap.Int("port", cfg.Server.Port),
		zap.Int("cluster_size", len(cfg.Cluster.Shards)),
		zap.String("storage_backend", cfg.Storage.Backend),
		zap.String("hints_backend", cfg.Hints.Backend),
	)

	m := metrics.NewMetrics(nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	entityStore, err := openEntityStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize entity store", zap.Error(err))
	}
	hintStore, err := openHintStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize hint store", zap.Error(err))
	}

	mapper, err := algorithm.NewNodeMapper(cfg.Cluster.Shards)
	if err != nil {
		logger.Fatal("Failed to build node mapper", zap.Error(err))
	}

	gate := service.NewNodeTaskManager(cfg.Replication.NodeWorkers, cfg.Replication.NodeQueueSize, m, logger)
	localPool := workerpool.NewWorkerPool(workerpool.Config{
		Name:       "local",
		MaxWorkers: cfg.Replication.LocalWorkers,
		QueueSize:  cfg.Replication.LocalQueueSize,
		Logger:     logger,
	})
	hintPool := workerpool.NewWorkerPool(workerpool.Config{
		Name:       "hints",
		MaxWorkers: cfg.Hints.Workers,
		QueueSize:  cfg.Hints.QueueSize,
		Logger:     logger,
	})
	hintsManager := service.NewHintsManager(hintStore, hintPool, cfg.Hints.SubmitTimeout, m, logger)
	hintsManager.StartCleanup(cfg.Hints.CleanupInterval, cfg.Hints.TTL)

	replicaClient := client.NewReplicaClient(cfg.Replication.ReplicaTimeout, client.BreakerSettings{
		Enabled:      cfg.CircuitBreaker.Enabled,
		MaxRequests:  cfg.CircuitBreaker.MaxRequests,
		Interval:     cfg.CircuitBreaker.Interval,
		Timeout:      cfg.CircuitBreaker.Timeout,
		MinRequests:  cfg.CircuitBreaker.MinRequests,
		FailureRatio: cfg.CircuitBreaker.FailureRatio,
	}, logger)

	executor := service.NewReplicatedExecutor(cfg.Server.SelfURL, mapper, gate, replicaClient, hintsManager,
		localPool, model.DefaultSuccessCodes(), m, logger)
	entityService := service.NewEntityService(entityStore, m, logger)

	errorHandler := apperrors.NewHandler(logger)
	entityHandler := handler.NewEntityHandler(executor, entityService, algorithm.NewQuorumCalculator(mapper.ShardCount()),
		hintsManager, errorHandler, cfg.Server.RequestTimeout, cfg.Server.MaxBodySize, logger)
	apiServer := server.NewServer(cfg, entityHandler, errorHandler, m, logger)

	peers := make([]string, 0, mapper.ShardCount())
	for _, shard := range mapper.Shards() {
		if shard.URL != cfg.Server.SelfURL {
			peers = append(peers, shard.NodeID())
		}
	}

	healthChecker := health.NewHealthChecker(map[string]health.Pinger{
		"entity_store": entityStore,
		"hint_store":   hintStore,
	}, logger)
	healthChecker.AddDetails("pools", health.PoolDetails(func() []workerpool.Stats {
		return append(gate.Stats(), localPool.Stats(), hintPool.Stats())
	}))
	healthChecker.AddDetails("circuit_breakers", func() map[string]string {
		return replicaClient.BreakerStates(peers)
	})
	healthMux := http.NewServeMux()
	healthChecker.Register(healthMux)
	healthServer := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Health.Port), Handler: healthMux}

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.Metrics.Path, promhttp.Handler())
		metricsServer = &http.Server{Addr: fmt.Sprintf(":%d", cfg.Metrics.Port), Handler: metricsMux}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(apiServer.Start)
	g.Go(func() error {
		logger.Info("Starting health check server", zap.String("address", healthServer.Addr))
		return listen(healthServer)
	})
	if metricsServer != nil {
		g.Go(func() error {
			logger.Info("Starting metrics server", zap.String("address", metricsServer.Addr))
			return listen(metricsServer)
		})
	}

	// Shut everything down once a signal arrives or any server fails
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down gracefully")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		errs := []error{apiServer.Shutdown(shutdownCtx), healthServer.Shutdown(shutdownCtx)}
		if metricsServer != nil {
			errs = append(errs, metricsServer.Shutdown(shutdownCtx))
		}
		errs = append(errs,
			gate.Stop(cfg.Server.ShutdownTimeout),
			localPool.Stop(cfg.Server.ShutdownTimeout),
			hintsManager.Stop(cfg.Server.ShutdownTimeout),
			entityStore.Close(),
			hintStore.Close(),
		)
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Node stopped with error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("Node stopped")
}

func listen(srv *http.Server) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s: %w", srv.Addr, err)
	}
	return nil
}

func openEntityStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (store.EntityStore, error) {
	switch cfg.Storage.Backend {
	case "redis":
		s := store.NewRedisEntityStore(store.RedisOptions{
			Host:     cfg.Storage.Redis.Host,
			Port:     cfg.Storage.Redis.Port,
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
			PoolSize: cfg.Storage.Redis.PoolSize,
		}, logger)
		if err := store.ConnectWithRetry(ctx, "redis", cfg.Storage.ConnectTimeout, s.Ping, logger); err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		logger.Info("Redis entity store initialized")
		return s, nil
	default:
		logger.Info("In-memory entity store initialized")
		return store.NewMemoryEntityStore(), nil
	}
}

func openHintStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (store.HintStore, error) {
	switch cfg.Hints.Backend {
	case "postgres":
		pool, err := store.NewPostgresPool(ctx, store.PostgresOptions{
			Host:            cfg.Database.Host,
			Port:            cfg.Database.Port,
			Database:        cfg.Database.Database,
			User:            cfg.Database.User,
			Password:        cfg.Database.Password,
			MaxConnections:  cfg.Database.MaxConnections,
			MinConnections:  cfg.Database.MinConnections,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		})
		if err != nil {
			return nil, err
		}
		s := store.NewPostgresHintStore(pool)
		if err := store.ConnectWithRetry(ctx, "postgres", cfg.Database.ConnectTimeout, s.Ping, logger); err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		if err := s.EnsureSchema(ctx); err != nil {
			s.Close()
			return nil, err
		}
		logger.Info("PostgreSQL hint store initialized")
		return s, nil
	default:
		logger.Info("In-memory hint store initialized", zap.Int("max_per_node", cfg.Hints.MaxPerNode))
		return store.NewMemoryHintStore(cfg.Hints.MaxPerNode, logger), nil
	}
}

func initLogger(cfg config.LoggingConfig) *zap.Logger {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapConfig zap.Config
	if cfg.Format == "console" {
		zapConfig = zap.NewDevelopmentConfig()
	} else {
		zapConfig = zap.NewProductionConfig()
	}
	zapConfig.Level = zap.NewAtomicLevelAt(level)
	zapConfig.OutputPaths = []string{"stdout"}
	zapConfig.ErrorOutputPaths = []string{"stderr"}

	logger, err := zapConfig.Build()
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}
