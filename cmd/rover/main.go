package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aescanero/rover/internal/application/orchestrator"
	"github.com/aescanero/rover/internal/application/pipeline"
	"github.com/aescanero/rover/internal/application/scheduler"
	"github.com/aescanero/rover/internal/application/workers"
	"github.com/aescanero/rover/internal/config"
	"github.com/aescanero/rover/pkg/adapters/codec/jsonapi"
	"github.com/aescanero/rover/pkg/adapters/device"
	eventsmemory "github.com/aescanero/rover/pkg/adapters/events/memory"
	eventsredis "github.com/aescanero/rover/pkg/adapters/events/redis"
	"github.com/aescanero/rover/pkg/adapters/metrics/prometheus"
	regionsmemory "github.com/aescanero/rover/pkg/adapters/regions/memory"
	storagememory "github.com/aescanero/rover/pkg/adapters/storage/memory"
	"github.com/aescanero/rover/pkg/adapters/storage/postgres"
	storageredis "github.com/aescanero/rover/pkg/adapters/storage/redis"
	transporthttp "github.com/aescanero/rover/pkg/adapters/transport/http"
	"github.com/aescanero/rover/pkg/api/grpc"
	"github.com/aescanero/rover/pkg/api/http"
	"github.com/aescanero/rover/pkg/api/websocket"
	"github.com/aescanero/rover/pkg/ports"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Version is set by build flags
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := initLogger(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	logger.Info("starting Rover event service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime))

	ctx := context.Background()

	// Initialize Redis client when a backend needs it
	var redisClient *goredis.Client
	if cfg.UsesRedis() {
		redisClient = goredis.NewClient(&goredis.Options{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			MaxRetries:   cfg.Redis.MaxRetries,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})

		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatal("failed to connect to Redis", zap.Error(err))
		}
		logger.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr))
	}

	// Initialize event bus
	var eventBus interface {
		ports.EventBus
		Close() error
	}
	switch cfg.Events.Backend {
	case config.BackendRedis:
		consumer := cfg.Events.Consumer
		if consumer == "" {
			consumer = fmt.Sprintf("rover-%d", os.Getpid())
		}
		eventBus, err = eventsredis.NewStreamsEventBus(redisClient, cfg.Events.Group, consumer, logger)
		if err != nil {
			logger.Fatal("failed to create event bus", zap.Error(err))
		}
	default:
		eventBus = eventsmemory.NewInMemoryEventBus(logger)
	}

	// Initialize storage
	var (
		stateStorage ports.StateStorage
		deviceStore  ports.DeviceStore
		closeStorage = func() {}
	)
	switch cfg.Storage.Backend {
	case config.BackendRedis:
		stateStorage = storageredis.NewStateStorage(redisClient, cfg.Storage.StateTTL, logger)
		deviceStore = storageredis.NewDeviceStore(redisClient)
	case config.BackendPostgres:
		pool, err := postgres.Connect(ctx, cfg.Postgres.URL, cfg.Postgres.MaxConns)
		if err != nil {
			logger.Fatal("failed to connect to Postgres", zap.Error(err))
		}
		store := postgres.New(pool, logger)
		if err := store.CreateSchema(ctx); err != nil {
			logger.Fatal("failed to create Postgres schema", zap.Error(err))
		}
		stateStorage = store
		deviceStore = store
		closeStorage = pool.Close
		logger.Info("connected to Postgres")
	default:
		stateStorage = storagememory.NewInMemoryStateStorage()
		deviceStore = storagememory.NewInMemoryDeviceStore()
	}

	transport, err := transporthttp.NewClient(&transporthttp.Config{
		BaseURL: cfg.API.URL,
		Token:   cfg.API.ApplicationToken,
		Timeout: cfg.API.Timeout,
		Logger:  logger,
	})
	if err != nil {
		logger.Fatal("failed to create backend client", zap.Error(err))
	}

	registry := promclient.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metricsCollector := prometheus.NewCollector(registry)

	// Worker pools: one runs pipeline nodes, the other is the unordered lane
	nodePool := workers.NewPool("nodes", cfg.Workers.PoolSize, metricsCollector, logger, cfg.Workers.HealthCheckInterval)
	unorderedPool := workers.NewPool("unordered", cfg.Workers.UnorderedPoolSize, metricsCollector, logger, cfg.Workers.HealthCheckInterval)
	for _, p := range []*workers.Pool{nodePool, unorderedPool} {
		if err := p.Start(); err != nil {
			logger.Fatal("failed to start worker pool", zap.String("pool", p.Name()), zap.Error(err))
		}
	}

	codec := jsonapi.New()
	sched := scheduler.New(pipeline.Deps{
		Serializer: codec,
		Mapper:     codec,
		Transport:  transport,
		Probe:      device.NewStaticProbe(cfg.Device.BluetoothEnabled),
		Devices:    deviceStore,
		Storage:    stateStorage,
		Bus:        eventBus,
		Metrics:    metricsCollector,
		Dispatcher: nodePool,
		Logger:     logger,
	}, unorderedPool, metricsCollector, logger)

	orchestratorMgr, err := orchestrator.NewManager(orchestrator.Config{
		ApplicationToken: cfg.API.ApplicationToken,
	}, orchestrator.Deps{
		Scheduler:  sched,
		Serializer: codec,
		Mapper:     codec,
		Transport:  transport,
		Storage:    stateStorage,
		Devices:    deviceStore,
		Monitor:    regionsmemory.NewMonitor(logger),
		Logger:     logger,
	})
	if err != nil {
		logger.Fatal("failed to create orchestrator", zap.Error(err))
	}

	// Initialize API servers
	httpServer := http.NewServer(&http.Config{
		Port:         cfg.HTTPPort,
		Orchestrator: orchestratorMgr,
		Gatherer:     registry,
		Logger:       logger,
	})

	wsHandler := websocket.NewHandler(eventBus, logger)
	if err := wsHandler.Start(ctx); err != nil {
		logger.Fatal("failed to start WebSocket handler", zap.Error(err))
	}
	httpServer.SetupWebSocket(wsHandler)

	grpcServer, err := grpc.NewServer(&grpc.Config{
		Port:   cfg.GRPCPort,
		Logger: logger,
	})
	if err != nil {
		logger.Fatal("failed to create gRPC server", zap.Error(err))
	}

	// Start servers
	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	go func() {
		if err := grpcServer.Start(); err != nil {
			logger.Fatal("gRPC server failed", zap.Error(err))
		}
	}()

	if _, err := orchestratorMgr.Start(); err != nil {
		logger.Error("failed to track application open", zap.Error(err))
	}

	logger.Info("Rover event service started",
		zap.Int("http_port", cfg.HTTPPort),
		zap.Int("grpc_port", cfg.GRPCPort),
		zap.String("storage", cfg.Storage.Backend),
		zap.String("events", cfg.Events.Backend),
		zap.Int("worker_pool_size", cfg.Workers.PoolSize))

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info("received shutdown signal")
	grpcServer.MarkNotServing()

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	// drain the ordered lane before stopping the pools that run it
	if err := orchestratorMgr.Shutdown(shutdownCtx); err != nil {
		logger.Error("orchestrator shutdown error", zap.Error(err))
	}

	for _, p := range []*workers.Pool{unorderedPool, nodePool} {
		if err := p.Shutdown(shutdownCtx); err != nil {
			logger.Error("worker pool shutdown error", zap.String("pool", p.Name()), zap.Error(err))
		}
	}

	wsHandler.Stop()
	if err := eventBus.Close(); err != nil {
		logger.Error("event bus close error", zap.Error(err))
	}

	if err := grpcServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("gRPC server shutdown error", zap.Error(err))
	}

	closeStorage()
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error("Redis close error", zap.Error(err))
		}
	}

	logger.Info("Rover event service shut down complete")
}

// initLogger initializes the logger based on log level
func initLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(zapLevel)
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}

	return logger
}
