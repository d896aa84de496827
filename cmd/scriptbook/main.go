package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aescanero/scriptbook/internal/application/notebook"
	"github.com/aescanero/scriptbook/internal/application/orchestrator"
	"github.com/aescanero/scriptbook/internal/application/registry"
	"github.com/aescanero/scriptbook/internal/application/workers"
	"github.com/aescanero/scriptbook/internal/config"
	eventsmem "github.com/aescanero/scriptbook/pkg/adapters/events/memory"
	"github.com/aescanero/scriptbook/pkg/adapters/events/redis"
	"github.com/aescanero/scriptbook/pkg/adapters/interpreter"
	"github.com/aescanero/scriptbook/pkg/adapters/interpreter/bus"
	"github.com/aescanero/scriptbook/pkg/adapters/metrics/prometheus"
	storagemem "github.com/aescanero/scriptbook/pkg/adapters/storage/memory"
	redisstorage "github.com/aescanero/scriptbook/pkg/adapters/storage/redis"
	"github.com/aescanero/scriptbook/pkg/api/grpc"
	"github.com/aescanero/scriptbook/pkg/api/http"
	"github.com/aescanero/scriptbook/pkg/api/websocket"
	"github.com/aescanero/scriptbook/pkg/ports"

	prom "github.com/prometheus/client_golang/prometheus"
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

// backends groups the adapters selected by the storage setting
type backends struct {
	eventBus  ports.EventBus
	results   ports.ResultStore
	snapshots ports.NotebookStore
	close     func() error
}

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

	logger.Info("starting Scriptbook",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("storage", cfg.StorageBackend))

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	be, err := newBackends(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize storage", zap.Error(err))
	}

	promRegistry := prom.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metricsCollector := prometheus.NewCollectorWithRegisterer(promRegistry)

	// Embedded interpreter pool
	var workerPool *workers.Pool
	var health *workers.HealthMonitor
	if cfg.Interpreter.Embedded {
		executor, err := interpreter.NewExecutor(&interpreter.Config{
			Executor:       cfg.Interpreter.Executor,
			Command:        cfg.Interpreter.Command,
			Workdir:        cfg.Interpreter.Workdir,
			CaptureFigures: cfg.Interpreter.CaptureFigures,
			Logger:         logger,
		})
		if err != nil {
			logger.Fatal("failed to create executor", zap.Error(err))
		}

		workerPool = workers.NewPool(
			cfg.Interpreter.PoolSize,
			be.eventBus,
			be.results,
			executor,
			metricsCollector,
			logger,
			cfg.Interpreter.HealthCheckInterval,
		)
		if err := workerPool.Start(); err != nil {
			logger.Fatal("failed to start worker pool", zap.Error(err))
		}
		health = workerPool.Health()
	}

	// Initialize application components
	orchestratorMgr := orchestrator.NewManager(
		notebook.New(),
		registry.New(),
		bus.NewClient(be.eventBus, logger),
		be.results,
		be.snapshots,
		be.eventBus,
		metricsCollector,
		orchestrator.NewValidator(),
		logger,
		orchestrator.Timing{
			SoftTimeout:    cfg.Timeouts.SoftTimeout,
			HardCleanup:    cfg.Timeouts.HardCleanup,
			InterCellDelay: cfg.Timeouts.InterCellDelay,
		},
	)
	if err := orchestratorMgr.Start(ctx); err != nil {
		logger.Fatal("failed to start orchestrator", zap.Error(err))
	}

	// Initialize API servers
	httpServer := http.NewServer(&http.Config{
		Port:         cfg.HTTPPort,
		Orchestrator: orchestratorMgr,
		Health:       health,
		Metrics:      metricsCollector,
		Observer:     metricsCollector,
		Gatherer:     promRegistry,
		RunLimit:     http.RunLimit{Rate: cfg.RunRateLimit, Burst: cfg.RunRateBurst},
		Logger:       logger,
	})

	// Add WebSocket handler to HTTP server
	wsHandler := websocket.NewHandler(be.eventBus, logger)
	if err := wsHandler.Start(ctx); err != nil {
		logger.Fatal("failed to start WebSocket hub", zap.Error(err))
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

	logger.Info("Scriptbook started",
		zap.Int("http_port", cfg.HTTPPort),
		zap.String("grpc_addr", grpcServer.Addr()),
		zap.Bool("embedded_interpreter", cfg.Interpreter.Embedded),
		zap.Int("interpreter_pool_size", cfg.Interpreter.PoolSize))

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info("received shutdown signal")
	grpcServer.SetServing(false)

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.ShutdownTimeout)
	defer cancel()

	// Shutdown components
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	if err := grpcServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("gRPC server shutdown error", zap.Error(err))
	}

	if err := orchestratorMgr.Shutdown(shutdownCtx); err != nil {
		logger.Error("orchestrator shutdown error", zap.Error(err))
	}

	if workerPool != nil {
		if err := workerPool.Shutdown(shutdownCtx); err != nil {
			logger.Error("worker pool shutdown error", zap.Error(err))
		}
	}

	stop()
	if err := be.close(); err != nil {
		logger.Error("storage close error", zap.Error(err))
	}

	logger.Info("Scriptbook shut down complete")
}

// newBackends creates the event bus and stores for the configured storage
func newBackends(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*backends, error) {
	if cfg.StorageBackend == config.StorageMemory {
		eventBus := eventsmem.NewInMemoryEventBus(logger)
		return &backends{
			eventBus:  eventBus,
			results:   storagemem.NewInMemoryResultStore(),
			snapshots: storagemem.NewInMemoryNotebookStore(),
			close:     eventBus.Close,
		}, nil
	}

	redisClient := newRedisClient(cfg.Redis)

	// Test Redis connection
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	logger.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr))

	consumer := cfg.Redis.ConsumerName
	if consumer == "" {
		consumer = fmt.Sprintf("scriptbook-%d", os.Getpid())
	}

	// Every server instance sees every cell event and every worker sees
	// every cancel
	eventBus, err := redis.NewStreamsEventBus(
		redisClient,
		cfg.Redis.ConsumerGroup,
		consumer,
		logger,
		redis.WithBroadcastTopics(ports.TopicCellEvents, ports.TopicInterpreterControl),
		redis.WithMaxLen(cfg.Redis.StreamMaxLen),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create event bus: %w", err)
	}

	return &backends{
		eventBus:  eventBus,
		results:   redisstorage.NewResultStore(redisClient, cfg.Timeouts.ResultTTL, logger),
		snapshots: redisstorage.NewNotebookStore(redisClient, logger),
		close: func() error {
			if err := eventBus.Close(); err != nil {
				return err
			}
			return redisClient.Close()
		},
	}, nil
}

func newRedisClient(cfg config.RedisConfig) *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
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
