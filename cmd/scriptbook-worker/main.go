// Command scriptbook-worker runs an interpreter pool that serves a Scriptbook
// server over Redis streams.
package main

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aescanero/scriptbook/internal/application/workers"
	"github.com/aescanero/scriptbook/internal/config"
	"github.com/aescanero/scriptbook/pkg/adapters/events/redis"
	"github.com/aescanero/scriptbook/pkg/adapters/interpreter"
	"github.com/aescanero/scriptbook/pkg/adapters/metrics/prometheus"
	redisstorage "github.com/aescanero/scriptbook/pkg/adapters/storage/redis"
	"github.com/aescanero/scriptbook/pkg/api/grpc"
	"github.com/aescanero/scriptbook/pkg/ports"

	"github.com/prometheus/client_golang/prometheus/promhttp"
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
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.StorageBackend != config.StorageRedis {
		fmt.Fprintln(os.Stderr, "scriptbook-worker requires SCRIPTBOOK_STORAGE=redis")
		os.Exit(1)
	}

	logger := initLogger(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	logger.Info("starting Scriptbook worker",
		zap.String("version", Version),
		zap.String("build_time", BuildTime))

	redisClient := goredis.NewClient(&goredis.Options{
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

	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("failed to connect to Redis", zap.Error(err))
	}
	logger.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr))

	consumer := cfg.Redis.ConsumerName
	if consumer == "" {
		consumer = fmt.Sprintf("scriptbook-worker-%d", os.Getpid())
	}

	// Requests are shared across workers, cancels reach all of them
	eventBus, err := redis.NewStreamsEventBus(
		redisClient,
		cfg.Redis.ConsumerGroup+"-workers",
		consumer,
		logger,
		redis.WithBroadcastTopics(ports.TopicInterpreterControl),
		redis.WithMaxLen(cfg.Redis.StreamMaxLen),
	)
	if err != nil {
		logger.Fatal("failed to create event bus", zap.Error(err))
	}

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

	workerPool := workers.NewPool(
		cfg.Interpreter.PoolSize,
		eventBus,
		redisstorage.NewResultStore(redisClient, cfg.Timeouts.ResultTTL, logger),
		executor,
		prometheus.NewCollector(),
		logger,
		cfg.Interpreter.HealthCheckInterval,
	)
	if err := workerPool.Start(); err != nil {
		logger.Fatal("failed to start worker pool", zap.Error(err))
	}

	// The gRPC health service reports pool health to orchestrators
	grpcServer, err := grpc.NewServer(&grpc.Config{
		Port:   cfg.GRPCPort,
		Logger: logger,
	})
	if err != nil {
		logger.Fatal("failed to create gRPC server", zap.Error(err))
	}
	go func() {
		if err := grpcServer.Start(); err != nil {
			logger.Fatal("gRPC server failed", zap.Error(err))
		}
	}()

	// Keep the gRPC health status in line with the pool
	healthDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(cfg.Interpreter.HealthCheckInterval)
		defer ticker.Stop()
		for {
			select {
			case <-healthDone:
				return
			case <-ticker.C:
				grpcServer.SetServing(workerPool.Health().IsHealthy())
			}
		}
	}()

	// Metrics endpoint
	metricsServer := &nethttp.Server{
		Addr:              cfg.GetHTTPAddr(),
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			logger.Fatal("metrics server failed", zap.Error(err))
		}
	}()

	logger.Info("Scriptbook worker started",
		zap.Int("pool_size", cfg.Interpreter.PoolSize),
		zap.Strings("command", cfg.Interpreter.Command))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info("received shutdown signal")
	close(healthDone)
	grpcServer.SetServing(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.ShutdownTimeout)
	defer cancel()

	if err := workerPool.Shutdown(shutdownCtx); err != nil {
		logger.Error("worker pool shutdown error", zap.Error(err))
	}

	if err := grpcServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("gRPC server shutdown error", zap.Error(err))
	}

	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown error", zap.Error(err))
	}

	if err := eventBus.Close(); err != nil {
		logger.Error("event bus close error", zap.Error(err))
	}

	if err := redisClient.Close(); err != nil {
		logger.Error("Redis close error", zap.Error(err))
	}

	logger.Info("Scriptbook worker shut down complete")
}

// initLogger initializes the logger based on log level
func initLogger(level string) *zap.Logger {
	zapLevel, err := zapcore.ParseLevel(level)
	if err != nil {
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
