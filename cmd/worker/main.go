package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/Domenick1991/ownbang/config"
	"github.com/Domenick1991/ownbang/internal/cache"
	"github.com/Domenick1991/ownbang/internal/database"
	"github.com/Domenick1991/ownbang/internal/email"
	"github.com/Domenick1991/ownbang/internal/gateway/openvidu"
	"github.com/Domenick1991/ownbang/internal/kafka"
	"github.com/Domenick1991/ownbang/internal/queue"
	"github.com/Domenick1991/ownbang/internal/repository"
	"github.com/Domenick1991/ownbang/internal/storage"
	"github.com/Domenick1991/ownbang/internal/worker"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Log)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	var wg sync.WaitGroup

	if cfg.Redis.Addr != "" {
		redisCache := cache.NewRedisCache(cfg.Redis)
		defer redisCache.Close()

		archive, err := storage.NewS3(ctx, storage.S3Config{
			Region:           cfg.AWS.Region,
			AccessKeyID:      cfg.AWS.AccessKeyID,
			SecretAccessKey:  cfg.AWS.SecretAccessKey,
			RecordingsBucket: cfg.AWS.RecordingsBucket,
		}, logger)
		if err != nil {
			logger.Fatal("init s3", zap.Error(err))
		}

		provider := openvidu.New(cfg.Webrtc.OpenViduURL, cfg.Webrtc.OpenViduSecret, openvidu.WithLogger(logger))
		processor := worker.NewRecordingProcessor(
			repository.NewViewingRecordRepository(pool),
			archive,
			provider,
			queue.NewQueue(redisCache.Client(), logger),
			logger,
		)

		for i := 0; i < cfg.Recording.WorkerCount; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				processor.Run(ctx)
			}()
		}
		logger.Info("recording processor started", zap.Int("workers", cfg.Recording.WorkerCount))
	} else {
		logger.Warn("redis not configured, recording processor disabled")
	}

	if len(cfg.Kafka.Brokers) > 0 && cfg.Kafka.NotificationsTopic != "" {
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.NotificationsTopic)
		defer consumer.Close()

		handler := worker.NotificationHandler(email.NewSender(logger), logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := consumer.Consume(ctx, handler); err != nil {
				logger.Warn("consumer stopped", zap.Error(err))
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down worker")
	wg.Wait()
}

func newLogger(cfg config.LogConfig) *zap.Logger {
	zapCfg := zap.NewProductionConfig()
	if cfg.Development {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.EncoderConfig.TimeKey = "timestamp"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if level, err := zapcore.ParseLevel(cfg.Level); err == nil {
		zapCfg.Level = zap.NewAtomicLevelAt(level)
	}
	logger, err := zapCfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
