package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Domenick1991/ownbang/config"
	"github.com/Domenick1991/ownbang/internal/bootstrap"
	"github.com/Domenick1991/ownbang/internal/cache"
	"github.com/Domenick1991/ownbang/internal/database"
	"github.com/Domenick1991/ownbang/internal/gateway"
	"github.com/Domenick1991/ownbang/internal/gateway/local"
	"github.com/Domenick1991/ownbang/internal/gateway/openvidu"
	"github.com/Domenick1991/ownbang/internal/kafka"
	"github.com/Domenick1991/ownbang/internal/queue"
	"github.com/Domenick1991/ownbang/internal/repository"
	"github.com/Domenick1991/ownbang/internal/service/reservation"
	"github.com/Domenick1991/ownbang/internal/service/webrtc"
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

	if cfg.Database.Migrate {
		if err := database.Migrate(ctx, pool); err != nil {
			logger.Fatal("apply migrations", zap.Error(err))
		}
	}

	userRepo := repository.NewUserRepository(pool)
	roomRepo := repository.NewRoomRepository(pool)
	reservationRepo := repository.NewReservationRepository(pool)
	viewingRepo := repository.NewViewingRecordRepository(pool)

	health := map[string]bootstrap.HealthCheck{"postgres": pool.Ping}

	reservationOpts := []reservation.ReservationServiceOption{reservation.WithLogger(logger)}
	if len(cfg.Kafka.Brokers) > 0 {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, logger)
		defer producer.Close()
		reservationOpts = append(reservationOpts,
			reservation.WithProducer(producer, cfg.Kafka.ReservationTopic),
			reservation.WithNotificationsTopic(cfg.Kafka.NotificationsTopic),
		)
		health["kafka"] = producer.CheckConnection
	}

	lockTTL := time.Duration(cfg.Webrtc.SessionLockTTLSeconds) * time.Second
	webrtcOpts := []webrtc.WebrtcServiceOption{
		webrtc.WithLogger(logger),
		webrtc.WithViewingRecords(viewingRepo),
	}
	if cfg.Webrtc.ConfirmedOnRevoke {
		webrtcOpts = append(webrtcOpts, webrtc.WithConfirmedOnRevoke())
	}
	if cfg.Redis.Addr != "" {
		redisCache := cache.NewRedisCache(cfg.Redis)
		defer redisCache.Close()
		if err := redisCache.Ping(ctx); err != nil {
			logger.Fatal("connect redis", zap.Error(err))
		}
		webrtcOpts = append(webrtcOpts,
			webrtc.WithSessionLocker(redisCache, lockTTL),
			webrtc.WithRecordingQueue(queue.NewQueue(redisCache.Client(), logger)),
		)
		health["redis"] = redisCache.Ping
	} else {
		logger.Warn("redis not configured, session lock is process local and recordings are not archived")
		webrtcOpts = append(webrtcOpts, webrtc.WithSessionLocker(cache.NewMemoryLocker(), lockTTL))
	}

	videoGateway, err := newGateway(cfg.Webrtc, logger)
	if err != nil {
		logger.Fatal("video gateway", zap.Error(err))
	}

	services := bootstrap.Services{
		Reservations: reservation.NewReservationService(reservationRepo, userRepo, roomRepo, reservationOpts...),
		Webrtc:       webrtc.NewWebrtcService(userRepo, reservationRepo, videoGateway, webrtcOpts...),
		Health:       health,
	}

	if err := bootstrap.Run(ctx, cfg, services, logger); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

func newGateway(cfg config.WebrtcConfig, logger *zap.Logger) (gateway.VideoGateway, error) {
	switch cfg.Provider {
	case "openvidu":
		if cfg.OpenViduURL == "" {
			return nil, fmt.Errorf("openvidu_url is required for the openvidu provider")
		}
		return openvidu.New(cfg.OpenViduURL, cfg.OpenViduSecret, openvidu.WithLogger(logger)), nil
	case "local":
		return local.New(cfg.TokenSecret, time.Duration(cfg.TokenTTLMinutes)*time.Minute), nil
	default:
		return nil, fmt.Errorf("unknown webrtc provider %q", cfg.Provider)
	}
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
