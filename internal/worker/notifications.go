package worker

import (
	"context"

	"github.com/Domenick1991/ownbang/internal/kafka"
	kafkaGo "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type Notifier interface {
	Send(ctx context.Context, event kafka.ReservationEvent) error
}

// NotificationHandler adapts a Notifier to the Kafka consumer. Undecodable
// messages are skipped so one bad record cannot stall the partition.
func NotificationHandler(n Notifier, logger *zap.Logger) func(context.Context, kafkaGo.Message) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, msg kafkaGo.Message) error {
		event, err := kafka.DecodeReservationEvent(msg)
		if err != nil {
			logger.Warn("skip reservation event", zap.Int64("offset", msg.Offset), zap.Error(err))
			return nil
		}
		return n.Send(ctx, event)
	}
}
