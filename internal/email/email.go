package email

import (
	"context"

	"github.com/Domenick1991/ownbang/internal/kafka"
	"go.uber.org/zap"
)

// Sender turns reservation events into notifications for the parties involved.
// Delivery is logged only; no mail transport is wired.
type Sender struct {
	logger *zap.Logger
}

func NewSender(logger *zap.Logger) *Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sender{logger: logger}
}

func (s *Sender) Send(ctx context.Context, event kafka.ReservationEvent) error {
	s.logger.Info("notify user",
		zap.Int64("user_id", event.UserID),
		zap.String("subject", Subject(event.Type)),
		zap.Int64("reservation_id", event.ReservationID),
		zap.Int64("room_id", event.RoomID),
		zap.Time("reservation_time", event.ReservationTime),
	)
	return nil
}

func Subject(t kafka.ReservationEventType) string {
	switch t {
	case kafka.EventReservationCreated:
		return "Your viewing request was received"
	case kafka.EventReservationConfirmed:
		return "Your viewing was confirmed"
	case kafka.EventReservationCancelled:
		return "Your viewing was cancelled"
	default:
		return "Reservation update"
	}
}
