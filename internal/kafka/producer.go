package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/Domenick1991/ownbang/internal/domain"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type ReservationEventType string

const (
	EventReservationCreated   ReservationEventType = "reservation.created"
	EventReservationConfirmed ReservationEventType = "reservation.confirmed"
	EventReservationCancelled ReservationEventType = "reservation.cancelled"
)

type ReservationEvent struct {
	ID              string                   `json:"id"`
	Type            ReservationEventType     `json:"type"`
	ReservationID   int64                    `json:"reservation_id"`
	RoomID          int64                    `json:"room_id"`
	UserID          int64                    `json:"user_id"`
	ReservationTime time.Time                `json:"reservation_time"`
	Status          domain.ReservationStatus `json:"status"`
	OccurredAt      time.Time                `json:"occurred_at"`
}

func NewReservationEvent(t ReservationEventType, r *domain.Reservation) ReservationEvent {
	return ReservationEvent{
		ID:              uuid.NewString(),
		Type:            t,
		ReservationID:   r.ID,
		RoomID:          r.RoomID,
		UserID:          r.UserID,
		ReservationTime: r.ReservationTime,
		Status:          r.Status,
		OccurredAt:      time.Now().UTC(),
	}
}

// Key partitions events so all changes of one reservation stay ordered.
func (e ReservationEvent) Key() string {
	return strconv.FormatInt(e.ReservationID, 10)
}

type Producer struct {
	brokers []string
	writer  *kafka.Writer
	logger  *zap.Logger
}

func NewProducer(brokers []string, logger *zap.Logger) *Producer {
	if logger == nil {
		logger = zap.NewNop()
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}

	return &Producer{
		brokers: brokers,
		writer:  writer,
		logger:  logger,
	}
}

func (p *Producer) Publish(ctx context.Context, topic, key string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	message := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: data,
		Time:  time.Now(),
	}

	if err := p.writer.WriteMessages(ctx, message); err != nil {
		return fmt.Errorf("failed to write message to Kafka: %w", err)
	}

	p.logger.Debug("published to kafka", zap.String("topic", topic), zap.String("key", key))
	return nil
}

func (p *Producer) PublishWithRetry(ctx context.Context, topic, key string, payload interface{}, maxRetries int) error {
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		err := p.Publish(ctx, topic, key, payload)
		if err == nil {
			return nil
		}

		lastErr = err
		p.logger.Warn("kafka publish attempt failed", zap.Int("attempt", i+1), zap.Error(err))

		if i < maxRetries-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(i+1) * 500 * time.Millisecond):
			}
		}
	}

	return fmt.Errorf("failed after %d retries: %w", maxRetries, lastErr)
}

func (p *Producer) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}

// CheckConnection dials the first broker and reads its partitions.
func (p *Producer) CheckConnection(ctx context.Context) error {
	if len(p.brokers) == 0 {
		return fmt.Errorf("no kafka brokers configured")
	}
	conn, err := kafka.DialContext(ctx, "tcp", p.brokers[0])
	if err != nil {
		return fmt.Errorf("failed to connect to Kafka: %w", err)
	}
	defer conn.Close()

	partitions, err := conn.ReadPartitions()
	if err != nil {
		return fmt.Errorf("failed to read partitions: %w", err)
	}

	p.logger.Info("connected to kafka", zap.Int("partitions", len(partitions)))
	return nil
}
