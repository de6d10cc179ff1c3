package reservation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Domenick1991/ownbang/internal/domain"
	"github.com/Domenick1991/ownbang/internal/kafka"
	"github.com/Domenick1991/ownbang/internal/repository"
	"go.uber.org/zap"
)

type ReservationUseCase interface {
	CreateReservation(ctx context.Context, input CreateReservationInput) (*Result, error)
	Withdraw(ctx context.Context, reservationID int64) (*Result, error)
	Confirm(ctx context.Context, reservationID int64) (*Result, error)
	ListForUser(ctx context.Context, userID int64) (*ListResult, error)
	ListForAgent(ctx context.Context, agentID int64, opts AgentListOptions) (*ListResult, error)
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

type CreateReservationInput struct {
	RoomID          int64     `json:"room_id"`
	UserID          int64     `json:"user_id"`
	ReservationTime time.Time `json:"reservation_time"`
}

// AgentListOptions controls which reservations an agent sees.
type AgentListOptions struct {
	IncludeCancelled bool
}

type Result struct {
	Code        domain.SuccessCode
	Reservation *domain.Reservation
}

type ListResult struct {
	Code         domain.SuccessCode
	Reservations []domain.Reservation
}

type ReservationService struct {
	reservations       repository.ReservationRepository
	users              repository.UserRepository
	rooms              repository.RoomRepository
	producer           Producer
	reservationTopic   string
	notificationsTopic string
	now                func() time.Time
	logger             *zap.Logger
}

type ReservationServiceOption func(*ReservationService)

func WithProducer(producer Producer, topic string) ReservationServiceOption {
	return func(s *ReservationService) {
		s.producer = producer
		s.reservationTopic = topic
	}
}

func WithNotificationsTopic(topic string) ReservationServiceOption {
	return func(s *ReservationService) {
		s.notificationsTopic = topic
	}
}

func WithClock(now func() time.Time) ReservationServiceOption {
	return func(s *ReservationService) {
		s.now = now
	}
}

func WithLogger(logger *zap.Logger) ReservationServiceOption {
	return func(s *ReservationService) {
		s.logger = logger
	}
}

func NewReservationService(
	reservations repository.ReservationRepository,
	users repository.UserRepository,
	rooms repository.RoomRepository,
	opts ...ReservationServiceOption,
) *ReservationService {
	service := &ReservationService{
		reservations: reservations,
		users:        users,
		rooms:        rooms,
		now:          time.Now,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

func (s *ReservationService) CreateReservation(ctx context.Context, input CreateReservationInput) (*Result, error) {
	if input.ReservationTime.IsZero() {
		return nil, domain.BadRequest("reservation time is required")
	}
	if _, err := s.rooms.GetByID(ctx, input.RoomID); err != nil {
		return nil, notFound(err, domain.ErrRoomNotFound)
	}
	if _, err := s.users.GetByID(ctx, input.UserID); err != nil {
		return nil, notFound(err, domain.ErrUserNotFound)
	}

	reservation := &domain.Reservation{
		RoomID:          input.RoomID,
		UserID:          input.UserID,
		ReservationTime: input.ReservationTime,
		Status:          domain.ReservationStatusApplied,
	}

	err := s.reservations.WithSlotLock(ctx, input.RoomID, input.ReservationTime, func(ctx context.Context, tx repository.ReservationTx) error {
		taken, err := tx.FindBySlot(ctx, input.RoomID, input.ReservationTime)
		if err != nil {
			return err
		}
		if taken != nil {
			return domain.ErrReservationDuplicated
		}

		held, err := tx.FindByRoomAndUserExcludingStatus(ctx, input.RoomID, input.UserID, domain.ReservationStatusCancelled)
		if err != nil {
			return err
		}
		if held != nil {
			return domain.ErrReservationAlreadyBooked
		}

		return tx.Insert(ctx, reservation)
	})
	switch {
	case errors.Is(err, repository.ErrSlotTaken):
		return nil, fmt.Errorf("%w: %w", domain.ErrReservationDuplicated, err)
	case errors.Is(err, repository.ErrUserRoomTaken):
		return nil, fmt.Errorf("%w: %w", domain.ErrReservationAlreadyBooked, err)
	case err != nil:
		return nil, err
	}

	s.logger.Info("reservation created",
		zap.Int64("reservation_id", reservation.ID),
		zap.Int64("room_id", reservation.RoomID),
		zap.Int64("user_id", reservation.UserID))
	s.publish(ctx, kafka.EventReservationCreated, reservation)
	return &Result{Code: domain.CodeReservationMade, Reservation: reservation}, nil
}

func (s *ReservationService) Withdraw(ctx context.Context, reservationID int64) (*Result, error) {
	updated, err := s.transition(ctx, reservationID, domain.ActionWithdraw)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, kafka.EventReservationCancelled, updated)
	return &Result{Code: domain.CodeReservationStatusUpdate, Reservation: updated}, nil
}

func (s *ReservationService) Confirm(ctx context.Context, reservationID int64) (*Result, error) {
	updated, err := s.transition(ctx, reservationID, domain.ActionConfirm)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, kafka.EventReservationConfirmed, updated)
	return &Result{Code: domain.CodeReservationConfirmed, Reservation: updated}, nil
}

func (s *ReservationService) ListForUser(ctx context.Context, userID int64) (*ListResult, error) {
	reservations, err := s.reservations.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return listResult(reservations), nil
}

// ListForAgent returns upcoming reservations on the agent's rooms, earliest
// first, ties broken by id.
func (s *ReservationService) ListForAgent(ctx context.Context, agentID int64, opts AgentListOptions) (*ListResult, error) {
	reservations, err := s.reservations.FindByAgentIDAfter(ctx, agentID, s.now(), opts.IncludeCancelled)
	if err != nil {
		return nil, err
	}
	SortByTime(reservations)
	return listResult(reservations), nil
}

// SortByTime orders by reservation time ascending, then id ascending.
func SortByTime(reservations []domain.Reservation) {
	sort.SliceStable(reservations, func(i, j int) bool {
		a, b := reservations[i], reservations[j]
		if !a.ReservationTime.Equal(b.ReservationTime) {
			return a.ReservationTime.Before(b.ReservationTime)
		}
		return a.ID < b.ID
	})
}

func (s *ReservationService) transition(ctx context.Context, reservationID int64, action domain.ReservationAction) (*domain.Reservation, error) {
	updated, err := s.reservations.UpdateStatus(ctx, reservationID, func(current *domain.Reservation) (domain.ReservationStatus, error) {
		return domain.NextStatus(current.Status, action)
	})
	if err != nil {
		return nil, notFound(err, domain.ErrReservationNotFound)
	}
	s.logger.Info("reservation status changed",
		zap.Int64("reservation_id", updated.ID),
		zap.String("action", string(action)),
		zap.String("status", string(updated.Status)))
	return updated, nil
}

func (s *ReservationService) publish(ctx context.Context, eventType kafka.ReservationEventType, reservation *domain.Reservation) {
	if s.producer == nil || s.reservationTopic == "" {
		return
	}
	event := kafka.NewReservationEvent(eventType, reservation)
	if err := s.producer.Publish(ctx, s.reservationTopic, event.Key(), event); err != nil {
		s.logger.Warn("failed to publish reservation event",
			zap.String("type", string(eventType)),
			zap.Int64("reservation_id", reservation.ID),
			zap.Error(err))
		return
	}
	if s.notificationsTopic != "" {
		if err := s.producer.Publish(ctx, s.notificationsTopic, event.Key(), event); err != nil {
			s.logger.Warn("failed to publish notification",
				zap.String("type", string(eventType)),
				zap.Int64("reservation_id", reservation.ID),
				zap.Error(err))
		}
	}
}

func listResult(reservations []domain.Reservation) *ListResult {
	if len(reservations) == 0 {
		return &ListResult{Code: domain.CodeReservationListEmpty, Reservations: []domain.Reservation{}}
	}
	return &ListResult{Code: domain.CodeReservationListed, Reservations: reservations}
}

func notFound(err error, target *domain.Error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return target
	}
	return err
}

var _ ReservationUseCase = (*ReservationService)(nil)
