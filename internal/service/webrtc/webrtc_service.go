package webrtc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/ownbang/internal/domain"
	"github.com/Domenick1991/ownbang/internal/gateway"
	"github.com/Domenick1991/ownbang/internal/queue"
	"github.com/Domenick1991/ownbang/internal/repository"
	"go.uber.org/zap"
)

type WebrtcUseCase interface {
	IssueToken(ctx context.Context, input IssueTokenInput) (*TokenResult, error)
	RevokeToken(ctx context.Context, input RevokeTokenInput) (*RevokeResult, error)
}

type ReservationFinder interface {
	FindByID(ctx context.Context, id int64) (*domain.Reservation, error)
}

// SessionLocker guards session setup for one reservation across instances.
type SessionLocker interface {
	AcquireSessionLock(ctx context.Context, reservationID int64, ttl time.Duration) (bool, error)
	ReleaseSessionLock(ctx context.Context, reservationID int64) error
}

type RecordingQueue interface {
	EnqueueRecordingFinalize(ctx context.Context, payload queue.RecordingFinalizePayload) error
}

type IssueTokenInput struct {
	ReservationID int64
	UserID        int64
	Role          domain.Role
}

type RevokeTokenInput struct {
	ReservationID int64
	UserID        int64
	Token         string
	Role          domain.Role
}

type TokenResult struct {
	Code      domain.SuccessCode
	Token     string
	SessionID string
}

type RevokeResult struct {
	Code      domain.SuccessCode
	Recording *domain.RecordingHandle
}

type WebrtcService struct {
	users             repository.UserRepository
	reservations      ReservationFinder
	gateway           gateway.VideoGateway
	locker            SessionLocker
	lockTTL           time.Duration
	recordings        RecordingQueue
	viewingRecords    repository.ViewingRecordRepository
	confirmedOnRevoke bool
	logger            *zap.Logger
}

type WebrtcServiceOption func(*WebrtcService)

func WithSessionLocker(locker SessionLocker, ttl time.Duration) WebrtcServiceOption {
	return func(s *WebrtcService) {
		s.locker = locker
		s.lockTTL = ttl
	}
}

func WithRecordingQueue(q RecordingQueue) WebrtcServiceOption {
	return func(s *WebrtcService) {
		s.recordings = q
	}
}

func WithViewingRecords(repo repository.ViewingRecordRepository) WebrtcServiceOption {
	return func(s *WebrtcService) {
		s.viewingRecords = repo
	}
}

// WithConfirmedOnRevoke makes RevokeToken require a CONFIRMED reservation,
// as IssueToken does. By default teardown is allowed in any status.
func WithConfirmedOnRevoke() WebrtcServiceOption {
	return func(s *WebrtcService) {
		s.confirmedOnRevoke = true
	}
}

func WithLogger(logger *zap.Logger) WebrtcServiceOption {
	return func(s *WebrtcService) {
		s.logger = logger
	}
}

func NewWebrtcService(
	users repository.UserRepository,
	reservations ReservationFinder,
	videoGateway gateway.VideoGateway,
	opts ...WebrtcServiceOption,
) *WebrtcService {
	service := &WebrtcService{
		users:        users,
		reservations: reservations,
		gateway:      videoGateway,
		lockTTL:      30 * time.Second,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

func (s *WebrtcService) IssueToken(ctx context.Context, input IssueTokenInput) (*TokenResult, error) {
	if !input.Role.Valid() {
		return nil, domain.BadRequest("unknown role")
	}
	if err := s.checkUser(ctx, input.UserID); err != nil {
		return nil, err
	}
	if _, err := s.reservation(ctx, input.ReservationID, true); err != nil {
		return nil, err
	}

	if s.locker != nil {
		ok, err := s.locker.AcquireSessionLock(ctx, input.ReservationID, s.lockTTL)
		if err != nil {
			return nil, fmt.Errorf("acquire session lock: %w", err)
		}
		if !ok {
			return nil, domain.ErrSessionDuplicated
		}
		defer func() {
			if err := s.locker.ReleaseSessionLock(context.WithoutCancel(ctx), input.ReservationID); err != nil {
				s.logger.Warn("release session lock", zap.Int64("reservation_id", input.ReservationID), zap.Error(err))
			}
		}()
	}

	_, found, err := s.gateway.GetSession(ctx, input.ReservationID)
	if err != nil {
		return nil, s.issueFailed(input.ReservationID, "get session", err)
	}
	if found {
		return nil, domain.ErrSessionDuplicated
	}

	session, err := s.gateway.CreateSession(ctx, input.ReservationID)
	if errors.Is(err, gateway.ErrSessionExists) {
		return nil, domain.ErrSessionDuplicated
	}
	if err != nil {
		return nil, s.issueFailed(input.ReservationID, "create session", err)
	}

	token, err := s.gateway.CreateToken(ctx, input.ReservationID, input.Role)
	if err == nil && token == "" {
		err = errors.New("empty token")
	}
	if err != nil {
		if rmErr := s.gateway.RemoveSession(context.WithoutCancel(ctx), input.ReservationID); rmErr != nil {
			s.logger.Error("remove session after failed token", zap.Int64("reservation_id", input.ReservationID), zap.Error(rmErr))
		}
		return nil, s.issueFailed(input.ReservationID, "create token", err)
	}

	s.logger.Info("viewing token issued",
		zap.Int64("reservation_id", input.ReservationID),
		zap.String("session_id", session.SessionID),
		zap.String("role", string(input.Role)))
	return &TokenResult{Code: domain.CodeTokenIssued, Token: token, SessionID: session.SessionID}, nil
}

func (s *WebrtcService) RevokeToken(ctx context.Context, input RevokeTokenInput) (*RevokeResult, error) {
	if !input.Role.Valid() {
		return nil, domain.BadRequest("unknown role")
	}
	if err := s.checkUser(ctx, input.UserID); err != nil {
		return nil, err
	}
	if _, err := s.reservation(ctx, input.ReservationID, s.confirmedOnRevoke); err != nil {
		return nil, err
	}

	_, found, err := s.gateway.GetSession(ctx, input.ReservationID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if !found {
		return nil, domain.ErrSessionNotFound
	}

	recording, err := s.gateway.StopRecording(ctx, input.ReservationID)
	if err == nil && recording == nil {
		err = errors.New("no recording handle")
	}
	if err != nil {
		s.logger.Error("stop recording failed", zap.Int64("reservation_id", input.ReservationID), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", domain.ErrRecordingStopFailed, err)
	}

	if err := s.gateway.RemoveToken(ctx, input.ReservationID, input.Token, input.Role); err != nil {
		return nil, fmt.Errorf("remove token: %w", err)
	}
	if err := s.gateway.RemoveSession(ctx, input.ReservationID); err != nil {
		if errors.Is(err, gateway.ErrSessionNotFound) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("remove session: %w", err)
	}

	s.logger.Info("viewing session closed",
		zap.Int64("reservation_id", input.ReservationID),
		zap.String("recording_id", recording.ID))
	s.scheduleArchive(ctx, recording)
	return &RevokeResult{Code: domain.CodeTokenRemoved, Recording: recording}, nil
}

// scheduleArchive hands the recording to the background worker. The session is
// already gone, so failures here are only logged.
func (s *WebrtcService) scheduleArchive(ctx context.Context, recording *domain.RecordingHandle) {
	ctx = context.WithoutCancel(ctx)
	if s.viewingRecords != nil {
		err := s.viewingRecords.Upsert(ctx, &domain.ViewingRecord{
			ReservationID: recording.ReservationID,
			RecordingID:   recording.ID,
			Status:        domain.ViewingRecordStatusRecording,
		})
		if err != nil {
			s.logger.Warn("store viewing record", zap.Int64("reservation_id", recording.ReservationID), zap.Error(err))
		}
	}
	if s.recordings == nil {
		return
	}
	err := s.recordings.EnqueueRecordingFinalize(ctx, queue.RecordingFinalizePayload{
		ReservationID: recording.ReservationID,
		SessionID:     recording.SessionID,
		RecordingID:   recording.ID,
		RecordingURL:  recording.URL,
	})
	if err != nil {
		s.logger.Error("enqueue recording finalize", zap.Int64("reservation_id", recording.ReservationID), zap.Error(err))
	}
}

func (s *WebrtcService) checkUser(ctx context.Context, userID int64) error {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.ErrUserNotFound
		}
		return err
	}
	return nil
}

func (s *WebrtcService) reservation(ctx context.Context, id int64, requireConfirmed bool) (*domain.Reservation, error) {
	reservation, err := s.reservations.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrReservationNotFound
		}
		return nil, err
	}
	if requireConfirmed && reservation.Status != domain.ReservationStatusConfirmed {
		return nil, domain.ErrReservationNotConfirmed
	}
	return reservation, nil
}

func (s *WebrtcService) issueFailed(reservationID int64, step string, err error) error {
	s.logger.Error("token issuance failed",
		zap.Int64("reservation_id", reservationID),
		zap.String("step", step),
		zap.Error(err))
	return fmt.Errorf("%w: %s: %w", domain.ErrTokenIssuanceFailed, step, err)
}

var _ WebrtcUseCase = (*WebrtcService)(nil)
