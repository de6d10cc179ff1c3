package reservation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Domenick1991/ownbang/internal/domain"
	"github.com/Domenick1991/ownbang/internal/kafka"
	"github.com/Domenick1991/ownbang/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockReservationTx struct {
	mock.Mock
}

func (m *MockReservationTx) FindBySlot(ctx context.Context, roomID int64, at time.Time) (*domain.Reservation, error) {
	args := m.Called(ctx, roomID, at)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Reservation), args.Error(1)
}

func (m *MockReservationTx) FindByRoomAndUserExcludingStatus(ctx context.Context, roomID, userID int64, status domain.ReservationStatus) (*domain.Reservation, error) {
	args := m.Called(ctx, roomID, userID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Reservation), args.Error(1)
}

func (m *MockReservationTx) Insert(ctx context.Context, reservation *domain.Reservation) error {
	args := m.Called(ctx, reservation)
	if args.Error(0) == nil {
		reservation.ID = 1
	}
	return args.Error(0)
}

type MockReservationRepository struct {
	mock.Mock
	tx *MockReservationTx
}

func (m *MockReservationRepository) WithSlotLock(ctx context.Context, roomID int64, at time.Time, fn func(ctx context.Context, tx repository.ReservationTx) error) error {
	args := m.Called(ctx, roomID, at)
	if err := args.Error(0); err != nil {
		return err
	}
	return fn(ctx, m.tx)
}

func (m *MockReservationRepository) FindByID(ctx context.Context, id int64) (*domain.Reservation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Reservation), args.Error(1)
}

// UpdateStatus feeds the stored row to decide, mirroring the real stores.
func (m *MockReservationRepository) UpdateStatus(ctx context.Context, id int64, decide repository.StatusDecider) (*domain.Reservation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	current := *args.Get(0).(*domain.Reservation)
	next, err := decide(&current)
	if err != nil {
		return nil, err
	}
	current.Status = next
	return &current, nil
}

func (m *MockReservationRepository) FindByUserID(ctx context.Context, userID int64) ([]domain.Reservation, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]domain.Reservation), args.Error(1)
}

func (m *MockReservationRepository) FindByAgentIDAfter(ctx context.Context, agentID int64, after time.Time, includeCancelled bool) ([]domain.Reservation, error) {
	args := m.Called(ctx, agentID, after, includeCancelled)
	return args.Get(0).([]domain.Reservation), args.Error(1)
}

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

type MockRoomRepository struct {
	mock.Mock
}

func (m *MockRoomRepository) GetByID(ctx context.Context, id int64) (*domain.Room, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Room), args.Error(1)
}

type MockProducer struct {
	mock.Mock
}

func (m *MockProducer) Publish(ctx context.Context, topic, key string, value interface{}) error {
	args := m.Called(ctx, topic, key, value)
	return args.Error(0)
}

type fixture struct {
	reservations *MockReservationRepository
	tx           *MockReservationTx
	users        *MockUserRepository
	rooms        *MockRoomRepository
	producer     *MockProducer
	service      *ReservationService
}

var (
	slot = time.Date(2026, 11, 2, 14, 0, 0, 0, time.UTC)
	now  = time.Date(2026, 11, 1, 9, 0, 0, 0, time.UTC)
)

func newFixture() *fixture {
	tx := &MockReservationTx{}
	f := &fixture{
		reservations: &MockReservationRepository{tx: tx},
		tx:           tx,
		users:        &MockUserRepository{},
		rooms:        &MockRoomRepository{},
		producer:     &MockProducer{},
	}
	f.service = NewReservationService(f.reservations, f.users, f.rooms,
		WithProducer(f.producer, "reservations"),
		WithClock(func() time.Time { return now }),
	)
	return f
}

func (f *fixture) existing(ctx context.Context) {
	f.rooms.On("GetByID", ctx, int64(3)).Return(&domain.Room{ID: 3, AgentID: 9}, nil).Once()
	f.users.On("GetByID", ctx, int64(7)).Return(&domain.User{ID: 7}, nil).Once()
	f.reservations.On("WithSlotLock", ctx, int64(3), slot).Return(nil).Once()
}

func TestReservationService_CreateReservation_Success(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.existing(ctx)
	f.tx.On("FindBySlot", ctx, int64(3), slot).Return(nil, nil).Once()
	f.tx.On("FindByRoomAndUserExcludingStatus", ctx, int64(3), int64(7), domain.ReservationStatusCancelled).Return(nil, nil).Once()
	f.tx.On("Insert", ctx, mock.MatchedBy(func(r *domain.Reservation) bool {
		return r.Status == domain.ReservationStatusApplied && r.RoomID == 3 && r.UserID == 7
	})).Return(nil).Once()
	f.producer.On("Publish", ctx, "reservations", "1", mock.MatchedBy(func(e kafka.ReservationEvent) bool {
		return e.Type == kafka.EventReservationCreated
	})).Return(nil).Once()

	res, err := f.service.CreateReservation(ctx, CreateReservationInput{RoomID: 3, UserID: 7, ReservationTime: slot})

	require.NoError(t, err)
	assert.Equal(t, domain.CodeReservationMade, res.Code)
	assert.Equal(t, int64(1), res.Reservation.ID)
	assert.Equal(t, domain.ReservationStatusApplied, res.Reservation.Status)
	f.tx.AssertExpectations(t)
	f.producer.AssertExpectations(t)
}

func TestReservationService_CreateReservation_SlotTaken(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.existing(ctx)
	f.tx.On("FindBySlot", ctx, int64(3), slot).Return(&domain.Reservation{ID: 4, Status: domain.ReservationStatusApplied}, nil).Once()

	_, err := f.service.CreateReservation(ctx, CreateReservationInput{RoomID: 3, UserID: 7, ReservationTime: slot})

	assert.ErrorIs(t, err, domain.ErrReservationDuplicated)
	f.tx.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
	f.producer.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestReservationService_CreateReservation_UserAlreadyHoldsRoom(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.existing(ctx)
	f.tx.On("FindBySlot", ctx, int64(3), slot).Return(nil, nil).Once()
	f.tx.On("FindByRoomAndUserExcludingStatus", ctx, int64(3), int64(7), domain.ReservationStatusCancelled).
		Return(&domain.Reservation{ID: 2, Status: domain.ReservationStatusConfirmed}, nil).Once()

	_, err := f.service.CreateReservation(ctx, CreateReservationInput{RoomID: 3, UserID: 7, ReservationTime: slot})

	assert.ErrorIs(t, err, domain.ErrReservationAlreadyBooked)
	f.tx.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestReservationService_CreateReservation_UniqueBackstop(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.existing(ctx)
	f.tx.On("FindBySlot", ctx, int64(3), slot).Return(nil, nil).Once()
	f.tx.On("FindByRoomAndUserExcludingStatus", ctx, int64(3), int64(7), domain.ReservationStatusCancelled).Return(nil, nil).Once()
	f.tx.On("Insert", ctx, mock.Anything).Return(repository.ErrSlotTaken).Once()

	_, err := f.service.CreateReservation(ctx, CreateReservationInput{RoomID: 3, UserID: 7, ReservationTime: slot})

	assert.ErrorIs(t, err, domain.ErrReservationDuplicated)
	assert.Equal(t, domain.KindConflict, domain.KindOf(err))
}

func TestReservationService_CreateReservation_UnknownRoom(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.rooms.On("GetByID", ctx, int64(3)).Return(nil, repository.ErrNotFound).Once()

	_, err := f.service.CreateReservation(ctx, CreateReservationInput{RoomID: 3, UserID: 7, ReservationTime: slot})

	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
	f.reservations.AssertNotCalled(t, "WithSlotLock", mock.Anything, mock.Anything, mock.Anything)
}

func TestReservationService_CreateReservation_UnknownUser(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.rooms.On("GetByID", ctx, int64(3)).Return(&domain.Room{ID: 3}, nil).Once()
	f.users.On("GetByID", ctx, int64(7)).Return(nil, repository.ErrNotFound).Once()

	_, err := f.service.CreateReservation(ctx, CreateReservationInput{RoomID: 3, UserID: 7, ReservationTime: slot})

	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestReservationService_CreateReservation_MissingTime(t *testing.T) {
	f := newFixture()

	_, err := f.service.CreateReservation(context.Background(), CreateReservationInput{RoomID: 3, UserID: 7})

	assert.Equal(t, domain.KindBadRequest, domain.KindOf(err))
}

func TestReservationService_CreateReservation_PublishFailureIgnored(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.existing(ctx)
	f.tx.On("FindBySlot", ctx, int64(3), slot).Return(nil, nil).Once()
	f.tx.On("FindByRoomAndUserExcludingStatus", ctx, int64(3), int64(7), domain.ReservationStatusCancelled).Return(nil, nil).Once()
	f.tx.On("Insert", ctx, mock.Anything).Return(nil).Once()
	f.producer.On("Publish", ctx, "reservations", "1", mock.Anything).Return(errors.New("broker down")).Once()

	res, err := f.service.CreateReservation(ctx, CreateReservationInput{RoomID: 3, UserID: 7, ReservationTime: slot})

	require.NoError(t, err)
	assert.Equal(t, domain.CodeReservationMade, res.Code)
}

func TestReservationService_Confirm(t *testing.T) {
	tests := []struct {
		name    string
		current domain.ReservationStatus
		want    domain.ReservationStatus
		wantErr error
	}{
		{name: "applied", current: domain.ReservationStatusApplied, want: domain.ReservationStatusConfirmed},
		{name: "confirmed", current: domain.ReservationStatusConfirmed, wantErr: domain.ErrReservationAlreadyConfirmed},
		{name: "cancelled", current: domain.ReservationStatusCancelled, wantErr: domain.ErrReservationConfirmUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			ctx := context.Background()
			f.reservations.On("UpdateStatus", ctx, int64(5)).Return(&domain.Reservation{ID: 5, Status: tt.current}, nil).Once()
			f.producer.On("Publish", ctx, "reservations", "5", mock.Anything).Return(nil).Maybe()

			res, err := f.service.Confirm(ctx, 5)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				f.producer.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, domain.CodeReservationConfirmed, res.Code)
			assert.Equal(t, tt.want, res.Reservation.Status)
		})
	}
}

func TestReservationService_Withdraw(t *testing.T) {
	tests := []struct {
		name    string
		current domain.ReservationStatus
		wantErr error
	}{
		{name: "applied", current: domain.ReservationStatusApplied},
		{name: "confirmed", current: domain.ReservationStatusConfirmed},
		{name: "cancelled", current: domain.ReservationStatusCancelled, wantErr: domain.ErrReservationAlreadyCancelled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			ctx := context.Background()
			f.reservations.On("UpdateStatus", ctx, int64(5)).Return(&domain.Reservation{ID: 5, Status: tt.current}, nil).Once()
			f.producer.On("Publish", ctx, "reservations", "5", mock.Anything).Return(nil).Maybe()

			res, err := f.service.Withdraw(ctx, 5)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, domain.CodeReservationStatusUpdate, res.Code)
			assert.Equal(t, domain.ReservationStatusCancelled, res.Reservation.Status)
		})
	}
}

func TestReservationService_Withdraw_NotFound(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.reservations.On("UpdateStatus", ctx, int64(5)).Return(nil, repository.ErrNotFound).Once()

	_, err := f.service.Withdraw(ctx, 5)

	assert.ErrorIs(t, err, domain.ErrReservationNotFound)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestReservationService_ListForUser(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.reservations.On("FindByUserID", ctx, int64(7)).Return([]domain.Reservation{{ID: 3}, {ID: 1}}, nil).Once()
	f.reservations.On("FindByUserID", ctx, int64(8)).Return([]domain.Reservation{}, nil).Once()

	res, err := f.service.ListForUser(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, domain.CodeReservationListed, res.Code)
	assert.Equal(t, int64(3), res.Reservations[0].ID)

	res, err = f.service.ListForUser(ctx, 8)
	require.NoError(t, err)
	assert.Equal(t, domain.CodeReservationListEmpty, res.Code)
	assert.Empty(t, res.Reservations)
}

func TestReservationService_ListForAgent_Sorted(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	t1 := now.Add(24 * time.Hour)
	f.reservations.On("FindByAgentIDAfter", ctx, int64(9), now, false).Return([]domain.Reservation{
		{ID: 2, ReservationTime: t1},
		{ID: 1, ReservationTime: t1},
		{ID: 3, ReservationTime: t1.Add(24 * time.Hour)},
	}, nil).Once()

	res, err := f.service.ListForAgent(ctx, 9, AgentListOptions{})

	require.NoError(t, err)
	assert.Equal(t, domain.CodeReservationListed, res.Code)
	ids := make([]int64, 0, len(res.Reservations))
	for _, r := range res.Reservations {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []int64{1, 2, 3}, ids)
}

func TestReservationService_ListForAgent_IncludeCancelled(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.reservations.On("FindByAgentIDAfter", ctx, int64(9), now, true).Return([]domain.Reservation{}, nil).Once()

	res, err := f.service.ListForAgent(ctx, 9, AgentListOptions{IncludeCancelled: true})

	require.NoError(t, err)
	assert.Equal(t, domain.CodeReservationListEmpty, res.Code)
	f.reservations.AssertExpectations(t)
}

func TestReservationService_ConcurrentCreate(t *testing.T) {
	rooms := repository.NewMemoryRoomRepository(domain.Room{ID: 1, AgentID: 100})
	users := repository.NewMemoryUserRepository()
	const callers = 40
	for i := int64(1); i <= callers; i++ {
		users.Put(domain.User{ID: i})
	}
	service := NewReservationService(repository.NewMemoryReservationRepository(rooms), users, rooms)

	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		successes  int
		duplicates int
	)
	for i := int64(1); i <= callers; i++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			_, err := service.CreateReservation(context.Background(), CreateReservationInput{RoomID: 1, UserID: userID, ReservationTime: slot})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
			} else if errors.Is(err, domain.ErrReservationDuplicated) {
				duplicates++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, callers-1, duplicates)
}

func TestReservationService_CancelledSlotCanBeRebooked(t *testing.T) {
	ctx := context.Background()
	rooms := repository.NewMemoryRoomRepository(domain.Room{ID: 1, AgentID: 100})
	users := repository.NewMemoryUserRepository(domain.User{ID: 1}, domain.User{ID: 2})
	service := NewReservationService(repository.NewMemoryReservationRepository(rooms), users, rooms)

	first, err := service.CreateReservation(ctx, CreateReservationInput{RoomID: 1, UserID: 1, ReservationTime: slot})
	require.NoError(t, err)

	_, err = service.CreateReservation(ctx, CreateReservationInput{RoomID: 1, UserID: 1, ReservationTime: slot.Add(time.Hour)})
	assert.ErrorIs(t, err, domain.ErrReservationAlreadyBooked)

	_, err = service.Withdraw(ctx, first.Reservation.ID)
	require.NoError(t, err)

	_, err = service.CreateReservation(ctx, CreateReservationInput{RoomID: 1, UserID: 2, ReservationTime: slot})
	assert.NoError(t, err)

	_, err = service.Confirm(ctx, first.Reservation.ID)
	assert.ErrorIs(t, err, domain.ErrReservationConfirmUnavailable)
}
