package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Domenick1991/ownbang/internal/domain"
	"github.com/Domenick1991/ownbang/internal/lock"
)

// MemoryRoomRepository keeps rooms in process. Used when no database is configured.
type MemoryRoomRepository struct {
	mu    sync.RWMutex
	rooms map[int64]domain.Room
}

func NewMemoryRoomRepository(rooms ...domain.Room) *MemoryRoomRepository {
	r := &MemoryRoomRepository{rooms: make(map[int64]domain.Room)}
	for _, room := range rooms {
		r.rooms[room.ID] = room
	}
	return r
}

func (r *MemoryRoomRepository) Put(room domain.Room) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rooms[room.ID] = room
}

func (r *MemoryRoomRepository) GetByID(_ context.Context, id int64) (*domain.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &room, nil
}

func (r *MemoryRoomRepository) agentOf(roomID int64) (int64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[roomID]
	return room.AgentID, ok
}

// MemoryUserRepository keeps users in process.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[int64]domain.User
}

func NewMemoryUserRepository(users ...domain.User) *MemoryUserRepository {
	r := &MemoryUserRepository{users: make(map[int64]domain.User)}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *MemoryUserRepository) Put(u domain.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.ID] = u
}

func (r *MemoryUserRepository) GetByID(_ context.Context, id int64) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

// MemoryReservationRepository serializes slot access with a keyed mutex and
// enforces the active-reservation uniqueness rules on insert.
type MemoryReservationRepository struct {
	slots *lock.Keyed
	rows  *lock.Keyed
	rooms *MemoryRoomRepository

	mu     sync.RWMutex
	nextID int64
	byID   map[int64]*domain.Reservation
	order  []int64
}

func NewMemoryReservationRepository(rooms *MemoryRoomRepository) *MemoryReservationRepository {
	if rooms == nil {
		rooms = NewMemoryRoomRepository()
	}
	return &MemoryReservationRepository{
		slots: lock.NewKeyed(),
		rows:  lock.NewKeyed(),
		rooms: rooms,
		byID:  make(map[int64]*domain.Reservation),
	}
}

func (r *MemoryReservationRepository) WithSlotLock(ctx context.Context, roomID int64, at time.Time, fn func(ctx context.Context, tx ReservationTx) error) error {
	unlock := r.slots.Lock(slotLockKey(roomID, at))
	defer unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx, memoryReservationTx{repo: r})
}

func (r *MemoryReservationRepository) FindByID(_ context.Context, id int64) (*domain.Reservation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *res
	return &cp, nil
}

func (r *MemoryReservationRepository) UpdateStatus(_ context.Context, id int64, decide StatusDecider) (*domain.Reservation, error) {
	unlock := r.rows.Lock(fmt.Sprintf("reservation:%d", id))
	defer unlock()

	r.mu.RLock()
	res, ok := r.byID[id]
	var current domain.Reservation
	if ok {
		current = *res
	}
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	next, err := decide(&current)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	res.Status = next
	res.UpdatedAt = time.Now()
	cp := *res
	return &cp, nil
}

func (r *MemoryReservationRepository) FindByUserID(_ context.Context, userID int64) ([]domain.Reservation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Reservation, 0)
	for _, id := range r.order {
		if res := r.byID[id]; res.UserID == userID {
			out = append(out, *res)
		}
	}
	return out, nil
}

func (r *MemoryReservationRepository) FindByAgentIDAfter(_ context.Context, agentID int64, after time.Time, includeCancelled bool) ([]domain.Reservation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Reservation, 0)
	for _, res := range r.byID {
		if agent, ok := r.rooms.agentOf(res.RoomID); !ok || agent != agentID {
			continue
		}
		if !res.ReservationTime.After(after) {
			continue
		}
		if !includeCancelled && !res.Active() {
			continue
		}
		out = append(out, *res)
	}
	return out, nil
}

type memoryReservationTx struct {
	repo *MemoryReservationRepository
}

func (t memoryReservationTx) FindBySlot(_ context.Context, roomID int64, at time.Time) (*domain.Reservation, error) {
	t.repo.mu.RLock()
	defer t.repo.mu.RUnlock()
	for _, res := range t.repo.byID {
		if res.RoomID == roomID && res.ReservationTime.Equal(at) && res.Active() {
			cp := *res
			return &cp, nil
		}
	}
	return nil, nil
}

func (t memoryReservationTx) FindByRoomAndUserExcludingStatus(_ context.Context, roomID, userID int64, status domain.ReservationStatus) (*domain.Reservation, error) {
	t.repo.mu.RLock()
	defer t.repo.mu.RUnlock()
	for _, id := range t.repo.order {
		res := t.repo.byID[id]
		if res.RoomID == roomID && res.UserID == userID && res.Status != status {
			cp := *res
			return &cp, nil
		}
	}
	return nil, nil
}

func (t memoryReservationTx) Insert(_ context.Context, res *domain.Reservation) error {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	for _, existing := range t.repo.byID {
		if !existing.Active() || existing.RoomID != res.RoomID {
			continue
		}
		if existing.ReservationTime.Equal(res.ReservationTime) {
			return ErrSlotTaken
		}
		if existing.UserID == res.UserID {
			return ErrUserRoomTaken
		}
	}

	t.repo.nextID++
	now := time.Now()
	res.ID = t.repo.nextID
	res.CreatedAt = now
	res.UpdatedAt = now
	cp := *res
	t.repo.byID[res.ID] = &cp
	t.repo.order = append(t.repo.order, res.ID)
	return nil
}

var (
	_ ReservationRepository = (*MemoryReservationRepository)(nil)
	_ UserRepository        = (*MemoryUserRepository)(nil)
	_ RoomRepository        = (*MemoryRoomRepository)(nil)
)

// MemoryViewingRecordRepository keeps archived viewing records in process.
type MemoryViewingRecordRepository struct {
	mu      sync.RWMutex
	records map[int64]domain.ViewingRecord
}

func NewMemoryViewingRecordRepository() *MemoryViewingRecordRepository {
	return &MemoryViewingRecordRepository{records: make(map[int64]domain.ViewingRecord)}
}

func (r *MemoryViewingRecordRepository) Upsert(_ context.Context, record *domain.ViewingRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	record.UpdatedAt = time.Now()
	r.records[record.ReservationID] = *record
	return nil
}

func (r *MemoryViewingRecordRepository) GetByReservationID(_ context.Context, reservationID int64) (*domain.ViewingRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[reservationID]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

var _ ViewingRecordRepository = (*MemoryViewingRecordRepository)(nil)
