package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/ownbang/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	uniqueViolation       = "23505"
	activeSlotIndex       = "reservations_active_slot_idx"
	activeUserRoomIndex   = "reservations_active_user_room_idx"
	reservationColumns    = `id, room_id, user_id, reservation_time, status, created_at, updated_at`
	reservationColumnsRes = `r.id, r.room_id, r.user_id, r.reservation_time, r.status, r.created_at, r.updated_at`
)

// ReservationTx is the view of the store available while a slot lock is held.
type ReservationTx interface {
	// FindBySlot returns the active reservation for the slot, or nil.
	FindBySlot(ctx context.Context, roomID int64, at time.Time) (*domain.Reservation, error)
	// FindByRoomAndUserExcludingStatus returns a reservation of userID on roomID
	// whose status differs from status, or nil.
	FindByRoomAndUserExcludingStatus(ctx context.Context, roomID, userID int64, status domain.ReservationStatus) (*domain.Reservation, error)
	Insert(ctx context.Context, reservation *domain.Reservation) error
}

// StatusDecider inspects the current row and returns the status to store.
type StatusDecider func(current *domain.Reservation) (domain.ReservationStatus, error)

type ReservationRepository interface {
	// WithSlotLock runs fn while holding an exclusive lock on (roomID, at).
	// Writes made through the tx become visible only if fn returns nil.
	WithSlotLock(ctx context.Context, roomID int64, at time.Time, fn func(ctx context.Context, tx ReservationTx) error) error
	FindByID(ctx context.Context, id int64) (*domain.Reservation, error)
	// UpdateStatus locks the row, asks decide for the new status and stores it.
	UpdateStatus(ctx context.Context, id int64, decide StatusDecider) (*domain.Reservation, error)
	FindByUserID(ctx context.Context, userID int64) ([]domain.Reservation, error)
	// FindByAgentIDAfter returns reservations on rooms managed by agentID later
	// than after. The result is unordered.
	FindByAgentIDAfter(ctx context.Context, agentID int64, after time.Time, includeCancelled bool) ([]domain.Reservation, error)
}

type PGReservationRepository struct {
	db *pgxpool.Pool
}

func NewReservationRepository(db *pgxpool.Pool) ReservationRepository {
	return &PGReservationRepository{db: db}
}

func (r *PGReservationRepository) WithSlotLock(ctx context.Context, roomID int64, at time.Time, fn func(ctx context.Context, tx ReservationTx) error) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// Row locks cannot cover a slot that has no row yet, so the slot itself is
	// locked with a transaction scoped advisory lock.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, slotLockKey(roomID, at)); err != nil {
		return fmt.Errorf("lock slot: %w", err)
	}

	if err := fn(ctx, &pgReservationTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *PGReservationRepository) FindByID(ctx context.Context, id int64) (*domain.Reservation, error) {
	row := r.db.QueryRow(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id=$1`, id)
	res, err := scanReservation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return res, err
}

func (r *PGReservationRepository) UpdateStatus(ctx context.Context, id int64, decide StatusDecider) (*domain.Reservation, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	current, err := scanReservation(tx.QueryRow(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	next, err := decide(current)
	if err != nil {
		return nil, err
	}

	updated, err := scanReservation(tx.QueryRow(ctx, `UPDATE reservations SET status=$1, updated_at=now() WHERE id=$2 RETURNING `+reservationColumns, next, id))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *PGReservationRepository) FindByUserID(ctx context.Context, userID int64) ([]domain.Reservation, error) {
	rows, err := r.db.Query(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE user_id=$1 ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	return collectReservations(rows)
}

func (r *PGReservationRepository) FindByAgentIDAfter(ctx context.Context, agentID int64, after time.Time, includeCancelled bool) ([]domain.Reservation, error) {
	rows, err := r.db.Query(ctx, `SELECT `+reservationColumnsRes+`
		FROM reservations r
		JOIN rooms ON rooms.id = r.room_id
		WHERE rooms.agent_id=$1 AND r.reservation_time > $2 AND ($3 OR r.status <> $4)`,
		agentID, after, includeCancelled, domain.ReservationStatusCancelled)
	if err != nil {
		return nil, err
	}
	return collectReservations(rows)
}

type pgReservationTx struct {
	tx pgx.Tx
}

func (t *pgReservationTx) FindBySlot(ctx context.Context, roomID int64, at time.Time) (*domain.Reservation, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+reservationColumns+` FROM reservations
		WHERE room_id=$1 AND reservation_time=$2 AND status <> $3
		FOR UPDATE`, roomID, at, domain.ReservationStatusCancelled)
	return optionalReservation(scanReservation(row))
}

func (t *pgReservationTx) FindByRoomAndUserExcludingStatus(ctx context.Context, roomID, userID int64, status domain.ReservationStatus) (*domain.Reservation, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+reservationColumns+` FROM reservations
		WHERE room_id=$1 AND user_id=$2 AND status <> $3
		LIMIT 1`, roomID, userID, status)
	return optionalReservation(scanReservation(row))
}

func (t *pgReservationTx) Insert(ctx context.Context, res *domain.Reservation) error {
	err := t.tx.QueryRow(ctx, `INSERT INTO reservations (room_id, user_id, reservation_time, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`, res.RoomID, res.UserID, res.ReservationTime, res.Status).
		Scan(&res.ID, &res.CreatedAt, &res.UpdatedAt)
	return translateUniqueViolation(err)
}

func translateUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return err
	}
	switch pgErr.ConstraintName {
	case activeSlotIndex:
		return ErrSlotTaken
	case activeUserRoomIndex:
		return ErrUserRoomTaken
	default:
		return err
	}
}

func slotLockKey(roomID int64, at time.Time) string {
	return fmt.Sprintf("reservation:room:%d:at:%d", roomID, at.UTC().UnixMicro())
}

func scanReservation(row pgx.Row) (*domain.Reservation, error) {
	var res domain.Reservation
	if err := row.Scan(&res.ID, &res.RoomID, &res.UserID, &res.ReservationTime, &res.Status, &res.CreatedAt, &res.UpdatedAt); err != nil {
		return nil, err
	}
	return &res, nil
}

func optionalReservation(res *domain.Reservation, err error) (*domain.Reservation, error) {
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return res, err
}

func collectReservations(rows pgx.Rows) ([]domain.Reservation, error) {
	defer rows.Close()

	reservations := make([]domain.Reservation, 0)
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		reservations = append(reservations, *res)
	}
	return reservations, rows.Err()
}

var _ ReservationRepository = (*PGReservationRepository)(nil)
