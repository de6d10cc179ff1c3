package repository

import (
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
)

func TestNewRepositories(t *testing.T) {
	pool := &pgxpool.Pool{}
	assert.NotNil(t, NewReservationRepository(pool))
	assert.NotNil(t, NewUserRepository(pool))
	assert.NotNil(t, NewRoomRepository(pool))
	assert.NotNil(t, NewViewingRecordRepository(pool))
}

func TestTranslateUniqueViolation(t *testing.T) {
	slot := &pgconn.PgError{Code: uniqueViolation, ConstraintName: activeSlotIndex}
	userRoom := &pgconn.PgError{Code: uniqueViolation, ConstraintName: activeUserRoomIndex}
	other := &pgconn.PgError{Code: "23503", ConstraintName: "reservations_room_id_fkey"}
	plain := errors.New("conn reset")

	assert.ErrorIs(t, translateUniqueViolation(slot), ErrSlotTaken)
	assert.ErrorIs(t, translateUniqueViolation(userRoom), ErrUserRoomTaken)
	assert.Equal(t, error(other), translateUniqueViolation(other))
	assert.Equal(t, plain, translateUniqueViolation(plain))
	assert.NoError(t, translateUniqueViolation(nil))
}

func TestSlotLockKey_NormalizesZone(t *testing.T) {
	at := time.Date(2024, 5, 1, 14, 0, 0, 0, time.UTC)
	seoul := at.In(time.FixedZone("KST", 9*60*60))

	assert.Equal(t, slotLockKey(3, at), slotLockKey(3, seoul))
	assert.NotEqual(t, slotLockKey(3, at), slotLockKey(4, at))
}
