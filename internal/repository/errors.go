package repository

import "errors"

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("not found")

// ErrSlotTaken and ErrUserRoomTaken are returned by inserts rejected by the
// uniqueness constraints on active reservations. They back up the checks done
// under the slot lock.
var (
	ErrSlotTaken     = errors.New("slot already reserved")
	ErrUserRoomTaken = errors.New("user already holds a reservation for the room")
)
