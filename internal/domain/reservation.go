package domain

import "time"

type ReservationStatus string

const (
	ReservationStatusApplied   ReservationStatus = "APPLIED"
	ReservationStatusConfirmed ReservationStatus = "CONFIRMED"
	ReservationStatusCancelled ReservationStatus = "CANCELLED"
)

// Reservation is a request by a user to view a room at a given time.
type Reservation struct {
	ID              int64             `json:"id"`
	RoomID          int64             `json:"room_id"`
	UserID          int64             `json:"user_id"`
	ReservationTime time.Time         `json:"reservation_time"`
	Status          ReservationStatus `json:"status"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// Active reports whether the reservation still holds its slot.
func (r *Reservation) Active() bool {
	return r.Status != ReservationStatusCancelled
}
