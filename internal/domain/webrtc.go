package domain

import "time"

// Role scopes what an issued viewing token may do inside a session.
type Role string

const (
	RoleAgent    Role = "ROLE_AGENT"
	RoleCustomer Role = "ROLE_CUSTOMER"
)

func (r Role) Valid() bool {
	return r == RoleAgent || r == RoleCustomer
}

// SessionHandle references a live video session held by the gateway.
type SessionHandle struct {
	ReservationID int64
	SessionID     string
	CreatedAt     time.Time
}

// RecordingHandle references a finished recording held by the gateway.
type RecordingHandle struct {
	ID            string
	ReservationID int64
	SessionID     string
	URL           string
	Size          int64
	Duration      float64
}
