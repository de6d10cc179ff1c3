package domain

import (
	"errors"
	"fmt"
)

// ErrorKind groups domain errors by how the boundary layer reports them.
type ErrorKind int

const (
	KindConflict ErrorKind = iota + 1
	KindNotFound
	KindBadRequest
	KindInvalidState
	KindInternal
)

func (k ErrorKind) String() string {
	switch k {
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindBadRequest:
		return "bad_request"
	case KindInvalidState:
		return "invalid_state"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error is a typed failure carrying a stable code for API clients.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newError(kind ErrorKind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

var (
	ErrReservationDuplicated         = newError(KindConflict, "RESERVATION_DUPLICATED", "the viewing time is already booked by someone else")
	ErrReservationAlreadyBooked      = newError(KindConflict, "RESERVATION_COMPLETED", "each room can be reserved only once per user")
	ErrReservationAlreadyCancelled   = newError(KindConflict, "RESERVATION_CANCELLED_DUPLICATED", "reservation is already cancelled")
	ErrReservationAlreadyConfirmed   = newError(KindConflict, "RESERVATION_CONFIRMED_DUPLICATED", "reservation is already confirmed")
	ErrSessionDuplicated             = newError(KindConflict, "WEBRTC_SESSION_DUPLICATED", "a viewing session already exists for the reservation")
	ErrReservationNotFound           = newError(KindNotFound, "RESERVATION_NOT_FOUND", "reservation not found")
	ErrUserNotFound                  = newError(KindNotFound, "NOT_FOUND", "user not found")
	ErrRoomNotFound                  = newError(KindNotFound, "NOT_FOUND", "room not found")
	ErrSessionNotFound               = newError(KindBadRequest, "BAD_REQUEST", "no active viewing session for the reservation")
	ErrReservationNotConfirmed       = newError(KindInvalidState, "RESERVATION_STATUS_NOT_CONFIRMED", "reservation is not confirmed")
	ErrReservationConfirmUnavailable = newError(KindInvalidState, "RESERVATION_CONFIRMED_UNAVAILABLE", "cancelled reservation cannot be confirmed")
	ErrTokenIssuanceFailed           = newError(KindInternal, "INTERNAL_SERVER_ERROR", "viewing token could not be issued")
	ErrRecordingStopFailed           = newError(KindInternal, "INTERNAL_SERVER_ERROR", "recording could not be stopped")
)

// BadRequest reports malformed input.
func BadRequest(msg string) *Error {
	return newError(KindBadRequest, "BAD_REQUEST", msg)
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal
// for anything else.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}
