package domain

import "fmt"

type ReservationAction string

const (
	ActionConfirm  ReservationAction = "confirm"
	ActionWithdraw ReservationAction = "withdraw"
)

type transition struct {
	next ReservationStatus
	err  error
}

// reservationTransitions is the complete state machine. Pairs missing from the
// table are rejected by NextStatus.
var reservationTransitions = map[ReservationStatus]map[ReservationAction]transition{
	ReservationStatusApplied: {
		ActionConfirm:  {next: ReservationStatusConfirmed},
		ActionWithdraw: {next: ReservationStatusCancelled},
	},
	ReservationStatusConfirmed: {
		ActionConfirm:  {err: ErrReservationAlreadyConfirmed},
		ActionWithdraw: {next: ReservationStatusCancelled},
	},
	ReservationStatusCancelled: {
		ActionConfirm:  {err: ErrReservationConfirmUnavailable},
		ActionWithdraw: {err: ErrReservationAlreadyCancelled},
	},
}

// NextStatus returns the status a reservation in state from moves to when
// action is applied, or the error describing why the move is illegal.
func NextStatus(from ReservationStatus, action ReservationAction) (ReservationStatus, error) {
	actions, ok := reservationTransitions[from]
	if !ok {
		return "", fmt.Errorf("unknown reservation status %q", from)
	}
	t, ok := actions[action]
	if !ok {
		return "", fmt.Errorf("unknown reservation action %q", action)
	}
	if t.err != nil {
		return from, t.err
	}
	return t.next, nil
}
