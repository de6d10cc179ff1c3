package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextStatus(t *testing.T) {
	testCases := []struct {
		name    string
		from    ReservationStatus
		action  ReservationAction
		want    ReservationStatus
		wantErr error
	}{
		{name: "confirm applied", from: ReservationStatusApplied, action: ActionConfirm, want: ReservationStatusConfirmed},
		{name: "withdraw applied", from: ReservationStatusApplied, action: ActionWithdraw, want: ReservationStatusCancelled},
		{name: "withdraw confirmed", from: ReservationStatusConfirmed, action: ActionWithdraw, want: ReservationStatusCancelled},
		{name: "confirm confirmed", from: ReservationStatusConfirmed, action: ActionConfirm, wantErr: ErrReservationAlreadyConfirmed},
		{name: "confirm cancelled", from: ReservationStatusCancelled, action: ActionConfirm, wantErr: ErrReservationConfirmUnavailable},
		{name: "withdraw cancelled", from: ReservationStatusCancelled, action: ActionWithdraw, wantErr: ErrReservationAlreadyCancelled},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			next, err := NextStatus(tc.from, tc.action)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				assert.Equal(t, tc.from, next)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.want, next)
		})
	}
}

func TestNextStatus_Unknown(t *testing.T) {
	_, err := NextStatus("EXPIRED", ActionConfirm)
	assert.Error(t, err)

	_, err = NextStatus(ReservationStatusApplied, "archive")
	assert.Error(t, err)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindConflict, KindOf(ErrSessionDuplicated))
	assert.Equal(t, KindBadRequest, KindOf(ErrSessionNotFound))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))

	wrapped := errors.Join(errors.New("context"), ErrReservationNotFound)
	assert.Equal(t, KindNotFound, KindOf(wrapped))
	assert.Equal(t, "RESERVATION_NOT_FOUND: reservation not found", ErrReservationNotFound.Error())
}
