package kafka

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/Domenick1991/ownbang/internal/domain"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReservationEvent(t *testing.T) {
	at := time.Date(2026, 11, 1, 10, 0, 0, 0, time.UTC)
	event := NewReservationEvent(EventReservationConfirmed, &domain.Reservation{
		ID: 12, RoomID: 3, UserID: 4, ReservationTime: at, Status: domain.ReservationStatusConfirmed,
	})

	assert.NotEmpty(t, event.ID)
	assert.Equal(t, "12", event.Key())
	assert.Equal(t, EventReservationConfirmed, event.Type)
	assert.Equal(t, domain.ReservationStatusConfirmed, event.Status)
	assert.Equal(t, at, event.ReservationTime)
}

func TestDecodeReservationEvent(t *testing.T) {
	data, err := json.Marshal(ReservationEvent{Type: EventReservationCreated, ReservationID: 5})
	require.NoError(t, err)

	event, err := DecodeReservationEvent(kafka.Message{Value: data})
	require.NoError(t, err)
	assert.Equal(t, int64(5), event.ReservationID)

	_, err = DecodeReservationEvent(kafka.Message{Value: []byte("{")})
	assert.Error(t, err)
}
