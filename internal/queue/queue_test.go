package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordingFinalizeJob(t *testing.T) {
	payload := RecordingFinalizePayload{ReservationID: 7, SessionID: "ses", RecordingID: "rec", RecordingURL: "http://x/rec.mp4"}

	job, err := NewRecordingFinalizeJob(payload)
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, JobTypeRecordingFinalize, job.Type)
	assert.Zero(t, job.Attempt)

	got, err := job.RecordingFinalize()
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestRecordingFinalize_WrongType(t *testing.T) {
	job := &Job{Type: "email", Payload: []byte(`{}`)}
	_, err := job.RecordingFinalize()
	assert.Error(t, err)
}

func TestRecordingFinalize_BadPayload(t *testing.T) {
	job := &Job{Type: JobTypeRecordingFinalize, Payload: []byte(`"nope"`)}
	_, err := job.RecordingFinalize()
	assert.Error(t, err)
}
