package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecordingKey(t *testing.T) {
	assert.Equal(t, "recordings/12/rec-1.mp4", RecordingKey(12, "rec-1", ""))
	assert.Equal(t, "recordings/12/rec-1.webm", RecordingKey(12, "rec-1", ".webm"))
	assert.Equal(t, "recordings/12/evil.mp4", RecordingKey(12, "../../evil", ""))
}

func TestObjectURL(t *testing.T) {
	s := &S3{cfg: S3Config{Region: "eu-central-1", RecordingsBucket: "views"}}
	assert.Equal(t, "https://views.s3.eu-central-1.amazonaws.com/recordings/1/a.mp4", s.ObjectURL("recordings/1/a.mp4"))
}
