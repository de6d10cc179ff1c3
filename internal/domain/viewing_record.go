package domain

import "time"

type ViewingRecordStatus string

const (
	ViewingRecordStatusRecording ViewingRecordStatus = "RECORDING"
	ViewingRecordStatusRecorded  ViewingRecordStatus = "RECORDED"
	ViewingRecordStatusFailed    ViewingRecordStatus = "FAILED"
)

// ViewingRecord stores where the archived recording of a live viewing lives.
type ViewingRecord struct {
	ReservationID int64
	RecordingID   string
	VideoURL      string
	Status        ViewingRecordStatus
	UpdatedAt     time.Time
}
