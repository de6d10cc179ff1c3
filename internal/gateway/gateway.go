// Package gateway defines the boundary to the video provider that hosts live
// viewing sessions and their recordings.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/Domenick1991/ownbang/internal/domain"
)

var (
	ErrSessionNotFound   = errors.New("video session not found")
	ErrSessionExists     = errors.New("video session already exists")
	ErrRecordingNotFound = errors.New("recording not found")
)

// VideoGateway is keyed by reservation id. Every method distinguishes
// "absent" from a provider failure through its error.
type VideoGateway interface {
	CreateSession(ctx context.Context, reservationID int64) (*domain.SessionHandle, error)
	// GetSession reports whether a live session exists for reservationID.
	GetSession(ctx context.Context, reservationID int64) (*domain.SessionHandle, bool, error)
	CreateToken(ctx context.Context, reservationID int64, role domain.Role) (string, error)
	StopRecording(ctx context.Context, reservationID int64) (*domain.RecordingHandle, error)
	RemoveToken(ctx context.Context, reservationID int64, token string, role domain.Role) error
	RemoveSession(ctx context.Context, reservationID int64) error
	DeleteRecording(ctx context.Context, recordingID string) error
}

// SessionName is the provider side identifier used for a reservation.
func SessionName(reservationID int64) string {
	return fmt.Sprintf("reservation-%d", reservationID)
}
