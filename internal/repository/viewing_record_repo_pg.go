package repository

import (
	"context"
	"errors"

	"github.com/Domenick1991/ownbang/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ViewingRecordRepository interface {
	Upsert(ctx context.Context, record *domain.ViewingRecord) error
	GetByReservationID(ctx context.Context, reservationID int64) (*domain.ViewingRecord, error)
}

type PGViewingRecordRepository struct {
	db *pgxpool.Pool
}

func NewViewingRecordRepository(db *pgxpool.Pool) ViewingRecordRepository {
	return &PGViewingRecordRepository{db: db}
}

func (r *PGViewingRecordRepository) Upsert(ctx context.Context, record *domain.ViewingRecord) error {
	return r.db.QueryRow(ctx, `INSERT INTO viewing_records (reservation_id, recording_id, video_url, status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (reservation_id) DO UPDATE
		SET recording_id = EXCLUDED.recording_id, video_url = EXCLUDED.video_url, status = EXCLUDED.status, updated_at = now()
		RETURNING updated_at`, record.ReservationID, record.RecordingID, record.VideoURL, record.Status).
		Scan(&record.UpdatedAt)
}

func (r *PGViewingRecordRepository) GetByReservationID(ctx context.Context, reservationID int64) (*domain.ViewingRecord, error) {
	var rec domain.ViewingRecord
	err := r.db.QueryRow(ctx, `SELECT reservation_id, recording_id, video_url, status, updated_at FROM viewing_records WHERE reservation_id=$1`, reservationID).
		Scan(&rec.ReservationID, &rec.RecordingID, &rec.VideoURL, &rec.Status, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

var _ ViewingRecordRepository = (*PGViewingRecordRepository)(nil)
