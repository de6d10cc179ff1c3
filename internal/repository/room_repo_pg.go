package repository

import (
	"context"
	"errors"

	"github.com/Domenick1991/ownbang/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RoomRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Room, error)
}

type PGRoomRepository struct {
	db *pgxpool.Pool
}

func NewRoomRepository(db *pgxpool.Pool) RoomRepository {
	return &PGRoomRepository{db: db}
}

func (r *PGRoomRepository) GetByID(ctx context.Context, id int64) (*domain.Room, error) {
	var room domain.Room
	err := r.db.QueryRow(ctx, `SELECT id, agent_id, title, created_at FROM rooms WHERE id=$1`, id).
		Scan(&room.ID, &room.AgentID, &room.Title, &room.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &room, nil
}

var _ RoomRepository = (*PGRoomRepository)(nil)
