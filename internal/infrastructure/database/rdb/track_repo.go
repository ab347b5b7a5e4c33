package rdb

import (
	"context"
	"log/slog"

	"github.com/pannpers/go-apperr/apperr"
	"github.com/pannpers/go-apperr/apperr/codes"
	"github.com/tunetrail/backend/internal/entity"
)

// TrackRepository implements entity.TrackRepository.
type TrackRepository struct {
	db *Database
}

const (
	trackColumns = `t.id, t.duration_ms, t.created_at`

	getTrackQuery = `SELECT ` + trackColumns + ` FROM tracks t WHERE t.id = $1`

	getTracksBatchQuery = `SELECT ` + trackColumns + ` FROM tracks t WHERE t.id = ANY($1)`
)

// NewTrackRepository creates a new track repository instance.
func NewTrackRepository(db *Database) *TrackRepository {
	return &TrackRepository{db: db}
}

func scanTrack(scanner interface{ Scan(dest ...any) error }) (*entity.Track, error) {
	m := &Track{}
	if err := scanner.Scan(&m.ID, &m.DurationMs, &m.CreatedAt); err != nil {
		return nil, err
	}
	return m.ToEntity(), nil
}

func (r *TrackRepository) Get(ctx context.Context, id string) (*entity.Track, error) {
	if id == "" {
		return nil, apperr.New(codes.InvalidArgument, "track ID cannot be empty")
	}
	track, err := scanTrack(r.db.Pool.QueryRow(ctx, getTrackQuery, id))
	if err != nil {
		return nil, toAppErr(err, "failed to get track", slog.String("track_id", id))
	}
	return track, nil
}

func (r *TrackRepository) GetBatch(ctx context.Context, ids []string) ([]*entity.Track, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := r.db.Pool.Query(ctx, getTracksBatchQuery, ids)
	if err != nil {
		return nil, toAppErr(err, "failed to get track batch")
	}
	defer rows.Close()

	var out []*entity.Track
	for rows.Next() {
		track, err := scanTrack(rows)
		if err != nil {
			return nil, toAppErr(err, "failed to scan track row")
		}
		out = append(out, track)
	}
	if err := rows.Err(); err != nil {
		return nil, toAppErr(err, "failed to iterate track rows")
	}
	return out, nil
}

var _ entity.TrackRepository = (*TrackRepository)(nil)
