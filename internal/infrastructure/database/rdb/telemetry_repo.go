package rdb

import (
	"context"
	"log/slog"

	"github.com/tunetrail/backend/internal/entity"
)

// TelemetryRepository implements entity.TelemetryRepository.
type TelemetryRepository struct {
	db *Database
}

const (
	insertSearchQueryQuery = `
		INSERT INTO search_queries (user_id, query, result_count, device_type)
		VALUES ($1, $2, $3, $4)
		RETURNING id, user_id, query, result_count, device_type, occurred_at
	`

	insertContentViewQuery = `
		INSERT INTO content_views (user_id, content_type, content_id, device_type)
		VALUES ($1, $2, $3, $4)
		RETURNING id, user_id, content_type, content_id, device_type, occurred_at
	`

	insertPlayerEventQuery = `
		INSERT INTO player_events (user_id, session_id, track_id, event_type, position_ms)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, user_id, session_id, track_id, event_type, position_ms, occurred_at
	`
)

// NewTelemetryRepository creates a new telemetry repository instance.
func NewTelemetryRepository(db *Database) *TelemetryRepository {
	return &TelemetryRepository{db: db}
}

func (r *TelemetryRepository) RecordSearchQuery(ctx context.Context, params *entity.NewSearchQuery) (*entity.SearchQuery, error) {
	m := &SearchQuery{}
	err := r.db.Pool.QueryRow(ctx, insertSearchQueryQuery,
		params.UserID, params.Query, params.ResultCount, params.DeviceType,
	).Scan(&m.ID, &m.UserID, &m.Query, &m.ResultCount, &m.DeviceType, &m.OccurredAt)
	if err != nil {
		return nil, toAppErr(err, "failed to record search query", slog.String("user_id", params.UserID))
	}
	return m.ToEntity(), nil
}

func (r *TelemetryRepository) RecordContentView(ctx context.Context, params *entity.NewContentView) (*entity.ContentView, error) {
	m := &ContentView{}
	err := r.db.Pool.QueryRow(ctx, insertContentViewQuery,
		params.UserID, params.ContentType, params.ContentID, params.DeviceType,
	).Scan(&m.ID, &m.UserID, &m.ContentType, &m.ContentID, &m.DeviceType, &m.OccurredAt)
	if err != nil {
		return nil, toAppErr(err, "failed to record content view", slog.String("user_id", params.UserID))
	}
	return m.ToEntity(), nil
}

func (r *TelemetryRepository) RecordPlayerEvent(ctx context.Context, params *entity.NewPlayerEvent) (*entity.PlayerEvent, error) {
	m := &PlayerEvent{}
	err := r.db.Pool.QueryRow(ctx, insertPlayerEventQuery,
		params.UserID, params.SessionID, params.TrackID, params.EventType, params.PositionMs,
	).Scan(&m.ID, &m.UserID, &m.SessionID, &m.TrackID, &m.EventType, &m.PositionMs, &m.OccurredAt)
	if err != nil {
		return nil, toAppErr(err, "failed to record player event", slog.String("user_id", params.UserID))
	}
	return m.ToEntity(), nil
}

var _ entity.TelemetryRepository = (*TelemetryRepository)(nil)
