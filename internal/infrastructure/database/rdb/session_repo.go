package rdb

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pannpers/go-apperr/apperr"
	"github.com/pannpers/go-apperr/apperr/codes"
	"github.com/tunetrail/backend/internal/entity"
)

// SessionRepository implements entity.SessionRepository.
type SessionRepository struct {
	db *Database
}

const (
	sessionColumns = `s.id, s.user_id, s.device_id, s.device_type, s.client_context, s.status, s.started_at,
		s.last_heartbeat_at, s.last_position_ms, s.last_track_id, s.ended_at, s.ended_by,
		s.total_duration_ms, s.tracks_played, s.tracks_skipped, s.completion_rate`

	getSessionQuery = `SELECT ` + sessionColumns + ` FROM sessions s WHERE s.id = $1`

	getActiveSessionByDeviceQuery = `
		SELECT ` + sessionColumns + `
		FROM sessions s
		WHERE s.user_id = $1 AND s.device_id = $2 AND s.status = 'active'
	`

	insertSessionQuery = `
		INSERT INTO sessions (user_id, device_id, device_type, client_context, status)
		VALUES ($1, $2, $3, $4, 'active')
		RETURNING ` + sessionColumns

	heartbeatSessionQuery = `
		UPDATE sessions
		SET last_heartbeat_at = $2,
			last_position_ms = COALESCE($3, last_position_ms),
			last_track_id = COALESCE($4, last_track_id)
		WHERE id = $1 AND status = 'active'
	`

	finalizeSessionQuery = `
		UPDATE sessions
		SET status = $2, ended_at = $3, ended_by = $4,
			total_duration_ms = $5, tracks_played = $6, tracks_skipped = $7, completion_rate = $8
		WHERE id = $1 AND status = 'active'
		RETURNING ` + sessionColumns

	listActiveSessionsQuery = `SELECT ` + sessionColumns + ` FROM sessions s WHERE s.status = 'active'`
)

// NewSessionRepository creates a new session repository instance.
func NewSessionRepository(db *Database) *SessionRepository {
	return &SessionRepository{db: db}
}

func scanSession(scanner interface{ Scan(dest ...any) error }) (*entity.Session, error) {
	m := &Session{}
	if err := scanner.Scan(
		&m.ID, &m.UserID, &m.DeviceID, &m.DeviceType, &m.ClientContext, &m.Status, &m.StartedAt,
		&m.LastHeartbeatAt, &m.LastPositionMs, &m.LastTrackID, &m.EndedAt, &m.EndedBy,
		&m.TotalDurationMs, &m.TracksPlayed, &m.TracksSkipped, &m.CompletionRate,
	); err != nil {
		return nil, err
	}
	return m.ToEntity(), nil
}

func (r *SessionRepository) Create(ctx context.Context, params *entity.NewSession) (*entity.Session, error) {
	if params == nil {
		return nil, apperr.New(codes.InvalidArgument, "params cannot be nil")
	}

	m := FromNewSession(params)
	session, err := scanSession(r.db.Pool.QueryRow(ctx, insertSessionQuery, m.UserID, m.DeviceID, m.DeviceType, m.ClientContext))
	if err != nil {
		return nil, toAppErr(err, "failed to create session", slog.String("user_id", params.UserID))
	}

	r.db.logger.Info(ctx, "session started", slog.String("entityType", "session"), slog.String("sessionID", session.ID))
	return session, nil
}

func (r *SessionRepository) Get(ctx context.Context, id string) (*entity.Session, error) {
	if id == "" {
		return nil, apperr.New(codes.InvalidArgument, "session ID cannot be empty")
	}
	session, err := scanSession(r.db.Pool.QueryRow(ctx, getSessionQuery, id))
	if err != nil {
		return nil, toAppErr(err, "failed to get session", slog.String("session_id", id))
	}
	return session, nil
}

func (r *SessionRepository) GetActiveByDevice(ctx context.Context, userID, deviceID string) (*entity.Session, error) {
	session, err := scanSession(r.db.Pool.QueryRow(ctx, getActiveSessionByDeviceQuery, userID, deviceID))
	if err != nil {
		return nil, toAppErr(err, "failed to get active session", slog.String("user_id", userID), slog.String("device_id", deviceID))
	}
	return session, nil
}

func (r *SessionRepository) Heartbeat(ctx context.Context, id string, at time.Time, positionMs *int64, trackID *string) error {
	result, err := r.db.Pool.Exec(ctx, heartbeatSessionQuery, id, at, positionMs, trackID)
	if err != nil {
		return toAppErr(err, "failed to record session heartbeat", slog.String("session_id", id))
	}
	if result.RowsAffected() == 0 {
		session, getErr := r.Get(ctx, id)
		if getErr != nil {
			return getErr
		}
		return apperr.New(codes.FailedPrecondition, "session is not active", slog.String("session_id", id), slog.String("status", string(session.Status)))
	}
	return nil
}

func (r *SessionRepository) Finalize(ctx context.Context, id string, reason entity.SessionEndReason, endedAt time.Time, summary *entity.SessionSummary) (*entity.Session, error) {
	status := string(entity.SessionEnded)
	if reason == entity.EndedByTimeout {
		status = string(entity.SessionExpired)
	}

	session, err := scanSession(r.db.Pool.QueryRow(ctx, finalizeSessionQuery,
		id, status, endedAt, string(reason),
		summary.TotalDurationMs, summary.TracksPlayed, summary.TracksSkipped, summary.CompletionRate,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Already finalized: re-fetch and return the existing row unchanged.
			return r.Get(ctx, id)
		}
		return nil, toAppErr(err, "failed to finalize session", slog.String("session_id", id))
	}

	r.db.logger.Info(ctx, "session finalized", slog.String("entityType", "session"), slog.String("sessionID", id), slog.String("reason", string(reason)))
	return session, nil
}

func (r *SessionRepository) ListActive(ctx context.Context) ([]*entity.Session, error) {
	rows, err := r.db.Pool.Query(ctx, listActiveSessionsQuery)
	if err != nil {
		return nil, toAppErr(err, "failed to list active sessions")
	}
	defer rows.Close()

	var sessions []*entity.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, toAppErr(err, "failed to scan session row")
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, toAppErr(err, "failed to iterate session rows")
	}
	return sessions, nil
}

var _ entity.SessionRepository = (*SessionRepository)(nil)
