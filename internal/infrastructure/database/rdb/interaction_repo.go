package rdb

import (
	"context"
	"log/slog"

	"github.com/pannpers/go-apperr/apperr"
	"github.com/pannpers/go-apperr/apperr/codes"
	"github.com/tunetrail/backend/internal/entity"
)

// InteractionRepository implements entity.InteractionRepository.
type InteractionRepository struct {
	db *Database
}

const (
	interactionColumns = `i.id, i.user_id, i.track_id, i.session_id, i.type, i.created_at,
		i.play_duration_ms, i.position_ms, i.source, i.source_id, i.recommendation_id,
		i.device_type, i.extensions`

	getInteractionQuery = `SELECT ` + interactionColumns + ` FROM interactions i WHERE i.id = $1`

	insertInteractionQuery = `
		INSERT INTO interactions (
			user_id, track_id, session_id, type, play_duration_ms, position_ms,
			source, source_id, recommendation_id, device_type, extensions
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + interactionColumns

	listInteractionsBySessionQuery = `
		SELECT ` + interactionColumns + `
		FROM interactions i
		WHERE i.session_id = $1
		ORDER BY i.created_at ASC
	`

	listInteractionsByUserQuery = `
		SELECT ` + interactionColumns + `
		FROM interactions i
		WHERE i.user_id = $1
		ORDER BY i.created_at DESC
		LIMIT $2 OFFSET $3
	`
)

// NewInteractionRepository creates a new interaction repository instance.
func NewInteractionRepository(db *Database) *InteractionRepository {
	return &InteractionRepository{db: db}
}

func scanInteraction(scanner interface{ Scan(dest ...any) error }) (*entity.Interaction, error) {
	m := &Interaction{}
	if err := scanner.Scan(
		&m.ID, &m.UserID, &m.TrackID, &m.SessionID, &m.Type, &m.CreatedAt,
		&m.PlayDurationMs, &m.PositionMs, &m.Source, &m.SourceID, &m.RecommendationID,
		&m.DeviceType, &m.Extensions,
	); err != nil {
		return nil, err
	}
	return m.ToEntity(), nil
}

func (r *InteractionRepository) Create(ctx context.Context, params *entity.NewInteraction) (*entity.Interaction, error) {
	if params == nil {
		return nil, apperr.New(codes.InvalidArgument, "params cannot be nil")
	}
	if !params.Type.Valid() {
		return nil, apperr.Wrap(entity.ErrValidationFailed, codes.InvalidArgument, "unknown interaction type", slog.String("type", string(params.Type)))
	}

	m := FromNewInteraction(params)
	interaction, err := scanInteraction(r.db.Pool.QueryRow(ctx, insertInteractionQuery,
		m.UserID, m.TrackID, m.SessionID, m.Type, m.PlayDurationMs, m.PositionMs,
		m.Source, m.SourceID, m.RecommendationID, m.DeviceType, m.Extensions,
	))
	if err != nil {
		return nil, toAppErr(err, "failed to create interaction", slog.String("user_id", params.UserID))
	}
	return interaction, nil
}

func (r *InteractionRepository) Get(ctx context.Context, id string) (*entity.Interaction, error) {
	if id == "" {
		return nil, apperr.New(codes.InvalidArgument, "interaction ID cannot be empty")
	}
	interaction, err := scanInteraction(r.db.Pool.QueryRow(ctx, getInteractionQuery, id))
	if err != nil {
		return nil, toAppErr(err, "failed to get interaction", slog.String("interaction_id", id))
	}
	return interaction, nil
}

func (r *InteractionRepository) ListBySession(ctx context.Context, sessionID string) ([]*entity.Interaction, error) {
	rows, err := r.db.Pool.Query(ctx, listInteractionsBySessionQuery, sessionID)
	if err != nil {
		return nil, toAppErr(err, "failed to list interactions by session", slog.String("session_id", sessionID))
	}
	defer rows.Close()

	var out []*entity.Interaction
	for rows.Next() {
		interaction, err := scanInteraction(rows)
		if err != nil {
			return nil, toAppErr(err, "failed to scan interaction row")
		}
		out = append(out, interaction)
	}
	if err := rows.Err(); err != nil {
		return nil, toAppErr(err, "failed to iterate interaction rows")
	}
	return out, nil
}

func (r *InteractionRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*entity.Interaction, error) {
	rows, err := r.db.Pool.Query(ctx, listInteractionsByUserQuery, userID, limit, offset)
	if err != nil {
		return nil, toAppErr(err, "failed to list interactions by user", slog.String("user_id", userID))
	}
	defer rows.Close()

	var out []*entity.Interaction
	for rows.Next() {
		interaction, err := scanInteraction(rows)
		if err != nil {
			return nil, toAppErr(err, "failed to scan interaction row")
		}
		out = append(out, interaction)
	}
	if err := rows.Err(); err != nil {
		return nil, toAppErr(err, "failed to iterate interaction rows")
	}
	return out, nil
}

var _ entity.InteractionRepository = (*InteractionRepository)(nil)
