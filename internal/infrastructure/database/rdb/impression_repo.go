package rdb

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pannpers/go-apperr/apperr"
	"github.com/pannpers/go-apperr/apperr/codes"
	"github.com/tunetrail/backend/internal/entity"
)

// ImpressionRepository implements entity.ImpressionRepository.
type ImpressionRepository struct {
	db *Database
}

const (
	impressionColumns = `imp.id, imp.user_id, imp.track_id, imp.recommendation_id, imp.model_type,
		imp.model_version, imp.score, imp.position, imp.context, imp.shown_at,
		imp.clicked, imp.played, imp.liked`

	getImpressionQuery = `SELECT ` + impressionColumns + ` FROM impressions imp WHERE imp.id = $1`

	getImpressionByRecommendationQuery = `
		SELECT ` + impressionColumns + `
		FROM impressions imp
		WHERE imp.recommendation_id = $1
	`

	insertImpressionQuery = `
		INSERT INTO impressions (
			user_id, track_id, recommendation_id, model_type, model_version, score, position, context, shown_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + impressionColumns
)

// setFlagQuery is built per flag column since the column name cannot be a
// bind parameter; flagColumn validates the input before formatting.
const setFlagQueryTemplate = `
	UPDATE impressions
	SET %s = true
	WHERE id = $1 AND %s = false
`

// NewImpressionRepository creates a new impression repository instance.
func NewImpressionRepository(db *Database) *ImpressionRepository {
	return &ImpressionRepository{db: db}
}

func scanImpression(scanner interface{ Scan(dest ...any) error }) (*entity.Impression, error) {
	m := &Impression{}
	if err := scanner.Scan(
		&m.ID, &m.UserID, &m.TrackID, &m.RecommendationID, &m.ModelType,
		&m.ModelVersion, &m.Score, &m.Position, &m.Context, &m.ShownAt,
		&m.Clicked, &m.Played, &m.Liked,
	); err != nil {
		return nil, err
	}
	return m.ToEntity(), nil
}

func (r *ImpressionRepository) CreateBatch(ctx context.Context, params []*entity.NewImpression) ([]*entity.Impression, error) {
	if len(params) == 0 {
		return nil, nil
	}

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return nil, toAppErr(err, "failed to begin impression batch")
	}
	defer tx.Rollback(ctx)

	out := make([]*entity.Impression, 0, len(params))
	for _, p := range params {
		m := FromNewImpression(p)
		imp, err := scanImpression(tx.QueryRow(ctx, insertImpressionQuery,
			m.UserID, m.TrackID, m.RecommendationID, m.ModelType, m.ModelVersion, m.Score, m.Position, m.Context, m.ShownAt,
		))
		if err != nil {
			return nil, toAppErr(err, "failed to create impression", slog.String("recommendation_id", p.RecommendationID))
		}
		out = append(out, imp)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, toAppErr(err, "failed to commit impression batch")
	}
	return out, nil
}

func (r *ImpressionRepository) Get(ctx context.Context, id string) (*entity.Impression, error) {
	if id == "" {
		return nil, apperr.New(codes.InvalidArgument, "impression ID cannot be empty")
	}
	imp, err := scanImpression(r.db.Pool.QueryRow(ctx, getImpressionQuery, id))
	if err != nil {
		return nil, toAppErr(err, "failed to get impression", slog.String("impression_id", id))
	}
	return imp, nil
}

func (r *ImpressionRepository) GetByRecommendation(ctx context.Context, recommendationID string) (*entity.Impression, error) {
	imp, err := scanImpression(r.db.Pool.QueryRow(ctx, getImpressionByRecommendationQuery, recommendationID))
	if err != nil {
		return nil, toAppErr(err, "failed to get impression by recommendation", slog.String("recommendation_id", recommendationID))
	}
	return imp, nil
}

func (r *ImpressionRepository) SetFlag(ctx context.Context, id string, flag entity.ImpressionFeedback) (bool, error) {
	column, err := flagColumn(flag)
	if err != nil {
		return false, err
	}

	result, err := r.db.Pool.Exec(ctx, fmt.Sprintf(setFlagQueryTemplate, column, column), id)
	if err != nil {
		return false, toAppErr(err, "failed to set impression flag", slog.String("impression_id", id), slog.String("flag", string(flag)))
	}
	if result.RowsAffected() > 0 {
		return true, nil
	}

	// Either already set, or the row does not exist; distinguish the two.
	if _, err := r.Get(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

func flagColumn(flag entity.ImpressionFeedback) (string, error) {
	switch flag {
	case entity.FeedbackClicked:
		return "clicked", nil
	case entity.FeedbackPlayed:
		return "played", nil
	case entity.FeedbackLiked:
		return "liked", nil
	default:
		return "", apperr.New(codes.InvalidArgument, "unknown impression feedback flag", slog.String("flag", string(flag)))
	}
}

var _ entity.ImpressionRepository = (*ImpressionRepository)(nil)
