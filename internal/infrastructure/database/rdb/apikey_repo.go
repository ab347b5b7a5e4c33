package rdb

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pannpers/go-apperr/apperr"
	"github.com/pannpers/go-apperr/apperr/codes"
	"github.com/tunetrail/backend/internal/entity"
)

// ApiKeyRepository implements entity.ApiKeyRepository.
type ApiKeyRepository struct {
	db *Database
}

const (
	apiKeyColumns = `ak.id, ak.owner_user_id, ak.org_id, ak.hash, ak.prefix, ak.scopes, ak.environment,
		ak.limit_per_min, ak.limit_per_hr, ak.limit_per_day, ak.expires_at, ak.revoked_at, ak.last_used_at,
		ak.ip_allowlist, ak.created_at`

	getApiKeyQuery = `SELECT ` + apiKeyColumns + ` FROM api_keys ak WHERE ak.id = $1`

	findApiKeyByPrefixQuery = `SELECT ` + apiKeyColumns + ` FROM api_keys ak WHERE ak.prefix = $1`

	listApiKeysByOwnerQuery = `
		SELECT ` + apiKeyColumns + `
		FROM api_keys ak
		WHERE ak.owner_user_id = $1
		ORDER BY ak.created_at DESC
	`

	insertApiKeyQuery = `
		INSERT INTO api_keys (owner_user_id, org_id, hash, prefix, scopes, environment, limit_per_min, limit_per_hr, limit_per_day, expires_at, ip_allowlist)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + apiKeyColumns

	updateLastUsedAtQuery = `UPDATE api_keys SET last_used_at = $2 WHERE id = $1`

	scheduleRevocationQuery = `UPDATE api_keys SET revoked_at = $2 WHERE id = $1`

	insertApiUsageEventQuery = `
		INSERT INTO api_usage_events (key_id, operation, status_code, occurred_at)
		VALUES ($1, $2, $3, $4)
	`

	usageByKeyQuery = `
		SELECT id, key_id, operation, status_code, occurred_at
		FROM api_usage_events
		WHERE key_id = $1 AND occurred_at >= $2 AND occurred_at < $3
		ORDER BY occurred_at
	`
)

// NewApiKeyRepository creates a new API key repository instance.
func NewApiKeyRepository(db *Database) *ApiKeyRepository {
	return &ApiKeyRepository{db: db}
}

func scanApiKey(scanner interface{ Scan(dest ...any) error }) (*entity.ApiKey, error) {
	m := &ApiKey{}
	if err := scanner.Scan(
		&m.ID, &m.OwnerUserID, &m.OrgID, &m.Hash, &m.Prefix, &m.Scopes, &m.Environment,
		&m.LimitPerMin, &m.LimitPerHr, &m.LimitPerDay, &m.ExpiresAt, &m.RevokedAt, &m.LastUsedAt,
		&m.IPAllowlist, &m.CreatedAt,
	); err != nil {
		return nil, err
	}
	return m.ToEntity(), nil
}

func (r *ApiKeyRepository) Create(ctx context.Context, params *entity.NewApiKey) (*entity.ApiKey, error) {
	if params == nil {
		return nil, apperr.New(codes.InvalidArgument, "params cannot be nil")
	}

	m := FromNewApiKey(params)
	key, err := scanApiKey(r.db.Pool.QueryRow(ctx, insertApiKeyQuery,
		m.OwnerUserID, m.OrgID, m.Hash, m.Prefix, m.Scopes, m.Environment,
		m.LimitPerMin, m.LimitPerHr, m.LimitPerDay, m.ExpiresAt, m.IPAllowlist,
	))
	if err != nil {
		return nil, toAppErr(err, "failed to create api key", slog.String("prefix", params.Prefix))
	}

	r.db.logger.Info(ctx, "api key created", slog.String("entityType", "api_key"), slog.String("apiKeyID", key.ID))
	return key, nil
}

func (r *ApiKeyRepository) Get(ctx context.Context, id string) (*entity.ApiKey, error) {
	if id == "" {
		return nil, apperr.New(codes.InvalidArgument, "api key ID cannot be empty")
	}
	key, err := scanApiKey(r.db.Pool.QueryRow(ctx, getApiKeyQuery, id))
	if err != nil {
		return nil, toAppErr(err, "failed to get api key", slog.String("api_key_id", id))
	}
	return key, nil
}

func (r *ApiKeyRepository) FindByPrefix(ctx context.Context, prefix string) ([]*entity.ApiKey, error) {
	if prefix == "" {
		return nil, apperr.New(codes.InvalidArgument, "prefix cannot be empty")
	}

	rows, err := r.db.Pool.Query(ctx, findApiKeyByPrefixQuery, prefix)
	if err != nil {
		return nil, toAppErr(err, "failed to find api keys by prefix", slog.String("prefix", prefix))
	}
	defer rows.Close()

	var keys []*entity.ApiKey
	for rows.Next() {
		key, err := scanApiKey(rows)
		if err != nil {
			return nil, toAppErr(err, "failed to scan api key row")
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, toAppErr(err, "failed to iterate api key rows")
	}
	return keys, nil
}

func (r *ApiKeyRepository) ListByOwner(ctx context.Context, ownerUserID string) ([]*entity.ApiKey, error) {
	rows, err := r.db.Pool.Query(ctx, listApiKeysByOwnerQuery, ownerUserID)
	if err != nil {
		return nil, toAppErr(err, "failed to list api keys", slog.String("owner_user_id", ownerUserID))
	}
	defer rows.Close()

	var keys []*entity.ApiKey
	for rows.Next() {
		key, err := scanApiKey(rows)
		if err != nil {
			return nil, toAppErr(err, "failed to scan api key row")
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, toAppErr(err, "failed to iterate api key rows")
	}
	return keys, nil
}

func (r *ApiKeyRepository) UpdateLastUsedAt(ctx context.Context, id string, at time.Time) error {
	result, err := r.db.Pool.Exec(ctx, updateLastUsedAtQuery, id, at)
	if err != nil {
		return toAppErr(err, "failed to update api key last_used_at", slog.String("api_key_id", id))
	}
	if result.RowsAffected() == 0 {
		return apperr.Wrap(apperr.ErrNotFound, codes.NotFound, fmt.Sprintf("api key with ID %s not found", id))
	}
	return nil
}

func (r *ApiKeyRepository) ScheduleRevocation(ctx context.Context, id string, revokedAt time.Time) error {
	result, err := r.db.Pool.Exec(ctx, scheduleRevocationQuery, id, revokedAt)
	if err != nil {
		return toAppErr(err, "failed to schedule api key revocation", slog.String("api_key_id", id))
	}
	if result.RowsAffected() == 0 {
		return apperr.Wrap(apperr.ErrNotFound, codes.NotFound, fmt.Sprintf("api key with ID %s not found", id))
	}

	r.db.logger.Info(ctx, "api key revocation scheduled", slog.String("entityType", "api_key"), slog.String("apiKeyID", id), slog.Time("revokedAt", revokedAt))
	return nil
}

func (r *ApiKeyRepository) RecordUsage(ctx context.Context, event *entity.ApiUsageEvent) error {
	if event == nil {
		return apperr.New(codes.InvalidArgument, "event cannot be nil")
	}
	_, err := r.db.Pool.Exec(ctx, insertApiUsageEventQuery, event.KeyID, event.Operation, event.StatusCode, event.OccurredAt)
	if err != nil {
		return toAppErr(err, "failed to record api usage event", slog.String("api_key_id", event.KeyID))
	}
	return nil
}

func (r *ApiKeyRepository) UsageByKey(ctx context.Context, keyID string, since, until time.Time) ([]*entity.ApiUsageEvent, error) {
	rows, err := r.db.Pool.Query(ctx, usageByKeyQuery, keyID, since, until)
	if err != nil {
		return nil, toAppErr(err, "failed to query api usage events", slog.String("api_key_id", keyID))
	}
	defer rows.Close()

	var events []*entity.ApiUsageEvent
	for rows.Next() {
		m := &ApiUsageEvent{}
		if err := rows.Scan(&m.ID, &m.KeyID, &m.Operation, &m.StatusCode, &m.OccurredAt); err != nil {
			return nil, toAppErr(err, "failed to scan api usage event row")
		}
		events = append(events, m.ToEntity())
	}
	if err := rows.Err(); err != nil {
		return nil, toAppErr(err, "failed to iterate api usage event rows")
	}
	return events, nil
}

var _ entity.ApiKeyRepository = (*ApiKeyRepository)(nil)
