package usecase

import (
	"context"
	"time"

	"github.com/pannpers/go-apperr/apperr"
	"github.com/pannpers/go-apperr/apperr/codes"
	"github.com/tunetrail/backend/internal/entity"
	"github.com/tunetrail/backend/internal/infrastructure/auth"
	"github.com/tunetrail/backend/pkg/cache"
	"github.com/tunetrail/backend/pkg/clock"
)

// IssuedApiKey carries the full secret alongside the persisted record. The
// secret is only ever available at this moment — Issue and Rotate are the
// only two call sites that construct one.
type IssuedApiKey struct {
	Key    *entity.ApiKey
	Secret string
}

// RotatedApiKey is the result of Rotate: the new key plus the old key's id,
// both of which authenticate until the old key's grace period elapses.
type RotatedApiKey struct {
	New   IssuedApiKey
	OldID string
}

// ApiKeyUseCase implements the §4.6 lifecycle: issue, rotate, revoke, and
// usage analytics. It is the only call site that ever sees a full secret
// after creation.
type ApiKeyUseCase struct {
	repo          entity.ApiKeyRepository
	cache         cache.Cache
	clock         clock.Clock
	rotationGrace time.Duration
}

// NewApiKeyUseCase builds an ApiKeyUseCase. rotationGrace is how long a
// rotated-out key keeps authenticating (spec default 24h).
func NewApiKeyUseCase(repo entity.ApiKeyRepository, c cache.Cache, clk clock.Clock, rotationGrace time.Duration) *ApiKeyUseCase {
	return &ApiKeyUseCase{repo: repo, cache: c, clock: clk, rotationGrace: rotationGrace}
}

// NewApiKeyParams carries the caller-supplied fields for Issue.
type NewApiKeyParams struct {
	OwnerUserID string
	OrgID       string
	Scopes      []string
	Environment entity.ApiKeyEnvironment
	Limits      entity.ApiKeyLimits
	ExpiresAt   *time.Time
	IPAllowlist []string
}

// Issue mints a new key: 32 bytes of crypto/rand entropy, url-safe encoded
// and prefixed tt_, hashed with argon2id before it ever touches the
// repository. The returned secret is the only copy that will ever exist;
// every subsequent read returns Key.Redacted() instead.
func (uc *ApiKeyUseCase) Issue(ctx context.Context, params *NewApiKeyParams) (*IssuedApiKey, error) {
	secret, prefix, err := auth.GenerateApiKeySecret()
	if err != nil {
		return nil, err
	}
	hash, err := auth.HashApiKeySecret(secret)
	if err != nil {
		return nil, err
	}

	key, err := uc.repo.Create(ctx, &entity.NewApiKey{
		OwnerUserID: params.OwnerUserID,
		OrgID:       params.OrgID,
		Hash:        hash,
		Prefix:      prefix,
		Scopes:      params.Scopes,
		Environment: params.Environment,
		Limits:      params.Limits,
		ExpiresAt:   params.ExpiresAt,
		IPAllowlist: params.IPAllowlist,
	})
	if err != nil {
		return nil, err
	}

	return &IssuedApiKey{Key: key, Secret: secret}, nil
}

// Rotate issues a replacement key carrying identical scopes and limits to
// oldID, then schedules oldID's revocation at now+grace rather than
// revoking it immediately, so in-flight clients have time to pick up the
// new secret. Both keys authenticate during the grace window.
//
// # Possible errors
//
//   - NotFound: If oldID does not reference an existing key.
func (uc *ApiKeyUseCase) Rotate(ctx context.Context, oldID string) (*RotatedApiKey, error) {
	old, err := uc.repo.Get(ctx, oldID)
	if err != nil {
		return nil, err
	}

	issued, err := uc.Issue(ctx, &NewApiKeyParams{
		OwnerUserID: old.OwnerUserID,
		OrgID:       old.OrgID,
		Scopes:      old.Scopes,
		Environment: old.Environment,
		Limits:      old.Limits,
		ExpiresAt:   old.ExpiresAt,
		IPAllowlist: old.IPAllowlist,
	})
	if err != nil {
		return nil, err
	}

	revokeAt := uc.clock.Now().Add(uc.rotationGrace)
	if err := uc.repo.ScheduleRevocation(ctx, oldID, revokeAt); err != nil {
		return nil, err
	}
	uc.invalidatePrefixCache(old.Prefix)

	return &RotatedApiKey{New: *issued, OldID: oldID}, nil
}

// Revoke immediately disables id, so it can never authenticate again, and
// invalidates any cached prefix lookup the credential verifier may hold.
//
// # Possible errors
//
//   - NotFound: If id does not reference an existing key.
func (uc *ApiKeyUseCase) Revoke(ctx context.Context, id string) error {
	key, err := uc.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := uc.repo.ScheduleRevocation(ctx, id, uc.clock.Now()); err != nil {
		return err
	}
	uc.invalidatePrefixCache(key.Prefix)
	return nil
}

// invalidatePrefixCache drops any cached prefix→key-id mapping so the next
// verification reads a fresh row set. The verifier itself does not
// currently cache prefix lookups (every call hits the repository), but the
// key is cleared defensively for deployments that add one in front of
// FindByPrefix.
func (uc *ApiKeyUseCase) invalidatePrefixCache(prefix string) {
	uc.cache.Delete("apikey:prefix:" + prefix)
}

// ListByOwner lists keys owned by a user in redacted form; callers never
// see a hash or secret here.
func (uc *ApiKeyUseCase) ListByOwner(ctx context.Context, ownerUserID string) ([]*entity.ApiKey, error) {
	return uc.repo.ListByOwner(ctx, ownerUserID)
}

// Get retrieves a single key in redacted form.
//
// # Possible errors
//
//   - NotFound: If id does not reference an existing key.
func (uc *ApiKeyUseCase) Get(ctx context.Context, id string) (*entity.ApiKey, error) {
	return uc.repo.Get(ctx, id)
}

// RecordUsage appends one entry to the API usage log, fire-and-forget from
// the caller's perspective: usage tracking failures are logged by the
// caller, never surfaced as a request error.
func (uc *ApiKeyUseCase) RecordUsage(ctx context.Context, keyID, operation string, statusCode int) error {
	return uc.repo.RecordUsage(ctx, &entity.ApiUsageEvent{
		KeyID:      keyID,
		Operation:  operation,
		StatusCode: statusCode,
		OccurredAt: uc.clock.Now(),
	})
}

// Usage aggregates the append-only usage log for id within [since, until).
// Callers are expected to have already confirmed the api_key_usage_analytics
// feature is enabled for the principal's plan via the Quota & Rate Gate.
//
// # Possible errors
//
//   - NotFound: If id does not reference an existing key.
func (uc *ApiKeyUseCase) Usage(ctx context.Context, id string, since, until time.Time) ([]*entity.ApiUsageEvent, error) {
	if _, err := uc.repo.Get(ctx, id); err != nil {
		return nil, err
	}
	if !until.After(since) {
		return nil, apperr.New(codes.InvalidArgument, "until must be after since")
	}
	return uc.repo.UsageByKey(ctx, id, since, until)
}
