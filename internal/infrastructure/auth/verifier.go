package auth

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/pannpers/go-logging/logging"
	"github.com/tunetrail/backend/internal/entity"
	"github.com/tunetrail/backend/pkg/clock"
	"github.com/tunetrail/backend/pkg/throttle"
)

// roleScopes is the implicit scope set granted to a session bearer token by
// the user's role. API keys carry their own explicit Scopes instead.
var roleScopes = map[entity.Role][]string{
	entity.RoleUser:  {"recommendations:read", "interactions:write", "sessions:write"},
	entity.RoleAdmin: {"recommendations:read", "interactions:write", "sessions:write", "apikeys:manage", "org:admin"},
	entity.RoleOwner: {"*"},
}

// CredentialVerifier resolves the Principal behind an inbound request,
// discriminating a session bearer token from an API key by shape and
// delegating to the matching verification path.
type CredentialVerifier struct {
	tokens  TokenValidator
	users   entity.UserRepository
	orgs    entity.OrganizationRepository
	apiKeys entity.ApiKeyRepository
	clock   clock.Clock
	logger  *logging.Logger

	// usageThrottle paces the best-effort last_used_at write so a burst of
	// requests on one key cannot flood the database with updates.
	usageThrottle *throttle.Throttler

	// selfHosted forces every Principal to the enterprise plan, matching the
	// open-core edition's promise of unlimited quotas with no billing hook.
	selfHosted bool
}

// NewCredentialVerifier builds a CredentialVerifier. usageThrottle may be
// nil, in which case last_used_at is updated synchronously.
func NewCredentialVerifier(
	tokens TokenValidator,
	users entity.UserRepository,
	orgs entity.OrganizationRepository,
	apiKeys entity.ApiKeyRepository,
	clk clock.Clock,
	logger *logging.Logger,
	usageThrottle *throttle.Throttler,
	selfHosted bool,
) *CredentialVerifier {
	return &CredentialVerifier{
		tokens:        tokens,
		users:         users,
		orgs:          orgs,
		apiKeys:       apiKeys,
		clock:         clk,
		logger:        logger,
		usageThrottle: usageThrottle,
		selfHosted:    selfHosted,
	}
}

// Verify extracts the bearer credential from r, resolves it against the
// session or API key path, and returns the backing Principal.
//
// # Possible errors
//
//   - entity.ErrMalformedCredential: If the Authorization header is missing or not a bearer token.
//   - entity.ErrUnknownCredential: If the credential does not match any known session or key.
//   - entity.ErrRevokedCredential: If the credential has been revoked.
//   - entity.ErrExpiredCredential: If the credential has expired.
func (v *CredentialVerifier) Verify(ctx context.Context, r *http.Request) (*Principal, error) {
	token := bearerToken(r)
	if token == "" {
		return nil, entity.ErrMalformedCredential
	}

	if LooksLikeApiKey(token) {
		return v.verifyApiKey(ctx, token, clientIP(r), r.Method+" "+r.URL.Path)
	}
	return v.verifySessionToken(ctx, token)
}

// clientIP extracts the caller's address for IP-allowlist enforcement,
// preferring the first hop of X-Forwarded-For (set by the load balancer)
// and falling back to the raw connection address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i >= 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(h, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(h, prefix))
}

func (v *CredentialVerifier) verifySessionToken(ctx context.Context, token string) (*Principal, error) {
	claims, err := v.tokens.ValidateToken(ctx, token)
	if err != nil {
		return nil, errors.Join(entity.ErrUnknownCredential, err)
	}

	user, err := v.users.Get(ctx, claims.Sub)
	if err != nil {
		return nil, errors.Join(entity.ErrUnknownCredential, err)
	}
	if !user.IsActive {
		return nil, entity.ErrRevokedCredential
	}

	_, plan, overrides, err := v.resolveOrg(ctx, user.OrgID)
	if err != nil {
		return nil, err
	}

	return &Principal{
		UserID:              user.ID,
		OrgID:               user.OrgID,
		Plan:                plan,
		Scopes:              roleScopes[user.Role],
		AuthMethod:          AuthMethodSession,
		OrgFeatureOverrides: overrides,
	}, nil
}

func (v *CredentialVerifier) verifyApiKey(ctx context.Context, token, ip, operation string) (*Principal, error) {
	prefix := token
	if len(prefix) > prefixChars {
		prefix = prefix[:prefixChars]
	}

	candidates, err := v.apiKeys.FindByPrefix(ctx, prefix)
	if err != nil {
		return nil, errors.Join(entity.ErrUnknownCredential, err)
	}

	var matched *entity.ApiKey
	for _, k := range candidates {
		ok, err := VerifyApiKeySecret(k.Hash, token)
		if err != nil {
			v.logger.Error(ctx, "malformed api key hash", err, slog.String("apiKeyID", k.ID))
			continue
		}
		if ok {
			matched = k
			break
		}
	}
	if matched == nil {
		return nil, entity.ErrUnknownCredential
	}

	now := v.clock.Now()
	if matched.RevokedAt != nil && !matched.RevokedAt.After(now) {
		return nil, entity.ErrRevokedCredential
	}
	if matched.ExpiresAt != nil && !matched.ExpiresAt.After(now) {
		return nil, entity.ErrExpiredCredential
	}
	if !ipAllowed(matched.IPAllowlist, ip) {
		return nil, entity.ErrIPNotAllowed
	}

	_, plan, overrides, err := v.resolveOrg(ctx, matched.OrgID)
	if err != nil {
		return nil, err
	}

	v.touchLastUsed(matched.ID, now)
	v.recordUsage(matched.ID, operation, now)

	keyID := matched.ID
	return &Principal{
		UserID:              matched.OwnerUserID,
		OrgID:               matched.OrgID,
		Plan:                plan,
		Scopes:              matched.Scopes,
		AuthMethod:          AuthMethodApiKey,
		KeyID:               &keyID,
		OrgFeatureOverrides: overrides,
	}, nil
}

// ipAllowed reports whether ip is permitted by allowlist. An empty
// allowlist means no restriction is configured.
func ipAllowed(allowlist []string, ip string) bool {
	if len(allowlist) == 0 {
		return true
	}
	for _, allowed := range allowlist {
		if allowed == ip {
			return true
		}
	}
	return false
}

func (v *CredentialVerifier) resolveOrg(ctx context.Context, orgID string) (*entity.Organization, entity.Plan, map[string]bool, error) {
	org, err := v.orgs.Get(ctx, orgID)
	if err != nil {
		return nil, "", nil, errors.Join(entity.ErrUnknownCredential, err)
	}
	if v.selfHosted {
		return org, entity.PlanEnterprise, org.FeatureOverrides, nil
	}
	return org, org.Plan, org.FeatureOverrides, nil
}

// touchLastUsed schedules a best-effort last_used_at update. Failures are
// logged, never surfaced: usage tracking must never fail a request.
func (v *CredentialVerifier) touchLastUsed(keyID string, at time.Time) {
	update := func() error {
		return v.apiKeys.UpdateLastUsedAt(context.Background(), keyID, at)
	}

	if v.usageThrottle == nil {
		if err := update(); err != nil {
			v.logger.Error(context.Background(), "failed to update api key last_used_at", err, slog.String("apiKeyID", keyID))
		}
		return
	}

	go func() {
		if err := v.usageThrottle.Do(context.Background(), update); err != nil {
			v.logger.Error(context.Background(), "failed to update api key last_used_at", err, slog.String("apiKeyID", keyID))
		}
	}()
}

// recordUsage appends a best-effort entry to the api_usage_events log
// backing GET /api-keys/{id}/usage. It fires at credential-verification
// time rather than after the handler returns, so StatusCode records that
// the key was accepted, not the eventual response status; a per-status
// breakdown would need a response-capturing middleware layer instead.
func (v *CredentialVerifier) recordUsage(keyID, operation string, at time.Time) {
	go func() {
		event := &entity.ApiUsageEvent{
			KeyID:      keyID,
			Operation:  operation,
			StatusCode: http.StatusOK,
			OccurredAt: at,
		}
		if err := v.apiKeys.RecordUsage(context.Background(), event); err != nil {
			v.logger.Error(context.Background(), "failed to record api key usage", err, slog.String("apiKeyID", keyID))
		}
	}()
}
