package auth

import (
	"context"

	"github.com/tunetrail/backend/internal/entity"
)

// AuthMethod names which credential carrier resolved a Principal.
type AuthMethod string

const (
	AuthMethodSession AuthMethod = "session"
	AuthMethodApiKey  AuthMethod = "api_key"
)

// Principal is the verified identity backing a request, resolved by the
// CredentialVerifier from either a session bearer token or an API key.
type Principal struct {
	UserID             string
	OrgID              string
	Plan               entity.Plan
	Scopes             []string
	AuthMethod         AuthMethod
	KeyID              *string
	OrgFeatureOverrides map[string]bool
}

// HasScope reports whether p's scope set grants s, either directly or via
// the wildcard scope.
func (p *Principal) HasScope(s string) bool {
	for _, sc := range p.Scopes {
		if sc == s || sc == "*" {
			return true
		}
	}
	return false
}

// principalContextKey is a distinct type from contextKey so the Principal
// and Claims values never collide in the same context, even though both
// underlying key types are zero-size structs.
type principalContextKey struct{}

// principalKey is the context key for storing the resolved Principal.
var principalKey = principalContextKey{}

// WithPrincipal returns a new context carrying the resolved Principal.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// GetPrincipal retrieves the Principal resolved by the credential
// verification middleware.
func GetPrincipal(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey).(*Principal)
	return p, ok
}
