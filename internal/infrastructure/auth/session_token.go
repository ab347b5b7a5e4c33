package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// SessionTokenIssuer mints and validates TuneTrail's own session bearer
// tokens for /auth/register and /auth/login, as opposed to JWTValidator
// which only validates tokens minted by an external identity provider.
// Tokens are signed HS256 with a server-held secret; there is no JWKS
// rotation story because there is no external consumer of the signature.
type SessionTokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewSessionTokenIssuer builds a SessionTokenIssuer. secret must be at
// least 32 bytes; ttl is the session token lifetime (the Session Manager's
// idle timeout governs re-authentication in practice, so this is set
// generously long, e.g. 30 days).
func NewSessionTokenIssuer(secret []byte, issuer string, ttl time.Duration) (*SessionTokenIssuer, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("session token secret must be at least 32 bytes, got %d", len(secret))
	}
	return &SessionTokenIssuer{secret: secret, issuer: issuer, ttl: ttl}, nil
}

// Issue mints a session token for userID, carrying email as a private
// claim so verifySessionToken's downstream consumers can display it
// without a second lookup.
func (s *SessionTokenIssuer) Issue(userID, email string) (string, error) {
	now := time.Now()
	tok, err := jwt.NewBuilder().
		Issuer(s.issuer).
		Subject(userID).
		IssuedAt(now).
		Expiration(now.Add(s.ttl)).
		Claim("email", email).
		Build()
	if err != nil {
		return "", fmt.Errorf("build session token: %w", err)
	}

	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, s.secret))
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return string(signed), nil
}

// ValidateToken satisfies TokenValidator, so a SessionTokenIssuer can be
// handed to CredentialVerifier directly when no external identity
// provider is configured.
func (s *SessionTokenIssuer) ValidateToken(ctx context.Context, tokenString string) (*Claims, error) {
	tok, err := jwt.Parse([]byte(tokenString),
		jwt.WithKey(jwa.HS256, s.secret),
		jwt.WithValidate(true),
		jwt.WithIssuer(s.issuer),
	)
	if err != nil {
		return nil, fmt.Errorf("validate session token: %w", err)
	}

	sub := tok.Subject()
	if sub == "" {
		return nil, fmt.Errorf("session token missing subject claim")
	}

	email := ""
	if v, ok := tok.Get("email"); ok {
		if s, ok := v.(string); ok {
			email = s
		}
	}

	return &Claims{Sub: sub, Email: email}, nil
}

// compositeValidator tries a primary TokenValidator first (TuneTrail's own
// self-issued tokens) and falls back to a secondary one (an external
// identity provider's JWKS-validated tokens) when the first rejects the
// token outright, so both issuance paths authenticate against the same
// CredentialVerifier.
type compositeValidator struct {
	primary   TokenValidator
	secondary TokenValidator
}

// NewCompositeValidator returns a TokenValidator that accepts tokens from
// either primary or secondary. secondary may be nil, in which case it
// behaves exactly like primary alone (the self-hosted edition has no
// external identity provider configured).
func NewCompositeValidator(primary, secondary TokenValidator) TokenValidator {
	if secondary == nil {
		return primary
	}
	return &compositeValidator{primary: primary, secondary: secondary}
}

func (c *compositeValidator) ValidateToken(ctx context.Context, tokenString string) (*Claims, error) {
	claims, err := c.primary.ValidateToken(ctx, tokenString)
	if err == nil {
		return claims, nil
	}
	return c.secondary.ValidateToken(ctx, tokenString)
}
