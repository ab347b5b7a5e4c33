package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/tunetrail/backend/internal/entity"
	"github.com/tunetrail/backend/internal/infrastructure/auth"
	"github.com/tunetrail/backend/internal/usecase"
)

// verifier is the subset of auth.CredentialVerifier the middleware chain
// depends on, kept as an interface so handler tests can substitute a fake.
type verifier interface {
	Verify(ctx context.Context, r *http.Request) (*auth.Principal, error)
}

// RequireAuth resolves the caller's Principal and attaches it to the
// request context, rejecting the request with the §7 error envelope on
// any credential failure.
func RequireAuth(v verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := v.Verify(r.Context(), r)
			if err != nil {
				RespondError(w, err)
				return
			}
			ctx := auth.WithPrincipal(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireScope rejects the request unless the resolved Principal carries
// scope. Must run after RequireAuth.
func RequireScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := auth.GetPrincipal(r.Context())
			if !ok {
				RespondError(w, entity.ErrMalformedCredential)
				return
			}
			if !principal.HasScope(scope) {
				RespondError(w, entity.ErrScopeInsufficient)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireGate runs the Quota & Rate Gate against desc, writing the §4.2
// deny response and advisory rate-limit headers as appropriate. Must run
// after RequireAuth.
func RequireGate(gate *usecase.QuotaGate, desc *entity.ResourceDescriptor) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := auth.GetPrincipal(r.Context())
			if !ok {
				RespondError(w, entity.ErrMalformedCredential)
				return
			}

			decision, err := gate.Check(r.Context(), principal, desc)
			if err != nil {
				RespondError(w, err)
				return
			}
			writeRateLimitHeaders(w, decision)
			if !decision.Allowed {
				RespondDenied(w, decision)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeRateLimitHeaders(w http.ResponseWriter, decision *entity.GateDecision) {
	if decision.Limit == 0 && decision.ResetAt.IsZero() {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(decision.Limit, 10))
	w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(decision.Remaining, 10))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))
}

// Chain applies middleware in the order given, outermost first, matching
// the documented order: tracing → access log → recovery → auth → gate →
// scope → handler. Tracing and access-log wrapping are applied once at the
// server level (internal/infrastructure/server), not per-route, so Chain
// here only ever composes auth/gate/scope.
func Chain(h http.Handler, mw ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	return h
}
