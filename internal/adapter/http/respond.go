// Package http is the API Surface (spec.md §6/D.10): net/http handlers,
// JSON request/response shaping, and the §7 error envelope. It wires the
// use cases declared in internal/usecase to HTTP routes; it holds no
// business logic of its own.
package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/pannpers/go-apperr/apperr"
	"github.com/pannpers/go-apperr/apperr/codes"
	"github.com/tunetrail/backend/internal/entity"
)

// ErrorEnvelope is the §7 client-facing error shape. Clients are expected
// to branch on Kind, never on Message.
type ErrorEnvelope struct {
	Kind       string `json:"error"`
	Message    string `json:"message"`
	Details    any    `json:"details,omitempty"`
	RetryAfter *int64 `json:"retry_after,omitempty"`
	UpgradeURL string `json:"upgrade_url,omitempty"`
}

// Respond writes v as the JSON body with status.
func Respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// coded is satisfied by apperr's error type; matched structurally via
// errors.As so this package never needs to import the concrete type.
type coded interface {
	Code() codes.Code
}

// RespondError maps err to the §7 error envelope and HTTP status and
// writes it. Known serving-plane sentinels (internal/entity/errors.go)
// are matched first via errors.Is since they carry the precise kind
// string; everything else falls back to the coarser apperr.Code alphabet,
// and anything still unrecognized becomes an opaque INTERNAL.
func RespondError(w http.ResponseWriter, err error) {
	kind, status := classify(err)
	Respond(w, status, ErrorEnvelope{Kind: kind, Message: err.Error()})
}

// RespondDenied writes the §4.2 gate-deny shape for a rejected request.
func RespondDenied(w http.ResponseWriter, decision *entity.GateDecision) {
	switch decision.Reason {
	case entity.DenyPlanUpgradeRequired:
		Respond(w, http.StatusPaymentRequired, ErrorEnvelope{
			Kind:       string(decision.Reason),
			Message:    "the current plan does not include this feature",
			UpgradeURL: decision.UpgradeURL,
			Details: map[string]any{
				"current_plan":   decision.CurrentPlan,
				"required_plans": decision.RequiredPlans,
			},
		})
	case entity.DenyFeatureNotInPlan:
		Respond(w, http.StatusPaymentRequired, ErrorEnvelope{
			Kind:       string(decision.Reason),
			Message:    "the current plan does not include this feature",
			UpgradeURL: decision.UpgradeURL,
			Details: map[string]any{
				"current_plan":        decision.CurrentPlan,
				"feature_description": decision.FeatureDescription,
			},
		})
	case entity.DenyQuotaExceeded:
		retryAfter := int64(decision.RetryAfter / time.Second)
		Respond(w, http.StatusTooManyRequests, ErrorEnvelope{
			Kind:       string(decision.Reason),
			Message:    "quota exceeded for the current window",
			RetryAfter: &retryAfter,
		})
	default:
		Respond(w, http.StatusInternalServerError, ErrorEnvelope{Kind: "INTERNAL", Message: "gate denied the request for an unrecognized reason"})
	}
}

func classify(err error) (kind string, status int) {
	switch {
	case errors.Is(err, entity.ErrValidationFailed):
		return "VALIDATION_FAILED", http.StatusBadRequest
	case errors.Is(err, entity.ErrMalformedCredential):
		return "MALFORMED_CREDENTIAL", http.StatusUnauthorized
	case errors.Is(err, entity.ErrUnknownCredential):
		return "UNKNOWN_CREDENTIAL", http.StatusUnauthorized
	case errors.Is(err, entity.ErrRevokedCredential):
		return "REVOKED_CREDENTIAL", http.StatusUnauthorized
	case errors.Is(err, entity.ErrExpiredCredential):
		return "EXPIRED_CREDENTIAL", http.StatusUnauthorized
	case errors.Is(err, entity.ErrScopeInsufficient):
		return "SCOPE_INSUFFICIENT", http.StatusForbidden
	case errors.Is(err, entity.ErrIPNotAllowed):
		return "IP_NOT_ALLOWED", http.StatusForbidden
	case errors.Is(err, entity.ErrStaleEvent):
		return "STALE_EVENT", http.StatusConflict
	case errors.Is(err, entity.ErrUpstreamUnavailable):
		return "UPSTREAM_UNAVAILABLE", http.StatusServiceUnavailable
	case errors.Is(err, apperr.ErrNotFound):
		return "NOT_FOUND", http.StatusNotFound
	}

	var ce coded
	if errors.As(err, &ce) {
		switch ce.Code() {
		case codes.InvalidArgument:
			return "VALIDATION_FAILED", http.StatusBadRequest
		case codes.Unauthenticated:
			return "UNKNOWN_CREDENTIAL", http.StatusUnauthorized
		case codes.PermissionDenied:
			return "SCOPE_INSUFFICIENT", http.StatusForbidden
		case codes.NotFound:
			return "NOT_FOUND", http.StatusNotFound
		case codes.AlreadyExists:
			return "VALIDATION_FAILED", http.StatusConflict
		case codes.Aborted:
			return "STALE_EVENT", http.StatusConflict
		case codes.FailedPrecondition:
			return "VALIDATION_FAILED", http.StatusConflict
		case codes.ResourceExhausted:
			return "QUOTA_EXCEEDED", http.StatusTooManyRequests
		case codes.DeadlineExceeded, codes.Unavailable:
			return "UPSTREAM_UNAVAILABLE", http.StatusServiceUnavailable
		case codes.Canceled:
			return "INTERNAL", http.StatusInternalServerError
		}
	}

	return "INTERNAL", http.StatusInternalServerError
}
