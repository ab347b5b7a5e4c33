package http

import (
	"net/http"
	"time"

	"github.com/tunetrail/backend/internal/entity"
	"github.com/tunetrail/backend/internal/infrastructure/auth"
	"github.com/tunetrail/backend/internal/usecase"
)

// ApiKeyHandler implements the §4.6 API-key lifecycle endpoints.
type ApiKeyHandler struct {
	keys *usecase.ApiKeyUseCase
}

// NewApiKeyHandler builds an ApiKeyHandler.
func NewApiKeyHandler(keys *usecase.ApiKeyUseCase) *ApiKeyHandler {
	return &ApiKeyHandler{keys: keys}
}

type apiKeyLimitsView struct {
	PerMinute *int `json:"per_minute,omitempty"`
	PerHour   *int `json:"per_hour,omitempty"`
	PerDay    *int `json:"per_day,omitempty"`
}

type apiKeyView struct {
	ID          string           `json:"id"`
	Redacted    string           `json:"key"`
	Scopes      []string         `json:"scopes"`
	Environment string           `json:"environment"`
	Limits      apiKeyLimitsView `json:"limits"`
	ExpiresAt   *time.Time       `json:"expires_at,omitempty"`
	RevokedAt   *time.Time       `json:"revoked_at,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}

func newApiKeyView(k *entity.ApiKey) apiKeyView {
	return apiKeyView{
		ID:          k.ID,
		Redacted:    k.Redacted(),
		Scopes:      k.Scopes,
		Environment: string(k.Environment),
		Limits: apiKeyLimitsView{
			PerMinute: k.Limits.PerMinute,
			PerHour:   k.Limits.PerHour,
			PerDay:    k.Limits.PerDay,
		},
		ExpiresAt: k.ExpiresAt,
		RevokedAt: k.RevokedAt,
		CreatedAt: k.CreatedAt,
	}
}

type issueApiKeyRequest struct {
	Scopes      []string   `json:"scopes"`
	Environment string     `json:"environment"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	IPAllowlist []string   `json:"ip_allowlist,omitempty"`
}

type issuedApiKeyResponse struct {
	Key    apiKeyView `json:"key"`
	Secret string     `json:"secret"`
}

// Issue handles POST /api-keys.
func (h *ApiKeyHandler) Issue(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.GetPrincipal(r.Context())
	if !ok {
		RespondError(w, entity.ErrMalformedCredential)
		return
	}

	var req issueApiKeyRequest
	if err := decodeJSON(r, &req); err != nil {
		RespondError(w, err)
		return
	}

	issued, err := h.keys.Issue(r.Context(), &usecase.NewApiKeyParams{
		OwnerUserID: principal.UserID,
		OrgID:       principal.OrgID,
		Scopes:      req.Scopes,
		Environment: entity.ApiKeyEnvironment(req.Environment),
		ExpiresAt:   req.ExpiresAt,
		IPAllowlist: req.IPAllowlist,
	})
	if err != nil {
		RespondError(w, err)
		return
	}

	Respond(w, http.StatusCreated, issuedApiKeyResponse{Key: newApiKeyView(issued.Key), Secret: issued.Secret})
}

// List handles GET /api-keys.
func (h *ApiKeyHandler) List(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.GetPrincipal(r.Context())
	if !ok {
		RespondError(w, entity.ErrMalformedCredential)
		return
	}

	keys, err := h.keys.ListByOwner(r.Context(), principal.UserID)
	if err != nil {
		RespondError(w, err)
		return
	}

	views := make([]apiKeyView, 0, len(keys))
	for _, k := range keys {
		views = append(views, newApiKeyView(k))
	}
	Respond(w, http.StatusOK, views)
}

// Rotate handles POST /api-keys/{id}/rotate.
func (h *ApiKeyHandler) Rotate(w http.ResponseWriter, r *http.Request) {
	rotated, err := h.keys.Rotate(r.Context(), r.PathValue("id"))
	if err != nil {
		RespondError(w, err)
		return
	}
	Respond(w, http.StatusOK, issuedApiKeyResponse{Key: newApiKeyView(rotated.New.Key), Secret: rotated.New.Secret})
}

// Revoke handles POST /api-keys/{id}/revoke.
func (h *ApiKeyHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	if err := h.keys.Revoke(r.Context(), r.PathValue("id")); err != nil {
		RespondError(w, err)
		return
	}
	Respond(w, http.StatusNoContent, nil)
}

type usageEventView struct {
	Operation  string    `json:"operation"`
	StatusCode int       `json:"status_code"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Usage handles GET /api-keys/{id}/usage.
func (h *ApiKeyHandler) Usage(w http.ResponseWriter, r *http.Request) {
	since, err := parseTimeQuery(r, "since", time.Now().Add(-30*24*time.Hour))
	if err != nil {
		RespondError(w, entity.ErrValidationFailed)
		return
	}
	until, err := parseTimeQuery(r, "until", time.Now())
	if err != nil {
		RespondError(w, entity.ErrValidationFailed)
		return
	}

	events, err := h.keys.Usage(r.Context(), r.PathValue("id"), since, until)
	if err != nil {
		RespondError(w, err)
		return
	}

	views := make([]usageEventView, 0, len(events))
	for _, e := range events {
		views = append(views, usageEventView{Operation: e.Operation, StatusCode: e.StatusCode, OccurredAt: e.OccurredAt})
	}
	Respond(w, http.StatusOK, views)
}

func parseTimeQuery(r *http.Request, name string, def time.Time) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	return time.Parse(time.RFC3339, raw)
}
