package http

import (
	"net/http"

	"github.com/tunetrail/backend/internal/entity"
	"github.com/tunetrail/backend/internal/infrastructure/auth"
	"github.com/tunetrail/backend/internal/usecase"
)

// TelemetryHandler implements the append-only analytics endpoints: search
// queries, content views, and player control events (§4.8/§6). None of
// these responses carry data the caller doesn't already have, so every
// route returns 204 on success.
type TelemetryHandler struct {
	telemetry *usecase.TelemetryUseCase
}

// NewTelemetryHandler builds a TelemetryHandler.
func NewTelemetryHandler(telemetry *usecase.TelemetryUseCase) *TelemetryHandler {
	return &TelemetryHandler{telemetry: telemetry}
}

type searchQueryRequest struct {
	Query       string `json:"query"`
	ResultCount int    `json:"result_count"`
	DeviceType  string `json:"device_type"`
}

// SearchQuery handles POST /telemetry/search.
func (h *TelemetryHandler) SearchQuery(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.GetPrincipal(r.Context())
	if !ok {
		RespondError(w, entity.ErrMalformedCredential)
		return
	}

	var req searchQueryRequest
	if err := decodeJSON(r, &req); err != nil {
		RespondError(w, err)
		return
	}

	if _, err := h.telemetry.RecordSearchQuery(r.Context(), &entity.NewSearchQuery{
		UserID:      principal.UserID,
		Query:       req.Query,
		ResultCount: req.ResultCount,
		DeviceType:  req.DeviceType,
	}); err != nil {
		RespondError(w, err)
		return
	}
	Respond(w, http.StatusNoContent, nil)
}

type contentViewRequest struct {
	ContentType string `json:"content_type"`
	ContentID   string `json:"content_id"`
	DeviceType  string `json:"device_type"`
}

// ContentView handles POST /telemetry/content-views.
func (h *TelemetryHandler) ContentView(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.GetPrincipal(r.Context())
	if !ok {
		RespondError(w, entity.ErrMalformedCredential)
		return
	}

	var req contentViewRequest
	if err := decodeJSON(r, &req); err != nil {
		RespondError(w, err)
		return
	}

	if _, err := h.telemetry.RecordContentView(r.Context(), &entity.NewContentView{
		UserID:      principal.UserID,
		ContentType: req.ContentType,
		ContentID:   req.ContentID,
		DeviceType:  req.DeviceType,
	}); err != nil {
		RespondError(w, err)
		return
	}
	Respond(w, http.StatusNoContent, nil)
}

type playerEventRequest struct {
	SessionID  *string `json:"session_id,omitempty"`
	TrackID    *string `json:"track_id,omitempty"`
	EventType  string  `json:"event_type"`
	PositionMs *int64  `json:"position_ms,omitempty"`
}

// PlayerEvent handles POST /telemetry/player-events.
func (h *TelemetryHandler) PlayerEvent(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.GetPrincipal(r.Context())
	if !ok {
		RespondError(w, entity.ErrMalformedCredential)
		return
	}

	var req playerEventRequest
	if err := decodeJSON(r, &req); err != nil {
		RespondError(w, err)
		return
	}

	if _, err := h.telemetry.RecordPlayerEvent(r.Context(), &entity.NewPlayerEvent{
		UserID:     principal.UserID,
		SessionID:  req.SessionID,
		TrackID:    req.TrackID,
		EventType:  req.EventType,
		PositionMs: req.PositionMs,
	}); err != nil {
		RespondError(w, err)
		return
	}
	Respond(w, http.StatusNoContent, nil)
}
