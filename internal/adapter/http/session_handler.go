package http

import (
	"net/http"
	"time"

	"github.com/tunetrail/backend/internal/entity"
	"github.com/tunetrail/backend/internal/infrastructure/auth"
	"github.com/tunetrail/backend/internal/usecase"
)

// SessionHandler implements the listening-session lifecycle endpoints
// (§4.3/§6).
type SessionHandler struct {
	sessions *usecase.SessionManager
}

// NewSessionHandler builds a SessionHandler.
func NewSessionHandler(sessions *usecase.SessionManager) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

type startSessionRequest struct {
	DeviceID      string            `json:"device_id"`
	DeviceType    string            `json:"device_type"`
	ClientContext map[string]string `json:"client_context,omitempty"`
}

type sessionView struct {
	ID              string     `json:"id"`
	UserID          string     `json:"user_id"`
	DeviceID        string     `json:"device_id"`
	Status          string     `json:"status"`
	StartedAt       time.Time  `json:"started_at"`
	LastHeartbeatAt time.Time  `json:"last_heartbeat_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
}

func newSessionView(s *entity.Session) sessionView {
	return sessionView{
		ID:              s.ID,
		UserID:          s.UserID,
		DeviceID:        s.DeviceID,
		Status:          string(s.Status),
		StartedAt:       s.StartedAt,
		LastHeartbeatAt: s.LastHeartbeatAt,
		EndedAt:         s.EndedAt,
	}
}

// Start handles POST /sessions/start.
func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.GetPrincipal(r.Context())
	if !ok {
		RespondError(w, entity.ErrMalformedCredential)
		return
	}

	var req startSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		RespondError(w, err)
		return
	}

	session, err := h.sessions.Start(r.Context(), &entity.NewSession{
		UserID:        principal.UserID,
		DeviceID:      req.DeviceID,
		DeviceType:    req.DeviceType,
		ClientContext: req.ClientContext,
	})
	if err != nil {
		RespondError(w, err)
		return
	}
	Respond(w, http.StatusCreated, newSessionView(session))
}

type heartbeatRequest struct {
	PositionMs *int64  `json:"position_ms,omitempty"`
	TrackID    *string `json:"track_id,omitempty"`
}

// Heartbeat handles PUT /sessions/{id}/heartbeat.
func (h *SessionHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	var req heartbeatRequest
	if err := decodeJSON(r, &req); err != nil {
		RespondError(w, err)
		return
	}

	if err := h.sessions.Heartbeat(r.Context(), r.PathValue("id"), req.PositionMs, req.TrackID); err != nil {
		RespondError(w, err)
		return
	}
	Respond(w, http.StatusNoContent, nil)
}

// End handles POST /sessions/{id}/end.
func (h *SessionHandler) End(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.End(r.Context(), r.PathValue("id"))
	if err != nil {
		RespondError(w, err)
		return
	}
	Respond(w, http.StatusOK, newSessionView(session))
}
