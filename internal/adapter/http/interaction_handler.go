package http

import (
	"net/http"
	"strconv"

	"github.com/tunetrail/backend/internal/entity"
	"github.com/tunetrail/backend/internal/infrastructure/auth"
	"github.com/tunetrail/backend/internal/usecase"
)

// InteractionHandler implements POST /interactions and POST
// /interactions/batch (§4.4/§6).
type InteractionHandler struct {
	ingestor *usecase.InteractionIngestor
}

// NewInteractionHandler builds an InteractionHandler.
func NewInteractionHandler(ingestor *usecase.InteractionIngestor) *InteractionHandler {
	return &InteractionHandler{ingestor: ingestor}
}

type interactionRequest struct {
	TrackID          string            `json:"track_id"`
	SessionID        *string           `json:"session_id,omitempty"`
	ClientSeq        int64             `json:"client_seq"`
	Type             string            `json:"type"`
	PlayDurationMs   *int64            `json:"play_duration_ms,omitempty"`
	PositionMs       *int64            `json:"position_ms,omitempty"`
	Source           string            `json:"source"`
	SourceID         *string           `json:"source_id,omitempty"`
	RecommendationID *string           `json:"recommendation_id,omitempty"`
	DeviceType       string            `json:"device_type"`
	Extensions       map[string]string `json:"extensions,omitempty"`
}

func (req *interactionRequest) toParams(userID string) *entity.NewInteraction {
	return &entity.NewInteraction{
		UserID:           userID,
		TrackID:          req.TrackID,
		SessionID:        req.SessionID,
		ClientSeq:        req.ClientSeq,
		Type:             entity.InteractionType(req.Type),
		PlayDurationMs:   req.PlayDurationMs,
		PositionMs:       req.PositionMs,
		Source:           req.Source,
		SourceID:         req.SourceID,
		RecommendationID: req.RecommendationID,
		DeviceType:       req.DeviceType,
		Extensions:       req.Extensions,
	}
}

type interactionResponse struct {
	InteractionID string `json:"interaction_id"`
	Type          string `json:"type"`
	Downgraded    bool   `json:"downgraded"`
}

// Create handles POST /interactions.
func (h *InteractionHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.GetPrincipal(r.Context())
	if !ok {
		RespondError(w, entity.ErrMalformedCredential)
		return
	}

	var req interactionRequest
	if err := decodeJSON(r, &req); err != nil {
		RespondError(w, err)
		return
	}

	result, err := h.ingestor.Ingest(r.Context(), principal, req.toParams(principal.UserID))
	if err != nil {
		RespondError(w, err)
		return
	}

	Respond(w, http.StatusCreated, interactionResponse{
		InteractionID: result.Interaction.ID,
		Type:          string(result.Interaction.Type),
		Downgraded:    result.Downgraded,
	})
}

type batchResponse struct {
	Accepted int `json:"accepted"`
}

// Batch handles POST /interactions/batch.
func (h *InteractionHandler) Batch(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.GetPrincipal(r.Context())
	if !ok {
		RespondError(w, entity.ErrMalformedCredential)
		return
	}

	var reqs []interactionRequest
	if err := decodeJSON(r, &reqs); err != nil {
		RespondError(w, err)
		return
	}

	events := make([]*entity.NewInteraction, 0, len(reqs))
	for i := range reqs {
		events = append(events, reqs[i].toParams(principal.UserID))
	}

	accepted, err := h.ingestor.IngestBatch(r.Context(), principal, events)
	if err != nil {
		w.Header().Set("X-Accepted-Count", strconv.Itoa(accepted))
		RespondError(w, err)
		return
	}
	Respond(w, http.StatusOK, batchResponse{Accepted: accepted})
}
