package http

import (
	"net/http"

	"github.com/tunetrail/backend/internal/entity"
	"github.com/tunetrail/backend/internal/infrastructure/auth"
	"github.com/tunetrail/backend/internal/usecase"
	"github.com/tunetrail/backend/pkg/clock"
)

// ImpressionHandler implements POST /impressions/recommendations, letting a
// client record impressions for a recommendation list it rendered from a
// locally cached result rather than a fresh Dispatch call.
type ImpressionHandler struct {
	buffer *usecase.ImpressionBuffer
	clock  clock.Clock
}

// NewImpressionHandler builds an ImpressionHandler.
func NewImpressionHandler(buffer *usecase.ImpressionBuffer, clk clock.Clock) *ImpressionHandler {
	return &ImpressionHandler{buffer: buffer, clock: clk}
}

type impressionItem struct {
	TrackID      string  `json:"track_id"`
	ModelType    string  `json:"model_type"`
	ModelVersion string  `json:"model_version"`
	Score        float64 `json:"score"`
	Position     int     `json:"position"`
	Context      string  `json:"context"`
}

type recordImpressionsRequest struct {
	RecommendationID string           `json:"recommendation_id"`
	Tracks           []impressionItem `json:"tracks"`
}

// Record handles POST /impressions/recommendations.
func (h *ImpressionHandler) Record(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.GetPrincipal(r.Context())
	if !ok {
		RespondError(w, entity.ErrMalformedCredential)
		return
	}

	var req recordImpressionsRequest
	if err := decodeJSON(r, &req); err != nil {
		RespondError(w, err)
		return
	}

	now := h.clock.Now()
	for _, t := range req.Tracks {
		h.buffer.Enqueue(&entity.NewImpression{
			UserID:           principal.UserID,
			TrackID:          t.TrackID,
			RecommendationID: req.RecommendationID,
			ModelType:        t.ModelType,
			ModelVersion:     t.ModelVersion,
			Score:            t.Score,
			Position:         t.Position,
			Context:          t.Context,
			ShownAt:          now,
		})
	}

	Respond(w, http.StatusAccepted, nil)
}
