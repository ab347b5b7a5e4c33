package http

import (
	"net/http"

	"github.com/tunetrail/backend/internal/entity"
	"github.com/tunetrail/backend/internal/infrastructure/auth"
	"github.com/tunetrail/backend/internal/usecase"
)

// RecommendationHandler implements the five recommendation read shapes plus
// feedback submission (§4.5/§6).
type RecommendationHandler struct {
	dispatcher *usecase.RecommendationDispatcher
}

// NewRecommendationHandler builds a RecommendationHandler.
func NewRecommendationHandler(dispatcher *usecase.RecommendationDispatcher) *RecommendationHandler {
	return &RecommendationHandler{dispatcher: dispatcher}
}

type recommendedTrackView struct {
	TrackID          string  `json:"track_id"`
	Score            float64 `json:"score"`
	Reason           string  `json:"reason,omitempty"`
	RecommendationID string  `json:"recommendation_id"`
}

type recommendationResponse struct {
	Tracks       []recommendedTrackView `json:"tracks"`
	ModelType    string                 `json:"model_type"`
	ModelVersion string                 `json:"model_version"`
}

func newRecommendationResponse(result *entity.RecommendationResult) recommendationResponse {
	tracks := make([]recommendedTrackView, 0, len(result.Tracks))
	for _, t := range result.Tracks {
		tracks = append(tracks, recommendedTrackView{
			TrackID:          t.TrackID,
			Score:            t.Score,
			Reason:           t.Reason,
			RecommendationID: t.RecommendationID,
		})
	}
	return recommendationResponse{Tracks: tracks, ModelType: result.ModelType, ModelVersion: result.ModelVersion}
}

// dispatch resolves the principal, builds req's remaining fields, calls the
// Dispatcher, and writes the recommendation response shape shared by every
// recommendation endpoint, GET and POST alike.
func (h *RecommendationHandler) dispatch(w http.ResponseWriter, r *http.Request, req *entity.RecommendationRequest) {
	principal, ok := auth.GetPrincipal(r.Context())
	if !ok {
		RespondError(w, entity.ErrMalformedCredential)
		return
	}
	req.UserID = principal.UserID
	req.ModelTierHint = principal.Plan.ModelTier()

	result, err := h.dispatcher.Dispatch(r.Context(), principal, req)
	if err != nil {
		RespondError(w, err)
		return
	}
	Respond(w, http.StatusOK, newRecommendationResponse(result))
}

// Personal handles GET /recommendations.
func (h *RecommendationHandler) Personal(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, &entity.RecommendationRequest{
		Kind:  entity.KindUserPersonal,
		Limit: queryInt(r, "limit", 20),
	})
}

// Similar handles GET /recommendations/similar/{track_id}.
func (h *RecommendationHandler) Similar(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, &entity.RecommendationRequest{
		Kind:  entity.KindSimilarToTrack,
		Seed:  r.PathValue("track_id"),
		Limit: queryInt(r, "limit", 20),
	})
}

// DailyMix handles GET /ml/daily-mix (starter+).
func (h *RecommendationHandler) DailyMix(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, &entity.RecommendationRequest{
		Kind:  entity.KindDailyMix,
		Limit: queryInt(r, "limit", 30),
	})
}

type radioRequest struct {
	Seed  string `json:"seed"`
	Limit int    `json:"limit"`
}

// Radio handles POST /ml/radio (starter+).
func (h *RecommendationHandler) Radio(w http.ResponseWriter, r *http.Request) {
	var req radioRequest
	if err := decodeJSON(r, &req); err != nil {
		RespondError(w, err)
		return
	}
	if req.Limit == 0 {
		req.Limit = 20
	}
	h.dispatch(w, r, &entity.RecommendationRequest{
		Kind:  entity.KindRadioSeed,
		Seed:  req.Seed,
		Limit: req.Limit,
	})
}

// TasteProfile handles GET /ml/taste-profile (pro+).
func (h *RecommendationHandler) TasteProfile(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, &entity.RecommendationRequest{
		Kind: entity.KindTasteProfile,
	})
}

type feedbackRequest struct {
	RecommendationID string  `json:"recommendation_id"`
	Signal           string  `json:"signal"`
	Reason           *string `json:"reason,omitempty"`
}

// Feedback handles POST /ml/recommendations/feedback.
func (h *RecommendationHandler) Feedback(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.GetPrincipal(r.Context())
	if !ok {
		RespondError(w, entity.ErrMalformedCredential)
		return
	}

	var req feedbackRequest
	if err := decodeJSON(r, &req); err != nil {
		RespondError(w, err)
		return
	}

	err := h.dispatcher.Feedback(r.Context(), principal, &entity.Feedback{
		RecommendationID: req.RecommendationID,
		Signal:           entity.FeedbackSignal(req.Signal),
		Reason:           req.Reason,
	})
	if err != nil {
		RespondError(w, err)
		return
	}
	Respond(w, http.StatusNoContent, nil)
}
