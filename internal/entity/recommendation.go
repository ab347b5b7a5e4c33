package entity

import "context"

// RecommendationKind names the shape of a recommendation request; each
// kind has a minimum plan enforced by the Quota & Rate Gate before the
// Dispatcher is ever invoked.
type RecommendationKind string

const (
	KindUserPersonal   RecommendationKind = "user_personal"
	KindSimilarToTrack RecommendationKind = "similar_to_track"
	KindDailyMix       RecommendationKind = "daily_mix"
	KindRadioSeed      RecommendationKind = "radio_seed"
	KindTasteProfile   RecommendationKind = "taste_profile"
)

// MinPlan returns the minimum plan tier required to request kind.
func (k RecommendationKind) MinPlan() Plan {
	switch k {
	case KindDailyMix, KindRadioSeed:
		return PlanStarter
	case KindTasteProfile:
		return PlanPro
	default:
		return PlanFree
	}
}

// RecommendationRequest is the normalized request shape across all five
// kinds; Seed is interpreted according to Kind (e.g. a track_id for
// similar_to_track, unused for user_personal).
type RecommendationRequest struct {
	Kind          RecommendationKind
	UserID        string
	Seed          string
	Limit         int
	ModelTierHint string
}

// RecommendedTrack is one ranked result from the engine. RecommendationID
// is assigned by the Dispatcher after ranking, not by the engine: it is
// the token a client echoes back on /ml/recommendations/feedback to
// target this specific shown track.
type RecommendedTrack struct {
	TrackID          string
	Score            float64
	Reason           string
	RecommendationID string
}

// RecommendationResult is the engine's full response to one request.
type RecommendationResult struct {
	Tracks       []RecommendedTrack
	ModelType    string
	ModelVersion string
}

// RecommendationEngine is the external ML collaborator the Dispatcher
// submits ranking requests to. Implementations must be deadline-aware via
// ctx and must not retain request state between calls.
type RecommendationEngine interface {
	// Recommend returns ranked tracks for req.
	//
	// # Possible errors
	//
	//  - DeadlineExceeded: If the engine does not respond within ctx's deadline.
	//  - Unavailable: If the engine cannot be reached.
	Recommend(ctx context.Context, req *RecommendationRequest) (*RecommendationResult, error)
}

// FeedbackSignal enumerates the outcomes a client may report against a
// previously returned recommendation.
type FeedbackSignal string

const (
	FeedbackSignalAccept    FeedbackSignal = "accept"
	FeedbackSignalReject    FeedbackSignal = "reject"
	FeedbackSignalPlayed    FeedbackSignal = "played"
	FeedbackSignalSaved     FeedbackSignal = "saved"
	FeedbackSignalDismissed FeedbackSignal = "dismissed"
)

// Feedback is the body of POST /ml/recommendations/feedback.
type Feedback struct {
	RecommendationID string
	Signal           FeedbackSignal
	Reason           *string
}
