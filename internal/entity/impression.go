package entity

import (
	"context"
	"time"
)

// Impression records that a specific track was shown to a user as part of
// a recommendation, used for click-through-rate analysis. Append-only;
// Clicked/Played/Liked are the only fields mutated after insert, each a
// set-true-once flip driven by a matching later Interaction.
type Impression struct {
	ID               string
	UserID           string
	TrackID          string
	RecommendationID string
	ModelType        string
	ModelVersion     string
	Score            float64
	Position         int
	Context          string
	ShownAt          time.Time
	Clicked          bool
	Played           bool
	Liked            bool
}

// NewImpression carries the fields required to record an Impression.
type NewImpression struct {
	UserID           string
	TrackID          string
	RecommendationID string
	ModelType        string
	ModelVersion     string
	Score            float64
	Position         int
	Context          string
	ShownAt          time.Time
}

// ImpressionFeedback names the flag a feedback signal flips.
type ImpressionFeedback string

const (
	FeedbackClicked ImpressionFeedback = "clicked"
	FeedbackPlayed  ImpressionFeedback = "played"
	FeedbackLiked   ImpressionFeedback = "liked"
)

// ImpressionRepository persists Impression records.
type ImpressionRepository interface {
	// CreateBatch appends impressions for every track returned by one
	// recommendation response.
	CreateBatch(ctx context.Context, params []*NewImpression) ([]*Impression, error)

	// Get retrieves an impression by ID.
	//
	// # Possible errors
	//
	//  - NotFound: If the impression does not exist.
	Get(ctx context.Context, id string) (*Impression, error)

	// GetByRecommendation retrieves the impression written for a given
	// recommendation_id, the unit feedback events reference.
	//
	// # Possible errors
	//
	//  - NotFound: If no impression was recorded for recommendation_id.
	GetByRecommendation(ctx context.Context, recommendationID string) (*Impression, error)

	// SetFlag atomically and idempotently sets one of Clicked/Played/Liked
	// to true. Reports whether this call was the one that flipped it, so
	// callers can decide whether to also record a new Interaction.
	//
	// # Possible errors
	//
	//  - NotFound: If the impression does not exist.
	SetFlag(ctx context.Context, id string, flag ImpressionFeedback) (flipped bool, err error)
}
