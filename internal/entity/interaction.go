package entity

import (
	"context"
	"time"
)

// InteractionType enumerates the feedback signals the ingestor accepts.
type InteractionType string

const (
	InteractionPlay          InteractionType = "play"
	InteractionSkip          InteractionType = "skip"
	InteractionLike          InteractionType = "like"
	InteractionDislike       InteractionType = "dislike"
	InteractionSave          InteractionType = "save"
	InteractionAddToPlaylist InteractionType = "add_to_playlist"
	InteractionShare         InteractionType = "share"
	InteractionComplete      InteractionType = "complete"
)

func (t InteractionType) Valid() bool {
	switch t {
	case InteractionPlay, InteractionSkip, InteractionLike, InteractionDislike,
		InteractionSave, InteractionAddToPlaylist, InteractionShare, InteractionComplete:
		return true
	}
	return false
}

// Interaction is an immutable feedback record. Extensions carries
// open-ended, type-specific attributes (skip_reason, mood, activity, ...)
// instead of widening the struct per signal type or falling back to a
// free-form JSON blob.
type Interaction struct {
	ID               string
	UserID           string
	TrackID          string
	SessionID        *string
	Type             InteractionType
	CreatedAt        time.Time
	PlayDurationMs   *int64
	PositionMs       *int64
	Source           string
	SourceID         *string
	RecommendationID *string
	DeviceType       string
	Extensions       map[string]string
}

// NewInteraction carries the fields required to ingest an Interaction. The
// caller-supplied ClientSeq enforces per-session FIFO ordering; it is
// ignored when SessionID is nil.
type NewInteraction struct {
	UserID           string
	TrackID          string
	SessionID        *string
	ClientSeq        int64
	Type             InteractionType
	PlayDurationMs   *int64
	PositionMs       *int64
	Source           string
	SourceID         *string
	RecommendationID *string
	DeviceType       string
	Extensions       map[string]string
}

// InteractionRepository persists Interaction records.
type InteractionRepository interface {
	// Create appends a new interaction.
	//
	// # Possible errors
	//
	//  - InvalidArgument: If type or session reference is invalid.
	Create(ctx context.Context, params *NewInteraction) (*Interaction, error)

	// Get retrieves an interaction by ID.
	//
	// # Possible errors
	//
	//  - NotFound: If the interaction does not exist.
	Get(ctx context.Context, id string) (*Interaction, error)

	// ListBySession lists interactions belonging to a session in
	// created_at order, used by session finalization to compute summaries.
	ListBySession(ctx context.Context, sessionID string) ([]*Interaction, error)

	// ListByUser lists a user's interactions, most recent first.
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*Interaction, error)
}
