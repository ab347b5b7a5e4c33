package entity

import (
	"context"
	"time"
)

// Track is the minimal catalog record needed to bound play_duration_ms and
// to break recommendation ranking ties by created_at. Everything else
// about a track (audio features, metadata enrichment) is out of scope.
type Track struct {
	ID         string
	DurationMs int64
	CreatedAt  time.Time
}

// TrackRepository retrieves Track records.
type TrackRepository interface {
	// Get retrieves a track by ID.
	//
	// # Possible errors
	//
	//  - NotFound: If the track does not exist.
	Get(ctx context.Context, id string) (*Track, error)

	// GetBatch retrieves multiple tracks by ID, skipping IDs with no
	// matching row rather than failing the whole batch.
	GetBatch(ctx context.Context, ids []string) ([]*Track, error)
}
