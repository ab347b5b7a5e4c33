package entity

import (
	"context"
	"time"
)

// SearchQuery is an append-only record of a catalog search, used offline
// to mine query-to-click signals. No invariants beyond well-formedness.
type SearchQuery struct {
	ID           string
	UserID       string
	Query        string
	ResultCount  int
	DeviceType   string
	OccurredAt   time.Time
}

// NewSearchQuery carries the fields required to record a SearchQuery.
type NewSearchQuery struct {
	UserID      string
	Query       string
	ResultCount int
	DeviceType  string
}

// ContentView is an append-only record that a user viewed a piece of
// catalog content (an artist page, a playlist, an album) outside of
// playback.
type ContentView struct {
	ID          string
	UserID      string
	ContentType string
	ContentID   string
	DeviceType  string
	OccurredAt  time.Time
}

// NewContentView carries the fields required to record a ContentView.
type NewContentView struct {
	UserID      string
	ContentType string
	ContentID   string
	DeviceType  string
}

// PlayerEvent is an append-only record of a client-side playback control
// event (pause, resume, seek, volume-change) that does not itself rise to
// an Interaction but is useful for engagement analysis.
type PlayerEvent struct {
	ID         string
	UserID     string
	SessionID  *string
	TrackID    *string
	EventType  string
	PositionMs *int64
	OccurredAt time.Time
}

// NewPlayerEvent carries the fields required to record a PlayerEvent.
type NewPlayerEvent struct {
	UserID     string
	SessionID  *string
	TrackID    *string
	EventType  string
	PositionMs *int64
}

// TelemetryRepository persists the append-only SearchQuery, ContentView,
// and PlayerEvent streams. They share no invariants with Interaction and
// are never read back on the request path, so a single repository covers
// all three rather than one per type.
type TelemetryRepository interface {
	RecordSearchQuery(ctx context.Context, params *NewSearchQuery) (*SearchQuery, error)
	RecordContentView(ctx context.Context, params *NewContentView) (*ContentView, error)
	RecordPlayerEvent(ctx context.Context, params *NewPlayerEvent) (*PlayerEvent, error)
}
