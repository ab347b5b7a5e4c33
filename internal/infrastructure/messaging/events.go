package messaging

import "time"

// ImpressionRecordedData is the payload for impression.recorded.v1 events.
// Published by the impression buffer for every Impression row it has
// already persisted via CreateBatch; the Repository write, not this event,
// is the durable record.
type ImpressionRecordedData struct {
	ImpressionID     string    `json:"impression_id"`
	UserID           string    `json:"user_id"`
	TrackID          string    `json:"track_id"`
	RecommendationID string    `json:"recommendation_id"`
	ModelType        string    `json:"model_type"`
	ModelVersion     string    `json:"model_version"`
	Score            float64   `json:"score"`
	Position         int       `json:"position"`
	Context          string    `json:"context,omitempty"`
	ShownAt          time.Time `json:"shown_at"`
}

// SessionExpiredData is the payload for session.expired.v1 events.
// Published by the Session Manager each time it finalizes a session and
// its summary (expiry sweep, client End, or replacement by a new Start).
type SessionExpiredData struct {
	SessionID        string `json:"session_id"`
	UserID           string `json:"user_id"`
	TotalDurationMs   int64  `json:"total_duration_ms"`
	TracksPlayed     int    `json:"tracks_played"`
	TracksSkipped    int    `json:"tracks_skipped"`
	CompletionRate   float64 `json:"completion_rate"`
}

// InteractionRecordedData is the payload for interaction.recorded.v1 events.
// Published after an interaction write durably lands, for downstream
// analytics consumers outside the serving plane's own request path.
type InteractionRecordedData struct {
	InteractionID string `json:"interaction_id"`
	UserID        string `json:"user_id"`
	TrackID       string `json:"track_id"`
	Type          string `json:"type"`
	SessionID     string `json:"session_id,omitempty"`
}
