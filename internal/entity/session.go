package entity

import (
	"context"
	"time"
)

// SessionStatus is the listening-session state machine position.
type SessionStatus string

const (
	SessionActive  SessionStatus = "active"
	SessionEnded   SessionStatus = "ended"
	SessionExpired SessionStatus = "expired"
)

// SessionEndReason distinguishes a caller-initiated End from a sweep-driven
// one, surfaced in the finalized summary.
type SessionEndReason string

const (
	EndedByClient  SessionEndReason = "client"
	EndedByTimeout SessionEndReason = "timeout"
)

// Session is a time-bounded listening context grouping related
// Interactions. At most one Session is Active per (UserID, DeviceID) pair;
// starting a new one implicitly expires the prior.
type Session struct {
	ID              string
	UserID          string
	DeviceID        string
	DeviceType      string
	ClientContext   map[string]string
	Status          SessionStatus
	StartedAt       time.Time
	LastHeartbeatAt time.Time
	LastPositionMs  *int64
	LastTrackID     *string
	EndedAt         *time.Time
	EndedBy         *SessionEndReason
	Summary         *SessionSummary
}

// SessionSummary is computed once, at finalization, from the interactions
// joined to the session.
type SessionSummary struct {
	TotalDurationMs int64
	TracksPlayed    int
	TracksSkipped   int
	CompletionRate  float64
}

// Active reports whether s is in the Active state and has not gone idle
// past timeout as of now.
func (s *Session) Active(now time.Time, idleTimeout time.Duration) bool {
	if s.Status != SessionActive {
		return false
	}
	return now.Sub(s.LastHeartbeatAt) < idleTimeout
}

// NewSession carries the fields required to start a Session.
type NewSession struct {
	UserID        string
	DeviceID      string
	DeviceType    string
	ClientContext map[string]string
}

// SessionRepository persists Session aggregates.
type SessionRepository interface {
	// Create starts a new session in the Active state.
	Create(ctx context.Context, params *NewSession) (*Session, error)

	// Get retrieves a session by ID.
	//
	// # Possible errors
	//
	//  - NotFound: If the session does not exist.
	Get(ctx context.Context, id string) (*Session, error)

	// GetActiveByDevice retrieves the current active session for a
	// (user, device) pair, if any.
	//
	// # Possible errors
	//
	//  - NotFound: If no active session exists for the pair.
	GetActiveByDevice(ctx context.Context, userID, deviceID string) (*Session, error)

	// Heartbeat refreshes last_heartbeat_at and opportunistically persists
	// the last-known playback position.
	//
	// # Possible errors
	//
	//  - NotFound: If the session does not exist.
	//  - FailedPrecondition: If the session is not Active.
	Heartbeat(ctx context.Context, id string, at time.Time, positionMs *int64, trackID *string) error

	// Finalize transitions a session to Ended or Expired and records its
	// summary. Implementations must make this a no-op, returning the
	// existing row unchanged, when the session is already finalized.
	//
	// # Possible errors
	//
	//  - NotFound: If the session does not exist.
	Finalize(ctx context.Context, id string, reason SessionEndReason, endedAt time.Time, summary *SessionSummary) (*Session, error)

	// ListActive lists every session currently in the Active state, used
	// by the expiry sweep as a durable fallback to the cache scan.
	ListActive(ctx context.Context) ([]*Session, error)
}
