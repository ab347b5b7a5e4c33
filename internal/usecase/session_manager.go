package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/pannpers/go-apperr/apperr"
	"github.com/pannpers/go-apperr/apperr/codes"
	"github.com/pannpers/go-logging/logging"
	"github.com/tunetrail/backend/internal/entity"
	"github.com/tunetrail/backend/internal/infrastructure/messaging"
	"github.com/tunetrail/backend/pkg/cache"
	"github.com/tunetrail/backend/pkg/clock"
)

const activeSessionCachePrefix = "session:active:"

func activeSessionCacheKey(userID, deviceID string) string {
	return activeSessionCachePrefix + userID + ":" + deviceID
}

const finalizedSessionCachePrefix = "session:finalized:"

func finalizedSessionCacheKey(id string) string {
	return finalizedSessionCachePrefix + id
}

// SessionManager owns the listening-session lifecycle: starting a session
// implicitly ends the prior one for the same device, heartbeats keep it
// alive, and a background sweep expires sessions that have gone idle past
// the configured timeout.
//
// State is dual-written: the Repository is authoritative, the Cache gives
// the heartbeat and sweep paths a fast lookup that avoids a database round
// trip on every keepalive.
type SessionManager struct {
	repo         entity.SessionRepository
	interactions entity.InteractionRepository
	cache        cache.Cache
	publisher    message.Publisher
	clock        clock.Clock
	logger       *logging.Logger
	idleTimeout  time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// NewSessionManager builds a SessionManager and starts its background
// expiry sweep at sweepInterval. Call Close to stop the sweep during
// shutdown's Drain phase.
func NewSessionManager(
	repo entity.SessionRepository,
	interactions entity.InteractionRepository,
	c cache.Cache,
	publisher message.Publisher,
	clk clock.Clock,
	logger *logging.Logger,
	idleTimeout time.Duration,
	sweepInterval time.Duration,
) *SessionManager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &SessionManager{
		repo:         repo,
		interactions: interactions,
		cache:        c,
		publisher:    publisher,
		clock:        clk,
		logger:       logger,
		idleTimeout:  idleTimeout,
		cancel:       cancel,
		done:         make(chan struct{}),
	}

	go m.sweepLoop(ctx, sweepInterval)
	return m
}

// Close stops the background sweep loop and waits for it to exit,
// satisfying io.Closer for the shutdown package's Drain phase.
func (m *SessionManager) Close() error {
	m.cancel()
	<-m.done
	return nil
}

// Start begins a new listening session for (UserID, DeviceID). Any session
// already active for that pair is implicitly finalized as EndedByTimeout
// first, matching the at-most-one-active-session-per-device invariant.
func (m *SessionManager) Start(ctx context.Context, params *entity.NewSession) (*entity.Session, error) {
	if prior, err := m.repo.GetActiveByDevice(ctx, params.UserID, params.DeviceID); err == nil && prior != nil {
		if _, err := m.finalize(ctx, prior, entity.EndedByTimeout); err != nil {
			m.logger.Error(ctx, "failed to finalize prior session on new start", err, slog.String("sessionID", prior.ID))
		}
	}

	session, err := m.repo.Create(ctx, params)
	if err != nil {
		return nil, err
	}

	m.cache.Set(activeSessionCacheKey(session.UserID, session.DeviceID), session.ID, m.idleTimeout)
	return session, nil
}

// Heartbeat refreshes a session's liveness and opportunistically records
// the caller's current playback position.
//
// # Possible errors
//
//   - NotFound: If the session does not exist.
//   - FailedPrecondition: If the session is not currently Active.
func (m *SessionManager) Heartbeat(ctx context.Context, sessionID string, positionMs *int64, trackID *string) error {
	session, err := m.repo.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	now := m.clock.Now()
	if !session.Active(now, m.idleTimeout) {
		return apperr.New(codes.FailedPrecondition, "session is not active")
	}

	if err := m.repo.Heartbeat(ctx, sessionID, now, positionMs, trackID); err != nil {
		return err
	}
	m.cache.Set(activeSessionCacheKey(session.UserID, session.DeviceID), sessionID, m.idleTimeout)
	return nil
}

// End finalizes a session at the caller's request.
func (m *SessionManager) End(ctx context.Context, sessionID string) (*entity.Session, error) {
	session, err := m.repo.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return m.finalize(ctx, session, entity.EndedByClient)
}

// finalize transitions session to its terminal state exactly once, guarded
// by a cache compare-and-swap so a concurrent sweep and client-initiated End
// racing on the same session cannot both run the finalization side effects.
func (m *SessionManager) finalize(ctx context.Context, session *entity.Session, reason entity.SessionEndReason) (*entity.Session, error) {
	key := finalizedSessionCacheKey(session.ID)
	won, err := m.cache.CompareAndSwap(key, nil, true, 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("guard session finalization: %w", err)
	}
	if !won {
		return session, nil
	}

	now := m.clock.Now()

	summary, err := m.summarize(ctx, session.ID)
	if err != nil {
		m.logger.Error(ctx, "failed to summarize session interactions", err, slog.String("sessionID", session.ID))
		summary = &entity.SessionSummary{}
	}

	finalized, err := m.repo.Finalize(ctx, session.ID, reason, now, summary)
	if err != nil {
		return nil, err
	}

	m.cache.Delete(activeSessionCacheKey(session.UserID, session.DeviceID))

	m.publishExpired(ctx, finalized, reason)
	return finalized, nil
}

// summarize aggregates the session's interactions into its terminal
// summary: tracks_played and tracks_skipped count the respective
// interaction types, total_duration_ms sums every recorded play
// duration, and completion_rate is the share of played tracks that
// were also marked complete rather than skipped.
func (m *SessionManager) summarize(ctx context.Context, sessionID string) (*entity.SessionSummary, error) {
	interactions, err := m.interactions.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list session interactions: %w", err)
	}

	summary := &entity.SessionSummary{}
	var completed int
	for _, i := range interactions {
		switch i.Type {
		case entity.InteractionPlay:
			summary.TracksPlayed++
		case entity.InteractionSkip:
			summary.TracksSkipped++
		case entity.InteractionComplete:
			completed++
		}
		if i.PlayDurationMs != nil {
			summary.TotalDurationMs += *i.PlayDurationMs
		}
	}

	if summary.TracksPlayed > 0 {
		summary.CompletionRate = float64(completed) / float64(summary.TracksPlayed)
	}
	return summary, nil
}

func (m *SessionManager) publishExpired(ctx context.Context, session *entity.Session, reason entity.SessionEndReason) {
	if m.publisher == nil {
		return
	}
	data := messaging.SessionExpiredData{
		SessionID: session.ID,
		UserID:    session.UserID,
	}
	if s := session.Summary; s != nil {
		data.TotalDurationMs = s.TotalDurationMs
		data.TracksPlayed = s.TracksPlayed
		data.TracksSkipped = s.TracksSkipped
		data.CompletionRate = s.CompletionRate
	}
	msg, err := messaging.NewCloudEvent(messaging.EventTypeSessionExpired, data)
	if err != nil {
		m.logger.Error(ctx, "failed to build session expired event", err, slog.String("sessionID", session.ID))
		return
	}
	if err := m.publisher.Publish(messaging.TopicSessions, msg); err != nil {
		m.logger.Error(ctx, "failed to publish session expired event", err, slog.String("sessionID", session.ID))
	}
}

// sweepLoop periodically finalizes sessions that have gone idle past
// idleTimeout. It reconciles both the cache's active-session index and the
// Repository's ListActive as a durable fallback, since MemoryCache state
// does not survive a process restart or span multiple instances.
func (m *SessionManager) sweepLoop(ctx context.Context, interval time.Duration) {
	defer close(m.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweepOnce(ctx)
		}
	}
}

func (m *SessionManager) sweepOnce(ctx context.Context) {
	seen := make(map[string]struct{})

	for _, key := range m.cache.KeysByPrefix(activeSessionCachePrefix) {
		sessionID, ok := m.cache.Get(key)
		if !ok {
			continue
		}
		id, _ := sessionID.(string)
		if id == "" {
			continue
		}
		seen[id] = struct{}{}
		m.sweepSession(ctx, id)
	}

	active, err := m.repo.ListActive(ctx)
	if err != nil {
		m.logger.Error(ctx, "session sweep failed to list active sessions", err)
		return
	}
	for _, session := range active {
		if _, ok := seen[session.ID]; ok {
			continue
		}
		m.sweepSession(ctx, session.ID)
	}
}

func (m *SessionManager) sweepSession(ctx context.Context, sessionID string) {
	session, err := m.repo.Get(ctx, sessionID)
	if err != nil {
		return
	}
	if session.Active(m.clock.Now(), m.idleTimeout) {
		return
	}
	if _, err := m.finalize(ctx, session, entity.EndedByTimeout); err != nil {
		m.logger.Error(ctx, "session sweep failed to finalize idle session", err, slog.String("sessionID", sessionID))
	}
}
