package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/pannpers/go-logging/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tunetrail/backend/internal/entity"
	"github.com/tunetrail/backend/internal/usecase"
	"github.com/tunetrail/backend/pkg/cache"
	"github.com/tunetrail/backend/pkg/clock"
)

type summarizingSessionRepo struct {
	session  *entity.Session
	finalize *entity.SessionSummary
}

func (r *summarizingSessionRepo) Create(ctx context.Context, params *entity.NewSession) (*entity.Session, error) {
	return r.session, nil
}
func (r *summarizingSessionRepo) Get(ctx context.Context, id string) (*entity.Session, error) {
	return r.session, nil
}
func (r *summarizingSessionRepo) GetActiveByDevice(ctx context.Context, userID, deviceID string) (*entity.Session, error) {
	return nil, assert.AnError
}
func (r *summarizingSessionRepo) Heartbeat(ctx context.Context, id string, at time.Time, positionMs *int64, trackID *string) error {
	return nil
}
func (r *summarizingSessionRepo) Finalize(ctx context.Context, id string, reason entity.SessionEndReason, endedAt time.Time, summary *entity.SessionSummary) (*entity.Session, error) {
	r.finalize = summary
	r.session.Status = entity.SessionEnded
	r.session.Summary = summary
	return r.session, nil
}
func (r *summarizingSessionRepo) ListActive(ctx context.Context) ([]*entity.Session, error) {
	return nil, nil
}

type staticInteractionRepo struct {
	bySession []*entity.Interaction
}

func (r *staticInteractionRepo) Create(ctx context.Context, params *entity.NewInteraction) (*entity.Interaction, error) {
	return nil, nil
}
func (r *staticInteractionRepo) Get(ctx context.Context, id string) (*entity.Interaction, error) {
	return nil, assert.AnError
}
func (r *staticInteractionRepo) ListBySession(ctx context.Context, sessionID string) ([]*entity.Interaction, error) {
	return r.bySession, nil
}
func (r *staticInteractionRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*entity.Interaction, error) {
	return nil, nil
}

func TestSessionManager_End_ComputesSummaryFromInteractions(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	dur := int64(30000)

	session := &entity.Session{
		ID:              "sess-1",
		UserID:          "user-1",
		DeviceID:        "device-1",
		Status:          entity.SessionActive,
		LastHeartbeatAt: now,
	}
	repo := &summarizingSessionRepo{session: session}
	interactions := &staticInteractionRepo{bySession: []*entity.Interaction{
		{Type: entity.InteractionPlay, PlayDurationMs: &dur},
		{Type: entity.InteractionPlay, PlayDurationMs: &dur},
		{Type: entity.InteractionComplete},
		{Type: entity.InteractionSkip},
	}}
	c := cache.NewMemoryCache(time.Hour)
	defer c.Close()
	logger, err := logging.New()
	require.NoError(t, err)

	m := usecase.NewSessionManager(repo, interactions, c, nil, clock.NewMock(now), logger, time.Hour, time.Hour)
	defer m.Close()

	_, err = m.End(context.Background(), session.ID)
	require.NoError(t, err)
	require.NotNil(t, repo.finalize)

	assert.Equal(t, int64(60000), repo.finalize.TotalDurationMs)
	assert.Equal(t, 2, repo.finalize.TracksPlayed)
	assert.Equal(t, 1, repo.finalize.TracksSkipped)
	assert.Equal(t, 0.5, repo.finalize.CompletionRate)
}

func TestSessionManager_End_IsIdempotent(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	session := &entity.Session{
		ID:              "sess-2",
		UserID:          "user-1",
		DeviceID:        "device-1",
		Status:          entity.SessionActive,
		LastHeartbeatAt: now,
	}
	repo := &summarizingSessionRepo{session: session}
	interactions := &staticInteractionRepo{}
	c := cache.NewMemoryCache(time.Hour)
	defer c.Close()
	logger, err := logging.New()
	require.NoError(t, err)

	m := usecase.NewSessionManager(repo, interactions, c, nil, clock.NewMock(now), logger, time.Hour, time.Hour)
	defer m.Close()

	_, err = m.End(context.Background(), session.ID)
	require.NoError(t, err)
	first := repo.finalize

	repo.finalize = nil
	_, err = m.End(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Nil(t, repo.finalize, "second End should not re-run finalize side effects")
	assert.NotNil(t, first)
}
