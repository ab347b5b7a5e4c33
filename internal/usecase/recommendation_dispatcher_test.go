package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/pannpers/go-logging/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tunetrail/backend/internal/entity"
	"github.com/tunetrail/backend/internal/infrastructure/auth"
	"github.com/tunetrail/backend/internal/usecase"
	"github.com/tunetrail/backend/pkg/cache"
	"github.com/tunetrail/backend/pkg/clock"
	"github.com/tunetrail/backend/pkg/idgen"
)

type fakeEngine struct {
	result *entity.RecommendationResult
	err    error
	calls  int
}

func (f *fakeEngine) Recommend(ctx context.Context, req *entity.RecommendationRequest) (*entity.RecommendationResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeTrackRepo struct {
	tracks map[string]*entity.Track
}

func (f *fakeTrackRepo) Get(ctx context.Context, id string) (*entity.Track, error) {
	t, ok := f.tracks[id]
	if !ok {
		return nil, assert.AnError
	}
	return t, nil
}

func (f *fakeTrackRepo) GetBatch(ctx context.Context, ids []string) ([]*entity.Track, error) {
	var out []*entity.Track
	for _, id := range ids {
		if t, ok := f.tracks[id]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

type fakeImpressionRepo struct {
	byRecommendation map[string]*entity.Impression
	created          []*entity.NewImpression
}

func (f *fakeImpressionRepo) CreateBatch(ctx context.Context, params []*entity.NewImpression) ([]*entity.Impression, error) {
	f.created = append(f.created, params...)
	out := make([]*entity.Impression, len(params))
	for i, p := range params {
		out[i] = &entity.Impression{UserID: p.UserID, TrackID: p.TrackID, ModelType: p.ModelType, ModelVersion: p.ModelVersion, Score: p.Score, Position: p.Position, Context: p.Context, ShownAt: p.ShownAt}
	}
	return out, nil
}

func (f *fakeImpressionRepo) Get(ctx context.Context, id string) (*entity.Impression, error) {
	return nil, assert.AnError
}

func (f *fakeImpressionRepo) GetByRecommendation(ctx context.Context, recommendationID string) (*entity.Impression, error) {
	imp, ok := f.byRecommendation[recommendationID]
	if !ok {
		return nil, assert.AnError
	}
	return imp, nil
}

func (f *fakeImpressionRepo) SetFlag(ctx context.Context, id string, flag entity.ImpressionFeedback) (bool, error) {
	return true, nil
}

type fakeInteractionRepo struct {
	created []*entity.NewInteraction
}

func (f *fakeInteractionRepo) Create(ctx context.Context, params *entity.NewInteraction) (*entity.Interaction, error) {
	f.created = append(f.created, params)
	return &entity.Interaction{UserID: params.UserID, TrackID: params.TrackID, Type: params.Type}, nil
}

func (f *fakeInteractionRepo) Get(ctx context.Context, id string) (*entity.Interaction, error) {
	return nil, assert.AnError
}

func (f *fakeInteractionRepo) ListBySession(ctx context.Context, sessionID string) ([]*entity.Interaction, error) {
	return nil, nil
}

func (f *fakeInteractionRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*entity.Interaction, error) {
	return nil, nil
}

type fakeSessionRepo struct{}

func (f *fakeSessionRepo) Create(ctx context.Context, params *entity.NewSession) (*entity.Session, error) {
	return nil, nil
}
func (f *fakeSessionRepo) Get(ctx context.Context, id string) (*entity.Session, error) {
	return nil, assert.AnError
}
func (f *fakeSessionRepo) GetActiveByDevice(ctx context.Context, userID, deviceID string) (*entity.Session, error) {
	return nil, assert.AnError
}
func (f *fakeSessionRepo) Heartbeat(ctx context.Context, id string, at time.Time, positionMs *int64, trackID *string) error {
	return nil
}
func (f *fakeSessionRepo) Finalize(ctx context.Context, id string, reason entity.SessionEndReason, endedAt time.Time, summary *entity.SessionSummary) (*entity.Session, error) {
	return nil, nil
}
func (f *fakeSessionRepo) ListActive(ctx context.Context) ([]*entity.Session, error) {
	return nil, nil
}

func newTestIngestor(tracks *fakeTrackRepo, impressions *fakeImpressionRepo, interactions *fakeInteractionRepo, c cache.Cache) *usecase.InteractionIngestor {
	logger, _ := logging.New()
	return usecase.NewInteractionIngestor(interactions, impressions, tracks, &fakeSessionRepo{}, c, nil, logger)
}

func testDispatcher(engine *fakeEngine, tracks *fakeTrackRepo, impressions *fakeImpressionRepo, interactions *fakeInteractionRepo, c cache.Cache, clk clock.Clock) *usecase.RecommendationDispatcher {
	logger, _ := logging.New()
	buffer := usecase.NewImpressionBuffer(impressions, nil, logger, 64, 16, 5*time.Millisecond)
	ingestor := newTestIngestor(tracks, impressions, interactions, c)
	return usecase.NewRecommendationDispatcher(c, engine, buffer, tracks, ingestor, clk, idgen.UUID(), 5*time.Minute, time.Hour, 2*time.Second, 10*time.Second)
}

func TestRecommendationDispatcher_Dispatch(t *testing.T) {
	principal := &auth.Principal{UserID: "user-1", OrgID: "org-1"}

	t.Run("orders by score then created_at then track id", func(t *testing.T) {
		now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		tracks := &fakeTrackRepo{tracks: map[string]*entity.Track{
			"t1": {ID: "t1", DurationMs: 200000, CreatedAt: now},
			"t2": {ID: "t2", DurationMs: 200000, CreatedAt: now.Add(-time.Hour)},
			"t3": {ID: "t3", DurationMs: 200000, CreatedAt: now},
		}}
		engine := &fakeEngine{result: &entity.RecommendationResult{
			Tracks: []entity.RecommendedTrack{
				{TrackID: "t1", Score: 0.5},
				{TrackID: "t2", Score: 0.9},
				{TrackID: "t3", Score: 0.5},
			},
			ModelType:    "collab",
			ModelVersion: "v1",
		}}
		impressions := &fakeImpressionRepo{byRecommendation: map[string]*entity.Impression{}}
		interactions := &fakeInteractionRepo{}
		c := cache.NewMemoryCache(time.Hour)
		defer c.Close()
		clk := clock.NewMock(now)
		d := testDispatcher(engine, tracks, impressions, interactions, c, clk)

		result, err := d.Dispatch(context.Background(), principal, &entity.RecommendationRequest{
			Kind: entity.KindUserPersonal, UserID: "user-1", Limit: 10,
		})

		require.NoError(t, err)
		require.Len(t, result.Tracks, 3)
		assert.Equal(t, "t2", result.Tracks[0].TrackID)
		assert.Equal(t, "t1", result.Tracks[1].TrackID)
		assert.Equal(t, "t3", result.Tracks[2].TrackID)
	})

	t.Run("serves fresh cache without calling the engine again", func(t *testing.T) {
		now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		tracks := &fakeTrackRepo{tracks: map[string]*entity.Track{"t1": {ID: "t1", CreatedAt: now}}}
		engine := &fakeEngine{result: &entity.RecommendationResult{Tracks: []entity.RecommendedTrack{{TrackID: "t1", Score: 1}}}}
		impressions := &fakeImpressionRepo{byRecommendation: map[string]*entity.Impression{}}
		interactions := &fakeInteractionRepo{}
		c := cache.NewMemoryCache(time.Hour)
		defer c.Close()
		clk := clock.NewMock(now)
		d := testDispatcher(engine, tracks, impressions, interactions, c, clk)

		req := &entity.RecommendationRequest{Kind: entity.KindUserPersonal, UserID: "user-1", Limit: 10}
		_, err := d.Dispatch(context.Background(), principal, req)
		require.NoError(t, err)
		_, err = d.Dispatch(context.Background(), principal, req)
		require.NoError(t, err)

		assert.Equal(t, 1, engine.calls)
	})

	t.Run("falls back to a stale entry when the engine fails", func(t *testing.T) {
		now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		tracks := &fakeTrackRepo{tracks: map[string]*entity.Track{"t1": {ID: "t1", CreatedAt: now}}}
		engine := &fakeEngine{result: &entity.RecommendationResult{Tracks: []entity.RecommendedTrack{{TrackID: "t1", Score: 1}}}}
		impressions := &fakeImpressionRepo{byRecommendation: map[string]*entity.Impression{}}
		interactions := &fakeInteractionRepo{}
		c := cache.NewMemoryCache(time.Hour)
		defer c.Close()
		clk := clock.NewMock(now)
		d := testDispatcher(engine, tracks, impressions, interactions, c, clk)

		req := &entity.RecommendationRequest{Kind: entity.KindUserPersonal, UserID: "user-1", Limit: 10}
		_, err := d.Dispatch(context.Background(), principal, req)
		require.NoError(t, err)

		clk.Advance(10 * time.Minute)
		engine.err = assert.AnError

		result, err := d.Dispatch(context.Background(), principal, req)
		require.NoError(t, err)
		require.Len(t, result.Tracks, 1)
		assert.Equal(t, "t1", result.Tracks[0].TrackID)
	})

	t.Run("surfaces the upstream error when no stale entry exists", func(t *testing.T) {
		now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		tracks := &fakeTrackRepo{tracks: map[string]*entity.Track{}}
		engine := &fakeEngine{err: entity.ErrUpstreamUnavailable}
		impressions := &fakeImpressionRepo{byRecommendation: map[string]*entity.Impression{}}
		interactions := &fakeInteractionRepo{}
		c := cache.NewMemoryCache(time.Hour)
		defer c.Close()
		clk := clock.NewMock(now)
		d := testDispatcher(engine, tracks, impressions, interactions, c, clk)

		_, err := d.Dispatch(context.Background(), principal, &entity.RecommendationRequest{
			Kind: entity.KindUserPersonal, UserID: "user-1", Limit: 10,
		})

		assert.ErrorIs(t, err, entity.ErrUpstreamUnavailable)
	})

	t.Run("assigns a distinct recommendation id per track carried through to its impression", func(t *testing.T) {
		now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		tracks := &fakeTrackRepo{tracks: map[string]*entity.Track{
			"t1": {ID: "t1", CreatedAt: now},
			"t2": {ID: "t2", CreatedAt: now},
		}}
		engine := &fakeEngine{result: &entity.RecommendationResult{Tracks: []entity.RecommendedTrack{
			{TrackID: "t1", Score: 0.9},
			{TrackID: "t2", Score: 0.5},
		}}}
		impressions := &fakeImpressionRepo{byRecommendation: map[string]*entity.Impression{}}
		interactions := &fakeInteractionRepo{}
		c := cache.NewMemoryCache(time.Hour)
		defer c.Close()
		clk := clock.NewMock(now)
		d := testDispatcher(engine, tracks, impressions, interactions, c, clk)

		result, err := d.Dispatch(context.Background(), principal, &entity.RecommendationRequest{
			Kind: entity.KindUserPersonal, UserID: "user-1", Limit: 10,
		})
		require.NoError(t, err)
		require.Len(t, result.Tracks, 2)
		assert.NotEmpty(t, result.Tracks[0].RecommendationID)
		assert.NotEmpty(t, result.Tracks[1].RecommendationID)
		assert.NotEqual(t, result.Tracks[0].RecommendationID, result.Tracks[1].RecommendationID)

		// Drain the impression buffer's flush loop.
		require.Eventually(t, func() bool {
			return len(impressions.created) == 2
		}, time.Second, time.Millisecond)
		got := map[string]string{}
		for _, imp := range impressions.created {
			got[imp.TrackID] = imp.RecommendationID
		}
		assert.Equal(t, result.Tracks[0].RecommendationID, got["t1"])
		assert.Equal(t, result.Tracks[1].RecommendationID, got["t2"])
	})
}

func TestRecommendationDispatcher_Feedback(t *testing.T) {
	principal := &auth.Principal{UserID: "user-1", OrgID: "org-1"}

	t.Run("records an interaction on first submission", func(t *testing.T) {
		tracks := &fakeTrackRepo{tracks: map[string]*entity.Track{"t1": {ID: "t1", DurationMs: 200000}}}
		impressions := &fakeImpressionRepo{byRecommendation: map[string]*entity.Impression{
			"rec-1": {ID: "imp-1", UserID: "user-1", TrackID: "t1"},
		}}
		interactions := &fakeInteractionRepo{}
		c := cache.NewMemoryCache(time.Hour)
		defer c.Close()
		d := testDispatcher(&fakeEngine{}, tracks, impressions, interactions, c, clock.Real())

		err := d.Feedback(context.Background(), principal, &entity.Feedback{
			RecommendationID: "rec-1",
			Signal:           entity.FeedbackSignalAccept,
		})

		require.NoError(t, err)
		require.Len(t, interactions.created, 1)
		assert.Equal(t, entity.InteractionLike, interactions.created[0].Type)
	})

	t.Run("is a no-op on a duplicate signal for the same recommendation", func(t *testing.T) {
		tracks := &fakeTrackRepo{tracks: map[string]*entity.Track{"t1": {ID: "t1", DurationMs: 200000}}}
		impressions := &fakeImpressionRepo{byRecommendation: map[string]*entity.Impression{
			"rec-1": {ID: "imp-1", UserID: "user-1", TrackID: "t1"},
		}}
		interactions := &fakeInteractionRepo{}
		c := cache.NewMemoryCache(time.Hour)
		defer c.Close()
		d := testDispatcher(&fakeEngine{}, tracks, impressions, interactions, c, clock.Real())

		fb := &entity.Feedback{RecommendationID: "rec-1", Signal: entity.FeedbackSignalAccept}
		require.NoError(t, d.Feedback(context.Background(), principal, fb))
		require.NoError(t, d.Feedback(context.Background(), principal, fb))

		assert.Len(t, interactions.created, 1)
	})

	t.Run("rejects feedback for a recommendation owned by another user", func(t *testing.T) {
		tracks := &fakeTrackRepo{tracks: map[string]*entity.Track{"t1": {ID: "t1", DurationMs: 200000}}}
		impressions := &fakeImpressionRepo{byRecommendation: map[string]*entity.Impression{
			"rec-1": {ID: "imp-1", UserID: "someone-else", TrackID: "t1"},
		}}
		interactions := &fakeInteractionRepo{}
		c := cache.NewMemoryCache(time.Hour)
		defer c.Close()
		d := testDispatcher(&fakeEngine{}, tracks, impressions, interactions, c, clock.Real())

		err := d.Feedback(context.Background(), principal, &entity.Feedback{
			RecommendationID: "rec-1",
			Signal:           entity.FeedbackSignalAccept,
		})

		assert.Error(t, err)
		assert.Empty(t, interactions.created)
	})
}
