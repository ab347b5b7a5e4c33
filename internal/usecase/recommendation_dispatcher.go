package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"github.com/pannpers/go-apperr/apperr"
	"github.com/pannpers/go-apperr/apperr/codes"
	"github.com/tunetrail/backend/internal/entity"
	"github.com/tunetrail/backend/internal/infrastructure/auth"
	"github.com/tunetrail/backend/pkg/cache"
	"github.com/tunetrail/backend/pkg/clock"
	"github.com/tunetrail/backend/pkg/idgen"
	"golang.org/x/sync/singleflight"
)

// recommendationCacheEntry is what the Dispatcher stores against a request
// fingerprint. It is kept as a plain struct rather than a serialized blob
// since the cache backing it is in-process.
type recommendationCacheEntry struct {
	result     *entity.RecommendationResult
	producedAt time.Time
}

// RecommendationDispatcher resolves a RecommendationRequest to a ranked
// result, fronting the external engine with a cache and a single-flight
// group so concurrent identical requests collapse into one upstream call.
// On an upstream failure it serves a stale cached result rather than
// failing the request outright, as long as the entry is within
// staleWhileError of being produced.
type RecommendationDispatcher struct {
	cache       cache.Cache
	engine      entity.RecommendationEngine
	impressions *ImpressionBuffer
	tracks      entity.TrackRepository
	ingestor    *InteractionIngestor
	clock       clock.Clock
	ids         idgen.Generator
	group       singleflight.Group

	cacheTTL            time.Duration
	staleWhileError     time.Duration
	defaultTimeout      time.Duration
	tasteProfileTimeout time.Duration
}

// NewRecommendationDispatcher builds a RecommendationDispatcher.
func NewRecommendationDispatcher(
	c cache.Cache,
	engine entity.RecommendationEngine,
	impressions *ImpressionBuffer,
	tracks entity.TrackRepository,
	ingestor *InteractionIngestor,
	clk clock.Clock,
	ids idgen.Generator,
	cacheTTL, staleWhileError, defaultTimeout, tasteProfileTimeout time.Duration,
) *RecommendationDispatcher {
	return &RecommendationDispatcher{
		cache:               c,
		engine:              engine,
		impressions:         impressions,
		tracks:              tracks,
		ingestor:            ingestor,
		clock:               clk,
		ids:                 ids,
		cacheTTL:            cacheTTL,
		staleWhileError:     staleWhileError,
		defaultTimeout:      defaultTimeout,
		tasteProfileTimeout: tasteProfileTimeout,
	}
}

// Dispatch resolves req, serving a fresh cache hit directly, collapsing
// concurrent identical requests through a single upstream call, and falling
// back to a stale cached result if the engine is unavailable.
//
// # Possible errors
//
//   - entity.ErrUpstreamUnavailable: If the engine fails and no usable stale entry exists.
func (d *RecommendationDispatcher) Dispatch(ctx context.Context, principal *auth.Principal, req *entity.RecommendationRequest) (*entity.RecommendationResult, error) {
	key := d.fingerprint(req)

	if entry, ok := d.freshEntry(key); ok {
		return entry.result, nil
	}

	resultAny, err, _ := d.group.Do(key, func() (any, error) {
		if entry, ok := d.freshEntry(key); ok {
			return entry.result, nil
		}

		result, err := d.callEngine(ctx, req)
		if err != nil {
			if stale, ok := d.staleEntry(key); ok {
				return stale.result, nil
			}
			return nil, err
		}

		d.rank(ctx, result, req)
		d.assignRecommendationIDs(result)
		d.cache.Set(key, &recommendationCacheEntry{result: result, producedAt: d.clock.Now()}, d.staleWhileError)
		d.enqueueImpressions(principal, req, result)
		return result, nil
	})
	if err != nil {
		return nil, err
	}

	return resultAny.(*entity.RecommendationResult), nil
}

// fingerprint derives a cache key from the fields of req that determine its
// result set.
func (d *RecommendationDispatcher) fingerprint(req *entity.RecommendationRequest) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%d|%s", req.Kind, req.UserID, req.Seed, req.Limit, req.ModelTierHint)
	return "recommendation:" + hex.EncodeToString(h.Sum(nil))
}

func (d *RecommendationDispatcher) freshEntry(key string) (*recommendationCacheEntry, bool) {
	v, ok := d.cache.Get(key)
	if !ok {
		return nil, false
	}
	entry, ok := v.(*recommendationCacheEntry)
	if !ok {
		return nil, false
	}
	if d.clock.Now().Sub(entry.producedAt) > d.cacheTTL {
		return nil, false
	}
	return entry, true
}

func (d *RecommendationDispatcher) staleEntry(key string) (*recommendationCacheEntry, bool) {
	v, ok := d.cache.Get(key)
	if !ok {
		return nil, false
	}
	entry, ok := v.(*recommendationCacheEntry)
	if !ok {
		return nil, false
	}
	if d.clock.Now().Sub(entry.producedAt) > d.staleWhileError {
		return nil, false
	}
	return entry, true
}

func (d *RecommendationDispatcher) callEngine(ctx context.Context, req *entity.RecommendationRequest) (*entity.RecommendationResult, error) {
	timeout := d.defaultTimeout
	if req.Kind == entity.KindTasteProfile {
		timeout = d.tasteProfileTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := d.engine.Recommend(callCtx, req)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// rank imposes a deterministic order on result.Tracks: score descending,
// ties broken by the track's catalog creation time ascending, remaining
// ties broken by track_id ascending.
func (d *RecommendationDispatcher) rank(ctx context.Context, result *entity.RecommendationResult, req *entity.RecommendationRequest) {
	ids := make([]string, 0, len(result.Tracks))
	for _, t := range result.Tracks {
		ids = append(ids, t.TrackID)
	}
	tracks, err := d.tracks.GetBatch(ctx, ids)
	createdAt := make(map[string]time.Time, len(tracks))
	if err == nil {
		for _, t := range tracks {
			createdAt[t.ID] = t.CreatedAt
		}
	}

	sort.SliceStable(result.Tracks, func(i, j int) bool {
		a, b := result.Tracks[i], result.Tracks[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		ca, cb := createdAt[a.TrackID], createdAt[b.TrackID]
		if !ca.Equal(cb) {
			return ca.Before(cb)
		}
		return a.TrackID < b.TrackID
	})

	if req.Limit > 0 && len(result.Tracks) > req.Limit {
		result.Tracks = result.Tracks[:req.Limit]
	}
}

// assignRecommendationIDs mints the feedback token for each track in a
// freshly computed result. Assigned once per engine call, before the
// result is cached, so repeat cache hits and the feedback loop agree on
// the same id for the lifetime of the cache entry.
func (d *RecommendationDispatcher) assignRecommendationIDs(result *entity.RecommendationResult) {
	for i := range result.Tracks {
		result.Tracks[i].RecommendationID = d.ids.New()
	}
}

func (d *RecommendationDispatcher) enqueueImpressions(principal *auth.Principal, req *entity.RecommendationRequest, result *entity.RecommendationResult) {
	if d.impressions == nil {
		return
	}
	now := d.clock.Now()
	for i, t := range result.Tracks {
		d.impressions.Enqueue(&entity.NewImpression{
			UserID:           principal.UserID,
			TrackID:          t.TrackID,
			RecommendationID: t.RecommendationID,
			ModelType:        result.ModelType,
			ModelVersion:     result.ModelVersion,
			Score:            t.Score,
			Position:         i + 1,
			Context:          string(req.Kind),
			ShownAt:          now,
		})
	}
}

// feedbackInteractionType maps a FeedbackSignal to the InteractionType
// recorded against it.
func feedbackInteractionType(signal entity.FeedbackSignal) entity.InteractionType {
	switch signal {
	case entity.FeedbackSignalAccept:
		return entity.InteractionLike
	case entity.FeedbackSignalReject:
		return entity.InteractionDislike
	case entity.FeedbackSignalPlayed:
		return entity.InteractionPlay
	case entity.FeedbackSignalSaved:
		return entity.InteractionSave
	case entity.FeedbackSignalDismissed:
		return entity.InteractionSkip
	default:
		return entity.InteractionPlay
	}
}

// Feedback records fb against the recommendation it names. A duplicate
// {recommendation_id, signal} submission is a no-op: the idempotency guard
// is checked before any Interaction is created, so retried client feedback
// never produces a second row.
//
// # Possible errors
//
//   - NotFound: If recommendation_id does not reference a recorded impression.
//   - PermissionDenied: If the recommendation does not belong to principal.
func (d *RecommendationDispatcher) Feedback(ctx context.Context, principal *auth.Principal, fb *entity.Feedback) error {
	idempotencyKey := fmt.Sprintf("feedback:%s:%s", fb.RecommendationID, fb.Signal)
	swapped, err := d.cache.CompareAndSwap(idempotencyKey, nil, true, 24*time.Hour)
	if err != nil {
		return fmt.Errorf("check feedback idempotency: %w", err)
	}
	if !swapped {
		return nil
	}

	impression, err := d.impressions.repo.GetByRecommendation(ctx, fb.RecommendationID)
	if err != nil {
		return err
	}
	if impression.UserID != principal.UserID {
		return apperr.New(codes.PermissionDenied, "recommendation does not belong to principal")
	}

	_, err = d.ingestor.Ingest(ctx, principal, &entity.NewInteraction{
		UserID:           principal.UserID,
		TrackID:          impression.TrackID,
		Type:             feedbackInteractionType(fb.Signal),
		RecommendationID: &fb.RecommendationID,
		Source:           "recommendation_feedback",
	})
	return err
}
