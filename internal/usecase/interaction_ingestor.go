package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/pannpers/go-apperr/apperr"
	"github.com/pannpers/go-apperr/apperr/codes"
	"github.com/pannpers/go-logging/logging"
	"github.com/tunetrail/backend/internal/entity"
	"github.com/tunetrail/backend/internal/infrastructure/auth"
	"github.com/tunetrail/backend/internal/infrastructure/messaging"
	"github.com/tunetrail/backend/pkg/cache"
)

// IngestResult carries the outcome of a single Ingest call, including
// whether the requested type was silently downgraded.
type IngestResult struct {
	Interaction        *entity.Interaction
	Downgraded         bool
	CompletionOverride *bool
}

// InteractionIngestor validates and persists feedback events against their
// referenced Track, Session, and Impression.
type InteractionIngestor struct {
	interactions entity.InteractionRepository
	impressions  entity.ImpressionRepository
	tracks       entity.TrackRepository
	sessions     entity.SessionRepository
	cache        cache.Cache
	publisher    message.Publisher
	logger       *logging.Logger
}

// NewInteractionIngestor builds an InteractionIngestor. publisher may be
// nil, in which case interaction events are not fanned out (used by
// tests that don't exercise the offline-learner telemetry path).
func NewInteractionIngestor(
	interactions entity.InteractionRepository,
	impressions entity.ImpressionRepository,
	tracks entity.TrackRepository,
	sessions entity.SessionRepository,
	c cache.Cache,
	publisher message.Publisher,
	logger *logging.Logger,
) *InteractionIngestor {
	return &InteractionIngestor{
		interactions: interactions,
		impressions:  impressions,
		tracks:       tracks,
		sessions:     sessions,
		cache:        c,
		publisher:    publisher,
		logger:       logger,
	}
}

// Ingest validates and appends a single interaction event.
//
// # Possible errors
//
//   - InvalidArgument: If the event fails a hard validation rule.
//   - entity.ErrStaleEvent: If ClientSeq is not greater than the session's last accepted sequence.
//   - PermissionDenied: If session_id or recommendation_id do not belong to the principal.
func (ing *InteractionIngestor) Ingest(ctx context.Context, principal *auth.Principal, params *entity.NewInteraction) (*IngestResult, error) {
	if !params.Type.Valid() {
		return nil, apperr.New(codes.InvalidArgument, "unknown interaction type")
	}

	track, err := ing.tracks.Get(ctx, params.TrackID)
	if err != nil {
		return nil, err
	}

	if params.PlayDurationMs != nil {
		if *params.PlayDurationMs < 0 || *params.PlayDurationMs > 2*track.DurationMs {
			return nil, apperr.New(codes.InvalidArgument, "play_duration_ms out of bounds",
				slog.Int64("play_duration_ms", *params.PlayDurationMs), slog.Int64("track_duration_ms", track.DurationMs))
		}
	}

	if params.SessionID != nil {
		session, err := ing.sessions.Get(ctx, *params.SessionID)
		if err != nil {
			return nil, err
		}
		if session.UserID != principal.UserID {
			return nil, apperr.New(codes.PermissionDenied, "session does not belong to principal")
		}
		if err := ing.checkSequence(*params.SessionID, params.ClientSeq); err != nil {
			return nil, err
		}
	}

	if params.RecommendationID != nil {
		impression, err := ing.impressions.GetByRecommendation(ctx, *params.RecommendationID)
		if err == nil && impression.UserID != principal.UserID {
			return nil, apperr.New(codes.PermissionDenied, "recommendation does not belong to principal")
		}
	}

	result := &IngestResult{}
	effectiveType := params.Type

	switch params.Type {
	case entity.InteractionComplete:
		threshold := int64(0.8 * float64(track.DurationMs))
		if params.PlayDurationMs == nil || *params.PlayDurationMs < threshold {
			effectiveType = entity.InteractionPlay
			override := false
			result.CompletionOverride = &override
			result.Downgraded = true
		}
	case entity.InteractionSkip:
		threshold := int64(0.5 * float64(track.DurationMs))
		if params.PlayDurationMs == nil || *params.PlayDurationMs >= threshold {
			effectiveType = entity.InteractionPlay
			result.Downgraded = true
		}
	}

	create := *params
	create.Type = effectiveType

	interaction, err := ing.interactions.Create(ctx, &create)
	if err != nil {
		return nil, err
	}
	result.Interaction = interaction

	ing.publishRecorded(ctx, interaction)

	if params.RecommendationID != nil {
		if err := ing.flipImpression(ctx, principal, *params.RecommendationID, effectiveType); err != nil {
			ing.logger.Error(ctx, "failed to flip impression flag", err,
				slog.String("recommendationID", *params.RecommendationID))
		}
	}

	return result, nil
}

// publishRecorded fans interaction out to the offline learner's telemetry
// pipeline. Best-effort: a publish failure is logged, never surfaced,
// since the write already landed durably.
func (ing *InteractionIngestor) publishRecorded(ctx context.Context, interaction *entity.Interaction) {
	if ing.publisher == nil {
		return
	}

	data := messaging.InteractionRecordedData{
		InteractionID: interaction.ID,
		UserID:        interaction.UserID,
		TrackID:       interaction.TrackID,
		Type:          string(interaction.Type),
	}
	if interaction.SessionID != nil {
		data.SessionID = *interaction.SessionID
	}

	msg, err := messaging.NewCloudEvent(messaging.EventTypeInteractionRecorded, data)
	if err != nil {
		ing.logger.Error(ctx, "failed to build interaction.recorded event", err)
		return
	}
	if err := ing.publisher.Publish(messaging.TopicInteractions, msg); err != nil {
		ing.logger.Error(ctx, "failed to publish interaction.recorded event", err,
			slog.String("interactionID", interaction.ID))
	}
}

// checkSequence enforces per-session FIFO ordering: ClientSeq must exceed
// the last accepted sequence, guarded by a compare-and-swap so concurrent
// out-of-order arrivals cannot both advance the counter.
func (ing *InteractionIngestor) checkSequence(sessionID string, clientSeq int64) error {
	key := "interaction:seq:" + sessionID
	for {
		cur, ok := ing.cache.Get(key)
		var curSeq int64
		if ok {
			curSeq, _ = cur.(int64)
		}
		if clientSeq <= curSeq {
			return entity.ErrStaleEvent
		}

		var old any
		if ok {
			old = curSeq
		}
		swapped, err := ing.cache.CompareAndSwap(key, old, clientSeq, 0)
		if err != nil {
			return fmt.Errorf("check interaction sequence: %w", err)
		}
		if swapped {
			return nil
		}
		// Lost the race to a concurrent event; re-read and retry the check.
	}
}

func (ing *InteractionIngestor) flipImpression(ctx context.Context, principal *auth.Principal, recommendationID string, effectiveType entity.InteractionType) error {
	impression, err := ing.impressions.GetByRecommendation(ctx, recommendationID)
	if err != nil {
		return err
	}
	if impression.UserID != principal.UserID {
		return apperr.New(codes.PermissionDenied, "recommendation does not belong to principal")
	}

	var flag entity.ImpressionFeedback
	switch effectiveType {
	case entity.InteractionPlay, entity.InteractionComplete:
		flag = entity.FeedbackPlayed
	case entity.InteractionLike:
		flag = entity.FeedbackLiked
	default:
		flag = entity.FeedbackClicked
	}

	_, err = ing.impressions.SetFlag(ctx, impression.ID, flag)
	return err
}

// IngestBatch processes events in order, stopping at the first hard error.
// Soft downgrades do not stop the batch. Returns the count of events
// accepted (including downgraded ones).
func (ing *InteractionIngestor) IngestBatch(ctx context.Context, principal *auth.Principal, events []*entity.NewInteraction) (accepted int, err error) {
	for _, event := range events {
		if _, err := ing.Ingest(ctx, principal, event); err != nil {
			return accepted, err
		}
		accepted++
	}
	return accepted, nil
}
