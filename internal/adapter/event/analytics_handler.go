// Package event provides Watermill event handlers for the consumer process.
package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/pannpers/go-logging/logging"
	"github.com/tunetrail/backend/internal/infrastructure/messaging"
)

// AnalyticsHandler consumes the impression, interaction, and session
// lifecycle events published by the serving plane and hands them off to the
// offline feature pipeline. Model training and feature extraction on this
// stream are out of scope for the serving plane itself; this handler's job
// ends at a durably logged, structured record of what crossed the boundary.
type AnalyticsHandler struct {
	logger *logging.Logger
}

// NewAnalyticsHandler creates an AnalyticsHandler.
func NewAnalyticsHandler(logger *logging.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{logger: logger}
}

// HandleImpression processes an impression.recorded.v1 event.
func (h *AnalyticsHandler) HandleImpression(msg *message.Message) error {
	ctx := context.Background()

	var data messaging.ImpressionRecordedData
	if err := messaging.ParseCloudEventData(msg, &data); err != nil {
		h.logger.Error(ctx, "failed to parse impression.recorded event", err)
		return fmt.Errorf("parse impression.recorded event: %w", err)
	}

	h.logger.Info(ctx, "impression recorded",
		slog.String("impression_id", data.ImpressionID),
		slog.String("user_id", data.UserID),
		slog.String("track_id", data.TrackID),
		slog.String("recommendation_id", data.RecommendationID),
		slog.String("model_type", data.ModelType),
		slog.Float64("score", data.Score),
		slog.Int("position", data.Position),
	)
	return nil
}

// HandleInteraction processes an interaction.recorded.v1 event.
func (h *AnalyticsHandler) HandleInteraction(msg *message.Message) error {
	ctx := context.Background()

	var data messaging.InteractionRecordedData
	if err := messaging.ParseCloudEventData(msg, &data); err != nil {
		h.logger.Error(ctx, "failed to parse interaction.recorded event", err)
		return fmt.Errorf("parse interaction.recorded event: %w", err)
	}

	h.logger.Info(ctx, "interaction recorded",
		slog.String("interaction_id", data.InteractionID),
		slog.String("user_id", data.UserID),
		slog.String("track_id", data.TrackID),
		slog.String("type", data.Type),
		slog.String("session_id", data.SessionID),
	)
	return nil
}

// HandleSessionExpired processes a session.expired.v1 event.
func (h *AnalyticsHandler) HandleSessionExpired(msg *message.Message) error {
	ctx := context.Background()

	var data messaging.SessionExpiredData
	if err := messaging.ParseCloudEventData(msg, &data); err != nil {
		h.logger.Error(ctx, "failed to parse session.expired event", err)
		return fmt.Errorf("parse session.expired event: %w", err)
	}

	h.logger.Info(ctx, "session expired",
		slog.String("session_id", data.SessionID),
		slog.String("user_id", data.UserID),
		slog.Int64("total_duration_ms", data.TotalDurationMs),
		slog.Int("tracks_played", data.TracksPlayed),
		slog.Int("tracks_skipped", data.TracksSkipped),
		slog.Float64("completion_rate", data.CompletionRate),
	)
	return nil
}
