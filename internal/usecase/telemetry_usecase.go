package usecase

import (
	"context"

	"github.com/tunetrail/backend/internal/entity"
)

// TelemetryUseCase records the append-only analytics streams emitted by the
// catalog and player surfaces outside of the Interaction/Impression path:
// search queries, content views, and player control events. None of these
// feed back into ranking; they exist purely for offline analysis.
type TelemetryUseCase struct {
	repo entity.TelemetryRepository
}

// NewTelemetryUseCase builds a TelemetryUseCase.
func NewTelemetryUseCase(repo entity.TelemetryRepository) *TelemetryUseCase {
	return &TelemetryUseCase{repo: repo}
}

// RecordSearchQuery records a catalog search.
func (uc *TelemetryUseCase) RecordSearchQuery(ctx context.Context, params *entity.NewSearchQuery) (*entity.SearchQuery, error) {
	return uc.repo.RecordSearchQuery(ctx, params)
}

// RecordContentView records a non-playback content view.
func (uc *TelemetryUseCase) RecordContentView(ctx context.Context, params *entity.NewContentView) (*entity.ContentView, error) {
	return uc.repo.RecordContentView(ctx, params)
}

// RecordPlayerEvent records a client-side playback control event.
func (uc *TelemetryUseCase) RecordPlayerEvent(ctx context.Context, params *entity.NewPlayerEvent) (*entity.PlayerEvent, error) {
	return uc.repo.RecordPlayerEvent(ctx, params)
}
