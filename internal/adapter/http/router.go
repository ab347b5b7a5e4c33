package http

import (
	"net/http"

	"github.com/tunetrail/backend/internal/entity"
	"github.com/tunetrail/backend/internal/usecase"
	"github.com/tunetrail/backend/pkg/clock"
)

// Deps carries every dependency the router wires into a handler plus a
// middleware chain. Each field is a constructed use case or the credential
// verifier; Router itself holds no business logic.
type Deps struct {
	Auth        *usecase.AuthUseCase
	ApiKeys     *usecase.ApiKeyUseCase
	Dispatcher  *usecase.RecommendationDispatcher
	Sessions    *usecase.SessionManager
	Ingestor    *usecase.InteractionIngestor
	Impressions *usecase.ImpressionBuffer
	Orgs        entity.OrganizationRepository
	Users       entity.UserRepository
	Gate        *usecase.QuotaGate
	Telemetry   *usecase.TelemetryUseCase
	Verifier    verifier
	Clock       clock.Clock
}

var (
	starterAndUp = []entity.Plan{entity.PlanStarter, entity.PlanPro, entity.PlanEnterprise}
	proAndUp     = []entity.Plan{entity.PlanPro, entity.PlanEnterprise}
)

// NewRouter builds the complete API Surface (spec.md §6) on a
// pattern-based net/http.ServeMux (Go 1.22+), applying the documented
// middleware chain per route: RequireAuth → RequireGate → RequireScope →
// handler. Tracing and access-log wrapping are applied once around the
// whole mux by internal/infrastructure/server, not here.
func NewRouter(d *Deps) http.Handler {
	mux := http.NewServeMux()

	authHandler := NewAuthHandler(d.Auth)
	mux.HandleFunc("POST /api/v1/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/v1/auth/login", authHandler.Login)

	requireAuth := RequireAuth(d.Verifier)

	meHandler := NewMeHandler(d.Users)
	mux.Handle("GET /api/v1/me", Chain(http.HandlerFunc(meHandler.Get), requireAuth))

	apiCallsRate := func(operation string) func(http.Handler) http.Handler {
		return RequireGate(d.Gate, &entity.ResourceDescriptor{Operation: operation, QuotaBucket: "api_calls_per_minute"})
	}

	apiKeys := NewApiKeyHandler(d.ApiKeys)
	apiCallsGate := RequireGate(d.Gate, &entity.ResourceDescriptor{
		Operation:   "apikeys.manage",
		QuotaBucket: "api_calls_per_minute",
	})
	mux.Handle("POST /api/v1/api-keys", Chain(http.HandlerFunc(apiKeys.Issue), requireAuth, apiCallsGate, RequireScope("apikeys:manage")))
	mux.Handle("GET /api/v1/api-keys", Chain(http.HandlerFunc(apiKeys.List), requireAuth, apiCallsGate, RequireScope("apikeys:manage")))
	mux.Handle("POST /api/v1/api-keys/{id}/rotate", Chain(http.HandlerFunc(apiKeys.Rotate), requireAuth, apiCallsGate, RequireScope("apikeys:manage")))
	mux.Handle("POST /api/v1/api-keys/{id}/revoke", Chain(http.HandlerFunc(apiKeys.Revoke), requireAuth, apiCallsGate, RequireScope("apikeys:manage")))
	mux.Handle("GET /api/v1/api-keys/{id}/usage", Chain(http.HandlerFunc(apiKeys.Usage), requireAuth,
		RequireGate(d.Gate, &entity.ResourceDescriptor{
			Operation:   "apikeys.usage",
			FeatureFlag: "api_key_usage_analytics",
			QuotaBucket: "api_calls_per_minute",
		}), RequireScope("apikeys:manage")))

	recs := NewRecommendationHandler(d.Dispatcher)
	readScope := RequireScope("recommendations:read")
	mux.Handle("GET /api/v1/recommendations", Chain(http.HandlerFunc(recs.Personal), requireAuth,
		RequireGate(d.Gate, &entity.ResourceDescriptor{Operation: "recommendations.personal", QuotaBucket: "api_calls_per_minute"}), readScope))
	mux.Handle("GET /api/v1/recommendations/similar/{track_id}", Chain(http.HandlerFunc(recs.Similar), requireAuth,
		RequireGate(d.Gate, &entity.ResourceDescriptor{Operation: "recommendations.similar", QuotaBucket: "api_calls_per_minute"}), readScope))
	mux.Handle("GET /api/v1/ml/daily-mix", Chain(http.HandlerFunc(recs.DailyMix), requireAuth,
		RequireGate(d.Gate, &entity.ResourceDescriptor{Operation: "ml.daily_mix", RequiredPlans: starterAndUp, QuotaBucket: "api_calls_per_minute"}), readScope))
	mux.Handle("POST /api/v1/ml/radio", Chain(http.HandlerFunc(recs.Radio), requireAuth,
		RequireGate(d.Gate, &entity.ResourceDescriptor{Operation: "ml.radio", RequiredPlans: starterAndUp, QuotaBucket: "api_calls_per_minute"}), readScope))
	mux.Handle("GET /api/v1/ml/taste-profile", Chain(http.HandlerFunc(recs.TasteProfile), requireAuth,
		RequireGate(d.Gate, &entity.ResourceDescriptor{
			Operation:              "ml.taste_profile",
			RequiredPlans:          proAndUp,
			QuotaBucket:            "api_calls_per_minute",
			FailClosedOnCacheError: true,
		}), readScope))
	mux.Handle("POST /api/v1/ml/recommendations/feedback", Chain(http.HandlerFunc(recs.Feedback), requireAuth,
		RequireGate(d.Gate, &entity.ResourceDescriptor{Operation: "ml.feedback", QuotaBucket: "api_calls_per_minute"}),
		RequireScope("interactions:write")))

	sessions := NewSessionHandler(d.Sessions)
	writeSessionsScope := RequireScope("sessions:write")
	mux.Handle("POST /api/v1/sessions/start", Chain(http.HandlerFunc(sessions.Start), requireAuth, apiCallsRate("sessions.start"), writeSessionsScope))
	mux.Handle("PUT /api/v1/sessions/{id}/heartbeat", Chain(http.HandlerFunc(sessions.Heartbeat), requireAuth, apiCallsRate("sessions.heartbeat"), writeSessionsScope))
	mux.Handle("POST /api/v1/sessions/{id}/end", Chain(http.HandlerFunc(sessions.End), requireAuth, apiCallsRate("sessions.end"), writeSessionsScope))

	interactions := NewInteractionHandler(d.Ingestor)
	writeInteractionsScope := RequireScope("interactions:write")
	mux.Handle("POST /api/v1/interactions", Chain(http.HandlerFunc(interactions.Create), requireAuth, apiCallsRate("interactions.create"), writeInteractionsScope))
	mux.Handle("POST /api/v1/interactions/batch", Chain(http.HandlerFunc(interactions.Batch), requireAuth, apiCallsRate("interactions.batch"), writeInteractionsScope))

	impressions := NewImpressionHandler(d.Impressions, d.Clock)
	mux.Handle("POST /api/v1/impressions/recommendations", Chain(http.HandlerFunc(impressions.Record), requireAuth, apiCallsRate("impressions.record"), writeInteractionsScope))

	telemetry := NewTelemetryHandler(d.Telemetry)
	mux.Handle("POST /api/v1/telemetry/search", Chain(http.HandlerFunc(telemetry.SearchQuery), requireAuth, apiCallsRate("telemetry.search"), writeInteractionsScope))
	mux.Handle("POST /api/v1/telemetry/content-views", Chain(http.HandlerFunc(telemetry.ContentView), requireAuth, apiCallsRate("telemetry.content_view"), writeInteractionsScope))
	mux.Handle("POST /api/v1/telemetry/player-events", Chain(http.HandlerFunc(telemetry.PlayerEvent), requireAuth, apiCallsRate("telemetry.player_event"), writeInteractionsScope))

	orgAdmin := NewOrganizationHandler(d.Orgs, d.Users)
	adminScope := RequireScope("org:admin")
	mux.Handle("GET /api/v1/organizations/{id}", Chain(http.HandlerFunc(orgAdmin.Get), requireAuth, apiCallsRate("organizations.get"), adminScope))
	mux.Handle("PATCH /api/v1/organizations/{id}", Chain(http.HandlerFunc(orgAdmin.Update), requireAuth, apiCallsRate("organizations.update"), adminScope))
	mux.Handle("GET /api/v1/organizations/{id}/members", Chain(http.HandlerFunc(orgAdmin.Members), requireAuth, apiCallsRate("organizations.members"), adminScope))

	return mux
}
