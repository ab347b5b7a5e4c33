package usecase

import (
	"github.com/pannpers/go-apperr/apperr"
	"github.com/pannpers/go-apperr/apperr/codes"
	"github.com/tunetrail/backend/internal/entity"
)

// StaticPlanCatalog is the built-in plan table. Self-hosted deployments
// never consult it directly for the actual tier applied to a principal
// (the edition flag forces enterprise at credential verification time),
// but it remains the source of truth for feature/quota shape across both
// editions.
type StaticPlanCatalog struct {
	table map[entity.Plan]*entity.PlanLimits
}

func unlimited() *int64 { return nil }

func limit(n int64) *int64 { return &n }

// NewStaticPlanCatalog builds the plan table baked into the binary. A
// hosted deployment that needs tenant-specific overrides layers
// Organization.FeatureOverrides on top of these defaults at the call site
// rather than mutating the catalog itself.
func NewStaticPlanCatalog() *StaticPlanCatalog {
	return &StaticPlanCatalog{
		table: map[entity.Plan]*entity.PlanLimits{
			entity.PlanFree: {
				Plan: entity.PlanFree,
				Features: map[string]bool{
					"advanced_analytics":       false,
					"api_key_usage_analytics":  false,
				},
				Quotas: map[string][]entity.QuotaLimit{
					"api_calls_per_minute":   {{Window: entity.WindowMinute, Limit: limit(60)}},
					"audio_analysis_per_day": {{Window: entity.WindowDay, Limit: limit(10)}},
				},
			},
			entity.PlanStarter: {
				Plan: entity.PlanStarter,
				Features: map[string]bool{
					"advanced_analytics":      false,
					"api_key_usage_analytics": true,
				},
				Quotas: map[string][]entity.QuotaLimit{
					"api_calls_per_minute":   {{Window: entity.WindowMinute, Limit: limit(300)}},
					"audio_analysis_per_day": {{Window: entity.WindowDay, Limit: limit(100)}},
				},
			},
			entity.PlanPro: {
				Plan: entity.PlanPro,
				Features: map[string]bool{
					"advanced_analytics":      true,
					"api_key_usage_analytics": true,
				},
				Quotas: map[string][]entity.QuotaLimit{
					"api_calls_per_minute":   {{Window: entity.WindowMinute, Limit: limit(1200)}},
					"audio_analysis_per_day": {{Window: entity.WindowDay, Limit: limit(1000)}},
				},
			},
			entity.PlanEnterprise: {
				Plan: entity.PlanEnterprise,
				Features: map[string]bool{
					"advanced_analytics":      true,
					"api_key_usage_analytics": true,
				},
				Quotas: map[string][]entity.QuotaLimit{
					"api_calls_per_minute":   {{Window: entity.WindowMinute, Limit: unlimited()}},
					"audio_analysis_per_day": {{Window: entity.WindowDay, Limit: unlimited()}},
				},
			},
		},
	}
}

func (c *StaticPlanCatalog) Limits(plan entity.Plan) (*entity.PlanLimits, error) {
	limits, ok := c.table[plan]
	if !ok {
		return nil, apperr.New(codes.NotFound, "plan not found in plan table")
	}
	return limits, nil
}

var _ entity.PlanCatalog = (*StaticPlanCatalog)(nil)
