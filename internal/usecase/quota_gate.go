package usecase

import (
	"context"
	"fmt"

	"github.com/tunetrail/backend/internal/entity"
	"github.com/tunetrail/backend/internal/infrastructure/auth"
	"github.com/tunetrail/backend/pkg/cache"
	"github.com/tunetrail/backend/pkg/clock"
)

// QuotaGate is a three-layer admission check evaluated in strict order for
// every authenticated request: plan gate, then feature gate, then quota
// gate. The first layer that denies short-circuits the remaining ones.
type QuotaGate struct {
	catalog entity.PlanCatalog
	cache   cache.Cache
	clock   clock.Clock
}

// NewQuotaGate builds a QuotaGate.
func NewQuotaGate(catalog entity.PlanCatalog, c cache.Cache, clk clock.Clock) *QuotaGate {
	return &QuotaGate{catalog: catalog, cache: c, clock: clk}
}

// Check evaluates desc against principal's plan, its feature set (plan
// defaults layered under org-level overrides), and its quota buckets.
func (g *QuotaGate) Check(ctx context.Context, principal *auth.Principal, desc *entity.ResourceDescriptor) (*entity.GateDecision, error) {
	limits, err := g.catalog.Limits(principal.Plan)
	if err != nil {
		return nil, err
	}

	if decision, denied := g.checkPlan(principal, desc, limits); denied {
		return decision, nil
	}

	if decision, denied := g.checkFeature(principal, desc, limits); denied {
		return decision, nil
	}

	return g.checkQuota(principal, desc, limits)
}

func (g *QuotaGate) checkPlan(principal *auth.Principal, desc *entity.ResourceDescriptor, limits *entity.PlanLimits) (*entity.GateDecision, bool) {
	if len(desc.RequiredPlans) == 0 {
		return nil, false
	}
	for _, p := range desc.RequiredPlans {
		if principal.Plan.AtLeast(p) {
			return nil, false
		}
	}
	return &entity.GateDecision{
		Allowed:       false,
		Reason:        entity.DenyPlanUpgradeRequired,
		CurrentPlan:   principal.Plan,
		RequiredPlans: desc.RequiredPlans,
		UpgradeURL:    "https://tunetrail.example/upgrade",
	}, true
}

func (g *QuotaGate) checkFeature(principal *auth.Principal, desc *entity.ResourceDescriptor, limits *entity.PlanLimits) (*entity.GateDecision, bool) {
	if desc.FeatureFlag == "" {
		return nil, false
	}

	enabled, ok := limits.Features[desc.FeatureFlag]
	if override, has := principal.OrgFeatureOverrides[desc.FeatureFlag]; has {
		enabled, ok = override, true
	}
	if ok && enabled {
		return nil, false
	}

	return &entity.GateDecision{
		Allowed:            false,
		Reason:             entity.DenyFeatureNotInPlan,
		CurrentPlan:        principal.Plan,
		FeatureDescription: desc.FeatureFlag,
		UpgradeURL:         "https://tunetrail.example/upgrade",
	}, true
}

// checkQuota enforces every configured window for desc.QuotaBucket, failing
// the whole check on the first exceeded window. Sensitive endpoints on
// pro/enterprise plans fail closed on a cache error; every other
// combination fails open, logging the degraded state elsewhere.
func (g *QuotaGate) checkQuota(principal *auth.Principal, desc *entity.ResourceDescriptor, limits *entity.PlanLimits) (*entity.GateDecision, error) {
	if desc.QuotaBucket == "" {
		return &entity.GateDecision{Allowed: true, CurrentPlan: principal.Plan}, nil
	}

	windows, ok := limits.Quotas[desc.QuotaBucket]
	if !ok {
		return &entity.GateDecision{Allowed: true, CurrentPlan: principal.Plan}, nil
	}

	failClosed := principal.Plan.AtLeast(entity.PlanPro) && desc.FailClosedOnCacheError
	now := g.clock.Now().UTC()

	// Every configured window must pass; the tightest one determines the
	// response headers when all pass, and the first breach wins otherwise.
	var tightest *entity.GateDecision
	for _, w := range windows {
		if w.Limit == nil {
			continue
		}

		windowStart := now.Truncate(w.Window.Duration())
		key := fmt.Sprintf("quota:%s:%s:%d", desc.QuotaBucket, principal.OrgID, windowStart.Unix())
		resetAt := windowStart.Add(w.Window.Duration())

		count, err := g.cache.AtomicIncr(key, 1, w.Window.Duration())
		if err != nil {
			if failClosed {
				return nil, entity.ErrUpstreamUnavailable
			}
			continue
		}

		if count > *w.Limit {
			return &entity.GateDecision{
				Allowed:     false,
				Reason:      entity.DenyQuotaExceeded,
				CurrentPlan: principal.Plan,
				RetryAfter:  resetAt.Sub(now),
				Limit:       *w.Limit,
				Remaining:   0,
				ResetAt:     resetAt,
			}, nil
		}

		remaining := *w.Limit - count
		if tightest == nil || remaining < tightest.Remaining {
			tightest = &entity.GateDecision{
				Allowed:     true,
				CurrentPlan: principal.Plan,
				Limit:       *w.Limit,
				Remaining:   remaining,
				ResetAt:     resetAt,
			}
		}
	}

	if tightest == nil {
		tightest = &entity.GateDecision{Allowed: true, CurrentPlan: principal.Plan}
	}
	return tightest, nil
}
