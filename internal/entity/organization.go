// Package entity declares TuneTrail's domain types and the repository
// interfaces each use case depends on. Types here are storage-agnostic;
// internal/infrastructure/database/rdb implements the repositories against
// Postgres.
package entity

import (
	"context"
	"time"
)

// Plan is a billing tier governing feature availability and quotas.
type Plan string

const (
	PlanFree       Plan = "free"
	PlanStarter    Plan = "starter"
	PlanPro        Plan = "pro"
	PlanEnterprise Plan = "enterprise"
)

// Valid reports whether p is one of the known plan tiers.
func (p Plan) Valid() bool {
	switch p {
	case PlanFree, PlanStarter, PlanPro, PlanEnterprise:
		return true
	}
	return false
}

// AtLeast reports whether p meets or exceeds the minimum required plan,
// ordered free < starter < pro < enterprise.
func (p Plan) AtLeast(min Plan) bool {
	rank := map[Plan]int{PlanFree: 0, PlanStarter: 1, PlanPro: 2, PlanEnterprise: 3}
	return rank[p] >= rank[min]
}

// ModelTier returns the recommendation-engine model tier the Dispatcher
// selects for p (spec.md §4.5 step 2: "model_tier is derived from the
// principal's plan"). Paying tiers get the engine's higher-capacity model;
// the cache fingerprint and the engine request both carry this value so a
// free-plan and a pro-plan caller never collide on the same cached result.
func (p Plan) ModelTier() string {
	if p.AtLeast(PlanPro) {
		return "premium"
	}
	return "standard"
}

// Organization owns Users and, transitively, their ApiKeys, Sessions,
// Interactions, and Impressions. Cascade-delete of an Organization removes
// all descendants.
type Organization struct {
	ID               string
	Slug             string
	Plan             Plan
	MaxUsers         int
	MaxTracks        int
	FeatureOverrides map[string]bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewOrganization carries the fields required to create an Organization.
type NewOrganization struct {
	Slug             string
	Plan             Plan
	MaxUsers         int
	MaxTracks        int
	FeatureOverrides map[string]bool
}

// OrganizationRepository persists Organization aggregates.
type OrganizationRepository interface {
	// Create creates a new organization.
	//
	// # Possible errors
	//
	//  - InvalidArgument: If slug or plan is invalid.
	//  - AlreadyExists: If an organization with the same slug already exists.
	Create(ctx context.Context, params *NewOrganization) (*Organization, error)

	// Get retrieves an organization by ID.
	//
	// # Possible errors
	//
	//  - NotFound: If the organization does not exist.
	Get(ctx context.Context, id string) (*Organization, error)

	// GetBySlug retrieves an organization by its unique slug.
	//
	// # Possible errors
	//
	//  - NotFound: If the organization does not exist.
	GetBySlug(ctx context.Context, slug string) (*Organization, error)

	// UpdatePlan mutates the organization's plan tier, e.g. on upgrade/downgrade.
	//
	// # Possible errors
	//
	//  - NotFound: If the organization does not exist.
	UpdatePlan(ctx context.Context, id string, plan Plan) (*Organization, error)

	// Delete cascade-deletes an organization and all of its descendants.
	//
	// # Possible errors
	//
	//  - NotFound: If the organization does not exist.
	Delete(ctx context.Context, id string) error
}
