package http

import (
	"net/http"

	"github.com/tunetrail/backend/internal/entity"
)

// OrganizationHandler implements the supplemented organization admin
// endpoints (SPEC_FULL.md D.11): reading an organization, updating its plan
// tier, and listing its members. Scope-gated to admin/owner roles by the
// router's middleware chain, not by this handler.
type OrganizationHandler struct {
	orgs  entity.OrganizationRepository
	users entity.UserRepository
}

// NewOrganizationHandler builds an OrganizationHandler.
func NewOrganizationHandler(orgs entity.OrganizationRepository, users entity.UserRepository) *OrganizationHandler {
	return &OrganizationHandler{orgs: orgs, users: users}
}

type organizationView struct {
	ID        string `json:"id"`
	Slug      string `json:"slug"`
	Plan      string `json:"plan"`
	MaxUsers  int    `json:"max_users"`
	MaxTracks int    `json:"max_tracks"`
}

func newOrganizationView(o *entity.Organization) organizationView {
	return organizationView{ID: o.ID, Slug: o.Slug, Plan: string(o.Plan), MaxUsers: o.MaxUsers, MaxTracks: o.MaxTracks}
}

// Get handles GET /organizations/{id}.
func (h *OrganizationHandler) Get(w http.ResponseWriter, r *http.Request) {
	org, err := h.orgs.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		RespondError(w, err)
		return
	}
	Respond(w, http.StatusOK, newOrganizationView(org))
}

type updateOrganizationRequest struct {
	Plan string `json:"plan"`
}

// Update handles PATCH /organizations/{id}, currently limited to plan-tier
// changes (upgrade/downgrade, §8 boundary behaviour); the repository
// contract has no hook for mutating FeatureOverrides directly.
func (h *OrganizationHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateOrganizationRequest
	if err := decodeJSON(r, &req); err != nil {
		RespondError(w, err)
		return
	}

	plan := entity.Plan(req.Plan)
	if !plan.Valid() {
		RespondError(w, entity.ErrValidationFailed)
		return
	}

	org, err := h.orgs.UpdatePlan(r.Context(), r.PathValue("id"), plan)
	if err != nil {
		RespondError(w, err)
		return
	}
	Respond(w, http.StatusOK, newOrganizationView(org))
}

// Members handles GET /organizations/{id}/members.
func (h *OrganizationHandler) Members(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListByOrg(r.Context(), r.PathValue("id"), queryInt(r, "limit", 50), queryInt(r, "offset", 0))
	if err != nil {
		RespondError(w, err)
		return
	}

	views := make([]userView, 0, len(users))
	for _, u := range users {
		views = append(views, newUserView(u))
	}
	Respond(w, http.StatusOK, views)
}
