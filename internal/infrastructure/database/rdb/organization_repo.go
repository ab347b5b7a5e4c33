package rdb

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pannpers/go-apperr/apperr"
	"github.com/pannpers/go-apperr/apperr/codes"
	"github.com/tunetrail/backend/internal/entity"
)

// OrganizationRepository implements entity.OrganizationRepository.
type OrganizationRepository struct {
	db *Database
}

const (
	orgColumns = `org.id, org.slug, org.plan, org.max_users, org.max_tracks, org.feature_overrides, org.created_at, org.updated_at`

	getOrgQuery = `SELECT ` + orgColumns + ` FROM organizations org WHERE org.id = $1`

	getOrgBySlugQuery = `SELECT ` + orgColumns + ` FROM organizations org WHERE org.slug = $1`

	insertOrgQuery = `
		INSERT INTO organizations (slug, plan, max_users, max_tracks, feature_overrides)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + orgColumns
	)

const updateOrgPlanQuery = `
	UPDATE organizations SET plan = $2, updated_at = now() WHERE id = $1
	RETURNING ` + orgColumns

const deleteOrgQuery = `DELETE FROM organizations WHERE id = $1`

// NewOrganizationRepository creates a new organization repository instance.
func NewOrganizationRepository(db *Database) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

func scanOrganization(scanner interface{ Scan(dest ...any) error }) (*entity.Organization, error) {
	m := &Organization{}
	if err := scanner.Scan(&m.ID, &m.Slug, &m.Plan, &m.MaxUsers, &m.MaxTracks, &m.FeatureOverrides, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	return m.ToEntity(), nil
}

func (r *OrganizationRepository) Create(ctx context.Context, params *entity.NewOrganization) (*entity.Organization, error) {
	if params == nil {
		return nil, apperr.New(codes.InvalidArgument, "params cannot be nil")
	}
	if !params.Plan.Valid() {
		return nil, apperr.New(codes.InvalidArgument, "invalid plan", slog.String("plan", string(params.Plan)))
	}

	m := FromNewOrganization(params)
	org, err := scanOrganization(r.db.Pool.QueryRow(ctx, insertOrgQuery, m.Slug, m.Plan, m.MaxUsers, m.MaxTracks, m.FeatureOverrides))
	if err != nil {
		return nil, toAppErr(err, "failed to create organization", slog.String("slug", params.Slug))
	}

	r.db.logger.Info(ctx, "organization created", slog.String("entityType", "organization"), slog.String("organizationID", org.ID))
	return org, nil
}

func (r *OrganizationRepository) Get(ctx context.Context, id string) (*entity.Organization, error) {
	if id == "" {
		return nil, apperr.New(codes.InvalidArgument, "organization ID cannot be empty")
	}
	org, err := scanOrganization(r.db.Pool.QueryRow(ctx, getOrgQuery, id))
	if err != nil {
		return nil, toAppErr(err, "failed to get organization", slog.String("organization_id", id))
	}
	return org, nil
}

func (r *OrganizationRepository) GetBySlug(ctx context.Context, slug string) (*entity.Organization, error) {
	if slug == "" {
		return nil, apperr.New(codes.InvalidArgument, "slug cannot be empty")
	}
	org, err := scanOrganization(r.db.Pool.QueryRow(ctx, getOrgBySlugQuery, slug))
	if err != nil {
		return nil, toAppErr(err, "failed to get organization by slug", slog.String("slug", slug))
	}
	return org, nil
}

func (r *OrganizationRepository) UpdatePlan(ctx context.Context, id string, plan entity.Plan) (*entity.Organization, error) {
	if id == "" {
		return nil, apperr.New(codes.InvalidArgument, "organization ID cannot be empty")
	}
	if !plan.Valid() {
		return nil, apperr.New(codes.InvalidArgument, "invalid plan", slog.String("plan", string(plan)))
	}

	org, err := scanOrganization(r.db.Pool.QueryRow(ctx, updateOrgPlanQuery, id, string(plan)))
	if err != nil {
		return nil, toAppErr(err, "failed to update organization plan", slog.String("organization_id", id))
	}

	r.db.logger.Info(ctx, "organization plan updated", slog.String("entityType", "organization"), slog.String("organizationID", id), slog.String("plan", string(plan)))
	return org, nil
}

func (r *OrganizationRepository) Delete(ctx context.Context, id string) error {
	if id == "" {
		return apperr.New(codes.InvalidArgument, "organization ID cannot be empty")
	}

	result, err := r.db.Pool.Exec(ctx, deleteOrgQuery, id)
	if err != nil {
		return toAppErr(err, "failed to delete organization", slog.String("organization_id", id))
	}
	if result.RowsAffected() == 0 {
		return apperr.Wrap(apperr.ErrNotFound, codes.NotFound, fmt.Sprintf("organization with ID %s not found", id))
	}

	r.db.logger.Info(ctx, "organization deleted", slog.String("entityType", "organization"), slog.String("organizationID", id))
	return nil
}

var _ entity.OrganizationRepository = (*OrganizationRepository)(nil)
