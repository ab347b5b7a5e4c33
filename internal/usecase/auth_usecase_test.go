package usecase_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tunetrail/backend/internal/entity"
	"github.com/tunetrail/backend/internal/usecase"
)

type fakeUserRepo struct {
	byID    map[string]*entity.User
	byEmail map[string]*entity.User
	nextID  int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{byID: map[string]*entity.User{}, byEmail: map[string]*entity.User{}}
}

func (f *fakeUserRepo) Create(ctx context.Context, params *entity.NewUser) (*entity.User, error) {
	if _, ok := f.byEmail[params.Email]; ok {
		return nil, assert.AnError
	}
	f.nextID++
	u := &entity.User{
		ID: "user-" + string(rune('0'+f.nextID)), OrgID: params.OrgID, Email: params.Email,
		Username: params.Username, PasswordHash: params.PasswordHash, Role: params.Role, IsActive: true,
	}
	f.byID[u.ID] = u
	f.byEmail[u.Email] = u
	return u, nil
}

func (f *fakeUserRepo) Get(ctx context.Context, id string) (*entity.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, assert.AnError
	}
	return u, nil
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	u, ok := f.byEmail[email]
	if !ok {
		return nil, assert.AnError
	}
	return u, nil
}

func (f *fakeUserRepo) ListByOrg(ctx context.Context, orgID string, limit, offset int) ([]*entity.User, error) {
	return nil, nil
}
func (f *fakeUserRepo) UpdateRole(ctx context.Context, id string, role entity.Role) (*entity.User, error) {
	return nil, nil
}
func (f *fakeUserRepo) Delete(ctx context.Context, id string) error { return nil }

type fakeOrgRepo struct {
	bySlug map[string]*entity.Organization
	nextID int
}

func newFakeOrgRepo() *fakeOrgRepo {
	return &fakeOrgRepo{bySlug: map[string]*entity.Organization{}}
}

func (f *fakeOrgRepo) Create(ctx context.Context, params *entity.NewOrganization) (*entity.Organization, error) {
	if _, ok := f.bySlug[params.Slug]; ok {
		return nil, assert.AnError
	}
	f.nextID++
	org := &entity.Organization{ID: "org-" + string(rune('0'+f.nextID)), Slug: params.Slug, Plan: params.Plan}
	f.bySlug[org.Slug] = org
	return org, nil
}

func (f *fakeOrgRepo) Get(ctx context.Context, id string) (*entity.Organization, error) {
	for _, o := range f.bySlug {
		if o.ID == id {
			return o, nil
		}
	}
	return nil, assert.AnError
}

func (f *fakeOrgRepo) GetBySlug(ctx context.Context, slug string) (*entity.Organization, error) {
	o, ok := f.bySlug[slug]
	if !ok {
		return nil, assert.AnError
	}
	return o, nil
}

func (f *fakeOrgRepo) UpdatePlan(ctx context.Context, id string, plan entity.Plan) (*entity.Organization, error) {
	return nil, nil
}
func (f *fakeOrgRepo) Delete(ctx context.Context, id string) error { return nil }

type fakeSessionIssuer struct{}

func (fakeSessionIssuer) Issue(userID, email string) (string, error) {
	return "token-for-" + userID, nil
}

func TestAuthUseCase_Register(t *testing.T) {
	t.Run("creates a new organization when no org_slug is given", func(t *testing.T) {
		users, orgs := newFakeUserRepo(), newFakeOrgRepo()
		uc := usecase.NewAuthUseCase(users, orgs, fakeSessionIssuer{})

		result, err := uc.Register(context.Background(), &usecase.RegisterParams{
			Email: "Ada@Example.com", Password: "correct-horse",
		})

		require.NoError(t, err)
		assert.Equal(t, "ada@example.com", result.User.Email)
		assert.Equal(t, entity.RoleOwner, result.User.Role)
		assert.NotEmpty(t, result.Token)
	})

	t.Run("joins an existing organization as a regular user", func(t *testing.T) {
		users, orgs := newFakeUserRepo(), newFakeOrgRepo()
		orgs.Create(context.Background(), &entity.NewOrganization{Slug: "acme", Plan: entity.PlanStarter})
		uc := usecase.NewAuthUseCase(users, orgs, fakeSessionIssuer{})

		slug := "acme"
		result, err := uc.Register(context.Background(), &usecase.RegisterParams{
			OrgSlug: &slug, Email: "bob@acme.com", Password: "correct-horse",
		})

		require.NoError(t, err)
		assert.Equal(t, entity.RoleUser, result.User.Role)
	})

	t.Run("rejects a short password", func(t *testing.T) {
		users, orgs := newFakeUserRepo(), newFakeOrgRepo()
		uc := usecase.NewAuthUseCase(users, orgs, fakeSessionIssuer{})

		_, err := uc.Register(context.Background(), &usecase.RegisterParams{Email: "x@y.com", Password: "short"})

		assert.Error(t, err)
	})
}

func TestAuthUseCase_Login(t *testing.T) {
	t.Run("issues a token on matching credentials", func(t *testing.T) {
		users, orgs := newFakeUserRepo(), newFakeOrgRepo()
		uc := usecase.NewAuthUseCase(users, orgs, fakeSessionIssuer{})
		_, err := uc.Register(context.Background(), &usecase.RegisterParams{Email: "ada@example.com", Password: "correct-horse"})
		require.NoError(t, err)

		result, err := uc.Login(context.Background(), "ada@example.com", "correct-horse")

		require.NoError(t, err)
		assert.NotEmpty(t, result.Token)
	})

	t.Run("rejects a wrong password", func(t *testing.T) {
		users, orgs := newFakeUserRepo(), newFakeOrgRepo()
		uc := usecase.NewAuthUseCase(users, orgs, fakeSessionIssuer{})
		_, err := uc.Register(context.Background(), &usecase.RegisterParams{Email: "ada@example.com", Password: "correct-horse"})
		require.NoError(t, err)

		_, err = uc.Login(context.Background(), "ada@example.com", "wrong-password")

		assert.ErrorIs(t, err, entity.ErrUnknownCredential)
	})

	t.Run("rejects an unknown email", func(t *testing.T) {
		users, orgs := newFakeUserRepo(), newFakeOrgRepo()
		uc := usecase.NewAuthUseCase(users, orgs, fakeSessionIssuer{})

		_, err := uc.Login(context.Background(), "nobody@example.com", "whatever1")

		assert.ErrorIs(t, err, entity.ErrUnknownCredential)
	})
}
