package usecase

import (
	"context"
	"strings"

	"github.com/pannpers/go-apperr/apperr"
	"github.com/pannpers/go-apperr/apperr/codes"
	"github.com/tunetrail/backend/internal/entity"
	"github.com/tunetrail/backend/internal/infrastructure/auth"
)

// sessionIssuer is the subset of SessionTokenIssuer the AuthUseCase needs,
// kept as an interface so tests can substitute a fake without constructing
// a real HMAC secret.
type sessionIssuer interface {
	Issue(userID, email string) (string, error)
}

// RegisterParams carries the fields accepted by POST /auth/register.
// OrgSlug, when set, joins an existing organization as a regular user;
// when nil, a new organization is created on the free plan and the caller
// becomes its owner.
type RegisterParams struct {
	OrgSlug  *string
	Email    string
	Username *string
	Password string
}

// AuthResult is the outcome of Register or Login: the resolved user plus a
// session token ready to hand back to the client as a bearer credential.
type AuthResult struct {
	User  *entity.User
	Token string
}

// AuthUseCase implements account creation and credential login against
// TuneTrail's own user store, self-issuing session tokens rather than
// delegating to an external identity provider.
type AuthUseCase struct {
	users  entity.UserRepository
	orgs   entity.OrganizationRepository
	tokens sessionIssuer
}

// NewAuthUseCase builds an AuthUseCase.
func NewAuthUseCase(users entity.UserRepository, orgs entity.OrganizationRepository, tokens sessionIssuer) *AuthUseCase {
	return &AuthUseCase{users: users, orgs: orgs, tokens: tokens}
}

// Register creates a user account and, if OrgSlug is unset, a new
// organization on the free plan owned by that user.
//
// # Possible errors
//
//   - InvalidArgument: If email or password fails basic validation.
//   - NotFound: If OrgSlug is set but does not reference an organization.
//   - AlreadyExists: If the email (or username) is already registered.
func (uc *AuthUseCase) Register(ctx context.Context, params *RegisterParams) (*AuthResult, error) {
	email := strings.ToLower(strings.TrimSpace(params.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, apperr.New(codes.InvalidArgument, "email is invalid")
	}
	if len(params.Password) < 8 {
		return nil, apperr.New(codes.InvalidArgument, "password must be at least 8 characters")
	}

	var orgID string
	role := entity.RoleOwner
	if params.OrgSlug != nil {
		org, err := uc.orgs.GetBySlug(ctx, *params.OrgSlug)
		if err != nil {
			return nil, err
		}
		orgID = org.ID
		role = entity.RoleUser
	} else {
		org, err := uc.orgs.Create(ctx, &entity.NewOrganization{
			Slug:      slugFromEmail(email),
			Plan:      entity.PlanFree,
			MaxUsers:  1,
			MaxTracks: 0,
		})
		if err != nil {
			return nil, err
		}
		orgID = org.ID
	}

	hash, err := auth.HashPassword(params.Password)
	if err != nil {
		return nil, err
	}

	user, err := uc.users.Create(ctx, &entity.NewUser{
		OrgID:        orgID,
		Email:        email,
		Username:     params.Username,
		PasswordHash: hash,
		Role:         role,
	})
	if err != nil {
		return nil, err
	}

	token, err := uc.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, Token: token}, nil
}

// Login verifies email/password and issues a fresh session token.
//
// # Possible errors
//
//   - entity.ErrUnknownCredential: If the email is not registered or the password does not match.
//   - entity.ErrRevokedCredential: If the account has been deactivated.
func (uc *AuthUseCase) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := uc.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, entity.ErrUnknownCredential
	}
	if !user.IsActive {
		return nil, entity.ErrRevokedCredential
	}

	ok, err := auth.VerifyPassword(user.PasswordHash, password)
	if err != nil || !ok {
		return nil, entity.ErrUnknownCredential
	}

	token, err := uc.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, Token: token}, nil
}

// slugFromEmail derives a default organization slug from the local part of
// an email address so solo signups don't need to pick a slug up front.
func slugFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	local = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '-'
		}
	}, local)
	return local
}
