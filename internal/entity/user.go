package entity

import (
	"context"
	"time"
)

// Role governs the implicit scope set granted to a session bearer token.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
	RoleOwner Role = "owner"
)

// User belongs to exactly one Organization. Email is case-folded on storage
// and compare.
type User struct {
	ID            string
	OrgID         string
	Email         string
	Username      *string
	PasswordHash  string
	Role          Role
	IsActive      bool
	EmailVerified bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewUser carries the fields required to register a User.
type NewUser struct {
	OrgID        string
	Email        string
	Username     *string
	PasswordHash string
	Role         Role
}

// UserRepository persists User aggregates.
type UserRepository interface {
	// Create registers a new user under an organization.
	//
	// # Possible errors
	//
	//  - InvalidArgument: If email is malformed or org_id does not reference an organization.
	//  - AlreadyExists: If a user with the same email or username already exists.
	Create(ctx context.Context, params *NewUser) (*User, error)

	// Get retrieves a user by ID.
	//
	// # Possible errors
	//
	//  - NotFound: If the user does not exist.
	Get(ctx context.Context, id string) (*User, error)

	// GetByEmail retrieves a user by case-folded email address.
	//
	// # Possible errors
	//
	//  - NotFound: If the user does not exist.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// ListByOrg lists users belonging to an organization.
	ListByOrg(ctx context.Context, orgID string, limit, offset int) ([]*User, error)

	// UpdateRole changes a user's role.
	//
	// # Possible errors
	//
	//  - NotFound: If the user does not exist.
	UpdateRole(ctx context.Context, id string, role Role) (*User, error)

	// Delete removes a user.
	//
	// # Possible errors
	//
	//  - NotFound: If the user does not exist.
	Delete(ctx context.Context, id string) error
}
