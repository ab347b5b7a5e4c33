package rdb

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pannpers/go-apperr/apperr"
	"github.com/pannpers/go-apperr/apperr/codes"
	"github.com/tunetrail/backend/internal/entity"
)

// UserRepository implements entity.UserRepository.
type UserRepository struct {
	db *Database
}

const (
	userColumns = `u.id, u.org_id, u.email, u.username, u.password_hash, u.role, u.is_active, u.email_verified, u.created_at, u.updated_at`

	getUserQuery = `SELECT ` + userColumns + ` FROM users u WHERE u.id = $1`

	getUserByEmailQuery = `SELECT ` + userColumns + ` FROM users u WHERE u.email = lower($1)`

	listUsersByOrgQuery = `
		SELECT ` + userColumns + `
		FROM users u
		WHERE u.org_id = $1
		ORDER BY u.created_at
		LIMIT $2 OFFSET $3
	`

	insertUserQuery = `
		INSERT INTO users (org_id, email, username, password_hash, role)
		VALUES ($1, lower($2), $3, $4, $5)
		RETURNING ` + userColumns

	updateUserRoleQuery = `
		UPDATE users SET role = $2, updated_at = now() WHERE id = $1
		RETURNING ` + userColumns

	deleteUserQuery = `DELETE FROM users WHERE id = $1`
)

// NewUserRepository creates a new user repository instance.
func NewUserRepository(db *Database) *UserRepository {
	return &UserRepository{db: db}
}

func scanUser(scanner interface{ Scan(dest ...any) error }) (*entity.User, error) {
	m := &User{}
	if err := scanner.Scan(&m.ID, &m.OrgID, &m.Email, &m.Username, &m.PasswordHash, &m.Role, &m.IsActive, &m.EmailVerified, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	return m.ToEntity(), nil
}

func (r *UserRepository) Create(ctx context.Context, params *entity.NewUser) (*entity.User, error) {
	if params == nil {
		return nil, apperr.New(codes.InvalidArgument, "params cannot be nil")
	}

	user, err := scanUser(r.db.Pool.QueryRow(ctx, insertUserQuery, params.OrgID, params.Email, params.Username, params.PasswordHash, string(params.Role)))
	if err != nil {
		if IsUniqueViolation(err) {
			r.db.logger.Warn(ctx, "duplicate user", slog.String("entityType", "user"), slog.String("email", params.Email))
		}
		return nil, toAppErr(err, "failed to create user", slog.String("email", params.Email))
	}

	r.db.logger.Info(ctx, "user created", slog.String("entityType", "user"), slog.String("userID", user.ID))
	return user, nil
}

func (r *UserRepository) Get(ctx context.Context, id string) (*entity.User, error) {
	if id == "" {
		return nil, apperr.New(codes.InvalidArgument, "user ID cannot be empty")
	}
	user, err := scanUser(r.db.Pool.QueryRow(ctx, getUserQuery, id))
	if err != nil {
		return nil, toAppErr(err, "failed to get user", slog.String("user_id", id))
	}
	return user, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	if email == "" {
		return nil, apperr.New(codes.InvalidArgument, "email cannot be empty")
	}
	user, err := scanUser(r.db.Pool.QueryRow(ctx, getUserByEmailQuery, email))
	if err != nil {
		return nil, toAppErr(err, "failed to get user by email", slog.String("email", email))
	}
	return user, nil
}

func (r *UserRepository) ListByOrg(ctx context.Context, orgID string, limit, offset int) ([]*entity.User, error) {
	rows, err := r.db.Pool.Query(ctx, listUsersByOrgQuery, orgID, limit, offset)
	if err != nil {
		return nil, toAppErr(err, "failed to list users", slog.String("organization_id", orgID))
	}
	defer rows.Close()

	var users []*entity.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, toAppErr(err, "failed to scan user row")
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, toAppErr(err, "failed to iterate user rows")
	}
	return users, nil
}

func (r *UserRepository) UpdateRole(ctx context.Context, id string, role entity.Role) (*entity.User, error) {
	if id == "" {
		return nil, apperr.New(codes.InvalidArgument, "user ID cannot be empty")
	}
	user, err := scanUser(r.db.Pool.QueryRow(ctx, updateUserRoleQuery, id, string(role)))
	if err != nil {
		return nil, toAppErr(err, "failed to update user role", slog.String("user_id", id))
	}
	r.db.logger.Info(ctx, "user role updated", slog.String("entityType", "user"), slog.String("userID", id), slog.String("role", string(role)))
	return user, nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	if id == "" {
		return apperr.New(codes.InvalidArgument, "user ID cannot be empty")
	}
	result, err := r.db.Pool.Exec(ctx, deleteUserQuery, id)
	if err != nil {
		return toAppErr(err, "failed to delete user", slog.String("user_id", id))
	}
	if result.RowsAffected() == 0 {
		return apperr.Wrap(apperr.ErrNotFound, codes.NotFound, fmt.Sprintf("user with ID %s not found", id))
	}
	return nil
}

var _ entity.UserRepository = (*UserRepository)(nil)
