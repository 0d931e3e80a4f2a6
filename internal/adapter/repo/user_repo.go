package repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"genstudio/internal/domain"
	"genstudio/internal/infra"
	"genstudio/internal/sqlinline"
)

var _ domain.OwnerDirectory = (*UserRepositoryPG)(nil)

// UserRepositoryPG reads and updates account standing in PostgreSQL.
type UserRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewUserRepository creates a new UserRepositoryPG.
func NewUserRepository(sql infra.SQLExecutor) *UserRepositoryPG {
	return &UserRepositoryPG{sql: sql}
}

// Standing implements domain.OwnerDirectory.
func (r *UserRepositoryPG) Standing(ctx context.Context, ownerID string) (domain.OwnerStanding, error) {
	var standing string
	if err := r.sql.QueryRow(ctx, sqlinline.QSelectUserStanding, ownerID).Scan(&standing); err != nil {
		if infra.IsNoRows(err) {
			return "", domain.ErrNotFound
		}
		return "", err
	}
	return domain.OwnerStanding(strings.ToLower(strings.TrimSpace(standing))), nil
}

// GetByID fetches a user by id.
func (r *UserRepositoryPG) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return scanUser(r.sql.QueryRow(ctx, sqlinline.QSelectUserByID, id))
}

// GetByEmail fetches a user by case-insensitive email.
func (r *UserRepositoryPG) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return scanUser(r.sql.QueryRow(ctx, sqlinline.QSelectUserByEmail, strings.TrimSpace(email)))
}

// SetStanding changes the standing of a user and returns the updated record.
func (r *UserRepositoryPG) SetStanding(ctx context.Context, id string, standing domain.OwnerStanding) (*domain.User, error) {
	switch standing {
	case domain.OwnerStandingActive, domain.OwnerStandingSuspended, domain.OwnerStandingBanned:
	default:
		return nil, fmt.Errorf("%w: unknown standing %q", domain.ErrInvalidInput, standing)
	}
	return scanUser(r.sql.QueryRow(ctx, sqlinline.QUpdateUserStanding, id, string(standing)))
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	var plan, standing string
	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&plan,
		&standing,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	user.Plan = domain.UserPlan(plan)
	user.Standing = domain.OwnerStanding(standing)
	return &user, nil
}
