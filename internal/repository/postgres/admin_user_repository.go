package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"likes-hub/internal/model"
	"likes-hub/internal/repository"
)

const adminUserColumns = `id, username, password_hash, role, created_at`

type AdminUserRepository struct {
	pool *pgxpool.Pool
}

func NewAdminUserRepository(pool *pgxpool.Pool) *AdminUserRepository {
	return &AdminUserRepository{pool: pool}
}

var _ repository.AdminUserRepository = (*AdminUserRepository)(nil)

func scanAdminUser(src scanTarget) (*model.AdminUser, error) {
	var u model.AdminUser
	err := src.Scan(
		&u.ID,
		&u.Username,
		&u.PasswordHash,
		&u.Role,
		&u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan admin user: %w", err)
	}
	return &u, nil
}

func (r *AdminUserRepository) FindByUsername(ctx context.Context, username string) (*model.AdminUser, error) {
	query := fmt.Sprintf(`SELECT %s FROM admin_users WHERE username = $1`, adminUserColumns)
	return scanAdminUser(r.pool.QueryRow(ctx, query, username))
}

// Create inserts the user, doing nothing when the username already exists.
// Startup seeding relies on this being safe to run on every boot.
func (r *AdminUserRepository) Create(ctx context.Context, user *model.AdminUser) error {
	query := `
		INSERT INTO admin_users (id, username, password_hash, role, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (username) DO NOTHING`

	_, err := r.pool.Exec(ctx, query,
		user.ID,
		user.Username,
		user.PasswordHash,
		user.Role,
		user.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert admin user: %w", err)
	}
	return nil
}
