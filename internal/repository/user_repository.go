package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/deloabass/nigertransfert/internal/database"
	"github.com/deloabass/nigertransfert/internal/models"
	"github.com/jackc/pgx/v5"
)

// UserRepository handles sender database operations.
type UserRepository struct {
	db database.PGXDB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db database.PGXDB) *UserRepository {
	return &UserRepository{db: db}
}

// UpsertUser creates or updates a user's profile. The tier is left untouched.
func (r *UserRepository) UpsertUser(ctx context.Context, user *models.User) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO users (id, username, first_name, last_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			username = EXCLUDED.username,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			updated_at = NOW()
	`, user.ID, user.Username, user.FirstName, user.LastName)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

// GetUserByID retrieves a user by their Telegram ID.
func (r *UserRepository) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	var tier string
	err := r.db.QueryRow(ctx, `
		SELECT id, COALESCE(username, ''), COALESCE(first_name, ''), COALESCE(last_name, ''), tier, created_at, updated_at
		FROM users WHERE id = $1
	`, id).Scan(&user.ID, &user.Username, &user.FirstName, &user.LastName, &tier, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	user.Tier = models.VerificationTier(tier)
	return &user, nil
}

// GetTier returns the stored verification tier of a user.
func (r *UserRepository) GetTier(ctx context.Context, id int64) (models.VerificationTier, error) {
	var tier string
	err := r.db.QueryRow(ctx, `SELECT tier FROM users WHERE id = $1`, id).Scan(&tier)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get tier: %w", err)
	}
	return models.VerificationTier(tier), nil
}

// SetTier stores a user's verification tier, creating the user row when needed.
func (r *UserRepository) SetTier(ctx context.Context, id int64, tier models.VerificationTier) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO users (id, tier, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET tier = EXCLUDED.tier, updated_at = NOW()
	`, id, string(tier))
	if err != nil {
		return fmt.Errorf("failed to set tier: %w", err)
	}
	return nil
}
