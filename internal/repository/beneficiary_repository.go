package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/deloabass/nigertransfert/internal/database"
	"github.com/deloabass/nigertransfert/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// BeneficiaryRepository handles beneficiary database operations.
type BeneficiaryRepository struct {
	db database.PGXDB
}

// NewBeneficiaryRepository creates a new BeneficiaryRepository.
func NewBeneficiaryRepository(db database.PGXDB) *BeneficiaryRepository {
	return &BeneficiaryRepository{db: db}
}

const beneficiaryColumns = `id, owner_id, name, phone, destination_city, destination_country, preferred_service_id, created_at, updated_at`

// Get returns a beneficiary by id.
func (r *BeneficiaryRepository) Get(ctx context.Context, id string) (*models.Beneficiary, error) {
	rows, err := r.db.Query(ctx, `SELECT `+beneficiaryColumns+` FROM beneficiaries WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get beneficiary: %w", err)
	}
	defer rows.Close()

	list, err := scanBeneficiaries(rows)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, ErrNotFound
	}
	return &list[0], nil
}

// List returns the beneficiaries of an owner ordered by name.
func (r *BeneficiaryRepository) List(ctx context.Context, ownerID int64) ([]models.Beneficiary, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+beneficiaryColumns+` FROM beneficiaries
		WHERE owner_id = $1
		ORDER BY LOWER(name), id
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list beneficiaries: %w", err)
	}
	defer rows.Close()
	return scanBeneficiaries(rows)
}

// Upsert creates or updates a beneficiary. A missing id is generated.
func (r *BeneficiaryRepository) Upsert(ctx context.Context, b *models.Beneficiary) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	err := r.db.QueryRow(ctx, `
		INSERT INTO beneficiaries (id, owner_id, name, phone, destination_city, destination_country, preferred_service_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			phone = EXCLUDED.phone,
			destination_city = EXCLUDED.destination_city,
			destination_country = EXCLUDED.destination_country,
			preferred_service_id = EXCLUDED.preferred_service_id,
			updated_at = NOW()
		WHERE beneficiaries.owner_id = EXCLUDED.owner_id
		RETURNING created_at, updated_at
	`, b.ID, b.OwnerID, b.Name, b.Phone, b.DestinationCity, b.DestinationCountry, b.PreferredServiceID,
	).Scan(&b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to upsert beneficiary: %w", err)
	}
	return nil
}

// Delete removes an owner's beneficiary.
func (r *BeneficiaryRepository) Delete(ctx context.Context, ownerID int64, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM beneficiaries WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete beneficiary: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanBeneficiaries(rows pgx.Rows) ([]models.Beneficiary, error) {
	var list []models.Beneficiary
	for rows.Next() {
		var b models.Beneficiary
		if err := rows.Scan(
			&b.ID, &b.OwnerID, &b.Name, &b.Phone, &b.DestinationCity, &b.DestinationCountry,
			&b.PreferredServiceID, &b.CreatedAt, &b.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan beneficiary: %w", err)
		}
		list = append(list, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating beneficiaries: %w", err)
	}
	return list, nil
}
