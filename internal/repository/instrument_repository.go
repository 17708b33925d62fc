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

// InstrumentRepository handles saved card database operations. Only the
// non-sensitive card fields are stored.
type InstrumentRepository struct {
	db database.PGXDB
}

// NewInstrumentRepository creates a new InstrumentRepository.
func NewInstrumentRepository(db database.PGXDB) *InstrumentRepository {
	return &InstrumentRepository{db: db}
}

const instrumentColumns = `id, owner_id, last4, brand, holder_name, expiry, is_default, created_at`

// Get returns an instrument by id.
func (r *InstrumentRepository) Get(ctx context.Context, id string) (*models.PaymentInstrument, error) {
	return r.one(ctx, `SELECT `+instrumentColumns+` FROM payment_instruments WHERE id = $1`, id)
}

// GetDefault returns the owner's default instrument.
func (r *InstrumentRepository) GetDefault(ctx context.Context, ownerID int64) (*models.PaymentInstrument, error) {
	return r.one(ctx, `
		SELECT `+instrumentColumns+` FROM payment_instruments
		WHERE owner_id = $1 AND is_default
		LIMIT 1
	`, ownerID)
}

// List returns the owner's instruments, default first.
func (r *InstrumentRepository) List(ctx context.Context, ownerID int64) ([]models.PaymentInstrument, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+instrumentColumns+` FROM payment_instruments
		WHERE owner_id = $1
		ORDER BY is_default DESC, created_at, id
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list instruments: %w", err)
	}
	defer rows.Close()
	return scanInstruments(rows)
}

// Upsert stores an instrument. The owner's first instrument becomes the default, and
// marking one as default clears the flag on the others.
func (r *InstrumentRepository) Upsert(ctx context.Context, p *models.PaymentInstrument) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	var others int
	if err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM payment_instruments WHERE owner_id = $1 AND id <> $2
	`, p.OwnerID, p.ID).Scan(&others); err != nil {
		return fmt.Errorf("failed to count instruments: %w", err)
	}
	if others == 0 {
		p.IsDefault = true
	}

	if p.IsDefault {
		if _, err := r.db.Exec(ctx, `
			UPDATE payment_instruments SET is_default = FALSE WHERE owner_id = $1 AND id <> $2
		`, p.OwnerID, p.ID); err != nil {
			return fmt.Errorf("failed to clear default instrument: %w", err)
		}
	}

	err := r.db.QueryRow(ctx, `
		INSERT INTO payment_instruments (id, owner_id, last4, brand, holder_name, expiry, is_default)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			holder_name = EXCLUDED.holder_name,
			expiry = EXCLUDED.expiry,
			is_default = EXCLUDED.is_default
		WHERE payment_instruments.owner_id = EXCLUDED.owner_id
		RETURNING created_at
	`, p.ID, p.OwnerID, p.Last4, p.Brand, p.HolderName, p.Expiry, p.IsDefault).Scan(&p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to upsert instrument: %w", err)
	}
	return nil
}

// Delete removes an owner's instrument. Removing the default promotes the oldest
// remaining instrument.
func (r *InstrumentRepository) Delete(ctx context.Context, ownerID int64, id string) error {
	var wasDefault bool
	err := r.db.QueryRow(ctx, `
		DELETE FROM payment_instruments WHERE id = $1 AND owner_id = $2
		RETURNING is_default
	`, id, ownerID).Scan(&wasDefault)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete instrument: %w", err)
	}
	if !wasDefault {
		return nil
	}

	_, err = r.db.Exec(ctx, `
		UPDATE payment_instruments SET is_default = TRUE
		WHERE id = (
			SELECT id FROM payment_instruments WHERE owner_id = $1
			ORDER BY created_at, id LIMIT 1
		)
	`, ownerID)
	if err != nil {
		return fmt.Errorf("failed to promote default instrument: %w", err)
	}
	return nil
}

func (r *InstrumentRepository) one(ctx context.Context, query string, arg any) (*models.PaymentInstrument, error) {
	rows, err := r.db.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to get instrument: %w", err)
	}
	defer rows.Close()

	list, err := scanInstruments(rows)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, ErrNotFound
	}
	return &list[0], nil
}

func scanInstruments(rows pgx.Rows) ([]models.PaymentInstrument, error) {
	var list []models.PaymentInstrument
	for rows.Next() {
		var p models.PaymentInstrument
		if err := rows.Scan(
			&p.ID, &p.OwnerID, &p.Last4, &p.Brand, &p.HolderName, &p.Expiry, &p.IsDefault, &p.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan instrument: %w", err)
		}
		list = append(list, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating instruments: %w", err)
	}
	return list, nil
}
