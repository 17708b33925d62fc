package repository

import (
	"context"
	"fmt"

	"github.com/deloabass/nigertransfert/internal/database"
	"github.com/deloabass/nigertransfert/internal/models"
)

// UsageArchiveRepository stores the totals of closed usage periods.
type UsageArchiveRepository struct {
	db database.PGXDB
}

// NewUsageArchiveRepository creates a new UsageArchiveRepository.
func NewUsageArchiveRepository(db database.PGXDB) *UsageArchiveRepository {
	return &UsageArchiveRepository{db: db}
}

// Archive records a closed period. Re-archiving the same period overwrites it.
func (r *UsageArchiveRepository) Archive(ctx context.Context, rec models.UsageRecord) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO usage_archive (user_id, period, period_start, amount, currency, archived_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, period, period_start) DO UPDATE SET
			amount = EXCLUDED.amount,
			archived_at = EXCLUDED.archived_at
	`, rec.UserID, string(rec.Period), rec.PeriodStart, rec.Amount.Amount, rec.Amount.Currency, rec.ArchivedAt)
	if err != nil {
		return fmt.Errorf("failed to archive usage: %w", err)
	}
	return nil
}

// List returns a user's archived periods, most recent first.
func (r *UsageArchiveRepository) List(ctx context.Context, userID int64) ([]models.UsageRecord, error) {
	rows, err := r.db.Query(ctx, `
		SELECT user_id, period, period_start, amount, currency, archived_at
		FROM usage_archive
		WHERE user_id = $1
		ORDER BY period_start DESC, period
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list usage archive: %w", err)
	}
	defer rows.Close()

	var records []models.UsageRecord
	for rows.Next() {
		var rec models.UsageRecord
		var period string
		if err := rows.Scan(
			&rec.UserID, &period, &rec.PeriodStart, &rec.Amount.Amount, &rec.Amount.Currency, &rec.ArchivedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan usage record: %w", err)
		}
		rec.Period = models.LimitScope(period)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating usage archive: %w", err)
	}
	return records, nil
}
