package limits

import (
	"context"
	"errors"
	"fmt"

	"github.com/deloabass/nigertransfert/internal/logger"
	"github.com/deloabass/nigertransfert/internal/models"
	"github.com/deloabass/nigertransfert/internal/repository"
)

// TierStore persists the active verification tier of each sender.
type TierStore interface {
	GetTier(ctx context.Context, userID int64) (models.VerificationTier, error)
	SetTier(ctx context.Context, userID int64, tier models.VerificationTier) error
}

// Registry resolves the active tier of a sender and receives KYC tier changes.
// It reads through to the store on every call, so a tier change applies to the very
// next limit check.
type Registry struct {
	store TierStore
}

// NewRegistry creates a Registry over store.
func NewRegistry(store TierStore) *Registry {
	return &Registry{store: store}
}

// Tier returns the sender's tier, defaulting to basic for unknown senders.
func (r *Registry) Tier(ctx context.Context, userID int64) (models.VerificationTier, error) {
	tier, err := r.store.GetTier(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return models.TierBasic, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve tier: %w", err)
	}
	return tier, nil
}

// SetTier applies a KYC tier change. Usage accumulators are left untouched.
func (r *Registry) SetTier(ctx context.Context, userID int64, tier models.VerificationTier) error {
	if _, err := models.ParseTier(string(tier)); err != nil {
		return err
	}

	previous, err := r.Tier(ctx, userID)
	if err != nil {
		return err
	}
	if err := r.store.SetTier(ctx, userID, tier); err != nil {
		return fmt.Errorf("failed to store tier: %w", err)
	}

	event := logger.Log.Info()
	if tierRank(tier) < tierRank(previous) {
		event = logger.Log.Warn()
	}
	event.
		Str("user_hash", logger.HashUserID(userID)).
		Str("from", string(previous)).
		Str("to", string(tier)).
		Msg("Verification tier changed")
	return nil
}

func tierRank(tier models.VerificationTier) int {
	for i, t := range models.Tiers {
		if t == tier {
			return i
		}
	}
	return -1
}
