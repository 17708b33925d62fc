// Package limits enforces per-transaction and periodic transfer ceilings tied to a
// sender's verification tier.
package limits

import (
	"fmt"

	"github.com/deloabass/nigertransfert/internal/models"
)

// DefaultSets are the EUR ceilings per tier.
var DefaultSets = map[models.VerificationTier]models.LimitSet{
	models.TierBasic: {
		PerTransaction: models.EUR("300"),
		Daily:          models.EUR("500"),
		Weekly:         models.EUR("1500"),
		Monthly:        models.EUR("3000"),
	},
	models.TierVerified: {
		PerTransaction: models.EUR("1000"),
		Daily:          models.EUR("2000"),
		Weekly:         models.EUR("5000"),
		Monthly:        models.EUR("10000"),
	},
	models.TierPremium: {
		PerTransaction: models.EUR("5000"),
		Daily:          models.EUR("10000"),
		Weekly:         models.EUR("25000"),
		Monthly:        models.EUR("50000"),
	},
}

// LimitExceededError reports the first ceiling a principal would breach.
// Attempted is the period total the transfer would produce (usage + principal), or
// the principal itself for the per-transaction scope.
type LimitExceededError struct {
	Scope     models.LimitScope
	Limit     models.Money
	Attempted models.Money
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("%s limit of %s exceeded (attempted %s)", e.Scope, e.Limit, e.Attempted)
}

// Policy maps tiers to limit sets.
type Policy struct {
	sets map[models.VerificationTier]models.LimitSet
}

// NewPolicy returns a policy over the given sets. Every tier must be present.
func NewPolicy(sets map[models.VerificationTier]models.LimitSet) (*Policy, error) {
	for _, tier := range models.Tiers {
		if _, ok := sets[tier]; !ok {
			return nil, fmt.Errorf("missing limit set for tier %s", tier)
		}
	}
	return &Policy{sets: sets}, nil
}

// DefaultPolicy returns a policy over DefaultSets.
func DefaultPolicy() *Policy {
	return &Policy{sets: DefaultSets}
}

// Set returns the limit set of a tier.
func (p *Policy) Set(tier models.VerificationTier) (models.LimitSet, error) {
	set, ok := p.sets[tier]
	if !ok {
		return models.LimitSet{}, fmt.Errorf("unknown verification tier %q", tier)
	}
	return set, nil
}

// Check evaluates principal against the tier's ceilings given current usage. It
// checks perTransaction, then daily, weekly and monthly, and returns the first
// violation as *LimitExceededError. It never mutates usage: the ledger is only
// written by the submitter once a provider accepts the transfer.
func (p *Policy) Check(tier models.VerificationTier, usage models.Usage, principal models.Money) error {
	set, err := p.Set(tier)
	if err != nil {
		return err
	}

	if principal.GreaterThan(set.PerTransaction) {
		return &LimitExceededError{Scope: models.ScopePerTransaction, Limit: set.PerTransaction, Attempted: principal}
	}

	periods := []struct {
		scope models.LimitScope
		used  models.Money
		limit models.Money
	}{
		{models.ScopeDaily, usage.Daily, set.Daily},
		{models.ScopeWeekly, usage.Weekly, set.Weekly},
		{models.ScopeMonthly, usage.Monthly, set.Monthly},
	}
	for _, period := range periods {
		attempted, err := period.used.Add(principal)
		if err != nil {
			return err
		}
		if attempted.GreaterThan(period.limit) {
			return &LimitExceededError{Scope: period.scope, Limit: period.limit, Attempted: attempted}
		}
	}
	return nil
}

// Remaining returns how much more can be sent in each period, floored at zero.
func (p *Policy) Remaining(tier models.VerificationTier, usage models.Usage) (models.Usage, error) {
	set, err := p.Set(tier)
	if err != nil {
		return models.Usage{}, err
	}
	daily, err := set.Daily.Sub(usage.Daily)
	if err != nil {
		return models.Usage{}, err
	}
	weekly, err := set.Weekly.Sub(usage.Weekly)
	if err != nil {
		return models.Usage{}, err
	}
	monthly, err := set.Monthly.Sub(usage.Monthly)
	if err != nil {
		return models.Usage{}, err
	}
	return models.Usage{Daily: daily, Weekly: weekly, Monthly: monthly}, nil
}
