package models

import (
	"fmt"
	"strings"
	"time"
)

// VerificationTier is the KYC level of a sender.
type VerificationTier string

// Verification tiers in promotion order.
const (
	TierBasic    VerificationTier = "basic"
	TierVerified VerificationTier = "verified"
	TierPremium  VerificationTier = "premium"
)

// Tiers lists every tier in promotion order.
var Tiers = []VerificationTier{TierBasic, TierVerified, TierPremium}

// ParseTier parses a tier name case-insensitively.
func ParseTier(s string) (VerificationTier, error) {
	t := VerificationTier(strings.ToLower(strings.TrimSpace(s)))
	switch t {
	case TierBasic, TierVerified, TierPremium:
		return t, nil
	}
	return "", fmt.Errorf("unknown verification tier %q", s)
}

// LimitScope names one of the ceilings in a LimitSet.
type LimitScope string

// Limit scopes in evaluation order.
const (
	ScopePerTransaction LimitScope = "perTransaction"
	ScopeDaily          LimitScope = "daily"
	ScopeWeekly         LimitScope = "weekly"
	ScopeMonthly        LimitScope = "monthly"
)

// LimitSet holds the EUR ceilings for one tier.
type LimitSet struct {
	PerTransaction Money `json:"perTransaction"`
	Daily          Money `json:"daily"`
	Weekly         Money `json:"weekly"`
	Monthly        Money `json:"monthly"`
}

// Usage is a snapshot of completed (or pending, see ledger) principal per period.
type Usage struct {
	Daily   Money `json:"daily"`
	Weekly  Money `json:"weekly"`
	Monthly Money `json:"monthly"`
}

// ZeroUsage returns an empty EUR usage snapshot.
func ZeroUsage() Usage {
	return Usage{
		Daily:   ZeroOf(SourceCurrency),
		Weekly:  ZeroOf(SourceCurrency),
		Monthly: ZeroOf(SourceCurrency),
	}
}

// UsageRecord is an archived usage total for one closed period.
type UsageRecord struct {
	UserID      int64      `json:"userId"`
	Period      LimitScope `json:"period"`
	PeriodStart time.Time  `json:"periodStart"`
	Amount      Money      `json:"amount"`
	ArchivedAt  time.Time  `json:"archivedAt"`
}
