package submit

import (
	"context"
	"strings"
	"sync"

	"github.com/deloabass/nigertransfert/internal/models"
	"github.com/google/uuid"
)

// Backend executes a transfer with the payout provider.
type Backend interface {
	Execute(ctx context.Context, req models.TransferRequest) (models.TransferResult, error)
}

// NewReference returns a provider-style reference such as TRF-1A2B3C4D.
func NewReference() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "TRF-" + strings.ToUpper(id[:8])
}

// SimulatedBackend answers immediately: Completed below PendingThreshold, Pending at
// or above it. Beneficiaries and instruments can be flagged to fail.
type SimulatedBackend struct {
	PendingThreshold models.Money

	mu                 sync.RWMutex
	failingBeneficiary map[string]string
	failingInstrument  map[string]string
}

// NewSimulatedBackend returns a backend with the given pending threshold.
func NewSimulatedBackend(pendingThreshold models.Money) *SimulatedBackend {
	return &SimulatedBackend{
		PendingThreshold:   pendingThreshold,
		failingBeneficiary: make(map[string]string),
		failingInstrument:  make(map[string]string),
	}
}

// FailBeneficiary makes transfers to the beneficiary fail with reason.
func (b *SimulatedBackend) FailBeneficiary(id, reason string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failingBeneficiary[id] = reason
}

// FailInstrument makes transfers paid with the instrument fail with reason.
func (b *SimulatedBackend) FailInstrument(id, reason string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failingInstrument[id] = reason
}

// Execute simulates the provider call.
func (b *SimulatedBackend) Execute(ctx context.Context, req models.TransferRequest) (models.TransferResult, error) {
	result := models.TransferResult{RequestID: req.ID, Reference: NewReference()}

	if err := ctx.Err(); err != nil {
		result.Status = models.StatusFailed
		result.Reason = "request cancelled before reaching the provider"
		return result, nil
	}

	b.mu.RLock()
	reason, failed := b.failingBeneficiary[req.BeneficiaryID]
	if !failed {
		reason, failed = b.failingInstrument[req.InstrumentID]
	}
	b.mu.RUnlock()

	switch {
	case failed:
		result.Status = models.StatusFailed
		result.Reason = reason
	case req.Principal.Amount.GreaterThanOrEqual(b.PendingThreshold.Amount):
		result.Status = models.StatusPending
	default:
		result.Status = models.StatusCompleted
	}
	return result, nil
}
