package models

import "time"

// Step identifies a wizard state.
type Step string

// Wizard steps. Submitted and Cancelled are terminal.
const (
	StepAmount      Step = "amount"
	StepService     Step = "service"
	StepBeneficiary Step = "beneficiary"
	StepPayment     Step = "payment"
	StepSummary     Step = "summary"
	StepSubmitted   Step = "submitted"
	StepCancelled   Step = "cancelled"
)

// IsTerminal reports whether no further transition is possible from s.
func (s Step) IsTerminal() bool {
	return s == StepSubmitted || s == StepCancelled
}

// TransferDraft is the working state of a wizard. Entities are referenced by id and
// re-resolved on every advance.
type TransferDraft struct {
	Step          Step
	Destination   string
	Principal     *Money
	ServiceID     string
	BeneficiaryID string
	InstrumentID  string
}

// TransferRequest is the immutable, validated output of the wizard.
type TransferRequest struct {
	ID             string    `json:"id"`
	SenderID       int64     `json:"senderId"`
	Principal      Money     `json:"principal"`
	Fee            Money     `json:"fee"`
	TotalDebit     Money     `json:"totalDebit"`
	ReceivedAmount Money     `json:"receivedAmount"`
	ServiceID      string    `json:"serviceId"`
	BeneficiaryID  string    `json:"beneficiaryId"`
	InstrumentID   string    `json:"instrumentId"`
	CreatedAt      time.Time `json:"createdAt"`
}

// TransferStatus is the terminal outcome reported by the submitter.
type TransferStatus string

// Submission outcomes.
const (
	StatusCompleted TransferStatus = "completed"
	StatusPending   TransferStatus = "pending"
	StatusFailed    TransferStatus = "failed"
)

// TransferResult is returned by the submitter and rendered by presenters.
type TransferResult struct {
	RequestID string         `json:"requestId"`
	Status    TransferStatus `json:"status"`
	Reference string         `json:"reference"`
	Reason    string         `json:"reason,omitempty"`
}
