// Package wizard drives a sender through building a transfer: amount, service,
// beneficiary, payment card and summary, ending in submission.
package wizard

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/deloabass/nigertransfert/internal/fees"
	"github.com/deloabass/nigertransfert/internal/limits"
	"github.com/deloabass/nigertransfert/internal/logger"
	"github.com/deloabass/nigertransfert/internal/models"
	"github.com/deloabass/nigertransfert/internal/rates"
	"github.com/deloabass/nigertransfert/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("github.com/deloabass/nigertransfert/internal/wizard")

// RateTable resolves destinations and offers.
type RateTable interface {
	Country(code string) (models.Country, error)
	Lookup(country, serviceID string) (models.ServiceOffer, error)
}

// BeneficiaryStore resolves saved beneficiaries.
type BeneficiaryStore interface {
	Get(ctx context.Context, id string) (*models.Beneficiary, error)
}

// InstrumentStore resolves saved cards.
type InstrumentStore interface {
	Get(ctx context.Context, id string) (*models.PaymentInstrument, error)
	GetDefault(ctx context.Context, ownerID int64) (*models.PaymentInstrument, error)
}

// TierSource returns a sender's active verification tier.
type TierSource interface {
	Tier(ctx context.Context, userID int64) (models.VerificationTier, error)
}

// UsageSource returns a sender's current usage.
type UsageSource interface {
	Snapshot(ctx context.Context, userID int64) (models.Usage, error)
}

// Submitter hands a finished request to the provider.
type Submitter interface {
	Submit(ctx context.Context, req models.TransferRequest) (models.TransferResult, error)
}

// Deps are the collaborators of a Wizard.
type Deps struct {
	Rates         RateTable
	Beneficiaries BeneficiaryStore
	Instruments   InstrumentStore
	Tiers         TierSource
	Usage         UsageSource
	Policy        *limits.Policy
	Submitter     Submitter
	Now           func() time.Time
	NewID         func() string
}

// Wizard creates sessions sharing the same collaborators.
type Wizard struct {
	deps Deps
}

// New returns a Wizard. Now and NewID default to time.Now and uuid.NewString.
func New(deps Deps) *Wizard {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}
	if deps.Policy == nil {
		deps.Policy = limits.DefaultPolicy()
	}
	return &Wizard{deps: deps}
}

// Start opens a session with an empty draft at the Amount step.
func (w *Wizard) Start(senderID int64) *Session {
	logger.Log.Debug().Str("user_hash", logger.HashUserID(senderID)).Msg("Transfer wizard started")
	return &Session{
		w:        w,
		senderID: senderID,
		draft:    models.TransferDraft{Step: models.StepAmount},
	}
}

// Input carries the value collected at the current step. Fields for other steps are
// ignored; an empty field reuses the value already in the draft.
type Input struct {
	Amount        string
	ServiceID     string
	BeneficiaryID string
	InstrumentID  string
}

// Session is one sender's wizard run. It is safe for concurrent use; at most one
// submission is in flight at a time.
type Session struct {
	w        *Wizard
	senderID int64

	mu         sync.Mutex
	draft      models.TransferDraft
	quote      *fees.Quote
	submitting bool
	request    *models.TransferRequest
	result     *models.TransferResult
}

// SenderID returns the session owner.
func (s *Session) SenderID() int64 {
	return s.senderID
}

// Draft returns a copy of the working state.
func (s *Session) Draft() models.TransferDraft {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.draft
	if d.Principal != nil {
		p := *d.Principal
		d.Principal = &p
	}
	return d
}

// Step returns the current step.
func (s *Session) Step() models.Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft.Step
}

// Quote returns the last fee quote computed for the draft.
func (s *Session) Quote() (fees.Quote, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quote == nil {
		return fees.Quote{}, false
	}
	return *s.quote, true
}

// Result returns the submission outcome once the session reached Submitted.
func (s *Session) Result() (models.TransferRequest, models.TransferResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil || s.request == nil {
		return models.TransferRequest{}, models.TransferResult{}, false
	}
	return *s.request, *s.result, true
}

// SelectDestination sets the destination country. Choosing a different country
// clears the service and, when the draft is past the Service step, moves it back there.
func (s *Session) SelectDestination(country string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mutableLocked(); err != nil {
		return err
	}

	c, err := s.w.deps.Rates.Country(country)
	if err != nil {
		return ErrUnknownDestination
	}
	if c.Code == s.draft.Destination {
		return nil
	}

	s.draft.Destination = c.Code
	s.draft.ServiceID = ""
	s.quote = nil
	if stepIndex(s.draft.Step) > stepIndex(models.StepService) {
		s.draft.Step = models.StepService
	}
	return nil
}

// Advance validates the current step with in and moves to the next step. On a
// validation error the session stays put, except for stale references which move it
// back to the step owning the missing entity.
func (s *Session) Advance(ctx context.Context, in Input) error {
	ctx, span := tracer.Start(ctx, "wizard.Advance")
	defer span.End()

	s.mu.Lock()
	from := s.draft.Step
	span.SetAttributes(attribute.String("wizard.step", string(from)))

	if err := s.mutableLocked(); err != nil {
		s.mu.Unlock()
		return err
	}

	var err error
	switch from {
	case models.StepAmount:
		err = s.advanceAmount(in)
	case models.StepService:
		err = s.advanceService(in)
	case models.StepBeneficiary:
		err = s.advanceBeneficiary(ctx, in)
	case models.StepPayment:
		err = s.advancePayment(ctx, in)
	case models.StepSummary:
		// Unlocks while the submitter runs.
		err = s.submit(ctx)
		s.mu.Lock()
	}
	to := s.draft.Step
	s.mu.Unlock()

	event := logger.Log.Info()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, ErrorCode(err))
		event = logger.Log.Warn().Str("code", ErrorCode(err))
	}
	event.
		Str("user_hash", logger.HashUserID(s.senderID)).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("Wizard advance")
	return err
}

// Back moves to the previous step, keeping every value entered so far.
func (s *Session) Back() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mutableLocked(); err != nil {
		return err
	}
	i := stepIndex(s.draft.Step)
	if i == 0 {
		return ErrAtFirstStep
	}
	s.draft.Step = steps[i-1]
	return nil
}

// Cancel discards the draft. It has no other side effect.
func (s *Session) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mutableLocked(); err != nil {
		return err
	}
	from := s.draft.Step
	s.draft = models.TransferDraft{Step: models.StepCancelled}
	s.quote = nil
	logger.Log.Info().
		Str("user_hash", logger.HashUserID(s.senderID)).
		Str("from", string(from)).
		Msg("Transfer wizard cancelled")
	return nil
}

var steps = []models.Step{
	models.StepAmount,
	models.StepService,
	models.StepBeneficiary,
	models.StepPayment,
	models.StepSummary,
}

func stepIndex(step models.Step) int {
	for i, s := range steps {
		if s == step {
			return i
		}
	}
	return len(steps)
}

func (s *Session) mutableLocked() error {
	if s.draft.Step.IsTerminal() {
		return ErrTerminal
	}
	if s.submitting {
		return ErrSubmissionInFlight
	}
	return nil
}

// ParseAmount parses a EUR principal. It accepts a comma as decimal separator and
// rejects zero, negatives and more than two decimals.
func ParseAmount(text string) (models.Money, error) {
	text = strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(text), ",", "."))
	text = strings.TrimSpace(strings.TrimSuffix(text, "EUR"))
	text = strings.TrimSpace(strings.TrimSuffix(text, "€"))
	amount, err := decimal.NewFromString(text)
	if err != nil || !amount.IsPositive() {
		return models.Money{}, ErrEmptyOrInvalidAmount
	}
	if !amount.Equal(amount.Round(2)) {
		return models.Money{}, ErrEmptyOrInvalidAmount
	}
	return models.NewMoney(amount.Round(2), models.SourceCurrency)
}

func (s *Session) advanceAmount(in Input) error {
	principal := s.draft.Principal
	if strings.TrimSpace(in.Amount) != "" {
		m, err := ParseAmount(in.Amount)
		if err != nil {
			return err
		}
		principal = &m
	}
	if principal == nil {
		return ErrEmptyOrInvalidAmount
	}
	if s.draft.Destination == "" {
		// Keep the amount so the user does not retype it after picking a country.
		s.draft.Principal = principal
		return ErrDestinationRequired
	}

	s.draft.Principal = principal
	s.quote = nil
	s.draft.Step = models.StepService
	return nil
}

func (s *Session) advanceService(in Input) error {
	serviceID := s.draft.ServiceID
	if in.ServiceID != "" {
		serviceID = in.ServiceID
	}
	if serviceID == "" {
		return ErrServiceRequired
	}

	offer, err := s.w.deps.Rates.Lookup(s.draft.Destination, serviceID)
	if err != nil {
		return ErrUnknownService
	}
	quote, err := fees.Compute(*s.draft.Principal, offer)
	if err != nil {
		return err
	}

	s.draft.ServiceID = offer.ID
	s.quote = &quote
	s.draft.Step = models.StepBeneficiary
	return nil
}

func (s *Session) advanceBeneficiary(ctx context.Context, in Input) error {
	if _, err := s.resolveOffer(); err != nil {
		return err
	}

	id := s.draft.BeneficiaryID
	if in.BeneficiaryID != "" {
		id = in.BeneficiaryID
	}
	if id == "" {
		return ErrBeneficiaryRequired
	}

	b, err := s.resolveBeneficiary(ctx, id)
	if err != nil {
		return err
	}
	if b.DestinationCountry != s.draft.Destination {
		return ErrBeneficiaryCountry
	}

	s.draft.BeneficiaryID = b.ID
	s.draft.Step = models.StepPayment
	return nil
}

func (s *Session) advancePayment(ctx context.Context, in Input) error {
	if _, err := s.resolveOffer(); err != nil {
		return err
	}
	if _, err := s.resolveBeneficiary(ctx, s.draft.BeneficiaryID); err != nil {
		return err
	}

	id := s.draft.InstrumentID
	if in.InstrumentID != "" {
		id = in.InstrumentID
	}

	var instrument *models.PaymentInstrument
	var err error
	if id == "" {
		instrument, err = s.w.deps.Instruments.GetDefault(ctx, s.senderID)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNoPaymentInstrument
		}
		if err != nil {
			return err
		}
	} else {
		instrument, err = s.resolveInstrument(ctx, id)
		if err != nil {
			return err
		}
	}

	s.draft.InstrumentID = instrument.ID
	if err := s.checkLimitsLocked(ctx, *s.draft.Principal); err != nil {
		return err
	}
	s.draft.Step = models.StepSummary
	return nil
}

// checkLimitsLocked is run before the summary is shown and again at submit,
// since usage or tier may change in between.
func (s *Session) checkLimitsLocked(ctx context.Context, principal models.Money) error {
	tier, err := s.w.deps.Tiers.Tier(ctx, s.senderID)
	if err != nil {
		return err
	}
	usage, err := s.w.deps.Usage.Snapshot(ctx, s.senderID)
	if err != nil {
		return err
	}
	return s.w.deps.Policy.Check(tier, usage, principal)
}

// submit runs with s.mu held and returns with it released.
func (s *Session) submit(ctx context.Context) error {
	req, err := s.buildRequestLocked(ctx)
	if err != nil {
		s.mu.Unlock()
		return err
	}

	s.submitting = true
	s.mu.Unlock()

	result, err := s.w.deps.Submitter.Submit(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitting = false
	if err != nil {
		return err
	}

	s.request = &req
	s.result = &result
	s.draft.Step = models.StepSubmitted
	return nil
}

// buildRequestLocked re-validates every reference, the fee and the limits, and
// builds a fresh request.
func (s *Session) buildRequestLocked(ctx context.Context) (models.TransferRequest, error) {
	offer, err := s.resolveOffer()
	if err != nil {
		return models.TransferRequest{}, err
	}
	b, err := s.resolveBeneficiary(ctx, s.draft.BeneficiaryID)
	if err != nil {
		return models.TransferRequest{}, err
	}
	if b.DestinationCountry != s.draft.Destination {
		// Edited to another country since it was picked.
		return models.TransferRequest{}, s.staleLocked("beneficiary", b.ID, models.StepBeneficiary)
	}
	instrument, err := s.resolveInstrument(ctx, s.draft.InstrumentID)
	if err != nil {
		return models.TransferRequest{}, err
	}

	quote, err := fees.Compute(*s.draft.Principal, offer)
	if err != nil {
		return models.TransferRequest{}, err
	}
	s.quote = &quote

	if err := s.checkLimitsLocked(ctx, quote.Principal); err != nil {
		return models.TransferRequest{}, err
	}

	return models.TransferRequest{
		ID:             s.w.deps.NewID(),
		SenderID:       s.senderID,
		Principal:      quote.Principal,
		Fee:            quote.Fee,
		TotalDebit:     quote.TotalDebit,
		ReceivedAmount: quote.ReceivedAmount,
		ServiceID:      offer.ID,
		BeneficiaryID:  b.ID,
		InstrumentID:   instrument.ID,
		CreatedAt:      s.w.deps.Now(),
	}, nil
}

func (s *Session) resolveOffer() (models.ServiceOffer, error) {
	offer, err := s.w.deps.Rates.Lookup(s.draft.Destination, s.draft.ServiceID)
	if errors.Is(err, rates.ErrOfferNotFound) || errors.Is(err, rates.ErrCountryNotFound) {
		return models.ServiceOffer{}, s.staleLocked("service", s.draft.ServiceID, models.StepService)
	}
	return offer, err
}

func (s *Session) resolveBeneficiary(ctx context.Context, id string) (*models.Beneficiary, error) {
	b, err := s.w.deps.Beneficiaries.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && b.OwnerID != s.senderID) {
		return nil, s.staleLocked("beneficiary", id, models.StepBeneficiary)
	}
	return b, err
}

func (s *Session) resolveInstrument(ctx context.Context, id string) (*models.PaymentInstrument, error) {
	p, err := s.w.deps.Instruments.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && p.OwnerID != s.senderID) {
		return nil, s.staleLocked("payment instrument", id, models.StepPayment)
	}
	return p, err
}

// staleLocked clears the missing reference and moves the draft back to its step.
func (s *Session) staleLocked(entity, id string, step models.Step) error {
	switch step {
	case models.StepService:
		s.draft.ServiceID = ""
		s.quote = nil
	case models.StepBeneficiary:
		s.draft.BeneficiaryID = ""
	case models.StepPayment:
		s.draft.InstrumentID = ""
	}
	s.draft.Step = step
	return &StaleReferenceError{Entity: entity, ID: id, Step: step}
}
