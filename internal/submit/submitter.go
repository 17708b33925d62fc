// Package submit hands finished transfer requests to the payout provider exactly
// once, books accepted principal in the usage ledger and publishes the outcome.
package submit

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/deloabass/nigertransfert/internal/events"
	"github.com/deloabass/nigertransfert/internal/logger"
	"github.com/deloabass/nigertransfert/internal/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/deloabass/nigertransfert/internal/submit"

var (
	tracer = otel.Tracer(instrumentationName)
	meter  = otel.Meter(instrumentationName)
)

// Ledger is the usage ledger written on acceptance.
type Ledger interface {
	Add(ctx context.Context, userID int64, amount models.Money) (time.Time, error)
	Reverse(ctx context.Context, userID int64, amount models.Money, bookedAt time.Time) error
}

// PendingTransfer is an accepted transfer whose final outcome is not known yet. Its
// principal is already counted in the ledger.
type PendingTransfer struct {
	Request   models.TransferRequest
	Reference string
	BookedAt  time.Time
}

// Submitter submits transfer requests. Pending transfers are counted in usage
// immediately and reversed if they later fail.
type Submitter struct {
	backend   Backend
	registry  Registry
	ledger    Ledger
	publisher events.Publisher
	now       func() time.Time

	mu      sync.Mutex
	pending map[string]PendingTransfer

	outcomes metric.Int64Counter
	volume   metric.Float64Counter
}

// Option configures a Submitter.
type Option func(*Submitter)

// WithPublisher sets the result event publisher.
func WithPublisher(p events.Publisher) Option {
	return func(s *Submitter) { s.publisher = p }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Submitter) { s.now = now }
}

// New creates a Submitter.
func New(backend Backend, registry Registry, ledger Ledger, opts ...Option) (*Submitter, error) {
	s := &Submitter{
		backend:   backend,
		registry:  registry,
		ledger:    ledger,
		publisher: events.NoopPublisher{},
		now:       time.Now,
		pending:   make(map[string]PendingTransfer),
	}
	for _, opt := range opts {
		opt(s)
	}

	var err error
	s.outcomes, err = meter.Int64Counter("transfer.submissions",
		metric.WithDescription("Transfer submissions by outcome"))
	if err != nil {
		return nil, fmt.Errorf("failed to create submissions counter: %w", err)
	}
	s.volume, err = meter.Float64Counter("transfer.principal",
		metric.WithDescription("Accepted principal"), metric.WithUnit("EUR"))
	if err != nil {
		return nil, fmt.Errorf("failed to create principal counter: %w", err)
	}
	return s, nil
}

// Submit sends req to the backend once. A request id seen before returns
// ErrDuplicateSubmission without contacting the backend. A rejected transfer returns
// its result together with a *SubmissionFailedError and leaves usage untouched.
func (s *Submitter) Submit(ctx context.Context, req models.TransferRequest) (models.TransferResult, error) {
	ctx, span := tracer.Start(ctx, "submit.Submit")
	defer span.End()
	span.SetAttributes(attribute.String("transfer.request_id", req.ID), attribute.String("transfer.service", req.ServiceID))

	claimed, err := s.registry.Claim(ctx, req.ID)
	if err != nil {
		span.RecordError(err)
		return models.TransferResult{}, err
	}
	if !claimed {
		logger.Log.Warn().
			Str("user_hash", logger.HashUserID(req.SenderID)).
			Str("request_id", req.ID).
			Msg("Duplicate transfer submission rejected")
		span.SetStatus(codes.Error, "duplicate")
		return models.TransferResult{}, ErrDuplicateSubmission
	}

	result, err := s.backend.Execute(ctx, req)
	if err != nil {
		result = models.TransferResult{Status: models.StatusFailed, Reason: err.Error()}
	}
	result.RequestID = req.ID

	switch result.Status {
	case models.StatusCompleted, models.StatusPending:
		bookedAt, err := s.ledger.Add(ctx, req.SenderID, req.Principal)
		if err != nil {
			// The provider already accepted it, so the outcome stands.
			logger.Log.Error().Err(err).Str("request_id", req.ID).Msg("Ledger reported an error while booking transfer")
		}
		if result.Status == models.StatusPending {
			s.mu.Lock()
			s.pending[result.Reference] = PendingTransfer{Request: req, Reference: result.Reference, BookedAt: bookedAt}
			s.mu.Unlock()
		}
		s.volume.Add(ctx, req.Principal.Amount.InexactFloat64(),
			metric.WithAttributes(attribute.String("service", req.ServiceID)))
	default:
		result.Status = models.StatusFailed
	}

	s.finish(ctx, req, result)
	span.SetAttributes(attribute.String("transfer.status", string(result.Status)))

	if result.Status == models.StatusFailed {
		span.SetStatus(codes.Error, result.Reason)
		return result, &SubmissionFailedError{Reference: result.Reference, Reason: result.Reason}
	}
	return result, nil
}

// Resolve settles a pending transfer. Completed keeps the booked usage; Failed
// reverses it.
func (s *Submitter) Resolve(ctx context.Context, reference string, status models.TransferStatus, reason string) (models.TransferResult, error) {
	if status != models.StatusCompleted && status != models.StatusFailed {
		return models.TransferResult{}, ErrInvalidResolution
	}

	s.mu.Lock()
	p, ok := s.pending[reference]
	if ok {
		delete(s.pending, reference)
	}
	s.mu.Unlock()
	if !ok {
		return models.TransferResult{}, ErrUnknownReference
	}

	result := models.TransferResult{RequestID: p.Request.ID, Status: status, Reference: reference, Reason: reason}
	if status == models.StatusFailed {
		if err := s.ledger.Reverse(ctx, p.Request.SenderID, p.Request.Principal, p.BookedAt); err != nil {
			logger.Log.Error().Err(err).Str("reference", reference).Msg("Ledger reported an error while reversing transfer")
		}
	}

	s.finish(ctx, p.Request, result)
	return result, nil
}

// Pending lists unresolved transfers ordered by booking time, then reference.
func (s *Submitter) Pending() []PendingTransfer {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := make([]PendingTransfer, 0, len(s.pending))
	for _, p := range s.pending {
		list = append(list, p)
	}
	slices.SortFunc(list, func(a, b PendingTransfer) int {
		if c := a.BookedAt.Compare(b.BookedAt); c != 0 {
			return c
		}
		return strings.Compare(a.Reference, b.Reference)
	})
	return list
}

// finish records, counts, logs and publishes an outcome. Failures here never change
// the outcome.
func (s *Submitter) finish(ctx context.Context, req models.TransferRequest, result models.TransferResult) {
	if err := s.registry.Record(ctx, req.ID, result); err != nil {
		logger.Log.Error().Err(err).Str("request_id", req.ID).Msg("Failed to record transfer result")
	}

	s.outcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(result.Status))))

	event := logger.Log.Info()
	if result.Status == models.StatusFailed {
		event = logger.Log.Warn().Str("reason", result.Reason)
	}
	event.
		Str("user_hash", logger.HashUserID(req.SenderID)).
		Str("request_id", req.ID).
		Str("reference", result.Reference).
		Str("status", string(result.Status)).
		Str("principal", req.Principal.String()).
		Msg("Transfer outcome")

	ev := events.NewTransferEvent(req, result, s.now())
	if err := s.publisher.PublishTransferEvent(ctx, ev); err != nil {
		logger.Log.Error().Err(err).Str("request_id", req.ID).Msg("Failed to publish transfer event")
	}
}
