package wizard

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/deloabass/nigertransfert/internal/fees"
	"github.com/deloabass/nigertransfert/internal/ledger"
	"github.com/deloabass/nigertransfert/internal/limits"
	"github.com/deloabass/nigertransfert/internal/models"
	"github.com/deloabass/nigertransfert/internal/rates"
	"github.com/deloabass/nigertransfert/internal/repository"
	"github.com/deloabass/nigertransfert/internal/submit"
	"github.com/stretchr/testify/require"
)

const sender int64 = 42

// withdrawableRates hides offers to simulate a provider being withdrawn mid-wizard.
type withdrawableRates struct {
	*rates.Table
	mu        sync.Mutex
	withdrawn map[string]bool
}

func (r *withdrawableRates) withdraw(country, serviceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.withdrawn[country+"/"+serviceID] = true
}

func (r *withdrawableRates) Lookup(country, serviceID string) (models.ServiceOffer, error) {
	r.mu.Lock()
	gone := r.withdrawn[country+"/"+serviceID]
	r.mu.Unlock()
	if gone {
		return models.ServiceOffer{}, rates.ErrOfferNotFound
	}
	return r.Table.Lookup(country, serviceID)
}

// blockingSubmitter holds Submit until release is closed.
type blockingSubmitter struct {
	started chan struct{}
	release chan struct{}
	inner   Submitter
}

func (b *blockingSubmitter) Submit(ctx context.Context, req models.TransferRequest) (models.TransferResult, error) {
	close(b.started)
	<-b.release
	return b.inner.Submit(ctx, req)
}

type env struct {
	wizard        *Wizard
	rates         *withdrawableRates
	beneficiaries *repository.MemoryBeneficiaryStore
	instruments   *repository.MemoryInstrumentStore
	tiers         *limits.Registry
	ledger        *ledger.Ledger
	backend       *submit.SimulatedBackend
	submitter     *submit.Submitter
	beneficiary   *models.Beneficiary
	card          *models.PaymentInstrument
	ids           int
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()
	clock := func() time.Time { return time.Date(2026, 3, 18, 10, 0, 0, 0, time.UTC) }

	e := &env{
		rates:         &withdrawableRates{Table: rates.Default(), withdrawn: map[string]bool{}},
		beneficiaries: repository.NewMemoryBeneficiaryStore(),
		instruments:   repository.NewMemoryInstrumentStore(),
		tiers:         limits.NewRegistry(repository.NewMemoryUserStore()),
		ledger:        ledger.New(time.UTC, time.Monday, ledger.WithClock(clock)),
		backend:       submit.NewSimulatedBackend(models.EUR("800")),
	}
	s, err := submit.New(e.backend, submit.NewMemoryRegistry(time.Hour), e.ledger, submit.WithClock(clock))
	require.NoError(t, err)
	e.submitter = s

	e.beneficiary = &models.Beneficiary{OwnerID: sender, Name: "Amina", Phone: "+22790000001", DestinationCity: "Niamey", DestinationCountry: "NE"}
	require.NoError(t, e.beneficiaries.Upsert(ctx, e.beneficiary))
	e.card = &models.PaymentInstrument{OwnerID: sender, Last4: "4242", Brand: models.BrandVisa, HolderName: "AMINA", Expiry: "12/29"}
	require.NoError(t, e.instruments.Upsert(ctx, e.card))

	e.wizard = e.newWizard(e.submitter)
	return e
}

func (e *env) newWizard(s Submitter) *Wizard {
	return New(Deps{
		Rates:         e.rates,
		Beneficiaries: e.beneficiaries,
		Instruments:   e.instruments,
		Tiers:         e.tiers,
		Usage:         e.ledger,
		Policy:        limits.DefaultPolicy(),
		Submitter:     s,
		Now:           func() time.Time { return time.Date(2026, 3, 18, 10, 0, 0, 0, time.UTC) },
		NewID: func() string {
			e.ids++
			return "req-" + strconv.Itoa(e.ids)
		},
	})
}

// toPayment walks a fresh session to the Payment step.
func (e *env) toPayment(t *testing.T, w *Wizard, amount string) *Session {
	t.Helper()
	ctx := context.Background()
	s := w.Start(sender)
	require.NoError(t, s.SelectDestination("ne"))
	require.NoError(t, s.Advance(ctx, Input{Amount: amount}))
	require.NoError(t, s.Advance(ctx, Input{ServiceID: "wave"}))
	require.NoError(t, s.Advance(ctx, Input{BeneficiaryID: e.beneficiary.ID}))
	require.Equal(t, models.StepPayment, s.Step())
	return s
}

// toSummary walks a fresh session to the Summary step.
func (e *env) toSummary(t *testing.T, w *Wizard, amount string) *Session {
	t.Helper()
	s := e.toPayment(t, w, amount)
	require.NoError(t, s.Advance(context.Background(), Input{}))
	require.Equal(t, models.StepSummary, s.Step())
	return s
}

func TestWizard_HappyPath(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()

	s := e.toSummary(t, e.wizard, "150")
	q, ok := s.Quote()
	require.True(t, ok)
	require.Equal(t, "3.75 EUR", q.Fee.String())
	require.Equal(t, "153.75 EUR", q.TotalDebit.String())
	require.Equal(t, "98400 XOF", q.ReceivedAmount.String())
	require.Equal(t, e.card.ID, s.Draft().InstrumentID, "default card is preselected")

	require.NoError(t, s.Advance(ctx, Input{}))
	require.Equal(t, models.StepSubmitted, s.Step())

	req, res, ok := s.Result()
	require.True(t, ok)
	require.Equal(t, models.StatusCompleted, res.Status)
	require.Equal(t, "153.75 EUR", req.TotalDebit.String())
	require.Equal(t, sender, req.SenderID)

	u, err := e.ledger.Snapshot(ctx, sender)
	require.NoError(t, err)
	require.Equal(t, "150.00 EUR", u.Daily.String())

	require.ErrorIs(t, s.Advance(ctx, Input{}), ErrTerminal)
	require.ErrorIs(t, s.Cancel(), ErrTerminal)
}

func TestWizard_AmountStep(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tests := []struct {
		name   string
		amount string
		want   error
	}{
		{"empty", "", ErrEmptyOrInvalidAmount},
		{"zero", "0", ErrEmptyOrInvalidAmount},
		{"negative", "-5", ErrEmptyOrInvalidAmount},
		{"text", "abc", ErrEmptyOrInvalidAmount},
		{"three decimals", "10.005", ErrEmptyOrInvalidAmount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e := newEnv(t)
			s := e.wizard.Start(sender)
			require.NoError(t, s.SelectDestination("NE"))
			err := s.Advance(ctx, Input{Amount: tt.amount})
			require.ErrorIs(t, err, tt.want)
			require.Equal(t, CodeEmptyOrInvalidAmount, ErrorCode(err))
			require.Equal(t, models.StepAmount, s.Step())
		})
	}

	t.Run("destination required", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		s := e.wizard.Start(sender)
		err := s.Advance(ctx, Input{Amount: "100"})
		require.ErrorIs(t, err, ErrDestinationRequired)
		require.Equal(t, models.StepAmount, s.Step())

		require.NoError(t, s.SelectDestination("NE"))
		require.NoError(t, s.Advance(ctx, Input{}), "amount is kept while the country is picked")
		require.Equal(t, models.StepService, s.Step())
	})

	t.Run("unknown destination", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		require.ErrorIs(t, e.wizard.Start(sender).SelectDestination("FR"), ErrUnknownDestination)
	})

	t.Run("comma decimal and currency suffix", func(t *testing.T) {
		t.Parallel()
		m, err := ParseAmount(" 12,50 EUR ")
		require.NoError(t, err)
		require.Equal(t, "12.50 EUR", m.String())
		m, err = ParseAmount("20€")
		require.NoError(t, err)
		require.Equal(t, "20.00 EUR", m.String())
	})
}

func TestWizard_ServiceStep(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("out of range keeps the user on the step", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		s := e.wizard.Start(sender)
		require.NoError(t, s.SelectDestination("NE"))
		require.NoError(t, s.Advance(ctx, Input{Amount: "5"}))

		err := s.Advance(ctx, Input{ServiceID: "wave"})
		var oor *fees.OutOfRangeError
		require.ErrorAs(t, err, &oor)
		require.Equal(t, "10.00 EUR", oor.Min.String())
		require.Equal(t, "1000.00 EUR", oor.Max.String())
		require.Equal(t, CodeOutOfRange, ErrorCode(err))
		require.Equal(t, models.StepService, s.Step())

		require.NoError(t, s.Back())
		require.NoError(t, s.Advance(ctx, Input{Amount: "50"}))
		require.NoError(t, s.Advance(ctx, Input{}), "service choice survives going back")
		require.Equal(t, models.StepBeneficiary, s.Step())
	})

	t.Run("unknown service", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		s := e.wizard.Start(sender)
		require.NoError(t, s.SelectDestination("NE"))
		require.NoError(t, s.Advance(ctx, Input{Amount: "50"}))
		require.ErrorIs(t, s.Advance(ctx, Input{}), ErrServiceRequired)
		require.ErrorIs(t, s.Advance(ctx, Input{ServiceID: "wafacash"}), ErrUnknownService)
	})
}

func TestWizard_CancelFromBeneficiary(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()

	s := e.wizard.Start(sender)
	require.NoError(t, s.SelectDestination("NE"))
	require.NoError(t, s.Advance(ctx, Input{Amount: "150"}))
	require.NoError(t, s.Advance(ctx, Input{ServiceID: "wave"}))
	require.Equal(t, models.StepBeneficiary, s.Step())

	require.NoError(t, s.Cancel())
	require.Equal(t, models.StepCancelled, s.Step())
	require.Nil(t, s.Draft().Principal)

	u, err := e.ledger.Snapshot(ctx, sender)
	require.NoError(t, err)
	require.True(t, u.Daily.IsZero())
	list, err := e.beneficiaries.List(ctx, sender)
	require.NoError(t, err)
	require.Len(t, list, 1)
	cards, err := e.instruments.List(ctx, sender)
	require.NoError(t, err)
	require.Len(t, cards, 1)
	require.Empty(t, e.submitter.Pending())
}

func TestWizard_BackPreservesValues(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()
	s := e.toSummary(t, e.wizard, "150")

	for _, want := range []models.Step{models.StepPayment, models.StepBeneficiary, models.StepService, models.StepAmount} {
		require.NoError(t, s.Back())
		require.Equal(t, want, s.Step())
	}
	require.ErrorIs(t, s.Back(), ErrAtFirstStep)

	d := s.Draft()
	require.Equal(t, "150.00 EUR", d.Principal.String())
	require.Equal(t, "wave", d.ServiceID)
	require.Equal(t, e.beneficiary.ID, d.BeneficiaryID)
	require.Equal(t, e.card.ID, d.InstrumentID)

	for range 4 {
		require.NoError(t, s.Advance(ctx, Input{}))
	}
	require.Equal(t, models.StepSummary, s.Step())
}

func TestWizard_StaleReferences(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("deleted beneficiary at summary", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		s := e.toSummary(t, e.wizard, "150")
		require.NoError(t, e.beneficiaries.Delete(ctx, sender, e.beneficiary.ID))

		err := s.Advance(ctx, Input{})
		var stale *StaleReferenceError
		require.ErrorAs(t, err, &stale)
		require.Equal(t, "beneficiary", stale.Entity)
		require.Equal(t, models.StepBeneficiary, stale.Step)
		require.Equal(t, CodeStaleReference, ErrorCode(err))
		require.Equal(t, models.StepBeneficiary, s.Step())
		require.Empty(t, s.Draft().BeneficiaryID)
		require.Equal(t, "wave", s.Draft().ServiceID)

		u, err := e.ledger.Snapshot(ctx, sender)
		require.NoError(t, err)
		require.True(t, u.Daily.IsZero())
	})

	t.Run("beneficiary moved to another country", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		s := e.toSummary(t, e.wizard, "150")
		moved := *e.beneficiary
		moved.DestinationCountry = "SN"
		require.NoError(t, e.beneficiaries.Upsert(ctx, &moved))

		var stale *StaleReferenceError
		require.ErrorAs(t, s.Advance(ctx, Input{}), &stale)
		require.Equal(t, models.StepBeneficiary, s.Step())
	})

	t.Run("deleted card at summary", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		s := e.toSummary(t, e.wizard, "150")
		require.NoError(t, e.instruments.Delete(ctx, sender, e.card.ID))

		var stale *StaleReferenceError
		require.ErrorAs(t, s.Advance(ctx, Input{}), &stale)
		require.Equal(t, models.StepPayment, s.Step())

		require.ErrorIs(t, s.Advance(ctx, Input{}), ErrNoPaymentInstrument)
	})

	t.Run("withdrawn service", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		s := e.toSummary(t, e.wizard, "150")
		e.rates.withdraw("NE", "wave")

		var stale *StaleReferenceError
		require.ErrorAs(t, s.Advance(ctx, Input{}), &stale)
		require.Equal(t, "service", stale.Entity)
		require.Equal(t, models.StepService, s.Step())
		require.NoError(t, s.Advance(ctx, Input{ServiceID: "orange-money"}))
	})

	t.Run("someone else's beneficiary", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		other := &models.Beneficiary{OwnerID: 99, Name: "X", Phone: "+22790000002", DestinationCountry: "NE"}
		require.NoError(t, e.beneficiaries.Upsert(ctx, other))

		s := e.wizard.Start(sender)
		require.NoError(t, s.SelectDestination("NE"))
		require.NoError(t, s.Advance(ctx, Input{Amount: "50"}))
		require.NoError(t, s.Advance(ctx, Input{ServiceID: "wave"}))
		var stale *StaleReferenceError
		require.ErrorAs(t, s.Advance(ctx, Input{BeneficiaryID: other.ID}), &stale)
	})

	t.Run("beneficiary in another country", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		s := e.wizard.Start(sender)
		require.NoError(t, s.SelectDestination("SN"))
		require.NoError(t, s.Advance(ctx, Input{Amount: "50"}))
		require.NoError(t, s.Advance(ctx, Input{ServiceID: "wave"}))
		err := s.Advance(ctx, Input{BeneficiaryID: e.beneficiary.ID})
		require.ErrorIs(t, err, ErrBeneficiaryCountry)
		require.Equal(t, models.StepBeneficiary, s.Step())
	})
}

func TestWizard_NoPaymentInstrumentDetour(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()
	require.NoError(t, e.instruments.Delete(ctx, sender, e.card.ID))

	s := e.wizard.Start(sender)
	require.NoError(t, s.SelectDestination("NE"))
	require.NoError(t, s.Advance(ctx, Input{Amount: "150"}))
	require.NoError(t, s.Advance(ctx, Input{ServiceID: "wave"}))
	require.NoError(t, s.Advance(ctx, Input{BeneficiaryID: e.beneficiary.ID}))

	err := s.Advance(ctx, Input{})
	require.ErrorIs(t, err, ErrNoPaymentInstrument)
	require.Equal(t, CodeNoPaymentInstrument, ErrorCode(err))
	require.Equal(t, models.StepPayment, s.Step())

	card := &models.PaymentInstrument{OwnerID: sender, Last4: "4444", Brand: models.BrandMastercard, HolderName: "AMINA", Expiry: "01/30"}
	require.NoError(t, e.instruments.Upsert(ctx, card))

	require.NoError(t, s.Advance(ctx, Input{}))
	require.Equal(t, models.StepSummary, s.Step())
	d := s.Draft()
	require.Equal(t, card.ID, d.InstrumentID)
	require.Equal(t, "150.00 EUR", d.Principal.String())
}

func TestWizard_LimitExceeded(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("per-transaction limit reported before summary", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		s := e.toPayment(t, e.wizard, "400")

		err := s.Advance(ctx, Input{})
		var lim *limits.LimitExceededError
		require.ErrorAs(t, err, &lim)
		require.Equal(t, models.ScopePerTransaction, lim.Scope)
		require.Equal(t, "300.00 EUR", lim.Limit.String())
		require.Equal(t, CodeLimitExceeded, ErrorCode(err))
		require.Equal(t, models.StepPayment, s.Step())
		require.Equal(t, e.card.ID, s.Draft().InstrumentID, "chosen card is kept")

		_, ok := s.Quote()
		require.True(t, ok, "quote stays visible so the amount can be revised")
	})

	t.Run("daily limit reported before summary", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		_, err := e.ledger.Add(ctx, sender, models.EUR("450"))
		require.NoError(t, err)

		s := e.toPayment(t, e.wizard, "100")
		err = s.Advance(ctx, Input{})
		var lim *limits.LimitExceededError
		require.ErrorAs(t, err, &lim)
		require.Equal(t, models.ScopeDaily, lim.Scope)
		require.Equal(t, "550.00 EUR", lim.Attempted.String())
		require.Equal(t, models.StepPayment, s.Step())
	})

	t.Run("usage booked after summary is caught at submit", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		s := e.toSummary(t, e.wizard, "100")
		_, err := e.ledger.Add(ctx, sender, models.EUR("450"))
		require.NoError(t, err)

		err = s.Advance(ctx, Input{})
		var lim *limits.LimitExceededError
		require.ErrorAs(t, err, &lim)
		require.Equal(t, models.ScopeDaily, lim.Scope)
		require.Equal(t, models.StepSummary, s.Step())

		_, _, ok := s.Result()
		require.False(t, ok)
	})

	t.Run("tier upgrade applies to the next check", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		s := e.toPayment(t, e.wizard, "400")
		var lim *limits.LimitExceededError
		require.ErrorAs(t, s.Advance(ctx, Input{}), &lim)
		require.Equal(t, models.ScopePerTransaction, lim.Scope)

		require.NoError(t, e.tiers.SetTier(ctx, sender, models.TierVerified))
		require.NoError(t, s.Advance(ctx, Input{}))
		require.Equal(t, models.StepSummary, s.Step())
		require.NoError(t, s.Advance(ctx, Input{}))
		require.Equal(t, models.StepSubmitted, s.Step())
	})
}

func TestWizard_FailedSubmissionStaysAtSummary(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()
	e.backend.FailInstrument(e.card.ID, "card declined")

	s := e.toSummary(t, e.wizard, "150")
	err := s.Advance(ctx, Input{})
	var failed *submit.SubmissionFailedError
	require.ErrorAs(t, err, &failed)
	require.Equal(t, CodeSubmissionFailed, ErrorCode(err))
	require.Equal(t, models.StepSummary, s.Step())

	u, err := e.ledger.Snapshot(ctx, sender)
	require.NoError(t, err)
	require.True(t, u.Daily.IsZero())

	// A retry builds a new request rather than resubmitting the failed one.
	other := &models.PaymentInstrument{OwnerID: sender, Last4: "4444", Brand: models.BrandMastercard, HolderName: "AMINA", Expiry: "01/30"}
	require.NoError(t, e.instruments.Upsert(ctx, other))
	require.NoError(t, s.Back())
	require.NoError(t, s.Advance(ctx, Input{InstrumentID: other.ID}))
	require.NoError(t, s.Advance(ctx, Input{}))

	req, res, ok := s.Result()
	require.True(t, ok)
	require.Equal(t, "req-2", req.ID)
	require.Equal(t, models.StatusCompleted, res.Status)
}

func TestWizard_DuplicateRequestID(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()
	w := New(Deps{
		Rates:         e.rates,
		Beneficiaries: e.beneficiaries,
		Instruments:   e.instruments,
		Tiers:         e.tiers,
		Usage:         e.ledger,
		Submitter:     e.submitter,
		NewID:         func() string { return "fixed" },
	})

	require.NoError(t, e.toSummary(t, w, "20").Advance(ctx, Input{}))
	err := e.toSummary(t, w, "20").Advance(ctx, Input{})
	require.ErrorIs(t, err, submit.ErrDuplicateSubmission)
	require.Equal(t, CodeDuplicateSubmission, ErrorCode(err))

	u, err := e.ledger.Snapshot(ctx, sender)
	require.NoError(t, err)
	require.Equal(t, "20.00 EUR", u.Daily.String())
}

func TestWizard_AtMostOneSubmissionInFlight(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()
	blocking := &blockingSubmitter{started: make(chan struct{}), release: make(chan struct{}), inner: e.submitter}
	w := e.newWizard(blocking)
	s := e.toSummary(t, w, "150")

	done := make(chan error, 1)
	go func() { done <- s.Advance(ctx, Input{}) }()
	<-blocking.started

	err := s.Advance(ctx, Input{})
	require.ErrorIs(t, err, ErrSubmissionInFlight)
	require.ErrorIs(t, s.Back(), ErrSubmissionInFlight)
	require.ErrorIs(t, s.Cancel(), ErrSubmissionInFlight)

	close(blocking.release)
	require.NoError(t, <-done)
	require.Equal(t, models.StepSubmitted, s.Step())

	u, err := e.ledger.Snapshot(ctx, sender)
	require.NoError(t, err)
	require.Equal(t, "150.00 EUR", u.Daily.String())
}

func TestWizard_ChangeDestination(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	ctx := context.Background()
	s := e.toSummary(t, e.wizard, "150")

	require.NoError(t, s.SelectDestination("MA"))
	require.Equal(t, models.StepService, s.Step())
	require.Empty(t, s.Draft().ServiceID)
	require.NoError(t, s.Advance(ctx, Input{ServiceID: "wafacash"}))
	q, ok := s.Quote()
	require.True(t, ok)
	require.Equal(t, "MAD", q.ReceivedAmount.Currency)
}

func TestErrorCode(t *testing.T) {
	t.Parallel()
	require.Empty(t, ErrorCode(nil))
	require.Equal(t, CodeDestinationRequired, ErrorCode(ErrDestinationRequired))
	require.Equal(t, CodeInternal, ErrorCode(context.Canceled))
}
