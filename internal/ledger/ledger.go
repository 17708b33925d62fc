// Package ledger tracks per-sender usage over daily, weekly and monthly periods.
package ledger

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/deloabass/nigertransfert/internal/logger"
	"github.com/deloabass/nigertransfert/internal/models"
	"github.com/shopspring/decimal"
)

// ArchiveStore receives the totals of closed periods.
type ArchiveStore interface {
	Archive(ctx context.Context, rec models.UsageRecord) error
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithArchive sets the store closed periods are archived to.
func WithArchive(store ArchiveStore) Option {
	return func(l *Ledger) { l.archive = store }
}

type period struct {
	start time.Time
	total decimal.Decimal
	// prevStart and prevTotal hold the period closed last, so a late reversal can
	// correct its archived total.
	prevStart time.Time
	prevTotal decimal.Decimal
}

type account struct {
	daily   period
	weekly  period
	monthly period
}

// Ledger holds running usage totals. Periods roll over lazily on every access and
// when RolloverAll runs; each non-empty closed period is archived before it is reset.
// Archive failures on the lazy paths are logged and queued; only RolloverAll reports
// them.
type Ledger struct {
	mu        sync.Mutex
	loc       *time.Location
	weekStart time.Weekday
	now       func() time.Time
	archive   ArchiveStore
	accounts  map[int64]*account
	// unarchived holds closed periods whose archive write failed; retried by
	// RolloverAll.
	unarchived []models.UsageRecord
}

// New creates a Ledger whose periods start at local midnight in loc, with weeks
// starting on weekStart.
func New(loc *time.Location, weekStart time.Weekday, opts ...Option) *Ledger {
	if loc == nil {
		loc = time.UTC
	}
	l := &Ledger{
		loc:       loc,
		weekStart: weekStart,
		now:       time.Now,
		accounts:  make(map[int64]*account),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Snapshot returns the user's current usage.
func (l *Ledger) Snapshot(ctx context.Context, userID int64) (models.Usage, error) {
	l.mu.Lock()
	acc, closed := l.accountLocked(userID, l.now())
	usage := acc.usage()
	l.mu.Unlock()

	l.archiveQuietly(ctx, closed)
	return usage, nil
}

// Add increments every period by amount in one step and returns the time the amount
// was booked at, needed to Reverse it later.
func (l *Ledger) Add(ctx context.Context, userID int64, amount models.Money) (time.Time, error) {
	if amount.Currency != models.SourceCurrency {
		return time.Time{}, fmt.Errorf("%w: ledger is kept in %s", models.ErrCurrencyMismatch, models.SourceCurrency)
	}

	l.mu.Lock()
	at := l.now()
	acc, closed := l.accountLocked(userID, at)
	acc.daily.total = acc.daily.total.Add(amount.Amount)
	acc.weekly.total = acc.weekly.total.Add(amount.Amount)
	acc.monthly.total = acc.monthly.total.Add(amount.Amount)
	l.mu.Unlock()

	l.archiveQuietly(ctx, closed)
	return at, nil
}

// Reverse removes amount from the periods that contain bookedAt, never dropping a
// total below zero. When such a period has just closed, its archived total is
// rewritten; older periods are left alone and the discrepancy is logged.
func (l *Ledger) Reverse(ctx context.Context, userID int64, amount models.Money, bookedAt time.Time) error {
	if amount.Currency != models.SourceCurrency {
		return fmt.Errorf("%w: ledger is kept in %s", models.ErrCurrencyMismatch, models.SourceCurrency)
	}

	l.mu.Lock()
	now := l.now()
	acc, closed := l.accountLocked(userID, now)
	bookedAt = bookedAt.In(l.loc)
	for _, p := range []struct {
		period *period
		scope  models.LimitScope
		start  time.Time
	}{
		{&acc.daily, models.ScopeDaily, l.dayStart(bookedAt)},
		{&acc.weekly, models.ScopeWeekly, l.weekStartOf(bookedAt)},
		{&acc.monthly, models.ScopeMonthly, l.monthStart(bookedAt)},
	} {
		switch {
		case p.period.start.Equal(p.start):
			p.period.total = subFloor(p.period.total, amount.Amount)
		case p.period.prevStart.Equal(p.start) && !p.period.prevTotal.IsZero():
			p.period.prevTotal = subFloor(p.period.prevTotal, amount.Amount)
			closed = append(closed, l.correctionLocked(models.UsageRecord{
				UserID:      userID,
				Period:      p.scope,
				PeriodStart: p.period.prevStart,
				Amount:      models.Money{Amount: p.period.prevTotal, Currency: models.SourceCurrency},
				ArchivedAt:  now.In(l.loc),
			}))
		default:
			logger.Log.Warn().
				Str("user_hash", logger.HashUserID(userID)).
				Str("period", string(p.scope)).
				Time("period_start", p.start).
				Str("amount", amount.String()).
				Msg("Reversed amount belongs to a period no longer tracked")
		}
	}
	l.mu.Unlock()

	l.archiveQuietly(ctx, closed)
	return nil
}

// RolloverAll closes expired periods for every user and retries earlier archive
// failures.
func (l *Ledger) RolloverAll(ctx context.Context) error {
	l.mu.Lock()
	now := l.now()
	var closed []models.UsageRecord
	for userID := range l.accounts {
		_, c := l.accountLocked(userID, now)
		closed = append(closed, c...)
	}

	pending := append(l.unarchived, closed...)
	l.unarchived = nil
	l.mu.Unlock()

	logger.Log.Debug().Int("closed_periods", len(closed)).Int("retried", len(pending)-len(closed)).Msg("Ledger rollover")
	return l.archiveRecords(ctx, pending)
}

// Location returns the timezone periods are anchored in.
func (l *Ledger) Location() *time.Location {
	return l.loc
}

func (l *Ledger) accountLocked(userID int64, now time.Time) (*account, []models.UsageRecord) {
	now = now.In(l.loc)
	day, week, month := l.dayStart(now), l.weekStartOf(now), l.monthStart(now)

	acc, ok := l.accounts[userID]
	if !ok {
		acc = &account{
			daily:   period{start: day, total: decimal.Zero},
			weekly:  period{start: week, total: decimal.Zero},
			monthly: period{start: month, total: decimal.Zero},
		}
		l.accounts[userID] = acc
		return acc, nil
	}

	var closed []models.UsageRecord
	roll := func(p *period, scope models.LimitScope, start time.Time) {
		if !start.After(p.start) {
			return
		}
		if !p.total.IsZero() {
			closed = append(closed, models.UsageRecord{
				UserID:      userID,
				Period:      scope,
				PeriodStart: p.start,
				Amount:      models.Money{Amount: p.total, Currency: models.SourceCurrency},
				ArchivedAt:  now,
			})
		}
		*p = period{start: start, total: decimal.Zero, prevStart: p.start, prevTotal: p.total}
	}
	roll(&acc.daily, models.ScopeDaily, day)
	roll(&acc.weekly, models.ScopeWeekly, week)
	roll(&acc.monthly, models.ScopeMonthly, month)
	return acc, closed
}

// correctionLocked drops queued records for the same period, since rec supersedes
// them.
func (l *Ledger) correctionLocked(rec models.UsageRecord) models.UsageRecord {
	l.unarchived = slices.DeleteFunc(l.unarchived, func(q models.UsageRecord) bool {
		return q.UserID == rec.UserID && q.Period == rec.Period && q.PeriodStart.Equal(rec.PeriodStart)
	})
	return rec
}

// archiveQuietly archives records closed on a lazy path. A failure is already logged
// and queued by archiveRecords and must not fail the caller's read or booking.
func (l *Ledger) archiveQuietly(ctx context.Context, recs []models.UsageRecord) {
	_ = l.archiveRecords(ctx, recs)
}

// archiveRecords writes recs to the archive. Records that fail are queued for
// RolloverAll and their totals logged.
func (l *Ledger) archiveRecords(ctx context.Context, recs []models.UsageRecord) error {
	if len(recs) == 0 {
		return nil
	}

	var failed []models.UsageRecord
	var firstErr error
	for _, rec := range recs {
		if l.archive != nil {
			if err := l.archive.Archive(ctx, rec); err != nil {
				logger.Log.Error().Err(err).
					Str("user_hash", logger.HashUserID(rec.UserID)).
					Str("period", string(rec.Period)).
					Time("period_start", rec.PeriodStart).
					Str("total", rec.Amount.String()).
					Msg("Failed to archive usage period")
				failed = append(failed, rec)
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
		}
		logger.Log.Info().
			Str("user_hash", logger.HashUserID(rec.UserID)).
			Str("period", string(rec.Period)).
			Time("period_start", rec.PeriodStart).
			Str("total", rec.Amount.String()).
			Msg("Usage period closed")
	}

	if len(failed) > 0 {
		l.mu.Lock()
		l.unarchived = append(l.unarchived, failed...)
		l.mu.Unlock()
		return fmt.Errorf("failed to archive %d usage periods: %w", len(failed), firstErr)
	}
	return nil
}

func subFloor(total, amount decimal.Decimal) decimal.Decimal {
	total = total.Sub(amount)
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}

func (a *account) usage() models.Usage {
	return models.Usage{
		Daily:   models.Money{Amount: a.daily.total, Currency: models.SourceCurrency},
		Weekly:  models.Money{Amount: a.weekly.total, Currency: models.SourceCurrency},
		Monthly: models.Money{Amount: a.monthly.total, Currency: models.SourceCurrency},
	}
}

func (l *Ledger) dayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, l.loc)
}

func (l *Ledger) weekStartOf(t time.Time) time.Time {
	offset := (int(t.Weekday()) - int(l.weekStart) + 7) % 7
	d := t.AddDate(0, 0, -offset)
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, l.loc)
}

func (l *Ledger) monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, l.loc)
}
