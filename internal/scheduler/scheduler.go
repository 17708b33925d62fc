// Package scheduler runs the periodic ledger rollover.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/deloabass/nigertransfert/internal/logger"
	"github.com/robfig/cron/v3"
)

// Roller closes expired usage periods for every sender.
type Roller interface {
	RolloverAll(ctx context.Context) error
}

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron    *cron.Cron
	roller  Roller
	spec    string
	timeout time.Duration
}

// New creates a scheduler firing spec in loc.
func New(roller Roller, spec string, loc *time.Location) *Scheduler {
	c := cron.New(
		cron.WithChain(cron.Recover(cronLogger{})),
		cron.WithLocation(loc),
	)
	return &Scheduler{
		cron:    c,
		roller:  roller,
		spec:    spec,
		timeout: 5 * time.Minute,
	}
}

// Start registers the rollover job and starts the cron scheduler.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.RunRollover); err != nil {
		return fmt.Errorf("failed to schedule ledger rollover %q: %w", s.spec, err)
	}
	logger.Log.Info().Str("schedule", s.spec).Msg("Scheduled ledger rollover job")
	s.cron.Start()
	return nil
}

// Stop stops the scheduler. The returned context is done once a running job finishes.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// RunRollover is the job body.
func (s *Scheduler) RunRollover() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	if err := s.roller.RolloverAll(ctx); err != nil {
		logger.Log.Error().Err(err).Msg("Ledger rollover failed")
		return
	}
	logger.Log.Info().Dur("took", time.Since(start)).Msg("Ledger rollover completed")
}

// cronLogger adapts cron's logger to zerolog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	logger.Log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	logger.Log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
