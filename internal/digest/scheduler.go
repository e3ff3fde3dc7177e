package digest

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"well-go/internal/well"
)

// runTimeout bounds one scheduled digest run.
const runTimeout = 10 * time.Minute

// Scheduler runs a Runner on a cron schedule.
type Scheduler struct {
	cron     *cron.Cron
	schedule cron.Schedule
	runner   *Runner
	logger   well.Logger
}

// NewScheduler parses spec (standard five-field cron, or descriptors such as
// "@daily") and evaluates it in loc.
func NewScheduler(spec string, loc *time.Location, runner *Runner, logger well.Logger) (*Scheduler, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parsing digest schedule %q: %w", spec, err)
	}
	if loc == nil {
		loc = time.UTC
	}

	cl := cronLogger{logger}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		schedule: schedule,
		runner:   runner,
		logger:   logger,
	}
	s.cron.Schedule(schedule, cron.FuncJob(s.runOnce))
	return s, nil
}

// Next returns the first activation after t.
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.schedule.Next(t.In(s.cron.Location()))
}

// Start begins scheduling in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops scheduling and waits for a running digest to finish or ctx to
// be done.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()
	if err := s.runner.Run(ctx); err != nil {
		s.logger.Warn("digest run finished with errors", "error", err)
	}
}

// cronLogger routes cron's own logging into the application logger.
type cronLogger struct {
	l well.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error(msg, append(keysAndValues, "error", err)...)
}
