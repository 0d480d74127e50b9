// Package scheduler provides background maintenance scheduling for audarr.
// It runs the track-store prune on a cron schedule; the byte cache itself
// is never evicted here.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jmylchreest/audarr/internal/observability"
	"github.com/jmylchreest/audarr/internal/repository"
	"github.com/jmylchreest/audarr/pkg/format"
)

// defaultCheckInterval is how often the loop evaluates the schedule.
const defaultCheckInterval = time.Minute

// Scheduler runs periodic track-store maintenance using a cron expression.
type Scheduler struct {
	trackRepo repository.TrackRepository
	logger    *slog.Logger

	schedule      cron.Schedule
	scheduleExpr  string
	checkInterval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler creates a scheduler for the given track repository.
// The expression uses the standard five-field cron syntax.
func NewScheduler(trackRepo repository.TrackRepository, scheduleExpr string) (*Scheduler, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(scheduleExpr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", scheduleExpr, err)
	}

	return &Scheduler{
		trackRepo:     trackRepo,
		logger:        observability.WithComponent(slog.Default(), "scheduler"),
		schedule:      schedule,
		scheduleExpr:  scheduleExpr,
		checkInterval: defaultCheckInterval,
	}, nil
}

// WithLogger swaps in the caller's logger, tagged for this component.
func (s *Scheduler) WithLogger(logger *slog.Logger) *Scheduler {
	s.logger = observability.WithComponent(logger, "scheduler")
	return s
}

// Start launches the background loop. A second Start while the loop is
// running is refused.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return errors.New("scheduler already started")
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.loop(ctx, s.done)

	s.logger.Info("scheduler started",
		slog.String("track_prune_schedule", s.scheduleExpr),
		slog.String("schedule_description", format.CronDescription(s.scheduleExpr)),
		slog.Duration("check_interval", s.checkInterval))

	return nil
}

// Stop cancels the loop and waits for a running prune to finish. Stopping
// a scheduler that never started is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done

	s.logger.Info("scheduler stopped")
}

// loop evaluates the schedule once per check interval and fires each
// occurrence at most once.
func (s *Scheduler) loop(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			if s.dueSince(last, now) {
				s.runPrune(ctx)
			}
			last = now
		}
	}
}

// dueSince reports whether the schedule has an occurrence in (last, now].
func (s *Scheduler) dueSince(last, now time.Time) bool {
	return !s.schedule.Next(last).After(now)
}

// runPrune drops track rows whose files vanished from disk.
func (s *Scheduler) runPrune(ctx context.Context) {
	done := observability.TimedOperation(ctx, s.logger, "prune_tracks")
	defer done()

	pruned, err := s.trackRepo.PruneMissing(ctx, fileExists)
	switch {
	case err != nil:
		observability.WithError(s.logger, err).ErrorContext(ctx, "track prune failed")
	case pruned > 0:
		s.logger.InfoContext(ctx, "pruned missing tracks", slog.Int64("pruned", pruned))
	default:
		s.logger.DebugContext(ctx, "track prune found nothing to remove")
	}
}

// fileExists treats only a confirmed missing file as gone. Transient stat
// errors must not prune rows.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	if err == nil {
		return true
	}
	return !errors.Is(err, fs.ErrNotExist)
}
