// Package refresh keeps the served feed warm on a cron schedule.
package refresh

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	appLog "confcal/internal/log"
)

// Warmer rebuilds a cached feed.
type Warmer interface {
	Warm(ctx context.Context) error
}

// Scheduler runs a Warmer on a standard five-field cron schedule.
type Scheduler struct {
	cron    *cron.Cron
	warmer  Warmer
	timeout time.Duration
	entry   cron.EntryID
}

// New parses schedule and registers the warm-up job. Runs are bounded by timeout
// and never overlap: a tick that fires while the previous run is still
// going is skipped.
func New(schedule string, w Warmer, timeout time.Duration) (*Scheduler, error) {
	if timeout <= 0 {
		timeout = time.Minute
	}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		warmer:  w,
		timeout: timeout,
	}

	id, err := s.cron.AddFunc(schedule, s.run)
	if err != nil {
		return nil, fmt.Errorf("refresh schedule %q: %w", schedule, err)
	}
	s.entry = id
	return s, nil
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	if err := s.warmer.Warm(ctx); err != nil {
		appLog.Error("feed refresh failed", err)
		return
	}
	appLog.Info("feed refreshed", "took", time.Since(start).Round(time.Millisecond))
}

// Next reports when the next warm-up is due.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entry).Next
}

// Run starts the schedule and blocks until ctx is canceled, then waits for
// an in-flight warm-up to finish.
func (s *Scheduler) Run(ctx context.Context) {
	s.cron.Start()
	appLog.Info("refresh schedule started", "next", s.Next().Format(time.RFC3339))

	<-ctx.Done()
	<-s.cron.Stop().Done()
	appLog.Info("refresh schedule stopped")
}
