// Package scheduler runs the periodic maintenance jobs of the app.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/trezcool/elimu/core"
)

// CategorySyncer recomputes the course counts of the categories.
type CategorySyncer interface {
	SyncCourseCounts(ctx context.Context) error
}

type Scheduler struct {
	cron    *cron.Cron
	logger  core.Logger
	timeout time.Duration
}

// New registers the jobs on their configured specs.
func New(conf *core.Config, categories CategorySyncer, logger core.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:    cron.New(cron.WithLocation(time.UTC)),
		logger:  logger,
		timeout: time.Minute,
	}
	if _, err := s.cron.AddFunc(conf.Scheduler.CategorySyncSpec, s.job("category course counts sync", categories.SyncCourseCounts)); err != nil {
		return nil, errors.Wrapf(err, "scheduling category sync on %q", conf.Scheduler.CategorySyncSpec)
	}
	return s, nil
}

// job wraps fn so that a failed run is logged and the next one still happens.
func (s *Scheduler) job(name string, fn func(context.Context) error) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		start := time.Now()
		if err := fn(ctx); err != nil {
			s.logger.Error(fmt.Sprintf("%s failed: %v", name, err), err)
			return
		}
		s.logger.Debug(fmt.Sprintf("%s done in %v", name, time.Since(start)))
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops scheduling and waits for the running jobs, until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Entries is the number of scheduled jobs.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}
