package scheduler

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/trezcool/orbit/core"
)

type (
	Pruner interface {
		Prune(maxAge time.Duration) int
	}

	Refresher interface {
		RefreshKnown(ctx context.Context) int
	}
)

// Scheduler runs the periodic maintenance jobs: forgetting finished upload batches and refreshing the
// catalogs and analytics of the dashboards seen so far.
type Scheduler struct {
	cron   *cron.Cron
	logger core.Logger
}

func New(conf *core.Config, logger core.Logger, batches Pruner, refreshers map[string]Refresher) (*Scheduler, error) {
	s := &Scheduler{
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger), cron.Recover(cron.DiscardLogger))),
		logger: logger,
	}

	retainFor := conf.Upload.RetainFor
	if _, err := s.cron.AddFunc(conf.Scheduler.PruneSpec, func() { s.prune(batches, retainFor) }); err != nil {
		return nil, errors.Wrapf(err, "scheduling prune job %q", conf.Scheduler.PruneSpec)
	}
	for name, r := range refreshers {
		name, r := name, r
		if _, err := s.cron.AddFunc(conf.Scheduler.RefreshSpec, func() { s.refresh(name, r) }); err != nil {
			return nil, errors.Wrapf(err, "scheduling %s refresh job %q", name, conf.Scheduler.RefreshSpec)
		}
	}
	return s, nil
}

func (s *Scheduler) prune(batches Pruner, maxAge time.Duration) {
	if n := batches.Prune(maxAge); n > 0 {
		s.logger.Info("pruned finished upload batches", map[string]interface{}{"count": n})
	}
}

func (s *Scheduler) refresh(name string, r Refresher) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	n := r.RefreshKnown(ctx)
	s.logger.Debug("refreshed "+name, map[string]interface{}{"owners": n})
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop stops scheduling and waits for running jobs, or for ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Jobs is the number of scheduled jobs.
func (s *Scheduler) Jobs() int { return len(s.cron.Entries()) }
