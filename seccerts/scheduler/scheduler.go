/*
Package scheduler triggers periodic pipeline runs, serialized across replicas
through a redis lease so that at most one refresh is ever in flight.
*/
package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/seccerts/seccerts/internal/log"
	"github.com/seccerts/seccerts/seccerts/snapshot"
	"github.com/seccerts/seccerts/seccerts/store"
)

// LockName is the redis key guarding pipeline runs.
const LockName = "pipeline:lock"

// Runner kicks off one pipeline run. Satisfied by *snapshot.Manager.
type Runner interface {
	Run(opts snapshot.Options) (*store.RunRecord, error)
}

type Config struct {
	Locker   Locker
	Runner   Runner
	Interval time.Duration
	LockTTL  time.Duration
	Options  snapshot.Options
}

type Scheduler struct {
	cfg   Config
	owner string
}

func New(cfg Config) *Scheduler {
	return &Scheduler{
		cfg:   cfg,
		owner: uuid.NewString(),
	}
}

// Start blocks, firing a run every interval until the context is canceled.
// The first run happens after one full interval, not immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	log.Infof("scheduler started (interval=%s owner=%s)", s.cfg.Interval, s.owner)
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.RunOnce()
		}
	}
}

// RunOnce attempts one scheduled run. When another replica holds the lease
// the run is skipped silently; the next tick tries again.
func (s *Scheduler) RunOnce() {
	acquired, err := s.cfg.Locker.Acquire(LockName, s.owner, s.cfg.LockTTL)
	if err != nil {
		log.Errorf("unable to acquire pipeline lock: %+v", err)
		return
	}
	if !acquired {
		log.Debugf("pipeline lock held elsewhere, skipping scheduled run")
		return
	}
	defer func() {
		if _, err := s.cfg.Locker.Release(LockName, s.owner); err != nil {
			log.Warnf("unable to release pipeline lock: %+v", err)
		}
	}()

	run, err := s.cfg.Runner.Run(s.cfg.Options)
	if err != nil {
		log.Errorf("scheduled pipeline run failed: %+v", err)
		return
	}
	log.Infof("scheduled pipeline run %s finished (status=%s)", run.ID, run.Status)
}

// CanDeploy reports whether it is safe to roll the service right now: false
// while any replica holds the pipeline lease, since restarting mid-run would
// abandon a staged snapshot.
func CanDeploy(locker Locker) (bool, string, error) {
	owner, held, err := locker.Holder(LockName)
	if err != nil {
		return false, "", err
	}
	if held {
		return false, owner, nil
	}
	return true, "", nil
}
