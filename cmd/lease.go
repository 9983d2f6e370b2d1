package cmd

import (
	"time"

	"github.com/google/uuid"

	"github.com/seccerts/seccerts/internal/log"
	"github.com/seccerts/seccerts/seccerts/scheduler"
)

// acquireRunLease takes the shared pipeline lease, so a manual update never
// overlaps a scheduled run on another replica. The returned release func is a
// no-op when acquisition did not succeed.
func acquireRunLease(locker scheduler.Locker, ttl time.Duration) (release func(), acquired bool, err error) {
	owner := uuid.NewString()
	ok, err := locker.Acquire(scheduler.LockName, owner, ttl)
	if err != nil || !ok {
		return func() {}, ok, err
	}
	return func() {
		if _, err := locker.Release(scheduler.LockName, owner); err != nil {
			log.Warnf("unable to release pipeline lock: %+v", err)
		}
	}, true, nil
}
