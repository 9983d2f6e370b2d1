package scheduler

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seccerts/seccerts/seccerts/snapshot"
	"github.com/seccerts/seccerts/seccerts/store"
)

type fakeLocker struct {
	mu     sync.Mutex
	owners map[string]string
	err    error
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{owners: make(map[string]string)}
}

func (l *fakeLocker) Acquire(name, owner string, _ time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return false, l.err
	}
	if _, held := l.owners[name]; held {
		return false, nil
	}
	l.owners[name] = owner
	return true, nil
}

func (l *fakeLocker) Release(name, owner string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.owners[name] != owner {
		return false, nil
	}
	delete(l.owners, name)
	return true, nil
}

func (l *fakeLocker) Holder(name string) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	owner, held := l.owners[name]
	return owner, held, nil
}

type fakeRunner struct {
	runs int
	err  error
}

func (r *fakeRunner) Run(snapshot.Options) (*store.RunRecord, error) {
	r.runs++
	if r.err != nil {
		return nil, r.err
	}
	return &store.RunRecord{ID: "run-1", Status: store.RunStatusClean}, nil
}

func TestRunOnceAcquiresAndReleases(t *testing.T) {
	locker := newFakeLocker()
	runner := &fakeRunner{}
	s := New(Config{Locker: locker, Runner: runner, LockTTL: time.Hour})

	s.RunOnce()

	assert.Equal(t, 1, runner.runs)
	_, held, err := locker.Holder(LockName)
	require.NoError(t, err)
	assert.False(t, held, "the lease must be released after the run")
}

func TestRunOnceSkipsWhenLockHeld(t *testing.T) {
	locker := newFakeLocker()
	acquired, err := locker.Acquire(LockName, "other-replica", time.Hour)
	require.NoError(t, err)
	require.True(t, acquired)

	runner := &fakeRunner{}
	s := New(Config{Locker: locker, Runner: runner, LockTTL: time.Hour})

	s.RunOnce()

	assert.Zero(t, runner.runs, "a held lease must suppress the run")
	owner, held, err := locker.Holder(LockName)
	require.NoError(t, err)
	require.True(t, held)
	assert.Equal(t, "other-replica", owner, "the foreign lease must be untouched")
}

func TestRunOnceReleasesAfterFailedRun(t *testing.T) {
	locker := newFakeLocker()
	runner := &fakeRunner{err: fmt.Errorf("upstream down")}
	s := New(Config{Locker: locker, Runner: runner, LockTTL: time.Hour})

	s.RunOnce()

	assert.Equal(t, 1, runner.runs)
	_, held, err := locker.Holder(LockName)
	require.NoError(t, err)
	assert.False(t, held)
}

func TestRunOnceToleratesLockerErrors(t *testing.T) {
	locker := newFakeLocker()
	locker.err = fmt.Errorf("redis unreachable")
	runner := &fakeRunner{}
	s := New(Config{Locker: locker, Runner: runner, LockTTL: time.Hour})

	s.RunOnce()

	assert.Zero(t, runner.runs)
}

func TestCanDeploy(t *testing.T) {
	locker := newFakeLocker()

	ok, owner, err := CanDeploy(locker)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, owner)

	_, err = locker.Acquire(LockName, "replica-a", time.Hour)
	require.NoError(t, err)

	ok, owner, err = CanDeploy(locker)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "replica-a", owner)
}

func TestSchedulerOwnersAreUnique(t *testing.T) {
	a := New(Config{})
	b := New(Config{})
	assert.NotEqual(t, a.owner, b.owner)
}
