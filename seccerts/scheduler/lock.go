package scheduler

import (
	"fmt"
	"time"

	"github.com/gomodule/redigo/redis"
)

// Locker is a lease-style distributed lock. Acquire succeeds only when no
// other holder owns the name; Release succeeds only for the current owner.
type Locker interface {
	Acquire(name, owner string, ttl time.Duration) (bool, error)
	Release(name, owner string) (bool, error)
	Holder(name string) (string, bool, error)
}

// RedisLocker implements Locker on a redis instance shared by all pipeline
// replicas.
type RedisLocker struct {
	pool *redis.Pool
}

func NewRedisLocker(addr string) *RedisLocker {
	return &RedisLocker{
		pool: &redis.Pool{
			MaxIdle:     2,
			IdleTimeout: 5 * time.Minute,
			Dial: func() (redis.Conn, error) {
				return redis.Dial("tcp", addr)
			},
		},
	}
}

func (l *RedisLocker) Close() error {
	return l.pool.Close()
}

func (l *RedisLocker) Acquire(name, owner string, ttl time.Duration) (bool, error) {
	conn := l.pool.Get()
	defer conn.Close()

	// NX: only set when the key does not exist yet; PX: expire the lease so a
	// crashed holder cannot wedge the pipeline forever.
	res, err := redis.String(conn.Do("SET", name, owner, "NX", "PX", ttl.Milliseconds()))
	if err == redis.ErrNil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("unable to acquire lock %q: %w", name, err)
	}
	return res == "OK", nil
}

// releaseScript deletes the lock only when the stored owner matches, so a
// holder whose lease expired cannot release a lock re-acquired by someone
// else.
const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`

func (l *RedisLocker) Release(name, owner string) (bool, error) {
	conn := l.pool.Get()
	defer conn.Close()

	res, err := redis.Int64(conn.Do("EVAL", releaseScript, 1, name, owner))
	if err != nil {
		return false, fmt.Errorf("unable to release lock %q: %w", name, err)
	}
	return res > 0, nil
}

func (l *RedisLocker) Holder(name string) (string, bool, error) {
	conn := l.pool.Get()
	defer conn.Close()

	owner, err := redis.String(conn.Do("GET", name))
	if err == redis.ErrNil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("unable to inspect lock %q: %w", name, err)
	}
	return owner, true, nil
}
