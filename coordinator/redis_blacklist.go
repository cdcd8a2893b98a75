package coordinator

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"goa.design/pulse/rmap"

	"github.com/htnkit/corestn/corerr"
)

// RedisBlacklistStore shares method blacklist entries across a worker pool
// when the Coordinator is distributed; scoping to the current plan attempt
// holds per TTL rather than per process. Keys live under a namespace prefix
// so multiple concurrent planning attempts sharing a replicated map do not
// cross-pollinate.
//
// Backed by a Pulse replicated map (goa.design/pulse/rmap): every node
// joined to the map observes every other node's writes without a separate
// fan-out mechanism, which is exactly what a worker-pool-shared blacklist
// needs. rmap has no native per-entry TTL, so an entry carries its own
// expiry and Contains lazily deletes anything stale.
type RedisBlacklistStore struct {
	m         *rmap.Map
	namespace string
	ttl       time.Duration
}

// NewRedisBlacklistStore constructs a RedisBlacklistStore over an
// already-joined replicated map (see rmap.Join). ttl bounds how long an
// entry survives; it should roughly match the expected wall-clock span of a
// single planning attempt across the worker pool.
func NewRedisBlacklistStore(m *rmap.Map, namespace string, ttl time.Duration) *RedisBlacklistStore {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisBlacklistStore{m: m, namespace: namespace, ttl: ttl}
}

func (r *RedisBlacklistStore) key(methodName string, fingerprint uint64) string {
	return fmt.Sprintf("%s:blacklist:%s:%d", r.namespace, methodName, fingerprint)
}

// Add bans (methodName, fingerprint) for ttl.
func (r *RedisBlacklistStore) Add(ctx context.Context, methodName string, fingerprint uint64) error {
	expiresAt := strconv.FormatInt(time.Now().Add(r.ttl).UnixNano(), 10)
	if _, err := r.m.Set(ctx, r.key(methodName, fingerprint), expiresAt); err != nil {
		return corerr.Wrap(corerr.InvalidInput, "blacklist add", err)
	}
	return nil
}

// Contains reports whether (methodName, fingerprint) is currently banned.
func (r *RedisBlacklistStore) Contains(ctx context.Context, methodName string, fingerprint uint64) (bool, error) {
	key := r.key(methodName, fingerprint)
	raw, ok := r.m.Get(key)
	if !ok {
		return false, nil
	}
	expiresAt, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return false, corerr.Wrap(corerr.InvalidInput, "blacklist lookup: malformed entry", err)
	}
	if time.Now().UnixNano() >= expiresAt {
		if _, err := r.m.Delete(ctx, key); err != nil {
			return false, corerr.Wrap(corerr.InvalidInput, "blacklist expire", err)
		}
		return false, nil
	}
	return true, nil
}
