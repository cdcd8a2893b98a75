package solver

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"sort"
	"strconv"
	"time"

	"goa.design/pulse/rmap"

	"github.com/htnkit/corestn/corerr"
	"github.com/htnkit/corestn/stn"
)

// SolvedTimesCache memoizes a successful solve's solved_times keyed by a
// content hash of the STN's edge set. Solver.Solve consults it (when its
// Cache field is set) before trying any stage and populates it after every
// successful external or matrix solve, so replanning attempts that
// blacklist-and-retry without touching the STN skip a repeat O(n^3)
// closure.
//
// Backed by a Pulse replicated map (goa.design/pulse/rmap): every node in a
// worker pool sees a Put from any other node without a separate fan-out
// mechanism. rmap has no native per-entry TTL, so entries carry their own
// expiry and Get lazily deletes anything stale.
type SolvedTimesCache struct {
	m   *rmap.Map
	ttl time.Duration
}

// NewSolvedTimesCache constructs a cache over an already-joined replicated
// map (see rmap.Join). A zero ttl defaults to one minute, long enough to
// span a bounded blacklist-and-retry loop.
func NewSolvedTimesCache(m *rmap.Map, ttl time.Duration) *SolvedTimesCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &SolvedTimesCache{m: m, ttl: ttl}
}

// ContentHash computes a stable FNV-1a hash over s's timepoints and sorted
// edges, used as the cache key. Two STNs with an identical constraint set
// hash identically regardless of insertion order.
func ContentHash(s *stn.STN) uint64 {
	h := fnv.New64a()
	for _, tp := range s.Timepoints() {
		h.Write([]byte(tp))
		h.Write([]byte{0})
	}
	edges := s.Edges()
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].I != edges[j].I {
			return edges[i].I < edges[j].I
		}
		return edges[i].J < edges[j].J
	})
	for _, e := range edges {
		h.Write([]byte(e.I))
		h.Write([]byte(e.J))
		json.NewEncoder(h).Encode(e.Bound)
	}
	return h.Sum64()
}

// cacheEntry is the JSON value stored under a content-hash key: the solved
// assignment plus the expiry rmap itself cannot enforce.
type cacheEntry struct {
	Solved    map[string]int `json:"solved"`
	ExpiresAt int64          `json:"expires_at"`
}

// Get returns the cached solved_times map for hash, if present and not
// expired.
func (c *SolvedTimesCache) Get(ctx context.Context, hash uint64) (map[string]int, bool, error) {
	raw, ok := c.m.Get(cacheKey(hash))
	if !ok {
		return nil, false, nil
	}
	var entry cacheEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return nil, false, corerr.Wrap(corerr.InvalidInput, "solved_times cache decode", err)
	}
	if time.Now().UnixNano() >= entry.ExpiresAt {
		if _, err := c.m.Delete(ctx, cacheKey(hash)); err != nil {
			return nil, false, corerr.Wrap(corerr.InvalidInput, "solved_times cache expire", err)
		}
		return nil, false, nil
	}
	return entry.Solved, true, nil
}

// Put stores solved_times for hash, expiring after the cache's ttl.
func (c *SolvedTimesCache) Put(ctx context.Context, hash uint64, solved map[string]int) error {
	raw, err := json.Marshal(cacheEntry{Solved: solved, ExpiresAt: time.Now().Add(c.ttl).UnixNano()})
	if err != nil {
		return corerr.Wrap(corerr.InvalidInput, "solved_times cache encode", err)
	}
	if _, err := c.m.Set(ctx, cacheKey(hash), string(raw)); err != nil {
		return corerr.Wrap(corerr.InvalidInput, "solved_times cache put", err)
	}
	return nil
}

func cacheKey(hash uint64) string {
	return "solved_times:" + strconv.FormatUint(hash, 16)
}
