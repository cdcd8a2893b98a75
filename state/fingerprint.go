package state

import (
	"fmt"
	"hash/fnv"
)

// Fingerprint returns a stable structural hash of s, computed as FNV-1a over
// its triples sorted by (predicate, subject). Used by the planner's cycle
// guard to detect a goal node whose ancestor already saw the
// same goal against an observationally identical state.
func (s State) Fingerprint() uint64 {
	h := fnv.New64a()
	for _, t := range s.ToTriples() {
		fmt.Fprintf(h, "%s\x00%s\x00%v\x00", t.Predicate, t.Subject, t.Value)
	}
	return h.Sum64()
}
