// Package factstore defines the external fact-store interface the planner
// core consumes. A full bitemporal 6NF backend stays behind this
// four-operation contract; package factstore/mongo and factstore/sqlite are
// two concrete bindings satisfying it.
package factstore

import (
	"context"
	"time"
)

// Store is the four-operation contract the planner core is written
// against. GetFactAt supports point-in-time reads for backends that retain
// history; a backend with no history simply ignores the time argument and
// returns the current value.
type Store interface {
	GetFact(ctx context.Context, predicate, subject string) (value any, ok bool, err error)
	SetFact(ctx context.Context, predicate, subject string, value any) error
	GetFactAt(ctx context.Context, predicate, subject string, at time.Time) (value any, ok bool, err error)
	Cleanup(ctx context.Context) error
}
