package solver

import (
	"context"
	"sync"
	"time"

	"github.com/htnkit/corestn/corerr"
	"github.com/htnkit/corestn/stn"
	"github.com/htnkit/corestn/telemetry"
)

// Solver runs the hierarchical strategy: external CSP solver, then
// the matrix Floyd-Warshall fallback, then the conservative checker. It
// tracks which external solver identities have been blacklisted for the
// current planning attempt.
type Solver struct {
	External *ExternalSolver
	Logger   telemetry.Logger
	Metrics  telemetry.Metrics

	// Cache, when set, short-circuits Solve for a network whose content
	// hash already has memoized solved_times, and is populated after every
	// successful solve. Replanning attempts that blacklist-and-retry
	// without touching the STN then skip the repeat closure pass.
	Cache *SolvedTimesCache

	mu        sync.Mutex
	blacklist map[string]bool
}

// NewSolver constructs a Solver. external may be nil to skip the external
// stage entirely.
func NewSolver(external *ExternalSolver, logger telemetry.Logger, metrics telemetry.Metrics) *Solver {
	return &Solver{
		External:  external,
		Logger:    logger,
		Metrics:   metrics,
		blacklist: map[string]bool{},
	}
}

// ResetAttempt clears the external-solver blacklist for a new planning
// attempt (blacklisting is scoped to a single attempt).
func (sv *Solver) ResetAttempt() {
	sv.mu.Lock()
	defer sv.mu.Unlock()
	sv.blacklist = map[string]bool{}
}

// Solve runs the hierarchy and returns the updated STN. domainBound is the
// solver's integer domain bound (config.Config.SolverDomainBound()).
func (sv *Solver) Solve(ctx context.Context, s *stn.STN, domainBound int, timeout time.Duration) (*stn.STN, error) {
	var cacheHash uint64
	if sv.Cache != nil {
		cacheHash = ContentHash(s)
		times, ok, err := sv.Cache.Get(ctx, cacheHash)
		if err != nil {
			sv.Logger.Warn(ctx, "solved_times cache read failed", "err", err)
		} else if ok {
			out := s.Clone()
			consistent := true
			out.Consistent = &consistent
			out.Metadata["solved_times"] = times
			return out, nil
		}
	}

	if sv.tryExternal() {
		start := time.Now()
		solved, transient, err := sv.External.Solve(ctx, s, domainBound, timeout)
		telemetry.RecordSolveStage(sv.Metrics, telemetry.SolveStageExternal, time.Since(start))
		if err == nil {
			sv.putCache(ctx, cacheHash, solved)
			return solved, nil
		}
		if !transient {
			sv.mu.Lock()
			sv.blacklist[sv.External.BinaryPath] = true
			sv.mu.Unlock()
			sv.Logger.Warn(ctx, "external STN solver blacklisted for attempt", "binary", sv.External.BinaryPath, "err", err)
		}
		if kind, ok := corerr.KindOf(err); ok && kind == corerr.STNInconsistent {
			return solved, err
		}
		sv.Logger.Info(ctx, "external STN solver unavailable, falling back to matrix stage", "err", err)
	}

	start := time.Now()
	solved, err := MatrixSolve(s)
	telemetry.RecordSolveStage(sv.Metrics, telemetry.SolveStageMatrix, time.Since(start))
	if err == nil {
		sv.putCache(ctx, cacheHash, solved)
		return solved, nil
	}
	if kind, ok := corerr.KindOf(err); ok && kind == corerr.STNInconsistent {
		return solved, err
	}

	start = time.Now()
	consistent, unknown := ConservativeCheck(s)
	telemetry.RecordSolveStage(sv.Metrics, telemetry.SolveStageConservative, time.Since(start))
	out := s.Clone()
	if unknown {
		out.Consistent = nil
		out.Metadata["consistency"] = "unknown"
		return out, corerr.New(corerr.STNUnknown, "conservative checker could not decide consistency")
	}
	out.Consistent = consistent
	return out, corerr.New(corerr.STNInconsistent, "conservative checker found an obvious inconsistency")
}

// putCache memoizes a successful solve's solved_times under the content
// hash Solve computed up front. A write failure only costs the memoization,
// so it is logged and otherwise ignored.
func (sv *Solver) putCache(ctx context.Context, hash uint64, solved *stn.STN) {
	if sv.Cache == nil || solved == nil {
		return
	}
	times, ok := solved.Metadata["solved_times"].(map[string]int)
	if !ok {
		return
	}
	if err := sv.Cache.Put(ctx, hash, times); err != nil {
		sv.Logger.Warn(ctx, "solved_times cache write failed", "err", err)
	}
}

func (sv *Solver) tryExternal() bool {
	if sv.External == nil || sv.External.BinaryPath == "" {
		return false
	}
	sv.mu.Lock()
	defer sv.mu.Unlock()
	return !sv.blacklist[sv.External.BinaryPath]
}
