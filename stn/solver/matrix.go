package solver

import (
	"math"

	"github.com/htnkit/corestn/corerr"
	"github.com/htnkit/corestn/stn"
)

// MatrixSolve runs the Floyd-Warshall fallback stage: it
// closes the constraint graph and, if consistent, extracts a feasible
// assignment by pinning the first timepoint (lexicographically, for
// determinism) to 0 and setting time(tp) = Distance(tp0, tp).Upper for every
// other timepoint — valid only once Close has seeded both directions of
// every stored constraint, so tp0 has a real (non-Inf) distance to every tp
// regardless of which way its edges were originally added.
func MatrixSolve(s *stn.STN) (*stn.STN, error) {
	tps := s.Timepoints()
	if len(tps) == 0 {
		out := s.Clone()
		consistent := true
		out.Consistent = &consistent
		out.Metadata["solved_times"] = map[string]int{}
		return out, nil
	}

	closed := s.Close()
	if !closed.Consistent() {
		cycle, _ := closed.OffendingCycle()
		inconsistent := false
		out := s.Clone()
		out.Consistent = &inconsistent
		return out, corerr.Newf(corerr.STNInconsistent, "negative self-cycle at %s", cycle)
	}

	pinned := tps[0]
	solvedTimes := make(map[string]int, len(tps))
	for _, tp := range tps {
		d := closed.Distance(pinned, tp)
		// Distance(pinned, tp) is the closed bound on
		// time(tp)-time(pinned); with time(pinned) pinned to 0, the
		// upper endpoint of that bound is always a feasible value for
		// time(tp) once the network is fully closed, for every tp
		// simultaneously.
		v := d.Upper
		if math.IsInf(v, 0) {
			v = 0
		}
		solvedTimes[string(tp)] = int(math.Round(v))
	}

	out := s.Clone()
	consistent := true
	out.Consistent = &consistent
	out.Metadata["solved_times"] = solvedTimes
	return out, nil
}
