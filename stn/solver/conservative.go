package solver

import "github.com/htnkit/corestn/stn"

// ConservativeCheck validates only obvious inconsistencies: an empty bound
// intersection (already rejected at AddConstraint time, so this revalidates
// defensively) or a negative self-cycle detectable in a single relaxation
// pass. It never claims a network is consistent when it cannot be sure;
// undecided networks are reported unknown rather than falsely satisfiable.
func ConservativeCheck(s *stn.STN) (consistent *bool, unknown bool) {
	for _, e := range s.Edges() {
		if e.Bound.Empty() {
			f := false
			return &f, false
		}
	}

	// Single relaxation pass: look for a direct edge pair (i,j) and (j,i)
	// whose composition already yields a negative self-cycle, without the
	// full O(n^3) closure.
	edges := s.Edges()
	for _, e1 := range edges {
		for _, e2 := range edges {
			if e1.I != e2.J || e1.J != e2.I {
				continue
			}
			if !stn.Composable(e1.Bound, e2.Bound) {
				continue
			}
			via := stn.Compose(e1.Bound, e2.Bound)
			if via.Upper < 0 {
				f := false
				return &f, false
			}
		}
	}

	return nil, true
}
