package temporal

import "github.com/htnkit/corestn/stn"

// Apply compiles spec and adds every resulting constraint to s, returning
// the first error AddConstraint reports (a fixed-point or inconsistency
// would mean ToConstraints or its caller failed to widen correctly, since
// this package guarantees no fixed-point tuples of its own).
func Apply(s *stn.STN, spec Spec, tp TimepointMap) error {
	cs, err := ToConstraints(spec, tp)
	if err != nil {
		return err
	}
	for _, c := range cs {
		if err := s.AddConstraint(c.I, c.J, c.Lower, c.Upper); err != nil {
			return err
		}
	}
	return nil
}
