package temporal

import (
	"math"

	"github.com/htnkit/corestn/corerr"
	"github.com/htnkit/corestn/stn"
)

// Constraint is one (tp_i, tp_j, lower, upper) tuple ready for
// stn.STN.AddConstraint. Field names mirror the STN data model directly:
// lower <= time(J) - time(I) <= upper.
type Constraint struct {
	I, J         stn.Timepoint
	Lower, Upper float64
}

const microRange = 1

// ToConstraints compiles spec into the STN constraints that realize it,
// resolving activity endpoints through tp. It is total over every
// recognized Relation and never returns a tuple with Lower == Upper.
func ToConstraints(spec Spec, tp TimepointMap) ([]Constraint, error) {
	if err := spec.validate(); err != nil {
		return nil, err
	}

	if spec.Relation == CONDITIONAL {
		if !spec.Active || spec.Inner == nil {
			return nil, nil
		}
		return ToConstraints(*spec.Inner, tp)
	}

	aStart, ok := tp.Lookup(spec.A, Start)
	if !ok {
		return nil, corerr.Newf(corerr.InvalidInput, "no timepoints registered for activity %q", spec.A)
	}
	aEnd, _ := tp.Lookup(spec.A, End)

	var bStart, bEnd stn.Timepoint
	if spec.Relation != RESOURCE_BOUND {
		var ok bool
		bStart, ok = tp.Lookup(spec.B, Start)
		if !ok {
			return nil, corerr.Newf(corerr.InvalidInput, "no timepoints registered for activity %q", spec.B)
		}
		bEnd, _ = tp.Lookup(spec.B, End)
	}

	switch spec.Relation {
	case EQ:
		return []Constraint{
			{I: aStart, J: bStart, Lower: -microRange, Upper: microRange},
			{I: aEnd, J: bEnd, Lower: -microRange, Upper: microRange},
		}, nil

	case PRECEDES:
		// A ends at least one tick before B starts.
		return []Constraint{{I: bStart, J: aEnd, Lower: math.Inf(-1), Upper: -microRange}}, nil

	case FOLLOWS:
		return []Constraint{{I: aStart, J: bEnd, Lower: math.Inf(-1), Upper: -microRange}}, nil

	case ADJ_F:
		// A meets B: A's end coincides with B's start, widened to a
		// micro-range rather than a fixed point.
		return []Constraint{{I: bStart, J: aEnd, Lower: -microRange, Upper: microRange}}, nil

	case ADJ_B:
		return []Constraint{{I: aStart, J: bEnd, Lower: -microRange, Upper: microRange}}, nil

	case WITHIN:
		return []Constraint{
			{I: bStart, J: aStart, Lower: 0, Upper: math.Inf(1)},
			{I: aEnd, J: bEnd, Lower: 0, Upper: math.Inf(1)},
		}, nil

	case CONTAINS:
		return []Constraint{
			{I: aStart, J: bStart, Lower: 0, Upper: math.Inf(1)},
			{I: bEnd, J: aEnd, Lower: 0, Upper: math.Inf(1)},
		}, nil

	case START_ALIGN:
		return []Constraint{{I: aStart, J: bStart, Lower: -microRange, Upper: microRange}}, nil

	case START_EXTEND:
		return []Constraint{
			{I: aStart, J: bStart, Lower: -microRange, Upper: microRange},
			{I: bEnd, J: aEnd, Lower: 0, Upper: math.Inf(1)},
		}, nil

	case END_ALIGN:
		return []Constraint{{I: aEnd, J: bEnd, Lower: -microRange, Upper: microRange}}, nil

	case END_EXTEND:
		return []Constraint{
			{I: aEnd, J: bEnd, Lower: -microRange, Upper: microRange},
			{I: aStart, J: bStart, Lower: 0, Upper: math.Inf(1)},
		}, nil

	case OVERLAP_F:
		return []Constraint{
			{I: aStart, J: bStart, Lower: microRange, Upper: math.Inf(1)},
			{I: bStart, J: aEnd, Lower: microRange, Upper: math.Inf(1)},
			{I: aEnd, J: bEnd, Lower: microRange, Upper: math.Inf(1)},
		}, nil

	case OVERLAP_B:
		return []Constraint{
			{I: bStart, J: aStart, Lower: microRange, Upper: math.Inf(1)},
			{I: aStart, J: bEnd, Lower: microRange, Upper: math.Inf(1)},
			{I: bEnd, J: aEnd, Lower: microRange, Upper: math.Inf(1)},
		}, nil

	case FLEXIBLE:
		if spec.Lower == spec.Upper {
			return nil, corerr.New(corerr.InvalidInput, "FLEXIBLE relation must not request a fixed point; caller must widen to a micro-range before calling ToConstraints")
		}
		return []Constraint{{I: aEnd, J: bStart, Lower: spec.Lower, Upper: spec.Upper}}, nil

	case FUZZY:
		if spec.Lower == spec.Upper {
			return nil, corerr.New(corerr.InvalidInput, "FUZZY relation must not request a fixed point")
		}
		return []Constraint{{I: aEnd, J: bStart, Lower: spec.Lower, Upper: spec.Upper}}, nil

	case RESOURCE_BOUND:
		if spec.Lower == spec.Upper {
			return nil, corerr.New(corerr.InvalidInput, "RESOURCE_BOUND relation must not request a fixed point")
		}
		return []Constraint{{I: aStart, J: aEnd, Lower: spec.Lower, Upper: spec.Upper}}, nil

	case MUTEX:
		if spec.PreferAForward {
			return ToConstraints(Spec{Relation: PRECEDES, A: spec.A, B: spec.B}, tp)
		}
		return ToConstraints(Spec{Relation: PRECEDES, A: spec.B, B: spec.A}, tp)

	default:
		return nil, corerr.Newf(corerr.InvalidInput, "unrecognized temporal relation %q", spec.Relation)
	}
}
