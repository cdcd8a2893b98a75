// Package stn implements the Simple Temporal Network core: a sparse
// distance/bounds matrix over timepoints, constraint intersection and
// composition with infinity arithmetic, and Floyd-Warshall consistency
// checking. STN never raises; every operation returns a tagged result.
package stn

import (
	"math"
	"sort"

	"github.com/htnkit/corestn/corerr"
)

// Timepoint is an opaque identifier naming a moment.
type Timepoint string

// Bound is a closed interval [Lower, Upper] on a timepoint difference, with
// +/-Inf representing an absent bound.
type Bound struct {
	Lower float64
	Upper float64
}

// Inf returns the unconstrained bound (-inf, +inf).
func Inf() Bound {
	return Bound{Lower: math.Inf(-1), Upper: math.Inf(1)}
}

// Empty reports whether the bound is infeasible (Lower > Upper).
func (b Bound) Empty() bool {
	return b.Lower > b.Upper
}

// Intersect returns (max(a.Lower,b.Lower), min(a.Upper,b.Upper)); the result
// may be Empty.
func Intersect(a, b Bound) Bound {
	return Bound{Lower: math.Max(a.Lower, b.Lower), Upper: math.Min(a.Upper, b.Upper)}
}

// Compose adds two bounds with infinity arithmetic: +inf + x = +inf,
// -inf + x = -inf, and -inf + +inf is forbidden (the caller must skip
// composing such a pair; Compose returns NaN for that endpoint in that case
// and callers must guard with Composable first).
func Compose(a, b Bound) Bound {
	return Bound{Lower: addInf(a.Lower, b.Lower), Upper: addInf(a.Upper, b.Upper)}
}

func addInf(x, y float64) float64 {
	if math.IsInf(x, -1) && math.IsInf(y, 1) {
		return math.NaN()
	}
	if math.IsInf(y, -1) && math.IsInf(x, 1) {
		return math.NaN()
	}
	if math.IsInf(x, 0) {
		return x
	}
	if math.IsInf(y, 0) {
		return y
	}
	return x + y
}

// Composable reports whether a and b can be composed without hitting the
// forbidden -inf + +inf case on either endpoint.
func Composable(a, b Bound) bool {
	r := Compose(a, b)
	return !math.IsNaN(r.Lower) && !math.IsNaN(r.Upper)
}

type edge struct {
	i, j Timepoint
}

// STN is the distance-bounds constraint graph over a set of timepoints.
// Self-loops are never stored; identity is implicit.
type STN struct {
	timepoints  map[Timepoint]struct{}
	constraints map[edge]Bound

	// Consistent is the tri-state {true, false, unknown}; callers
	// consult it after Solve/IsConsistent.
	Consistent *bool

	// Metadata carries solved_times after a successful solve, plus
	// lod_resolution/time_unit echoed back for the caller's bookkeeping.
	Metadata map[string]any
}

// New constructs an empty STN.
func New() *STN {
	return &STN{
		timepoints:  map[Timepoint]struct{}{},
		constraints: map[edge]Bound{},
		Metadata:    map[string]any{},
	}
}

// AddTimePoint inserts tp with no new constraints. O(1), idempotent.
func (s *STN) AddTimePoint(tp Timepoint) {
	s.timepoints[tp] = struct{}{}
}

// HasTimePoint reports whether tp was inserted.
func (s *STN) HasTimePoint(tp Timepoint) bool {
	_, ok := s.timepoints[tp]
	return ok
}

// Timepoints returns every timepoint currently tracked, sorted
// lexicographically so that callers needing a stable index (wire encoding,
// matrix extraction) get the same order on every call.
func (s *STN) Timepoints() []Timepoint {
	out := make([]Timepoint, 0, len(s.timepoints))
	for tp := range s.timepoints {
		out = append(out, tp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// RemoveTimePoint retracts tp and any constraint mentioning it.
func (s *STN) RemoveTimePoint(tp Timepoint) {
	delete(s.timepoints, tp)
	for e := range s.constraints {
		if e.i == tp || e.j == tp {
			delete(s.constraints, e)
		}
	}
}

// AddConstraint intersects (lower, upper) with any existing bound on (i, j)
// and stores the result. It rejects lower > upper and the fixed-point case
// lower == upper with corerr.FixedPointConstraint: upper layers must widen a
// fixed point to a micro-range before it reaches STN Core.
// If the intersected bound is Empty, it returns corerr.STNInconsistent
// without mutating the STN.
func (s *STN) AddConstraint(i, j Timepoint, lower, upper float64) error {
	if lower > upper {
		return corerr.Newf(corerr.InvalidInput, "constraint (%s,%s) has lower %v > upper %v", i, j, lower, upper)
	}
	if lower == upper {
		return corerr.Newf(corerr.FixedPointConstraint, "constraint (%s,%s) is a fixed point %v; widen to a micro-range before calling STN Core", i, j, lower)
	}
	s.AddTimePoint(i)
	s.AddTimePoint(j)

	e := edge{i: i, j: j}
	existing, ok := s.constraints[e]
	if !ok {
		existing = Inf()
	}
	merged := Intersect(existing, Bound{Lower: lower, Upper: upper})
	if merged.Empty() {
		return corerr.Newf(corerr.STNInconsistent, "constraint (%s,%s) intersection is empty: existing=%v new=(%v,%v)", i, j, existing, lower, upper)
	}
	s.constraints[e] = merged
	return nil
}

// Bound returns the currently stored bound for (i, j), or Inf() if none is
// stored.
func (s *STN) Bound(i, j Timepoint) Bound {
	if b, ok := s.constraints[edge{i: i, j: j}]; ok {
		return b
	}
	return Inf()
}

// Edges returns every stored (i, j, bound) triple.
func (s *STN) Edges() []struct {
	I, J  Timepoint
	Bound Bound
} {
	out := make([]struct {
		I, J  Timepoint
		Bound Bound
	}, 0, len(s.constraints))
	for e, b := range s.constraints {
		out = append(out, struct {
			I, J  Timepoint
			Bound Bound
		}{I: e.i, J: e.j, Bound: b})
	}
	return out
}

// Clone returns a deep copy of s.
func (s *STN) Clone() *STN {
	cp := New()
	for tp := range s.timepoints {
		cp.timepoints[tp] = struct{}{}
	}
	for e, b := range s.constraints {
		cp.constraints[e] = b
	}
	for k, v := range s.Metadata {
		cp.Metadata[k] = v
	}
	if s.Consistent != nil {
		c := *s.Consistent
		cp.Consistent = &c
	}
	return cp
}
