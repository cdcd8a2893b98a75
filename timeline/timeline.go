// Package timeline implements the container of intervals and bridges that
// sits between the domain-facing temporal relations (package temporal) and
// the STN core: it is the sole point where a fixed-point constraint
// (lower == upper) is widened to a micro-range before it can reach STN Core,
// so no fixed-point edge ever reaches the solver.
package timeline

import (
	"sort"
	"time"

	"github.com/htnkit/corestn/corerr"
	"github.com/htnkit/corestn/interval"
	"github.com/htnkit/corestn/stn"
	"github.com/htnkit/corestn/temporal"
)

// epsilonMicros is the minimum widening applied to a fixed-point constraint,
// expressed in the tick unit AddInterval and AddRelation use (microseconds).
const epsilonMicros = 1

// Timeline holds a set of named intervals, the STN tying their endpoints
// together, and the bridges partitioning the overall span.
type Timeline struct {
	intervals map[string]interval.Interval
	stn       *stn.STN
	bridges   map[string]Bridge
	Metadata  map[string]any
}

// New constructs an empty Timeline.
func New() *Timeline {
	return &Timeline{
		intervals: map[string]interval.Interval{},
		stn:       stn.New(),
		bridges:   map[string]Bridge{},
		Metadata:  map[string]any{},
	}
}

func startTP(id string) stn.Timepoint { return stn.Timepoint(id + ".start") }
func endTP(id string) stn.Timepoint   { return stn.Timepoint(id + ".end") }

// AddInterval registers iv under id, inserting its start/end timepoints into
// the STN along with a duration constraint. The exact duration would be a
// fixed-point constraint (lower == upper); this is the widening point the
// package doc describes, so the constraint actually stored is
// (duration-epsilon, duration+epsilon).
func (t *Timeline) AddInterval(id string, iv interval.Interval) error {
	if _, exists := t.intervals[id]; exists {
		return corerr.Newf(corerr.InvalidInput, "interval %q already exists", id)
	}
	micros := float64(iv.Duration().Microseconds())
	lower, upper := widen(micros, micros)
	if err := t.stn.AddConstraint(startTP(id), endTP(id), lower, upper); err != nil {
		return err
	}
	t.intervals[id] = iv
	return nil
}

// RemoveInterval retracts id's timepoints and every constraint mentioning
// them, along with the interval record itself.
func (t *Timeline) RemoveInterval(id string) {
	if _, ok := t.intervals[id]; !ok {
		return
	}
	t.stn.RemoveTimePoint(startTP(id))
	t.stn.RemoveTimePoint(endTP(id))
	delete(t.intervals, id)
}

// Interval returns the stored interval for id.
func (t *Timeline) Interval(id string) (interval.Interval, bool) {
	iv, ok := t.intervals[id]
	return iv, ok
}

// IntervalIDs returns every registered interval id, sorted for determinism.
func (t *Timeline) IntervalIDs() []string {
	out := make([]string, 0, len(t.intervals))
	for id := range t.intervals {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// widen applies the micro-range substitution: a fixed point (lower == upper)
// becomes (lower-epsilon, upper+epsilon); anything already a genuine range
// passes through untouched.
func widen(lower, upper float64) (float64, float64) {
	if lower == upper {
		return lower - epsilonMicros, upper + epsilonMicros
	}
	return lower, upper
}

// AddRelation compiles spec against this Timeline's own interval endpoints
// and adds the resulting constraints to the STN, widening any fixed point
// before it reaches STN Core: a fixed-point bound supplied on spec (e.g.
// FLEXIBLE/FUZZY/RESOURCE_BOUND bounds in microseconds, including those of
// a CONDITIONAL's Inner spec) is widened before ToConstraints sees it, and
// any fixed point in ToConstraints' output is widened as well.
func (t *Timeline) AddRelation(spec temporal.Spec) error {
	spec.Lower, spec.Upper = widen(spec.Lower, spec.Upper)
	if spec.Inner != nil {
		inner := *spec.Inner
		inner.Lower, inner.Upper = widen(inner.Lower, inner.Upper)
		spec.Inner = &inner
	}
	tp := temporal.TimepointMap{}
	for _, id := range t.IntervalIDs() {
		tp[id] = struct{ Start, End stn.Timepoint }{Start: startTP(id), End: endTP(id)}
	}
	cs, err := temporal.ToConstraints(spec, tp)
	if err != nil {
		return err
	}
	for _, c := range cs {
		lower, upper := widen(c.Lower, c.Upper)
		if err := t.stn.AddConstraint(c.I, c.J, lower, upper); err != nil {
			return err
		}
	}
	return nil
}

// Consistent reports the tri-state consistency of the underlying STN:
// (true, false) consistent, (false, false) inconsistent, (false, true)
// unknown has no meaning here — callers needing the unknown state should use
// stn/solver.ConservativeCheck directly; Consistent always runs a full
// closure.
func (t *Timeline) Consistent() bool {
	return t.stn.IsConsistent()
}

// ApplyClosure runs Floyd-Warshall closure over the underlying STN and
// returns the closed form, from which solved times can be extracted.
func (t *Timeline) ApplyClosure() *stn.Closed {
	return t.stn.Close()
}

// STN exposes the underlying network for the solver hierarchy
// (stn/solver.Solver.Solve) and for tests.
func (t *Timeline) STN() *stn.STN {
	return t.stn
}

// Span returns the overall timeline extent: the earliest interval start and
// the latest interval end. ok is false when no intervals are registered.
func (t *Timeline) Span() (start, end time.Time, ok bool) {
	first := true
	for _, iv := range t.intervals {
		if first {
			start, end = iv.Start, iv.End
			first = false
			continue
		}
		if iv.Start.Before(start) {
			start = iv.Start
		}
		if iv.End.After(end) {
			end = iv.End
		}
	}
	return start, end, !first
}
