// Package temporal catalogs Allen's interval relations and their extended
// variants, and compiles each into one or more STN constraints. No relation
// ever emits a fixed-point constraint tuple (lower == upper); EQ and the
// other alignment relations use (-1, 1) micro-ranges instead, matching the
// widening package timeline applies to everything else.
package temporal

import "github.com/htnkit/corestn/corerr"

// Relation names an Allen relation or one of the extended variants.
type Relation string

const (
	EQ           Relation = "EQ"
	PRECEDES     Relation = "PRECEDES"
	FOLLOWS      Relation = "FOLLOWS"
	ADJ_F        Relation = "ADJ_F"
	ADJ_B        Relation = "ADJ_B"
	WITHIN       Relation = "WITHIN"
	CONTAINS     Relation = "CONTAINS"
	START_ALIGN  Relation = "START_ALIGN"
	START_EXTEND Relation = "START_EXTEND"
	END_ALIGN    Relation = "END_ALIGN"
	END_EXTEND   Relation = "END_EXTEND"
	OVERLAP_F    Relation = "OVERLAP_F"
	OVERLAP_B    Relation = "OVERLAP_B"

	// Extended variants, not part of Allen's original 13.
	FLEXIBLE       Relation = "FLEXIBLE"
	MUTEX          Relation = "MUTEX"
	RESOURCE_BOUND Relation = "RESOURCE_BOUND"
	FUZZY          Relation = "FUZZY"
	CONDITIONAL    Relation = "CONDITIONAL"
)

var knownRelations = map[Relation]bool{
	EQ: true, PRECEDES: true, FOLLOWS: true, ADJ_F: true, ADJ_B: true,
	WITHIN: true, CONTAINS: true, START_ALIGN: true, START_EXTEND: true,
	END_ALIGN: true, END_EXTEND: true, OVERLAP_F: true, OVERLAP_B: true,
	FLEXIBLE: true, MUTEX: true, RESOURCE_BOUND: true, FUZZY: true, CONDITIONAL: true,
}

// Recognized reports whether tag is a relation this package knows how to
// compile, used by Domain registration validation.
func Recognized(tag string) bool {
	return knownRelations[Relation(tag)]
}

// Spec describes one relation instance between two activities named A and B
// (activity names as used by Endpoint). Extended variants consult the
// remaining fields; Allen relations ignore them.
type Spec struct {
	Relation Relation
	A, B     string

	// Lower, Upper carry the explicit bound for FLEXIBLE and the tolerance
	// window for FUZZY (nominal +/- epsilon is pre-computed by the caller
	// into these bounds).
	Lower, Upper float64

	// PreferAForward resolves MUTEX's inherent disjunction: true compiles
	// to PRECEDES(A,B), false to PRECEDES(B,A). STN constraints are
	// conjunctive only and cannot hold a genuine XOR; the planner branches
	// on the alternative by trying both a method and its blacklisted
	// retry, so the caller supplies a deterministic choice (the planner
	// passes through domain.RelationMetadata.PreferAForward) rather than
	// this package guessing.
	PreferAForward bool

	// Active gates CONDITIONAL: when false, ToConstraints returns no
	// tuples at all for this Spec. The condition itself is
	// evaluated by the caller against State before building the Spec.
	Active bool

	// Inner is the relation CONDITIONAL wraps once Active is true.
	Inner *Spec
}

func (s Spec) validate() error {
	if !knownRelations[s.Relation] {
		return corerr.Newf(corerr.InvalidInput, "unrecognized temporal relation %q", s.Relation)
	}
	if s.A == "" || (s.B == "" && s.Relation != RESOURCE_BOUND) {
		return corerr.Newf(corerr.InvalidInput, "relation %s requires both activity names", s.Relation)
	}
	return nil
}
