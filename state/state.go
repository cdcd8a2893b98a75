// Package state implements the planner's triple store: a mapping from
// (predicate, subject) to an arbitrary value, plus total, side-effect-free
// condition evaluation over it.
package state

import (
	"reflect"
	"sort"
)

// Key identifies a fact slot.
type Key struct {
	Predicate string
	Subject   string
}

// Triple is a flattened (predicate, subject, value) fact, used at the
// to_triples/from_triples boundary.
type Triple struct {
	Predicate string
	Subject   string
	Value     any
}

// State is a logically immutable triple store: every write returns a new
// State value. The zero value is not usable; construct with New.
type State struct {
	facts map[Key]any
}

// New constructs an empty State.
func New() State {
	return State{facts: map[Key]any{}}
}

// NewFromMap constructs a State pre-populated from initial, keyed by
// (predicate, subject).
func NewFromMap(initial map[Key]any) State {
	facts := make(map[Key]any, len(initial))
	for k, v := range initial {
		facts[k] = v
	}
	return State{facts: facts}
}

// FromTriples constructs a State from a flat triple list.
func FromTriples(triples []Triple) State {
	facts := make(map[Key]any, len(triples))
	for _, t := range triples {
		facts[Key{Predicate: t.Predicate, Subject: t.Subject}] = t.Value
	}
	return State{facts: facts}
}

// ToTriples flattens the State back into a triple list, sorted by
// (predicate, subject) for determinism.
func (s State) ToTriples() []Triple {
	out := make([]Triple, 0, len(s.facts))
	for k, v := range s.facts {
		out = append(out, Triple{Predicate: k.Predicate, Subject: k.Subject, Value: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Predicate != out[j].Predicate {
			return out[i].Predicate < out[j].Predicate
		}
		return out[i].Subject < out[j].Subject
	})
	return out
}

// SetFact returns a new State with (predicate, subject) bound to value.
// Writing the same value to the same key again is idempotent: the resulting
// State is observationally identical.
func (s State) SetFact(predicate, subject string, value any) State {
	next := s.Copy()
	next.facts[Key{Predicate: predicate, Subject: subject}] = value
	return next
}

// GetFact returns the value bound to (predicate, subject) and ok=true, or
// ok=false if no such fact exists. ok=false is the only not-found signal;
// no sentinel value is ever confused with a stored one.
func (s State) GetFact(predicate, subject string) (value any, ok bool) {
	v, ok := s.facts[Key{Predicate: predicate, Subject: subject}]
	return v, ok
}

// RemoveFact returns a new State with (predicate, subject) unset.
func (s State) RemoveFact(predicate, subject string) State {
	next := s.Copy()
	delete(next.facts, Key{Predicate: predicate, Subject: subject})
	return next
}

// HasPredicate reports whether any subject carries predicate.
func (s State) HasPredicate(predicate string) bool {
	for k := range s.facts {
		if k.Predicate == predicate {
			return true
		}
	}
	return false
}

// GetSubjectsWithFact returns every subject whose (predicate, subject) value
// equals val. Equality is structural: list and map values compare element by
// element, since facts may carry composite values.
func (s State) GetSubjectsWithFact(predicate string, val any) []string {
	var out []string
	for k, v := range s.facts {
		if k.Predicate == predicate && equalValues(v, val) {
			out = append(out, k.Subject)
		}
	}
	sort.Strings(out)
	return out
}

// GetSubjectsWithPredicate returns every subject that carries predicate, in
// no particular guaranteed order beyond lexical sort for determinism.
func (s State) GetSubjectsWithPredicate(predicate string) []string {
	var out []string
	for k := range s.facts {
		if k.Predicate == predicate {
			out = append(out, k.Subject)
		}
	}
	sort.Strings(out)
	return out
}

// Matches reports whether (predicate, subject) is bound to val, comparing
// composite values structurally.
func (s State) Matches(predicate, subject string, val any) bool {
	v, ok := s.GetFact(predicate, subject)
	return ok && equalValues(v, val)
}

// equalValues compares two fact values structurally. Values may be slices or
// maps, which == would panic on, so comparison goes through reflect.DeepEqual
// after the cheap comparable fast path.
func equalValues(a, b any) bool {
	if a == nil || b == nil {
		return a == b
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta.Comparable() && tb.Comparable() {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}

// Merge returns a new State with other's facts layered over s; on key
// conflict, other wins.
func (s State) Merge(other State) State {
	next := s.Copy()
	for k, v := range other.facts {
		next.facts[k] = v
	}
	return next
}

// Copy returns an independent copy of s.
func (s State) Copy() State {
	next := make(map[Key]any, len(s.facts))
	for k, v := range s.facts {
		next[k] = v
	}
	return State{facts: next}
}

// Len reports the number of bound facts, used by fingerprinting and tests.
func (s State) Len() int {
	return len(s.facts)
}
