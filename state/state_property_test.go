package state_test

import (
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/htnkit/corestn/state"
)

type fact struct {
	predicate, subject, value string
}

func genFact() gopter.Gen {
	return gopter.CombineGens(
		gen.OneConstOf("status", "location", "battery", "assigned", "holds"),
		gen.AlphaString(),
		gen.AlphaString(),
	).Map(func(vals []any) fact {
		return fact{predicate: vals[0].(string), subject: vals[1].(string), value: vals[2].(string)}
	})
}

// genFactSet generates a slice of facts with unique (predicate, subject)
// keys, mirroring the dedup-by-key semantics a map-backed store applies
// when the same key is written more than once.
func genFactSet() gopter.Gen {
	return gen.IntRange(0, 12).FlatMap(func(n any) gopter.Gen {
		return gen.SliceOfN(n.(int), genFact()).Map(func(fs []fact) []fact {
			seen := map[string]int{}
			out := make([]fact, 0, len(fs))
			for _, f := range fs {
				key := f.predicate + "/" + f.subject
				if idx, ok := seen[key]; ok {
					out[idx] = f
					continue
				}
				seen[key] = len(out)
				out = append(out, f)
			}
			return out
		})
	}, reflect.TypeOf([]fact{}))
}

func TestStateRoundTripProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("to_triples(from_triples(T)) equals T as a set", prop.ForAll(
		func(facts []fact) bool {
			triples := make([]state.Triple, len(facts))
			for i, f := range facts {
				triples[i] = state.Triple{Predicate: f.predicate, Subject: f.subject, Value: f.value}
			}
			got := state.FromTriples(triples).ToTriples()
			if len(got) != len(triples) {
				return false
			}
			want := make(map[string]string, len(triples))
			for _, tr := range triples {
				want[tr.Predicate+"/"+tr.Subject] = tr.Value.(string)
			}
			for _, tr := range got {
				v, ok := want[tr.Predicate+"/"+tr.Subject]
				if !ok || v != tr.Value.(string) {
					return false
				}
			}
			return true
		},
		genFactSet(),
	))

	properties.TestingRun(t)
}

func TestSetFactIdempotentProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("setting the same fact twice is observationally identical to setting it once", prop.ForAll(
		func(f fact) bool {
			base := state.New()
			once := base.SetFact(f.predicate, f.subject, f.value)
			twice := once.SetFact(f.predicate, f.subject, f.value)
			return reflect.DeepEqual(once.ToTriples(), twice.ToTriples())
		},
		genFact(),
	))

	properties.TestingRun(t)
}
