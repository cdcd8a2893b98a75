package temporal_test

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/htnkit/corestn/temporal"
)

var allRelations = []temporal.Relation{
	temporal.EQ, temporal.PRECEDES, temporal.FOLLOWS, temporal.ADJ_F, temporal.ADJ_B,
	temporal.WITHIN, temporal.CONTAINS, temporal.START_ALIGN, temporal.START_EXTEND,
	temporal.END_ALIGN, temporal.END_EXTEND, temporal.OVERLAP_F, temporal.OVERLAP_B,
	temporal.FLEXIBLE, temporal.MUTEX, temporal.RESOURCE_BOUND, temporal.FUZZY,
}

func genSpec() gopter.Gen {
	return gopter.CombineGens(
		gen.IntRange(0, len(allRelations)-1),
		gen.IntRange(-200, 200),
		gen.IntRange(1, 100),
		gen.Bool(),
	).Map(func(vals []any) temporal.Spec {
		lower := float64(vals[1].(int))
		return temporal.Spec{
			Relation:       allRelations[vals[0].(int)],
			A:              "A",
			B:              "B",
			Lower:          lower,
			Upper:          lower + float64(vals[2].(int)),
			PreferAForward: vals[3].(bool),
		}
	})
}

// TestToConstraintsNeverEmitsFixedPointProperty verifies, across every
// registered relation, that ToConstraints never returns a tuple with
// Lower == Upper: any constraint that would otherwise be a fixed point must
// already have been widened to a micro-range before it reaches this layer.
func TestToConstraintsNeverEmitsFixedPointProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	properties.Property("no relation ever compiles to a fixed-point constraint", prop.ForAll(
		func(spec temporal.Spec) bool {
			tp := temporal.TimepointMap{
				"A": {Start: "A.start", End: "A.end"},
				"B": {Start: "B.start", End: "B.end"},
			}
			cs, err := temporal.ToConstraints(spec, tp)
			if err != nil {
				return true
			}
			for _, c := range cs {
				if c.Lower == c.Upper {
					return false
				}
			}
			return true
		},
		genSpec(),
	))

	properties.TestingRun(t)
}
