package temporal

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/htnkit/corestn/stn"
)

func tpMapFor(names ...string) TimepointMap {
	m := TimepointMap{}
	for _, n := range names {
		m[n] = struct{ Start, End stn.Timepoint }{
			Start: stn.Timepoint(n + ".start"),
			End:   stn.Timepoint(n + ".end"),
		}
	}
	return m
}

func TestToConstraintsNeverEmitsFixedPoint(t *testing.T) {
	tp := tpMapFor("A", "B")
	for rel := range knownRelations {
		if rel == FLEXIBLE || rel == FUZZY || rel == RESOURCE_BOUND || rel == CONDITIONAL {
			continue
		}
		spec := Spec{Relation: rel, A: "A", B: "B"}
		cs, err := ToConstraints(spec, tp)
		require.NoError(t, err, "relation %s", rel)
		for _, c := range cs {
			assert.NotEqual(t, c.Lower, c.Upper, "relation %s emitted a fixed point %v", rel, c)
		}
	}
}

func TestPrecedesOrdersActivities(t *testing.T) {
	tp := tpMapFor("A", "B")
	cs, err := ToConstraints(Spec{Relation: PRECEDES, A: "A", B: "B"}, tp)
	require.NoError(t, err)
	require.Len(t, cs, 1)
	assert.Equal(t, stn.Timepoint("B.start"), cs[0].I)
	assert.Equal(t, stn.Timepoint("A.end"), cs[0].J)
	assert.True(t, math.IsInf(cs[0].Lower, -1))
	assert.Equal(t, -1.0, cs[0].Upper)
}

func TestEQUsesMicroRange(t *testing.T) {
	tp := tpMapFor("A", "B")
	cs, err := ToConstraints(Spec{Relation: EQ, A: "A", B: "B"}, tp)
	require.NoError(t, err)
	require.Len(t, cs, 2)
	for _, c := range cs {
		assert.Equal(t, -1.0, c.Lower)
		assert.Equal(t, 1.0, c.Upper)
	}
}

func TestConditionalSkipsWhenInactive(t *testing.T) {
	tp := tpMapFor("A", "B")
	spec := Spec{
		Relation: CONDITIONAL,
		A:        "A", B: "B",
		Active: false,
		Inner:  &Spec{Relation: PRECEDES, A: "A", B: "B"},
	}
	cs, err := ToConstraints(spec, tp)
	require.NoError(t, err)
	assert.Empty(t, cs)
}

func TestConditionalAppliesInnerWhenActive(t *testing.T) {
	tp := tpMapFor("A", "B")
	spec := Spec{
		Relation: CONDITIONAL,
		A:        "A", B: "B",
		Active: true,
		Inner:  &Spec{Relation: PRECEDES, A: "A", B: "B"},
	}
	cs, err := ToConstraints(spec, tp)
	require.NoError(t, err)
	require.Len(t, cs, 1)
}

func TestMutexResolvesToDeterministicOrder(t *testing.T) {
	tp := tpMapFor("A", "B")
	forward, err := ToConstraints(Spec{Relation: MUTEX, A: "A", B: "B", PreferAForward: true}, tp)
	require.NoError(t, err)
	backward, err := ToConstraints(Spec{Relation: MUTEX, A: "A", B: "B", PreferAForward: false}, tp)
	require.NoError(t, err)
	assert.NotEqual(t, forward, backward)
}

func TestResourceBoundRejectsFixedPoint(t *testing.T) {
	tp := tpMapFor("A")
	_, err := ToConstraints(Spec{Relation: RESOURCE_BOUND, A: "A", Lower: 5, Upper: 5}, tp)
	assert.Error(t, err)
}

func TestApplyRejectsUnregisteredActivity(t *testing.T) {
	tp := tpMapFor("A")
	s := stn.New()
	err := Apply(s, Spec{Relation: PRECEDES, A: "A", B: "Missing"}, tp)
	assert.Error(t, err)
}

func TestRecognized(t *testing.T) {
	assert.True(t, Recognized("PRECEDES"))
	assert.False(t, Recognized("NOT_A_RELATION"))
}
