package timeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/htnkit/corestn/interval"
	"github.com/htnkit/corestn/temporal"
)

func mustInterval(t *testing.T, start, end time.Time) interval.Interval {
	t.Helper()
	iv, err := interval.New(start, end)
	require.NoError(t, err)
	return iv
}

func TestAddIntervalWidensDurationConstraint(t *testing.T) {
	tl := New()
	base := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	iv := mustInterval(t, base, base.Add(30*time.Minute))
	require.NoError(t, tl.AddInterval("A", iv))

	b := tl.STN().Bound(startTP("A"), endTP("A"))
	assert.NotEqual(t, b.Lower, b.Upper, "duration constraint must not be a fixed point")
	micros := float64(30 * time.Minute / time.Microsecond)
	assert.Equal(t, micros-epsilonMicros, b.Lower)
	assert.Equal(t, micros+epsilonMicros, b.Upper)
	assert.True(t, tl.Consistent())
}

func TestRemoveIntervalRetractsTimepoints(t *testing.T) {
	tl := New()
	base := time.Now()
	iv := mustInterval(t, base, base.Add(time.Hour))
	require.NoError(t, tl.AddInterval("A", iv))
	tl.RemoveInterval("A")
	assert.False(t, tl.STN().HasTimePoint(startTP("A")))
	_, ok := tl.Interval("A")
	assert.False(t, ok)
}

func TestBridgeRejectsSpanEndpoint(t *testing.T) {
	tl := New()
	base := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	iv := mustInterval(t, base, base.Add(10*time.Hour))
	require.NoError(t, tl.AddInterval("A", iv))

	_, err := tl.AddBridge(Bridge{Position: base, Kind: Event})
	assert.Error(t, err)

	end, _, _ := tl.Span()
	_ = end
	_, err = tl.AddBridge(Bridge{Position: base.Add(10 * time.Hour), Kind: Event})
	assert.Error(t, err)
}

func TestSegmentByBridgesProducesNPlusOneSegments(t *testing.T) {
	tl := New()
	base := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	iv := mustInterval(t, base, base.Add(10*time.Hour))
	require.NoError(t, tl.AddInterval("whole-day", iv))

	_, err := tl.AddBridge(Bridge{Position: base.Add(2 * time.Hour), Kind: Decision})
	require.NoError(t, err)
	_, err = tl.AddBridge(Bridge{Position: base.Add(6 * time.Hour), Kind: Sync})
	require.NoError(t, err)

	segs := tl.SegmentByBridges()
	require.Len(t, segs, 3)
	assert.Equal(t, 1, segs[0].Metadata["segment_index"])
	assert.Equal(t, 2, segs[1].Metadata["segment_index"])
	assert.Equal(t, 3, segs[2].Metadata["segment_index"])
	assert.Nil(t, segs[0].Metadata["bridge_before"])
	assert.NotNil(t, segs[0].Metadata["bridge_after"])
	assert.Equal(t, segs[0].Metadata["bridge_after"], segs[1].Metadata["bridge_before"])
	assert.Nil(t, segs[2].Metadata["bridge_after"])

	assert.True(t, segs[0].Start.Equal(base))
	assert.True(t, segs[2].End.Equal(base.Add(10 * time.Hour)))
}

func TestSegmentByBridgesZeroBridgesIsSingleSegment(t *testing.T) {
	tl := New()
	base := time.Now()
	iv := mustInterval(t, base, base.Add(time.Hour))
	require.NoError(t, tl.AddInterval("A", iv))

	segs := tl.SegmentByBridges()
	require.Len(t, segs, 1)
	assert.Equal(t, 1, segs[0].Metadata["segment_index"])
	assert.Nil(t, segs[0].Metadata["bridge_before"])
	assert.Nil(t, segs[0].Metadata["bridge_after"])
}

func TestAddRelationAppliesThroughTemporalPackage(t *testing.T) {
	tl := New()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ivA := mustInterval(t, base, base.Add(time.Hour))
	ivB := mustInterval(t, base.Add(2*time.Hour), base.Add(3*time.Hour))
	require.NoError(t, tl.AddInterval("A", ivA))
	require.NoError(t, tl.AddInterval("B", ivB))

	require.NoError(t, tl.AddRelation(temporal.Spec{Relation: temporal.PRECEDES, A: "A", B: "B"}))
	assert.True(t, tl.Consistent())
}

func TestAddRelationInconsistentCycle(t *testing.T) {
	tl := New()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, id := range []string{"A", "B", "C"} {
		iv := mustInterval(t, base, base.Add(time.Hour))
		require.NoError(t, tl.AddInterval(id, iv))
	}
	require.NoError(t, tl.AddRelation(temporal.Spec{Relation: temporal.PRECEDES, A: "A", B: "B"}))
	require.NoError(t, tl.AddRelation(temporal.Spec{Relation: temporal.PRECEDES, A: "B", B: "C"}))
	err := tl.AddRelation(temporal.Spec{Relation: temporal.PRECEDES, A: "C", B: "A"})
	if err == nil {
		assert.False(t, tl.Consistent())
	}
}
