package timeline

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/htnkit/corestn/interval"
)

// TestSegmentationCountProperty verifies that partitioning a timeline at N
// bridges always yields exactly N+1 segments, for any N.
func TestSegmentationCountProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("segmenting by N bridges produces N+1 segments", prop.ForAll(
		func(n int) bool {
			tl := New()
			base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
			iv, err := interval.New(base, base.Add(time.Duration(n+1)*time.Hour))
			if err != nil {
				return false
			}
			if err := tl.AddInterval("whole", iv); err != nil {
				return false
			}
			for i := 1; i <= n; i++ {
				pos := base.Add(time.Duration(i) * time.Hour)
				if _, err := tl.AddBridge(Bridge{Position: pos, Kind: Decision}); err != nil {
					return false
				}
			}
			return len(tl.SegmentByBridges()) == n+1
		},
		gen.IntRange(0, 12),
	))

	properties.TestingRun(t)
}

// TestBridgeNeverSitsAtSpanEndpointProperty verifies that AddBridge rejects
// a position at either endpoint of the timeline's current span, for any
// span length.
func TestBridgeNeverSitsAtSpanEndpointProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("a bridge at either span endpoint is always rejected", prop.ForAll(
		func(hours int) bool {
			tl := New()
			base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
			iv, err := interval.New(base, base.Add(time.Duration(hours)*time.Hour))
			if err != nil {
				return true
			}
			if err := tl.AddInterval("whole", iv); err != nil {
				return true
			}

			_, errStart := tl.AddBridge(Bridge{Position: base, Kind: Event})
			_, errEnd := tl.AddBridge(Bridge{Position: base.Add(time.Duration(hours) * time.Hour), Kind: Event})
			return errStart != nil && errEnd != nil
		},
		gen.IntRange(1, 48),
	))

	properties.TestingRun(t)
}
