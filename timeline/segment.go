package timeline

import (
	"time"

	"github.com/htnkit/corestn/interval"
)

// Segment is one slice of a timeline's span produced by SegmentByBridges.
type Segment struct {
	Start, End time.Time
	Intervals  []string
	Metadata   map[string]any
}

// SegmentByBridges partitions the timeline's span into len(bridges)+1
// segments at the current bridge positions. Total over any bridge
// configuration, including zero bridges (a single segment with
// segment_index 1 and no neighboring bridge ids).
func (t *Timeline) SegmentByBridges() []Segment {
	start, end, ok := t.Span()
	if !ok {
		return nil
	}
	bridges := t.Bridges()

	boundaries := make([]time.Time, 0, len(bridges)+2)
	boundaries = append(boundaries, start)
	for _, b := range bridges {
		boundaries = append(boundaries, b.Position)
	}
	boundaries = append(boundaries, end)

	segs := make([]Segment, 0, len(boundaries)-1)
	for i := 0; i < len(boundaries)-1; i++ {
		segStart, segEnd := boundaries[i], boundaries[i+1]

		var before, after *Bridge
		if i > 0 {
			b := bridges[i-1]
			before = &b
		}
		if i < len(bridges) {
			b := bridges[i]
			after = &b
		}

		kind := ""
		switch {
		case after != nil:
			kind = string(after.Kind)
		case before != nil:
			kind = string(before.Kind)
		}

		meta := map[string]any{
			"segment_index": i + 1,
			"kind":          kind,
			"interval_count": 0,
		}
		if before != nil {
			meta["bridge_before"] = before.ID
		} else {
			meta["bridge_before"] = nil
		}
		if after != nil {
			meta["bridge_after"] = after.ID
		} else {
			meta["bridge_after"] = nil
		}

		ids := t.intervalsOverlapping(segStart, segEnd)
		meta["interval_count"] = len(ids)

		segs = append(segs, Segment{Start: segStart, End: segEnd, Intervals: ids, Metadata: meta})
	}
	return segs
}

func (t *Timeline) intervalsOverlapping(segStart, segEnd time.Time) []string {
	var ids []string
	seg, err := interval.New(segStart, segEnd)
	if err != nil {
		return ids
	}
	for _, id := range t.IntervalIDs() {
		iv := t.intervals[id]
		if iv.Overlaps(seg) || iv.Start.Equal(segStart) || iv.Start.Equal(segEnd) {
			ids = append(ids, id)
		}
	}
	return ids
}

// WithBridgeSegmentation runs SegmentByBridges and then applies fn to the
// result, a convenience hook for callers that want to post-process segments
// (e.g. merge short ones) without recomputing the base segmentation.
func (t *Timeline) WithBridgeSegmentation(fn func([]Segment) []Segment) []Segment {
	segs := t.SegmentByBridges()
	if fn == nil {
		return segs
	}
	return fn(segs)
}
