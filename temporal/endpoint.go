package temporal

import "github.com/htnkit/corestn/stn"

// EndpointKind names one of an activity's two timepoints.
type EndpointKind string

const (
	Start EndpointKind = "start"
	End   EndpointKind = "end"
)

// TimepointMap resolves an activity's start/end endpoints to the
// stn.Timepoint values Timeline created for it. Callers build one entry per
// activity name before converting a batch of relations.
type TimepointMap map[string]struct {
	Start, End stn.Timepoint
}

// Lookup resolves activity's endpoint, returning ok=false if activity is
// not present in the map.
func (m TimepointMap) Lookup(activity string, kind EndpointKind) (stn.Timepoint, bool) {
	e, ok := m[activity]
	if !ok {
		return "", false
	}
	if kind == Start {
		return e.Start, true
	}
	return e.End, true
}
