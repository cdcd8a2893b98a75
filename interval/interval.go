// Package interval implements half-open temporal intervals [start, end) with
// ISO-8601 duration parsing, microsecond precision, and the algebra helpers
// the timeline and temporal-relation layers build on.
package interval

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/htnkit/corestn/corerr"
)

// Interval is a half-open span [Start, End). Start == End denotes an
// instantaneous interval. Both bounds are UTC and carry microsecond
// precision; a strictly-Before-End invariant is not required (Start==End is
// valid) but Start must never be after End.
type Interval struct {
	Start time.Time
	End   time.Time
}

// New constructs an Interval, rejecting end < start.
func New(start, end time.Time) (Interval, error) {
	start = normalize(start)
	end = normalize(end)
	if end.Before(start) {
		return Interval{}, corerr.New(corerr.InvalidInput, "interval end precedes start")
	}
	return Interval{Start: start, End: end}, nil
}

// normalize truncates to microsecond precision and converts to UTC, folding
// any leap-second representation into the following UTC instant per time.Time
// semantics.
func normalize(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// Duration returns End - Start.
func (iv Interval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}

// Contains reports whether t falls within the half-open span [Start, End).
// An instantaneous interval (Start == End) contains nothing.
func (iv Interval) Contains(t time.Time) bool {
	t = normalize(t)
	if iv.Start.Equal(iv.End) {
		return false
	}
	return !t.Before(iv.Start) && t.Before(iv.End)
}

// Overlaps reports whether iv and other share any half-open span.
func (iv Interval) Overlaps(other Interval) bool {
	if iv.Start.Equal(iv.End) || other.Start.Equal(other.End) {
		return false
	}
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

// isoDurationPattern matches ISO-8601 durations of the form PnYnMnDTnHnMnS,
// with fractional seconds supported on the seconds component only.
var isoDurationPattern = regexp.MustCompile(
	`^P(?:(\d+)Y)?(?:(\d+)M)?(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+(?:\.\d+)?)S)?)?$`,
)

// ParseISO8601Duration parses an ISO-8601 duration string (e.g. "PT30M",
// "P1DT2H") into a time.Duration with microsecond precision. Negative
// durations and unparseable strings are rejected. Year/month components are
// approximated as 365 and 30 days respectively since the core works in
// absolute durations, not calendar arithmetic.
func ParseISO8601Duration(s string) (time.Duration, error) {
	if s == "" || s[0] != 'P' {
		return 0, corerr.Newf(corerr.InvalidInput, "invalid ISO-8601 duration %q", s)
	}
	if len(s) > 0 && s[0] == '-' {
		return 0, corerr.Newf(corerr.InvalidInput, "negative ISO-8601 duration %q not allowed", s)
	}
	m := isoDurationPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, corerr.Newf(corerr.InvalidInput, "invalid ISO-8601 duration %q", s)
	}
	if m[1] == "" && m[2] == "" && m[3] == "" && m[4] == "" && m[5] == "" && m[6] == "" {
		return 0, corerr.Newf(corerr.InvalidInput, "invalid ISO-8601 duration %q", s)
	}

	var total time.Duration
	add := func(group string, unit time.Duration) error {
		if group == "" {
			return nil
		}
		v, err := strconv.ParseFloat(group, 64)
		if err != nil {
			return err
		}
		if v < 0 {
			return fmt.Errorf("negative component")
		}
		total += time.Duration(v * float64(unit))
		return nil
	}

	const day = 24 * time.Hour
	if err := add(m[1], 365*day); err != nil {
		return 0, corerr.Newf(corerr.InvalidInput, "invalid years component in %q", s)
	}
	if err := add(m[2], 30*day); err != nil {
		return 0, corerr.Newf(corerr.InvalidInput, "invalid months component in %q", s)
	}
	if err := add(m[3], day); err != nil {
		return 0, corerr.Newf(corerr.InvalidInput, "invalid days component in %q", s)
	}
	if err := add(m[4], time.Hour); err != nil {
		return 0, corerr.Newf(corerr.InvalidInput, "invalid hours component in %q", s)
	}
	if err := add(m[5], time.Minute); err != nil {
		return 0, corerr.Newf(corerr.InvalidInput, "invalid minutes component in %q", s)
	}
	if err := add(m[6], time.Second); err != nil {
		return 0, corerr.Newf(corerr.InvalidInput, "invalid seconds component in %q", s)
	}
	return total.Truncate(time.Microsecond), nil
}

// AddDuration returns start advanced by d, normalized to UTC microsecond
// precision.
func AddDuration(start time.Time, d time.Duration) time.Time {
	return normalize(start.Add(d))
}
