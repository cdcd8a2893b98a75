package timeline

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/htnkit/corestn/corerr"
)

// Kind names what a bridge represents.
type Kind string

const (
	Decision Kind = "decision"
	Event    Kind = "event"
	Sync     Kind = "sync"
)

// Bridge is a named instant partitioning a timeline into segments.
type Bridge struct {
	ID       string
	Position time.Time
	Kind     Kind
	Metadata map[string]any
}

// NormalizeTime canonicalizes a position input: a time.Time or an RFC 3339
// string, either way normalized to UTC at microsecond precision before
// storage.
func NormalizeTime(v any) (time.Time, error) {
	switch p := v.(type) {
	case time.Time:
		return p.UTC().Truncate(time.Microsecond), nil
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, p)
		if err != nil {
			return time.Time{}, corerr.Wrap(corerr.InvalidInput, "unparseable position", err)
		}
		return parsed.UTC().Truncate(time.Microsecond), nil
	default:
		return time.Time{}, corerr.Newf(corerr.InvalidInput, "unsupported position type %T", v)
	}
}

// AddBridge inserts b, generating an id via uuid if b.ID is empty. It
// rejects a position at or outside the timeline's current span (the sole
// enforcement point for the "never at an endpoint" invariant)
// and rejects a duplicate id. The position is normalized to UTC microsecond
// precision before storage.
func (t *Timeline) AddBridge(b Bridge) (Bridge, error) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	b.Position = b.Position.UTC().Truncate(time.Microsecond)
	if _, exists := t.bridges[b.ID]; exists {
		return Bridge{}, corerr.Newf(corerr.InvalidInput, "bridge id %q already exists", b.ID)
	}
	if start, end, ok := t.Span(); ok {
		if !b.Position.After(start) || !b.Position.Before(end) {
			return Bridge{}, corerr.Newf(corerr.InvalidInput, "bridge position %v must lie strictly inside the timeline span [%v,%v]", b.Position, start, end)
		}
	}
	if b.Metadata == nil {
		b.Metadata = map[string]any{}
	}
	t.bridges[b.ID] = b
	return b, nil
}

// AddBridgeAt inserts a bridge of the given kind at position, which may be a
// time.Time or an RFC 3339 string (see NormalizeTime).
func (t *Timeline) AddBridgeAt(position any, kind Kind) (Bridge, error) {
	pos, err := NormalizeTime(position)
	if err != nil {
		return Bridge{}, err
	}
	return t.AddBridge(Bridge{Position: pos, Kind: kind})
}

// RemoveBridge retracts id, a no-op if absent.
func (t *Timeline) RemoveBridge(id string) {
	delete(t.bridges, id)
}

// Bridges returns every bridge sorted by position then id, for determinism.
func (t *Timeline) Bridges() []Bridge {
	out := make([]Bridge, 0, len(t.bridges))
	for _, b := range t.bridges {
		out = append(out, b)
	}
	sortBridges(out)
	return out
}

func sortBridges(bs []Bridge) {
	sort.Slice(bs, func(i, j int) bool {
		if bs[i].Position.Equal(bs[j].Position) {
			return bs[i].ID < bs[j].ID
		}
		return bs[i].Position.Before(bs[j].Position)
	})
}

// BridgesInRange returns every bridge whose position lies in the half-open
// span [from, to), sorted by position. Total over any configuration,
// including zero bridges.
func (t *Timeline) BridgesInRange(from, to time.Time) []Bridge {
	all := t.Bridges()
	out := make([]Bridge, 0, len(all))
	for _, b := range all {
		if !b.Position.Before(from) && b.Position.Before(to) {
			out = append(out, b)
		}
	}
	return out
}

// ValidateAllBridgePlacements rejects any bridge whose position equals an
// endpoint of the timeline's current span, returning the first offender.
func (t *Timeline) ValidateAllBridgePlacements() error {
	start, end, ok := t.Span()
	if !ok {
		return nil
	}
	for _, b := range t.Bridges() {
		if b.Position.Equal(start) || b.Position.Equal(end) {
			return corerr.Newf(corerr.InvalidInput, "bridge %q sits at a span endpoint (%v)", b.ID, b.Position)
		}
	}
	return nil
}

// AutoInsertBridges places a bridge of the given kind every step within the
// timeline's span, skipping any candidate position that would land on a
// span endpoint. It is a convenience policy; callers wanting fully custom
// placement should call AddBridge directly.
func (t *Timeline) AutoInsertBridges(step time.Duration, kind Kind) ([]Bridge, error) {
	start, end, ok := t.Span()
	if !ok || step <= 0 {
		return nil, nil
	}
	var inserted []Bridge
	for pos := start.Add(step); pos.Before(end); pos = pos.Add(step) {
		b, err := t.AddBridge(Bridge{Position: pos, Kind: kind})
		if err != nil {
			continue
		}
		inserted = append(inserted, b)
	}
	return inserted, nil
}
