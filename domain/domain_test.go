package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/htnkit/corestn/state"
	"github.com/htnkit/corestn/temporal"
)

func TestAddActionRejectsUnrecognizedRelation(t *testing.T) {
	d := New()
	err := d.AddAction("move", func(s state.State, args []Value) (state.State, bool) { return s, true }, ActionMetadata{
		TemporalRelations: []RelationMetadata{{Relation: "NOT_A_RELATION"}},
	})
	assert.Error(t, err)
}

func TestAddActionRejectsMalformedEntityRequirement(t *testing.T) {
	d := New()
	err := d.AddAction("move", func(s state.State, args []Value) (state.State, bool) { return s, true }, ActionMetadata{
		RequiresEntities: []EntityRequirement{{Capabilities: []string{"moving"}}},
	})
	assert.Error(t, err)
}

func TestAddActionAndQueryMetadata(t *testing.T) {
	d := New()
	meta := ActionMetadata{
		Duration:          30 * time.Minute,
		RequiresEntities:  []EntityRequirement{{Type: "agent", Capabilities: []string{"moving"}}},
		TemporalRelations: []RelationMetadata{{Relation: temporal.PRECEDES, With: "next"}},
	}
	require.NoError(t, d.AddAction("move", func(s state.State, args []Value) (state.State, bool) {
		return s.SetFact("location", args[0].(string), args[1]), true
	}, meta))

	got, ok := d.GetActionMetadata("move")
	require.True(t, ok)
	assert.Equal(t, meta.Duration, got.Duration)

	fn, _, ok := d.Action("move")
	require.True(t, ok)
	s := state.New()
	s2, applied := fn(s, []Value{"a1", "shop"})
	require.True(t, applied)
	v, _ := s2.GetFact("location", "a1")
	assert.Equal(t, "shop", v)
}

func TestCommandTakesPrecedenceAtExecution(t *testing.T) {
	d := New()
	require.NoError(t, d.AddAction("move", func(s state.State, args []Value) (state.State, bool) { return s, true }, ActionMetadata{}))
	assert.False(t, d.HasCommand("move"))
	require.NoError(t, d.AddCommand("move", func(s state.State, args []Value) (state.State, bool) { return s, true }, ActionMetadata{}))
	assert.True(t, d.HasCommand("move"))
}

func TestTaskMethodOrderingAndBlacklist(t *testing.T) {
	d := New()
	d.AddTaskMethod("drive", "commute", func(s state.State, args []Value) ([]TodoItem, bool) {
		return []TodoItem{Action("drive", args...)}, true
	})
	d.AddTaskMethod("walk", "commute", func(s state.State, args []Value) ([]TodoItem, bool) {
		return []TodoItem{Action("walk", args...)}, true
	})

	methods := d.AllMethodsForTask("commute")
	require.Len(t, methods, 2)
	assert.Equal(t, "drive", methods[0].Name)
	assert.Equal(t, "walk", methods[1].Name)

	args := []Value{"a1"}
	assert.False(t, d.IsBlacklisted("drive", args))
	d.Blacklist("drive", args)
	assert.True(t, d.IsBlacklisted("drive", args))
	assert.False(t, d.IsBlacklisted("walk", args))

	d.ResetBlacklist()
	assert.False(t, d.IsBlacklisted("drive", args))
}

func TestIsBlacklistedConsultsSharedChecker(t *testing.T) {
	d := New()
	args := []Value{"a1"}
	assert.False(t, d.IsBlacklisted("drive", args))

	banned := Fingerprint(args)
	d.SetSharedBlacklist(func(methodName string, fingerprint uint64) bool {
		return methodName == "drive" && fingerprint == banned
	})
	assert.True(t, d.IsBlacklisted("drive", args))
	assert.False(t, d.IsBlacklisted("walk", args))

	// Clearing local bans leaves the shared checker in place; removing the
	// checker restores the purely local view.
	d.ResetBlacklist()
	assert.True(t, d.IsBlacklisted("drive", args))
	d.SetSharedBlacklist(nil)
	assert.False(t, d.IsBlacklisted("drive", args))
}

func TestAddMethodUnifiedRegistration(t *testing.T) {
	d := New()
	taskFn := TaskMethodFunc(func(s state.State, args []Value) ([]TodoItem, bool) {
		return nil, true
	})
	require.NoError(t, d.AddMethod("via-walk", ForTask("commute"), taskFn))
	require.Len(t, d.AllMethodsForTask("commute"), 1)

	goalFn := UnigoalMethodFunc(func(s state.State, subject string, value Value) ([]TodoItem, bool) {
		return nil, true
	})
	require.NoError(t, d.AddMethod("set-location", ForPredicate("location"), goalFn))
	require.Len(t, d.GetMethodsFor("location"), 1)

	// A fn that doesn't match the target's kind is rejected.
	assert.Error(t, d.AddMethod("bad", ForTask("commute"), goalFn))
	assert.Error(t, d.AddMethod("empty", MethodTarget{}, taskFn))
}

func TestFingerprintIsStableAcrossMapKeyOrder(t *testing.T) {
	a := []Value{map[string]Value{"b": 2, "a": 1}}
	b := []Value{map[string]Value{"a": 1, "b": 2}}
	assert.Equal(t, Fingerprint(a), Fingerprint(b))
}

func TestFingerprintDistinguishesDifferentArgs(t *testing.T) {
	assert.NotEqual(t, Fingerprint([]Value{"a1"}), Fingerprint([]Value{"a2"}))
}
