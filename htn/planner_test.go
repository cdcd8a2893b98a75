package htn

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/htnkit/corestn/config"
	"github.com/htnkit/corestn/corerr"
	"github.com/htnkit/corestn/domain"
	"github.com/htnkit/corestn/state"
	"github.com/htnkit/corestn/temporal"
	"github.com/htnkit/corestn/timeline"
)

// S1 — single durative action.
func TestSingleDurativeAction(t *testing.T) {
	d := domain.New()
	require.NoError(t, d.AddAction("move", func(s state.State, args []domain.Value) (state.State, bool) {
		agent := args[0].(string)
		dest := args[1].(string)
		return s.SetFact("location", agent, dest), true
	}, domain.ActionMetadata{
		Duration:         30 * time.Minute,
		RequiresEntities: []domain.EntityRequirement{{Type: "agent", Capabilities: []string{"moving"}}},
	}))

	s := state.New().
		SetFact("type", "a1", "agent").
		SetFact("capabilities", "a1", []string{"moving"}).
		SetFact("location", "a1", "home")

	tl := timeline.New()
	todos := []domain.TodoItem{domain.DurativeAction("move", "a1", "shop")}

	tree, final, err := Plan(d, s, todos, tl, config.New())
	require.NoError(t, err)
	v, ok := final.GetFact("location", "a1")
	require.True(t, ok)
	assert.Equal(t, "shop", v)

	ids := tl.IntervalIDs()
	require.Len(t, ids, 1)
	iv, _ := tl.Interval(ids[0])
	assert.Equal(t, 30*time.Minute, iv.Duration())
	assert.NotEmpty(t, tree.Nodes)
}

// S2 — task decomposition with method blacklisting.
func TestTaskDecompositionFallsBackAfterBlacklist(t *testing.T) {
	d := domain.New()
	require.NoError(t, d.AddAction("drive", func(s state.State, args []domain.Value) (state.State, bool) {
		return s, false // entity lacks driving capability, simulated as a hard failure
	}, domain.ActionMetadata{}))
	require.NoError(t, d.AddAction("walk", func(s state.State, args []domain.Value) (state.State, bool) {
		return s.SetFact("location", args[0].(string), "work"), true
	}, domain.ActionMetadata{}))

	d.AddTaskMethod("drive", "commute", func(s state.State, args []domain.Value) ([]domain.TodoItem, bool) {
		return []domain.TodoItem{domain.Action("drive", args...)}, true
	})
	d.AddTaskMethod("walk", "commute", func(s state.State, args []domain.Value) ([]domain.TodoItem, bool) {
		return []domain.TodoItem{domain.Action("walk", args...)}, true
	})

	s := state.New()
	tl := timeline.New()
	todos := []domain.TodoItem{domain.Task("commute", "a1")}

	tree, final, err := Plan(d, s, todos, tl, config.New())
	require.NoError(t, err)
	v, _ := final.GetFact("location", "a1")
	assert.Equal(t, "work", v)
	assert.True(t, d.IsBlacklisted("drive", []domain.Value{"a1"}))

	root := tree.Node(tree.Root)
	require.Len(t, root.Children, 1)
	taskNode := tree.Node(root.Children[0])
	assert.Equal(t, "walk", taskNode.MethodChosen)
}

// S3 — STN precedence between two durative actions.
func TestDurativeActionPrecedenceAddsSTNConstraint(t *testing.T) {
	d := domain.New()
	noop := func(s state.State, args []domain.Value) (state.State, bool) { return s, true }
	require.NoError(t, d.AddAction("A", noop, domain.ActionMetadata{Duration: time.Hour}))
	require.NoError(t, d.AddAction("B", noop, domain.ActionMetadata{
		Duration: time.Hour,
		TemporalRelations: []domain.RelationMetadata{
			{Relation: temporal.PRECEDES, With: "A"},
		},
	}))

	s := state.New()
	tl := timeline.New()
	todos := []domain.TodoItem{
		domain.DurativeAction("A"),
		domain.DurativeAction("B"),
	}
	_, _, err := Plan(d, s, todos, tl, config.New())
	require.NoError(t, err)
	assert.True(t, tl.Consistent())
	assert.Len(t, tl.IntervalIDs(), 2)
}

func TestGoalAlreadySatisfiedSkipsMethods(t *testing.T) {
	d := domain.New()
	calls := 0
	d.AddUnigoalMethod("set-location", "location", func(s state.State, subject string, value domain.Value) ([]domain.TodoItem, bool) {
		calls++
		return nil, true
	})

	s := state.New().SetFact("location", "a1", "shop")
	tl := timeline.New()
	todos := []domain.TodoItem{domain.Goal("location", "a1", "shop")}

	_, _, err := Plan(d, s, todos, tl, config.New())
	require.NoError(t, err)
	assert.Equal(t, 0, calls)
}

func TestNoPlanWhenAllMethodsExhausted(t *testing.T) {
	d := domain.New()
	d.AddTaskMethod("only", "impossible", func(s state.State, args []domain.Value) ([]domain.TodoItem, bool) {
		return nil, false
	})
	s := state.New()
	tl := timeline.New()
	todos := []domain.TodoItem{domain.Task("impossible")}

	_, _, err := Plan(d, s, todos, tl, config.New())
	require.Error(t, err)
	kind, ok := corerr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, corerr.NoPlan, kind)
}

func TestVerifyGoalsFailsWhenFinalStateRegresses(t *testing.T) {
	d := domain.New()
	require.NoError(t, d.AddAction("set-then-unset", func(s state.State, args []domain.Value) (state.State, bool) {
		return s.RemoveFact("ready", "a1"), true
	}, domain.ActionMetadata{}))
	d.AddUnigoalMethod("ready", "ready", func(s state.State, subject string, value domain.Value) ([]domain.TodoItem, bool) {
		return []domain.TodoItem{domain.Action("set-then-unset")}, true
	})

	s := state.New()
	tl := timeline.New()
	todos := []domain.TodoItem{domain.Goal("ready", "a1", true)}

	cfg := config.New(config.WithVerifyGoals(true))
	_, _, err := Plan(d, s, todos, tl, cfg)
	assert.Error(t, err)
}
