package htn

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/htnkit/corestn/config"
	"github.com/htnkit/corestn/domain"
	"github.com/htnkit/corestn/state"
	"github.com/htnkit/corestn/timeline"
)

// TestPlannerCorrectnessProperty verifies that, for any number of
// independent unigoal requests, a successful plan's final state satisfies
// every one of them.
func TestPlannerCorrectnessProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("a successful plan's final state satisfies every requested goal", prop.ForAll(
		func(numGoals int) bool {
			d := domain.New()
			if err := d.AddAction("act", func(s state.State, args []domain.Value) (state.State, bool) {
				subj := args[0].(string)
				val := args[1]
				return s.SetFact("p", subj, val), true
			}, domain.ActionMetadata{}); err != nil {
				return false
			}
			d.AddUnigoalMethod("set-p", "p", func(s state.State, subject string, value domain.Value) ([]domain.TodoItem, bool) {
				return []domain.TodoItem{domain.Action("act", subject, value)}, true
			})

			todos := make([]domain.TodoItem, numGoals)
			for i := 0; i < numGoals; i++ {
				todos[i] = domain.Goal("p", fmt.Sprintf("s%d", i), "v")
			}

			_, final, err := Plan(d, state.New(), todos, timeline.New(), config.New())
			if err != nil {
				return false
			}
			for i := 0; i < numGoals; i++ {
				v, ok := final.GetFact("p", fmt.Sprintf("s%d", i))
				if !ok || v != "v" {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, 10),
	))

	properties.TestingRun(t)
}

// TestPlannerBacktrackingCompletenessProperty verifies that, whatever
// position the one viable task method occupies among a finite set of
// registered alternatives, the planner finds it through backtracking.
func TestPlannerBacktrackingCompletenessProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("the planner finds the one viable method regardless of its position", prop.ForAll(
		func(numMethods, succeedIdx int) bool {
			succeedIdx = succeedIdx % numMethods

			d := domain.New()
			if err := d.AddAction("noop", func(s state.State, args []domain.Value) (state.State, bool) {
				return s.SetFact("done", "t", true), true
			}, domain.ActionMetadata{}); err != nil {
				return false
			}
			for i := 0; i < numMethods; i++ {
				i := i
				name := fmt.Sprintf("m%d", i)
				d.AddTaskMethod(name, "commute", func(s state.State, args []domain.Value) ([]domain.TodoItem, bool) {
					if i != succeedIdx {
						return nil, false
					}
					return []domain.TodoItem{domain.Action("noop")}, true
				})
			}

			todos := []domain.TodoItem{domain.Task("commute")}
			_, final, err := Plan(d, state.New(), todos, timeline.New(), config.New(config.WithMaxRetries(numMethods+2)))
			if err != nil {
				return false
			}
			v, ok := final.GetFact("done", "t")
			return ok && v == true
		},
		gen.IntRange(1, 8),
		gen.IntRange(0, 1000),
	))

	properties.TestingRun(t)
}
