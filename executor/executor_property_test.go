package executor_test

import (
	"context"
	"fmt"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/htnkit/corestn/domain"
	"github.com/htnkit/corestn/executor"
	"github.com/htnkit/corestn/state"
)

type failFastCase struct {
	n       int
	failIdx int
}

func genFailFastCase() gopter.Gen {
	return gen.IntRange(1, 10).FlatMap(func(nVal any) gopter.Gen {
		n := nVal.(int)
		return gen.IntRange(0, n-1).Map(func(f int) failFastCase {
			return failFastCase{n: n, failIdx: f}
		})
	}, reflect.TypeOf(failFastCase{}))
}

// TestExecutorFailFastProperty verifies that Run stops at the first failing
// leaf: no leaf after the failure runs, the log records exactly the leaves
// that succeeded, and FinalState reflects only those successes.
func TestExecutorFailFastProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("execution stops at the first failing leaf", prop.ForAll(
		func(tc failFastCase) bool {
			d := domain.New()
			for i := 0; i < tc.n; i++ {
				i := i
				name := fmt.Sprintf("a%d", i)
				_ = d.AddAction(name, func(s state.State, args []domain.Value) (state.State, bool) {
					if i == tc.failIdx {
						return s, false
					}
					return s.SetFact("count", "c", i+1), true
				}, domain.ActionMetadata{})
			}

			leaves := make([]executor.Leaf, tc.n)
			for i := 0; i < tc.n; i++ {
				leaves[i] = executor.Leaf{NodeID: i, Name: fmt.Sprintf("a%d", i)}
			}

			res := executor.Run(context.Background(), d, state.New(), leaves, nil)

			if !res.Partial {
				return false
			}
			if res.FailingNode != tc.failIdx {
				return false
			}
			if len(res.Log) != tc.failIdx {
				return false
			}
			if tc.failIdx == 0 {
				_, ok := res.FinalState.GetFact("count", "c")
				return !ok
			}
			v, ok := res.FinalState.GetFact("count", "c")
			return ok && v == tc.failIdx
		},
		genFailFastCase(),
	))

	properties.TestingRun(t)
}
