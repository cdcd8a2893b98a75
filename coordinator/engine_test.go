package coordinator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/htnkit/corestn/config"
	"github.com/htnkit/corestn/domain"
	"github.com/htnkit/corestn/engine/inmem"
	"github.com/htnkit/corestn/executor"
	"github.com/htnkit/corestn/state"
)

func TestRunViaEngineRoundTripsResult(t *testing.T) {
	tree := emptyTree()
	finalState := state.New().SetFact("status", "rover1", "done")
	planner := &fakePlanner{tree: tree, s: finalState}
	exec := &fakeExecutor{res: executor.Result{FinalState: finalState, Partial: false}}

	co := New(domain.New(), config.New(), Strategies{Planner: planner, Execute: exec})
	eng := inmem.New()
	ctx := context.Background()

	require.NoError(t, co.RegisterWorkflow(ctx, eng, "planning"))
	res, err := co.RunViaEngine(ctx, eng, "run-1", state.New(), nil)

	require.NoError(t, err)
	require.NoError(t, res.Err)
	assert.Equal(t, 1, res.Attempts)
	v, ok := res.FinalState.GetFact("status", "rover1")
	require.True(t, ok)
	assert.Equal(t, "done", v)
}

func TestRunViaEngineRejectsUnregisteredWorkflow(t *testing.T) {
	co := New(domain.New(), config.New(), Strategies{Planner: &fakePlanner{tree: emptyTree(), s: state.New()}, Execute: &fakeExecutor{}})
	eng := inmem.New()

	_, err := co.RunViaEngine(context.Background(), eng, "run-1", state.New(), nil)
	assert.Error(t, err)
}
