package coordinator

import (
	"context"

	"github.com/htnkit/corestn/corerr"
	"github.com/htnkit/corestn/domain"
	"github.com/htnkit/corestn/engine"
	"github.com/htnkit/corestn/state"
)

// WorkflowName is the identifier the coordinator's durable loop registers
// under on a workflow engine.
const WorkflowName = "coordinator.run"

// WorkflowInput is the payload a durable coordinator run starts with.
type WorkflowInput struct {
	State state.State
	Todos []domain.TodoItem
}

// RegisterWorkflow registers the plan -> validate -> execute -> replan loop
// as a workflow on eng, so a run survives process restarts when the engine
// backend is durable (engine/temporal) and still works single-process on
// engine/inmem. taskQueue may be empty to use the engine's default queue.
func (c *Coordinator) RegisterWorkflow(ctx context.Context, eng engine.Engine, taskQueue string) error {
	return eng.RegisterWorkflow(ctx, engine.WorkflowDefinition{
		Name:      WorkflowName,
		TaskQueue: taskQueue,
		Handler: func(wctx engine.WorkflowContext, input any) (any, error) {
			in, ok := input.(WorkflowInput)
			if !ok {
				return nil, corerr.Newf(corerr.InvalidInput, "coordinator workflow expects WorkflowInput, got %T", input)
			}
			// Result carries its own Err so a planning failure round-trips to
			// the caller as data rather than failing the workflow itself;
			// only a malformed start fails the workflow.
			return c.Run(wctx.Context(), in.State, in.Todos), nil
		},
	})
}

// RunViaEngine starts the registered coordinator workflow with the given run
// id and blocks until it completes, returning the coordinator Result. The
// workflow must have been registered with RegisterWorkflow first.
func (c *Coordinator) RunViaEngine(ctx context.Context, eng engine.Engine, runID string, s state.State, todos []domain.TodoItem) (Result, error) {
	h, err := eng.StartWorkflow(ctx, engine.WorkflowStartRequest{
		ID:       runID,
		Workflow: WorkflowName,
		Input:    WorkflowInput{State: s, Todos: todos},
	})
	if err != nil {
		return Result{}, corerr.Wrap(corerr.InvalidInput, "start coordinator workflow", err)
	}
	var res Result
	if err := h.Wait(ctx, &res); err != nil {
		if ctx.Err() != nil {
			return Result{}, corerr.Wrap(corerr.Cancelled, "coordinator workflow cancelled", err)
		}
		return Result{}, corerr.Wrap(corerr.ActionFailed, "coordinator workflow failed", err)
	}
	return res, nil
}
