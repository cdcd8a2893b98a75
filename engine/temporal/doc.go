// Package temporal implements the htnplan workflow engine adapter backed by
// Temporal (https://temporal.io). It satisfies the generic engine.Engine
// interface, allowing the coordinator to drive durable plan/execute/replan
// workflows without importing the Temporal SDK directly.
//
// # Why Temporal?
//
// Temporal provides durable execution for long-running plan-execute-replan
// loops. A coordinator run can span many executor actions, each of which may
// fail and trigger replanning; Temporal ensures the workflow's state survives
// process restarts and crashes, replaying from event history to reach the
// same point deterministically.
//
// # Constructing an Engine
//
// Use New to create an engine with Temporal client and worker options:
//
//	eng, err := temporal.New(temporal.Options{
//	    ClientOptions: &client.Options{
//	        HostPort:  "temporal:7233",
//	        Namespace: "default",
//	    },
//	    WorkerOptions: temporal.WorkerOptions{
//	        TaskQueue: "htnplan.coordinator",
//	    },
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Close()
//
// # Worker vs Client Mode
//
//   - Worker mode: polls task queues and executes coordinator workflows locally.
//   - Client mode: submits workflows without local execution, for gateways or
//     CLI tools that start runs but don't process them.
//
// # Workflow Determinism
//
// Temporal workflows must be deterministic: given the same inputs and event
// history, they must produce the same outputs. The WorkflowContext exposes
// only deterministic operations: Now() returns workflow time, ExecuteActivity
// and ExecuteActivityAsync schedule activities, and SignalChannel returns
// deterministic signal receivers. The coordinator workflow registered by
// coordinator.RegisterWorkflow schedules no activities: it calls
// Coordinator.Run directly, so planning, solving, and action execution run in
// the workflow function itself.
//
// # OpenTelemetry Integration
//
// The engine installs OTEL interceptors on the Temporal client and worker,
// propagating trace context through workflow and activity boundaries.
package temporal
