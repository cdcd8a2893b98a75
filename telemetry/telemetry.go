// Package telemetry integrates coordinator, planner, and executor events
// with Clue tracing and metrics. Beyond the Logger/Metrics/Tracer
// abstractions, it fixes the metric names and tag vocabulary for the three
// domain signals this module's ambient stack promises: STN solve stages
// (RecordSolveStage), planner backtrack counts (RecordBacktrack), and
// executor action durations (RecordActionDuration).
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Logger captures structured logging used throughout the runtime. Implementations
// typically delegate to Clue but the interface is intentionally small so tests can
// provide lightweight stubs.
type Logger interface {
	Debug(ctx context.Context, msg string, keyvals ...any)
	Info(ctx context.Context, msg string, keyvals ...any)
	Warn(ctx context.Context, msg string, keyvals ...any)
	Error(ctx context.Context, msg string, keyvals ...any)
}

// Metrics exposes counter and histogram helpers for runtime instrumentation.
type Metrics interface {
	IncCounter(name string, value float64, tags ...string)
	RecordTimer(name string, duration time.Duration, tags ...string)
	RecordGauge(name string, value float64, tags ...string)
}

// Tracer abstracts span creation so runtime code can remain agnostic of the
// underlying OpenTelemetry provider.
type Tracer interface {
	Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, Span)
	Span(ctx context.Context) Span
}

// Span represents an in-flight tracing span.
type Span interface {
	End(opts ...trace.SpanEndOption)
	AddEvent(name string, attrs ...any)
	SetStatus(code codes.Code, description string)
	RecordError(err error, opts ...trace.EventOption)
}

// SolveStage names one stage of the STN solver hierarchy (external CSP
// solver, matrix Floyd-Warshall fallback, conservative checker) for
// instrumentation purposes.
type SolveStage string

const (
	SolveStageExternal     SolveStage = "external"
	SolveStageMatrix       SolveStage = "matrix"
	SolveStageConservative SolveStage = "conservative"
)

// RecordSolveStage times one attempt at a stage of the STN solver hierarchy.
// stn/solver.Solver calls this once per stage it actually tries, so a
// dashboard built on the "stage" tag shows how often planning falls through
// to the matrix or conservative stages rather than resolving externally.
func RecordSolveStage(m Metrics, stage SolveStage, d time.Duration) {
	m.RecordTimer("stn.solve.stage", d, "stage", string(stage))
}

// RecordBacktrack counts one HTN refinement failure that caused the planner
// to blacklist a method and try its next alternative. kind names the
// todo item that failed to refine (goal, task, multigoal); a planner that
// backtracks heavily on one kind against a given domain usually means its
// methods are under-constrained or tried in a bad order.
func RecordBacktrack(m Metrics, kind string) {
	m.IncCounter("htn.backtrack", 1, "kind", kind)
}

// RecordActionDuration times one executed leaf, tagged with its
// activity name and outcome so per-activity latency and failure rate can be
// tracked separately from the overall execution pass.
func RecordActionDuration(m Metrics, activity, status string, d time.Duration) {
	m.RecordTimer("executor.action.duration", d, "activity", activity, "status", status)
}
