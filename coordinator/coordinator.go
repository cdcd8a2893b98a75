// Package coordinator implements the plan -> temporally-validate ->
// execute -> replan cycle, built from dependency-injected strategies
// (planner, temporal validation, execution) plus the domain/state/logging
// context each strategy call shares.
package coordinator

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/htnkit/corestn/config"
	"github.com/htnkit/corestn/corerr"
	"github.com/htnkit/corestn/domain"
	"github.com/htnkit/corestn/executor"
	"github.com/htnkit/corestn/htn"
	"github.com/htnkit/corestn/state"
	"github.com/htnkit/corestn/stn"
	"github.com/htnkit/corestn/stn/solver"
	"github.com/htnkit/corestn/telemetry"
	"github.com/htnkit/corestn/timeline"
)

// PlannerStrategy runs one planning attempt. The default implementation
// calls htn.Plan directly; tests and alternative planning engines can
// substitute their own.
type PlannerStrategy interface {
	Plan(d *domain.Domain, s state.State, todos []domain.TodoItem, tl *timeline.Timeline, cfg *config.Config) (*htn.Tree, state.State, error)
}

// TemporalStrategy runs the STN solver hierarchy over a Timeline's
// accumulated network and reports the outcome.
type TemporalStrategy interface {
	Validate(ctx context.Context, tl *timeline.Timeline, cfg *config.Config) (*stn.STN, error)
}

// ExecutionStrategy runs the realized plan's flattened leaves.
type ExecutionStrategy interface {
	Execute(ctx context.Context, d *domain.Domain, s state.State, leaves []executor.Leaf, solvedTimes map[stn.Timepoint]int) executor.Result
}

// BlacklistStore persists (method, argument-fingerprint) bans shared across
// a worker pool, beyond the single-attempt in-memory map Domain keeps by
// default. RedisBlacklistStore is the distributed implementation.
type BlacklistStore interface {
	Add(ctx context.Context, methodName string, fingerprint uint64) error
	Contains(ctx context.Context, methodName string, fingerprint uint64) (bool, error)
}

type plannerFunc func(d *domain.Domain, s state.State, todos []domain.TodoItem, tl *timeline.Timeline, cfg *config.Config) (*htn.Tree, state.State, error)

func (f plannerFunc) Plan(d *domain.Domain, s state.State, todos []domain.TodoItem, tl *timeline.Timeline, cfg *config.Config) (*htn.Tree, state.State, error) {
	return f(d, s, todos, tl, cfg)
}

// DefaultPlannerStrategy wraps htn.Plan.
func DefaultPlannerStrategy() PlannerStrategy {
	return plannerFunc(htn.Plan)
}

// solverTemporalStrategy is the default TemporalStrategy, running the
// hierarchical STN solver (stn/solver.Solver) over the Timeline's network.
type solverTemporalStrategy struct {
	sv *solver.Solver
}

// NewSolverTemporalStrategy builds the default TemporalStrategy around sv.
func NewSolverTemporalStrategy(sv *solver.Solver) TemporalStrategy {
	return &solverTemporalStrategy{sv: sv}
}

func (t *solverTemporalStrategy) Validate(ctx context.Context, tl *timeline.Timeline, cfg *config.Config) (*stn.STN, error) {
	t.sv.ResetAttempt()
	return t.sv.Solve(ctx, tl.STN(), cfg.SolverDomainBound(), cfg.SolverTimeout)
}

type executorFunc func(ctx context.Context, d *domain.Domain, s state.State, leaves []executor.Leaf, solvedTimes map[stn.Timepoint]int) executor.Result

func (f executorFunc) Execute(ctx context.Context, d *domain.Domain, s state.State, leaves []executor.Leaf, solvedTimes map[stn.Timepoint]int) executor.Result {
	return f(ctx, d, s, leaves, solvedTimes)
}

// DefaultExecutionStrategy wraps executor.Run.
func DefaultExecutionStrategy() ExecutionStrategy {
	return executorFunc(executor.Run)
}

// NewExecutionStrategy wraps executor.RunWithOptions, carrying the
// action-timeout safety factor into every pass.
func NewExecutionStrategy(opts executor.Options) ExecutionStrategy {
	return executorFunc(func(ctx context.Context, d *domain.Domain, s state.State, leaves []executor.Leaf, solvedTimes map[stn.Timepoint]int) executor.Result {
		return executor.RunWithOptions(ctx, d, s, leaves, solvedTimes, opts)
	})
}

// Strategies bundles the dependency-injected capability set the Coordinator
// runs on.
type Strategies struct {
	Planner  PlannerStrategy
	Temporal TemporalStrategy
	Execute  ExecutionStrategy

	// Blacklist optionally shares bans across a worker pool
	// (RedisBlacklistStore): every ban the coordinator issues is written to
	// the store, and Run installs the store's Contains as the domain's
	// shared checker so bans recorded by peers steer this node's planning
	// too. Nil keeps bans in the domain's in-memory map only.
	Blacklist BlacklistStore
}

// Result is the Coordinator's overall outcome.
type Result struct {
	FinalState  state.State
	Tree        *htn.Tree
	ActivityLog []executor.ActivityLogEntry
	Attempts    int
	Err         error
}

// Coordinator orchestrates one full plan -> validate -> execute -> replan
// cycle against Domain d, bounded by cfg.MaxRetries.
type Coordinator struct {
	d   *domain.Domain
	cfg *config.Config
	st  Strategies
}

// New constructs a Coordinator. Any zero-valued Strategies field falls back
// to the htn/solver/executor defaults.
func New(d *domain.Domain, cfg *config.Config, st Strategies) *Coordinator {
	if st.Planner == nil {
		st.Planner = DefaultPlannerStrategy()
	}
	if st.Execute == nil {
		st.Execute = NewExecutionStrategy(executor.Options{SafetyFactor: cfg.ActionSafetyFactor})
	}
	return &Coordinator{d: d, cfg: cfg, st: st}
}

// Run executes the plan/validate/execute/replan cycle until success,
// cancellation, or cfg.MaxRetries is exhausted.
func (c *Coordinator) Run(ctx context.Context, initial state.State, todos []domain.TodoItem) Result {
	if c.st.Blacklist != nil {
		// Route the planner's blacklist misses through the shared store so
		// a ban mirrored by any pool node is honored here. A read failure
		// only loses the shared view; the local map still applies.
		c.d.SetSharedBlacklist(func(methodName string, fingerprint uint64) bool {
			banned, err := c.st.Blacklist.Contains(ctx, methodName, fingerprint)
			if err != nil {
				c.cfg.Logger.Warn(ctx, "shared blacklist read failed", "method", methodName, "err", err)
				return false
			}
			return banned
		})
		defer c.d.SetSharedBlacklist(nil)
	}

	s := initial
	attempt := 0

	for {
		select {
		case <-ctx.Done():
			return Result{FinalState: s, Attempts: attempt, Err: corerr.New(corerr.Cancelled, "coordinator cancelled")}
		default:
		}

		attempt++
		if attempt > c.cfg.MaxRetries {
			return Result{FinalState: s, Attempts: attempt - 1, Err: corerr.New(corerr.NoPlan, "coordinator exhausted max_retries without an executable plan")}
		}

		tl := timeline.New()
		tree, planState, err := c.st.Planner.Plan(c.d, s, todos, tl, c.cfg)
		if err != nil {
			c.cfg.Logger.Warn(ctx, "planning attempt failed", "attempt", attempt, "err", err)
			continue
		}

		var solvedTimes map[stn.Timepoint]int
		if c.st.Temporal != nil {
			solved, err := c.st.Temporal.Validate(ctx, tl, c.cfg)
			if err != nil {
				kind, _ := corerr.KindOf(err)
				if kind == corerr.STNInconsistent {
					c.blacklistOffendingRelation(ctx, tree, solved)
					c.cfg.Logger.Warn(ctx, "temporal validation found an inconsistent STN, blacklisting and replanning", "attempt", attempt)
					continue
				}
				// stn_unknown is a soft failure: proceed to execution with
				// no solved_times rather than refusing to run.
				c.cfg.Logger.Info(ctx, "temporal validation undecided, proceeding without solved times", "attempt", attempt, "err", err)
			} else if solved.Metadata != nil {
				if st, ok := solved.Metadata["solved_times"].(map[string]int); ok {
					solvedTimes = make(map[stn.Timepoint]int, len(st))
					for k, v := range st {
						solvedTimes[stn.Timepoint(k)] = v
					}
				}
			}
		}

		leaves := executor.FlattenPlan(tree)
		res := c.st.Execute.Execute(ctx, c.d, planState, leaves, solvedTimes)
		c.recordActionDurations(res.Log)
		if !res.Partial {
			return Result{FinalState: res.FinalState, Tree: tree, ActivityLog: res.Log, Attempts: attempt}
		}

		// Partial execution failure: blacklist the failed
		// command, synthesize the remaining goals from the unexecuted
		// suffix, and replan from the post-partial-execution state.
		c.blacklistFailedLeaf(ctx, leaves, res.FailingNode)
		s = res.FinalState
		todos = remainingTodos(tree, leaves, res.FailingNode)
		c.cfg.Logger.Warn(ctx, "execution failed partway, replanning remaining suffix", "attempt", attempt, "err", res.Err)
	}
}

// recordActionDurations emits one executor.action.duration timer per leaf
// the execution strategy actually ran, tagged by activity name and outcome.
// Called after every Execute call, whether the pass completed or stopped
// partway, so a failing leaf's duration is still recorded.
func (c *Coordinator) recordActionDurations(log []executor.ActivityLogEntry) {
	if c.cfg == nil || c.cfg.Metrics == nil {
		return
	}
	for _, entry := range log {
		telemetry.RecordActionDuration(c.cfg.Metrics, entry.Activity, entry.Status, entry.EndedAt.Sub(entry.StartedAt))
	}
}

// blacklistFailedLeaf bans the failed leaf's action/command name so the
// next planning attempt avoids reintroducing it verbatim.
func (c *Coordinator) blacklistFailedLeaf(ctx context.Context, leaves []executor.Leaf, failingNode int) {
	for _, l := range leaves {
		if l.NodeID == failingNode {
			c.ban(ctx, l.Name, l.Args)
			return
		}
	}
}

// ban records a blacklist entry in the domain and, when a shared store is
// configured, mirrors it there for the rest of the worker pool. A store
// write failure is logged and otherwise ignored: the local ban already
// guarantees this attempt won't repeat the alternative.
func (c *Coordinator) ban(ctx context.Context, name string, args []domain.Value) {
	c.d.Blacklist(name, args)
	if c.st.Blacklist == nil {
		return
	}
	if err := c.st.Blacklist.Add(ctx, name, domain.Fingerprint(args)); err != nil {
		c.cfg.Logger.Warn(ctx, "shared blacklist write failed", "method", name, "err", err)
	}
}

// remainingTodos synthesizes the todo list the Coordinator replans with
// after a partial execution failure: the failing leaf re-expressed through
// its nearest enclosing task or goal (so the planner can pick an alternative
// method, its own realization being blacklisted), followed by every
// unexecuted leaf after it as durative-action todos that re-realize their
// intervals and temporal relations.
func remainingTodos(tree *htn.Tree, leaves []executor.Leaf, failingNode int) []domain.TodoItem {
	var out []domain.TodoItem
	past := false
	for _, l := range leaves {
		if l.NodeID == failingNode {
			past = true
			if todo, ok := enclosingTodo(tree, l); ok {
				out = append(out, todo)
			} else {
				// No task/goal ancestor to retry through; re-emit the leaf
				// itself. Its ban makes the next attempt fail fast instead
				// of replaying a command that just failed.
				out = append(out, domain.DurativeAction(l.Name, l.Args...))
			}
			continue
		}
		if past {
			out = append(out, domain.DurativeAction(l.Name, l.Args...))
		}
	}
	return out
}

// enclosingTodo rebuilds the todo item for the failing leaf's nearest task or
// goal ancestor, the choice point whose remaining methods the replan can
// still try.
func enclosingTodo(tree *htn.Tree, l executor.Leaf) (domain.TodoItem, bool) {
	if l.NodeID < 0 || l.NodeID >= len(tree.Nodes) {
		return domain.TodoItem{}, false
	}
	for cur := tree.Node(l.NodeID).Parent; cur >= 0; cur = tree.Node(cur).Parent {
		n := tree.Node(cur)
		switch n.Kind {
		case htn.KindTask:
			return domain.Task(n.Label, n.Args...), true
		case htn.KindGoal:
			if len(n.Args) == 2 {
				subject, _ := n.Args[0].(string)
				predicate := strings.TrimSuffix(n.Label, "/"+subject)
				return domain.Goal(predicate, subject, n.Args[1]), true
			}
		}
	}
	return domain.TodoItem{}, false
}

// blacklistOffendingRelation implements "blacklisting the last
// temporal-relation-introducing method": it walks from the durative-action
// node whose synthesized interval is named in the inconsistent STN's
// witness cycle up to its nearest enclosing method node, banning that
// method for the remainder of the attempt. Timeline/Planner encode the
// interval id as "<action-name>#<node-id>" (htn.refineDurativeAction), so
// the node id is recovered by splitting on the last '#'.
func (c *Coordinator) blacklistOffendingRelation(ctx context.Context, tree *htn.Tree, solved *stn.STN) {
	if solved == nil {
		return
	}
	closed := solved.Close()
	tp, ok := closed.OffendingCycle()
	if !ok {
		return
	}
	nodeID, ok := nodeIDFromTimepoint(tp)
	if !ok || nodeID < 0 || nodeID >= len(tree.Nodes) {
		return
	}
	methodNodeID := tree.NearestMethodAncestor(nodeID)
	if methodNodeID < 0 {
		return
	}
	// The method node's label is the method name; the (task or goal) node it
	// refines carries the arguments the planner fingerprinted when checking
	// the blacklist, so the pair banned here is exactly the one the next
	// attempt's IsBlacklisted lookup will see.
	method := tree.Node(methodNodeID)
	var args []domain.Value
	if method.Parent >= 0 {
		args = tree.Node(method.Parent).Args
	}
	c.ban(ctx, method.Label, args)
	c.cfg.Logger.Info(ctx, "blacklisted temporal-relation-introducing method", "method", method.Label)
}

// nodeIDFromTimepoint recovers the tree node id embedded in a synthesized
// interval timepoint name ("move#3.start" -> 3).
func nodeIDFromTimepoint(tp stn.Timepoint) (int, bool) {
	name := string(tp)
	name = strings.TrimSuffix(name, ".start")
	name = strings.TrimSuffix(name, ".end")
	hash := strings.LastIndex(name, "#")
	if hash < 0 {
		return 0, false
	}
	id, err := strconv.Atoi(name[hash+1:])
	if err != nil {
		return 0, false
	}
	return id, true
}

// CancellableContext returns a context bound to timeout, used by callers
// that want the Coordinator's own cancellation deadline distinct from the
// per-stage solver timeout.
func CancellableContext(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, timeout)
}
