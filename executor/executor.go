// Package executor implements the IPyHOP-style linear walker: a fail-fast
// pass over a realized plan's flattened action sequence, validating entity
// bindings and preferring a registered command over the action simulation.
package executor

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"

	"github.com/htnkit/corestn/corerr"
	"github.com/htnkit/corestn/domain"
	"github.com/htnkit/corestn/htn"
	"github.com/htnkit/corestn/state"
	"github.com/htnkit/corestn/stn"
)

// ActivityLogEntry records one executed leaf.
type ActivityLogEntry struct {
	ID             string
	Activity       string
	StartedAt      time.Time
	EndedAt        time.Time
	Status         string
	EntityBindings map[string]string
	ProducedFacts  []state.Triple
}

// Result is the outcome of a full or partial execution pass.
type Result struct {
	FinalState  state.State
	Log         []ActivityLogEntry
	Partial     bool
	FailingNode int
	FailureKind corerr.Kind
	Err         error
}

// Leaf is one flattened action/durative-action step extracted from a
// solution tree, leftmost to rightmost.
type Leaf struct {
	NodeID int
	Name   string
	Args   []domain.Value
}

// FlattenPlan walks tree depth-first, left to right, collecting every
// action-kind leaf in execution order with the arguments it was realized
// with during planning.
func FlattenPlan(tree *htn.Tree) []Leaf {
	var out []Leaf
	var walk func(id int)
	walk = func(id int) {
		n := tree.Node(id)
		if n.Kind == htn.KindAction {
			out = append(out, Leaf{NodeID: id, Name: n.Label, Args: n.Args})
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(tree.Root)
	return out
}

// Options tunes a single execution pass.
type Options struct {
	// SafetyFactor multiplies a leaf's declared duration to form its
	// execution deadline: an action/command call that takes longer fails
	// with the timeout kind. Zero disables the
	// check, as does a leaf with no declared duration.
	SafetyFactor float64
}

// Run executes leaves with default options. See RunWithOptions.
func Run(ctx context.Context, d *domain.Domain, s state.State, leaves []Leaf, solvedTimes map[stn.Timepoint]int) Result {
	return RunWithOptions(ctx, d, s, leaves, solvedTimes, Options{})
}

// RunWithOptions executes leaves in order against initial state s, preferring
// a registered command for each leaf's name over the action simulation,
// validating requires_entities against entities recorded in
// state, and stopping at the first failure (no retries, no local recovery).
// solvedTimes, if non-nil, supplies executed-at timestamps from the STN
// solve; otherwise wall-clock time is used.
func RunWithOptions(ctx context.Context, d *domain.Domain, s state.State, leaves []Leaf, solvedTimes map[stn.Timepoint]int, opts Options) Result {
	cur := s
	var log []ActivityLogEntry

	for _, leaf := range leaves {
		select {
		case <-ctx.Done():
			return Result{FinalState: cur, Log: log, Partial: true, FailingNode: leaf.NodeID, FailureKind: corerr.Cancelled, Err: corerr.New(corerr.Cancelled, "execution cancelled")}
		default:
		}

		meta, _ := d.GetActionMetadata(leaf.Name)

		bindings, err := bindEntities(cur, meta.RequiresEntities)
		if err != nil {
			return Result{FinalState: cur, Log: log, Partial: true, FailingNode: leaf.NodeID, FailureKind: corerr.EntityUnavailable, Err: err}
		}

		start := wallOrSolved(leaf, "start", solvedTimes)
		invokedAt := time.Now()

		var ns state.State
		var ok bool
		if fn, _, has := d.Command(leaf.Name); has {
			ns, ok = fn(cur, leaf.Args)
		} else if fn, _, has := d.Action(leaf.Name); has {
			ns, ok = fn(cur, leaf.Args)
		} else {
			err := corerr.Newf(corerr.ActionFailed, "no action or command registered for %q", leaf.Name)
			return Result{FinalState: cur, Log: log, Partial: true, FailingNode: leaf.NodeID, FailureKind: corerr.ActionFailed, Err: err}
		}

		elapsed := time.Since(invokedAt)
		end := wallOrSolved(leaf, "end", solvedTimes)

		if !ok {
			err := corerr.Newf(corerr.ActionFailed, "%q failed during execution", leaf.Name)
			return Result{FinalState: cur, Log: log, Partial: true, FailingNode: leaf.NodeID, FailureKind: corerr.ActionFailed, Err: err}
		}
		if opts.SafetyFactor > 0 && meta.Duration > 0 {
			deadline := time.Duration(float64(meta.Duration) * opts.SafetyFactor)
			if elapsed > deadline {
				err := corerr.Newf(corerr.Timeout, "%q ran %v, past its %v deadline", leaf.Name, elapsed, deadline)
				return Result{FinalState: cur, Log: log, Partial: true, FailingNode: leaf.NodeID, FailureKind: corerr.Timeout, Err: err}
			}
		}

		log = append(log, ActivityLogEntry{
			ID:             uuid.NewString(),
			Activity:       leaf.Name,
			StartedAt:      start,
			EndedAt:        end,
			Status:         "success",
			EntityBindings: bindings,
			ProducedFacts:  diffTriples(cur, ns),
		})
		cur = ns
	}

	return Result{FinalState: cur, Log: log, Partial: false}
}

// wallOrSolved resolves a leaf's start/end timestamp from solved_times, which
// keys timepoints by the "<name>#<node-id>.<endpoint>" interval-naming
// contract the planner establishes when it realizes a durative action.
// Leaves absent from the solve (plain actions, no solve ran) fall back to
// wall clock.
func wallOrSolved(leaf Leaf, which string, solvedTimes map[stn.Timepoint]int) time.Time {
	if solvedTimes == nil {
		return time.Now().UTC()
	}
	tp := stn.Timepoint(fmt.Sprintf("%s#%d.%s", leaf.Name, leaf.NodeID, which))
	if v, ok := solvedTimes[tp]; ok {
		return time.Unix(0, 0).UTC().Add(time.Duration(v) * time.Microsecond)
	}
	return time.Now().UTC()
}

// bindEntities resolves each requirement to a concrete entity recorded in
// state via the (type, capabilities, status) triples the Plan Transformer
// writes: an entity id whose type matches and whose capabilities
// superset the requirement, and whose status, when one is recorded, is
// "available" (an entity with no status triple also qualifies).
func bindEntities(s state.State, reqs []domain.EntityRequirement) (map[string]string, error) {
	bindings := map[string]string{}
	for i, req := range reqs {
		candidates := s.GetSubjectsWithFact("type", req.Type)
		var chosen string
		for _, id := range candidates {
			capsVal, ok := s.GetFact("capabilities", id)
			if !ok {
				continue
			}
			if !hasAllCapabilities(capsVal, req.Capabilities) {
				continue
			}
			if status, ok := s.GetFact("status", id); ok && status != "available" {
				continue
			}
			chosen = id
			break
		}
		if chosen == "" {
			return nil, corerr.Newf(corerr.EntityUnavailable, "no available entity of type %q with capabilities %v", req.Type, req.Capabilities).
				With("requirement_index", i)
		}
		bindings[req.Type] = chosen
	}
	return bindings, nil
}

func hasAllCapabilities(stored any, required []string) bool {
	have := map[string]bool{}
	switch v := stored.(type) {
	case []string:
		for _, c := range v {
			have[c] = true
		}
	case []any:
		for _, c := range v {
			if s, ok := c.(string); ok {
				have[s] = true
			}
		}
	default:
		return len(required) == 0
	}
	for _, c := range required {
		if !have[c] {
			return false
		}
	}
	return true
}

// diffTriples returns the triples present in after but absent or changed
// from before, used to populate ActivityLogEntry.ProducedFacts. Values may
// be slices or maps, so comparison uses reflect.DeepEqual rather than a map
// keyed on the triple itself.
func diffTriples(before, after state.State) []state.Triple {
	var out []state.Triple
	for _, t := range after.ToTriples() {
		prior, ok := before.GetFact(t.Predicate, t.Subject)
		if !ok || !reflect.DeepEqual(prior, t.Value) {
			out = append(out, t)
		}
	}
	return out
}
