package htn

import (
	"fmt"
	"time"

	"github.com/htnkit/corestn/config"
	"github.com/htnkit/corestn/corerr"
	"github.com/htnkit/corestn/domain"
	"github.com/htnkit/corestn/interval"
	"github.com/htnkit/corestn/state"
	"github.com/htnkit/corestn/telemetry"
	"github.com/htnkit/corestn/temporal"
	"github.com/htnkit/corestn/timeline"
)

// goalFrame records an ancestor unigoal for the cycle guard: a goal node
// whose ancestor carries the same (predicate, subject) at the same state
// fingerprint is a cycle, failed immediately rather than re-descending.
type goalFrame struct {
	predicate, subject string
	fingerprint        uint64
}

// planner carries the mutable context of a single planning attempt. It is
// not safe to reuse or share across concurrent attempts.
type planner struct {
	d    *domain.Domain
	tl   *timeline.Timeline
	cfg  *config.Config
	tree *Tree

	// baseTime anchors every durative-action's synthetic Interval; only
	// relative durations matter to the STN during planning, absolute
	// scheduling is resolved later by the solver hierarchy.
	baseTime time.Time

	// lastIntervalForAction resolves a RelationMetadata.With activity name
	// to the most recently realized interval id for that action, per
	// planning attempt.
	lastIntervalForAction map[string]string

	goalsIntroduced []domain.TodoItem
}

// Plan runs the refine-and-search algorithm starting from todos
// against state s. tl accumulates durative-action intervals and temporal
// relations; callers share one Timeline across the whole attempt so the
// Coordinator can run temporal validation against the fully accumulated
// STN once planning finishes. Plan itself performs no STN consistency
// check — that is the Coordinator's temporally_validate step.
func Plan(d *domain.Domain, s state.State, todos []domain.TodoItem, tl *timeline.Timeline, cfg *config.Config) (*Tree, state.State, error) {
	p := &planner{
		d:                     d,
		tl:                    tl,
		cfg:                   cfg,
		tree:                  newTree(),
		baseTime:              time.Unix(0, 0).UTC(),
		lastIntervalForAction: map[string]string{},
	}

	root := p.tree.addNode(-1, KindRoot, "root", s)
	p.tree.Root = root

	final, ok := p.refineScope(root, s, todos, nil)
	if !ok {
		return p.tree, final, corerr.New(corerr.NoPlan, "planner exhausted all methods at the root")
	}

	// Verification runs when either the domain or the per-request options
	// ask for it.
	if d.VerifyGoals || (cfg != nil && cfg.VerifyGoals) {
		if err := p.verifyGoals(final); err != nil {
			return p.tree, final, err
		}
	}

	return p.tree, final, nil
}

// refineScope processes todos sequentially against the nodes rooted at
// parentID, threading state left to right. A failure anywhere in the list
// propagates false without trying later items, which is what lets the
// caller (the method-selection site that produced this todos list) catch
// the failure and try its own next alternative.
func (p *planner) refineScope(parentID int, s state.State, todos []domain.TodoItem, ancestors []goalFrame) (state.State, bool) {
	cur := s
	for _, item := range todos {
		var ok bool
		cur, ok = p.refineOne(parentID, cur, item, ancestors)
		if !ok {
			return cur, false
		}
	}
	return cur, true
}

func (p *planner) refineOne(parentID int, s state.State, item domain.TodoItem, ancestors []goalFrame) (state.State, bool) {
	switch item.Kind {
	case domain.TodoBacktrack:
		return s, false

	case domain.TodoAction:
		return p.refineAction(parentID, s, item)

	case domain.TodoDurativeAction:
		return p.refineDurativeAction(parentID, s, item)

	case domain.TodoGoal:
		return p.refineGoal(parentID, s, item, ancestors)

	case domain.TodoMultigoal:
		return p.refineMultigoal(parentID, s, item, ancestors)

	case domain.TodoTask:
		return p.refineTask(parentID, s, item, ancestors)

	default:
		return s, false
	}
}

func (p *planner) refineAction(parentID int, s state.State, item domain.TodoItem) (state.State, bool) {
	// The coordinator bans a failed leaf's (name, args) pair after a partial
	// execution; honoring it here is what steers the replan toward an
	// alternative method instead of reproducing the same plan.
	if p.d.IsBlacklisted(item.Name, item.Args) {
		return s, false
	}
	fn, _, ok := p.d.Action(item.Name)
	if !ok {
		return s, false
	}
	ns, applied := fn(s, item.Args)
	if !applied {
		return s, false
	}
	id := p.tree.addNode(parentID, KindAction, item.Name, s)
	p.tree.setArgs(id, item.Args)
	p.tree.setStateAfter(id, ns)
	return ns, true
}

func (p *planner) refineDurativeAction(parentID int, s state.State, item domain.TodoItem) (state.State, bool) {
	if p.d.IsBlacklisted(item.Name, item.Args) {
		return s, false
	}
	fn, meta, ok := p.d.Action(item.Name)
	if !ok {
		return s, false
	}
	ns, applied := fn(s, item.Args)
	if !applied {
		return s, false
	}
	id := p.tree.addNode(parentID, KindAction, item.Name, s)
	p.tree.setArgs(id, item.Args)
	p.tree.setStateAfter(id, ns)

	intervalID := fmt.Sprintf("%s#%d", item.Name, id)
	iv, err := interval.New(p.baseTime, p.baseTime.Add(meta.Duration))
	if err != nil {
		return s, false
	}
	if err := p.tl.AddInterval(intervalID, iv); err != nil {
		return s, false
	}
	p.lastIntervalForAction[item.Name] = intervalID

	for _, rel := range meta.TemporalRelations {
		withID, ok := p.lastIntervalForAction[rel.With]
		if !ok {
			// The referenced activity has not been realized yet in this
			// attempt; nothing to relate to, so the relation is skipped
			// rather than failing the whole leaf.
			continue
		}
		spec := temporal.Spec{
			Relation:       rel.Relation,
			A:              intervalID,
			B:              withID,
			Lower:          rel.Lower,
			Upper:          rel.Upper,
			PreferAForward: rel.PreferAForward,
		}
		if err := p.tl.AddRelation(spec); err != nil {
			return s, false
		}
	}

	return ns, true
}

func (p *planner) refineGoal(parentID int, s state.State, item domain.TodoItem, ancestors []goalFrame) (state.State, bool) {
	if s.Matches(item.Predicate, item.Subject, item.Value) {
		p.tree.addNode(parentID, KindGoal, item.Predicate+"/"+item.Subject, s)
		return s, true
	}

	fp := s.Fingerprint()
	for _, a := range ancestors {
		if a.predicate == item.Predicate && a.subject == item.Subject && a.fingerprint == fp {
			return s, false
		}
	}
	nextAncestors := append(append([]goalFrame{}, ancestors...), goalFrame{
		predicate: item.Predicate, subject: item.Subject, fingerprint: fp,
	})

	goalNodeID := p.tree.addNode(parentID, KindGoal, item.Predicate+"/"+item.Subject, s)
	p.tree.setArgs(goalNodeID, []domain.Value{item.Subject, item.Value})
	p.goalsIntroduced = append(p.goalsIntroduced, item)

	methods := p.d.GetMethodsFor(item.Predicate)
	for _, m := range methods {
		args := []domain.Value{item.Subject, item.Value}
		if p.d.IsBlacklisted(m.Name, args) {
			continue
		}
		subtodos, ok := m.UnigoalFn(s, item.Subject, item.Value)
		if !ok {
			p.d.Blacklist(m.Name, args)
			continue
		}
		methodNodeID := p.tree.addNode(goalNodeID, KindMethod, m.Name, s)
		p.tree.setMethodChosen(goalNodeID, m.Name)

		ns, ok := p.refineScope(methodNodeID, s, subtodos, nextAncestors)
		if ok {
			p.tree.setStateAfter(methodNodeID, ns)
			p.tree.setStateAfter(goalNodeID, ns)
			return ns, true
		}
		p.d.Blacklist(m.Name, args)
		p.recordBacktrack("goal")
	}
	return s, false
}

func (p *planner) refineMultigoal(parentID int, s state.State, item domain.TodoItem, ancestors []goalFrame) (state.State, bool) {
	multigoalNodeID := p.tree.addNode(parentID, KindMultigoal, "multigoal", s)

	for _, m := range p.d.MultigoalMethods() {
		if p.d.IsBlacklisted(m.Name, toValueSlice(item.Goals)) {
			continue
		}
		subtodos, ok := m.MultigoalFn(s, item.Goals)
		if !ok {
			p.d.Blacklist(m.Name, toValueSlice(item.Goals))
			continue
		}
		methodNodeID := p.tree.addNode(multigoalNodeID, KindMethod, m.Name, s)
		ns, ok := p.refineScope(methodNodeID, s, subtodos, ancestors)
		if ok {
			p.tree.setStateAfter(methodNodeID, ns)
			p.tree.setStateAfter(multigoalNodeID, ns)
			return ns, true
		}
		p.d.Blacklist(m.Name, toValueSlice(item.Goals))
		p.recordBacktrack("multigoal")
	}

	// Default split_multigoal policy: serialize to individual goals in
	// list order.
	methodNodeID := p.tree.addNode(multigoalNodeID, KindMethod, "split_multigoal", s)
	ns, ok := p.refineScope(methodNodeID, s, item.Goals, ancestors)
	if ok {
		p.tree.setStateAfter(methodNodeID, ns)
		p.tree.setStateAfter(multigoalNodeID, ns)
		return ns, true
	}
	return s, false
}

func (p *planner) refineTask(parentID int, s state.State, item domain.TodoItem, ancestors []goalFrame) (state.State, bool) {
	taskNodeID := p.tree.addNode(parentID, KindTask, item.Name, s)
	p.tree.setArgs(taskNodeID, item.Args)

	methods := p.d.AllMethodsForTask(item.Name)
	for _, m := range methods {
		if p.d.IsBlacklisted(m.Name, item.Args) {
			continue
		}
		subtodos, ok := m.TaskFn(s, item.Args)
		if !ok {
			p.d.Blacklist(m.Name, item.Args)
			continue
		}
		subtodos = p.applyMultitodoOptimizers(s, subtodos)

		methodNodeID := p.tree.addNode(taskNodeID, KindMethod, m.Name, s)
		p.tree.setMethodChosen(taskNodeID, m.Name)

		ns, ok := p.refineScope(methodNodeID, s, subtodos, ancestors)
		if ok {
			p.tree.setStateAfter(methodNodeID, ns)
			p.tree.setStateAfter(taskNodeID, ns)
			return ns, true
		}
		p.d.Blacklist(m.Name, item.Args)
		p.recordBacktrack("task")
	}
	return s, false
}

func (p *planner) applyMultitodoOptimizers(s state.State, todos []domain.TodoItem) []domain.TodoItem {
	for _, m := range p.d.MultitodoMethods() {
		reordered, ok := m.MultitodoFn(s, todos)
		if ok {
			todos = reordered
		}
	}
	return todos
}

// recordBacktrack counts one method rejection against the configured
// Metrics recorder. kind names the todo item whose refinement failed (goal,
// task, multigoal); cfg or cfg.Metrics may be nil outside of Plan's own
// tests, in which case recording is skipped.
func (p *planner) recordBacktrack(kind string) {
	if p.cfg == nil || p.cfg.Metrics == nil {
		return
	}
	telemetry.RecordBacktrack(p.cfg.Metrics, kind)
}

func toValueSlice(goals []domain.TodoItem) []domain.Value {
	out := make([]domain.Value, len(goals))
	for i, g := range goals {
		out[i] = g
	}
	return out
}

// verifyGoals re-evaluates every goal the planner refined (top-level goals
// and goals introduced by a method alike) against the final state,
// returning a NoPlan error naming the first unsatisfied goal.
func (p *planner) verifyGoals(final state.State) error {
	for _, g := range p.goalsIntroduced {
		if !final.Matches(g.Predicate, g.Subject, g.Value) {
			return corerr.Newf(corerr.NoPlan, "verify-goals: %s/%s does not hold in the final state", g.Predicate, g.Subject).
				With("predicate", g.Predicate).With("subject", g.Subject)
		}
	}
	return nil
}
