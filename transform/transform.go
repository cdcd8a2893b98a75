// Package transform implements the plan transformer: a pure function
// converting an external planning request's (activities, entities,
// constraints, goals) into the (Domain, State, goals) triple the HTN
// planner consumes. It is the CLI/RPC-facing contract boundary; the
// request shape accepts both ISO-8601 strings and numeric seconds for
// durations, normalizing to the canonical time.Duration the rest of the
// core works in.
//
// Convert never produces partial state: any validation failure returns a
// structured error naming the offending field path and nothing else.
package transform

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/htnkit/corestn/corerr"
	"github.com/htnkit/corestn/domain"
	"github.com/htnkit/corestn/interval"
	"github.com/htnkit/corestn/state"
	"github.com/htnkit/corestn/temporal"
)

// ActivityRequest describes one activity the request wants planned. If
// Children is non-empty, the activity is registered as a task method
// (a hierarchical decomposition) that decomposes, in order, into the
// named child activities; otherwise it is registered as a primitive action
// and becomes a direct {durative-action, name, args} todo.
type ActivityRequest struct {
	Name string `json:"name"`

	// Duration accepts an ISO-8601 duration string ("PT30M") or a numeric
	// count of seconds (float64/int); Convert normalizes both to a
	// time.Duration.
	Duration any `json:"duration,omitempty"`

	RequiresEntities []domain.EntityRequirement `json:"requires_entities,omitempty"`
	Args             []domain.Value             `json:"args,omitempty"`

	// Children, when non-empty, names the child activities this activity
	// decomposes into (in order), turning it into a task-method
	// registration instead of a primitive action.
	Children []string `json:"children,omitempty"`
}

// EntityRequest describes one entity the Plan Transformer writes into the
// initial state as (type, id, <type>), (capabilities, id, [...]), and
// (status, id, "available") triples.
type EntityRequest struct {
	ID           string   `json:"id"`
	Type         string   `json:"type"`
	Capabilities []string `json:"capabilities,omitempty"`
}

// ConstraintRequest becomes relation metadata attached to the named
// activity's action registration ("Constraints become relation
// metadata").
type ConstraintRequest struct {
	Relation       temporal.Relation `json:"relation"`
	Activity       string            `json:"activity"`
	With           string            `json:"with,omitempty"`
	Lower          float64           `json:"lower,omitempty"`
	Upper          float64           `json:"upper,omitempty"`
	PreferAForward bool              `json:"prefer_a_forward,omitempty"`
}

// GoalRequest is a single unigoal to append to the planner's initial todo
// list.
type GoalRequest struct {
	Predicate string       `json:"predicate"`
	Subject   string       `json:"subject"`
	Value     domain.Value `json:"value,omitempty"`
}

// Request is the CLI/RPC-facing input to Convert.
type Request struct {
	Activities  []ActivityRequest   `json:"activities,omitempty"`
	Entities    []EntityRequest     `json:"entities,omitempty"`
	Constraints []ConstraintRequest `json:"constraints,omitempty"`
	Goals       []GoalRequest       `json:"goals,omitempty"`
}

// Result is what a successful Convert produces: a populated Domain, the
// initial State with every entity triple written, and the todo list ready
// to hand to htn.Plan.
type Result struct {
	Domain *domain.Domain
	State  state.State
	Todos  []domain.TodoItem
}

// Convert runs the pure conversion. It never mutates req and never
// returns a partially built Result alongside an error.
func Convert(req Request) (Result, error) {
	d := domain.New()
	s := state.New()

	for i, e := range req.Entities {
		if e.ID == "" {
			return Result{}, corerr.New(corerr.InvalidInput, "entity missing id").
				With("field", fmt.Sprintf("entities[%d].id", i))
		}
		if e.Type == "" {
			return Result{}, corerr.New(corerr.InvalidInput, "entity missing type").
				With("field", fmt.Sprintf("entities[%d].type", i))
		}
		s = s.SetFact("type", e.ID, e.Type)
		s = s.SetFact("capabilities", e.ID, append([]string(nil), e.Capabilities...))
		s = s.SetFact("status", e.ID, "available")
	}

	relationsByActivity := map[string][]domain.RelationMetadata{}
	for i, c := range req.Constraints {
		if c.Activity == "" {
			return Result{}, corerr.New(corerr.InvalidInput, "constraint missing activity").
				With("field", fmt.Sprintf("constraints[%d].activity", i))
		}
		if !temporal.Recognized(string(c.Relation)) {
			return Result{}, corerr.Newf(corerr.InvalidInput, "unrecognized temporal relation %q", c.Relation).
				With("field", fmt.Sprintf("constraints[%d].relation", i))
		}
		relationsByActivity[c.Activity] = append(relationsByActivity[c.Activity], domain.RelationMetadata{
			Relation:       c.Relation,
			With:           c.With,
			Lower:          c.Lower,
			Upper:          c.Upper,
			PreferAForward: c.PreferAForward,
		})
	}

	todos := make([]domain.TodoItem, 0, len(req.Activities))
	for i, a := range req.Activities {
		if a.Name == "" {
			return Result{}, corerr.New(corerr.InvalidInput, "activity missing name").
				With("field", fmt.Sprintf("activities[%d].name", i))
		}
		dur, err := normalizeDuration(a.Duration)
		if err != nil {
			return Result{}, corerr.Wrap(corerr.InvalidInput, "invalid activity duration", err).
				With("field", fmt.Sprintf("activities[%d].duration", i))
		}

		if len(a.Children) > 0 {
			children := append([]string(nil), a.Children...)
			d.AddTaskMethod(a.Name+".decompose", a.Name, func(s state.State, args []domain.Value) ([]domain.TodoItem, bool) {
				out := make([]domain.TodoItem, len(children))
				for j, c := range children {
					out[j] = domain.DurativeAction(c, args...)
				}
				return out, true
			})
			todos = append(todos, domain.Task(a.Name, a.Args...))
			continue
		}

		meta := domain.ActionMetadata{
			Duration:          dur,
			RequiresEntities:  a.RequiresEntities,
			TemporalRelations: relationsByActivity[a.Name],
		}
		if err := d.AddAction(a.Name, genericEffect(a.Name), meta); err != nil {
			return Result{}, corerr.Wrap(corerr.InvalidInput, "registering activity action", err).
				With("field", fmt.Sprintf("activities[%d]", i))
		}
		todos = append(todos, domain.DurativeAction(a.Name, a.Args...))
	}

	for i, g := range req.Goals {
		if g.Predicate == "" || g.Subject == "" {
			return Result{}, corerr.New(corerr.InvalidInput, "goal missing predicate or subject").
				With("field", fmt.Sprintf("goals[%d]", i))
		}
		todos = append(todos, domain.Goal(g.Predicate, g.Subject, g.Value))
	}

	return Result{Domain: d, State: s, Todos: todos}, nil
}

// DecodeAndConvert is the CLI/RPC entry point: it validates raw against the
// wire-format request schema before unmarshaling, so a malformed front-end
// payload is rejected as invalid_input before Convert ever sees it.
func DecodeAndConvert(raw []byte) (Result, error) {
	if err := ValidateRequestJSON(raw); err != nil {
		return Result{}, err
	}
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return Result{}, corerr.Wrap(corerr.InvalidInput, "decode request", err)
	}
	return Convert(req)
}

// genericEffect builds the default action function for a transform-produced
// activity: since the request carries no executable body, the activity's
// only planning-visible effect is marking itself done, via (status, name,
// "completed"). Domains needing richer effects register their own actions
// directly through package domain rather than via the transform request.
func genericEffect(name string) domain.ActionFunc {
	return func(s state.State, args []domain.Value) (state.State, bool) {
		return s.SetFact("status", name, "completed"), true
	}
}

// normalizeDuration accepts nil (zero duration), an ISO-8601 string, or a
// numeric numbers-of-seconds value, normalizing every shape to a
// time.Duration.
func normalizeDuration(v any) (time.Duration, error) {
	switch d := v.(type) {
	case nil:
		return 0, nil
	case string:
		if d == "" {
			return 0, nil
		}
		return interval.ParseISO8601Duration(d)
	case float64:
		return time.Duration(d * float64(time.Second)), nil
	case int:
		return time.Duration(d) * time.Second, nil
	case int64:
		return time.Duration(d) * time.Second, nil
	case time.Duration:
		return d, nil
	default:
		return 0, fmt.Errorf("unsupported duration type %T", v)
	}
}
