// Package domain is the registry of actions, commands, and methods the HTN
// planner refines against: actions/commands carry duration, entity, and
// temporal-relation metadata; methods decompose tasks, unigoals, multigoals,
// and multitodo lists. The blacklist of (method, argument-fingerprint) pairs
// scopes a single planning attempt, never persisted beyond it.
package domain

import (
	"time"

	"github.com/htnkit/corestn/corerr"
	"github.com/htnkit/corestn/state"
	"github.com/htnkit/corestn/temporal"
)

// Value is a dynamically typed argument or result value: atom (string),
// number, string, list ([]Value), or nested map (map[string]Value).
type Value = any

// EntityRequirement names the entity type and capabilities an action needs
// bound at execution.
type EntityRequirement struct {
	Type         string
	Capabilities []string
}

// RelationMetadata is one temporal-relation declaration attached to an
// action/command's registration. With names the other activity this
// action's relation is relative to; the planner resolves both to concrete
// Timeline interval ids when the durative-action leaf is realized.
type RelationMetadata struct {
	Relation       temporal.Relation
	With           string
	Lower, Upper   float64
	PreferAForward bool
}

// ActionMetadata describes an action or command's planning-relevant shape.
type ActionMetadata struct {
	Duration          time.Duration
	RequiresEntities  []EntityRequirement
	TemporalRelations []RelationMetadata

	// Preconditions/Effects are optional: when nil, effects are determined
	// by actually running the action function.
	Preconditions *state.Condition
	Effects       *state.Condition
}

// ActionFunc simulates an action's effects during planning: (state, args) ->
// new state, ok. ok=false signals failure.
type ActionFunc func(s state.State, args []Value) (state.State, bool)

// CommandFunc is the execution-time counterpart of ActionFunc; it may fail
// for runtime reasons the action simulation cannot detect.
type CommandFunc func(s state.State, args []Value) (state.State, bool)

// TaskMethodFunc decomposes a task call into a todo-list.
type TaskMethodFunc func(s state.State, args []Value) ([]TodoItem, bool)

// UnigoalMethodFunc decomposes a (predicate, subject, value) goal.
type UnigoalMethodFunc func(s state.State, subject string, value Value) ([]TodoItem, bool)

// MultigoalMethodFunc decomposes a conjunction of goals as a unit (an
// alternative to the default split_multigoal policy).
type MultigoalMethodFunc func(s state.State, goals []TodoItem) ([]TodoItem, bool)

// MultitodoMethodFunc reorders/optimizes a pending todo list.
type MultitodoMethodFunc func(s state.State, todos []TodoItem) ([]TodoItem, bool)

type actionEntry struct {
	fn   ActionFunc
	meta ActionMetadata
}

type commandEntry struct {
	fn   CommandFunc
	meta ActionMetadata
}

// MethodEntry is one registered method, returned by the query operations in
// registration order.
type MethodEntry struct {
	Name string

	TaskFn      TaskMethodFunc
	UnigoalFn   UnigoalMethodFunc
	MultigoalFn MultigoalMethodFunc
	MultitodoFn MultitodoMethodFunc
}

type blacklistKey struct {
	method      string
	fingerprint uint64
}

// Domain is the registry consumed by the planner.
type Domain struct {
	actions  map[string]actionEntry
	commands map[string]commandEntry

	taskMethods      map[string][]MethodEntry
	unigoalMethods   map[string][]MethodEntry
	multigoalMethods []MethodEntry
	multitodoMethods []MethodEntry

	VerifyGoals bool

	blacklist map[blacklistKey]bool

	// sharedBlacklist, when set, extends IsBlacklisted beyond the local
	// per-attempt map: bans recorded by other nodes of a worker pool are
	// visible through it. See SetSharedBlacklist.
	sharedBlacklist func(methodName string, fingerprint uint64) bool
}

// New constructs an empty Domain.
func New() *Domain {
	return &Domain{
		actions:        map[string]actionEntry{},
		commands:       map[string]commandEntry{},
		taskMethods:    map[string][]MethodEntry{},
		unigoalMethods: map[string][]MethodEntry{},
		blacklist:      map[blacklistKey]bool{},
	}
}

func validateMetadata(meta ActionMetadata) error {
	for _, rel := range meta.TemporalRelations {
		if !temporal.Recognized(string(rel.Relation)) {
			return corerr.Newf(corerr.InvalidInput, "unrecognized temporal relation tag %q in registration metadata", rel.Relation)
		}
	}
	for _, req := range meta.RequiresEntities {
		if req.Type == "" {
			return corerr.New(corerr.InvalidInput, "entity requirement missing type")
		}
	}
	return nil
}

// AddAction registers name with fn and meta, validating temporal_relations
// tags and entity-requirement shape.
func (d *Domain) AddAction(name string, fn ActionFunc, meta ActionMetadata) error {
	if err := validateMetadata(meta); err != nil {
		return err
	}
	d.actions[name] = actionEntry{fn: fn, meta: meta}
	return nil
}

// AddCommand registers name's execution-time counterpart in a separate
// registry from actions.
func (d *Domain) AddCommand(name string, fn CommandFunc, meta ActionMetadata) error {
	if err := validateMetadata(meta); err != nil {
		return err
	}
	d.commands[name] = commandEntry{fn: fn, meta: meta}
	return nil
}

// MethodTarget selects what a unified AddMethod registration binds to: a
// task name, a goal predicate, the multigoal registry, or the multitodo
// registry. Build one with ForTask/ForPredicate/ForMultigoal/ForMultitodo.
type MethodTarget struct {
	task      string
	predicate string
	multigoal bool
	multitodo bool
}

// ForTask targets methods decomposing task calls named name.
func ForTask(name string) MethodTarget { return MethodTarget{task: name} }

// ForPredicate targets unigoal methods for predicate.
func ForPredicate(predicate string) MethodTarget { return MethodTarget{predicate: predicate} }

// ForMultigoal targets the custom multigoal registry.
func ForMultigoal() MethodTarget { return MethodTarget{multigoal: true} }

// ForMultitodo targets the todo-list optimizer registry.
func ForMultitodo() MethodTarget { return MethodTarget{multitodo: true} }

// AddMethod is the unified registration entry point: fn must match the
// method kind the target selects (TaskMethodFunc, UnigoalMethodFunc,
// MultigoalMethodFunc, or MultitodoMethodFunc). The kind-specific Add*
// helpers remain available for callers that prefer static typing.
func (d *Domain) AddMethod(methodName string, target MethodTarget, fn any) error {
	switch {
	case target.task != "":
		tfn, ok := fn.(TaskMethodFunc)
		if !ok {
			return corerr.Newf(corerr.InvalidInput, "method %q targets task %q but fn is %T, not TaskMethodFunc", methodName, target.task, fn)
		}
		d.AddTaskMethod(methodName, target.task, tfn)
	case target.predicate != "":
		ufn, ok := fn.(UnigoalMethodFunc)
		if !ok {
			return corerr.Newf(corerr.InvalidInput, "method %q targets predicate %q but fn is %T, not UnigoalMethodFunc", methodName, target.predicate, fn)
		}
		d.AddUnigoalMethod(methodName, target.predicate, ufn)
	case target.multigoal:
		mfn, ok := fn.(MultigoalMethodFunc)
		if !ok {
			return corerr.Newf(corerr.InvalidInput, "method %q targets multigoal but fn is %T, not MultigoalMethodFunc", methodName, fn)
		}
		d.AddMultigoalMethod(methodName, mfn)
	case target.multitodo:
		ofn, ok := fn.(MultitodoMethodFunc)
		if !ok {
			return corerr.Newf(corerr.InvalidInput, "method %q targets multitodo but fn is %T, not MultitodoMethodFunc", methodName, fn)
		}
		d.AddMultitodoMethod(methodName, ofn)
	default:
		return corerr.Newf(corerr.InvalidInput, "method %q has an empty target", methodName)
	}
	return nil
}

// AddTaskMethod appends a method decomposing task calls named taskName, in
// registration order.
func (d *Domain) AddTaskMethod(methodName, taskName string, fn TaskMethodFunc) {
	d.taskMethods[taskName] = append(d.taskMethods[taskName], MethodEntry{Name: methodName, TaskFn: fn})
}

// AddUnigoalMethod appends a method decomposing goals over predicate.
func (d *Domain) AddUnigoalMethod(methodName, predicate string, fn UnigoalMethodFunc) {
	d.unigoalMethods[predicate] = append(d.unigoalMethods[predicate], MethodEntry{Name: methodName, UnigoalFn: fn})
}

// AddMultigoalMethod appends a custom multigoal decomposition method, tried
// before the default split_multigoal policy.
func (d *Domain) AddMultigoalMethod(methodName string, fn MultigoalMethodFunc) {
	d.multigoalMethods = append(d.multigoalMethods, MethodEntry{Name: methodName, MultigoalFn: fn})
}

// AddMultitodoMethod appends a todo-list optimizer.
func (d *Domain) AddMultitodoMethod(methodName string, fn MultitodoMethodFunc) {
	d.multitodoMethods = append(d.multitodoMethods, MethodEntry{Name: methodName, MultitodoFn: fn})
}

// GetActionMetadata returns the registered metadata for an action or command
// (actions take precedence; they share the metadata shape).
func (d *Domain) GetActionMetadata(name string) (ActionMetadata, bool) {
	if e, ok := d.actions[name]; ok {
		return e.meta, true
	}
	if e, ok := d.commands[name]; ok {
		return e.meta, true
	}
	return ActionMetadata{}, false
}

// Action returns the registered action function.
func (d *Domain) Action(name string) (ActionFunc, ActionMetadata, bool) {
	e, ok := d.actions[name]
	return e.fn, e.meta, ok
}

// Command returns the registered command function.
func (d *Domain) Command(name string) (CommandFunc, ActionMetadata, bool) {
	e, ok := d.commands[name]
	return e.fn, e.meta, ok
}

// HasCommand reports whether name has a registered command (commands take
// precedence over the action simulation at execution time).
func (d *Domain) HasCommand(name string) bool {
	_, ok := d.commands[name]
	return ok
}

// GetMethodsFor returns the unigoal methods registered for predicate, in
// registration order, skipping blacklisted (method, args) pairs is the
// planner's job, not the registry's.
func (d *Domain) GetMethodsFor(predicate string) []MethodEntry {
	return d.unigoalMethods[predicate]
}

// AllMethodsForTask returns the task methods registered for name, in
// registration order.
func (d *Domain) AllMethodsForTask(name string) []MethodEntry {
	return d.taskMethods[name]
}

// MultigoalMethods returns the registered custom multigoal methods.
func (d *Domain) MultigoalMethods() []MethodEntry {
	return d.multigoalMethods
}

// MultitodoMethods returns the registered todo-list optimizers.
func (d *Domain) MultitodoMethods() []MethodEntry {
	return d.multitodoMethods
}

// Blacklist bans (methodName, args) for the current planning attempt.
func (d *Domain) Blacklist(methodName string, args []Value) {
	d.blacklist[blacklistKey{method: methodName, fingerprint: Fingerprint(args)}] = true
}

// IsBlacklisted reports whether (methodName, args) was banned this attempt,
// locally or (when a shared checker is installed) by any node of the worker
// pool.
func (d *Domain) IsBlacklisted(methodName string, args []Value) bool {
	fp := Fingerprint(args)
	if d.blacklist[blacklistKey{method: methodName, fingerprint: fp}] {
		return true
	}
	return d.sharedBlacklist != nil && d.sharedBlacklist(methodName, fp)
}

// SetSharedBlacklist installs fn as the shared-ban checker IsBlacklisted
// consults after the local map misses. The Coordinator wires this to its
// BlacklistStore so bans mirrored by peers steer this node's planning too;
// nil removes the checker.
func (d *Domain) SetSharedBlacklist(fn func(methodName string, fingerprint uint64) bool) {
	d.sharedBlacklist = fn
}

// ResetBlacklist clears every local ban, starting a fresh planning attempt.
// The shared checker, whose entries expire by TTL instead, is untouched.
// Permanent blacklists are never stored in the domain.
func (d *Domain) ResetBlacklist() {
	d.blacklist = map[blacklistKey]bool{}
}
