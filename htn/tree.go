// Package htn implements the solution-tree builder and the refine-and-search
// planning algorithm: task/unigoal/multigoal/multitodo/action/
// durative-action refinement, method blacklisting, cycle guard, and the
// optional verify-goals pass.
package htn

import (
	"github.com/htnkit/corestn/domain"
	"github.com/htnkit/corestn/state"
)

// NodeKind tags what a solution-tree node represents.
type NodeKind string

const (
	KindRoot      NodeKind = "root"
	KindTask      NodeKind = "task"
	KindMethod    NodeKind = "method"
	KindAction    NodeKind = "action"
	KindGoal      NodeKind = "goal"
	KindMultigoal NodeKind = "multigoal"
)

// Node is one entry in the solution-tree arena. The planner walks top-down
// and carries refinement context on its own call stack; Parent exists so
// post-hoc consumers (the Coordinator's temporal-validation blacklisting,
// trace rendering) can walk upward without re-deriving the tree shape.
type Node struct {
	ID       int
	Label    string
	Kind     NodeKind
	Children []int
	Parent   int // -1 for the root

	// Args carries the invocation arguments of action, task, and goal nodes
	// (for goals, [subject, value]). The Executor flattens action leaves from
	// them, and the Coordinator re-derives the (method, args) blacklist pair
	// of a method node from its parent's Args.
	Args []domain.Value

	StateBefore state.State
	StateAfter  *state.State

	MethodChosen      string
	BlacklistSnapshot []string
}

// Tree is the arena of solution-tree nodes produced by a single planning
// attempt, indexed by integer id.
type Tree struct {
	Nodes []Node
	Root  int
}

func newTree() *Tree {
	return &Tree{}
}

func (t *Tree) addNode(parent int, kind NodeKind, label string, before state.State) int {
	id := len(t.Nodes)
	t.Nodes = append(t.Nodes, Node{
		ID:          id,
		Label:       label,
		Kind:        kind,
		Parent:      parent,
		StateBefore: before,
	})
	if parent >= 0 {
		t.Nodes[parent].Children = append(t.Nodes[parent].Children, id)
	}
	return id
}

func (t *Tree) setArgs(id int, args []domain.Value) {
	t.Nodes[id].Args = args
}

// NearestMethodAncestor walks up from id and returns the id of the nearest
// KindMethod ancestor, or -1 if none exists (e.g. id is the root or a direct
// child of it).
func (t *Tree) NearestMethodAncestor(id int) int {
	for cur := t.Nodes[id].Parent; cur >= 0; cur = t.Nodes[cur].Parent {
		if t.Nodes[cur].Kind == KindMethod {
			return cur
		}
	}
	return -1
}

func (t *Tree) setStateAfter(id int, s state.State) {
	t.Nodes[id].StateAfter = &s
}

func (t *Tree) setMethodChosen(id int, name string) {
	t.Nodes[id].MethodChosen = name
}

func (t *Tree) setBlacklistSnapshot(id int, snapshot []string) {
	t.Nodes[id].BlacklistSnapshot = snapshot
}

// Node returns the node with the given id.
func (t *Tree) Node(id int) Node {
	return t.Nodes[id]
}

// Leaves returns every node with no children, in id order (left-to-right,
// matching the planner's leftmost-leaf selection order).
func (t *Tree) Leaves() []Node {
	var out []Node
	for _, n := range t.Nodes {
		if len(n.Children) == 0 {
			out = append(out, n)
		}
	}
	return out
}
