package mcts

import (
	"errors"

	"github.com/brensch/othello0/game"
)

// Unexpanded marks an edge whose child node has not been created yet.
const Unexpanded int32 = -1

// ErrIllegalMove is returned when a move is applied that the root does not offer.
var ErrIllegalMove = errors.New("move is not an edge of the search root")

// ErrNoMoves is returned when a move is requested from a terminal root.
var ErrNoMoves = errors.New("search root has no moves")

// Edge is one legal move out of a node.
type Edge struct {
	Move  game.Move
	Child int32
	Prior float32
}

// Node is a position in the search tree.
//
// ValueSum is accumulated from the point of view of the player who made the
// move leading into the node, so a parent always maximizes its children's Q.
type Node struct {
	Edges    []Edge
	Visits   int
	ValueSum float32
	// Eval is the leaf evaluation for the side to move at this node
	// (PUCT only).
	Eval float32
}

// Q is the mean value of the node, 0 when unvisited.
func (n *Node) Q() float32 {
	if n.Visits == 0 {
		return 0
	}
	return n.ValueSum / float32(n.Visits)
}

// Arena owns every node of a tree. Nodes are addressed by index and are
// never removed, so indices stay valid for the life of the tree.
//
// Pointers returned by At are invalidated by the next Append.
type Arena struct {
	nodes []Node
}

func newArena(capacity int) *Arena {
	return &Arena{nodes: make([]Node, 0, capacity)}
}

// Append adds n and returns its index.
func (a *Arena) Append(n Node) int32 {
	a.nodes = append(a.nodes, n)
	return int32(len(a.nodes) - 1)
}

func (a *Arena) At(i int32) *Node { return &a.nodes[i] }

func (a *Arena) Len() int { return len(a.nodes) }

// backpropagate walks path from leaf to root. value is from the point of
// view of the player who moved into the leaf and flips sign every ply.
func (a *Arena) backpropagate(path []int32, value float32) {
	for i := len(path) - 1; i >= 0; i-- {
		n := &a.nodes[path[i]]
		n.Visits++
		n.ValueSum += value
		value = -value
	}
}

// edgesFor builds unexpanded edges for every legal move of state.
func edgesFor(state *game.GameState) []Edge {
	moves := state.ValidMoves()
	if len(moves) == 0 {
		return nil
	}
	edges := make([]Edge, len(moves))
	for i, m := range moves {
		edges[i] = Edge{Move: m, Child: Unexpanded}
	}
	return edges
}

// Config holds MCTS configuration
type Config struct {
	// Iterations is the number of simulations per move.
	Iterations int
	// Cpuct is the PUCT exploration constant.
	Cpuct float32
	// UCT is the UCB1 exploration constant of the rollout search.
	UCT float32
	// GreedyAfter is the ply after which the PUCT search stops sampling
	// moves and plays the most visited edge. 0 means DefaultGreedyAfter;
	// AlwaysGreedy plays the most visited edge from the first ply.
	GreedyAfter int
	// InitialCapacity preallocates the node arena.
	InitialCapacity int
}

const (
	DefaultIterations  = 800
	DefaultCpuct       = 0.3
	DefaultUCT         = 1.41
	DefaultGreedyAfter = 10
	AlwaysGreedy       = -1
	defaultCapacity    = 1 << 14
)

func (c Config) withDefaults() Config {
	if c.Iterations <= 0 {
		c.Iterations = DefaultIterations
	}
	if c.Cpuct <= 0 {
		c.Cpuct = DefaultCpuct
	}
	if c.UCT <= 0 {
		c.UCT = DefaultUCT
	}
	if c.GreedyAfter == 0 {
		c.GreedyAfter = DefaultGreedyAfter
	} else if c.GreedyAfter < 0 {
		c.GreedyAfter = AlwaysGreedy
	}
	if c.InitialCapacity <= 0 {
		c.InitialCapacity = defaultCapacity
	}
	return c
}

// Evaluator defines the interface for inference.
//
// policy has game.PolicySize entries (64 cells row-major, then Pass) and must
// be a probability distribution; value is in [-1, 1] for the side to move.
type Evaluator interface {
	Evaluate(state *game.GameState) (policy []float32, value float32, err error)
}
