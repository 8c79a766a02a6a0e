package mcts

import (
	"context"
	"fmt"

	"github.com/brensch/othello0/game"
)

// strategy is what distinguishes the rollout search from the PUCT search.
type strategy interface {
	// newNode builds the node for state, which is the position after the
	// edge leading into it has been played.
	newNode(state *game.GameState) (Node, error)
	// selectEdge picks the edge to descend from a non-terminal parent.
	selectEdge(parent int32) int
	// leafValue scores the last node of a path, from the point of view of
	// the player who moved into it. state may be consumed.
	leafValue(leaf int32, state *game.GameState) float32
}

// tree is the arena-backed search tree shared by both searches. It keeps its
// own copy of the root position and follows the game through Advance.
type tree struct {
	cfg   Config
	arena *Arena
	root  int32
	state *game.GameState
	strat strategy
	path  []int32
}

func (t *tree) init(cfg Config, state *game.GameState, strat strategy) error {
	t.cfg = cfg
	t.arena = newArena(cfg.InitialCapacity)
	t.state = state.Clone()
	t.strat = strat
	t.path = make([]int32, 0, game.Cells+8)
	n, err := strat.newNode(t.state)
	if err != nil {
		return fmt.Errorf("create root: %w", err)
	}
	t.root = t.arena.Append(n)
	return nil
}

// Arena exposes the node storage, mainly for inspection in tests and tools.
func (t *tree) Arena() *Arena { return t.arena }

// Root returns the index of the current root node.
func (t *tree) Root() int32 { return t.root }

// State returns the position at the root. It must not be modified.
func (t *tree) State() *game.GameState { return t.state }

// Search runs the configured number of simulations from the root.
func (t *tree) Search(ctx context.Context) error {
	return t.SearchN(ctx, t.cfg.Iterations)
}

// SearchN runs n simulations from the root.
func (t *tree) SearchN(ctx context.Context, n int) error {
	if len(t.arena.At(t.root).Edges) == 0 {
		return ErrNoMoves
	}
	for i := 0; i < n; i++ {
		if ctx != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}
		if err := t.simulate(); err != nil {
			return err
		}
	}
	return nil
}

// simulate runs one selection, expansion, evaluation and backpropagation pass.
func (t *tree) simulate() error {
	state := t.state.Clone()
	path := append(t.path[:0], t.root)
	node := t.root

	for {
		edges := t.arena.At(node).Edges
		if len(edges) == 0 {
			break
		}
		i := t.strat.selectEdge(node)
		e := edges[i]
		state.MakeMove(e.Move)

		if e.Child == Unexpanded {
			n, err := t.strat.newNode(state)
			if err != nil {
				t.path = path
				return fmt.Errorf("expand %s: %w", e.Move, err)
			}
			child := t.arena.Append(n)
			t.arena.At(node).Edges[i].Child = child
			path = append(path, child)
			break
		}

		node = e.Child
		path = append(path, node)
	}

	t.path = path
	value := t.strat.leafValue(path[len(path)-1], state)
	t.arena.backpropagate(path, value)
	return nil
}

// Advance re-roots the tree at the child reached by m, creating it if it was
// never explored. The rest of the old tree stays allocated but unreachable.
func (t *tree) Advance(m game.Move) error {
	edges := t.arena.At(t.root).Edges
	idx := -1
	for i := range edges {
		if edges[i].Move == m {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("apply %s at ply %d: %w", m, t.state.Ply, ErrIllegalMove)
	}

	t.state.MakeMove(m)
	child := edges[idx].Child
	if child == Unexpanded {
		n, err := t.strat.newNode(t.state)
		if err != nil {
			return fmt.Errorf("expand root %s: %w", m, err)
		}
		child = t.arena.Append(n)
		t.arena.At(t.root).Edges[idx].Child = child
	}
	t.root = child
	return nil
}

// Policy returns the visit distribution over the root edges.
func (t *tree) Policy() Policy {
	return rootPolicy(t.arena, t.root)
}
