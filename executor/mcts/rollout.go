package mcts

import (
	"math"
	"math/rand"

	"github.com/brensch/othello0/game"
)

// RolloutTree is a UCT search that scores leaves with uniform random playouts.
type RolloutTree struct {
	tree
	rng *rand.Rand
}

// NewRolloutTree creates a search rooted at state. rng drives the playouts.
func NewRolloutTree(cfg Config, state *game.GameState, rng *rand.Rand) *RolloutTree {
	t := &RolloutTree{rng: rng}
	// Rollout nodes never fail to build.
	_ = t.init(cfg.withDefaults(), state, t)
	return t
}

func (t *RolloutTree) newNode(state *game.GameState) (Node, error) {
	return Node{Edges: edgesFor(state)}, nil
}

// selectEdge returns the first untried edge, otherwise the UCB1 maximum.
// Ties go to the first edge in move order.
func (t *RolloutTree) selectEdge(parent int32) int {
	p := t.arena.At(parent)
	logN := math.Log(float64(p.Visits))

	best := 0
	bestScore := math.Inf(-1)
	for i, e := range p.Edges {
		if e.Child == Unexpanded {
			return i
		}
		child := t.arena.At(e.Child)
		if child.Visits == 0 {
			return i
		}
		n := float64(child.Visits)
		score := float64(child.ValueSum)/n + float64(t.cfg.UCT)*math.Sqrt(logN/n)
		if score > bestScore {
			bestScore = score
			best = i
		}
	}
	return best
}

// leafValue plays random moves to the end of the game.
func (t *RolloutTree) leafValue(_ int32, state *game.GameState) float32 {
	mover := state.Current.Opponent()
	for {
		moves := state.ValidMoves()
		if len(moves) == 0 {
			break
		}
		state.MakeMove(moves[t.rng.Intn(len(moves))])
	}
	return state.Outcome(mover)
}

// BestMove picks the visited root edge with the highest mean value and
// reports the visit distribution over all root edges.
func (t *RolloutTree) BestMove() (game.Move, Policy, error) {
	root := t.arena.At(t.root)
	if len(root.Edges) == 0 {
		return game.Pass, nil, ErrNoMoves
	}

	best := 0
	bestValue := float32(math.Inf(-1))
	for i, e := range root.Edges {
		if e.Child == Unexpanded {
			continue
		}
		child := t.arena.At(e.Child)
		if child.Visits == 0 {
			continue
		}
		if q := child.Q(); q > bestValue {
			bestValue = q
			best = i
		}
	}
	return root.Edges[best].Move, t.Policy(), nil
}
