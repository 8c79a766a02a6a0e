package mcts

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/brensch/othello0/game"
)

// PUCTTree is an AlphaZero style search guided by an Evaluator.
type PUCTTree struct {
	tree
	client Evaluator
	rng    *rand.Rand
}

// NewPUCTTree creates a search rooted at state. The root is evaluated
// immediately, so an evaluator failure is returned here.
func NewPUCTTree(cfg Config, state *game.GameState, client Evaluator, rng *rand.Rand) (*PUCTTree, error) {
	t := &PUCTTree{client: client, rng: rng}
	if err := t.init(cfg.withDefaults(), state, t); err != nil {
		return nil, err
	}
	return t, nil
}

// newNode evaluates state once. Terminal positions get the exact result.
func (t *PUCTTree) newNode(state *game.GameState) (Node, error) {
	edges := edgesFor(state)
	if len(edges) == 0 {
		return Node{Eval: state.Outcome(state.Current)}, nil
	}

	policy, value, err := t.client.Evaluate(state)
	if err != nil {
		return Node{}, err
	}
	if len(policy) < game.PolicySize {
		return Node{}, fmt.Errorf("policy has %d entries, want %d", len(policy), game.PolicySize)
	}

	// Mass on illegal moves is dropped before renormalizing.
	sum := float32(0)
	for _, e := range edges {
		sum += policy[e.Move.Index()]
	}
	for i := range edges {
		if sum > 0 {
			edges[i].Prior = policy[edges[i].Move.Index()] / sum
		} else {
			edges[i].Prior = 1 / float32(len(edges))
		}
	}

	return Node{Edges: edges, Eval: value}, nil
}

// selectEdge maximizes the PUCT score
// U(s,a) = Q(s,a) + C_puct * P(s,a) * sqrt(N) / (1 + n)
func (t *PUCTTree) selectEdge(parent int32) int {
	p := t.arena.At(parent)
	sqrtN := float32(math.Sqrt(float64(p.Visits)))

	best := 0
	bestScore := float32(math.Inf(-1))
	for i, e := range p.Edges {
		q := float32(0)
		visits := 0
		if e.Child != Unexpanded {
			child := t.arena.At(e.Child)
			visits = child.Visits
			q = child.Q()
		}
		u := q + t.cfg.Cpuct*e.Prior*sqrtN/(1+float32(visits))
		if u > bestScore {
			bestScore = u
			best = i
		}
	}
	return best
}

func (t *PUCTTree) leafValue(leaf int32, _ *game.GameState) float32 {
	return -t.arena.At(leaf).Eval
}

// BestMove chooses the move to play and reports the root visit distribution.
// Early in the game the move is sampled proportionally to visits; after
// GreedyAfter plies the most visited edge is played.
func (t *PUCTTree) BestMove() (game.Move, Policy, error) {
	root := t.arena.At(t.root)
	if len(root.Edges) == 0 {
		return game.Pass, nil, ErrNoMoves
	}

	policy := t.Policy()
	var idx int
	if t.state.Ply > t.cfg.GreedyAfter {
		idx = argmaxVisits(policy)
	} else {
		idx = sampleVisits(t.rng, policy)
	}
	return policy[idx].Move, policy, nil
}

// Priors returns the prior of every root edge, in edge order.
func (t *PUCTTree) Priors() []float32 {
	edges := t.arena.At(t.root).Edges
	out := make([]float32, len(edges))
	for i, e := range edges {
		out[i] = e.Prior
	}
	return out
}
