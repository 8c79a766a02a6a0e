// Package agent wraps the move-selection strategies behind one interface.
//
// The set is closed: Random, Rollout, PUCT and Human. Search agents keep
// their tree across the whole game and must be told about every move played,
// their own included.
package agent

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"strings"

	"github.com/brensch/othello0/executor/mcts"
	"github.com/brensch/othello0/game"
)

// Agent selects moves for one seat of a game.
type Agent interface {
	// SelectMove returns the move to play in state and, for search agents,
	// the root visit distribution.
	SelectMove(ctx context.Context, state *game.GameState) (game.Move, mcts.Policy, error)
	// ApplyMove informs the agent that m was played.
	ApplyMove(m game.Move) error
}

type Kind int

const (
	Random Kind = iota
	Rollout
	PUCT
	Human
)

var kindNames = []string{"random", "rollout", "puct", "human"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseKind maps a flag value onto a Kind.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range kindNames {
		if s == name {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown agent %q (want one of %s)", s, strings.Join(kindNames, ", "))
}

// Config describes an agent to build for one game.
type Config struct {
	Kind Kind
	MCTS mcts.Config
	// Seed seeds the agent's random source.
	Seed int64
	// Evaluator is required for PUCT.
	Evaluator mcts.Evaluator
	// In and Out are the console of a Human agent.
	In  io.Reader
	Out io.Writer
}

// New builds a fresh agent whose search, if any, is rooted at state.
func New(cfg Config, state *game.GameState) (Agent, error) {
	rng := rand.New(rand.NewSource(cfg.Seed))
	switch cfg.Kind {
	case Random:
		return &RandomAgent{rng: rng}, nil
	case Rollout:
		return &RolloutAgent{tree: mcts.NewRolloutTree(cfg.MCTS, state, rng)}, nil
	case PUCT:
		if cfg.Evaluator == nil {
			return nil, fmt.Errorf("puct agent needs an evaluator")
		}
		t, err := mcts.NewPUCTTree(cfg.MCTS, state, cfg.Evaluator, rng)
		if err != nil {
			return nil, err
		}
		return &PUCTAgent{tree: t}, nil
	case Human:
		if cfg.In == nil || cfg.Out == nil {
			return nil, fmt.Errorf("human agent needs an input and an output")
		}
		return NewHumanAgent(cfg.In, cfg.Out), nil
	default:
		return nil, fmt.Errorf("unknown agent kind %s", cfg.Kind)
	}
}

// RandomAgent plays a uniformly random legal move and reports no policy.
type RandomAgent struct {
	rng *rand.Rand
}

func (a *RandomAgent) SelectMove(_ context.Context, state *game.GameState) (game.Move, mcts.Policy, error) {
	moves := state.ValidMoves()
	if len(moves) == 0 {
		return game.Pass, nil, mcts.ErrNoMoves
	}
	return moves[a.rng.Intn(len(moves))], nil, nil
}

func (a *RandomAgent) ApplyMove(game.Move) error { return nil }

// RolloutAgent plays the rollout search's best move.
type RolloutAgent struct {
	tree *mcts.RolloutTree
}

func (a *RolloutAgent) SelectMove(ctx context.Context, _ *game.GameState) (game.Move, mcts.Policy, error) {
	if err := a.tree.Search(ctx); err != nil {
		return game.Pass, nil, err
	}
	return a.tree.BestMove()
}

func (a *RolloutAgent) ApplyMove(m game.Move) error { return a.tree.Advance(m) }

// PUCTAgent plays the evaluator-guided search's move.
type PUCTAgent struct {
	tree *mcts.PUCTTree
}

func (a *PUCTAgent) SelectMove(ctx context.Context, _ *game.GameState) (game.Move, mcts.Policy, error) {
	if err := a.tree.Search(ctx); err != nil {
		return game.Pass, nil, err
	}
	return a.tree.BestMove()
}

func (a *PUCTAgent) ApplyMove(m game.Move) error { return a.tree.Advance(m) }
