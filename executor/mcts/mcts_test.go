package mcts

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/brensch/othello0/game"
	"github.com/stretchr/testify/require"
)

// MockEvaluator mocks the Evaluator interface
type MockEvaluator struct {
	Policy []float32
	Value  float32
	Err    error
	Calls  int
}

func (m *MockEvaluator) Evaluate(state *game.GameState) ([]float32, float32, error) {
	m.Calls++
	if m.Err != nil {
		return nil, 0, m.Err
	}
	if m.Policy != nil {
		return m.Policy, m.Value, nil
	}
	policy := make([]float32, game.PolicySize)
	for i := range policy {
		policy[i] = 1 / float32(game.PolicySize)
	}
	return policy, m.Value, nil
}

func childVisits(t *testing.T, a *Arena, root int32) int {
	t.Helper()
	total := 0
	for _, e := range a.At(root).Edges {
		if e.Child != Unexpanded {
			total += a.At(e.Child).Visits
		}
	}
	return total
}

func TestRolloutSearchVisitCounts(t *testing.T) {
	tr := NewRolloutTree(Config{Iterations: 200}, game.NewGameState(), rand.New(rand.NewSource(1)))
	require.NoError(t, tr.Search(context.Background()))

	a := tr.Arena()
	require.Equal(t, 200, a.At(tr.Root()).Visits)
	require.Equal(t, 200, childVisits(t, a, tr.Root()))
	require.Equal(t, 201, a.Len(), "every simulation expands exactly one node")
	require.Equal(t, 200, tr.Policy().Total())
}

func TestRolloutTriesEveryEdgeFirst(t *testing.T) {
	tr := NewRolloutTree(Config{}, game.NewGameState(), rand.New(rand.NewSource(2)))
	require.NoError(t, tr.SearchN(context.Background(), 4))

	a := tr.Arena()
	for i, e := range a.At(tr.Root()).Edges {
		require.NotEqual(t, Unexpanded, e.Child, "edge %d", i)
		require.Equal(t, 1, a.At(e.Child).Visits, "edge %d", i)
	}
}

func TestRolloutIsDeterministicForSeed(t *testing.T) {
	run := func() (game.Move, Policy) {
		tr := NewRolloutTree(Config{Iterations: 300}, game.NewGameState(), rand.New(rand.NewSource(42)))
		require.NoError(t, tr.Search(context.Background()))
		m, p, err := tr.BestMove()
		require.NoError(t, err)
		return m, p
	}
	m1, p1 := run()
	m2, p2 := run()
	require.Equal(t, m1, m2)
	require.Equal(t, p1, p2)
	require.True(t, game.NewGameState().IsLegal(m1))
}

func TestRolloutBestMoveUsesMeanValue(t *testing.T) {
	tr := NewRolloutTree(Config{}, game.NewGameState(), rand.New(rand.NewSource(3)))
	a := tr.Arena()
	edges := a.At(tr.Root()).Edges
	// Hand-built statistics: edge 2 has fewer visits but the best mean.
	values := []struct {
		visits int
		sum    float32
	}{{10, 2}, {10, 4}, {2, 1.8}, {0, 0}}
	for i, v := range values {
		if v.visits == 0 {
			continue
		}
		child := a.Append(Node{Visits: v.visits, ValueSum: v.sum})
		a.At(tr.Root()).Edges[i].Child = child
	}

	m, policy, err := tr.BestMove()
	require.NoError(t, err)
	require.Equal(t, edges[2].Move, m)
	require.Len(t, policy, 4)
	require.Equal(t, 22, policy.Total())
	require.Zero(t, policy[3].Visits)
}

// forcedEndgame has black to move with two captures. (0,0) wins every
// continuation 7-0; (7,5) hands white (0,4) and a 4-3 win.
func forcedEndgame() *game.GameState {
	s := &game.GameState{Current: game.Black}
	s.Board[0][1] = game.White
	s.Board[0][2] = game.Black
	s.Board[0][3] = game.Black
	s.Board[7][6] = game.White
	s.Board[7][7] = game.Black
	return s
}

func TestRolloutNegamaxSignsInForcedEndgame(t *testing.T) {
	state := forcedEndgame()
	win := game.Move{Row: 0, Col: 0}
	lose := game.Move{Row: 7, Col: 5}
	require.Equal(t, []game.Move{win, lose}, state.ValidMoves())

	tr := NewRolloutTree(Config{Iterations: 200}, state, rand.New(rand.NewSource(9)))
	require.NoError(t, tr.Search(context.Background()))

	a := tr.Arena()
	q := map[game.Move]float32{}
	for _, e := range a.At(tr.Root()).Edges {
		require.NotEqual(t, Unexpanded, e.Child)
		q[e.Move] = a.At(e.Child).Q()
	}
	require.InDelta(t, 1.0, q[win], 1e-6, "every playout after (0,0) is a black win")
	require.InDelta(t, -1.0, q[lose], 1e-6, "every playout after (7,5) is a black loss")

	m, _, err := tr.BestMove()
	require.NoError(t, err)
	require.Equal(t, win, m)
}

func TestPUCTSearchVisitCounts(t *testing.T) {
	eval := &MockEvaluator{Value: 0.1}
	tr, err := NewPUCTTree(Config{Iterations: 50}, game.NewGameState(), eval, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	require.NoError(t, tr.Search(context.Background()))

	a := tr.Arena()
	require.Equal(t, 50, a.At(tr.Root()).Visits)
	require.Equal(t, 50, childVisits(t, a, tr.Root()))
	require.Equal(t, a.Len(), eval.Calls, "one evaluation per non-terminal node")
}

func TestPUCTPriorsRenormalizeOverLegalMoves(t *testing.T) {
	policy := make([]float32, game.PolicySize)
	policy[0] = 0.5 // (0,0) is illegal in the opening
	for _, m := range game.NewGameState().ValidMoves() {
		policy[m.Index()] = 0.125
	}
	tr, err := NewPUCTTree(Config{}, game.NewGameState(), &MockEvaluator{Policy: policy}, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	for _, p := range tr.Priors() {
		require.InDelta(t, 0.25, p, 1e-6)
	}
}

func TestPUCTPriorsSumToOne(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	state := game.NewGameState()
	for trial := 0; trial < 30; trial++ {
		policy := make([]float32, game.PolicySize)
		total := float32(0)
		for i := range policy {
			policy[i] = rng.Float32()
			total += policy[i]
		}
		for i := range policy {
			policy[i] /= total
		}

		tr, err := NewPUCTTree(Config{}, state, &MockEvaluator{Policy: policy}, rng)
		require.NoError(t, err)
		sum := float32(0)
		for _, p := range tr.Priors() {
			sum += p
		}
		require.InDelta(t, 1.0, sum, 1e-5)

		moves := state.ValidMoves()
		state.MakeMove(moves[rng.Intn(len(moves))])
		if state.IsTerminal() {
			state = game.NewGameState()
		}
	}
}

func TestPUCTZeroLegalMassFallsBackToUniform(t *testing.T) {
	policy := make([]float32, game.PolicySize)
	policy[0] = 1
	tr, err := NewPUCTTree(Config{}, game.NewGameState(), &MockEvaluator{Policy: policy}, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	for _, p := range tr.Priors() {
		require.InDelta(t, 0.25, p, 1e-6)
	}
}

func TestPUCTNegamaxSigns(t *testing.T) {
	// Every side to move believes it is winning.
	eval := &MockEvaluator{Value: 0.5}
	tr, err := NewPUCTTree(Config{}, game.NewGameState(), eval, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	require.NoError(t, tr.SearchN(context.Background(), 1))
	a := tr.Arena()
	root := a.At(tr.Root())
	child := a.At(root.Edges[0].Child)
	require.Equal(t, float32(-0.5), child.ValueSum, "child value is seen from the mover into it")
	require.Equal(t, float32(0.5), root.ValueSum)

	// Visited edges look bad for the parent, so the next three go elsewhere.
	require.NoError(t, tr.SearchN(context.Background(), 3))
	for _, e := range a.At(tr.Root()).Edges {
		require.NotEqual(t, Unexpanded, e.Child)
		require.Equal(t, 1, a.At(e.Child).Visits)
		require.InDelta(t, -0.5, a.At(e.Child).Q(), 1e-6)
	}
}

func TestPUCTTerminalNodeUsesExactOutcome(t *testing.T) {
	s := &game.GameState{Current: game.White}
	// Black to capture the last white stone: (0,2) ends the game.
	s.Board[0][0] = game.Black
	s.Board[0][1] = game.White
	s.MakeMove(game.Pass)

	eval := &MockEvaluator{Value: 0.9}
	tr, err := NewPUCTTree(Config{}, s, eval, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	require.NoError(t, tr.SearchN(context.Background(), 5))

	a := tr.Arena()
	root := a.At(tr.Root())
	require.Len(t, root.Edges, 1)
	leaf := a.At(root.Edges[0].Child)
	require.Empty(t, leaf.Edges)
	require.Equal(t, float32(-1), leaf.Eval, "white to move has lost")
	require.Equal(t, 5, leaf.Visits)
	require.InDelta(t, 1.0, leaf.Q(), 1e-6, "black made the winning move")
	require.Equal(t, 1, eval.Calls, "terminal nodes are never evaluated")
}

func TestPUCTBestMoveGreedyAfterThreshold(t *testing.T) {
	state := game.NewGameState()
	state.Ply = DefaultGreedyAfter + 1
	tr, err := NewPUCTTree(Config{}, state, &MockEvaluator{}, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	a := tr.Arena()
	for i, visits := range []int{3, 7, 7, 1} {
		child := a.Append(Node{Visits: visits})
		a.At(tr.Root()).Edges[i].Child = child
	}
	for i := 0; i < 20; i++ {
		m, policy, err := tr.BestMove()
		require.NoError(t, err)
		require.Equal(t, policy[1].Move, m, "ties go to the first edge")
	}
}

func TestPUCTAlwaysGreedyFromFirstPly(t *testing.T) {
	tr, err := NewPUCTTree(Config{GreedyAfter: AlwaysGreedy}, game.NewGameState(), &MockEvaluator{}, rand.New(rand.NewSource(5)))
	require.NoError(t, err)

	a := tr.Arena()
	for i, visits := range []int{40, 60, 0, 0} {
		if visits == 0 {
			continue
		}
		child := a.Append(Node{Visits: visits})
		a.At(tr.Root()).Edges[i].Child = child
	}
	for i := 0; i < 50; i++ {
		m, policy, err := tr.BestMove()
		require.NoError(t, err)
		require.Equal(t, policy[1].Move, m)
	}
}

func TestConfigGreedyAfterDefaults(t *testing.T) {
	require.Equal(t, DefaultGreedyAfter, Config{}.withDefaults().GreedyAfter)
	require.Equal(t, AlwaysGreedy, Config{GreedyAfter: -7}.withDefaults().GreedyAfter)
	require.Equal(t, 3, Config{GreedyAfter: 3}.withDefaults().GreedyAfter)
}

func TestPUCTBestMoveSamplesEarly(t *testing.T) {
	tr, err := NewPUCTTree(Config{}, game.NewGameState(), &MockEvaluator{}, rand.New(rand.NewSource(5)))
	require.NoError(t, err)

	a := tr.Arena()
	for i, visits := range []int{50, 50, 0, 0} {
		if visits == 0 {
			continue
		}
		child := a.Append(Node{Visits: visits})
		a.At(tr.Root()).Edges[i].Child = child
	}
	seen := map[game.Move]int{}
	for i := 0; i < 200; i++ {
		m, _, err := tr.BestMove()
		require.NoError(t, err)
		seen[m]++
	}
	edges := a.At(tr.Root()).Edges
	require.Len(t, seen, 2, "unvisited edges are never sampled")
	require.Positive(t, seen[edges[0].Move])
	require.Positive(t, seen[edges[1].Move])
}

func TestAdvanceReusesSubtree(t *testing.T) {
	tr, err := NewPUCTTree(Config{}, game.NewGameState(), &MockEvaluator{}, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	require.NoError(t, tr.SearchN(context.Background(), 40))

	a := tr.Arena()
	e := a.At(tr.Root()).Edges[0]
	visits := a.At(e.Child).Visits
	size := a.Len()

	require.NoError(t, tr.Advance(e.Move))
	require.Equal(t, e.Child, tr.Root())
	require.Equal(t, visits, a.At(tr.Root()).Visits)
	require.Equal(t, size, a.Len(), "no node is created or freed")
	require.Equal(t, 1, tr.State().Ply)
	require.Equal(t, game.White, tr.State().Current)
}

func TestAdvanceCreatesUnexploredChild(t *testing.T) {
	tr := NewRolloutTree(Config{}, game.NewGameState(), rand.New(rand.NewSource(1)))
	size := tr.Arena().Len()
	m := game.Move{Row: 5, Col: 4}

	require.NoError(t, tr.Advance(m))
	require.Equal(t, size+1, tr.Arena().Len())
	require.Zero(t, tr.Arena().At(tr.Root()).Visits)

	// A freshly created root still searches cleanly.
	require.NoError(t, tr.SearchN(context.Background(), 10))
	require.Equal(t, 10, tr.Arena().At(tr.Root()).Visits)
}

func TestAdvanceRejectsMoveOutsideRoot(t *testing.T) {
	tr := NewRolloutTree(Config{}, game.NewGameState(), rand.New(rand.NewSource(1)))
	err := tr.Advance(game.Move{Row: 0, Col: 0})
	require.ErrorIs(t, err, ErrIllegalMove)
	require.Zero(t, tr.State().Ply, "the root position is untouched")

	err = tr.Advance(game.Pass)
	require.ErrorIs(t, err, ErrIllegalMove)
}

func TestSearchOnTerminalRoot(t *testing.T) {
	s := &game.GameState{Current: game.Black}
	s.Board[0][0] = game.Black
	tr := NewRolloutTree(Config{}, s, rand.New(rand.NewSource(1)))
	require.ErrorIs(t, tr.SearchN(context.Background(), 3), ErrNoMoves)
	_, _, err := tr.BestMove()
	require.ErrorIs(t, err, ErrNoMoves)
}

func TestEvaluatorErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	_, err := NewPUCTTree(Config{}, game.NewGameState(), &MockEvaluator{Err: boom}, rand.New(rand.NewSource(1)))
	require.ErrorIs(t, err, boom)
}

func TestSearchStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tr := NewRolloutTree(Config{}, game.NewGameState(), rand.New(rand.NewSource(1)))
	require.ErrorIs(t, tr.SearchN(ctx, 10), context.Canceled)
	require.Zero(t, tr.Arena().At(tr.Root()).Visits)
}

func TestPolicyTarget(t *testing.T) {
	p := Policy{{Move: game.Move{Row: 2, Col: 3}, Visits: 3}, {Move: game.Pass, Visits: 1}}
	target := p.Target()
	require.InDelta(t, 0.75, target[19], 1e-6)
	require.InDelta(t, 0.25, target[game.PassIndex], 1e-6)

	sum := float32(0)
	for _, v := range target {
		sum += v
	}
	require.InDelta(t, 1.0, sum, 1e-6)
	require.Equal(t, [game.PolicySize]float32{}, Policy(nil).Target())
	require.Equal(t, [game.PolicySize]float32{}, Policy{{Move: game.Pass}}.Target())
	require.False(t, math.IsNaN(float64(Policy{{Move: game.Pass}}.Target()[game.PassIndex])))
}

func BenchmarkRolloutSearch(b *testing.B) {
	rng := rand.New(rand.NewSource(1))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tr := NewRolloutTree(Config{Iterations: 200}, game.NewGameState(), rng)
		if err := tr.Search(context.Background()); err != nil {
			b.Fatalf("Search failed: %v", err)
		}
	}
}

func BenchmarkPUCTSearch(b *testing.B) {
	client := &MockEvaluator{}
	rng := rand.New(rand.NewSource(1))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tr, err := NewPUCTTree(Config{Iterations: 800}, game.NewGameState(), client, rng)
		if err != nil {
			b.Fatalf("NewPUCTTree failed: %v", err)
		}
		if err := tr.Search(context.Background()); err != nil {
			b.Fatalf("Search failed: %v", err)
		}
	}
}
