package inference

import (
	"errors"
	"math/rand"
	"os"
	"testing"

	"github.com/brensch/othello0/game"
	"github.com/stretchr/testify/require"
)

// randomStates plays random games and collects every position reached.
func randomStates(r *rand.Rand, n int) []*game.GameState {
	states := make([]*game.GameState, 0, n)
	for len(states) < n {
		s := game.NewGameState()
		for !s.IsTerminal() && len(states) < n {
			states = append(states, s.Clone())
			moves := s.ValidMoves()
			s.MakeMove(moves[r.Intn(len(moves))])
		}
	}
	return states
}

type errEvaluator struct{}

func (errEvaluator) Evaluate(*game.GameState) ([]float32, float32, error) {
	return nil, 0, errors.New("boom")
}

type closeRecorder struct {
	Uniform
	closed bool
}

func (c *closeRecorder) Close() error {
	c.closed = true
	return nil
}

func TestCountedRecordsCalls(t *testing.T) {
	var counters Counters
	ok := NewCounted(Uniform{}, &counters)
	bad := NewCounted(errEvaluator{}, &counters)

	for _, s := range randomStates(rand.New(rand.NewSource(1)), 5) {
		_, _, err := ok.Evaluate(s)
		require.NoError(t, err)
	}
	_, _, err := bad.Evaluate(game.NewGameState())
	require.Error(t, err)

	st := counters.Stats()
	require.Equal(t, int64(6), st.TotalCalls)
	require.Equal(t, int64(1), st.TotalErrors)
	require.GreaterOrEqual(t, st.AvgRunMs, 0.0)
}

func TestCountedClosesInner(t *testing.T) {
	inner := &closeRecorder{}
	require.NoError(t, NewCounted(inner, &Counters{}).Close())
	require.True(t, inner.closed)
	require.NoError(t, NewCounted(Uniform{}, &Counters{}).Close())
}

func BenchmarkUniformEvaluate(b *testing.B) {
	states := randomStates(rand.New(rand.NewSource(1)), 1024)
	var e Uniform

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := e.Evaluate(states[i%len(states)]); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkOnnxEvaluate(b *testing.B) {
	modelPath := os.Getenv("OTHELLO_BENCH_ONNX_MODEL")
	if modelPath == "" {
		b.Skip("OTHELLO_BENCH_ONNX_MODEL not set; skipping")
	}
	e, err := NewOnnxEvaluator(modelPath, OnnxConfig{})
	if err != nil {
		b.Skipf("ORT unavailable: %v", err)
	}
	defer e.Close()
	states := randomStates(rand.New(rand.NewSource(1)), 1024)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := e.Evaluate(states[i%len(states)]); err != nil {
			b.Fatalf("run: %v", err)
		}
	}
	b.StopTimer()
	if dt := b.Elapsed().Seconds(); dt > 0 {
		b.ReportMetric(float64(b.N)/dt, "inf/s")
	}
}
