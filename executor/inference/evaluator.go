// Package inference provides the position evaluators used by the PUCT search.
package inference

import (
	"errors"
	"fmt"
	"math"

	"github.com/brensch/othello0/game"
)

// ErrBadOutput reports a network output that is not a usable distribution.
var ErrBadOutput = errors.New("invalid evaluator output")

// Uniform scores every position as even and spreads the policy evenly over
// the legal moves. It stands in for a trained network on the first iteration.
type Uniform struct{}

func (Uniform) Evaluate(state *game.GameState) ([]float32, float32, error) {
	policy := make([]float32, PolicySize)
	moves := state.ValidMoves()
	for _, m := range moves {
		policy[m.Index()] = 1 / float32(len(moves))
	}
	return policy, 0, nil
}

// checkOutput validates what a network returned before the search uses it.
func checkOutput(policy []float32, value float32) error {
	if len(policy) != PolicySize {
		return fmt.Errorf("%w: policy has %d entries, want %d", ErrBadOutput, len(policy), PolicySize)
	}
	if math.IsNaN(float64(value)) {
		return fmt.Errorf("%w: value is NaN", ErrBadOutput)
	}
	sum := float32(0)
	for i, p := range policy {
		if math.IsNaN(float64(p)) || p < 0 {
			return fmt.Errorf("%w: policy[%d] = %v", ErrBadOutput, i, p)
		}
		sum += p
	}
	if sum <= 0 {
		return fmt.Errorf("%w: policy sums to %v", ErrBadOutput, sum)
	}
	return nil
}

func clampValue(v float32) float32 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
