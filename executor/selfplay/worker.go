package selfplay

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/brensch/othello0/executor/agent"
	"github.com/brensch/othello0/executor/convert"
	"github.com/brensch/othello0/game"
	"github.com/brensch/othello0/store"
)

// GameResult summarizes a finished game.
type GameResult struct {
	// Winner is game.Empty on a tie.
	Winner game.Cell
	White  int
	Black  int
	Plies  int
}

// Player returns the seat number printed for the winner: 1 for white,
// 2 for black, 0 for a tie.
func (r GameResult) Player() int {
	switch r.Winner {
	case game.White:
		return 1
	case game.Black:
		return 2
	default:
		return 0
	}
}

func (r GameResult) String() string {
	switch r.Player() {
	case 1:
		return "Player 1 wins!"
	case 2:
		return "Player 2 wins!"
	default:
		return "Tie!"
	}
}

type Options struct {
	// Verbose draws the board before every ply and the result at the end.
	Verbose bool
	// Layers adds the encoded network input to the verbose output.
	Layers bool
	// Out receives the verbose output. Defaults to os.Stdout.
	Out io.Writer
	// OnStep is called after every ply.
	OnStep func()
}

// PlayGame plays white against black from the initial position until the
// game is over and returns one sample per ply.
//
// Each sample holds the position before the move and the mover's visit
// distribution (zeros when the agent reports none). Once the game ends the
// winner's samples are labelled +1 and the loser's -1. A tie leaves every
// label at 0.
//
// Any agent error aborts the game; the partial samples are discarded.
func PlayGame(ctx context.Context, white, black agent.Agent, opts Options) ([]store.Sample, GameResult, error) {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	state := game.NewGameState()
	samples := make([]store.Sample, 0, game.Cells)
	movers := make([]game.Cell, 0, game.Cells)

	for !state.IsTerminal() {
		if ctx != nil {
			select {
			case <-ctx.Done():
				return nil, GameResult{Plies: state.Ply}, ctx.Err()
			default:
			}
		}

		if opts.Verbose {
			PrintBoard(out, state)
			if opts.Layers {
				PrintEncodedLayers(out, state)
			}
		}

		mover := white
		if state.Current == game.Black {
			mover = black
		}
		m, policy, err := mover.SelectMove(ctx, state)
		if err != nil {
			return nil, GameResult{Plies: state.Ply}, fmt.Errorf("%s select move at ply %d: %w", state.Current, state.Ply, err)
		}

		var s store.Sample
		convert.Encode(state, s.Board[:])
		s.Policy = policy.Target()
		samples = append(samples, s)
		movers = append(movers, state.Current)

		state.MakeMove(m)
		if err := white.ApplyMove(m); err != nil {
			return nil, GameResult{Plies: state.Ply}, fmt.Errorf("white apply %s: %w", m, err)
		}
		if err := black.ApplyMove(m); err != nil {
			return nil, GameResult{Plies: state.Ply}, fmt.Errorf("black apply %s: %w", m, err)
		}

		if opts.OnStep != nil {
			opts.OnStep()
		}
	}

	w, b := state.Scores()
	result := GameResult{Winner: state.Winner(), White: w, Black: b, Plies: state.Ply}
	labelOutcome(samples, movers, result.Winner)

	if opts.Verbose {
		fmt.Fprintln(out, "Finish!")
		fmt.Fprintln(out, state.String())
		fmt.Fprintf(out, "%d %d\n", w, b)
		fmt.Fprintln(out, result.String())
	}
	return samples, result, nil
}

// labelOutcome sets +1 on the winner's samples and -1 on the loser's.
// On a tie (winner == game.Empty) nothing is written.
func labelOutcome(samples []store.Sample, movers []game.Cell, winner game.Cell) {
	if winner == game.Empty {
		return
	}
	for i := range samples {
		if movers[i] == winner {
			samples[i].Value = 1
		} else {
			samples[i].Value = -1
		}
	}
}
