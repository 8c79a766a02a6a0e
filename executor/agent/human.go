package agent

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/brensch/othello0/executor/mcts"
	"github.com/brensch/othello0/game"
)

// HumanAgent reads moves as "row col" lines. "pass" (or "-1 -1") passes.
// Illegal or malformed input is rejected and read again.
type HumanAgent struct {
	in  *bufio.Scanner
	out io.Writer
}

func NewHumanAgent(in io.Reader, out io.Writer) *HumanAgent {
	return &HumanAgent{in: bufio.NewScanner(in), out: out}
}

func (a *HumanAgent) SelectMove(ctx context.Context, state *game.GameState) (game.Move, mcts.Policy, error) {
	fmt.Fprintln(a.out, "Waiting for move...")
	for a.in.Scan() {
		if ctx != nil && ctx.Err() != nil {
			return game.Pass, nil, ctx.Err()
		}
		m, err := parseMove(a.in.Text())
		if err == nil && state.IsLegal(m) {
			return m, nil, nil
		}
		fmt.Fprintln(a.out, "Invalid move!")
		fmt.Fprintln(a.out)
	}
	if err := a.in.Err(); err != nil {
		return game.Pass, nil, fmt.Errorf("read move: %w", err)
	}
	return game.Pass, nil, io.ErrUnexpectedEOF
}

func (a *HumanAgent) ApplyMove(game.Move) error { return nil }

func parseMove(line string) (game.Move, error) {
	fields := strings.Fields(line)
	if len(fields) == 1 && strings.EqualFold(fields[0], "pass") {
		return game.Pass, nil
	}
	if len(fields) != 2 {
		return game.Move{}, fmt.Errorf("want \"row col\", got %q", line)
	}
	r, err := strconv.Atoi(fields[0])
	if err != nil {
		return game.Move{}, err
	}
	c, err := strconv.Atoi(fields[1])
	if err != nil {
		return game.Move{}, err
	}
	if r == -1 && c == -1 {
		return game.Pass, nil
	}
	if r < 0 || r >= game.Size || c < 0 || c >= game.Size {
		return game.Move{}, fmt.Errorf("square (%d,%d) is off the board", r, c)
	}
	return game.Move{Row: int8(r), Col: int8(c)}, nil
}
