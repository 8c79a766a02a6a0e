// Package game defines the Othello game state.
//
// The state is the minimal representation needed for move generation,
// terminal detection and neural network encoding. It is cheap to clone so
// tree search can copy it for every simulation.
package game

import (
	"fmt"
	"strings"
)

// Size is the board edge length.
const Size = 8

const (
	// Cells is the number of squares on the board.
	Cells = Size * Size
	// PolicySize is the length of a move distribution: one slot per cell plus Pass.
	PolicySize = Cells + 1
	// PassIndex is the policy slot reserved for Pass.
	PassIndex = Cells
)

// Cell is the content of a square. White and Black double as player ids.
type Cell uint8

const (
	Empty Cell = 0
	White Cell = 1
	Black Cell = 2
)

// Opponent returns the other player. Empty maps to itself.
func (c Cell) Opponent() Cell {
	if c == Empty {
		return Empty
	}
	return c ^ 3
}

func (c Cell) String() string {
	switch c {
	case White:
		return "WHITE"
	case Black:
		return "BLACK"
	default:
		return "EMPTY"
	}
}

// Move is a placement at (Row, Col), or Pass.
type Move struct {
	Row int8
	Col int8
}

// Pass skips the turn. It is only legal when the side to move has no placement.
var Pass = Move{Row: -1, Col: -1}

func (m Move) IsPass() bool { return m == Pass }

// Index maps the move onto the canonical policy layout: 8r+c, Pass is 64.
func (m Move) Index() int {
	if m.IsPass() {
		return PassIndex
	}
	return int(m.Row)*Size + int(m.Col)
}

func (m Move) String() string {
	if m.IsPass() {
		return "pass"
	}
	return fmt.Sprintf("(%d,%d)", m.Row, m.Col)
}

// MoveFromIndex is the inverse of Move.Index.
func MoveFromIndex(idx int) Move {
	if idx == PassIndex {
		return Pass
	}
	return Move{Row: int8(idx / Size), Col: int8(idx % Size)}
}

// GameState is the complete state of a game in progress.
// Current is the player to move; Ply counts applied moves, passes included.
type GameState struct {
	Board   [Size][Size]Cell
	Current Cell
	Ply     int

	moves      []Move
	movesValid bool
}

// NewGameState returns the standard opening position with black to move.
func NewGameState() *GameState {
	s := &GameState{Current: Black}
	s.Board[3][3] = White
	s.Board[3][4] = Black
	s.Board[4][3] = Black
	s.Board[4][4] = White
	return s
}

// Clone performs a deep copy of the game state.
func (s *GameState) Clone() *GameState {
	if s == nil {
		return nil
	}
	out := &GameState{
		Board:      s.Board,
		Current:    s.Current,
		Ply:        s.Ply,
		movesValid: s.movesValid,
	}
	if s.movesValid {
		out.moves = make([]Move, len(s.moves), Cells)
		copy(out.moves, s.moves)
	}
	return out
}

// Scores returns the stone count of each player.
func (s *GameState) Scores() (white, black int) {
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			switch s.Board[r][c] {
			case White:
				white++
			case Black:
				black++
			}
		}
	}
	return white, black
}

// Winner returns the player with more stones, or Empty on a tie.
func (s *GameState) Winner() Cell {
	white, black := s.Scores()
	switch {
	case white > black:
		return White
	case black > white:
		return Black
	default:
		return Empty
	}
}

// Outcome is the final result from p's point of view: +1 win, -1 loss, 0 tie.
func (s *GameState) Outcome(p Cell) float32 {
	switch s.Winner() {
	case Empty:
		return 0
	case p:
		return 1
	default:
		return -1
	}
}

// String draws the board: "_" empty, "o" white, "@" black.
func (s *GameState) String() string {
	var sb strings.Builder
	sb.Grow(Size * (Size + 1))
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			switch s.Board[r][c] {
			case White:
				sb.WriteByte('o')
			case Black:
				sb.WriteByte('@')
			default:
				sb.WriteByte('_')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
