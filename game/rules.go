package game

// directions are the 8 lines a placement can capture along.
var directions = [8][2]int{
	{-1, -1},
	{-1, 0},
	{-1, 1},
	{0, -1},
	{0, 1},
	{1, -1},
	{1, 0},
	{1, 1},
}

func onBoard(r, c int) bool {
	return r >= 0 && r < Size && c >= 0 && c < Size
}

// canPlace reports whether p placing at (r, c) flips at least one stone.
func (s *GameState) canPlace(r, c int, p Cell) bool {
	if s.Board[r][c] != Empty {
		return false
	}
	enemy := p.Opponent()
	for _, d := range directions {
		nr, nc := r+d[0], c+d[1]
		seen := false
		for onBoard(nr, nc) && s.Board[nr][nc] == enemy {
			seen = true
			nr += d[0]
			nc += d[1]
		}
		if seen && onBoard(nr, nc) && s.Board[nr][nc] == p {
			return true
		}
	}
	return false
}

// ValidMoves returns the legal moves for the player to move.
//
// It returns []Move{Pass} when the player has no placement but the opponent
// does, and an empty slice when neither player can move. The result is cached
// until the next MakeMove and must not be modified by the caller.
func (s *GameState) ValidMoves() []Move {
	if s.movesValid {
		return s.moves
	}
	if s.moves == nil {
		s.moves = make([]Move, 0, Cells)
	}
	s.moves = s.moves[:0]

	opponentCanMove := false
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			if s.canPlace(r, c, s.Current) {
				s.moves = append(s.moves, Move{Row: int8(r), Col: int8(c)})
			} else if !opponentCanMove && len(s.moves) == 0 && s.canPlace(r, c, s.Current.Opponent()) {
				opponentCanMove = true
			}
		}
	}
	if len(s.moves) == 0 && opponentCanMove {
		s.moves = append(s.moves, Pass)
	}
	s.movesValid = true
	return s.moves
}

// IsTerminal reports whether neither player has a legal move.
func (s *GameState) IsTerminal() bool {
	return len(s.ValidMoves()) == 0
}

// IsLegal reports whether m is among the current legal moves.
func (s *GameState) IsLegal(m Move) bool {
	for _, v := range s.ValidMoves() {
		if v == m {
			return true
		}
	}
	return false
}

// MakeMove applies m for the player to move and hands the turn over.
// m must be legal; this is not checked.
func (s *GameState) MakeMove(m Move) {
	s.movesValid = false
	s.Ply++

	if m.IsPass() {
		s.Current = s.Current.Opponent()
		return
	}

	r, c := int(m.Row), int(m.Col)
	me := s.Current
	enemy := me.Opponent()
	s.Board[r][c] = me

	for _, d := range directions {
		nr, nc := r+d[0], c+d[1]
		n := 0
		for onBoard(nr, nc) && s.Board[nr][nc] == enemy {
			n++
			nr += d[0]
			nc += d[1]
		}
		if n == 0 || !onBoard(nr, nc) || s.Board[nr][nc] != me {
			continue
		}
		for i := 1; i <= n; i++ {
			s.Board[r+i*d[0]][c+i*d[1]] = me
		}
	}

	s.Current = enemy
}
