package refchess

import "chessmcts/internal/game"

var knightDeltas = [8][2]int{
	{1, 2}, {2, 1}, {2, -1}, {1, -2},
	{-1, -2}, {-2, -1}, {-2, 1}, {-1, 2},
}

var kingDeltas = [8][2]int{
	{1, 0}, {1, 1}, {0, 1}, {-1, 1},
	{-1, 0}, {-1, -1}, {0, -1}, {1, -1},
}

var bishopDirs = [4][2]int{{1, 1}, {1, -1}, {-1, 1}, {-1, -1}}
var rookDirs = [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}

// isAttackedBy reports whether sq is attacked by any piece belonging to
// attacker, ignoring whose turn it actually is. Used both for check
// detection and for castling's "not through check" rule.
func isAttackedBy(p *Position, sq int, attacker game.Side) bool {
	r, f := rankOf(sq), fileOf(sq)

	pawnDir := 1
	if attacker == game.Black {
		pawnDir = -1
	}
	for _, df := range [2]int{-1, 1} {
		pr, pf := r-pawnDir, f+df
		if onBoard(pr, pf) {
			pc := p.Squares[squareOf(pr, pf)]
			if pc.Side() == attacker && pc.Type() == game.Pawn {
				return true
			}
		}
	}

	for _, d := range knightDeltas {
		nr, nf := r+d[0], f+d[1]
		if onBoard(nr, nf) {
			pc := p.Squares[squareOf(nr, nf)]
			if pc.Side() == attacker && pc.Type() == game.Knight {
				return true
			}
		}
	}

	for _, d := range kingDeltas {
		nr, nf := r+d[0], f+d[1]
		if onBoard(nr, nf) {
			pc := p.Squares[squareOf(nr, nf)]
			if pc.Side() == attacker && pc.Type() == game.King {
				return true
			}
		}
	}

	for _, d := range bishopDirs {
		if slidingAttack(p, r, f, d, attacker, game.Bishop, game.Queen) {
			return true
		}
	}
	for _, d := range rookDirs {
		if slidingAttack(p, r, f, d, attacker, game.Rook, game.Queen) {
			return true
		}
	}
	return false
}

func slidingAttack(p *Position, r, f int, dir [2]int, attacker game.Side, matchA, matchB game.PieceType) bool {
	nr, nf := r+dir[0], f+dir[1]
	for onBoard(nr, nf) {
		pc := p.Squares[squareOf(nr, nf)]
		if pc != 0 {
			if pc.Side() == attacker && (pc.Type() == matchA || pc.Type() == matchB) {
				return true
			}
			return false
		}
		nr += dir[0]
		nf += dir[1]
	}
	return false
}

func kingSquare(p *Position, side game.Side) int {
	for sq := 0; sq < NumSquares; sq++ {
		pc := p.Squares[sq]
		if pc.Side() == side && pc.Type() == game.King {
			return sq
		}
	}
	return NoSquare
}

// IsUnderCheck reports whether the side to move's king is attacked.
func (p *Position) IsUnderCheck() bool {
	ks := kingSquare(p, p.SideToMove)
	if ks == NoSquare {
		return false
	}
	return isAttackedBy(p, ks, p.SideToMove.Opposite())
}
