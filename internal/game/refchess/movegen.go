package refchess

import "chessmcts/internal/game"

// LegalMoves returns every legal move from this position, filtering
// pseudo-legal generation by rejecting any move that leaves the mover's
// own king in check. Order is fixed (by origin square, ascending, then
// by generation order within a square) so that child iteration order at
// a search node is deterministic across runs, per game.Board's contract.
func (p *Position) LegalMoves() []game.LegalMove {
	var out []game.LegalMove
	for sq := 0; sq < NumSquares; sq++ {
		pc := p.Squares[sq]
		if pc.Side() != p.SideToMove {
			continue
		}
		for _, m := range pseudoMovesFrom(p, sq, pc) {
			next := applyMove(p, m)
			if isAttackedBy(next, kingSquare(next, p.SideToMove), p.SideToMove.Opposite()) {
				continue
			}
			m.flipped = p.Flipped()
			out = append(out, game.LegalMove{
				Move:            m,
				Board:           next,
				ResetsFiftyMove: pc.Type() == game.Pawn || p.Squares[m.To] != 0 || m.IsEnPassant,
			})
		}
	}
	return out
}

func pseudoMovesFrom(p *Position, sq int, pc Piece) []Move {
	switch pc.Type() {
	case game.Pawn:
		return pawnMoves(p, sq, pc.Side())
	case game.Knight:
		return leaperMoves(p, sq, pc.Side(), knightDeltas[:])
	case game.King:
		moves := leaperMoves(p, sq, pc.Side(), kingDeltas[:])
		return append(moves, castlingMoves(p, sq, pc.Side())...)
	case game.Bishop:
		return sliderMoves(p, sq, pc.Side(), bishopDirs[:])
	case game.Rook:
		return sliderMoves(p, sq, pc.Side(), rookDirs[:])
	case game.Queen:
		moves := sliderMoves(p, sq, pc.Side(), bishopDirs[:])
		return append(moves, sliderMoves(p, sq, pc.Side(), rookDirs[:])...)
	}
	return nil
}

func leaperMoves(p *Position, sq int, side game.Side, deltas [][2]int) []Move {
	r, f := rankOf(sq), fileOf(sq)
	var out []Move
	for _, d := range deltas {
		nr, nf := r+d[0], f+d[1]
		if !onBoard(nr, nf) {
			continue
		}
		to := squareOf(nr, nf)
		if p.Squares[to].Side() == side {
			continue
		}
		out = append(out, Move{From: sq, To: to, Promotion: NoPiece})
	}
	return out
}

func sliderMoves(p *Position, sq int, side game.Side, dirs [][2]int) []Move {
	r, f := rankOf(sq), fileOf(sq)
	var out []Move
	for _, d := range dirs {
		nr, nf := r+d[0], f+d[1]
		for onBoard(nr, nf) {
			to := squareOf(nr, nf)
			occupant := p.Squares[to]
			if occupant.Side() == side {
				break
			}
			out = append(out, Move{From: sq, To: to, Promotion: NoPiece})
			if occupant != 0 {
				break
			}
			nr += d[0]
			nf += d[1]
		}
	}
	return out
}

var promotionPieces = [4]game.PieceType{game.Queen, game.Rook, game.Bishop, game.Knight}

func pawnMoves(p *Position, sq int, side game.Side) []Move {
	r, f := rankOf(sq), fileOf(sq)
	dir := 1
	startRank := 1
	lastRank := 7
	if side == game.Black {
		dir = -1
		startRank = 6
		lastRank = 0
	}

	var out []Move
	addForward := func(to int) {
		if rankOf(to) == lastRank {
			for _, pr := range promotionPieces {
				out = append(out, Move{From: sq, To: to, Promotion: pr})
			}
		} else {
			out = append(out, Move{From: sq, To: to, Promotion: NoPiece})
		}
	}

	// Single push.
	if onBoard(r+dir, f) {
		to := squareOf(r+dir, f)
		if p.Squares[to] == 0 {
			addForward(to)
			// Double push from the start rank.
			if r == startRank {
				to2 := squareOf(r+2*dir, f)
				if p.Squares[to2] == 0 {
					out = append(out, Move{From: sq, To: to2, Promotion: NoPiece})
				}
			}
		}
	}

	// Captures, including en passant.
	for _, df := range [2]int{-1, 1} {
		nr, nf := r+dir, f+df
		if !onBoard(nr, nf) {
			continue
		}
		to := squareOf(nr, nf)
		occ := p.Squares[to]
		if occ != 0 && occ.Side() != side {
			addForward(to)
		} else if occ == 0 && to == p.EnPassant {
			out = append(out, Move{From: sq, To: to, Promotion: NoPiece, IsEnPassant: true})
		}
	}
	return out
}

func castlingMoves(p *Position, sq int, side game.Side) []Move {
	var out []Move
	opp := side.Opposite()
	if isAttackedBy(p, sq, opp) {
		return out
	}
	if side == game.White && sq == squareOf(0, 4) {
		if p.Castling.WhiteKingside && p.Squares[squareOf(0, 5)] == 0 && p.Squares[squareOf(0, 6)] == 0 &&
			p.Squares[squareOf(0, 7)].Type() == game.Rook && p.Squares[squareOf(0, 7)].Side() == game.White &&
			!isAttackedBy(p, squareOf(0, 5), opp) && !isAttackedBy(p, squareOf(0, 6), opp) {
			out = append(out, Move{From: sq, To: squareOf(0, 6), Promotion: NoPiece, IsCastle: true})
		}
		if p.Castling.WhiteQueenside && p.Squares[squareOf(0, 3)] == 0 && p.Squares[squareOf(0, 2)] == 0 && p.Squares[squareOf(0, 1)] == 0 &&
			p.Squares[squareOf(0, 0)].Type() == game.Rook && p.Squares[squareOf(0, 0)].Side() == game.White &&
			!isAttackedBy(p, squareOf(0, 3), opp) && !isAttackedBy(p, squareOf(0, 2), opp) {
			out = append(out, Move{From: sq, To: squareOf(0, 2), Promotion: NoPiece, IsCastle: true})
		}
	}
	if side == game.Black && sq == squareOf(7, 4) {
		if p.Castling.BlackKingside && p.Squares[squareOf(7, 5)] == 0 && p.Squares[squareOf(7, 6)] == 0 &&
			p.Squares[squareOf(7, 7)].Type() == game.Rook && p.Squares[squareOf(7, 7)].Side() == game.Black &&
			!isAttackedBy(p, squareOf(7, 5), opp) && !isAttackedBy(p, squareOf(7, 6), opp) {
			out = append(out, Move{From: sq, To: squareOf(7, 6), Promotion: NoPiece, IsCastle: true})
		}
		if p.Castling.BlackQueenside && p.Squares[squareOf(7, 3)] == 0 && p.Squares[squareOf(7, 2)] == 0 && p.Squares[squareOf(7, 1)] == 0 &&
			p.Squares[squareOf(7, 0)].Type() == game.Rook && p.Squares[squareOf(7, 0)].Side() == game.Black &&
			!isAttackedBy(p, squareOf(7, 3), opp) && !isAttackedBy(p, squareOf(7, 2), opp) {
			out = append(out, Move{From: sq, To: squareOf(7, 2), Promotion: NoPiece, IsCastle: true})
		}
	}
	return out
}

// applyMove returns the position reached by playing m, updating piece
// placement, castling rights, en-passant target, and side to move.
func applyMove(p *Position, m Move) *Position {
	np := p.Clone()
	np.hashValid = false
	np.EnPassant = NoSquare

	mover := np.Squares[m.From]
	np.Squares[m.From] = 0

	if m.IsEnPassant {
		capturedRank := rankOf(m.From)
		np.Squares[squareOf(capturedRank, fileOf(m.To))] = 0
	}

	if m.Promotion != NoPiece {
		np.Squares[m.To] = makePiece(mover.Side(), m.Promotion)
	} else {
		np.Squares[m.To] = mover
	}

	if m.IsCastle {
		rank := rankOf(m.From)
		if fileOf(m.To) == 6 {
			np.Squares[squareOf(rank, 5)] = np.Squares[squareOf(rank, 7)]
			np.Squares[squareOf(rank, 7)] = 0
		} else {
			np.Squares[squareOf(rank, 3)] = np.Squares[squareOf(rank, 0)]
			np.Squares[squareOf(rank, 0)] = 0
		}
	}

	if mover.Type() == game.Pawn && abs(rankOf(m.To)-rankOf(m.From)) == 2 {
		np.EnPassant = squareOf((rankOf(m.From)+rankOf(m.To))/2, fileOf(m.From))
	}

	updateCastlingRights(np, m)

	if mover.Type() == game.Pawn || p.Squares[m.To] != 0 || m.IsEnPassant {
		np.HalfmoveClock = 0
	} else {
		np.HalfmoveClock = p.HalfmoveClock + 1
	}

	np.SideToMove = p.SideToMove.Opposite()
	return np
}

func updateCastlingRights(np *Position, m Move) {
	clear := func(sq int) {
		switch sq {
		case squareOf(0, 4):
			np.Castling.WhiteKingside, np.Castling.WhiteQueenside = false, false
		case squareOf(0, 0):
			np.Castling.WhiteQueenside = false
		case squareOf(0, 7):
			np.Castling.WhiteKingside = false
		case squareOf(7, 4):
			np.Castling.BlackKingside, np.Castling.BlackQueenside = false, false
		case squareOf(7, 0):
			np.Castling.BlackQueenside = false
		case squareOf(7, 7):
			np.Castling.BlackKingside = false
		}
	}
	clear(m.From)
	clear(m.To)
}
