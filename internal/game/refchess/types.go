// Package refchess is a reference standard-chess rules implementation of
// the internal/game Board/Move contracts. It exists for tests,
// cmd/selfplay, and the demo server: it is not part of the search
// engine's exported surface, and the search core never imports it.
//
// Positions use a square-array board with Piece as a signed integer
// whose sign encodes side and magnitude encodes piece type, and a
// Zobrist table built once with a fast non-cryptographic generator.
package refchess

import "chessmcts/internal/game"

// Squares are numbered a1=0 .. h8=63, rank-major (rank*8+file), matching
// the a1=bit0..h8=bit63 convention game.Board.PieceBitboard documents.
const (
	Files = 8
	Ranks = 8
	NumSquares = Files * Ranks
)

func squareOf(rank, file int) int { return rank*Files + file }
func rankOf(sq int) int           { return sq / Files }
func fileOf(sq int) int           { return sq % Files }
func onBoard(rank, file int) bool { return rank >= 0 && rank < Ranks && file >= 0 && file < Files }

// mirrorSquare flips a square vertically (rank r -> 7-r, file unchanged),
// the transform used both to derive a "canonical, ours-at-the-bottom"
// bitboard when the side to move is Black, and by Move.Mirror to convert
// between that canonical frame and real board coordinates.
func mirrorSquare(sq int) int { return sq ^ 56 }

// Piece is a signed piece code: 0 is empty, positive is White, negative
// is Black, and the magnitude is 1+PieceType so an empty square stays 0.
type Piece int8

func makePiece(side game.Side, pt game.PieceType) Piece {
	if side == game.SideNone {
		return 0
	}
	v := Piece(pt) + 1
	if side == game.Black {
		return -v
	}
	return v
}

func (p Piece) Type() game.PieceType {
	if p == 0 {
		return -1
	}
	if p < 0 {
		return game.PieceType(-p - 1)
	}
	return game.PieceType(p - 1)
}

func (p Piece) Side() game.Side {
	switch {
	case p == 0:
		return game.SideNone
	case p > 0:
		return game.White
	default:
		return game.Black
	}
}

// CastlingRights is stored in absolute (White/Black) terms; Board.
// CastlingRights() maps it to the "we"/"they" terms the contract wants.
type CastlingRights struct {
	WhiteKingside  bool
	WhiteQueenside bool
	BlackKingside  bool
	BlackQueenside bool
}
