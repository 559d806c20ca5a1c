package refchess

import (
	"sync"

	"chessmcts/internal/game"
)

// zobristPieces and friends form a sync.Once-guarded table filled with a
// splitmix64-style generator, one random value per (square, piece) pair
// plus side-to-move and castling/en-passant state.
var (
	zobristOnce      sync.Once
	zobristPieces    [NumSquares][2 * int(game.NumPieceTypes)]uint64
	zobristSide      uint64
	zobristCastle    [4]uint64
	zobristEnPassant [Files]uint64
)

func splitmix64(state *uint64) uint64 {
	*state += 0x9E3779B97F4A7C15
	z := *state
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}

func initZobrist() {
	state := uint64(0xC0FFEE1234567890)
	for sq := range zobristPieces {
		for k := range zobristPieces[sq] {
			zobristPieces[sq][k] = splitmix64(&state)
		}
	}
	zobristSide = splitmix64(&state)
	for i := range zobristCastle {
		zobristCastle[i] = splitmix64(&state)
	}
	for i := range zobristEnPassant {
		zobristEnPassant[i] = splitmix64(&state)
	}
}

func pieceZobristIndex(pc Piece) int {
	if pc > 0 {
		return int(pc.Type())
	}
	return int(game.NumPieceTypes) + int(pc.Type())
}

func computeHash(p *Position) uint64 {
	zobristOnce.Do(initZobrist)

	var h uint64
	for sq := 0; sq < NumSquares; sq++ {
		pc := p.Squares[sq]
		if pc == 0 {
			continue
		}
		h ^= zobristPieces[sq][pieceZobristIndex(pc)]
	}
	if p.SideToMove == game.Black {
		h ^= zobristSide
	}
	if p.Castling.WhiteKingside {
		h ^= zobristCastle[0]
	}
	if p.Castling.WhiteQueenside {
		h ^= zobristCastle[1]
	}
	if p.Castling.BlackKingside {
		h ^= zobristCastle[2]
	}
	if p.Castling.BlackQueenside {
		h ^= zobristCastle[3]
	}
	if p.EnPassant != NoSquare {
		h ^= zobristEnPassant[fileOf(p.EnPassant)]
	}
	return h
}
