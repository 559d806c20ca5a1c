package refchess

import (
	"testing"

	"chessmcts/internal/game"
)

func empty() *Position {
	return &Position{SideToMove: game.White, EnPassant: NoSquare}
}

func TestInitialPositionHasTwentyLegalMoves(t *testing.T) {
	p := NewInitialPosition()
	moves := p.LegalMoves()
	if len(moves) != 20 {
		t.Fatalf("got %d legal moves from the initial position, want 20", len(moves))
	}
}

func TestPerftDepthTwoFromInitialPositionIsFourHundred(t *testing.T) {
	p := NewInitialPosition()
	total := 0
	for _, lm := range p.LegalMoves() {
		next := lm.Board.(*Position)
		total += len(next.LegalMoves())
	}
	if total != 400 {
		t.Fatalf("perft(2) from the initial position = %d, want 400", total)
	}
}

func TestCastlingKingsideRelocatesRook(t *testing.T) {
	p := empty()
	p.Squares[squareOf(0, 4)] = makePiece(game.White, game.King)
	p.Squares[squareOf(0, 7)] = makePiece(game.White, game.Rook)
	p.Squares[squareOf(7, 4)] = makePiece(game.Black, game.King)
	p.Castling = CastlingRights{WhiteKingside: true}

	var castle *Move
	for _, lm := range p.LegalMoves() {
		m := lm.Move.(Move)
		if m.IsCastle && m.To == squareOf(0, 6) {
			mCopy := m
			castle = &mCopy
		}
	}
	if castle == nil {
		t.Fatalf("expected a legal kingside castle")
	}

	next := applyMove(p, *castle)
	if next.Squares[squareOf(0, 6)].Type() != game.King {
		t.Fatalf("king did not land on g1")
	}
	if next.Squares[squareOf(0, 5)].Type() != game.Rook {
		t.Fatalf("rook did not land on f1")
	}
	if next.Squares[squareOf(0, 7)] != 0 {
		t.Fatalf("rook's original square should be empty")
	}
	if next.Castling.WhiteKingside || next.Castling.WhiteQueenside {
		t.Fatalf("castling rights must be cleared after castling")
	}
}

func TestCastlingBlockedThroughCheckIsIllegal(t *testing.T) {
	p := empty()
	p.Squares[squareOf(0, 4)] = makePiece(game.White, game.King)
	p.Squares[squareOf(0, 7)] = makePiece(game.White, game.Rook)
	p.Squares[squareOf(7, 4)] = makePiece(game.Black, game.King)
	p.Castling = CastlingRights{WhiteKingside: true}
	// Black rook on f8 attacks f1, the square the king passes through.
	p.Squares[squareOf(7, 5)] = makePiece(game.Black, game.Rook)

	for _, lm := range p.LegalMoves() {
		if m, ok := lm.Move.(Move); ok && m.IsCastle {
			t.Fatalf("castling through an attacked square must be illegal")
		}
	}
}

func TestEnPassantCaptureRemovesThePawn(t *testing.T) {
	p := empty()
	p.Squares[squareOf(0, 4)] = makePiece(game.White, game.King)
	p.Squares[squareOf(7, 4)] = makePiece(game.Black, game.King)
	p.Squares[squareOf(4, 4)] = makePiece(game.White, game.Pawn) // e5
	p.Squares[squareOf(4, 3)] = makePiece(game.Black, game.Pawn) // d5, just double-pushed
	p.EnPassant = squareOf(5, 3)                                 // d6
	p.SideToMove = game.White

	var ep *Move
	for _, lm := range p.LegalMoves() {
		m := lm.Move.(Move)
		if m.IsEnPassant {
			mCopy := m
			ep = &mCopy
		}
	}
	if ep == nil {
		t.Fatalf("expected a legal en passant capture")
	}

	next := applyMove(p, *ep)
	if next.Squares[squareOf(4, 3)] != 0 {
		t.Fatalf("captured pawn must be removed from its actual square")
	}
	if next.Squares[squareOf(5, 3)].Type() != game.Pawn {
		t.Fatalf("capturing pawn must land on the en passant target square")
	}
}

func TestIsUnderCheckDetectsRookOnOpenFile(t *testing.T) {
	p := empty()
	p.Squares[squareOf(0, 4)] = makePiece(game.White, game.King)
	p.Squares[squareOf(7, 4)] = makePiece(game.Black, game.Rook)
	p.SideToMove = game.White

	if !p.IsUnderCheck() {
		t.Fatalf("expected the king to be in check from the rook on the same file")
	}
}

func TestHasMatingMaterialBareKingsIsFalse(t *testing.T) {
	p := empty()
	p.Squares[squareOf(0, 4)] = makePiece(game.White, game.King)
	p.Squares[squareOf(7, 4)] = makePiece(game.Black, game.King)
	if p.HasMatingMaterial() {
		t.Fatalf("bare kings must not have mating material")
	}
}

func TestHasMatingMaterialLoneRookIsTrue(t *testing.T) {
	p := empty()
	p.Squares[squareOf(0, 4)] = makePiece(game.White, game.King)
	p.Squares[squareOf(7, 4)] = makePiece(game.Black, game.King)
	p.Squares[squareOf(0, 0)] = makePiece(game.White, game.Rook)
	if !p.HasMatingMaterial() {
		t.Fatalf("a lone rook is sufficient mating material")
	}
}

func TestHashIsDeterministicAndChangesAfterAMove(t *testing.T) {
	p1 := NewInitialPosition()
	p2 := NewInitialPosition()
	if p1.Hash() != p2.Hash() {
		t.Fatalf("two freshly built initial positions must hash identically")
	}

	moved := p1.LegalMoves()[0].Board.(*Position)
	if moved.Hash() == p1.Hash() {
		t.Fatalf("hash must change after playing a move")
	}
}

func TestPieceBitboardMirrorsWhenBlackToMove(t *testing.T) {
	p := empty()
	p.Squares[squareOf(1, 0)] = makePiece(game.Black, game.Pawn) // a2, but Black to move
	p.SideToMove = game.Black

	bb := p.PieceBitboard(game.Pawn, true)
	// Mirrored: a2 (square 8) becomes a7 (square 48) in the canonical,
	// ours-at-the-bottom frame.
	want := uint64(1) << uint(squareOf(6, 0))
	if bb != want {
		t.Fatalf("PieceBitboard = %#x, want %#x (mirrored to a7)", bb, want)
	}
}
