package refchess

import "chessmcts/internal/game"

// NoSquare marks the absence of an en-passant target.
const NoSquare = -1

// Position is one chess position: piece placement, side to move,
// castling rights, en-passant target, and the fifty-move counter.
type Position struct {
	Squares       [NumSquares]Piece
	SideToMove    game.Side
	Castling      CastlingRights
	EnPassant     int
	HalfmoveClock int
	hash          uint64
	hashValid     bool
}

// NewInitialPosition returns the standard chess starting position.
func NewInitialPosition() *Position {
	p := &Position{SideToMove: game.White, EnPassant: NoSquare}
	back := [8]game.PieceType{
		game.Rook, game.Knight, game.Bishop, game.Queen,
		game.King, game.Bishop, game.Knight, game.Rook,
	}
	for f := 0; f < Files; f++ {
		p.Squares[squareOf(0, f)] = makePiece(game.White, back[f])
		p.Squares[squareOf(1, f)] = makePiece(game.White, game.Pawn)
		p.Squares[squareOf(6, f)] = makePiece(game.Black, game.Pawn)
		p.Squares[squareOf(7, f)] = makePiece(game.Black, back[f])
	}
	p.Castling = CastlingRights{true, true, true, true}
	return p
}

// Clone returns a deep copy suitable for mutating into a successor
// position.
func (p *Position) Clone() *Position {
	np := *p
	return &np
}

func (p *Position) pieceAt(sq int) Piece { return p.Squares[sq] }

// Hash returns this position's Zobrist fingerprint, computed lazily and
// cached on first use.
func (p *Position) Hash() game.Fingerprint {
	if !p.hashValid {
		p.hash = computeHash(p)
		p.hashValid = true
	}
	return game.Fingerprint(p.hash)
}

// Flipped reports whether Black is to move here, meaning bitboards and
// move indices are expressed in the vertically-mirrored, "ours at the
// bottom" canonical frame.
func (p *Position) Flipped() bool { return p.SideToMove == game.Black }

// CastlingRights maps this position's absolute castling rights into the
// side-to-move-relative "we"/"they" terms the contract wants.
func (p *Position) CastlingRights() game.CastlingRights {
	if p.SideToMove == game.White {
		return game.CastlingRights{
			WeCanKingside:    p.Castling.WhiteKingside,
			WeCanQueenside:   p.Castling.WhiteQueenside,
			TheyCanKingside:  p.Castling.BlackKingside,
			TheyCanQueenside: p.Castling.BlackQueenside,
		}
	}
	return game.CastlingRights{
		WeCanKingside:    p.Castling.BlackKingside,
		WeCanQueenside:   p.Castling.BlackQueenside,
		TheyCanKingside:  p.Castling.WhiteKingside,
		TheyCanQueenside: p.Castling.WhiteQueenside,
	}
}

// PieceBitboard returns the occupancy bitboard for one piece type
// belonging to the side to move (ours) or its opponent (theirs),
// expressed in the canonical mirrored frame when Flipped() is true.
func (p *Position) PieceBitboard(pt game.PieceType, ours bool) uint64 {
	side := p.SideToMove
	if !ours {
		side = side.Opposite()
	}
	flipped := p.Flipped()

	var bb uint64
	for sq := 0; sq < NumSquares; sq++ {
		pc := p.Squares[sq]
		if pc == 0 || pc.Type() != pt || pc.Side() != side {
			continue
		}
		out := sq
		if flipped {
			out = mirrorSquare(out)
		}
		bb |= 1 << uint(out)
	}
	return bb
}

// HasMatingMaterial reports whether either side retains enough material
// to deliver checkmate: any pawn, rook, or queen, or two or more minor
// pieces in total (on one side or one on each side), is sufficient; bare
// kings, or a single minor piece against a bare king, is not.
func (p *Position) HasMatingMaterial() bool {
	var whiteMinor, blackMinor int
	for sq := 0; sq < NumSquares; sq++ {
		pc := p.Squares[sq]
		if pc == 0 {
			continue
		}
		switch pc.Type() {
		case game.Pawn, game.Rook, game.Queen:
			return true
		case game.Knight, game.Bishop:
			if pc.Side() == game.White {
				whiteMinor++
			} else {
				blackMinor++
			}
		}
	}
	return whiteMinor >= 2 || blackMinor >= 2 || (whiteMinor >= 1 && blackMinor >= 1)
}
