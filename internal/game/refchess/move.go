package refchess

import "chessmcts/internal/game"

// NoPiece marks the absence of a promotion.
const NoPiece game.PieceType = -1

// Move is a from/to pair with optional promotion, plus the orientation
// of the board it was generated from (needed to compute AsNNIndex in the
// same canonical frame the encoder uses).
type Move struct {
	From, To  int
	Promotion game.PieceType
	IsCastle  bool
	IsEnPassant bool
	flipped   bool
}

var _ game.Move = Move{}

// AsNNIndex encodes this move into the dense AlphaZero-style policy
// index space (73 planes per origin square: 56 queen-line moves, 8
// knight moves, 9 underpromotions), matching nn.PolicySize = 8*8*73.
// The move's own squares are mirrored first when it was generated from a
// Flipped position, so policy indices always live in the same canonical
// frame the input encoder's planes do.
func (m Move) AsNNIndex() int {
	from, to := m.From, m.To
	if m.flipped {
		from, to = mirrorSquare(from), mirrorSquare(to)
	}
	plane := movePlane(from, to, m.Promotion)
	return from*73 + plane
}

// Mirror returns this move reflected to the opposite board orientation,
// for reporting in external coordinates.
func (m Move) Mirror() game.Move {
	m.From = mirrorSquare(m.From)
	m.To = mirrorSquare(m.To)
	m.flipped = !m.flipped
	return m
}

var queenDirs = [8][2]int{
	{1, 0}, {1, 1}, {0, 1}, {-1, 1},
	{-1, 0}, {-1, -1}, {0, -1}, {1, -1},
}

func movePlane(from, to int, promo game.PieceType) int {
	fr, ff := rankOf(from), fileOf(from)
	tr, tf := rankOf(to), fileOf(to)
	dr, df := tr-fr, tf-ff

	if promo != NoPiece && promo != game.Queen {
		// Underpromotion: 3 relative directions (capture-left, straight,
		// capture-right) x 3 pieces (knight, bishop, rook), planes 64-72.
		dirIdx := 1 // straight
		if df < 0 {
			dirIdx = 0
		} else if df > 0 {
			dirIdx = 2
		}
		pieceIdx := 0
		switch promo {
		case game.Knight:
			pieceIdx = 0
		case game.Bishop:
			pieceIdx = 1
		case game.Rook:
			pieceIdx = 2
		}
		return 64 + dirIdx*3 + pieceIdx
	}

	if isKnightDelta(dr, df) {
		for i, d := range knightDeltas {
			if d[0] == dr && d[1] == df {
				return 56 + i
			}
		}
	}

	// Queen-line move (includes queen promotions, which land on the
	// same geometric line as a normal pawn-forward or pawn-capture move).
	dirIdx, dist := queenDirIndex(dr, df)
	return dirIdx*7 + (dist - 1)
}

func isKnightDelta(dr, df int) bool {
	a, b := abs(dr), abs(df)
	return (a == 1 && b == 2) || (a == 2 && b == 1)
}

func queenDirIndex(dr, df int) (dirIdx, dist int) {
	sr, sf := sign(dr), sign(df)
	dist = abs(dr)
	if abs(df) > dist {
		dist = abs(df)
	}
	if dist == 0 {
		dist = 1
	}
	for i, d := range queenDirs {
		if d[0] == sr && d[1] == sf {
			return i, dist
		}
	}
	return 0, dist
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func sign(x int) int {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}
