// Package encode implements the input-plane encoder: a pure function
// from a leaf node's ancestor history to a fixed stack of bit-planes.
// Eight history plies are walked via parent pointers, toggling
// perspective every step, 13 planes per ply (6 ours + 6 theirs + 1
// repetition flag), followed by an auxiliary block of castling rights,
// side-to-move, and a fifty-move flag. Each ply reads
// PieceBitboard(pt, ours) with ours inverted at odd depths, so perspective
// flips without needing a mirrored copy of the board.
package encode

import (
	"chessmcts/internal/game"
	"chessmcts/internal/nn"
	"chessmcts/internal/node"
)

// Encode returns the full input tensor for the node at h, reading its
// ancestor chain up to nn.NumHistoryPlies steps back. Positions beyond
// the actual game history (root's ancestors) leave their planes zero.
func Encode(tree *node.Tree, h node.Handle) nn.InputPlanes {
	var planes nn.InputPlanes

	leaf := tree.Get(h)
	flip := false
	cur := h

	for ply := 0; ply < nn.NumHistoryPlies; ply++ {
		n := tree.Get(cur)
		if n == nil || n.Board == nil {
			break
		}
		base := ply * nn.PlanesPerPly
		encodePly(&planes, base, n.Board, flip, n.Repetitions > 0)

		parent := n.Parent
		if parent == node.Nil {
			break
		}
		cur = parent
		flip = !flip
	}

	encodeAux(&planes, leaf.Board, leaf.NoCapturePly)
	return planes
}

// encodePly fills one ply's 13 planes from board, reading "ours"/"theirs"
// inverted when flip is set so that every ply is expressed from the
// leaf's own perspective.
func encodePly(planes *nn.InputPlanes, base int, board game.Board, flip bool, repeated bool) {
	pieceOrder := [6]game.PieceType{
		game.Pawn, game.Knight, game.Bishop, game.Rook, game.Queen, game.King,
	}
	for i, pt := range pieceOrder {
		ours := !flip
		theirs := flip
		planes[base+i] = board.PieceBitboard(pt, ours)
		planes[base+6+i] = board.PieceBitboard(pt, theirs)
	}
	if repeated {
		planes[base+12] = allOnes
	}
}

// encodeAux fills the auxiliary planes after the last history ply:
// castling rights (four bits), side-to-move flag, and a fifty-move flag.
func encodeAux(planes *nn.InputPlanes, board game.Board, noCapturePly int) {
	base := nn.NumHistoryPlies * nn.PlanesPerPly
	rights := board.CastlingRights()

	if rights.WeCanKingside {
		planes[base+0] = allOnes
	}
	if rights.WeCanQueenside {
		planes[base+1] = allOnes
	}
	if rights.TheyCanKingside {
		planes[base+2] = allOnes
	}
	if rights.TheyCanQueenside {
		planes[base+3] = allOnes
	}
	if board.Flipped() {
		planes[base+4] = allOnes
	}
	// Fifty-move counter as a scalar fill: represented as a solid plane
	// when active; the ONNX evaluator packs this bitmask into the
	// spatial tensor uniformly, so a full board of the same value stands
	// in for a scalar broadcast across all 64 squares.
	if noCapturePly > 0 {
		planes[base+5] = allOnes
	}
}

const allOnes = ^uint64(0)
