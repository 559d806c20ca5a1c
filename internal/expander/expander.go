// Package expander implements the leaf expander: given a reserved leaf,
// either marks it terminal or allocates one child per legal move, in
// sibling-chain order matching move generation order.
package expander

import (
	"chessmcts/internal/game"
	"chessmcts/internal/node"
)

// NoCapturePlyLimit is the half-move count at or above which the fifty
// move rule declares a draw.
const NoCapturePlyLimit = 100

// RepetitionLimit is the prior-occurrence count at or above which a
// position is treated as a repetition draw.
const RepetitionLimit = 2

// Expand mutates the node at h in place: either marking it terminal with
// its fixed value, or allocating one child per legal move. The caller
// must hold h's reservation (n == 0, n_in_flight > 0); Expand itself does
// not take the tree lock, relying on that reservation to guarantee
// exclusive access.
func Expand(tree *node.Tree, h node.Handle) {
	n := tree.Get(h)
	board := n.Board

	if terminal, value := detectTerminal(tree, h, board); terminal {
		n.IsTerminal = true
		n.V = value
		n.FullDepth = node.FullDepthTerminalSentinel
		return
	}

	moves := board.LegalMoves()
	var prevSibling node.Handle = node.Nil
	for _, lm := range moves {
		ch := tree.Pool.Alloc()
		c := tree.Pool.Get(ch)
		c.Board = lm.Board
		c.Move = lm.Move
		c.Parent = h
		c.PlyCount = n.PlyCount + 1
		if lm.ResetsFiftyMove {
			c.NoCapturePly = 0
		} else {
			c.NoCapturePly = n.NoCapturePly + 1
		}

		if prevSibling == node.Nil {
			n.Child = ch
		} else {
			tree.Pool.Get(prevSibling).Sibling = ch
		}
		prevSibling = ch
	}
}

func detectTerminal(tree *node.Tree, h node.Handle, board game.Board) (bool, float32) {
	n := tree.Get(h)

	if len(board.LegalMoves()) == 0 {
		if board.IsUnderCheck() {
			return true, 1.0
		}
		return true, 0.0
	}
	if !board.HasMatingMaterial() {
		return true, 0.0
	}
	if n.NoCapturePly >= NoCapturePlyLimit {
		return true, 0.0
	}
	n.Repetitions = countRepetitions(tree, h, board.Hash())
	if n.Repetitions >= RepetitionLimit {
		return true, 0.0
	}
	return false, 0
}

// countRepetitions walks strict ancestors of h, counting how many share
// the same position fingerprint. This is tree bookkeeping, not a game
// rule, so it lives here rather than as a Board contract method.
func countRepetitions(tree *node.Tree, h node.Handle, target game.Fingerprint) int {
	count := 0
	cur := tree.Get(h).Parent
	for cur != node.Nil {
		n := tree.Get(cur)
		if n.Board != nil && n.Board.Hash() == target {
			count++
		}
		cur = n.Parent
	}
	return count
}
