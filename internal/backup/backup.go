// Package backup implements value application and ancestor-chain
// propagation: after NN evaluation, apply outputs to a leaf and walk its
// ancestors under the exclusive tree lock, updating visit counts, mean
// value, max depth and full depth.
package backup

import (
	"chessmcts/internal/node"
)

// ApplyOutput writes the NN's output onto a non-terminal leaf: v is
// stored as the value to move (the NN returns a value for the side that
// just moved into the leaf, so it is negated), and priorFor supplies each
// child's prior by its move's dense index. Terminal leaves already carry
// their fixed v from the expander and must not be passed here.
func ApplyOutput(tree *node.Tree, h node.Handle, qFromNN float32, priorFor func(moveIndex int) float32) {
	n := tree.Get(h)
	n.V = -qFromNN

	var sum float32
	for c := n.Child; c != node.Nil; c = tree.Get(c).Sibling {
		cn := tree.Get(c)
		cn.P = priorFor(cn.Move.AsNNIndex())
		sum += cn.P
	}
	if sum > 0 {
		for c := n.Child; c != node.Nil; c = tree.Get(c).Sibling {
			tree.Get(c).P /= sum
		}
	}
}

// Propagate walks from leaf h up to (but not past) root, alternating the
// sign of the backed-up value at each ancestor. bestRootChild is updated
// in place: it is the persistent, search-lifetime running choice of the
// root child with the greatest n, compared exactly once per ancestor
// that turns out to be a direct root child.
func Propagate(tree *node.Tree, root node.Handle, h node.Handle, bestRootChild *node.Handle) {
	tree.Lock()
	defer tree.Unlock()

	leaf := tree.Get(h)
	v := leaf.V

	curFullDepth := int32(0)
	if leaf.IsTerminal {
		curFullDepth = node.FullDepthTerminalSentinel
	}

	depth := int32(0)
	fullDepthUpdating := true
	for cur := h; ; {
		n := tree.Get(cur)
		depth++
		n.W += float64(v)
		n.N++
		n.NInFlight--
		n.Q = n.W / float64(n.N)
		v = -v

		if depth > n.MaxDepth {
			n.MaxDepth = depth
		}

		if fullDepthUpdating && n.FullDepth <= curFullDepth {
			curFullDepth = minChildFullDepth(tree, n)
			if curFullDepth >= n.FullDepth {
				n.FullDepth = curFullDepth + 1
			} else {
				fullDepthUpdating = false
			}
		}

		if n.Parent == root {
			if *bestRootChild == node.Nil || tree.Get(*bestRootChild).N < n.N {
				*bestRootChild = cur
			}
		}

		if cur == root {
			break
		}
		parent := n.Parent
		if parent == node.Nil {
			break
		}
		cur = parent
	}
}

// minChildFullDepth returns the minimum full_depth over n's children,
// treating a missing child slot as 0 (an unevaluated sibling still being
// expanded).
func minChildFullDepth(tree *node.Tree, n *node.Node) int32 {
	if n.Child == node.Nil {
		return 0
	}
	min := int32(-1)
	for c := n.Child; c != node.Nil; c = tree.Get(c).Sibling {
		cd := tree.Get(c).FullDepth
		if min == -1 || cd < min {
			min = cd
		}
	}
	if min == -1 {
		return 0
	}
	return min
}
