// Package prefetch implements the speculative batch-filling descent:
// given remaining budget B, walk the tree and submit up to B distinct
// leaf positions to the caching computation, so the NN dispatch that
// follows a gather round is never smaller than it needs to be.
package prefetch

import (
	"math"
	"sort"

	"chessmcts/internal/compute"
	"chessmcts/internal/encode"
	"chessmcts/internal/node"
	"chessmcts/internal/selector"
)

// Run descends from root, submitting up to budget distinct leaf positions
// to batch, and returns the amount of budget actually spent. It runs
// under a shared tree lock for its entire recursion and never mutates n
// or n_in_flight.
func Run(tree *node.Tree, batch *compute.Batch, cpuct float64, aggressiveCaching bool, root node.Handle, budget int) int {
	tree.RLock()
	defer tree.RUnlock()
	return recurse(tree, batch, cpuct, aggressiveCaching, root, budget)
}

func recurse(tree *node.Tree, batch *compute.Batch, cpuct float64, aggressiveCaching bool, h node.Handle, budget int) int {
	if budget <= 0 {
		return 0
	}
	n := tree.Get(h)

	if n.N == 0 && n.NInFlight == 0 {
		hash := n.Board.Hash()
		alreadyCached := batch.ContainsForPrefetch(hash)
		if alreadyCached {
			if aggressiveCaching {
				return 0
			}
			return 1
		}
		moves := n.Board.LegalMoves()
		indices := make([]int, len(moves))
		for i, lm := range moves {
			indices[i] = lm.Move.AsNNIndex()
		}
		batch.AddInput(hash, encode.Encode(tree, h), indices)
		return 1
	}

	if n.Child == node.Nil {
		return 0
	}

	type scored struct {
		score float64
		child node.Handle
	}
	var children []scored
	factor := cpuct * math.Sqrt(float64(n.N)+1)
	for c := n.Child; c != node.Nil; c = tree.Get(c).Sibling {
		children = append(children, scored{score: selector.Score(tree.Get(c), factor), child: c})
	}
	sort.Slice(children, func(i, j int) bool { return children[i].score < children[j].score })

	spentTotal := 0
	remaining := budget
	childBudget := remaining
	for i, sc := range children {
		if remaining <= 0 {
			break
		}
		if i < len(children)-1 {
			// Recompute for every child but the last, so the last child
			// simply inherits whatever budget the previous iteration left
			// it at, even if that now exceeds what remains overall. Not
			// re-clamped: a deliberate approximation, not a bug.
			c := tree.Get(sc.child)
			q := 0.0
			if c.N > 0 {
				q = c.Q
			}
			next := children[i+1].score
			if next > q {
				want := int(float64(c.P)*factor/(next-q)-float64(c.N)-float64(c.NInFlight)) + 1
				childBudget = minInt(remaining, want)
			} else {
				childBudget = remaining
			}
		}
		spent := recurse(tree, batch, cpuct, aggressiveCaching, sc.child, childBudget)
		remaining -= spent
		spentTotal += spent
	}
	return spentTotal
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
