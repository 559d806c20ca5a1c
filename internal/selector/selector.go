// Package selector implements the PUCT leaf selector: tree descent under
// virtual loss, coordinated so concurrent workers explore distinct paths
// without holding the tree lock for the whole descent.
package selector

import (
	"math"

	"chessmcts/internal/node"
)

// Selector descends a tree using a fixed exploration constant.
type Selector struct {
	Cpuct float64
}

// New returns a selector using cpuct for every descent.
func New(cpuct float64) *Selector {
	return &Selector{Cpuct: cpuct}
}

// Select performs one reservation-and-descent pass from tree.Root and
// returns the reserved leaf. ok is false when the only reachable leaf was
// already reserved by another worker (the "busy" signal); in that case
// every ancestor's n_in_flight reservation taken during this call has
// already been unwound.
func (s *Selector) Select(tree *node.Tree) (leaf node.Handle, ok bool) {
	var path []node.Handle
	cur := tree.Root

	for {
		tree.Lock()
		n := tree.Get(cur)
		if n.N == 0 && n.NInFlight > 0 {
			// Reserved by another worker: unwind every reservation this
			// call made along path.
			for _, h := range path {
				tree.Get(h).NInFlight--
			}
			tree.Unlock()
			return node.Nil, false
		}
		n.NInFlight++
		path = append(path, cur)
		hasChildren := n.Child != node.Nil
		tree.Unlock()

		if !hasChildren {
			return cur, true
		}

		next := s.argmaxChild(tree, cur)
		cur = next
	}
}

// argmaxChild reads scores under a shared lock and returns the
// highest-scoring child, ties broken by first-occurrence order.
func (s *Selector) argmaxChild(tree *node.Tree, parent node.Handle) node.Handle {
	tree.RLock()
	defer tree.RUnlock()

	p := tree.Get(parent)
	factor := s.Cpuct * math.Sqrt(float64(p.N)+1)

	var best node.Handle = node.Nil
	bestScore := math.Inf(-1)
	for c := p.Child; c != node.Nil; c = tree.Get(c).Sibling {
		score := Score(tree.Get(c), factor)
		if score > bestScore {
			bestScore = score
			best = c
		}
	}
	return best
}

// Score computes the PUCT score for a single child given its parent's
// factor = cpuct * sqrt(N_parent + 1):
//
//	score = Q + factor * P / (1 + N + NInFlight)
func Score(child *node.Node, factor float64) float64 {
	q := 0.0
	if child.N > 0 {
		q = child.Q
	}
	u := float64(child.P) / (1 + float64(child.N) + float64(child.NInFlight))
	return q + factor*u
}
