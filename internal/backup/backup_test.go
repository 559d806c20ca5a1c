package backup

import (
	"testing"

	"chessmcts/internal/game"
	"chessmcts/internal/node"
)

func newTestTree() (*node.Tree, node.Handle) {
	tree := node.NewTree(nil)
	return tree, tree.Root
}

func TestPropagateUpdatesQAndNAtLeaf(t *testing.T) {
	tree, root := newTestTree()
	n := tree.Get(root)
	n.NInFlight = 1
	n.V = 0.6

	var best node.Handle = node.Nil
	Propagate(tree, root, root, &best)

	if n.N != 1 {
		t.Fatalf("N = %d, want 1", n.N)
	}
	if n.NInFlight != 0 {
		t.Fatalf("NInFlight = %d, want 0 (reservation consumed)", n.NInFlight)
	}
	if n.Q != 0.6 {
		t.Fatalf("Q = %v, want 0.6", n.Q)
	}
}

func TestPropagateAlternatesSignUpTheChain(t *testing.T) {
	tree, root := newTestTree()
	child := tree.Pool.Alloc()
	leaf := tree.Pool.Alloc()
	tree.Get(child).Parent = root
	tree.Get(leaf).Parent = child
	tree.Get(root).Child = child
	tree.Get(child).Child = leaf

	tree.Get(root).NInFlight = 1
	tree.Get(child).NInFlight = 1
	tree.Get(leaf).NInFlight = 1
	tree.Get(leaf).V = 0.4

	var best node.Handle = node.Nil
	Propagate(tree, root, leaf, &best)

	if tree.Get(leaf).Q != 0.4 {
		t.Fatalf("leaf Q = %v, want 0.4", tree.Get(leaf).Q)
	}
	if tree.Get(child).Q != -0.4 {
		t.Fatalf("child Q = %v, want -0.4 (sign flipped one hop up)", tree.Get(child).Q)
	}
	if tree.Get(root).Q != 0.4 {
		t.Fatalf("root Q = %v, want 0.4 (sign flipped twice)", tree.Get(root).Q)
	}
	for _, h := range []node.Handle{root, child, leaf} {
		if tree.Get(h).N != 1 {
			t.Fatalf("handle %v: N = %d, want 1", h, tree.Get(h).N)
		}
	}
}

func TestPropagateIncrementalMeanAcrossTwoVisits(t *testing.T) {
	tree, root := newTestTree()
	n := tree.Get(root)

	n.NInFlight = 1
	n.V = 1.0
	var best node.Handle
	Propagate(tree, root, root, &best)

	n.NInFlight = 1
	n.V = -1.0
	Propagate(tree, root, root, &best)

	if n.N != 2 {
		t.Fatalf("N = %d, want 2", n.N)
	}
	if n.Q != 0 {
		t.Fatalf("Q = %v, want 0 (mean of +1 and -1)", n.Q)
	}
}

func TestPropagateFullDepthClimbsWhenChildrenAreFresh(t *testing.T) {
	// A newly expanded, non-terminal leaf whose own children are all still
	// unvisited (full_depth == 0) should itself become full_depth == 1,
	// and that should climb one more step to its parent.
	tree, root := newTestTree()
	leaf := tree.Pool.Alloc()
	c1 := tree.Pool.Alloc()
	c2 := tree.Pool.Alloc()
	tree.Get(leaf).Parent = root
	tree.Get(c1).Parent = leaf
	tree.Get(c2).Parent = leaf
	tree.Get(root).Child = leaf
	tree.Get(leaf).Child = c1
	tree.Get(c1).Sibling = c2

	tree.Get(root).NInFlight = 1
	tree.Get(leaf).NInFlight = 1
	tree.Get(leaf).V = 0

	var best node.Handle
	Propagate(tree, root, leaf, &best)

	if tree.Get(leaf).FullDepth != 1 {
		t.Fatalf("leaf full_depth = %d, want 1", tree.Get(leaf).FullDepth)
	}
	if tree.Get(root).FullDepth != 2 {
		t.Fatalf("root full_depth = %d, want 2 (climbs one more step above its now-full leaf)", tree.Get(root).FullDepth)
	}
}

func TestPropagateFullDepthDoesNotClimbPastATerminalLeaf(t *testing.T) {
	// A terminal leaf has no children of its own, so per spec.md section
	// 4.5 its "min over children" recomputation trivially reads 0, which
	// is below its sentinel full_depth and immediately halts propagation
	// — a terminal descendant alone must not force its ancestors' full_
	// depth forward.
	tree, root := newTestTree()
	leaf := tree.Pool.Alloc()
	tree.Get(leaf).Parent = root
	tree.Get(root).Child = leaf
	tree.Get(leaf).IsTerminal = true
	tree.Get(leaf).FullDepth = node.FullDepthTerminalSentinel
	tree.Get(leaf).V = 0.1

	tree.Get(root).NInFlight = 1
	tree.Get(leaf).NInFlight = 1

	var best node.Handle
	Propagate(tree, root, leaf, &best)

	if tree.Get(leaf).FullDepth != node.FullDepthTerminalSentinel {
		t.Fatalf("terminal leaf full_depth must be untouched by backup, got %d", tree.Get(leaf).FullDepth)
	}
	if tree.Get(root).FullDepth != 0 {
		t.Fatalf("root full_depth = %d, want 0 (a single terminal child must not force root's full_depth forward)", tree.Get(root).FullDepth)
	}
}

func TestPropagateTracksBestRootChildByVisitCount(t *testing.T) {
	tree, root := newTestTree()
	a := tree.Pool.Alloc()
	b := tree.Pool.Alloc()
	tree.Get(a).Parent = root
	tree.Get(b).Parent = root
	tree.Get(root).Child = a
	tree.Get(a).Sibling = b

	var best node.Handle = node.Nil

	tree.Get(a).NInFlight = 1
	tree.Get(root).NInFlight = 1
	tree.Get(a).V = 0
	Propagate(tree, root, a, &best)
	if best != a {
		t.Fatalf("expected a to be best after its first visit")
	}

	tree.Get(b).NInFlight = 1
	tree.Get(root).NInFlight = 1
	tree.Get(b).V = 0
	Propagate(tree, root, b, &best)
	if best != a {
		t.Fatalf("expected a to remain best: equal visit counts must not displace the incumbent")
	}

	tree.Get(b).NInFlight = 1
	tree.Get(root).NInFlight = 1
	tree.Get(b).V = 0
	Propagate(tree, root, b, &best)
	if best != b {
		t.Fatalf("expected b to overtake once strictly more visited")
	}
}

func TestApplyOutputNegatesValueAndNormalizesPriors(t *testing.T) {
	tree, root := newTestTree()
	c1 := tree.Pool.Alloc()
	c2 := tree.Pool.Alloc()
	tree.Get(root).Child = c1
	tree.Get(c1).Sibling = c2
	tree.Get(c1).Move = fakeMove{idx: 0}
	tree.Get(c2).Move = fakeMove{idx: 1}

	raw := map[int]float32{0: 2.0, 1: 2.0}
	ApplyOutput(tree, root, 0.7, func(moveIndex int) float32 { return raw[moveIndex] })

	if tree.Get(root).V != -0.7 {
		t.Fatalf("V = %v, want -0.7", tree.Get(root).V)
	}
	if tree.Get(c1).P != 0.5 || tree.Get(c2).P != 0.5 {
		t.Fatalf("expected priors normalized to 0.5 each, got %v %v", tree.Get(c1).P, tree.Get(c2).P)
	}
}

type fakeMove struct{ idx int }

func (m fakeMove) AsNNIndex() int   { return m.idx }
func (m fakeMove) Mirror() game.Move { return m }
