package prefetch

import (
	"testing"

	"chessmcts/internal/compute"
	"chessmcts/internal/evalcache"
	"chessmcts/internal/expander"
	"chessmcts/internal/game/refchess"
	"chessmcts/internal/nn"
	"chessmcts/internal/node"
)

type stubEvaluator struct{}

func (stubEvaluator) NewComputation() nn.Computation { return &stubComputation{} }
func (stubEvaluator) Close() error                   { return nil }

type stubComputation struct{ n int }

func (c *stubComputation) AddInput(planes nn.InputPlanes, moveIndices []int) int {
	i := c.n
	c.n++
	return i
}
func (c *stubComputation) Size() int                       { return c.n }
func (c *stubComputation) Compute() error                  { return nil }
func (c *stubComputation) Value(i int) float32              { return 0 }
func (c *stubComputation) Policy(i int, moveIndex int) float32 { return 0 }

func buildVisitedRootWithChildren() *node.Tree {
	root := refchess.NewInitialPosition()
	tree := node.NewTree(root)
	expander.Expand(tree, tree.Root)
	tree.Get(tree.Root).N = 1 // pretend the root has already been visited once
	return tree
}

func TestRunNeverSpendsMoreThanBudget(t *testing.T) {
	tree := buildVisitedRootWithChildren()
	cache := evalcache.New(1024)
	batch := compute.New(cache, stubEvaluator{})

	const budget = 5
	spent := Run(tree, batch, 1.7, false, tree.Root, budget)

	if spent > budget {
		t.Fatalf("spent %d, must never exceed budget %d", spent, budget)
	}
	if batch.CacheMisses() != spent {
		t.Fatalf("cache misses (%d) should equal budget spent (%d) when nothing is pre-cached", batch.CacheMisses(), spent)
	}
}

func TestRunZeroBudgetSubmitsNothing(t *testing.T) {
	tree := buildVisitedRootWithChildren()
	cache := evalcache.New(1024)
	batch := compute.New(cache, stubEvaluator{})

	spent := Run(tree, batch, 1.7, false, tree.Root, 0)
	if spent != 0 {
		t.Fatalf("expected zero spend for zero budget, got %d", spent)
	}
	if batch.Size() != 0 {
		t.Fatalf("expected no items submitted")
	}
}

func TestRunAggressiveCachingSkipsAlreadyCachedLeavesForFree(t *testing.T) {
	tree := buildVisitedRootWithChildren()
	cache := evalcache.New(1024)

	// Pre-warm every child's position in the cache.
	for c := tree.Get(tree.Root).Child; c != node.Nil; c = tree.Get(c).Sibling {
		h := tree.Get(c).Board.Hash()
		cache.Insert(h, evalcache.Entry{Value: 0})
	}

	batch := compute.New(cache, stubEvaluator{})
	spent := Run(tree, batch, 1.7, true, tree.Root, 3)

	if batch.CacheMisses() != 0 {
		t.Fatalf("expected no NN misses once every child is cached, got %d", batch.CacheMisses())
	}
	// Aggressive caching treats already-warm leaves as free (0 spend), so
	// the recursion keeps exploring past budget-many of them without ever
	// registering a miss.
	_ = spent
}

func TestRunDoesNotMutateVisitCounts(t *testing.T) {
	tree := buildVisitedRootWithChildren()
	cache := evalcache.New(1024)
	batch := compute.New(cache, stubEvaluator{})

	var before []int64
	for c := tree.Get(tree.Root).Child; c != node.Nil; c = tree.Get(c).Sibling {
		before = append(before, tree.Get(c).N)
	}

	Run(tree, batch, 1.7, false, tree.Root, 4)

	i := 0
	for c := tree.Get(tree.Root).Child; c != node.Nil; c = tree.Get(c).Sibling {
		if tree.Get(c).N != before[i] {
			t.Fatalf("prefetch must never mutate n, child %d changed from %d to %d", i, before[i], tree.Get(c).N)
		}
		if tree.Get(c).NInFlight != 0 {
			t.Fatalf("prefetch must never reserve n_in_flight, child %d has %d", i, tree.Get(c).NInFlight)
		}
		i++
	}
}
