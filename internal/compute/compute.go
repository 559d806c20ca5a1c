// Package compute implements the caching computation: a transient batch
// tied to one NN dispatch that deduplicates leaf evaluations against the
// evaluation cache before anything is submitted to the network.
package compute

import (
	"fmt"

	"chessmcts/internal/evalcache"
	"chessmcts/internal/game"
	"chessmcts/internal/nn"
)

type item struct {
	hash        game.Fingerprint
	hit         bool
	cached      evalcache.Entry
	nnIndex     int
	moveIndices []int
}

// Batch accumulates AddInput/AddInputByHash calls for one NN dispatch and
// exposes a uniform (value, priors) readout over both cache hits and
// cache misses, in insertion order, once ComputeBlocking has run.
type Batch struct {
	cache *evalcache.Cache
	eval  nn.Evaluator
	comp  nn.Computation

	items  []item
	misses int
}

// New returns an empty batch backed by cache for dedup and eval for
// resolving misses.
func New(cache *evalcache.Cache, eval nn.Evaluator) *Batch {
	return &Batch{cache: cache, eval: eval, comp: eval.NewComputation()}
}

// AddInputByHash registers a cache lookup for h without providing planes.
// It reports whether h was already cached; the caller must call AddInput
// itself when it was not, since only the caller has the encoded planes
// and legal move indices at hand. On a hit, it registers a hit-readout
// item immediately.
func (b *Batch) AddInputByHash(h game.Fingerprint) bool {
	entry, ok := b.cache.Lookup(h)
	if ok {
		b.items = append(b.items, item{hash: h, hit: true, cached: entry})
	}
	return ok
}

// ContainsForPrefetch reports whether h is cached without registering a
// readout item, since the prefetcher only wants to know whether a
// position is already warm, not read its value back.
func (b *Batch) ContainsForPrefetch(h game.Fingerprint) bool {
	return b.cache.Contains(h)
}

// AddInput enqueues a cache-miss computation: planes to submit to the NN
// plus the dense move indices whose priors the caller wants back.
func (b *Batch) AddInput(h game.Fingerprint, planes nn.InputPlanes, moveIndices []int) {
	idx := b.comp.AddInput(planes, moveIndices)
	b.items = append(b.items, item{hash: h, hit: false, nnIndex: idx, moveIndices: moveIndices})
	b.misses++
}

// CacheMisses reports how many items are pending NN evaluation.
func (b *Batch) CacheMisses() int { return b.misses }

// Size reports the total number of items (hits and misses) that will be
// read back after ComputeBlocking.
func (b *Batch) Size() int { return len(b.items) }

// ComputeBlocking dispatches every miss item to the NN, then inserts each
// result into the cache keyed by its fingerprint.
func (b *Batch) ComputeBlocking() error {
	if b.misses == 0 {
		return nil
	}
	if err := b.comp.Compute(); err != nil {
		return fmt.Errorf("compute: nn dispatch: %w", err)
	}
	for i := range b.items {
		it := &b.items[i]
		if it.hit {
			continue
		}
		value := b.comp.Value(it.nnIndex)
		priors := make(map[int]float32, len(it.moveIndices))
		for _, mi := range it.moveIndices {
			priors[mi] = b.comp.Policy(it.nnIndex, mi)
		}
		it.cached = evalcache.Entry{Value: value, Priors: priors}
		b.cache.Insert(it.hash, it.cached)
	}
	return nil
}

// QVal returns the value output for the item at index i, in insertion
// order across both hits and misses.
func (b *Batch) QVal(i int) float32 {
	return b.items[i].cached.Value
}

// PVal returns the prior for moveIndex at item i.
func (b *Batch) PVal(i int, moveIndex int) float32 {
	return b.items[i].cached.Priors[moveIndex]
}
