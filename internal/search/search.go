// Package search implements the orchestrator: the worker loop, stop
// conditions, and progress reporting that drive the selector, expander,
// prefetcher, backup, and caching computation together over one tree.
//
// The worker pool runs on golang.org/x/sync/errgroup rather than a plain
// sync.WaitGroup, so a fatal NN error from any one worker propagates and
// stops the whole group without a hand-rolled error channel.
package search

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"chessmcts/internal/backup"
	"chessmcts/internal/compute"
	"chessmcts/internal/encode"
	"chessmcts/internal/evalcache"
	"chessmcts/internal/expander"
	"chessmcts/internal/game"
	"chessmcts/internal/nn"
	"chessmcts/internal/node"
	"chessmcts/internal/prefetch"
	"chessmcts/internal/selector"
)

// Default option values.
const (
	DefaultMinibatchSize      = 16
	DefaultMaxPrefetch        = 64
	DefaultAggressiveCaching  = false
	DefaultCpuctCentiunits    = 170
	DefaultEvalCacheCapacity  = 500_000
)

// Options configures one orchestrator. Values are validated and clamped
// at construction, falling back to the defaults when out of range.
type Options struct {
	MinibatchSize      int
	MaxPrefetch        int
	AggressiveCaching  bool
	CpuctCentiunits    int
	NumWorkers         int
	EvalCacheCapacity  int
}

func (o *Options) clamp() {
	if o.MinibatchSize < 1 || o.MinibatchSize > 1024 {
		o.MinibatchSize = DefaultMinibatchSize
	}
	if o.MaxPrefetch < 0 || o.MaxPrefetch > 1024 {
		o.MaxPrefetch = DefaultMaxPrefetch
	}
	if o.CpuctCentiunits < 0 || o.CpuctCentiunits > 9999 {
		o.CpuctCentiunits = DefaultCpuctCentiunits
	}
	if o.NumWorkers < 1 {
		o.NumWorkers = 1
	}
	if o.EvalCacheCapacity <= 0 {
		o.EvalCacheCapacity = DefaultEvalCacheCapacity
	}
}

func (o Options) cpuct() float64 { return float64(o.CpuctCentiunits) / 100 }

// Limits bounds one search. A zero or negative field disables that
// limit.
type Limits struct {
	Playouts int64
	Visits   int64
	TimeMs   int64
}

// Info is one progress report, emitted to the info callback.
type Info struct {
	Depth    int32
	SelDepth int32
	TimeMs   int64
	Nodes    int64
	HashFull int64
	NPS      int64
	ScoreCP  int64
	PV       []game.Move
	Comment  string
}

// BestMove is the result delivered exactly once per search.
type BestMove struct {
	Move       game.Move
	PonderMove game.Move
}

// Callbacks are invoked from worker goroutines; implementations must be
// safe to call concurrently, or do their own synchronization.
type Callbacks struct {
	OnInfo     func(Info)
	OnBestMove func(BestMove)
}

// Orchestrator runs one parallel search over one tree.
type Orchestrator struct {
	opts  Options
	tree  *node.Tree
	cache *evalcache.Cache
	eval  nn.Evaluator
	cb    Callbacks

	sel *selector.Selector

	limits        Limits
	initialVisits int64

	countersMu       sync.Mutex
	stop             bool
	respondedBestMove bool

	totalPlayouts int64
	bestRootChild node.Handle

	startTime time.Time

	lastReportedBest  node.Handle
	lastReportedDepth int32
	lastReportedSeen  int32

	group  *errgroup.Group
	cancel context.CancelFunc
}

// New constructs an orchestrator over root, ready to Run once. eval and
// cache are shared across successive searches; tree is fresh per search.
func New(root game.Board, eval nn.Evaluator, cache *evalcache.Cache, opts Options, cb Callbacks) *Orchestrator {
	opts.clamp()
	if cache == nil {
		cache = evalcache.New(opts.EvalCacheCapacity)
	}
	return &Orchestrator{
		opts:          opts,
		tree:          node.NewTree(root),
		cache:         cache,
		eval:          eval,
		cb:            cb,
		sel:           selector.New(opts.cpuct()),
		bestRootChild: node.Nil,
	}
}

// Run drives the worker pool until a stop condition fires or ctx is
// canceled, then invokes the best-move callback exactly once and
// returns. Run blocks until every worker has exited.
func (o *Orchestrator) Run(ctx context.Context, limits Limits) error {
	o.limits = limits
	o.startTime = time.Now()
	o.lastReportedBest = node.Nil

	ctx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	g, gctx := errgroup.WithContext(ctx)
	o.group = g

	for i := 0; i < o.opts.NumWorkers; i++ {
		g.Go(func() error {
			return o.workerLoop(gctx)
		})
	}

	err := g.Wait()
	o.finish()
	return err
}

// Stop requests a clean halt; the current iteration of every worker
// finishes before they observe it.
func (o *Orchestrator) Stop() {
	o.countersMu.Lock()
	o.stop = true
	o.countersMu.Unlock()
}

// Abort requests an immediate halt and suppresses the best-move callback,
// treating the search as "already responded".
func (o *Orchestrator) Abort() {
	o.countersMu.Lock()
	o.stop = true
	o.respondedBestMove = true
	o.countersMu.Unlock()
	if o.cancel != nil {
		o.cancel()
	}
}

// Wait blocks until every worker has exited. Run already does this
// internally; Wait is exposed for callers that started Run in a
// goroutine of their own.
func (o *Orchestrator) Wait() error {
	if o.group == nil {
		return nil
	}
	return o.group.Wait()
}

func (o *Orchestrator) workerLoop(ctx context.Context) error {
	for {
		if err := o.iteration(); err != nil {
			o.Abort()
			return err
		}
		o.countersMu.Lock()
		stopped := o.stop
		o.countersMu.Unlock()
		if stopped {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		default:
		}
	}
}

// iteration runs one gather/prefetch/dispatch/backup round, then checks
// stop conditions and progress.
func (o *Orchestrator) iteration() error {
	batch := compute.New(o.cache, o.eval)
	var gathered []node.Handle
	submittedIndex := make(map[node.Handle]int)

	for i := 0; i < o.opts.MinibatchSize; i++ {
		if i > 0 && batch.CacheMisses() == 0 {
			break
		}
		leaf, ok := o.sel.Select(o.tree)
		if !ok {
			break
		}
		n := o.tree.Get(leaf)
		if n.N == 0 && n.Child == node.Nil && !n.IsTerminal {
			expander.Expand(o.tree, leaf)
		}
		gathered = append(gathered, leaf)
		if n.IsTerminal {
			continue
		}
		submittedIndex[leaf] = o.submit(batch, leaf)
	}

	if batch.CacheMisses() > 0 && batch.CacheMisses() < o.opts.MaxPrefetch {
		prefetch.Run(o.tree, batch, o.sel.Cpuct, o.opts.AggressiveCaching, o.tree.Root, o.opts.MaxPrefetch-batch.CacheMisses())
	}

	if batch.Size() > 0 {
		if err := batch.ComputeBlocking(); err != nil {
			return fmt.Errorf("search: nn evaluation failed: %w", err)
		}
	}

	for _, leaf := range gathered {
		n := o.tree.Get(leaf)
		if n.IsTerminal {
			backup.Propagate(o.tree, o.tree.Root, leaf, &o.bestRootChild)
			continue
		}
		idx := submittedIndex[leaf]
		qVal := batch.QVal(idx)
		backup.ApplyOutput(o.tree, leaf, qVal, func(moveIndex int) float32 {
			return batch.PVal(idx, moveIndex)
		})
		backup.Propagate(o.tree, o.tree.Root, leaf, &o.bestRootChild)
	}

	o.countersMu.Lock()
	o.totalPlayouts += int64(len(gathered))
	o.countersMu.Unlock()

	o.maybeReportProgress()
	o.maybeTriggerStop()
	return nil
}

// submit registers leaf's position with batch, either as a cache-hit
// readout or a fresh NN input, and returns its index for later readout.
func (o *Orchestrator) submit(batch *compute.Batch, leaf node.Handle) int {
	n := o.tree.Get(leaf)
	hash := n.Board.Hash()
	if batch.AddInputByHash(hash) {
		return batch.Size() - 1
	}
	moves := n.Board.LegalMoves()
	indices := make([]int, len(moves))
	for i, lm := range moves {
		indices[i] = lm.Move.AsNNIndex()
	}
	batch.AddInput(hash, encode.Encode(o.tree, leaf), indices)
	return batch.Size() - 1
}

func (o *Orchestrator) maybeTriggerStop() {
	o.countersMu.Lock()
	defer o.countersMu.Unlock()

	if !o.stop {
		if o.limits.Playouts > 0 && o.totalPlayouts >= o.limits.Playouts {
			o.stop = true
		}
		if o.limits.Visits > 0 && o.totalPlayouts+o.initialVisits >= o.limits.Visits {
			o.stop = true
		}
		if o.limits.TimeMs > 0 && time.Since(o.startTime).Milliseconds() >= o.limits.TimeMs {
			o.stop = true
		}
	}

	if o.stop && !o.respondedBestMove {
		o.respondedBestMove = true
		go o.respond()
	}
}

func (o *Orchestrator) respond() {
	o.reportProgress(true)
	bm := o.bestMove()
	if o.cb.OnBestMove != nil {
		o.cb.OnBestMove(bm)
	}
}

func (o *Orchestrator) finish() {
	o.countersMu.Lock()
	already := o.respondedBestMove
	o.respondedBestMove = true
	o.countersMu.Unlock()
	if !already {
		o.respond()
	}
}

// bestMove selects the root child with the greatest n+n_in_flight. Its
// ponder move is recursively the best child of that child. A root with
// no children (terminal at search start, or aborted before any
// iteration) yields null moves.
//
// Reads the tree under its shared lock: backup.Propagate mutates exactly
// these fields (n, n_in_flight, the child/sibling chain) under the
// exclusive lock from other, still-running workers.
func (o *Orchestrator) bestMove() BestMove {
	o.tree.RLock()
	defer o.tree.RUnlock()

	root := o.tree.Get(o.tree.Root)
	best := bestChild(o.tree, o.tree.Root)
	if best == node.Nil {
		return BestMove{}
	}
	bestNode := o.tree.Get(best)
	move := bestNode.Move
	if !root.Board.Flipped() {
		move = move.Mirror()
	}

	var ponder game.Move
	ponderChild := bestChild(o.tree, best)
	if ponderChild != node.Nil {
		pc := o.tree.Get(ponderChild)
		ponder = pc.Move
		if bestNode.Board.Flipped() {
			ponder = ponder.Mirror()
		}
	}
	return BestMove{Move: move, PonderMove: ponder}
}

// bestChild returns parent's child with the greatest n+n_in_flight, ties
// broken by first-occurrence order (strict > against the running best).
func bestChild(tree *node.Tree, parent node.Handle) node.Handle {
	p := tree.Get(parent)
	var best node.Handle = node.Nil
	var bestScore int64 = -1
	for c := p.Child; c != node.Nil; c = tree.Get(c).Sibling {
		cn := tree.Get(c)
		score := cn.N + int64(cn.NInFlight)
		if score > bestScore {
			bestScore = score
			best = c
		}
	}
	return best
}

// maybeReportProgress reads root.FullDepth/MaxDepth and bestRootChild under
// the tree's shared lock, since backup.Propagate mutates all three under
// the exclusive lock from other workers while this one is between
// iterations.
func (o *Orchestrator) maybeReportProgress() {
	o.tree.RLock()
	root := o.tree.Get(o.tree.Root)
	depth := root.FullDepth
	seldepth := root.MaxDepth
	best := o.bestRootChild
	o.tree.RUnlock()

	changed := best != o.lastReportedBest || depth != o.lastReportedDepth || seldepth != o.lastReportedSeen
	if !changed {
		return
	}
	o.lastReportedBest = best
	o.lastReportedDepth = depth
	o.lastReportedSeen = seldepth
	o.reportProgress(false)
}

// reportProgress reads tree node fields under the shared lock and
// o.totalPlayouts under countersMu, matching the locks their writers use.
func (o *Orchestrator) reportProgress(final bool) {
	if o.cb.OnInfo == nil {
		return
	}

	o.countersMu.Lock()
	totalPlayouts := o.totalPlayouts
	o.countersMu.Unlock()

	o.tree.RLock()
	defer o.tree.RUnlock()

	root := o.tree.Get(o.tree.Root)
	elapsed := time.Since(o.startTime).Milliseconds()
	nodes := totalPlayouts + o.initialVisits

	var nps int64
	if elapsed > 0 {
		nps = totalPlayouts * 1000 / elapsed
	}

	var scoreCP int64
	var pv []game.Move
	if o.bestRootChild != node.Nil {
		bn := o.tree.Get(o.bestRootChild)
		scoreCP = int64(scoreFromQ(bn.Q))
		pv = buildPV(o.tree, o.tree.Root, o.bestRootChild)
	}

	comment := ""
	if final {
		comment = "final"
	}

	o.cb.OnInfo(Info{
		Depth:    root.FullDepth,
		SelDepth: root.MaxDepth,
		TimeMs:   elapsed,
		Nodes:    nodes,
		HashFull: o.cache.HashFullPermille(),
		NPS:      nps,
		ScoreCP:  scoreCP,
		PV:       pv,
		Comment:  comment,
	})
}

// scoreFromQ converts a mean value into centipawns: score_cp = -191 *
// ln(2/(q*0.99+1) - 1). Kept bit-for-bit identical to this formula since
// external tooling parses it.
func scoreFromQ(q float64) float64 {
	return -191 * math.Log(2/(q*0.99+1)-1)
}

// buildPV follows the best-child chain from root, mirroring each move
// exactly as bestMove does for the top-level best move.
func buildPV(tree *node.Tree, root node.Handle, firstChild node.Handle) []game.Move {
	var pv []game.Move
	cur := firstChild
	for cur != node.Nil {
		parent := tree.Get(cur).Parent
		parentBoard := tree.Get(parent).Board
		move := tree.Get(cur).Move
		if !parentBoard.Flipped() {
			move = move.Mirror()
		}
		pv = append(pv, move)
		cur = bestChild(tree, cur)
	}
	return pv
}
