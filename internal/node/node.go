// Package node holds the search tree's storage: nodes allocated from a
// pool for the lifetime of one search, linked as a first-child/
// next-sibling chain, and the coarse reader/writer lock (nodes_mutex)
// that guards every mutation to the tree. Linking children as a chain
// instead of a slice keeps iteration order equal to move generation
// order and lets allocation stay a simple pointer bump.
package node

import (
	"sync"

	"chessmcts/internal/game"
)

// Handle is a stable reference to a Node inside a Pool. The zero value
// refers to the first node a pool allocates (a tree's root); use Nil for
// "no node".
type Handle int32

// Nil is the "no node" handle, used for absent parent/child/sibling links.
const Nil Handle = -1

// FullDepthTerminalSentinel marks a terminal node as explored to
// unbounded depth.
const FullDepthTerminalSentinel = 999

// Node is one position in the search tree.
type Node struct {
	Board game.Board
	Move  game.Move

	Parent  Handle
	Child   Handle
	Sibling Handle

	N         int64
	NInFlight int32
	W         float64
	Q         float64
	P         float32
	V         float32

	IsTerminal   bool
	Repetitions  int
	NoCapturePly int
	PlyCount     int

	MaxDepth  int32
	FullDepth int32
}

const blockSize = 4096

// Pool is a slab allocator for Node values. Nodes are appended to fixed-
// size blocks so that a returned *Node pointer stays valid for the life
// of the pool, even as the pool keeps growing. A plain growing slice
// would invalidate every pointer handed out before a backing-array
// reallocation.
type Pool struct {
	mu     sync.RWMutex
	blocks [][]Node
	count  int
}

// NewPool returns an empty node pool.
func NewPool() *Pool {
	return &Pool{}
}

// Alloc reserves a new zero-valued node and returns its handle.
// Amortized O(1): only appending a new block takes the pool's lock for
// longer than a pointer bump.
func (p *Pool) Alloc() Handle {
	p.mu.Lock()
	defer p.mu.Unlock()

	blockIdx := p.count / blockSize
	for blockIdx >= len(p.blocks) {
		p.blocks = append(p.blocks, make([]Node, blockSize))
	}
	offset := p.count % blockSize
	h := Handle(p.count)
	p.count++

	n := &p.blocks[blockIdx][offset]
	n.Parent, n.Child, n.Sibling = Nil, Nil, Nil
	return h
}

// Get returns the node for h, or nil if h is Nil.
func (p *Pool) Get(h Handle) *Node {
	if h == Nil {
		return nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return &p.blocks[h/blockSize][h%blockSize]
}

// Len reports how many nodes have been allocated.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.count
}

// Tree owns a Pool plus the reader/writer lock (nodes_mutex) that guards
// every mutation to node fields and to child/sibling links across the
// whole tree. Selection takes it exclusively only while updating
// NInFlight; its score-reading phase, and the whole of prefetch, take it
// shared; backup takes it exclusively.
type Tree struct {
	Pool *Pool
	Root Handle

	mu sync.RWMutex
}

// NewTree allocates a root node over rootBoard and returns the owning
// tree.
func NewTree(rootBoard game.Board) *Tree {
	pool := NewPool()
	root := pool.Alloc()
	n := pool.Get(root)
	n.Board = rootBoard
	return &Tree{Pool: pool, Root: root}
}

// Get returns the node for h.
func (t *Tree) Get(h Handle) *Node { return t.Pool.Get(h) }

// Lock acquires the tree's exclusive lock.
func (t *Tree) Lock() { t.mu.Lock() }

// Unlock releases the tree's exclusive lock.
func (t *Tree) Unlock() { t.mu.Unlock() }

// RLock acquires the tree's shared lock.
func (t *Tree) RLock() { t.mu.RLock() }

// RUnlock releases the tree's shared lock.
func (t *Tree) RUnlock() { t.mu.RUnlock() }
