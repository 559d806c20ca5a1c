// Package nn declares the contract the search core uses to evaluate leaf
// positions, plus the plane layout the encoder produces for it. The
// search core never talks to a neural network directly: it only ever
// talks to Evaluator, so a test can swap in a stub without linking ONNX
// Runtime at all.
package nn

// NumHistoryPlies is how many past positions (including the current one)
// feed the encoder.
const NumHistoryPlies = 8

// PlanesPerPly is the per-history-ply plane count: 6 own-piece bitboard
// planes, 6 opponent-piece bitboard planes, and 1 repetition-flag plane.
const PlanesPerPly = 13

// AuxPlanes is the number of auxiliary planes appended after history:
// four castling-rights planes, a side-to-move plane, and a fifty-move
// counter plane, followed by two planes the encoder leaves zero.
const AuxPlanes = 8

// TotalPlanes is the full input tensor depth.
const TotalPlanes = NumHistoryPlies*PlanesPerPly + AuxPlanes

// BoardSquares is the number of squares on a chess board.
const BoardSquares = 64

// Plane is one TotalPlanes-deep slice's worth of one 8x8 bitboard-shaped
// feature, stored as a plain occupancy bitmask.
type Plane = uint64

// InputPlanes is the full encoded input for one leaf: TotalPlanes stacked
// bitboards (or scalar-fill planes packed the same way), addressed by the
// index the encoder assigns each plane.
type InputPlanes [TotalPlanes]Plane

// Output is one position's evaluation: a value in [-1, 1] from the
// perspective of the side to move, plus a policy distribution over legal
// moves addressed by dense move index.
type Output struct {
	Value    float32
	Policy   map[int]float32
}

// Computation batches leaf evaluations for one blocking round-trip
// through the network. Callers add every input they want evaluated, call
// Compute once, then read results back by index in insertion order.
type Computation interface {
	// AddInput queues one leaf for evaluation and returns its index for
	// later use with Value/Policy.
	AddInput(planes InputPlanes, moveIndices []int) int
	// Size reports how many inputs have been queued.
	Size() int
	// Compute runs every queued input through the network in one batch,
	// blocking until results are available.
	Compute() error
	// Value returns the value output for the input at index i.
	Value(i int) float32
	// Policy returns the prior for moveIndex at input i, or 0 if
	// moveIndex was not among the moves passed to AddInput at i.
	Policy(i int, moveIndex int) float32
}

// Evaluator produces Computation batches. A single Evaluator is shared
// across every worker in a search; Computation instances are not shared
// across goroutines.
type Evaluator interface {
	NewComputation() Computation
	// Close releases any resources (sessions, tensors) held by the
	// evaluator.
	Close() error
}
