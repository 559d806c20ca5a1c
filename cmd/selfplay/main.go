// Command selfplay drives internal/search against internal/game/refchess
// for a fixed number of moves, printing search stats per move: a
// flag-based CLI, a pprof listener, a per-move log line with best move,
// score, nodes and NPS, and a simple game-over check after each applied
// move.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"
	"sync"
	"time"

	"chessmcts/internal/evalcache"
	"chessmcts/internal/game"
	"chessmcts/internal/game/refchess"
	"chessmcts/internal/nn"
	"chessmcts/internal/search"
)

func main() {
	modelPath := flag.String("model", "chessmcts.onnx", "path to ONNX model file")
	libPath := flag.String("lib", "onnxruntime.so", "path to the onnxruntime shared library")
	playouts := flag.Int64("playouts", 800, "playouts per move")
	maxMoves := flag.Int("maxmoves", 40, "max moves to play before stopping")
	workers := flag.Int("workers", 4, "search worker goroutines")
	flag.Parse()

	go func() {
		log.Println("pprof listening on :6060")
		if err := http.ListenAndServe("localhost:6060", nil); err != nil {
			log.Printf("pprof failed: %v", err)
		}
	}()

	eval, err := nn.NewOnnxEvaluator(*modelPath, *libPath)
	if err != nil {
		log.Fatalf("failed to initialize NN: %v", err)
	}
	defer eval.Close()

	cache := evalcache.New(search.DefaultEvalCacheCapacity)

	var root game.Board = refchess.NewInitialPosition()

	for i := 0; i < *maxMoves; i++ {
		log.Printf("--- move %d ---", i+1)

		var mu bestMoveHolder
		opts := search.Options{NumWorkers: *workers}
		orch := search.New(root, eval, cache, opts, search.Callbacks{
			OnBestMove: mu.set,
		})

		start := time.Now()
		if err := orch.Run(context.Background(), search.Limits{Playouts: *playouts}); err != nil {
			log.Fatalf("search failed: %v", err)
		}
		duration := time.Since(start)

		bm := mu.get()
		if bm.Move == nil {
			log.Printf("game over: no legal moves")
			break
		}

		log.Printf("bestmove=%v time=%v", bm.Move, duration)

		var ok bool
		root, ok = applyMove(root, bm.Move)
		if !ok {
			log.Fatalf("failed to apply move %v", bm.Move)
		}
		if !root.HasMatingMaterial() || len(root.LegalMoves()) == 0 {
			log.Printf("game over: no material or no moves left")
			break
		}
	}

	log.Println("selfplay finished")
	os.Exit(0)
}

// applyMove finds the legal move matching m and returns the board it
// leads to. The search core reports moves as opaque game.Move values;
// selfplay, which knows its root is always a refchess board, resolves
// them back to a concrete successor by matching legal moves.
func applyMove(root game.Board, m game.Move) (game.Board, bool) {
	for _, lm := range root.LegalMoves() {
		if lm.Move.AsNNIndex() == m.AsNNIndex() {
			return lm.Board, true
		}
	}
	return nil, false
}

type bestMoveHolder struct {
	mu sync.Mutex
	bm search.BestMove
}

func (h *bestMoveHolder) set(bm search.BestMove) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.bm = bm
}

func (h *bestMoveHolder) get() search.BestMove {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.bm
}
