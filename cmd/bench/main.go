// Command bench runs a fixed-position, fixed-time search and reports
// nodes-per-second, for comparing evaluator/hardware configurations. It
// builds a search.Options struct from flags and prints a single summary
// line rather than running a full two-engine match.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"chessmcts/internal/evalcache"
	"chessmcts/internal/game/refchess"
	"chessmcts/internal/nn"
	"chessmcts/internal/search"
)

func main() {
	modelPath := flag.String("model", "chessmcts.onnx", "path to ONNX model file")
	libPath := flag.String("lib", "onnxruntime.so", "path to the onnxruntime shared library")
	timeMs := flag.Int64("time-ms", 5000, "benchmark duration in milliseconds")
	workers := flag.Int("workers", 4, "search worker goroutines")
	minibatch := flag.Int("minibatch", search.DefaultMinibatchSize, "minibatch-size option")
	prefetch := flag.Int("prefetch", search.DefaultMaxPrefetch, "max-prefetch option")
	flag.Parse()

	eval, err := nn.NewOnnxEvaluator(*modelPath, *libPath)
	if err != nil {
		log.Fatalf("failed to initialize NN: %v", err)
	}
	defer eval.Close()

	cache := evalcache.New(search.DefaultEvalCacheCapacity)
	root := refchess.NewInitialPosition()

	var lastInfo search.Info
	orch := search.New(root, eval, cache, search.Options{
		NumWorkers:    *workers,
		MinibatchSize: *minibatch,
		MaxPrefetch:   *prefetch,
	}, search.Callbacks{
		OnInfo: func(i search.Info) { lastInfo = i },
	})

	start := time.Now()
	if err := orch.Run(context.Background(), search.Limits{TimeMs: *timeMs}); err != nil {
		log.Fatalf("search failed: %v", err)
	}
	elapsed := time.Since(start)

	fmt.Printf("nodes=%d elapsed=%v nps=%d depth=%d seldepth=%d\n",
		lastInfo.Nodes, elapsed, lastInfo.NPS, lastInfo.Depth, lastInfo.SelDepth)
}
