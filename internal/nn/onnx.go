package nn

import (
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// MaxBatchSize bounds a single ONNX Run() call. A batch (gathered leaves
// plus prefetched ones) can exceed this; Compute splits into multiple
// Run() calls when it does.
const MaxBatchSize = 1024

// PolicySize is the dense policy vector width. Chess has at most 4672
// distinct (from,to,promotion) move encodings under the AlphaZero-style
// scheme; the encoder and any Board implementation are expected to agree
// on this indexing.
const PolicySize = 4672

// OnnxEvaluator is an Evaluator backed by an ONNX Runtime session,
// selecting the fastest available execution provider at construction:
// it tries TensorRT, then CUDA, then DirectML, then falls back to CPU,
// keeping the first provider that initializes and survives a warmup
// run. Input and output tensors are fixed-shape and pinned once, then
// reused across every batch.
type OnnxEvaluator struct {
	mu      sync.Mutex
	session *ort.AdvancedSession

	binInput []float32
	policy   []float32
	value    []float32

	inputs  []ort.Value
	outputs []ort.Value
}

// NewOnnxEvaluator loads modelPath using the ONNX Runtime shared library
// at libPath, trying execution providers in order of preference and
// keeping the first one that initializes and survives a warmup run.
func NewOnnxEvaluator(modelPath, libPath string) (*OnnxEvaluator, error) {
	absCachePath, _ := filepath.Abs("trt_cache")
	_ = os.MkdirAll(absCachePath, 0755)

	if !ort.IsInitialized() {
		absLibPath, err := filepath.Abs(libPath)
		if err != nil {
			return nil, fmt.Errorf("nn: resolving library path: %w", err)
		}
		ort.SetSharedLibraryPath(absLibPath)
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("nn: initializing onnxruntime: %w", err)
		}
	}

	binInput := make([]float32, MaxBatchSize*TotalPlanes*BoardSquares)
	policy := make([]float32, MaxBatchSize*PolicySize)
	value := make([]float32, MaxBatchSize)

	inputShape := ort.NewShape(MaxBatchSize, int64(TotalPlanes), 8, 8)
	policyShape := ort.NewShape(MaxBatchSize, int64(PolicySize))
	valueShape := ort.NewShape(MaxBatchSize, 1)

	inputTensor, err := ort.NewTensor(inputShape, binInput)
	if err != nil {
		return nil, fmt.Errorf("nn: creating input tensor: %w", err)
	}
	policyTensor, err := ort.NewTensor(policyShape, policy)
	if err != nil {
		return nil, fmt.Errorf("nn: creating policy tensor: %w", err)
	}
	valueTensor, err := ort.NewTensor(valueShape, value)
	if err != nil {
		return nil, fmt.Errorf("nn: creating value tensor: %w", err)
	}

	inputNames := []string{"input_planes"}
	outputNames := []string{"policy", "value"}
	inputs := []ort.Value{inputTensor}
	outputs := []ort.Value{policyTensor, valueTensor}

	providers := []struct {
		name  string
		setup func(*ort.SessionOptions) error
	}{
		{"TensorRT", func(so *ort.SessionOptions) error {
			trtOpts, err := ort.NewTensorRTProviderOptions()
			if err != nil {
				return err
			}
			defer trtOpts.Destroy()
			trtOpts.Update(map[string]string{
				"device_id":               "0",
				"trt_engine_cache_enable": "1",
				"trt_engine_cache_path":   absCachePath,
				"trt_fp16_enable":         "1",
			})
			return so.AppendExecutionProviderTensorRT(trtOpts)
		}},
		{"CUDA", func(so *ort.SessionOptions) error {
			cudaOpts, err := ort.NewCUDAProviderOptions()
			if err != nil {
				return err
			}
			defer cudaOpts.Destroy()
			return so.AppendExecutionProviderCUDA(cudaOpts)
		}},
		{"DirectML", func(so *ort.SessionOptions) error {
			return so.AppendExecutionProviderDirectML(0)
		}},
		{"CPU", func(so *ort.SessionOptions) error { return nil }},
	}

	var session *ort.AdvancedSession
	for _, p := range providers {
		log.Printf("nn: attempting to initialize with %s", p.name)
		so, err := ort.NewSessionOptions()
		if err != nil {
			continue
		}
		if err := p.setup(so); err != nil {
			log.Printf("nn: %s setup failed: %v", p.name, err)
			so.Destroy()
			continue
		}
		s, err := ort.NewAdvancedSession(modelPath, inputNames, outputNames, inputs, outputs, so)
		if err != nil {
			log.Printf("nn: %s session creation failed: %v", p.name, err)
			so.Destroy()
			continue
		}
		if err := s.Run(); err != nil {
			log.Printf("nn: %s warmup failed: %v", p.name, err)
			s.Destroy()
			so.Destroy()
			continue
		}
		log.Printf("nn: initialized with %s", p.name)
		session = s
		so.Destroy()
		break
	}
	if session == nil {
		return nil, fmt.Errorf("nn: failed to initialize with any execution provider")
	}

	return &OnnxEvaluator{
		session:  session,
		binInput: binInput,
		policy:   policy,
		value:    value,
		inputs:   inputs,
		outputs:  outputs,
	}, nil
}

// Close releases the session and every pinned tensor.
func (e *OnnxEvaluator) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session != nil {
		e.session.Destroy()
	}
	for _, v := range e.inputs {
		v.Destroy()
	}
	for _, v := range e.outputs {
		v.Destroy()
	}
	return nil
}

// NewComputation returns a fresh batch bound to this evaluator's session.
func (e *OnnxEvaluator) NewComputation() Computation {
	return &onnxComputation{eval: e}
}

type onnxItem struct {
	planes      InputPlanes
	moveIndices []int
}

// onnxComputation accumulates AddInput calls in memory and only touches
// the evaluator's pinned tensors inside Compute, so several goroutines can
// each build up their own Computation concurrently before the blocking
// round trip.
// The search orchestrator gathers a whole minibatch before invoking
// Compute once, so this stays a single synchronous call rather than a
// request/response queue.
type onnxComputation struct {
	eval  *OnnxEvaluator
	items []onnxItem

	values   []float32
	policies []map[int]float32
}

func (c *onnxComputation) AddInput(planes InputPlanes, moveIndices []int) int {
	c.items = append(c.items, onnxItem{planes: planes, moveIndices: moveIndices})
	return len(c.items) - 1
}

func (c *onnxComputation) Size() int { return len(c.items) }

func (c *onnxComputation) Compute() error {
	if len(c.items) == 0 {
		return nil
	}
	c.values = make([]float32, len(c.items))
	c.policies = make([]map[int]float32, len(c.items))

	c.eval.mu.Lock()
	defer c.eval.mu.Unlock()

	for base := 0; base < len(c.items); base += MaxBatchSize {
		end := base + MaxBatchSize
		if end > len(c.items) {
			end = len(c.items)
		}
		if err := c.eval.runBatch(c.items[base:end], c.values[base:end], c.policies[base:end]); err != nil {
			return err
		}
	}
	return nil
}

func (c *onnxComputation) Value(i int) float32 { return c.values[i] }

func (c *onnxComputation) Policy(i int, moveIndex int) float32 {
	return c.policies[i][moveIndex]
}

func (e *OnnxEvaluator) runBatch(items []onnxItem, outValues []float32, outPolicies []map[int]float32) error {
	planeSize := BoardSquares
	for i, it := range items {
		off := i * TotalPlanes * planeSize
		for p := 0; p < TotalPlanes; p++ {
			bits := it.planes[p]
			for sq := 0; sq < planeSize; sq++ {
				if bits&(1<<uint(sq)) != 0 {
					e.binInput[off+p*planeSize+sq] = 1.0
				} else {
					e.binInput[off+p*planeSize+sq] = 0.0
				}
			}
		}
	}
	// Zero any unused tail slots left over from a smaller previous batch.
	for i := len(items); i < MaxBatchSize; i++ {
		off := i * TotalPlanes * planeSize
		for j := 0; j < TotalPlanes*planeSize; j++ {
			e.binInput[off+j] = 0
		}
	}

	if err := e.session.Run(); err != nil {
		return fmt.Errorf("nn: session run: %w", err)
	}

	for i, it := range items {
		outValues[i] = float32(math.Tanh(float64(e.value[i])))

		priors := make(map[int]float32, len(it.moveIndices))
		var sum float32
		for _, mi := range it.moveIndices {
			p := e.policy[i*PolicySize+mi]
			priors[mi] = p
			sum += p
		}
		if sum > 0 {
			for mi := range priors {
				priors[mi] /= sum
			}
		} else if len(it.moveIndices) > 0 {
			uniform := float32(1) / float32(len(it.moveIndices))
			for _, mi := range it.moveIndices {
				priors[mi] = uniform
			}
		}
		outPolicies[i] = priors
	}
	return nil
}
