package inference

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/brensch/othello0/executor/convert"
	"github.com/brensch/othello0/game"
	"github.com/rs/zerolog"
	ort "github.com/yalue/onnxruntime_go"
)

const (
	InputSize  = convert.FloatSize
	PolicySize = game.PolicySize
	ValueSize  = 1
)

// OnnxConfig configures a single ONNX Runtime session.
type OnnxConfig struct {
	// DisableCUDA skips the CUDA execution provider.
	DisableCUDA bool
	// IntraOpThreads is the ORT intra-op thread count. Defaults to 1 since
	// every self-play worker owns its own session.
	IntraOpThreads int
	// Logger receives CUDA setup warnings. The zero value discards them.
	Logger zerolog.Logger
}

// warnCUDA reports a CUDA setup failure; the session falls back to CPU.
func (cfg OnnxConfig) warnCUDA(msg string, err error) {
	cfg.Logger.Warn().Err(err).Msg(msg)
}

// OnnxEvaluator runs the value/policy network through ONNX Runtime.
//
// The model takes "input" [1, 3, 8, 8] and returns "value" [1, 1] and
// "policy" [1, 65]. Tensors are allocated once; an evaluator serves one
// worker and serializes concurrent callers.
type OnnxEvaluator struct {
	mu      sync.Mutex
	session *ort.DynamicAdvancedSession
	input   *ort.Tensor[float32]
	value   *ort.Tensor[float32]
	policy  *ort.Tensor[float32]
}

var ortInitOnce sync.Once
var ortInitErr error

func NewOnnxEvaluator(modelPath string, cfg OnnxConfig) (*OnnxEvaluator, error) {
	if cfg.IntraOpThreads <= 0 {
		cfg.IntraOpThreads = 1
	}
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("model file: %w", err)
	}

	if runtime.GOOS == "linux" {
		ensureLinuxLibraryPath()
		if p := os.Getenv("ORT_SHARED_LIBRARY_PATH"); p != "" {
			ort.SetSharedLibraryPath(p)
		} else {
			cwd, _ := os.Getwd()
			candidates := []string{
				"libonnxruntime.so",
				"libonnxruntime.so.1",
			}
			for _, name := range candidates {
				abs := filepath.Join(cwd, name)
				if _, err := os.Stat(abs); err == nil {
					ort.SetSharedLibraryPath(abs)
					break
				}
			}
		}
	}

	ortInitOnce.Do(func() {
		ortInitErr = ort.InitializeEnvironment()
	})
	if ortInitErr != nil {
		return nil, fmt.Errorf("failed to init ort: %w", ortInitErr)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, err
	}
	defer options.Destroy()

	options.SetIntraOpNumThreads(cfg.IntraOpThreads)
	options.SetInterOpNumThreads(1)

	if !cfg.DisableCUDA && !cudaDisabledByEnv() {
		cudaOptions, err := ort.NewCUDAProviderOptions()
		if err == nil {
			defer cudaOptions.Destroy()
			if err := options.AppendExecutionProviderCUDA(cudaOptions); err != nil {
				cfg.warnCUDA("failed to append CUDA provider", err)
			}
		} else {
			cfg.warnCUDA("failed to create CUDA options", err)
		}
	}

	session, err := ort.NewDynamicAdvancedSession(modelPath, []string{"input"}, []string{"value", "policy"}, options)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	e := &OnnxEvaluator{session: session}
	if err := e.allocate(); err != nil {
		_ = e.Close()
		return nil, err
	}
	return e, nil
}

func (e *OnnxEvaluator) allocate() error {
	var err error
	e.input, err = ort.NewTensor(ort.NewShape(1, convert.Channels, convert.Height, convert.Width), make([]float32, InputSize))
	if err != nil {
		return fmt.Errorf("input tensor: %w", err)
	}
	e.value, err = ort.NewEmptyTensor[float32](ort.NewShape(1, ValueSize))
	if err != nil {
		return fmt.Errorf("value tensor: %w", err)
	}
	e.policy, err = ort.NewEmptyTensor[float32](ort.NewShape(1, PolicySize))
	if err != nil {
		return fmt.Errorf("policy tensor: %w", err)
	}
	return nil
}

func cudaDisabledByEnv() bool {
	v := os.Getenv("OTHELLO_ORT_DISABLE_CUDA")
	return v != "" && v != "0" && strings.ToLower(v) != "false"
}

func ensureLinuxLibraryPath() {
	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	// Common locations of CUDA shared libraries when installed via pip
	// packages inside the project's .venv.
	candidateDirs := []string{cwd}
	patterns := []string{
		filepath.Join(cwd, ".venv", "lib", "python*", "site-packages", "nvidia", "*", "lib"),
		filepath.Join(cwd, ".venv", "lib", "python*", "site-packages", "onnxruntime", "capi"),
	}
	for _, pat := range patterns {
		matches, _ := filepath.Glob(pat)
		candidateDirs = append(candidateDirs, matches...)
	}

	existing := os.Getenv("LD_LIBRARY_PATH")
	existingSet := map[string]bool{}
	for _, p := range strings.Split(existing, ":") {
		if p != "" {
			existingSet[p] = true
		}
	}

	toAdd := make([]string, 0, len(candidateDirs))
	for _, d := range candidateDirs {
		if existingSet[d] {
			continue
		}
		if st, err := os.Stat(d); err == nil && st.IsDir() {
			toAdd = append(toAdd, d)
		}
	}
	if len(toAdd) == 0 {
		return
	}

	newVal := strings.Join(toAdd, ":")
	if existing != "" {
		newVal = newVal + ":" + existing
	}
	_ = os.Setenv("LD_LIBRARY_PATH", newVal)
}

// Evaluate implements mcts.Evaluator.
func (e *OnnxEvaluator) Evaluate(state *game.GameState) ([]float32, float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	convert.Encode(state, e.input.GetData())
	if err := e.session.Run([]ort.Value{e.input}, []ort.Value{e.value, e.policy}); err != nil {
		return nil, 0, fmt.Errorf("run session: %w", err)
	}

	policy := make([]float32, PolicySize)
	copy(policy, e.policy.GetData())
	value := e.value.GetData()[0]
	if err := checkOutput(policy, value); err != nil {
		return nil, 0, err
	}
	return policy, clampValue(value), nil
}

func (e *OnnxEvaluator) Close() error {
	for _, t := range []*ort.Tensor[float32]{e.input, e.value, e.policy} {
		if t != nil {
			_ = t.Destroy()
		}
	}
	if e.session == nil {
		return nil
	}
	return e.session.Destroy()
}
