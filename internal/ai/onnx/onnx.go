// Package onnx implements an ai.Evaluator that runs exported (e.g. from PyTorch) policy and value networks
// with the ONNX Runtime.
//
// The model directory must contain two models: "policy.onnx" and "value.onnx". Both take the ai.History
// planes as a float32 tensor shaped [1, 3, 6, 7] (input named "input" by default), and output respectively
// the policy shaped [1, 7] and the value shaped [1, 1] (output named "output" by default).
//
// The ONNX Runtime shared library is located with the "onnx_lib" parameter or the ORT_SHARED_LIBRARY_PATH
// environment variable.
package onnx

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/janpfeifer/connect4zero/internal/ai"
	"github.com/janpfeifer/connect4zero/internal/parameters"
	"github.com/janpfeifer/connect4zero/internal/players"
	"github.com/janpfeifer/connect4zero/internal/state"
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"k8s.io/klog/v2"
)

// ModelKey is the parameter that selects the ONNX evaluator. Its value is the model directory.
const ModelKey = "onnx"

// File names of the models in the model directory.
const (
	PolicyModelFile = "policy.onnx"
	ValueModelFile  = "value.onnx"
)

var (
	ortInitOnce sync.Once
	ortInitErr  error
)

// Evaluator implements ai.Evaluator with two ONNX sessions, one for the policy and one for the value.
type Evaluator struct {
	dir                         string
	policySession, valueSession *ort.DynamicAdvancedSession

	// policyLogits indicates the policy model outputs logits, and a softmax must be applied.
	policyLogits bool

	// squashValue applies tanh to the value model output.
	squashValue bool
}

var _ ai.Evaluator = (*Evaluator)(nil)

// New creates an ONNX evaluator if "onnx" is set in params, or returns nil, nil otherwise.
//
// Parameters:
//
//   - onnx (string): directory with the policy.onnx and value.onnx models.
//   - onnx_lib (string): path to the ONNX Runtime shared library. Defaults to $ORT_SHARED_LIBRARY_PATH.
//   - input, output (string): names of the input and output nodes of the models. Default to "input" and "output".
//   - policy_logits (bool): the policy model outputs logits. Default is false (it outputs probabilities).
//   - squash_value (bool): apply tanh to the value model output. Default is false.
//   - onnx_threads (int): number of intra-op threads per session, default 1.
func New(params parameters.Params) (*Evaluator, error) {
	dir, err := parameters.PopParamOr(params, ModelKey, "")
	if err != nil || dir == "" {
		return nil, err
	}
	e := &Evaluator{dir: dir}
	libPath, err := parameters.PopParamOr(params, "onnx_lib", os.Getenv("ORT_SHARED_LIBRARY_PATH"))
	if err != nil {
		return nil, err
	}
	inputName, err := parameters.PopParamOr(params, "input", "input")
	if err != nil {
		return nil, err
	}
	outputName, err := parameters.PopParamOr(params, "output", "output")
	if err != nil {
		return nil, err
	}
	e.policyLogits, err = parameters.PopParamOr(params, "policy_logits", false)
	if err != nil {
		return nil, err
	}
	e.squashValue, err = parameters.PopParamOr(params, "squash_value", false)
	if err != nil {
		return nil, err
	}
	numThreads, err := parameters.PopParamOr(params, "onnx_threads", 1)
	if err != nil {
		return nil, err
	}

	// Check the models exist before initializing the runtime.
	policyPath, valuePath := filepath.Join(dir, PolicyModelFile), filepath.Join(dir, ValueModelFile)
	for _, path := range []string{policyPath, valuePath} {
		if _, err := os.Stat(path); err != nil {
			return nil, errors.Wrapf(err, "ONNX model %q not found", path)
		}
	}

	if err := initializeRuntime(libPath); err != nil {
		return nil, err
	}
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create ONNX session options")
	}
	defer func() { _ = options.Destroy() }()
	if err = options.SetIntraOpNumThreads(numThreads); err != nil {
		return nil, errors.Wrap(err, "failed to set ONNX intra-op threads")
	}
	if err = options.SetInterOpNumThreads(1); err != nil {
		return nil, errors.Wrap(err, "failed to set ONNX inter-op threads")
	}

	inputs, outputs := []string{inputName}, []string{outputName}
	e.policySession, err = ort.NewDynamicAdvancedSession(policyPath, inputs, outputs, options)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create ONNX session for %q", policyPath)
	}
	e.valueSession, err = ort.NewDynamicAdvancedSession(valuePath, inputs, outputs, options)
	if err != nil {
		_ = e.policySession.Destroy()
		return nil, errors.Wrapf(err, "failed to create ONNX session for %q", valuePath)
	}
	klog.V(1).Infof("Created new evaluator %s", e)
	return e, nil
}

// initializeRuntime initializes the ONNX Runtime environment once per process.
func initializeRuntime(libPath string) error {
	ortInitOnce.Do(func() {
		if libPath != "" {
			ort.SetSharedLibraryPath(libPath)
		}
		ortInitErr = ort.InitializeEnvironment()
	})
	if ortInitErr != nil {
		return errors.Wrap(ortInitErr, "failed to initialize the ONNX Runtime")
	}
	return nil
}

// init registers New as a potential evaluator, so end users can use it.
func init() {
	players.RegisteredEvaluators = append(players.RegisteredEvaluators,
		func(params parameters.Params) (ai.Evaluator, error) {
			e, err := New(params)
			if e == nil || err != nil {
				return nil, err
			}
			return e, nil
		})
}

// Evaluate implements ai.Evaluator.
// Finished boards are not fed to the models: they get their exact score (see ai.TerminalEvaluation).
func (e *Evaluator) Evaluate(history ai.History) (policy []float32, value float32, err error) {
	if policy, value, isEnd := ai.TerminalEvaluation(history); isEnd {
		return policy, value, nil
	}
	inputShape := ort.NewShape(1, ai.HistoryLen, state.NumRows, state.NumCols)
	input, err := ort.NewTensor(inputShape, history.Planes())
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to create ONNX input tensor")
	}
	defer func() { _ = input.Destroy() }()

	policyOut, err := ort.NewEmptyTensor[float32](ort.NewShape(1, ai.PolicySize))
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to create ONNX policy tensor")
	}
	defer func() { _ = policyOut.Destroy() }()
	valueOut, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1))
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to create ONNX value tensor")
	}
	defer func() { _ = valueOut.Destroy() }()

	if err = e.policySession.Run([]ort.Value{input}, []ort.Value{policyOut}); err != nil {
		return nil, 0, errors.Wrapf(err, "failed to run %s", PolicyModelFile)
	}
	if err = e.valueSession.Run([]ort.Value{input}, []ort.Value{valueOut}); err != nil {
		return nil, 0, errors.Wrapf(err, "failed to run %s", ValueModelFile)
	}
	policy, value = e.postProcess(policyOut.GetData(), valueOut.GetData()[0])
	return policy, value, nil
}

// postProcess copies the raw outputs of the models, applying the configured softmax and tanh.
func (e *Evaluator) postProcess(rawPolicy []float32, rawValue float32) (policy []float32, value float32) {
	if e.policyLogits {
		policy = ai.Softmax(rawPolicy)
	} else {
		policy = make([]float32, len(rawPolicy))
		copy(policy, rawPolicy)
	}
	value = rawValue
	if e.squashValue {
		value = ai.SquashScore(value)
	}
	return
}

// String implements ai.Evaluator.
func (e *Evaluator) String() string {
	return fmt.Sprintf("%s@%s", ModelKey, e.dir)
}

// Finalize releases the ONNX sessions. The Evaluator can't be used afterwards.
func (e *Evaluator) Finalize() {
	_ = e.policySession.Destroy()
	_ = e.valueSession.Destroy()
}
