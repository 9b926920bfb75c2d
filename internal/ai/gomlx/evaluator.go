package gomlx

import (
	"bytes"
	"fmt"
	"slices"
	"sync"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/context/checkpoints"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/janpfeifer/connect4zero/internal/ai"
	"github.com/janpfeifer/connect4zero/internal/parameters"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Evaluator implements ai.Evaluator with an AlphaZeroFNN model.
// It is safe for concurrent use.
type Evaluator struct {
	model *AlphaZeroFNN

	// dir of the checkpoint, empty if the model is not associated to one.
	dir string

	exec *context.Exec

	// checkpoint handler, if model is being saved/loaded to/from disk.
	checkpoint *checkpoints.Handler

	// checkpointsToKeep is the number of copies of older checkpoints to keep around.
	// Default to 10.
	checkpointsToKeep int

	// muSave "write" for saving, and "read" for evaluating.
	muSave sync.RWMutex

	// NumCompilations of computation graphs.
	NumCompilations int

	// refs counts the users returned by New that haven't called Finalize yet. Protected by muModelsCache.
	refs int
}

var _ ai.Evaluator = (*Evaluator)(nil)

// newEvaluator returns a gomlx.Evaluator for the given model.
func newEvaluator(model *AlphaZeroFNN, dir string, params parameters.Params) (*Evaluator, error) {
	e := &Evaluator{
		model: model,
		dir:   dir,
	}

	// Help if requested.
	if slices.Index([]string{"help", "--help", "-help", "-h"}, dir) != -1 {
		e.writeHyperparametersHelp()
		return nil, errors.Errorf("model %s help requested", ModelKey)
	}

	var err error
	e.checkpointsToKeep, err = parameters.PopParamOr(params, "keep", 10)
	if err != nil {
		return nil, err
	}

	// Overwrite hyperparameters from given params, before loading the checkpoint, which may overwrite them back.
	err = extractParams(ModelKey, params, model.Context())
	if err != nil {
		return nil, err
	}

	// Create checkpoint, and load it if it exists.
	if dir != "" {
		e.checkpoint, err = checkpoints.Build(model.Context()).
			Immediate().
			Keep(e.checkpointsToKeep).
			Dir(dir).
			Done()
		if err != nil {
			return nil, errors.WithMessagef(err, "failed to build checkpoint for model %s in path %s", ModelKey, dir)
		}
	}

	// Create the backend.
	_ = backend()
	e.createExecutor()

	// Force creating/loading of variables without race conditions first.
	if _, _, err = e.evaluate(ai.History{}); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Evaluator) createExecutor() {
	muNewClient.Lock()
	defer muNewClient.Unlock()
	ctx := e.model.Context().Checked(false)
	e.exec = context.NewExec(backend(), ctx,
		func(ctx *context.Context, inputs []*graph.Node) []*graph.Node {
			e.NumCompilations++
			value, policy := e.model.ForwardGraph(ctx, inputs[0])
			// Reshape to a scalar and a vector: we evaluate only one board at a time.
			return []*graph.Node{graph.Reshape(value), graph.Reshape(policy, ai.PolicySize)}
		})
}

// Evaluate implements ai.Evaluator.
// Finished boards are not fed to the model: they get their exact score (see ai.TerminalEvaluation).
func (e *Evaluator) Evaluate(history ai.History) (policy []float32, value float32, err error) {
	if policy, value, isEnd := ai.TerminalEvaluation(history); isEnd {
		return policy, value, nil
	}
	return e.evaluate(history)
}

// evaluate runs the model, converting panics from GoMLX to errors.
func (e *Evaluator) evaluate(history ai.History) (policy []float32, value float32, err error) {
	input := e.model.CreateInputs(history)
	e.muSave.RLock()
	defer e.muSave.RUnlock()
	err = exceptions.TryCatch[error](func() {
		outputs := e.exec.Call(graph.DonateTensorBuffer(input, backend()))
		value = tensors.ToScalar[float32](outputs[0])
		policy = tensors.CopyFlatData[float32](outputs[1])
	})
	if err != nil {
		return nil, 0, errors.WithMessagef(err, "failed to evaluate model %s", e)
	}
	return
}

// String implements fmt.Stringer and ai.Evaluator.
func (e *Evaluator) String() string {
	if e == nil {
		return "<nil>[GoMLX]"
	}
	gomlxName := fmt.Sprintf("[GoMLX/%s]", backend().Name())
	if e.checkpoint == nil || e.checkpoint.Dir() == "" {
		return fmt.Sprintf("%s%s", ModelKey, gomlxName)
	}
	return fmt.Sprintf("%s%s@%s", ModelKey, gomlxName, e.checkpoint.Dir())
}

// Save the model weights and hyperparameters to its checkpoint directory.
func (e *Evaluator) Save() error {
	if e.checkpoint == nil {
		klog.Warningf("This %s model is not associated to a checkpoint directory, not saving", ModelKey)
		return nil
	}
	e.muSave.Lock()
	defer e.muSave.Unlock()
	return e.checkpoint.Save()
}

// writeHyperparametersHelp enumerates all the hyperparameters set in the context.
func (e *Evaluator) writeHyperparametersHelp() {
	buf := &bytes.Buffer{}
	_, _ = fmt.Fprintf(buf, "Model %s parameters:\n", ModelKey)
	_, _ = fmt.Fprintf(buf, "\t%s=<path_to_model> to use the model saved at the given directory, or\n", ModelKey)
	_, _ = fmt.Fprintf(buf, "\t%s= (empty) to use a model with random weights, not saved, or\n", ModelKey)
	_, _ = fmt.Fprintf(buf, "\t%s=-help to show this help message\n", ModelKey)
	_, _ = fmt.Fprintf(buf, "\tkeep=<n>: number of checkpoints to keep (default 10)\n")
	e.model.Context().EnumerateParams(func(scope, key string, value any) {
		if scope != context.RootScope {
			return
		}
		_, _ = fmt.Fprintf(buf, "\t%q: default value is %v\n", key, value)
	})
	klog.Info(buf)
}

// Finalize releases one reference to the evaluator. The last one frees the executor and the model,
// and removes the evaluator from the cache: it can't be used afterwards.
func (e *Evaluator) Finalize() {
	muModelsCache.Lock()
	e.refs--
	isLast := e.refs <= 0
	if isLast && e.dir != "" {
		if weakPtr, found := modelsCache[e.dir]; found && weakPtr.Value() == e {
			delete(modelsCache, e.dir)
		}
	}
	muModelsCache.Unlock()
	if !isLast {
		return
	}
	e.muSave.Lock()
	defer e.muSave.Unlock()
	e.exec.Finalize()
	e.model.Context().Finalize()
}
