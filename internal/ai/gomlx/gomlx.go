// Package gomlx implements an ai.Evaluator (for the MCTS/AlphaZero searcher) backed by a GoMLX model.
//
// It separates the connect4zero Evaluator implementation from the GoMLX models that support them --
// for now only an FNN (Feedforward Neural Network) AlphaZero model is implemented, selected with "a0fnn".
//
// Binaries must include a GoMLX backend, e.g.: `import _ "github.com/gomlx/gomlx/backends/simplego"`.
package gomlx

import (
	"sync"
	"weak"

	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/janpfeifer/connect4zero/internal/ai"
	"github.com/janpfeifer/connect4zero/internal/parameters"
	"github.com/janpfeifer/connect4zero/internal/players"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// ModelKey is the parameter that selects the AlphaZero FNN model. Its value is the checkpoint directory.
const ModelKey = "a0fnn"

var (
	// Backend is a singleton, the same for all players.
	backend = sync.OnceValue(func() backends.Backend { return backends.New() })

	// muNewClient is a Mutex used to synchronize access to GoMLX executors creation.
	muNewClient sync.Mutex

	// Cache of evaluators per checkpoint directory, so players configured with the same model share it.
	muModelsCache sync.Mutex
	modelsCache   = make(map[string]weak.Pointer[Evaluator])
)

const notSpecified = "#<not_specified>"

// New creates a new GoMLX based evaluator if "a0fnn" is set in params.
// Evaluators are shared by everyone asking for the same directory: each call to New must be paired with a
// call to Evaluator.Finalize, and the resources are freed by the last one.
// Its value is the checkpoint directory: if it doesn't exist, a model is created with random weights.
// An empty value creates a model with random weights that is not saved.
//
// Hyperparameters of the model (see NewAlphaZeroFNN) can also be set in params.
//
// If no known model type is configured, it returns nil, nil.
func New(params parameters.Params) (*Evaluator, error) {
	dir, _ := parameters.PopParamOr(params, ModelKey, notSpecified)
	if dir == notSpecified {
		return nil, nil
	}
	muModelsCache.Lock()
	defer muModelsCache.Unlock()

	// Check cache for previously created models.
	if dir != "" {
		if weakPtr, found := modelsCache[dir]; found {
			if e := weakPtr.Value(); e != nil {
				// Hyperparameters are defined by the model already loaded: the given ones are consumed but ignored.
				if err := extractParams(ModelKey, params, NewAlphaZeroFNN().Context()); err != nil {
					return nil, err
				}
				e.refs++
				return e, nil
			}
			// weak evaluator has been collected.
			delete(modelsCache, dir)
		}
	}

	e, err := newEvaluator(NewAlphaZeroFNN(), dir, params)
	if err != nil {
		return nil, err
	}
	e.refs = 1
	if dir != "" {
		modelsCache[dir] = weak.Make(e)
	}
	klog.V(1).Infof("Created new evaluator %s", e)
	return e, nil
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

// extractParams and write them as context hyperparameters
func extractParams(modelName string, params parameters.Params, ctx *context.Context) error {
	var err error
	ctx.EnumerateParams(func(scope, key string, valueAny any) {
		if err != nil {
			// If error happened skip the rest.
			return
		}
		if scope != context.RootScope {
			return
		}
		switch defaultValue := valueAny.(type) {
		case string:
			value, _ := parameters.PopParamOr(params, key, defaultValue)
			ctx.SetParam(key, value)
		case int:
			value, newErr := parameters.PopParamOr(params, key, defaultValue)
			if newErr != nil {
				err = errors.WithMessagef(newErr, "parsing %q (int) for model %s", key, modelName)
				return
			}
			ctx.SetParam(key, value)
		case float64:
			value, newErr := parameters.PopParamOr(params, key, defaultValue)
			if newErr != nil {
				err = errors.WithMessagef(newErr, "parsing %q (float64) for model %s", key, modelName)
				return
			}
			ctx.SetParam(key, value)
		case bool:
			value, newErr := parameters.PopParamOr(params, key, defaultValue)
			if newErr != nil {
				err = errors.WithMessagef(newErr, "parsing %q (bool) for model %s", key, modelName)
				return
			}
			ctx.SetParam(key, value)
		default:
			err = errors.Errorf("model %s parameter %q is of unknown type %T", modelName, key, defaultValue)
		}
	})
	return err
}
