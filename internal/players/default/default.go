// Package _default registers the default players that can be included in any
// front-end for connect4zero.
//
// Currently, it includes the "uniform" and "heuristic" evaluators, and the "mcts", "ab" (alpha-beta) and "random" searchers.
package _default

import (
	"github.com/janpfeifer/connect4zero/internal/ai"
	"github.com/janpfeifer/connect4zero/internal/parameters"
	"github.com/janpfeifer/connect4zero/internal/players"
	"github.com/janpfeifer/connect4zero/internal/searchers"
	"github.com/janpfeifer/connect4zero/internal/searchers/alphabeta"
	"github.com/janpfeifer/connect4zero/internal/searchers/mcts"
)

func init() {
	players.RegisteredEvaluators = append(players.RegisteredEvaluators, NewUniform, NewHeuristic)
	players.RegisteredSearchers = append(players.RegisteredSearchers, mcts.NewFromParams, alphabeta.NewFromParams, NewRandom)
}

// NewUniform creates an ai.UniformEvaluator if "uniform" is set. Its value is the constant value returned.
func NewUniform(params parameters.Params) (ai.Evaluator, error) {
	if _, found := params["uniform"]; !found {
		return nil, nil
	}
	value, err := parameters.PopParamOr(params, "uniform", float32(0))
	if err != nil {
		return nil, err
	}
	return ai.UniformEvaluator{Value: value}, nil
}

// NewHeuristic creates an ai.PolicyProxy over an ai.HeuristicScorer if "heuristic" is set.
// Its value is the scale of the heuristic, and "policy_scale" the multiplier of the scores before the softmax.
func NewHeuristic(params parameters.Params) (ai.Evaluator, error) {
	if _, found := params["heuristic"]; !found {
		return nil, nil
	}
	scale, err := parameters.PopParamOr(params, "heuristic", float32(ai.DefaultHeuristicScale))
	if err != nil {
		return nil, err
	}
	policyScale, err := parameters.PopParamOr(params, "policy_scale", float32(10))
	if err != nil {
		return nil, err
	}
	return ai.NewPolicyProxy(ai.HeuristicScorer{Scale: scale}, policyScale), nil
}

// NewRandom creates a searchers.RandomSearcher if "random" is set.
func NewRandom(_ ai.Evaluator, params parameters.Params) (searchers.Searcher, error) {
	isRandom, err := parameters.PopParamOr(params, "random", false)
	if err != nil || !isRandom {
		return nil, err
	}
	return searchers.RandomSearcher{}, nil
}
