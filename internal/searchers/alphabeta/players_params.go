package alphabeta

import (
	"time"

	"github.com/janpfeifer/connect4zero/internal/ai"
	"github.com/janpfeifer/connect4zero/internal/parameters"
	"github.com/janpfeifer/connect4zero/internal/searchers"
	"github.com/pkg/errors"
)

// NewFromParams creates an alpha-beta Searcher if the "ab" parameter is set, otherwise it returns nil.
//
// Parameters (all popped from params):
//
//   - ab (bool): selects this searcher.
//   - max_depth (int): plies to search, default DefaultMaxDepth.
//   - max_time (duration): if set, use iterative deepening until this time is reached, instead of max_depth.
//
// The evaluator is used as an ai.ValueScorer if it implements it (e.g.: ai.PolicyProxy), otherwise only the
// value of its evaluation is used.
func NewFromParams(evaluator ai.Evaluator, params parameters.Params) (searchers.Searcher, error) {
	isAB, err := parameters.PopParamOr(params, "ab", false)
	if err != nil || !isAB {
		return nil, err
	}
	scorer, ok := evaluator.(ai.ValueScorer)
	if !ok {
		scorer = ai.EvaluatorScorer{Evaluator: evaluator}
	}
	ab := New(scorer)
	maxDepth, err := parameters.PopParamOr(params, "max_depth", DefaultMaxDepth)
	if err != nil {
		return nil, err
	}
	if maxDepth < 1 {
		return nil, errors.Errorf("ab requires max_depth >= 1, got %d", maxDepth)
	}
	ab.WithMaxDepth(maxDepth)
	maxTime, err := parameters.PopParamOr(params, "max_time", time.Duration(0))
	if err != nil {
		return nil, err
	}
	if maxTime > 0 {
		ab.WithMaxTime(maxTime)
	}
	return ab, nil
}
