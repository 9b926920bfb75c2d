package mcts

import (
	"time"

	"github.com/janpfeifer/connect4zero/internal/ai"
	"github.com/janpfeifer/connect4zero/internal/parameters"
	"github.com/janpfeifer/connect4zero/internal/searchers"
	"github.com/pkg/errors"
)

// Default search budget.
const (
	DefaultMaxTraverses = 800
	DefaultMaxRandDepth = 8
)

// NewFromParams creates an MCTS Searcher using the given evaluator, if the "mcts" parameter is set.
// It returns nil (and no error) if "mcts" is not set.
//
// Parameters (all popped from params):
//
//   - mcts (bool): selects this searcher.
//   - c_puct (float): exploration constant, default 1.
//   - max_traverses (int): number of simulations per move, default 800. 0 means limited only by max_time.
//   - min_traverses (int): minimum number of simulations, even if max_time is exceeded.
//   - max_time (duration): wall-clock budget per move, e.g. "2s". Default is 0, no time limit.
//   - parallelism (int): number of goroutines running simulations, default 1.
//   - temperature (float): if > 0 the move is sampled from the visit counts of the root children, raised to
//     1/temperature. Default is 0, which takes the child with the best mean value.
//   - max_rand_depth (int): temperature is only used for moves before this move number, default 8.
//   - keep_tree (bool): reuse the tree statistics across moves of the same match, default true.
func NewFromParams(evaluator ai.Evaluator, params parameters.Params) (searchers.Searcher, error) {
	isMCTS, err := parameters.PopParamOr(params, "mcts", false)
	if err != nil {
		return nil, err
	}
	if !isMCTS {
		return nil, nil
	}
	cPuct, err := parameters.PopParamOr(params, "c_puct", DefaultCPuct)
	if err != nil {
		return nil, err
	}
	if cPuct < 0 {
		return nil, errors.Errorf("negative c_puct value (%f given) not possible", cPuct)
	}
	s := &Searcher{
		engine: New(evaluator).WithCPuct(cPuct),
		opts: SearchOptions{
			MaxSimulations: DefaultMaxTraverses,
			Parallelism:    1,
		},
		maxRandDepth: DefaultMaxRandDepth,
		keepTree:     true,
	}
	s.opts.MaxSimulations, err = parameters.PopParamOr(params, "max_traverses", s.opts.MaxSimulations)
	if err != nil {
		return nil, err
	}
	s.opts.MinSimulations, err = parameters.PopParamOr(params, "min_traverses", s.opts.MinSimulations)
	if err != nil {
		return nil, err
	}
	s.opts.MaxTime, err = parameters.PopParamOr(params, "max_time", time.Duration(0))
	if err != nil {
		return nil, err
	}
	if s.opts.MaxSimulations <= 0 && s.opts.MaxTime <= 0 {
		return nil, errors.New("mcts requires max_traverses > 0 or max_time > 0")
	}
	s.opts.Parallelism, err = parameters.PopParamOr(params, "parallelism", s.opts.Parallelism)
	if err != nil {
		return nil, err
	}
	s.temperature, err = parameters.PopParamOr(params, "temperature", s.temperature)
	if err != nil {
		return nil, err
	}
	if s.temperature < 0 {
		return nil, errors.Errorf("negative temperature (%f given) not possible", s.temperature)
	}
	s.maxRandDepth, err = parameters.PopParamOr(params, "max_rand_depth", s.maxRandDepth)
	if err != nil {
		return nil, err
	}
	s.keepTree, err = parameters.PopParamOr(params, "keep_tree", s.keepTree)
	if err != nil {
		return nil, err
	}
	return s, nil
}
