package players

import (
	"github.com/janpfeifer/connect4zero/internal/ai"
	"github.com/janpfeifer/connect4zero/internal/parameters"
	"github.com/janpfeifer/connect4zero/internal/searchers"
	"github.com/janpfeifer/connect4zero/internal/state"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// SearcherEvaluator is a standard set up for an AI: a searcher guided by an evaluator.
// It implements the Player interface.
type SearcherEvaluator struct {
	Searcher  searchers.Searcher
	Evaluator ai.Evaluator
}

// New creates a new AI player given the configuration string.
//
// Args:
//
//   - config: a comma-separated list of parameters with optional values associated. An evaluator (e.g. "heuristic")
//     and a searcher (e.g. "mcts") must be defined. If empty, the default is given by DefaultPlayerConfig.
//     E.g.: "heuristic,mcts,max_traverses=400"
//
// Typical parameters:
//
//   - uniform (float): Uniform policy evaluator, the value is the constant value returned (default 0).
//   - heuristic (float): Hand-written evaluator counting open lines; the value is the scale (optional).
//   - mcts (bool): Use MCTS (Monte Carlo Tree Search) algorithm. See mcts.NewFromParams for its parameters.
//   - random (bool): Play random moves. It still requires an evaluator, which is ignored.
//   - randomness (float): Adds a layer of randomness in the search: the choice is distributed according to
//     a softmax of the scores of each move, divided by this value. Default is 0.
//   - max_move_randomness (int): Move number after which randomness is no longer used. Default is 10.
//
// More details on the config are dependent on the modules used.
func New(config string) (*SearcherEvaluator, error) {
	if config == "" {
		config = DefaultPlayerConfig
	}
	params := parameters.NewFromConfigString(config)

	player := &SearcherEvaluator{}

	if len(RegisteredEvaluators) == 0 {
		return nil, errors.New("no registered evaluators. Perhaps you need to import _ \"github.com/janpfeifer/connect4zero/internal/players/default\" to your binary ?")
	}
	if len(RegisteredSearchers) == 0 {
		return nil, errors.New("no registered searchers. Perhaps you need to import _ \"github.com/janpfeifer/connect4zero/internal/players/default\" to your binary ?")
	}

	// Find evaluator.
	for _, builder := range RegisteredEvaluators {
		e, err := builder(params)
		if err != nil {
			return nil, errors.WithMessagef(err, "while building evaluator from %q", config)
		}
		if e == nil {
			// Not this type of evaluator.
			continue
		}
		if player.Evaluator != nil {
			return nil, errors.Errorf("multiple evaluators defined in parameters %q", config)
		}
		player.Evaluator = e
	}
	if player.Evaluator == nil {
		return nil, errors.Errorf("no evaluators defined in parameters %q", config)
	}

	// Find searcher.
	for _, builder := range RegisteredSearchers {
		s, err := builder(player.Evaluator, params)
		if err != nil {
			return nil, errors.WithMessagef(err, "while building searcher from %q", config)
		}
		if s == nil {
			continue
		}
		if player.Searcher != nil {
			return nil, errors.Errorf("multiple searchers defined in parameters %q", config)
		}
		player.Searcher = s
	}
	if player.Searcher == nil {
		return nil, errors.Errorf("no searchers defined in parameters %q", config)
	}

	// Optional randomness on top of the searcher.
	randomness, err := parameters.PopParamOr(params, "randomness", 0.0)
	if err != nil {
		return nil, err
	}
	maxMoveRandomness, err := parameters.PopParamOr(params, "max_move_randomness", 10)
	if err != nil {
		return nil, err
	}
	player.Searcher = searchers.NewRandomizedSearcher(player.Searcher, randomness, maxMoveRandomness)

	// Check that all parameters were processed.
	if err := parameters.CheckAllUsed(params); err != nil {
		return nil, errors.WithMessagef(err, "AI configuration %q", config)
	}
	if klog.V(1).Enabled() {
		klog.Infof("Created player %s", player)
	}
	return player, nil
}

// Assert that SearcherEvaluator is a Player.
var _ Player = &SearcherEvaluator{}

// Play implements the Player interface: it chooses a move given a Board.
func (p *SearcherEvaluator) Play(b state.Board) (nextBoard state.Board, columnScores []float32, err error) {
	nextBoard, columnScores, err = p.Searcher.Search(b)
	if err != nil {
		return
	}
	if klog.V(2).Enabled() {
		klog.Infof("Move #%d: AI (%s) playing %s", b.MoveNumber, p.Evaluator, nextBoard.LastMove)
	}
	return
}

// NewMatch implements the Player interface: it discards any search statistics of previous matches.
func (p *SearcherEvaluator) NewMatch() {
	p.Searcher.Reset()
}

// Finalizer is implemented by evaluators holding resources (model executors, ONNX sessions) that must be released.
type Finalizer interface {
	Finalize()
}

// Finalize implements the Player interface: it discards the search statistics and releases the evaluator
// resources, if it implements Finalizer. The player can't be used afterwards.
func (p *SearcherEvaluator) Finalize() {
	if klog.V(1).Enabled() {
		klog.Infof("Player (evaluator=%s) finalized", p.Evaluator)
	}
	p.Searcher.Reset()
	if f, ok := p.Evaluator.(Finalizer); ok {
		f.Finalize()
	}
}

// String implements fmt.Stringer.
func (p *SearcherEvaluator) String() string {
	return p.Searcher.String()
}
