// Package players provides a factory of AI players from configuration strings.
// It also allows evaluators and searchers to register themselves.
package players

import (
	"github.com/janpfeifer/connect4zero/internal/ai"
	"github.com/janpfeifer/connect4zero/internal/parameters"
	"github.com/janpfeifer/connect4zero/internal/searchers"
	"github.com/janpfeifer/connect4zero/internal/state"
)

// Player is anything that is able to play the game.
type Player interface {
	// Play returns the next board position (after the move is taken) and optionally the
	// score of each column, from the point of view of the player to move (see searchers.Searcher).
	Play(board state.Board) (nextBoard state.Board, columnScores []float32, err error)

	// NewMatch is called before the first move of a match.
	NewMatch()

	// Finalize is called when the player is no longer needed, and releases its resources.
	Finalize()

	String() string
}

// EvaluatorBuilder creates an ai.Evaluator from the parameters, popping the ones it uses.
// It returns nil (and no error) if params don't select it.
type EvaluatorBuilder func(params parameters.Params) (ai.Evaluator, error)

// SearcherBuilder creates a searchers.Searcher from the parameters, popping the ones it uses.
// It returns nil (and no error) if params don't select it.
type SearcherBuilder func(evaluator ai.Evaluator, params parameters.Params) (searchers.Searcher, error)

var (
	// RegisteredEvaluators is the list of evaluator builders tried by New.
	// Packages implementing evaluators append to it in their init functions.
	RegisteredEvaluators []EvaluatorBuilder

	// RegisteredSearchers is the list of searcher builders tried by New.
	RegisteredSearchers []SearcherBuilder
)

var (
	// DefaultPlayerConfig is used if no configuration was given to the AI. The value may be changed by the
	// UI built.
	DefaultPlayerConfig = "heuristic,mcts,max_traverses=800"
)
