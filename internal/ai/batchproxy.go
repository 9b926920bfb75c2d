package ai

import (
	"github.com/janpfeifer/connect4zero/internal/generics"
	"github.com/janpfeifer/connect4zero/internal/state"
	"github.com/pkg/errors"
)

// BatchValueScorerProxy is a trivial implementation of a BatchValueScorer, with no efficiency gains.
type BatchValueScorerProxy struct {
	ValueScorer
}

// BatchScore calls Score for each board of the batch.
func (s BatchValueScorerProxy) BatchScore(boards []state.Board) []float32 {
	return generics.SliceMap(boards, s.Score)
}

// Assert BatchValueScorerProxy implements BatchValueScorer
var _ BatchValueScorer = BatchValueScorerProxy{}

// EvaluatorScorer adapts an Evaluator to a ValueScorer: the board is evaluated without its history, and
// only the value is used.
//
// Score panics with an error if the evaluator fails or returns a malformed evaluation (wrapping
// ErrMalformedEvaluation). Searchers using it catch the panic with exceptions.TryCatch and return the error.
type EvaluatorScorer struct {
	Evaluator
}

var _ ValueScorer = EvaluatorScorer{}

// Score implements ValueScorer.
func (s EvaluatorScorer) Score(board state.Board) float32 {
	policy, value, err := s.Evaluate(NewHistory([]state.Board{board}))
	if err == nil {
		err = ValidateEvaluation(policy, value)
	}
	if err != nil {
		panic(errors.WithMessagef(err, "evaluator %s on board at move #%d", s.Evaluator, board.MoveNumber))
	}
	return value
}
