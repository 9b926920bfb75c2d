// Package ai (Artificial Intelligence) defines the interfaces of the evaluators that guide the search, and
// some simple implementations of them.
//
// Values (scores) are always from the point of view of the player that made the last move on the board
// (the player that "produced" the board): +1 represents a sure win for that player, -1 a sure loss, and 0 a draw.
// This way a parent node can compare the values of its children directly.
package ai

import (
	"github.com/chewxy/math32"
	"github.com/janpfeifer/connect4zero/internal/state"
	"github.com/pkg/errors"
	"golang.org/x/exp/constraints"
)

// WinGameScore for the winning side. For the losing side it is -WinGameScore.
// We make these +1 and -1, so it's easy to put a tanh(x) on the output of the model to get a
// value from +1 to -1.
const WinGameScore = float32(1)

// HistoryLen is the number of most recent boards fed to an Evaluator.
const HistoryLen = 3

// PolicySize is the length of the policy vector: one slot per column.
const PolicySize = state.NumCols

// ErrMalformedEvaluation is returned (wrapped) when an Evaluator output breaks its contract.
var ErrMalformedEvaluation = errors.New("malformed evaluation")

// History holds the grids of the last HistoryLen boards, most recent last.
// When fewer boards exist, the oldest entries are empty grids.
type History [HistoryLen]state.Grid

// NewHistory builds the History from a search path (root first, leaf last).
func NewHistory(path []state.Board) (h History) {
	n := min(len(path), HistoryLen)
	for ii, board := range path[len(path)-n:] {
		h[HistoryLen-n+ii] = board.Grid
	}
	return
}

// Last returns the most recent grid.
func (h History) Last() state.Grid {
	return h[HistoryLen-1]
}

// NumPlaneValues is the number of values returned by History.Planes.
const NumPlaneValues = HistoryLen * state.NumRows * state.NumCols

// Planes returns the history as a flat float32 slice shaped [HistoryLen, NumRows, NumCols], with each cell
// holding its discrete value (0 for empty, 1 for first player, 2 for second player).
func (h History) Planes() []float32 {
	planes := make([]float32, 0, NumPlaneValues)
	for _, grid := range h {
		for _, row := range grid {
			for _, cell := range row {
				planes = append(planes, float32(cell))
			}
		}
	}
	return planes
}

// Evaluator maps the recent history of a board to a policy and a value estimate.
//
// The policy has PolicySize entries, one per column, and doesn't need to be masked to the legal moves.
// The value lies in [-1, 1] and is from the point of view of the player that made the last move.
//
// Implementations must be safe for concurrent use: the weights of a model are read-only from the
// searcher point of view.
type Evaluator interface {
	Evaluate(history History) (policy []float32, value float32, err error)
	String() string
}

// ValidateEvaluation checks the output of an Evaluator. Any violation is returned wrapping ErrMalformedEvaluation.
func ValidateEvaluation(policy []float32, value float32) error {
	if len(policy) != PolicySize {
		return errors.Wrapf(ErrMalformedEvaluation, "policy has %d entries, expected %d", len(policy), PolicySize)
	}
	for ii, prob := range policy {
		if math32.IsNaN(prob) || math32.IsInf(prob, 0) || prob < 0 {
			return errors.Wrapf(ErrMalformedEvaluation, "policy entry #%d is %g", ii, prob)
		}
	}
	if math32.IsNaN(value) || math32.IsInf(value, 0) || math32.Abs(value) > WinGameScore+1e-4 {
		return errors.Wrapf(ErrMalformedEvaluation, "value %g is not in [-1, 1]", value)
	}
	return nil
}

// MaskPolicy returns a copy of policy with the entries of the illegal moves zeroed, and normalized to sum 1.
// If the legal entries sum to 0, the masked policy is left all zeros.
func MaskPolicy(policy []float32, legal []state.Move) []float32 {
	masked := make([]float32, len(policy))
	for _, m := range legal {
		masked[m] = policy[m]
	}
	Normalize(masked)
	return masked
}

// Normalize divides the values by their sum, in place, if the sum is positive.
// It returns whether the values were normalized.
func Normalize[T constraints.Float](values []T) bool {
	var sum T
	for _, v := range values {
		sum += v
	}
	if sum <= 0 {
		return false
	}
	for ii := range values {
		values[ii] /= sum
	}
	return true
}

// SquashScore converts any score to a value between +WinGameScore and -WinGameScore
// by using then tanh(x) function -- a type of S curve.
func SquashScore(x float32) float32 {
	return math32.Tanh(x) * WinGameScore
}

// IsEndGameAndScore returns whether it's the end of the game, and the hard-coded score of a win/loss/draw
// for the player that made the last move.
// If isEnd is false, the score should be ignored.
func IsEndGameAndScore(b state.Board) (isEnd bool, score float32) {
	if !b.IsFinished() {
		return false, 0
	}
	if b.Draw() {
		return true, 0
	}
	if b.Winner() == b.NextPlayer.Opponent() {
		return true, WinGameScore
	}
	return true, -WinGameScore
}

// UniformEvaluator returns the same probability for every column and a constant value.
// It is deterministic, and mostly useful for tests and as a baseline.
type UniformEvaluator struct {
	Value float32
}

var _ Evaluator = UniformEvaluator{}

// Evaluate implements Evaluator.
func (e UniformEvaluator) Evaluate(_ History) ([]float32, float32, error) {
	policy := make([]float32, PolicySize)
	for ii := range policy {
		policy[ii] = 1.0 / PolicySize
	}
	return policy, e.Value, nil
}

// String implements Evaluator.
func (e UniformEvaluator) String() string {
	return "uniform"
}

// TerminalEvaluation returns the exact evaluation of the last grid of history if the game is over there:
// an all-zeros policy and the final score (see IsEndGameAndScore).
// It returns isEnd=false for unfinished or inconsistent grids.
//
// Model based evaluators use it so they are not required to learn the game rules.
func TerminalEvaluation(history History) (policy []float32, value float32, isEnd bool) {
	board, err := state.FromGrid(history.Last())
	if err != nil {
		return nil, 0, false
	}
	isEnd, value = IsEndGameAndScore(board)
	if !isEnd {
		return nil, 0, false
	}
	return make([]float32, PolicySize), value, true
}
