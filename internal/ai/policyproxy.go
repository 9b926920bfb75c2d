package ai

import (
	"fmt"
	"math"
	"slices"

	"github.com/janpfeifer/connect4zero/internal/state"
	"github.com/pkg/errors"
)

// ValueScorer returns a score (value) for a given board, from the point of view of the player that
// made the last move.
type ValueScorer interface {
	Score(board state.Board) float32
	String() string
}

// BatchValueScorer is a ValueScorer that handles batches.
type BatchValueScorer interface {
	ValueScorer

	// BatchScore aggregate board scoring in batches, presumably more efficient.
	BatchScore(boards []state.Board) []float32
}

// PolicyProxy implements an Evaluator that wraps a common ValueScorer.
// It scores the policy by using the score of the board after each move.
//
// It allows a plain value function to guide the MCTS (Monte Carlo Tree Search) searcher.
type PolicyProxy struct {
	ValueScorer
	batchScorer BatchValueScorer
	scale       float32
}

var _ Evaluator = (*PolicyProxy)(nil)

// NewPolicyProxy returns a proxy Evaluator that takes a ValueScorer to score the boards after
// each move, passes the scores to a Softmax and returns that probability as a policy.
// It also takes scale as a multiplier before the Softmax.
func NewPolicyProxy(scorer ValueScorer, scale float32) *PolicyProxy {
	p := &PolicyProxy{
		ValueScorer: scorer,
		scale:       scale,
	}
	if batchScorer, ok := scorer.(BatchValueScorer); ok {
		p.batchScorer = batchScorer
	} else {
		p.batchScorer = BatchValueScorerProxy{scorer}
	}
	return p
}

// Evaluate implements Evaluator. Only the last board of the history is used.
func (p *PolicyProxy) Evaluate(history History) (policy []float32, value float32, err error) {
	board, err := state.FromGrid(history.Last())
	if err != nil {
		return nil, 0, errors.WithMessage(err, "PolicyProxy can't rebuild board from history")
	}
	policy = make([]float32, PolicySize)
	value = p.Score(board)
	children := board.FindChildren()
	if len(children) == 0 {
		return
	}
	scores := p.batchScorer.BatchScore(children)
	if p.scale != 1 {
		for ii := range scores {
			scores[ii] = p.scale * scores[ii]
		}
	}
	for ii, prob := range Softmax(scores) {
		policy[children[ii].LastMove] = prob
	}
	return
}

// String implements Evaluator.
func (p *PolicyProxy) String() string {
	return fmt.Sprintf("PolicyProxy(%s)", p.ValueScorer)
}

// Softmax returns the Softmax of the given logits in a numerically stable way.
func Softmax(logits []float32) (probs []float32) {
	probs = make([]float32, len(logits))
	var sum float32

	// Subtract maxValue from all logits keep the probability the same, but makes for more numerically stable
	// logits.
	maxValue := slices.Max(logits)
	for ii, value := range logits {
		probs[ii] = float32(math.Exp(float64(value - maxValue)))
		sum += probs[ii]
	}
	for ii := range probs {
		probs[ii] /= sum
	}
	return
}
