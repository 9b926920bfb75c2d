package searchers

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/gomlx/exceptions"
	"github.com/janpfeifer/connect4zero/internal/state"
	"k8s.io/klog/v2"
)

// NewRandomizedSearcher adds randomness to the move taken by an existing Searcher.
// Args:
//
//   - searcher: Baseline Searcher.
//   - randomness (>=0): Amount of randomness to use: it is applied as a divisor to the scores
//     returned by the Searcher, except if there is a winning move.
//     The larger the value the more it leads to randomness (exploration), and lower values
//     lead to "pick the best scoring move" (exploitation), with zero meaning no randomness.
//   - maxMoveRandomness: starting at this move no more randomness is used. This allows
//     randomness to be used only earlier in the match.
func NewRandomizedSearcher(searcher Searcher, randomness float64, maxMoveRandomness int) Searcher {
	if randomness <= 0 {
		// Without randomness, simply return the original Searcher.
		return searcher
	}
	return &randomizedSearcher{searcher: searcher, randomness: randomness, maxMoveRandomness: maxMoveRandomness}
}

// randomizedSearcher is a meta Searcher, that introduces randomness to its scores.
type randomizedSearcher struct {
	searcher          Searcher
	randomness        float64
	maxMoveRandomness int
}

// Assert randomizedSearcher is a Searcher.
var _ Searcher = &randomizedSearcher{}

// Search implements the Searcher interface.
func (rs *randomizedSearcher) Search(board state.Board) (nextBoard state.Board, columnScores []float32, err error) {
	// Get scores from base searcher for current board.
	nextBoard, columnScores, err = rs.searcher.Search(board)
	if err != nil {
		return
	}

	// If we reached the max move number for randomness, or if the searcher doesn't return scores for the
	// different columns, or if it is an end-game move, we don't add any randomness.
	if board.MoveNumber >= rs.maxMoveRandomness || nextBoard.IsFinished() || columnScores == nil {
		return
	}
	legal := board.LegalMoves()
	if len(legal) <= 1 {
		return
	}

	// Calculate probability for each legal move. Moves not scored (-Inf) get probability 0.
	logits := make([]float64, len(legal))
	for ii, m := range legal {
		logits[ii] = float64(columnScores[m]) / rs.randomness
	}
	probabilities := softmax(logits)

	// Select from probabilities.
	chance := rand.Float64()
	for moveIdx, value := range probabilities {
		if chance > value {
			chance -= value
			continue
		}

		// Found the new move:
		m := legal[moveIdx]
		if klog.V(2).Enabled() {
			klog.Infof("randomizedSearcher selection: move=%s, score=%.3f", m, columnScores[m])
		}
		if m == nextBoard.LastMove {
			// randomizedSearcher chose the same as the base searcher.
			return
		}
		nextBoard = board.Act(m)
		return
	}
	// Rounding errors: keep the base searcher choice.
	if chance > 1e-4 {
		exceptions.Panicf("Nothing selected!? remaining chance=%f, probabilities=%v", chance, probabilities)
	}
	return
}

// Reset implements the Searcher interface.
func (rs *randomizedSearcher) Reset() {
	rs.searcher.Reset()
}

// String implements the Searcher interface.
func (rs *randomizedSearcher) String() string {
	return fmt.Sprintf("randomized(%s, randomness=%g, until move #%d)", rs.searcher, rs.randomness, rs.maxMoveRandomness)
}

func softmax(values []float64) (probs []float64) {
	probs = make([]float64, len(values))
	var sum float64

	// Subtract maxValue from all values keep the probability the same, but makes for more numerically stable
	// values.
	maxValue := math.Inf(-1)
	for _, value := range values {
		maxValue = max(maxValue, value)
	}
	if math.IsInf(maxValue, -1) {
		// No information: uniform distribution.
		for ii := range probs {
			probs[ii] = 1.0 / float64(len(probs))
		}
		return
	}
	for ii, value := range values {
		probs[ii] = math.Exp(value - maxValue)
		sum += probs[ii]
	}
	for ii := range probs {
		probs[ii] /= sum
	}
	return
}
