// Package searchers defines the Searcher interface, implemented by the search algorithms, and a few
// generic searchers.
package searchers

import (
	"github.com/chewxy/math32"
	"github.com/janpfeifer/connect4zero/internal/ai"
	"github.com/janpfeifer/connect4zero/internal/state"
	"github.com/pkg/errors"
)

// Searcher is the interface that any of the search algorithms must adhere to be valid.
type Searcher interface {
	// Search returns the board after the chosen move.
	//
	// Optionally, it also returns the score of each column (ai.PolicySize entries), from the point of view of
	// the player to move on board. Columns not playable or not explored score -Inf. Searchers
	// without meaningful scores return nil.
	Search(board state.Board) (nextBoard state.Board, columnScores []float32, err error)

	// Reset discards any state kept between searches. It is called at the start of a new match.
	Reset()

	// String describes the searcher, for logging.
	String() string
}

// NewColumnScores returns scores for each column initialized to -Inf.
func NewColumnScores() []float32 {
	scores := make([]float32, ai.PolicySize)
	for ii := range scores {
		scores[ii] = math32.Inf(-1)
	}
	return scores
}

// RandomSearcher plays uniformly random moves. It is used as a baseline.
type RandomSearcher struct{}

var _ Searcher = RandomSearcher{}

// Search implements Searcher.
func (RandomSearcher) Search(board state.Board) (state.Board, []float32, error) {
	if board.IsFinished() {
		return board, nil, errors.Errorf("random search on a finished board (move #%d)", board.MoveNumber)
	}
	return board.FindRandomChild(), nil, nil
}

// Reset implements Searcher.
func (RandomSearcher) Reset() {}

// String implements Searcher.
func (RandomSearcher) String() string { return "random" }
