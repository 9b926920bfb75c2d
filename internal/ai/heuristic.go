package ai

import (
	"fmt"

	"github.com/janpfeifer/connect4zero/internal/state"
)

// windowWeights indexed by the number of pieces of a single player in an otherwise empty window.
var windowWeights = [state.ConnectLength]float32{0, 1, 4, 16}

// nonTerminalMaxScore keeps estimates of unfinished games strictly below a sure win or loss.
const nonTerminalMaxScore = 0.99

// HeuristicScorer is a hand-written ValueScorer: it counts the lines of 4 cells (windows) still open for
// each player, weighting them by the number of pieces already in them.
type HeuristicScorer struct {
	// Scale applied to the weighted count before squashing it to (-1, 1).
	Scale float32
}

// DefaultHeuristicScale is a reasonable Scale for HeuristicScorer.
const DefaultHeuristicScale = 0.05

var _ ValueScorer = HeuristicScorer{}

// Score implements ValueScorer.
func (s HeuristicScorer) Score(board state.Board) float32 {
	if isEnd, score := IsEndGameAndScore(board); isEnd {
		return score
	}
	mover := board.NextPlayer.Opponent()
	var total float32
	for _, w := range state.Windows {
		var counts [3]int
		for _, pos := range w {
			counts[board.Grid[pos[0]][pos[1]]]++
		}
		mine, theirs := counts[mover.Cell()], counts[mover.Opponent().Cell()]
		if mine > 0 && theirs > 0 {
			continue
		}
		total += windowWeights[mine] - windowWeights[theirs]
	}
	return nonTerminalMaxScore * SquashScore(s.Scale*total)
}

// String implements ValueScorer.
func (s HeuristicScorer) String() string {
	return fmt.Sprintf("heuristic(scale=%g)", s.Scale)
}
