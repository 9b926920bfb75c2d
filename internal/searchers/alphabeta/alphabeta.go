// Package alphabeta implements a depth-limited Alpha-Beta Pruning searcher, guided by an ai.ValueScorer.
//
// It is a baseline to compare the MCTS searcher against: with the heuristic scorer and a few plies of
// depth it already plays tactically sound moves.
package alphabeta

import (
	"fmt"
	"time"

	"github.com/chewxy/math32"
	"github.com/gomlx/exceptions"
	"github.com/janpfeifer/connect4zero/internal/ai"
	"github.com/janpfeifer/connect4zero/internal/generics"
	"github.com/janpfeifer/connect4zero/internal/searchers"
	"github.com/janpfeifer/connect4zero/internal/state"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Searcher implements the searchers.Searcher interface.
// It is used by players.SearcherEvaluator to implement an AI player.
type Searcher struct {
	maxDepth int
	maxTime  time.Duration
	scorer   ai.ValueScorer
	stats    Stats

	// deadline of the current search, zero if there is no time limit.
	deadline time.Time
}

// Assert that Searcher implements searchers.Searcher.
var _ searchers.Searcher = (*Searcher)(nil)

// Stats stores running stats collected during the search: for benchmarking, monitoring and debugging purposes.
type Stats struct {
	// Nodes "played" during search: boards created by a move.
	Nodes int

	// Evals is the number of boards passed to the scorer. End-game boards are not scored and don't count here.
	Evals int

	Prunes int
}

// New returns an Alpha-Beta Pruning based searchers.Searcher implementation.
// There are other optional configurations, see methods Searcher.With...
//
// See: wikipedia.org/wiki/Alpha-beta_pruning
func New(scorer ai.ValueScorer) *Searcher {
	return &Searcher{
		scorer:   scorer,
		maxDepth: DefaultMaxDepth,
	}
}

// DefaultMaxDepth for search.
const DefaultMaxDepth = 4

// WithMaxDepth sets the max depth of search: the unit here are plies (ply singular). Each player
// playing counts as one ply. See https://en.wikipedia.org/wiki/Ply_(game_theory).
//
// This overrides WithMaxTime.
func (ab *Searcher) WithMaxDepth(maxDepth int) *Searcher {
	ab.maxDepth = max(maxDepth, 1)
	ab.maxTime = 0
	return ab
}

// WithMaxTime sets a max duration of thinking per search: the search is iteratively deepened, one ply at a
// time, and the result of the deepest completed search is used. The first ply is always completed.
//
// This overrides WithMaxDepth.
func (ab *Searcher) WithMaxTime(maxTime time.Duration) *Searcher {
	ab.maxTime = maxTime
	if maxTime > 0 {
		ab.maxDepth = 0
	} else if ab.maxDepth == 0 {
		ab.maxDepth = DefaultMaxDepth
	}
	return ab
}

// Stats of the last search.
func (ab *Searcher) Stats() Stats { return ab.stats }

// errTimeout aborts the recursion when the deadline is reached.
var errTimeout = errors.New("alpha-beta search timeout")

// Search implements the Searcher interface.
//
// The column score of the chosen move is its exact alpha-beta value. For the other columns it is an upper bound,
// since bad moves are cut short by the pruning.
//
// Scorers may panic with an error (see ai.EvaluatorScorer): it is returned as the search error.
func (ab *Searcher) Search(board state.Board) (nextBoard state.Board, columnScores []float32, err error) {
	if board.IsFinished() {
		return board, nil, errors.Errorf("alpha-beta search on a finished board (move #%d)", board.MoveNumber)
	}
	start := time.Now()
	ab.stats = Stats{}
	err = exceptions.TryCatch[error](func() { columnScores = ab.search(board, start) })
	if err != nil {
		return board, nil, errors.WithMessagef(err, "alpha-beta search at move #%d", board.MoveNumber)
	}
	best := generics.SliceOrdering(columnScores, true)[0]
	nextBoard = board.Act(state.Move(best))
	if klog.V(2).Enabled() {
		elapsed := time.Since(start).Seconds()
		klog.Infof("Move #%d: alpha-beta scores %v, best %s, stats %+v, nodes/s=%.1f",
			board.MoveNumber, columnScores, nextBoard.LastMove, ab.stats, float64(ab.stats.Nodes)/elapsed)
	}
	return
}

// search runs to maxDepth, or with iterative deepening until maxTime, and returns the column scores.
func (ab *Searcher) search(board state.Board, start time.Time) (columnScores []float32) {
	if ab.maxTime <= 0 {
		ab.deadline = time.Time{}
		columnScores, _ = ab.root(board, ab.maxDepth)
		return
	}
	ab.deadline = start.Add(ab.maxTime)
	emptyCells := state.NumRows*state.NumCols - board.MoveNumber
	for depth := 1; depth <= emptyCells; depth++ {
		// Depth 1 never calls the recursion, so it always completes.
		scores, err := ab.root(board, depth)
		if err != nil {
			break
		}
		columnScores = scores
		klog.V(3).Infof("alpha-beta completed depth %d in %s", depth, time.Since(start))
		if math32.Abs(columnScores[generics.SliceOrdering(columnScores, true)[0]]) == ai.WinGameScore {
			// Result is decided, deeper searches won't change it.
			break
		}
	}
	return
}

// root runs the search at the root board, returning the score of each column.
func (ab *Searcher) root(board state.Board, depth int) ([]float32, error) {
	columnScores := searchers.NewColumnScores()
	children, scores := ab.executeAndScoreMoves(board)
	alpha, beta := math32.Inf(-1), math32.Inf(1)
	for _, idx := range generics.SliceOrdering(scores, true) {
		score := scores[idx]
		if depth > 1 && !children[idx].IsFinished() {
			opponentScore, err := ab.recursion(children[idx], depth-1, -beta, -alpha)
			if err != nil {
				return nil, err
			}
			score = -opponentScore
		}
		columnScores[children[idx].LastMove] = score
		alpha = max(alpha, score)
		if score == ai.WinGameScore {
			break
		}
	}
	return columnScores, nil
}

// recursion of the alpha-beta pruning algorithm (negamax form), with depthLeft plies to go.
// It returns the value of board for its player to move.
func (ab *Searcher) recursion(board state.Board, depthLeft int, alpha, beta float32) (float32, error) {
	if !ab.deadline.IsZero() && time.Now().After(ab.deadline) {
		return 0, errTimeout
	}

	// Children are scored even when not at a leaf: searching the better moves first prunes more.
	children, scores := ab.executeAndScoreMoves(board)
	best := math32.Inf(-1)
	for _, idx := range generics.SliceOrdering(scores, true) {
		score := scores[idx]
		if depthLeft > 1 && !children[idx].IsFinished() {
			opponentScore, err := ab.recursion(children[idx], depthLeft-1, -beta, -alpha)
			if err != nil {
				return 0, err
			}
			score = -opponentScore
		}
		best = max(best, score)
		alpha = max(alpha, score)
		if alpha >= beta {
			// The opponent will never take this path.
			ab.stats.Prunes++
			break
		}
		if score == ai.WinGameScore {
			break
		}
	}
	return best, nil
}

// executeAndScoreMoves creates the boards after each legal move, and returns them along with their scores
// from the point of view of the player to move on board.
//
// End-game boards are scored exactly, without using the scorer.
func (ab *Searcher) executeAndScoreMoves(board state.Board) (children []state.Board, scores []float32) {
	children = board.FindChildren()
	scores = make([]float32, len(children))
	ab.stats.Nodes += len(children)
	for ii, child := range children {
		if isEnd, score := ai.IsEndGameAndScore(child); isEnd {
			scores[ii] = score
			continue
		}
		scores[ii] = ab.scorer.Score(child)
		ab.stats.Evals++
	}
	return
}

// Reset implements searchers.Searcher. Alpha-beta keeps no state across searches.
func (ab *Searcher) Reset() {}

// String implements searchers.Searcher.
func (ab *Searcher) String() string {
	if ab.maxTime > 0 {
		return fmt.Sprintf("alphabeta(max_time=%s, %s)", ab.maxTime, ab.scorer)
	}
	return fmt.Sprintf("alphabeta(max_depth=%d, %s)", ab.maxDepth, ab.scorer)
}
