package mcts

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/chewxy/math32"
	"github.com/janpfeifer/connect4zero/internal/searchers"
	"github.com/janpfeifer/connect4zero/internal/state"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Searcher implements searchers.Searcher with an Engine: it runs a search budget at each move and picks
// the move with Engine.Choose, or by sampling the visit counts if a temperature is configured.
type Searcher struct {
	engine *Engine
	opts   SearchOptions

	// temperature (usually represented as the greek letter τ) is an exponent applied
	// to the counts used in the policy distribution (π) formula. If set to zero, it will
	// always take the best estimate move.
	temperature float32

	// maxRandDepth defines the move (in plies) after which temperature is disabled and
	// it simply takes the best move, as opposed to randomly using the policy distribution.
	// A value <= 0 means there is no maxRandDepth.
	maxRandDepth int

	// keepTree reuses the statistics across moves of a match.
	keepTree bool
}

var _ searchers.Searcher = (*Searcher)(nil)

// NewSearcher returns a Searcher using the engine with the given options, always taking the best move.
func NewSearcher(engine *Engine, opts SearchOptions) *Searcher {
	return &Searcher{engine: engine, opts: opts, keepTree: true}
}

// Engine used by the searcher.
func (s *Searcher) Engine() *Engine {
	return s.engine
}

// Search implements searchers.Searcher.
func (s *Searcher) Search(board state.Board) (nextBoard state.Board, columnScores []float32, err error) {
	if !s.keepTree {
		s.engine.Reset()
	}
	if _, err = s.engine.Search(context.Background(), board, s.opts); err != nil {
		return
	}
	var moveScores []MoveScore
	nextBoard, moveScores, err = s.engine.Choose(board)
	if err != nil {
		return
	}
	columnScores = searchers.NewColumnScores()
	for _, ms := range moveScores {
		columnScores[ms.Move] = ms.Score
	}
	if klog.V(2).Enabled() {
		klog.Infof("Move #%d: mcts scores %v, best %s", board.MoveNumber, moveScores, nextBoard.LastMove)
	}
	if s.temperature > 0 && (s.maxRandDepth <= 0 || board.MoveNumber < s.maxRandDepth) {
		nextBoard, err = s.sampleByVisits(board)
	}
	return
}

// sampleByVisits picks a child with probability proportional to visits^(1/temperature).
func (s *Searcher) sampleByVisits(board state.Board) (state.Board, error) {
	children, expanded := s.engine.Tree().Children(board)
	if !expanded || len(children) == 0 {
		return state.Board{}, errors.Errorf("board at move #%d was not expanded by the search", board.MoveNumber)
	}
	probs := make([]float32, len(children))
	var sum float32
	for ii, child := range children {
		visits := float32(s.engine.Tree().Stats(child).Visits)
		if s.temperature != 1 {
			visits = math32.Pow(visits, 1/s.temperature)
		}
		probs[ii] = visits
		sum += visits
	}
	if sum <= 0 {
		return children[rand.IntN(len(children))], nil
	}
	r := rand.Float32() * sum
	for ii, prob := range probs {
		r -= prob
		if r <= 0 {
			return children[ii], nil
		}
	}
	// Due to rounding errors we may get here, in this case return last child.
	return children[len(children)-1], nil
}

// Reset implements searchers.Searcher. It clears the search tree.
func (s *Searcher) Reset() {
	s.engine.Reset()
}

// String implements searchers.Searcher.
func (s *Searcher) String() string {
	return fmt.Sprintf("mcts(%s, c_puct=%g, max_traverses=%d)", s.engine.Evaluator(), s.engine.cPuct, s.opts.MaxSimulations)
}

// String implements fmt.Stringer.
func (ms MoveScore) String() string {
	return fmt.Sprintf("%s:%.3f", ms.Move, ms.Score)
}
