package alphabeta

import (
	"testing"
	"time"

	"github.com/chewxy/math32"
	"github.com/janpfeifer/connect4zero/internal/ai"
	"github.com/janpfeifer/connect4zero/internal/parameters"
	"github.com/janpfeifer/connect4zero/internal/state"
	. "github.com/janpfeifer/connect4zero/internal/state/statetest"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var scorer = ai.HeuristicScorer{Scale: ai.DefaultHeuristicScale}

func TestWinningMove(t *testing.T) {
	board := BuildBoard("XXX.OOO")
	require.Equal(t, state.PlayerFirst, board.NextPlayer)
	searcher := New(scorer).WithMaxDepth(1)
	next, scores, err := searcher.Search(board)
	require.NoError(t, err)
	assert.Equal(t, state.Move(3), next.LastMove)
	assert.Equal(t, ai.WinGameScore, scores[3])
	assert.True(t, next.IsFinished())
}

func TestBlockingMove(t *testing.T) {
	board := BuildBoard(
		"X......",
		"XOOO..X",
	)
	require.Equal(t, state.PlayerFirst, board.NextPlayer)
	searcher := New(scorer).WithMaxDepth(2)
	next, scores, err := searcher.Search(board)
	require.NoError(t, err)
	assert.Equal(t, state.Move(4), next.LastMove)
	assert.Greater(t, scores[4], -ai.WinGameScore)
	for _, col := range []int{1, 2, 3, 5, 6} {
		assert.Equalf(t, -ai.WinGameScore, scores[col], "column %d doesn't block the opponent", col)
	}
}

func TestPruning(t *testing.T) {
	searcher := New(scorer).WithMaxDepth(4)
	next, scores, err := searcher.Search(state.NewBoard())
	require.NoError(t, err)
	require.Len(t, scores, ai.PolicySize)
	assert.Equal(t, 1, next.MoveNumber)
	stats := searcher.Stats()
	assert.Positive(t, stats.Prunes)
	// Without pruning there would be 7+7^2+7^3+7^4 nodes.
	assert.Less(t, stats.Nodes, 7+49+343+2401)
}

func TestMaxTime(t *testing.T) {
	searcher := New(scorer).WithMaxTime(50 * time.Millisecond)
	start := time.Now()
	next, scores, err := searcher.Search(state.NewBoard())
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.True(t, state.NewBoard().IsValid(next.LastMove))
	for col, score := range scores {
		assert.Falsef(t, math32.IsInf(score, -1), "column %d was not scored", col)
	}
	assert.Contains(t, searcher.String(), "max_time=50ms")
}

func TestFinishedBoard(t *testing.T) {
	won := PlayMoves(state.NewBoard(), 0, 1, 0, 1, 0, 1, 0)
	_, _, err := New(scorer).Search(won)
	require.Error(t, err)
}

// failingEvaluator is not an ai.ValueScorer, so it is used through ai.EvaluatorScorer.
type failingEvaluator struct {
	policy []float32
	value  float32
	err    error
}

func (e failingEvaluator) Evaluate(_ ai.History) ([]float32, float32, error) {
	return e.policy, e.value, e.err
}
func (e failingEvaluator) String() string { return "failing" }

func TestEvaluatorFailures(t *testing.T) {
	crashed := errors.New("model crashed")
	searcher := New(ai.EvaluatorScorer{Evaluator: failingEvaluator{err: crashed}}).WithMaxDepth(2)
	_, scores, err := searcher.Search(state.NewBoard())
	require.ErrorIs(t, err, crashed)
	require.Nil(t, scores)

	malformed := failingEvaluator{policy: make([]float32, 3), value: math32.NaN()}
	searcher = New(ai.EvaluatorScorer{Evaluator: malformed}).WithMaxDepth(2)
	_, _, err = searcher.Search(state.NewBoard())
	require.ErrorIs(t, err, ai.ErrMalformedEvaluation)

	// Same through the configuration, with iterative deepening.
	s, err := NewFromParams(malformed, parameters.NewFromConfigString("ab,max_time=1s"))
	require.NoError(t, err)
	_, _, err = s.Search(state.NewBoard())
	require.ErrorIs(t, err, ai.ErrMalformedEvaluation)
}

func TestNewFromParams(t *testing.T) {
	s, err := NewFromParams(ai.UniformEvaluator{}, parameters.NewFromConfigString("mcts"))
	require.NoError(t, err)
	require.Nil(t, s)

	_, err = NewFromParams(ai.UniformEvaluator{}, parameters.NewFromConfigString("ab,max_depth=0"))
	require.Error(t, err)

	params := parameters.NewFromConfigString("ab,max_depth=2")
	s, err = NewFromParams(ai.NewPolicyProxy(scorer, 1), params)
	require.NoError(t, err)
	require.NoError(t, parameters.CheckAllUsed(params))
	ab := s.(*Searcher)
	assert.Equal(t, 2, ab.maxDepth)
	_, isProxy := ab.scorer.(*ai.PolicyProxy)
	assert.True(t, isProxy)

	// Evaluators that are not ValueScorers use only their value.
	s, err = NewFromParams(ai.UniformEvaluator{Value: 0.25}, parameters.NewFromConfigString("ab,max_time=1s"))
	require.NoError(t, err)
	ab = s.(*Searcher)
	assert.Equal(t, time.Second, ab.maxTime)
	assert.Equal(t, float32(0.25), ab.scorer.Score(state.NewBoard()))
}
