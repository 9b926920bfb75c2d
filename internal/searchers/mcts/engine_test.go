package mcts

import (
	"context"
	"math"
	"sync/atomic"
	"testing"

	"github.com/chewxy/math32"
	"github.com/janpfeifer/connect4zero/internal/ai"
	"github.com/janpfeifer/connect4zero/internal/state"
	. "github.com/janpfeifer/connect4zero/internal/state/statetest"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// winStub returns a one-hot policy on column favorite, and value +1 for boards won by the player that
// made the last move, 0 otherwise. It counts the number of calls.
type winStub struct {
	favorite state.Move
	calls    atomic.Int64
}

func (s *winStub) Evaluate(history ai.History) ([]float32, float32, error) {
	s.calls.Add(1)
	policy := make([]float32, ai.PolicySize)
	policy[s.favorite] = 1
	board, err := state.FromGrid(history.Last())
	if err != nil {
		return nil, 0, err
	}
	if board.IsFinished() && !board.Draw() {
		return policy, 1, nil
	}
	return policy, 0, nil
}

func (s *winStub) String() string { return "winStub" }

// countingStub returns a different value at each call, so re-evaluations can be detected.
type countingStub struct {
	calls atomic.Int64
}

func (s *countingStub) Evaluate(_ ai.History) ([]float32, float32, error) {
	n := s.calls.Add(1)
	policy := []float32{1, 2, 3, 4, 5, 6, 7}
	return policy, 1 / float32(n+1), nil
}

func (s *countingStub) String() string { return "countingStub" }

// brokenStub returns the given malformed outputs.
type brokenStub struct {
	policy []float32
	value  float32
}

func (s brokenStub) Evaluate(_ ai.History) ([]float32, float32, error) { return s.policy, s.value, nil }
func (s brokenStub) String() string                                    { return "brokenStub" }

// xToWinBoard returns a board where the first player (X) wins by playing column 3.
func xToWinBoard() state.Board {
	return BuildBoard("XXX.OOO")
}

func TestSimulateUniform(t *testing.T) {
	e := New(ai.UniformEvaluator{})
	root := state.NewBoard()
	for range 100 {
		require.NoError(t, e.Simulate(root))
	}
	rootStats := e.Tree().Stats(root)
	require.Equal(t, 100, rootStats.Visits)
	require.True(t, rootStats.Expanded)
	require.Equal(t, state.NumCols, rootStats.NumChildren)

	// Every pass through the root, except the one that expanded it, went through one of its children.
	children, expanded := e.Tree().Children(root)
	require.True(t, expanded)
	sumVisits := 0
	for _, child := range children {
		stats := e.Tree().Stats(child)
		require.GreaterOrEqual(t, stats.Visits, 1, "child %s never visited", child.LastMove)
		require.InDelta(t, 1.0/7.0, stats.Prior, 1e-6)
		sumVisits += stats.Visits
	}
	require.Equal(t, rootStats.Visits-1, sumVisits)

	// All values are 0: first child wins the tie.
	chosen, scores, err := e.Choose(root)
	require.NoError(t, err)
	require.Equal(t, state.Move(0), chosen.LastMove)
	require.Len(t, scores, state.NumCols)
	for ii, ms := range scores {
		require.Equal(t, state.Move(ii), ms.Move)
		require.Equal(t, float32(0), ms.Score)
	}
}

func TestChooseBestMean(t *testing.T) {
	e := New(ai.UniformEvaluator{})
	root := state.NewBoard()
	_, _, err := e.Expand(root, nil)
	require.NoError(t, err)
	e.Tree().RecordVisit(root.Act(2), 0.3)
	e.Tree().RecordVisit(root.Act(4), 0.7)
	e.Tree().RecordVisit(root.Act(4), 0.7)
	e.Tree().RecordVisit(root.Act(5), 0.7)
	e.Tree().RecordVisit(root.Act(6), -0.2)

	chosen, scores, err := e.Choose(root)
	require.NoError(t, err)
	// Columns 4 and 5 tie at 0.7: first one wins.
	require.Equal(t, state.Move(4), chosen.LastMove)
	require.True(t, math32.IsInf(scores[0].Score, -1))
	require.InDelta(t, 0.3, scores[2].Score, 1e-6)
	require.Equal(t, scores[4].Score, scores[5].Score)
	require.Equal(t, 2, e.Tree().Stats(root.Act(4)).Visits)
}

func TestBackpropagateWinLeaf(t *testing.T) {
	parent := xToWinBoard()
	require.Equal(t, state.PlayerFirst, parent.NextPlayer)
	leaf := parent.Act(3)
	require.Equal(t, state.PlayerFirst, leaf.Winner())

	e := New(&winStub{favorite: 3})
	e.Backpropagate([]state.Board{parent, leaf}, 1)
	require.Equal(t, float32(1), e.Tree().Stats(leaf).Value)
	require.Equal(t, float32(-1), e.Tree().Stats(parent).Value)
}

func TestSimulateWinLeaf(t *testing.T) {
	parent := xToWinBoard()
	leaf := parent.Act(3)
	stub := &winStub{favorite: 3}
	e := New(stub)

	// First simulation expands the parent, second one reaches the winning leaf.
	require.NoError(t, e.Simulate(parent))
	require.NoError(t, e.Simulate(parent))

	leafStats := e.Tree().Stats(leaf)
	require.Equal(t, 1, leafStats.Visits)
	require.Equal(t, float32(1), leafStats.Value)
	require.Equal(t, float32(1), leafStats.Prior)
	require.True(t, leafStats.Expanded)
	require.Zero(t, leafStats.NumChildren)

	// Parent received 0 from its own expansion, and then -1 from the leaf.
	parentStats := e.Tree().Stats(parent)
	require.Equal(t, 2, parentStats.Visits)
	require.InDelta(t, -0.5, parentStats.Value, 1e-6)

	// Terminal leaves are evaluated only once: further visits reuse the cached value.
	for range 5 {
		require.NoError(t, e.Simulate(parent))
	}
	require.Equal(t, int64(2), stub.calls.Load())
	require.Equal(t, 6, e.Tree().Stats(leaf).Visits)
	require.Equal(t, float32(1), e.Tree().Stats(leaf).Value)

	chosen, scores, err := e.Choose(parent)
	require.NoError(t, err)
	require.Equal(t, leaf.Key(), chosen.Key())
	require.Equal(t, float32(1), scores[3].Score)
	require.True(t, math32.IsInf(scores[0].Score, -1))
}

func TestExpandIdempotent(t *testing.T) {
	stub := &countingStub{}
	e := New(stub)
	root := state.NewBoard()
	path := []state.Board{root}

	policy1, value1, err := e.Expand(root, path)
	require.NoError(t, err)
	require.InDelta(t, 0.5, value1, 1e-6)
	require.InDelta(t, 7.0/28.0, policy1[6], 1e-6)
	statsBefore := e.Tree().Stats(root)
	childBefore := e.Tree().Stats(root.Act(6))

	policy2, value2, err := e.Expand(root, path)
	require.NoError(t, err)
	require.Equal(t, policy1, policy2)
	require.Equal(t, value1, value2)
	require.Equal(t, int64(1), stub.calls.Load())
	require.Equal(t, statsBefore, e.Tree().Stats(root))
	require.Equal(t, childBefore, e.Tree().Stats(root.Act(6)))

	// SetChildren on an expanded board is a no-op.
	require.False(t, e.Tree().SetChildren(root, nil, nil))
	require.Equal(t, statsBefore, e.Tree().Stats(root))
}

func TestExpandZeroPolicy(t *testing.T) {
	// Column 0 is full, and the evaluator only likes column 0.
	board := PlayMoves(state.NewBoard(), 0, 0, 0, 0, 0, 0)
	require.False(t, board.IsValid(0))
	e := New(&winStub{favorite: 0})
	policy, _, err := e.Expand(board, nil)
	require.NoError(t, err)
	require.Equal(t, make([]float32, ai.PolicySize), policy)

	children, expanded := e.Tree().Children(board)
	require.True(t, expanded)
	require.Len(t, children, state.NumCols-1)
	for _, child := range children {
		require.Zero(t, e.Tree().Stats(child).Prior)
	}
}

func TestExpandMalformed(t *testing.T) {
	root := state.NewBoard()
	for _, stub := range []brokenStub{
		{policy: []float32{1, 1, 1}},
		{policy: make([]float32, ai.PolicySize), value: float32(math.NaN())},
		{policy: []float32{1, 1, 1, -1, 1, 1, 1}},
	} {
		e := New(stub)
		err := e.Simulate(root)
		require.Error(t, err)
		require.True(t, errors.Is(err, ai.ErrMalformedEvaluation), "unexpected error %+v", err)
		require.False(t, e.Tree().IsExpanded(root))
		require.Zero(t, e.Tree().Stats(root).Visits)
	}
}

func TestRecordVisitMean(t *testing.T) {
	tree := NewSearchTree()
	board := state.NewBoard()
	outcomes := []float32{1, -1, 0.5, 0.25}
	var sum float32
	for ii, outcome := range outcomes {
		tree.RecordVisit(board, outcome)
		sum += outcome
		stats := tree.Stats(board)
		require.Equal(t, ii+1, stats.Visits)
		require.InDelta(t, sum/float32(ii+1), stats.Value, 1e-6)
	}
}

func TestChooseFinished(t *testing.T) {
	won := xToWinBoard().Act(3)
	e := New(ai.UniformEvaluator{})
	_, _, err := e.Choose(won)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrInvalidOperation))

	_, err = e.Search(context.Background(), won, SearchOptions{MaxSimulations: 10})
	require.True(t, errors.Is(err, ErrInvalidOperation))
}

func TestChooseUnexpandedAndReset(t *testing.T) {
	e := New(ai.UniformEvaluator{})
	root := state.NewBoard()
	checkRandomChild := func() {
		chosen, scores, err := e.Choose(root)
		require.NoError(t, err)
		require.Nil(t, scores)
		require.Equal(t, 1, chosen.MoveNumber)
		require.True(t, root.IsValid(chosen.LastMove))
		require.Equal(t, root.Act(chosen.LastMove).Key(), chosen.Key())
	}
	checkRandomChild()

	for range 20 {
		require.NoError(t, e.Simulate(root))
	}
	require.Greater(t, e.Tree().Len(), 1)
	e.Reset()
	require.Zero(t, e.Tree().Len())
	require.Zero(t, e.Tree().Stats(root).Visits)
	require.False(t, e.Tree().IsExpanded(root))
	require.False(t, e.Tree().IsExpanded(root.Act(0)))
	checkRandomChild()
}

func TestSelectStopsAtLeaf(t *testing.T) {
	e := New(&winStub{favorite: 3})
	root := xToWinBoard()
	require.Len(t, e.Select(root), 1)
	require.NoError(t, e.Simulate(root))
	path := e.Select(root)
	require.Len(t, path, 2)
	require.Equal(t, state.Move(3), path[1].LastMove)
}

func TestParallelSearch(t *testing.T) {
	e := New(ai.UniformEvaluator{})
	root := state.NewBoard()
	n, err := e.Search(context.Background(), root, SearchOptions{MaxSimulations: 400, Parallelism: 4})
	require.NoError(t, err)
	require.Equal(t, 400, n)
	require.Equal(t, 400, e.Tree().Stats(root).Visits)
	for _, child := range root.FindChildren() {
		assert.Greater(t, e.Tree().Stats(child).Visits, 0)
	}

	// A cancelled context stops the search before any simulation.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n, err = e.Search(ctx, root, SearchOptions{MaxSimulations: 400, Parallelism: 4})
	require.NoError(t, err)
	require.Zero(t, n)

	_, err = e.Search(context.Background(), root, SearchOptions{})
	require.Error(t, err)
}

func TestSearchFindsWin(t *testing.T) {
	root := xToWinBoard()
	e := New(ai.NewPolicyProxy(ai.HeuristicScorer{Scale: ai.DefaultHeuristicScale}, 10))
	_, err := e.Search(context.Background(), root, SearchOptions{MaxSimulations: 200, Parallelism: 2})
	require.NoError(t, err)
	chosen, scores, err := e.Choose(root)
	require.NoError(t, err)
	require.Equal(t, state.Move(3), chosen.LastMove)
	require.Equal(t, state.PlayerFirst, chosen.Winner())
	require.Equal(t, float32(1), scores[3].Score)
}
