package mcts

import (
	"testing"
	"time"

	"github.com/chewxy/math32"
	"github.com/janpfeifer/connect4zero/internal/ai"
	"github.com/janpfeifer/connect4zero/internal/parameters"
	"github.com/janpfeifer/connect4zero/internal/state"
	"github.com/stretchr/testify/require"
)

func buildTestMCTS(t *testing.T, config string) *Searcher {
	params := parameters.NewFromConfigString(config)
	searcher, err := NewFromParams(ai.NewPolicyProxy(ai.HeuristicScorer{Scale: ai.DefaultHeuristicScale}, 10), params)
	require.NoError(t, err)
	require.NoError(t, parameters.CheckAllUsed(params))
	require.NotNil(t, searcher)
	return searcher.(*Searcher)
}

func TestNewFromParams(t *testing.T) {
	params := parameters.NewFromConfigString("max_traverses=10")
	searcher, err := NewFromParams(ai.UniformEvaluator{}, params)
	require.NoError(t, err)
	require.Nil(t, searcher)

	s := buildTestMCTS(t, "mcts,c_puct=2,max_traverses=100,min_traverses=10,max_time=1s,parallelism=3,temperature=0.5,max_rand_depth=4,keep_tree=false")
	require.Equal(t, float32(2), s.engine.cPuct)
	require.Equal(t, SearchOptions{MaxSimulations: 100, MinSimulations: 10, MaxTime: time.Second, Parallelism: 3}, s.opts)
	require.Equal(t, float32(0.5), s.temperature)
	require.Equal(t, 4, s.maxRandDepth)
	require.False(t, s.keepTree)

	for _, config := range []string{"mcts,c_puct=-1", "mcts,temperature=-1", "mcts,max_traverses=0", "mcts,max_traverses=x"} {
		_, err = NewFromParams(ai.UniformEvaluator{}, parameters.NewFromConfigString(config))
		require.Error(t, err, "config %q should have failed", config)
	}
}

func TestSearcherSearch(t *testing.T) {
	s := buildTestMCTS(t, "mcts,max_traverses=200,parallelism=2")
	board := xToWinBoard()
	next, scores, err := s.Search(board)
	require.NoError(t, err)
	require.Equal(t, state.Move(3), next.LastMove)
	require.Equal(t, state.PlayerFirst, next.Winner())
	require.Len(t, scores, ai.PolicySize)
	require.Equal(t, float32(1), scores[3])

	// Tree is kept across moves, until Reset.
	require.Greater(t, s.Engine().Tree().Len(), 0)
	s.Reset()
	require.Zero(t, s.Engine().Tree().Len())
}

func TestSearcherTemperature(t *testing.T) {
	s := buildTestMCTS(t, "mcts,max_traverses=50,temperature=1,max_rand_depth=100,keep_tree=false")
	board := state.NewBoard()
	for range 5 {
		next, scores, err := s.Search(board)
		require.NoError(t, err)
		require.Equal(t, 1, next.MoveNumber)
		require.True(t, board.IsValid(next.LastMove))
		for _, score := range scores {
			require.False(t, math32.IsNaN(score))
		}
	}
}
