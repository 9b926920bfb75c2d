package searchers

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/janpfeifer/connect4zero/internal/state"
	. "github.com/janpfeifer/connect4zero/internal/state/statetest"
	"github.com/stretchr/testify/require"
)

// fixedSearcher always plays column 0, with the given scores.
type fixedSearcher struct {
	scores []float32
	resets int
}

func (s *fixedSearcher) Search(board state.Board) (state.Board, []float32, error) {
	return board.Act(0), s.scores, nil
}
func (s *fixedSearcher) Reset()         { s.resets++ }
func (s *fixedSearcher) String() string { return "fixed" }

func TestRandomSearcher(t *testing.T) {
	board := state.NewBoard()
	next, scores, err := RandomSearcher{}.Search(board)
	require.NoError(t, err)
	require.Nil(t, scores)
	require.Equal(t, 1, next.MoveNumber)

	won := PlayMoves(board, 0, 1, 0, 1, 0, 1, 0)
	_, _, err = RandomSearcher{}.Search(won)
	require.Error(t, err)
}

func TestRandomizedSearcher(t *testing.T) {
	base := &fixedSearcher{scores: NewColumnScores()}
	require.Same(t, base, NewRandomizedSearcher(base, 0, 10))

	// Only column 3 is scored: all others have probability 0.
	base.scores[3] = 0
	rs := NewRandomizedSearcher(base, 1, 10)
	for range 10 {
		next, _, err := rs.Search(state.NewBoard())
		require.NoError(t, err)
		require.Equal(t, state.Move(3), next.LastMove)
	}

	// Without scores for any column, moves are uniform: all columns eventually show up.
	base.scores = NewColumnScores()
	seen := make(map[state.Move]bool)
	for range 500 {
		next, _, err := rs.Search(state.NewBoard())
		require.NoError(t, err)
		seen[next.LastMove] = true
	}
	require.Len(t, seen, state.NumCols)

	// After maxMoveRandomness the base searcher choice is kept.
	board := PlayMoves(state.NewBoard(), 1, 2, 3, 4, 5, 6, 1, 2, 3, 4)
	next, _, err := rs.Search(board)
	require.NoError(t, err)
	require.Equal(t, state.Move(0), next.LastMove)

	rs.Reset()
	require.Equal(t, 1, base.resets)
	require.Contains(t, rs.String(), "fixed")
}

func TestNewColumnScores(t *testing.T) {
	for _, score := range NewColumnScores() {
		require.True(t, math32.IsInf(score, -1))
	}
}
