package matchlog

import (
	"path/filepath"
	"testing"

	"github.com/janpfeifer/connect4zero/internal/state"
	"github.com/stretchr/testify/require"
)

func TestToken(t *testing.T) {
	board := state.NewBoard()
	require.Equal(t, int32(4), Token(board, 3))
	board = board.Act(3)
	require.Equal(t, int32(state.NumCols+4), Token(board, 3))
	require.Equal(t, int32(state.NumCols), Token(board, 6))
}

func TestMatchAndWriter(t *testing.T) {
	// First player wins with a vertical line on column 0.
	m := NewMatch(7)
	board := state.NewBoard()
	for ii, col := range []state.Move{0, 1, 0, 1, 0, 1, 0} {
		next := board.Act(col)
		var scores []float32
		if ii%2 == 0 {
			scores = []float32{0.5, 0, 0, 0, 0, 0, 0}
		}
		m.Record(board, next, "heuristic,mcts", scores)
		board = next
	}
	require.Equal(t, state.PlayerFirst, board.Winner())
	rows := m.Finish(board)
	require.Len(t, rows, 7)
	require.Equal(t, float32(1), rows[0].Outcome)
	require.Equal(t, float32(-1), rows[1].Outcome)
	require.Equal(t, int32(1), rows[1].Player)
	require.Equal(t, int32(6), rows[6].MoveNumber)
	require.Equal(t, int32(3*state.NumCols+1), rows[6].Token)

	path := filepath.Join(t.TempDir(), "logs", "matches.parquet")
	w := NewWriter(path)
	w.Add(rows)
	require.Equal(t, 7, w.Len())
	require.NoError(t, w.Flush())

	got, err := ReadFile(path)
	require.NoError(t, err)
	require.Len(t, got, 7)
	require.Equal(t, int64(7), got[3].MatchID)
	require.Equal(t, "heuristic,mcts", got[3].Config)
	require.Equal(t, int32(1), got[3].Column)
	require.Equal(t, float32(-1), got[3].Outcome)
	require.Equal(t, []float32{0.5, 0, 0, 0, 0, 0, 0}, got[6].Scores)
}
