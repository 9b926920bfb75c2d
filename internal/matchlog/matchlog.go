// Package matchlog records the moves of matches, along with the search scores and the final outcome,
// and writes them as Parquet files.
//
// Each move is one Row. The cell where the piece landed is also encoded as a token (row*NumCols+col+1, 0 being
// reserved for "no move"), convenient for sequence models.
package matchlog

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/janpfeifer/connect4zero/internal/state"
	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"
	"github.com/pkg/errors"
)

// SchemaVersion is stored in the Parquet file metadata under the "schema" key.
const SchemaVersion = "c4_move_v1"

// Row is a single move of a match.
type Row struct {
	MatchID    int64  `parquet:"match_id"`
	MoveNumber int32  `parquet:"move_number"`
	Player     int32  `parquet:"player"` // 0 for the first player, 1 for the second.
	Config     string `parquet:"config,dict"`
	Column     int32  `parquet:"column"`
	Token      int32  `parquet:"token"`

	// Scores of each column given by the searcher, from the mover point of view. Empty if the searcher didn't
	// provide scores.
	Scores []float32 `parquet:"scores"`

	// Outcome of the match from the mover point of view: 1 win, 0 draw (or unfinished), -1 loss.
	Outcome float32 `parquet:"outcome"`
}

// Token returns the token of the cell where move m lands on board.
func Token(board state.Board, m state.Move) int32 {
	row := board.ColumnHeight(m)
	return int32(row*state.NumCols + int(m) + 1)
}

// Match collects the rows of one match. It is not safe for concurrent use: each match has its own.
type Match struct {
	id   int64
	rows []Row
}

// NewMatch creates an empty Match with the given id.
func NewMatch(id int64) *Match {
	return &Match{id: id}
}

// Record the move that took board to next, played by the player configured with config.
// scores may be nil.
func (m *Match) Record(board, next state.Board, config string, scores []float32) {
	move := next.LastMove
	row := Row{
		MatchID:    m.id,
		MoveNumber: int32(board.MoveNumber),
		Player:     int32(board.NextPlayer),
		Config:     config,
		Column:     int32(move),
		Token:      Token(board, move),
	}
	if scores != nil {
		row.Scores = append([]float32(nil), scores...)
	}
	m.rows = append(m.rows, row)
}

// Finish sets the outcome of every row given the final board, and returns the rows.
func (m *Match) Finish(final state.Board) []Row {
	winner := final.Winner()
	for ii := range m.rows {
		row := &m.rows[ii]
		switch {
		case winner == state.PlayerInvalid:
			row.Outcome = 0
		case int32(winner) == row.Player:
			row.Outcome = 1
		default:
			row.Outcome = -1
		}
	}
	return m.rows
}

// Writer accumulates rows of many matches, possibly played in parallel, and writes them to a Parquet file.
type Writer struct {
	path string
	mu   sync.Mutex
	rows []Row
}

// NewWriter creates a Writer for the given file path. Nothing is written until Flush is called.
func NewWriter(path string) *Writer {
	return &Writer{path: path}
}

// Add rows of a finished match. It is safe for concurrent use.
func (w *Writer) Add(rows []Row) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rows = append(w.rows, rows...)
}

// Len returns the number of rows added so far.
func (w *Writer) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.rows)
}

// Flush writes all rows added so far to the file, replacing it atomically.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return WriteFile(w.path, w.rows)
}

// WriteFile writes the rows to a zstd compressed Parquet file.
// It writes to a temporary file first and then renames it, so readers never see a partial file.
func WriteFile(path string, rows []Row) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "failed to create directory for %q", path)
	}
	tmpPath := path + ".tmp"
	_ = os.Remove(tmpPath)
	if err := parquet.WriteFile(tmpPath, rows,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedBetterCompression}),
		parquet.KeyValueMetadata("schema", SchemaVersion),
	); err != nil {
		_ = os.Remove(tmpPath)
		return errors.Wrapf(err, "failed to write match log to %q", tmpPath)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return errors.Wrapf(err, "failed to rename match log to %q", path)
	}
	return nil
}

// ReadFile reads all the rows of a match log file.
func ReadFile(path string) ([]Row, error) {
	rows, err := parquet.ReadFile[Row](path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read match log %q", path)
	}
	return rows, nil
}
