// Package statetest provides helper functions to create tests using Connect-Four boards.
package statetest

import (
	"strings"

	"github.com/gomlx/exceptions"
	. "github.com/janpfeifer/connect4zero/internal/state"
)

// BuildBoard from a text layout, one string per row, top row first, as printed by Board.String.
// Use "X" for the first player pieces, "O" for the second player and "." for empty cells.
//
// Missing top rows are considered empty. It panics if the layout is invalid.
func BuildBoard(rows ...string) Board {
	if len(rows) > NumRows {
		exceptions.Panicf("layout has %d rows, board only has %d", len(rows), NumRows)
	}
	var grid Grid
	for ii, line := range rows {
		row := len(rows) - 1 - ii
		line = strings.ReplaceAll(line, " ", "")
		if len(line) != NumCols {
			exceptions.Panicf("layout row %q must have %d cells", line, NumCols)
		}
		for col, r := range line {
			switch r {
			case 'X', 'x':
				grid[row][col] = CellFirst
			case 'O', 'o':
				grid[row][col] = CellSecond
			case '.':
				grid[row][col] = CellEmpty
			default:
				exceptions.Panicf("invalid cell %q in layout row %q", r, line)
			}
		}
	}
	board, err := FromGrid(grid)
	if err != nil {
		exceptions.Panicf("invalid layout: %+v", err)
	}
	return board
}

// PlayMoves plays the given columns in sequence starting from board.
func PlayMoves(board Board, moves ...int) Board {
	for _, m := range moves {
		board = board.Act(Move(m))
	}
	return board
}
