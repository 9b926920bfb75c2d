// Package state implements the Connect-Four board: an immutable 6x7 grid of cells plus the player
// to move.
//
// Boards are plain values: every operation that changes the position (Act, FindChildren, ...) returns
// a new Board, so they can be freely shared across goroutines and search tree nodes.
package state

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

const (
	// NumRows of the board. Row 0 is the bottom row, where the first piece of a column lands.
	NumRows = 6

	// NumCols of the board, also the number of possible moves.
	NumCols = 7

	// NumCells in the board, after which the game is a draw.
	NumCells = NumRows * NumCols

	// ConnectLength is the number of aligned pieces needed to win.
	ConnectLength = 4

	// NumPlayers is always 2.
	NumPlayers = 2
)

// Cell content: empty or holding a piece of one of the players.
type Cell uint8

const (
	CellEmpty Cell = iota
	CellFirst
	CellSecond
)

// CellLetters used for text rendering of the board.
var CellLetters = [3]string{".", "X", "O"}

// String implements fmt.Stringer.
func (c Cell) String() string {
	if int(c) >= len(CellLetters) {
		return "?"
	}
	return CellLetters[c]
}

// Player owning the piece, or PlayerInvalid for empty cells.
func (c Cell) Player() PlayerNum {
	if c == CellEmpty {
		return PlayerInvalid
	}
	return PlayerNum(c - 1)
}

// PlayerNum is either 0 or 1 corresponding to the first player to move or the second player to move.
type PlayerNum uint8

const (
	PlayerFirst PlayerNum = iota
	PlayerSecond

	// PlayerInvalid represents an invalid PlayerNum, also used as "no winner".
	PlayerInvalid
)

var playerNames = [3]string{"First", "Second", "Invalid"}

// String implements fmt.Stringer.
func (p PlayerNum) String() string {
	if int(p) >= len(playerNames) {
		return fmt.Sprintf("PlayerNum(%d)", p)
	}
	return playerNames[p]
}

// Cell returns the cell value used for pieces of the player.
func (p PlayerNum) Cell() Cell {
	return Cell(p + 1)
}

// Opponent returns the other player.
func (p PlayerNum) Opponent() PlayerNum {
	return 1 - p
}

// Move is the column where a piece is dropped. It is also the opaque move label reported in search diagnostics.
type Move int8

// NoMove is the LastMove of the initial board.
const NoMove Move = -1

// String implements fmt.Stringer.
func (m Move) String() string {
	if m == NoMove {
		return "none"
	}
	return fmt.Sprintf("col-%d", m)
}

// Grid of cells indexed by [row][col], row 0 at the bottom.
type Grid [NumRows][NumCols]Cell

// Key is the identity of a board position: two boards with equal keys are the same position, regardless of the
// order of the moves that led to them.
type Key struct {
	Grid       Grid
	NextPlayer PlayerNum
}

// Board is a Connect-Four position. The zero value is not valid, use NewBoard or FromGrid.
type Board struct {
	Grid Grid

	// NextPlayer is the player to move.
	NextPlayer PlayerNum

	// MoveNumber is the number of pieces already played.
	MoveNumber int

	// LastMove is the move that produced this board, NoMove for the initial board or boards created with FromGrid.
	LastMove Move

	winner  PlayerNum
	heights [NumCols]int8
}

// NewBoard returns the empty initial board.
func NewBoard() Board {
	return Board{NextPlayer: PlayerFirst, LastMove: NoMove, winner: PlayerInvalid}
}

// Key returns the identity of the position.
func (b Board) Key() Key {
	return Key{Grid: b.Grid, NextPlayer: b.NextPlayer}
}

// ColumnHeight returns the number of pieces already in the column, which is also the row where the next piece lands.
func (b Board) ColumnHeight(m Move) int {
	return int(b.heights[m])
}

// IsValid returns whether the move can be played on the board.
func (b Board) IsValid(m Move) bool {
	return m >= 0 && m < NumCols && b.heights[m] < NumRows && !b.IsFinished()
}

// IsFinished returns whether a player connected four or the board is full.
func (b Board) IsFinished() bool {
	return b.winner != PlayerInvalid || b.MoveNumber >= NumCells
}

// Winner returns the player that connected four, or PlayerInvalid if the game is a draw or not finished.
func (b Board) Winner() PlayerNum {
	return b.winner
}

// Draw returns whether the board is full without a winner.
func (b Board) Draw() bool {
	return b.IsFinished() && b.winner == PlayerInvalid
}

// LegalMoves returns the playable columns in ascending order. It is empty for finished boards.
func (b Board) LegalMoves() []Move {
	if b.IsFinished() {
		return nil
	}
	moves := make([]Move, 0, NumCols)
	for col := range Move(NumCols) {
		if b.heights[col] < NumRows {
			moves = append(moves, col)
		}
	}
	return moves
}

// Act drops a piece of the NextPlayer in the given column and returns the new board.
// It panics if the move is not valid.
func (b Board) Act(m Move) Board {
	if !b.IsValid(m) {
		exceptions.Panicf("invalid move %s for board at move #%d:\n%s", m, b.MoveNumber, b)
	}
	row := b.heights[m]
	b.Grid[row][m] = b.NextPlayer.Cell()
	b.heights[m]++
	b.LastMove = m
	b.MoveNumber++
	if b.Grid.connectsAt(int(row), int(m)) {
		b.winner = b.NextPlayer
	}
	b.NextPlayer = b.NextPlayer.Opponent()
	return b
}

// FindChildren returns one board per legal move, in the same order as LegalMoves.
func (b Board) FindChildren() []Board {
	moves := b.LegalMoves()
	children := make([]Board, len(moves))
	for ii, m := range moves {
		children[ii] = b.Act(m)
	}
	return children
}

// FindRandomChild returns the board after a uniformly random legal move.
// It panics if the board is finished.
func (b Board) FindRandomChild() Board {
	moves := b.LegalMoves()
	if len(moves) == 0 {
		exceptions.Panicf("FindRandomChild called on a finished board:\n%s", b)
	}
	return b.Act(moves[rand.IntN(len(moves))])
}

// directions to check for four-in-a-row: horizontal, vertical and both diagonals.
var directions = [4][2]int{{0, 1}, {1, 0}, {1, 1}, {1, -1}}

func inBoard(row, col int) bool {
	return row >= 0 && row < NumRows && col >= 0 && col < NumCols
}

// connectsAt returns whether the piece at (row, col) is part of a line of ConnectLength pieces.
func (g *Grid) connectsAt(row, col int) bool {
	cell := g[row][col]
	if cell == CellEmpty {
		return false
	}
	for _, dir := range directions {
		count := 1
		for _, sign := range [2]int{1, -1} {
			r, c := row+sign*dir[0], col+sign*dir[1]
			for inBoard(r, c) && g[r][c] == cell {
				count++
				r, c = r+sign*dir[0], c+sign*dir[1]
			}
		}
		if count >= ConnectLength {
			return true
		}
	}
	return false
}

// Window is a line of ConnectLength cell positions (row, col) that wins if filled by one player.
type Window [ConnectLength][2]int8

// Windows lists all the lines of ConnectLength cells of the board.
var Windows = func() (windows []Window) {
	for row := range NumRows {
		for col := range NumCols {
			for _, dir := range directions {
				endRow := row + (ConnectLength-1)*dir[0]
				endCol := col + (ConnectLength-1)*dir[1]
				if !inBoard(endRow, endCol) {
					continue
				}
				var w Window
				for ii := range ConnectLength {
					w[ii] = [2]int8{int8(row + ii*dir[0]), int8(col + ii*dir[1])}
				}
				windows = append(windows, w)
			}
		}
	}
	return
}()

// FromGrid builds a board from the given grid. The player to move and the move number are inferred from
// the number of pieces of each player.
//
// It returns an error if the grid has floating pieces, if the piece counts can't result from alternating play,
// or if both players connected four.
func FromGrid(grid Grid) (Board, error) {
	b := Board{Grid: grid, LastMove: NoMove, winner: PlayerInvalid}
	var counts [NumPlayers]int
	for col := range NumCols {
		for row := range NumRows {
			cell := grid[row][col]
			if cell == CellEmpty {
				continue
			}
			if cell > CellSecond {
				return Board{}, errors.Errorf("invalid cell value %d at row %d, col %d", cell, row, col)
			}
			if int(b.heights[col]) != row {
				return Board{}, errors.Errorf("floating piece at row %d, col %d", row, col)
			}
			b.heights[col]++
			counts[cell.Player()]++
		}
	}
	switch counts[PlayerFirst] - counts[PlayerSecond] {
	case 0:
		b.NextPlayer = PlayerFirst
	case 1:
		b.NextPlayer = PlayerSecond
	default:
		return Board{}, errors.Errorf("impossible piece counts: %d for the first player and %d for the second",
			counts[PlayerFirst], counts[PlayerSecond])
	}
	b.MoveNumber = counts[PlayerFirst] + counts[PlayerSecond]
	for _, w := range Windows {
		cell := grid[w[0][0]][w[0][1]]
		if cell == CellEmpty {
			continue
		}
		complete := true
		for _, pos := range w[1:] {
			if grid[pos[0]][pos[1]] != cell {
				complete = false
				break
			}
		}
		if !complete {
			continue
		}
		if b.winner != PlayerInvalid && b.winner != cell.Player() {
			return Board{}, errors.New("both players connected four")
		}
		b.winner = cell.Player()
	}
	return b, nil
}

// String renders the board as text, top row first.
func (b Board) String() string {
	var sb strings.Builder
	for row := NumRows - 1; row >= 0; row-- {
		for col := range NumCols {
			sb.WriteString(b.Grid[row][col].String())
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
