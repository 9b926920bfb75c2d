// Package cli implements a command-line UI for the game.
package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/chewxy/math32"
	"github.com/janpfeifer/connect4zero/internal/generics"
	"github.com/janpfeifer/connect4zero/internal/state"
	"github.com/pkg/errors"
	"golang.org/x/term"
)

var ansiFilter = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// displayWidth of s removes its color/control sequences and returns the length of what is left.
func displayWidth(s string) int {
	return len([]rune(ansiFilter.ReplaceAllString(s, "")))
}

// UI renders boards and reads moves from a human player.
type UI struct {
	color, clearScreen bool
	reader             *bufio.Reader
	out                io.Writer
}

// ErrTooManyParsingErrors is returned by ReadMove when the user failed to enter a valid column 3 times.
var ErrTooManyParsingErrors = errors.New("failed to read command 3 times")

var (
	styleFirst  = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	styleSecond = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	styleEmpty  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	styleBoard  = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("12")).
			Padding(0, 1)
	styleLast = lipgloss.NewStyle().Underline(true)
)

// New creates a UI that reads from stdin and writes to stdout.
func New(color bool, clearScreen bool) *UI {
	return NewWithIO(color, clearScreen, os.Stdin, os.Stdout)
}

// NewWithIO creates a UI with the given input and output.
func NewWithIO(color bool, clearScreen bool, in io.Reader, out io.Writer) *UI {
	return &UI{
		color:       color,
		clearScreen: clearScreen,
		reader:      bufio.NewReader(in),
		out:         out,
	}
}

// terminalWidth returns the width of the output terminal, or 0 if it is not a terminal.
func (ui *UI) terminalWidth() int {
	f, ok := ui.out.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return 0
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return width
}

func (ui *UI) printCentered(block string) {
	lines := strings.Split(block, "\n")
	blockWidth := 0
	for _, line := range lines {
		blockWidth = max(blockWidth, displayWidth(line))
	}
	indent := max((ui.terminalWidth()-blockWidth)/2, 0)
	for _, line := range lines {
		if len(line) == 0 {
			_, _ = fmt.Fprintln(ui.out)
			continue
		}
		_, _ = fmt.Fprintf(ui.out, "%s%s\n", strings.Repeat(" ", indent), line)
	}
}

// cell renders one cell of the grid.
func (ui *UI) cell(c state.Cell, isLast bool) string {
	letter := state.CellLetters[c]
	if !ui.color {
		return letter
	}
	var style lipgloss.Style
	switch c {
	case state.CellFirst:
		style = styleFirst
	case state.CellSecond:
		style = styleSecond
	default:
		style = styleEmpty
	}
	if isLast {
		style = style.Inherit(styleLast)
	}
	return style.Render(letter)
}

// Render returns the board as a multi-line string, top row first, with the column numbers at the bottom.
func (ui *UI) Render(board state.Board) string {
	var lastRow, lastCol = -1, -1
	if board.LastMove != state.NoMove {
		lastCol = int(board.LastMove)
		lastRow = board.ColumnHeight(board.LastMove) - 1
	}
	var sb strings.Builder
	for row := state.NumRows - 1; row >= 0; row-- {
		cells := make([]string, state.NumCols)
		for col := range state.NumCols {
			cells[col] = ui.cell(board.Grid[row][col], row == lastRow && col == lastCol)
		}
		sb.WriteString(strings.Join(cells, " "))
		sb.WriteByte('\n')
	}
	cols := make([]string, state.NumCols)
	for col := range state.NumCols {
		cols[col] = strconv.Itoa(col)
	}
	sb.WriteString(strings.Join(cols, " "))
	if ui.color {
		return styleBoard.Render(sb.String())
	}
	return sb.String()
}

// Print the board, and the player to move if the game is not finished.
func (ui *UI) Print(board state.Board) {
	if ui.clearScreen {
		_, _ = fmt.Fprint(ui.out, "\033c")
	}
	_, _ = fmt.Fprintln(ui.out)
	ui.printCentered(ui.Render(board))
	_, _ = fmt.Fprintln(ui.out)
	if !board.IsFinished() {
		ui.printCentered(fmt.Sprintf("Move #%d: %s to play", board.MoveNumber, ui.PlayerName(board.NextPlayer)))
	}
}

// PlayerName returns the player name with its piece, colored if color is enabled.
func (ui *UI) PlayerName(player state.PlayerNum) string {
	name := fmt.Sprintf("%s (%s)", player, state.CellLetters[player.Cell()])
	if !ui.color {
		return name
	}
	if player == state.PlayerFirst {
		return styleFirst.Render(name)
	}
	return styleSecond.Render(name)
}

// PrintWinner prints the outcome of a finished board.
func (ui *UI) PrintWinner(b state.Board) {
	winner := b.Winner()
	_, _ = fmt.Fprintln(ui.out)
	var msg string
	if winner == state.PlayerInvalid {
		msg = "*** DRAW! ***"
	} else {
		msg = fmt.Sprintf("*** %s PLAYER WINS!! Congratulations! ***", strings.ToUpper(winner.String()))
	}
	if ui.color {
		msg = lipgloss.NewStyle().
			Background(lipgloss.Color("13")).
			Foreground(lipgloss.Color("0")).
			Padding(1, 2).
			Render(msg)
	}
	ui.printCentered(msg)
	_, _ = fmt.Fprintln(ui.out)
}

// PrintScores prints the column scores returned by a searcher, best first. Columns with -Inf scores are skipped.
func (ui *UI) PrintScores(scores []float32) {
	if len(scores) == 0 {
		return
	}
	var parts []string
	for _, col := range generics.SliceOrdering(scores, true) {
		if math32.IsInf(scores[col], -1) {
			continue
		}
		parts = append(parts, fmt.Sprintf("%d:%+.3f", col, scores[col]))
	}
	ui.printCentered("Scores: " + strings.Join(parts, "  "))
}

// ReadMove reads a column from the user, retrying up to 3 times on invalid input.
func (ui *UI) ReadMove(b state.Board) (state.Move, error) {
	legal := generics.SetWith(b.LegalMoves()...)
	for range 3 {
		_, _ = fmt.Fprintf(ui.out, "    %s column > ", ui.PlayerName(b.NextPlayer))
		text, err := ui.reader.ReadString('\n')
		text = strings.TrimSpace(text)
		if err != nil && (err != io.EOF || text == "") {
			return state.NoMove, errors.Wrap(err, "failed to read move")
		}
		col, parseErr := strconv.Atoi(text)
		if parseErr != nil {
			_, _ = fmt.Fprintf(ui.out, "    * Failed to parse your input %q, please enter a column number.\n", text)
			continue
		}
		if col < 0 || col >= state.NumCols || !legal.Has(state.Move(col)) {
			_, _ = fmt.Fprintf(ui.out, "    * Column %d is not a valid move, choose one of %v.\n", col, b.LegalMoves())
			continue
		}
		return state.Move(col), nil
	}
	return state.NoMove, ErrTooManyParsingErrors
}

// RunNextMove prints the board and reads the move of a human player. Parsing errors are retried indefinitely.
func (ui *UI) RunNextMove(board state.Board) (state.Board, error) {
	for {
		ui.Print(board)
		m, err := ui.ReadMove(board)
		if errors.Is(err, ErrTooManyParsingErrors) {
			continue
		}
		if err != nil {
			return board, err
		}
		return board.Act(m), nil
	}
}
