// c4 plays Connect-Four on the terminal: human vs AI, human vs human (-hotseat) or AI vs AI (-watch).
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/janpfeifer/connect4zero/internal/matchlog"
	"github.com/janpfeifer/connect4zero/internal/players"
	_ "github.com/janpfeifer/connect4zero/internal/players/default"
	"github.com/janpfeifer/connect4zero/internal/profilers"
	"github.com/janpfeifer/connect4zero/internal/state"
	"github.com/janpfeifer/connect4zero/internal/ui/cli"
	"github.com/janpfeifer/connect4zero/internal/ui/spinning"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

var (
	flagHotseat   = flag.Bool("hotseat", false, "Hotseat match: human vs human")
	flagWatch     = flag.Bool("watch", false, "Watch mode: AI vs AI playing")
	flagFirst     = flag.String("first", "", "Who plays first: human or ai. Default is random.")
	flagAIConfig  = flag.String("config", players.DefaultPlayerConfig, "AI configuration against which to play")
	flagAIConfig2 = flag.String("config2", players.DefaultPlayerConfig, "Second AI configuration, if playing AI vs AI with -watch")
	flagScores    = flag.Bool("scores", false, "Print the scores of each column after the AI moves.")
	flagColor     = flag.Bool("color", true, "Use colors in the terminal.")
	flagMatchLog  = flag.String("match_log", "", "If set, the moves of the match are saved to this Parquet file.")

	// aiPlayers: if nil, it's a human playing.
	aiPlayers = [2]players.Player{nil, nil}

	globalCtx = context.Background()
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	if err := run(); err != nil {
		// Deferred clean up in run already happened.
		klog.Exitf("Failed to run match: %+v", err)
	}
}

// run sets up the players and plays the match. Profilers and players are finalized before it returns.
func run() error {
	// Capture Control+C
	var cancel func()
	globalCtx, cancel = context.WithCancel(context.Background())
	spinning.SafeInterrupt(cancel, 3*time.Second)
	defer cancel()

	profilers.Setup(globalCtx)
	defer profilers.OnQuit()

	err := createPlayers()
	for _, p := range aiPlayers {
		if p != nil {
			defer p.Finalize()
		}
	}
	if err != nil {
		return err
	}
	for _, p := range aiPlayers {
		if p != nil {
			p.NewMatch()
		}
	}
	return playMatch(cli.New(*flagColor, false))
}

// playMatch runs the match loop until the board is finished or the program is interrupted.
func playMatch(ui *cli.UI) error {
	board := state.NewBoard()
	match := matchlog.NewMatch(time.Now().UnixNano())
	for !board.IsFinished() {
		if globalCtx.Err() != nil {
			return nil
		}
		aiPlayer := aiPlayers[board.NextPlayer]
		var (
			next   state.Board
			scores []float32
			config = "human"
		)
		if aiPlayer == nil {
			var err error
			next, err = ui.RunNextMove(board)
			if err != nil {
				return err
			}
		} else {
			config = aiPlayer.String()
			ui.Print(board)
			s := spinning.New(globalCtx, fmt.Sprintf("    %s thinking", aiPlayer))
			var err error
			next, scores, err = aiPlayer.Play(board)
			elapsed := s.Done()
			if err != nil {
				return errors.WithMessagef(err, "AI %s failed to play move #%d", aiPlayer, board.MoveNumber)
			}
			fmt.Printf("    %s played column %d (%s)\n", ui.PlayerName(board.NextPlayer), next.LastMove, elapsed.Round(time.Millisecond))
			if *flagScores {
				ui.PrintScores(scores)
			}
		}
		match.Record(board, next, config, scores)
		board = next
	}
	ui.Print(board)
	ui.PrintWinner(board)
	if *flagMatchLog != "" {
		if err := matchlog.WriteFile(*flagMatchLog, match.Finish(board)); err != nil {
			return err
		}
		klog.Infof("Match saved to %q", *flagMatchLog)
	}
	return nil
}

// createPlayers in aiPlayers.
func createPlayers() error {
	if *flagHotseat && *flagWatch {
		return errors.New("-hotseat and -watch cannot be used together")
	}
	if *flagHotseat {
		// Both players are human, nothing to do.
		return nil
	}

	var aiPlayerNum state.PlayerNum
	if *flagWatch {
		aiPlayerNum = state.PlayerFirst
	} else {
		switch strings.ToLower(*flagFirst) {
		case "human":
			aiPlayerNum = state.PlayerSecond
		case "ai":
			aiPlayerNum = state.PlayerFirst
		case "":
			aiPlayerNum = state.PlayerNum(rand.IntN(2))
		default:
			return errors.Errorf("invalid -first=%q, only valid values are \"human\" or \"ai\"", *flagFirst)
		}
	}
	p, err := players.New(*flagAIConfig)
	if err != nil {
		return err
	}
	aiPlayers[aiPlayerNum] = p
	if !*flagWatch {
		return nil
	}
	p, err = players.New(*flagAIConfig2)
	if err != nil {
		return err
	}
	aiPlayers[aiPlayerNum.Opponent()] = p
	return nil
}
