// c4compare plays a number of matches between two AI configurations, alternating who plays first,
// and reports the results.
package main

import (
	"context"
	"flag"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/janpfeifer/connect4zero/internal/matchlog"
	"github.com/janpfeifer/connect4zero/internal/players"
	_ "github.com/janpfeifer/connect4zero/internal/players/default"
	"github.com/janpfeifer/connect4zero/internal/profilers"
	"github.com/janpfeifer/connect4zero/internal/state"
	"github.com/janpfeifer/connect4zero/internal/ui/cli"
	"github.com/janpfeifer/connect4zero/internal/ui/spinning"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

var (
	flagPlayer1Config = flag.String("ai1", "", "1st player configuration.")
	flagPlayer2Config = flag.String("ai2", "", "2nd player configuration.")
	flagNumMatches    = flag.Int("num_matches", 100, "Number of matches to play.")
	flagParallelism   = flag.Int("parallelism", 0, "If > 0 ignore GOMAXPROCS and play "+
		"these many matches simultaneously.")
	flagPrintSteps = flag.Bool("print_steps", false, "Print board at each step. "+
		"Very verbose, and you probably want to set -parallelism=1.")
	flagMatchLog = flag.String("match_log", "", "If set, the moves of all matches are saved to this Parquet file.")
)

// globalCtx used everywhere. It is cancelled when the program is about to exit either by
// an interrupt (ctrl+C) or by reaching the end.
var globalCtx = context.Background()

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	if *flagPlayer1Config == "" || *flagPlayer2Config == "" {
		klog.Fatal("You must configure both players to compare with flags -ai1 and -ai2")
	}

	// Capture Control+C
	var globalCancel func()
	globalCtx, globalCancel = context.WithCancel(context.Background())
	spinning.SafeInterrupt(globalCancel, 5*time.Second)
	defer globalCancel()

	profilers.Setup(globalCtx)
	defer profilers.OnQuit()

	var writer *matchlog.Writer
	if *flagMatchLog != "" {
		writer = matchlog.NewWriter(*flagMatchLog)
	}
	must.M(runMatches(globalCtx, *flagNumMatches, writer))
	if writer != nil {
		must.M(writer.Flush())
		fmt.Printf("Saved %d moves to %q\n", writer.Len(), *flagMatchLog)
	}
}

// newMatchPlayers creates one pair of players per match, so their search trees are not shared
// across matches played in parallel.
func newMatchPlayers() (aiPlayers [2]players.Player, err error) {
	for playerIdx, config := range [2]string{*flagPlayer1Config, *flagPlayer2Config} {
		klog.V(1).Infof("Creating AI for player #%d from %q", playerIdx, config)
		p, err := players.New(config)
		if err != nil {
			return aiPlayers, errors.WithMessagef(err, "AI-%d", playerIdx+1)
		}
		aiPlayers[playerIdx] = p
	}
	return
}

func runMatches(ctx context.Context, numMatches int, writer *matchlog.Writer) error {
	// Fail early on invalid configurations. Keeping these players alive until the end also keeps shared
	// models loaded between matches.
	checkPlayers, err := newMatchPlayers()
	for _, p := range checkPlayers {
		if p != nil {
			defer p.Finalize()
		}
	}
	if err != nil {
		return err
	}
	r := NewResults(numMatches)
	var wg errgroup.Group
	wg.SetLimit(getParallelism())
	fmt.Printf("\r%s\033[0K", r)

	for matchIdx := range numMatches {
		wg.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			aiPlayers, err := newMatchPlayers()
			if err != nil {
				return err
			}
			// AI-1 plays first on even matches.
			aiFirst := matchIdx % 2
			if aiFirst == 1 {
				aiPlayers[0], aiPlayers[1] = aiPlayers[1], aiPlayers[0]
			}
			final, rows, err := runMatch(ctx, matchIdx, aiPlayers)
			if err != nil || ctx.Err() != nil {
				return err
			}
			if writer != nil {
				writer.Add(rows)
			}
			r.Record(aiFirst, final.Winner())
			fmt.Printf("\r%s\033[0K", r)
			return nil
		})
	}
	err = wg.Wait()
	fmt.Printf("\r%s\033[0K\n", r)
	if ctx.Err() != nil {
		fmt.Printf("Interrupted: %s\n", ctx.Err())
		return nil
	}
	return err
}

var (
	stepUI   = cli.New(true, false)
	muStepUI sync.Mutex
)

// runMatch plays one match, aiPlayers[0] playing first, and returns the final board and the rows of the match log.
func runMatch(ctx context.Context, matchNum int, aiPlayers [2]players.Player) (final state.Board, rows []matchlog.Row, err error) {
	if klog.V(1).Enabled() {
		klog.Infof("Starting match %d", matchNum)
		defer klog.Infof("Finished match %d", matchNum)
	}
	for _, p := range aiPlayers {
		p.NewMatch()
		defer p.Finalize()
	}
	board := state.NewBoard()
	matchName := fmt.Sprintf("Match-%05d", matchNum)
	match := matchlog.NewMatch(int64(matchNum))

	for !board.IsFinished() {
		if ctx.Err() != nil {
			klog.V(1).Infof("%s interrupted: %s", matchName, ctx.Err())
			return board, nil, nil
		}
		player := aiPlayers[board.NextPlayer]
		klog.V(2).Infof("%s: %s at move #%d", matchName, board.NextPlayer, board.MoveNumber)
		next, scores, err := player.Play(board)
		if err != nil {
			return board, nil, errors.WithMessagef(err, "%s, move #%d", matchName, board.MoveNumber)
		}
		match.Record(board, next, player.String(), scores)
		if *flagPrintSteps {
			muStepUI.Lock()
			fmt.Printf("\n%s, move #%d, %s played column %d\n", matchName, board.MoveNumber, player, next.LastMove)
			stepUI.PrintScores(scores)
			stepUI.Print(next)
			fmt.Println("------------------")
			muStepUI.Unlock()
		}
		board = next
	}
	return board, match.Finish(board), nil
}

// getParallelism returns the parallelism.
func getParallelism() (parallelism int) {
	parallelism = runtime.GOMAXPROCS(0)
	if *flagParallelism > 0 {
		parallelism = *flagParallelism
	}
	return
}
