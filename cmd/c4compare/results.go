package main

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/janpfeifer/connect4zero/internal/state"
	"gonum.org/v1/gonum/stat"
)

// Results of the comparison so far. It is safe for concurrent use.
type Results struct {
	mu                   sync.Mutex
	start                time.Time
	winsAs1st, winsAs2nd [2]int
	draws                [2]int
	played, total        int

	// points of AI-1 for each match played: 1 for a win, 0.5 for a draw and 0 for a loss.
	points []float64
}

// NewResults for a comparison of total matches.
func NewResults(total int) *Results {
	return &Results{start: time.Now(), total: total}
}

// Record the outcome of a match. aiFirst is the index (0 or 1) of the AI that played first,
// and winner is the PlayerNum that won (PlayerInvalid for a draw).
func (r *Results) Record(aiFirst int, winner state.PlayerNum) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.played++
	if winner == state.PlayerInvalid {
		r.draws[aiFirst]++
		r.points = append(r.points, 0.5)
		return
	}
	aiWinner := aiFirst
	if winner == state.PlayerSecond {
		aiWinner = 1 - aiFirst
		r.winsAs2nd[aiWinner]++
	} else {
		r.winsAs1st[aiWinner]++
	}
	if aiWinner == 0 {
		r.points = append(r.points, 1)
	} else {
		r.points = append(r.points, 0)
	}
}

// Score returns the mean points of AI-1 and the half-width of its 95% confidence interval.
func (r *Results) Score() (mean, interval float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.points) == 0 {
		return math.NaN(), math.NaN()
	}
	mean, std := stat.MeanStdDev(r.points, nil)
	if len(r.points) < 2 {
		return mean, math.NaN()
	}
	return mean, 1.96 * stat.StdErr(std, float64(len(r.points)))
}

func (r *Results) String() string {
	mean, interval := r.Score()
	r.mu.Lock()
	defer r.mu.Unlock()
	var parts []string
	parts = append(parts, fmt.Sprintf("Played %d of %d: ", r.played, r.total))
	for playerIdx := range 2 {
		parts = append(parts,
			fmt.Sprintf("AI-%d: %d Wins (1st: %d, 2nd: %d) / ",
				playerIdx+1, r.winsAs1st[playerIdx]+r.winsAs2nd[playerIdx],
				r.winsAs1st[playerIdx], r.winsAs2nd[playerIdx]))
	}
	parts = append(parts, fmt.Sprintf("%d draws (%d AI-1 as 1st, %d AI-2 as 1st) - ",
		r.draws[0]+r.draws[1], r.draws[0], r.draws[1]))
	if !math.IsNaN(mean) {
		parts = append(parts, fmt.Sprintf("AI-1 score %.3f", mean))
		if !math.IsNaN(interval) {
			parts = append(parts, fmt.Sprintf(" ±%.3f", interval))
		}
		parts = append(parts, " - ")
	}
	parts = append(parts, time.Since(r.start).Round(time.Second).String())
	return strings.Join(parts, "")
}
