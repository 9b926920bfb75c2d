package main

import (
	"math"
	"testing"

	"github.com/janpfeifer/connect4zero/internal/state"
	"github.com/stretchr/testify/require"
)

func TestResults(t *testing.T) {
	r := NewResults(4)
	mean, interval := r.Score()
	require.True(t, math.IsNaN(mean))
	require.True(t, math.IsNaN(interval))

	// AI-1 first and wins.
	r.Record(0, state.PlayerFirst)
	mean, interval = r.Score()
	require.Equal(t, 1.0, mean)
	require.True(t, math.IsNaN(interval))

	// AI-2 first, and second player (AI-1) wins.
	r.Record(1, state.PlayerSecond)
	// AI-2 first and wins.
	r.Record(1, state.PlayerFirst)
	// Draw with AI-1 first.
	r.Record(0, state.PlayerInvalid)

	require.Equal(t, [2]int{1, 1}, r.winsAs1st)
	require.Equal(t, [2]int{1, 0}, r.winsAs2nd)
	require.Equal(t, [2]int{1, 0}, r.draws)
	mean, interval = r.Score()
	require.InDelta(t, 0.625, mean, 1e-9)
	require.Greater(t, interval, 0.0)
	require.Contains(t, r.String(), "Played 4 of 4: AI-1: 2 Wins (1st: 1, 2nd: 1) / AI-2: 1 Wins (1st: 1, 2nd: 0) / 1 draws")
	require.Contains(t, r.String(), "AI-1 score 0.625")
}
