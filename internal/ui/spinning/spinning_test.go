package spinning

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSpinning(t *testing.T) {
	Period = time.Millisecond
	out := &bytes.Buffer{}
	s := NewWithWriter(context.Background(), out, "thinking")
	time.Sleep(20 * time.Millisecond)
	elapsed := s.Done()
	require.GreaterOrEqual(t, elapsed, 20*time.Millisecond)
	require.Contains(t, out.String(), "thinking")
	require.True(t, strings.HasSuffix(out.String(), "\033[?25h"))

	// Second call is a no-op.
	before := out.Len()
	s.Done()
	require.Equal(t, before, out.Len())
}

func TestSpinningCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	out := &bytes.Buffer{}
	s := NewWithWriter(ctx, out, "waiting")
	cancel()
	s.Done()
	require.Contains(t, out.String(), "waiting")
}
