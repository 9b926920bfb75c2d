package profilers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteHeapProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heap.pprof")
	require.NoError(t, writeHeapProfile(path))
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Positive(t, info.Size())

	require.Error(t, writeHeapProfile(filepath.Join(t.TempDir(), "missing", "heap.pprof")))
}
