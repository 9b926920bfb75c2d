package onnx

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/janpfeifer/connect4zero/internal/ai"
	"github.com/janpfeifer/connect4zero/internal/parameters"
	"github.com/stretchr/testify/require"
)

func TestNewNotSelected(t *testing.T) {
	e, err := New(parameters.NewFromConfigString("heuristic,mcts"))
	require.NoError(t, err)
	require.Nil(t, e)
}

func TestNewMissingModels(t *testing.T) {
	dir := t.TempDir()
	_, err := New(parameters.Params{ModelKey: dir})
	require.ErrorContains(t, err, PolicyModelFile)

	require.NoError(t, os.WriteFile(filepath.Join(dir, PolicyModelFile), []byte("not a model"), 0644))
	_, err = New(parameters.Params{ModelKey: dir, "policy_logits": ""})
	require.ErrorContains(t, err, ValueModelFile)

	_, err = New(parameters.Params{ModelKey: dir, "onnx_threads": "many"})
	require.Error(t, err)
}

func TestPostProcess(t *testing.T) {
	e := &Evaluator{policyLogits: true, squashValue: true}
	policy, value := e.postProcess([]float32{0, 0, 0, 0, 0, 0, 0}, 100)
	require.InDeltaSlice(t, []float32{1. / 7, 1. / 7, 1. / 7, 1. / 7, 1. / 7, 1. / 7, 1. / 7}, policy, 1e-6)
	require.InDelta(t, 1.0, value, 1e-6)
	require.NoError(t, ai.ValidateEvaluation(policy, value))

	e = &Evaluator{}
	raw := []float32{0.5, 0.5, 0, 0, 0, 0, 0}
	policy, value = e.postProcess(raw, 0.25)
	require.Equal(t, raw, policy)
	require.Equal(t, float32(0.25), value)
	policy[0] = 1
	require.Equal(t, float32(0.5), raw[0])
}
