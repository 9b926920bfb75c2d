package players

import (
	"testing"

	"github.com/janpfeifer/connect4zero/internal/ai"
	"github.com/janpfeifer/connect4zero/internal/searchers"
	"github.com/janpfeifer/connect4zero/internal/state"
	"github.com/stretchr/testify/require"
)

// finalizingEvaluator counts the calls to Finalize.
type finalizingEvaluator struct {
	ai.UniformEvaluator
	finalized int
}

func (e *finalizingEvaluator) Finalize() { e.finalized++ }

func TestFinalizeReleasesEvaluator(t *testing.T) {
	e := &finalizingEvaluator{}
	p := &SearcherEvaluator{Searcher: searchers.RandomSearcher{}, Evaluator: e}
	p.NewMatch()
	next, _, err := p.Play(state.NewBoard())
	require.NoError(t, err)
	require.Equal(t, 1, next.MoveNumber)
	require.Zero(t, e.finalized)
	p.Finalize()
	require.Equal(t, 1, e.finalized)

	// Evaluators without resources are fine.
	p = &SearcherEvaluator{Searcher: searchers.RandomSearcher{}, Evaluator: ai.UniformEvaluator{}}
	p.Finalize()
}
