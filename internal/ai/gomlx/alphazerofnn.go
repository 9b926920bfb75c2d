package gomlx

import (
	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/layers"
	"github.com/gomlx/gomlx/ml/layers/activations"
	fnnLayer "github.com/gomlx/gomlx/ml/layers/fnn"
	"github.com/gomlx/gomlx/ml/layers/kan"
	"github.com/gomlx/gomlx/types/shapes"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/janpfeifer/connect4zero/internal/ai"
	"github.com/janpfeifer/connect4zero/internal/state"
)

// AlphaZeroFNN implements a feed-forward model that estimates both the value of a board and its policy,
// from the ai.History planes.
//
// The trunk is an FNN (or a KAN) over the one-hot encoded cells of the history, followed by a value head
// (tanh) and a policy head (softmax over the columns).
type AlphaZeroFNN struct {
	ctx *context.Context
}

// NewAlphaZeroFNN creates an AlphaZeroFNN model with a fresh context, initialized with hyperparameters set to their defaults.
func NewAlphaZeroFNN() *AlphaZeroFNN {
	fnn := &AlphaZeroFNN{ctx: context.New()}
	fnn.ctx.RngStateReset()
	fnn.ctx.SetParams(map[string]any{
		// Dimension of the trunk output, shared by the value and policy heads.
		"trunk_dim": 64,

		activations.ParamActivation: "relu",

		// AlphaZeroFNN network parameters:
		fnnLayer.ParamNumHiddenLayers: 2,
		fnnLayer.ParamNumHiddenNodes:  128,
		fnnLayer.ParamResidual:        true,
		fnnLayer.ParamNormalization:   "layer",

		// KAN network parameters:
		"kan":                     false, // Enable kan
		kan.ParamNumControlPoints: 10,    // Number of control points
		kan.ParamNumHiddenNodes:   32,
		kan.ParamNumHiddenLayers:  1,
	})
	fnn.ctx = fnn.ctx.Checked(false)
	return fnn
}

// Context used by the model: with both it weights and hyperparameters.
func (fnn *AlphaZeroFNN) Context() *context.Context {
	return fnn.ctx
}

// CreateInputs returns the planes of the history as a tensor shaped [1, ai.HistoryLen, state.NumRows, state.NumCols].
func (fnn *AlphaZeroFNN) CreateInputs(history ai.History) *tensors.Tensor {
	planesT := tensors.FromShape(shapes.Make(dtypes.Float32, 1, ai.HistoryLen, state.NumRows, state.NumCols))
	tensors.MutableFlatData(planesT, func(flat []float32) {
		copy(flat, history.Planes())
	})
	return planesT
}

// ForwardGraph returns the value (shaped [batch]) and the policy (shaped [batch, ai.PolicySize]) of
// a batch of history planes shaped [batch, ai.HistoryLen, state.NumRows, state.NumCols].
func (fnn *AlphaZeroFNN) ForwardGraph(ctx *context.Context, planes *Node) (value, policy *Node) {
	batchSize := planes.Shape().Dim(0)

	// Cells hold discrete values (empty, first or second player): one-hot encode them.
	cells := OneHot(ConvertDType(planes, dtypes.Int32), int(state.NumPlayers)+1, dtypes.Float32)
	cells = Reshape(cells, batchSize, -1)

	// Trunk is an FNN or a KAN, all configured by context hyperparameters. See NewAlphaZeroFNN for defaults.
	trunkDim := context.GetParamOr(ctx, "trunk_dim", 64)
	var embed *Node
	if context.GetParamOr(ctx, "kan", false) {
		embed = kan.New(ctx.In("kan"), cells, trunkDim).Done()
	} else {
		embed = fnnLayer.New(ctx.In("fnn"), cells, trunkDim).Done()
	}
	embed = activations.ApplyFromContext(ctx, embed)
	embed.AssertDims(batchSize, trunkDim)

	valueLogits := layers.Dense(ctx.In("value"), embed, true, 1)
	value = MulScalar(Tanh(Reshape(valueLogits, batchSize)), 0.99)

	policyLogits := layers.Dense(ctx.In("policy"), embed, true, ai.PolicySize)
	policy = Softmax(policyLogits, -1)
	return
}
