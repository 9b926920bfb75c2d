// Package mcts is a Monte Carlo Tree Search for the Alpha-Zero algorithm: a PUCT search guided by the
// policy and value of an ai.Evaluator.
//
// References used, since the original paper doesn't actually provide the formulas:
//
//   - https://suragnair.github.io/posts/alphazero.html by Surag Nair
//   - https://web.stanford.edu/class/archive/cs/cs221/cs221.1196/sections/Section5.pdf
//
// AlphaZero original paper -- that mostly talks about its successes but not the actual
// formula:
//
//   - Mastering Chess and Shogi by Self-Play with a General Reinforcement Learning Algorithm
//     https://arxiv.org/abs/1712.01815
//
// The Engine can be driven one simulation at a time (Simulate, then Choose), or with Search, which
// runs simulations (optionally in parallel) until a budget is exhausted.
package mcts

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chewxy/math32"
	"github.com/janpfeifer/connect4zero/internal/ai"
	"github.com/janpfeifer/connect4zero/internal/state"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

// ErrInvalidOperation is returned (wrapped) when asking for a move on a finished board.
var ErrInvalidOperation = errors.New("invalid operation")

// DefaultCPuct is the default exploration constant of the PUCT formula.
const DefaultCPuct = float32(1)

// MoveScore is the diagnostic score of one child of a node: its mean value, or -Inf if it was never visited.
type MoveScore struct {
	Move  state.Move
	Score float32
}

// Engine runs the PUCT search over a SearchTree.
//
// Select, Expand and Backpropagate are the individual steps of a simulation, exposed mostly for tests.
// Simulate, Search and Choose can be called concurrently. Reset requires exclusive access, and blocks until
// in-flight calls are finished.
type Engine struct {
	tree      *SearchTree
	evaluator ai.Evaluator

	// cPuct weights the exploration term of the PUCT formula.
	cPuct float32

	// resetMu is held in read mode by Simulate, Search and Choose, and in write mode by Reset.
	resetMu sync.RWMutex
}

// New creates an Engine with an empty tree.
func New(evaluator ai.Evaluator) *Engine {
	return &Engine{
		tree:      NewSearchTree(),
		evaluator: evaluator,
		cPuct:     DefaultCPuct,
	}
}

// WithCPuct sets the exploration constant. It returns the Engine itself, so calls can be chained.
func (e *Engine) WithCPuct(cPuct float32) *Engine {
	e.cPuct = cPuct
	return e
}

// Tree returns the SearchTree owned by the engine.
func (e *Engine) Tree() *SearchTree {
	return e.tree
}

// Evaluator used by the engine.
func (e *Engine) Evaluator() ai.Evaluator {
	return e.evaluator
}

// Select walks from the root following the best PUCT child, until it reaches a board that is not
// expanded, or that has no children. It returns the path, root first and leaf last.
func (e *Engine) Select(root state.Board) []state.Board {
	path := []state.Board{root}
	board := root
	for {
		n := e.tree.getOrCreate(board)
		next, found := e.selectChild(n)
		if !found {
			return path
		}
		board = next
		path = append(path, board)
	}
}

// selectChild returns the child of n with the highest PUCT score, ties going to the first child.
// The children statistics are read while holding n's lock.
func (e *Engine) selectChild(n *nodeStats) (child state.Board, found bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.children) == 0 {
		return
	}
	explorationFactor := e.cPuct * math32.Sqrt(float32(n.visits))
	bestIdx := -1
	var bestScore float32
	for ii, childBoard := range n.children {
		c := e.tree.getOrCreate(childBoard)
		c.mu.Lock()
		score := c.value + explorationFactor*c.prior/float32(1+c.visits)
		c.mu.Unlock()
		if bestIdx == -1 || score > bestScore {
			bestIdx = ii
			bestScore = score
		}
	}
	return n.children[bestIdx], true
}

// Expand evaluates the leaf and, the first time it is called for the board, records its children and
// their priors. Later calls return the cached masked policy and value, without changing the tree.
//
// The path (root first) is used to build the ai.History fed to the evaluator, and should end with the leaf.
// The returned policy is masked to the legal moves of the leaf (all zeros for finished boards).
//
// Evaluator failures, or evaluations breaking the ai.Evaluator contract (ai.ErrMalformedEvaluation), are
// returned as errors.
func (e *Engine) Expand(leaf state.Board, path []state.Board) (policy []float32, value float32, err error) {
	if policy, value, found := e.tree.expansion(leaf); found {
		return policy, value, nil
	}
	if len(path) == 0 || path[len(path)-1].Key() != leaf.Key() {
		path = append(path[:len(path):len(path)], leaf)
	}
	rawPolicy, value, err := e.evaluator.Evaluate(ai.NewHistory(path))
	if err != nil {
		return nil, 0, errors.WithMessagef(err, "evaluator %s failed on board at move #%d", e.evaluator, leaf.MoveNumber)
	}
	if err = ai.ValidateEvaluation(rawPolicy, value); err != nil {
		return nil, 0, errors.WithMessagef(err, "evaluator %s on board at move #%d", e.evaluator, leaf.MoveNumber)
	}
	legal := leaf.LegalMoves()
	policy = ai.MaskPolicy(rawPolicy, legal)
	priors := make([]float32, len(legal))
	for ii, m := range legal {
		priors[ii] = policy[m]
	}
	policy, value, _ = e.tree.setExpansion(leaf, leaf.FindChildren(), priors, policy, value)
	return policy, value, nil
}

// Backpropagate records value on the path, from the leaf (last) to the root (first), flipping
// its sign at every ply.
func (e *Engine) Backpropagate(path []state.Board, value float32) {
	for ii := len(path) - 1; ii >= 0; ii-- {
		e.tree.RecordVisit(path[ii], value)
		value = -value
	}
}

// Simulate runs one simulation from root: select, expand and backpropagate.
func (e *Engine) Simulate(root state.Board) error {
	e.resetMu.RLock()
	defer e.resetMu.RUnlock()
	return e.simulate(root)
}

func (e *Engine) simulate(root state.Board) error {
	path := e.Select(root)
	_, value, err := e.Expand(path[len(path)-1], path)
	if err != nil {
		return err
	}
	e.Backpropagate(path, value)
	return nil
}

// Choose returns the child of board with the highest mean value, along with the diagnostic
// score of every child. Children never visited score -Inf, and ties go to the first child.
//
// If board was never expanded, it returns a random child and nil scores.
// It returns an error wrapping ErrInvalidOperation if the board is finished.
func (e *Engine) Choose(board state.Board) (state.Board, []MoveScore, error) {
	if board.IsFinished() {
		return state.Board{}, nil, errors.Wrapf(ErrInvalidOperation,
			"can't choose a move on a finished board (move #%d, winner %s)", board.MoveNumber, board.Winner())
	}
	e.resetMu.RLock()
	defer e.resetMu.RUnlock()
	children, expanded := e.tree.Children(board)
	if !expanded || len(children) == 0 {
		return board.FindRandomChild(), nil, nil
	}
	scores := make([]MoveScore, len(children))
	bestIdx := -1
	for ii, child := range children {
		score := math32.Inf(-1)
		if stats := e.tree.Stats(child); stats.Visits > 0 {
			score = stats.Value
		}
		scores[ii] = MoveScore{Move: child.LastMove, Score: score}
		if bestIdx == -1 || score > scores[bestIdx].Score {
			bestIdx = ii
		}
	}
	return children[bestIdx], scores, nil
}

// Reset clears all the statistics. It waits for in-flight Simulate, Search and Choose calls to finish.
func (e *Engine) Reset() {
	e.resetMu.Lock()
	defer e.resetMu.Unlock()
	e.tree.Reset()
}

// SearchOptions define the budget of Engine.Search.
// At least one of MaxSimulations or MaxTime must be set, or the context must have a deadline.
type SearchOptions struct {
	// MaxSimulations is the maximum number of simulations, if > 0.
	MaxSimulations int

	// MinSimulations is run even if MaxTime is exceeded.
	MinSimulations int

	// MaxTime is the wall-clock budget, if > 0.
	MaxTime time.Duration

	// Parallelism is the number of goroutines running simulations. Values <= 1 mean sequential.
	Parallelism int
}

// Search runs simulations from root until the budget in opts is exhausted or ctx is cancelled.
// A simulation in progress is always completed.
//
// It returns the number of simulations completed. Cancellation of ctx is not an error, but evaluator
// errors are.
func (e *Engine) Search(ctx context.Context, root state.Board, opts SearchOptions) (int, error) {
	if root.IsFinished() {
		return 0, errors.Wrapf(ErrInvalidOperation, "can't search a finished board (move #%d)", root.MoveNumber)
	}
	if opts.MaxSimulations <= 0 && opts.MaxTime <= 0 {
		if _, hasDeadline := ctx.Deadline(); !hasDeadline {
			return 0, errors.New("mcts.Search requires MaxSimulations, MaxTime or a context with deadline")
		}
	}
	e.resetMu.RLock()
	defer e.resetMu.RUnlock()

	start := time.Now()
	var claimed, completed atomic.Int64
	done := func(ctx context.Context) bool {
		if ctx.Err() != nil {
			return true
		}
		if opts.MaxTime > 0 && completed.Load() >= int64(opts.MinSimulations) && time.Since(start) > opts.MaxTime {
			return true
		}
		return false
	}
	g, gCtx := errgroup.WithContext(ctx)
	for range max(opts.Parallelism, 1) {
		g.Go(func() error {
			for !done(gCtx) {
				if opts.MaxSimulations > 0 && claimed.Add(1) > int64(opts.MaxSimulations) {
					return nil
				}
				if err := e.simulate(root); err != nil {
					return err
				}
				completed.Add(1)
			}
			return nil
		})
	}
	err := g.Wait()
	numSimulations := int(completed.Load())
	if klog.V(1).Enabled() {
		elapsed := time.Since(start)
		klog.Infof("Search at move #%d: %d simulations in %s (%.1f simulations/s), tree has %d nodes",
			root.MoveNumber, numSimulations, elapsed, float64(numSimulations)/elapsed.Seconds(), e.tree.Len())
	}
	return numSimulations, err
}
