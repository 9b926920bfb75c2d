package mcts

import (
	"sync"

	"github.com/janpfeifer/connect4zero/internal/state"
)

// nodeStats holds the statistics of one board position. All fields are protected by mu.
type nodeStats struct {
	mu sync.Mutex

	// visits is the number of backpropagation passes that included this node.
	visits int

	// value is the running mean of the outcomes backpropagated to this node, from the point of view
	// of the player that made the last move on the board.
	value float32

	// prior is the policy mass assigned by the parent's expansion to the move that produced this board.
	prior float32

	// children is nil until the node is expanded. Finished boards are expanded with an empty (non-nil) slice.
	children []state.Board

	// policy (masked to the legal moves) and evalValue are the cached evaluator output of the expansion.
	policy    []float32
	evalValue float32
}

// NodeStats is a read-only snapshot of the statistics of a node.
type NodeStats struct {
	Visits   int
	Value    float32
	Prior    float32
	Expanded bool

	// NumChildren is only meaningful if Expanded.
	NumChildren int
}

// SearchTree stores the statistics of every board position reached by the search, keyed by state.Key.
// Transpositions (the same position reached by different move orders) share the same record.
//
// SearchTree is safe for concurrent use, except for Reset, which requires exclusive access.
type SearchTree struct {
	mu    sync.RWMutex
	nodes map[state.Key]*nodeStats
}

// NewSearchTree returns an empty SearchTree.
func NewSearchTree() *SearchTree {
	return &SearchTree{nodes: make(map[state.Key]*nodeStats)}
}

// getOrCreate returns the record of the board, creating an empty one if needed.
// It never holds the tree lock while locking a node.
func (t *SearchTree) getOrCreate(board state.Board) *nodeStats {
	key := board.Key()
	t.mu.RLock()
	n, found := t.nodes[key]
	t.mu.RUnlock()
	if found {
		return n
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	n, found = t.nodes[key]
	if !found {
		n = &nodeStats{}
		t.nodes[key] = n
	}
	return n
}

// lookup returns the record of the board, or nil if it doesn't exist.
func (t *SearchTree) lookup(board state.Board) *nodeStats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.nodes[board.Key()]
}

// GetOrCreate makes sure the board has a record in the tree and returns a snapshot of its statistics.
func (t *SearchTree) GetOrCreate(board state.Board) NodeStats {
	return t.getOrCreate(board).snapshot()
}

// Stats returns a snapshot of the board statistics. Boards never seen return the zero NodeStats, and
// no record is created for them.
func (t *SearchTree) Stats(board state.Board) NodeStats {
	n := t.lookup(board)
	if n == nil {
		return NodeStats{}
	}
	return n.snapshot()
}

func (n *nodeStats) snapshot() NodeStats {
	n.mu.Lock()
	defer n.mu.Unlock()
	return NodeStats{
		Visits:      n.visits,
		Value:       n.value,
		Prior:       n.prior,
		Expanded:    n.children != nil,
		NumChildren: len(n.children),
	}
}

// IsExpanded returns whether the children of the board have been recorded.
func (t *SearchTree) IsExpanded(board state.Board) bool {
	n := t.lookup(board)
	if n == nil {
		return false
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.children != nil
}

// Children returns the recorded children of the board, and whether the board was expanded.
func (t *SearchTree) Children(board state.Board) ([]state.Board, bool) {
	n := t.lookup(board)
	if n == nil {
		return nil, false
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.children, n.children != nil
}

// SetChildren records the children of the board, and the prior of each child (index-aligned).
// It is a no-op returning false if the board children were already recorded.
func (t *SearchTree) SetChildren(board state.Board, children []state.Board, priors []float32) bool {
	_, _, stored := t.setExpansion(board, children, priors, nil, 0)
	return stored
}

// setExpansion records children, priors and the evaluation of the board, if it's not expanded yet.
// It returns the evaluation cached by the expansion that won, and whether this call was the one storing it.
//
// Locks are taken parent first, then each child.
func (t *SearchTree) setExpansion(board state.Board, children []state.Board, priors []float32,
	policy []float32, value float32) (cachedPolicy []float32, cachedValue float32, stored bool) {
	n := t.getOrCreate(board)
	childNodes := make([]*nodeStats, len(children))
	for ii, child := range children {
		childNodes[ii] = t.getOrCreate(child)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.children != nil {
		if n.policy == nil && policy != nil {
			// Expanded by SetChildren, without an evaluation.
			n.policy, n.evalValue = policy, value
		}
		return n.policy, n.evalValue, false
	}
	if children == nil {
		children = []state.Board{}
	}
	n.children = children
	n.policy = policy
	n.evalValue = value
	for ii, child := range childNodes {
		var prior float32
		if ii < len(priors) {
			prior = priors[ii]
		}
		child.mu.Lock()
		child.prior = prior
		child.mu.Unlock()
	}
	return policy, value, true
}

// expansion returns the cached evaluation of an expanded board, if there is one.
func (t *SearchTree) expansion(board state.Board) (policy []float32, value float32, found bool) {
	n := t.lookup(board)
	if n == nil {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.children == nil || n.policy == nil {
		return
	}
	return n.policy, n.evalValue, true
}

// RecordVisit adds outcome to the running mean value of the board and increments its visit count.
func (t *SearchTree) RecordVisit(board state.Board, outcome float32) {
	n := t.getOrCreate(board)
	n.mu.Lock()
	defer n.mu.Unlock()
	n.value = (float32(n.visits)*n.value + outcome) / float32(n.visits+1)
	n.visits++
}

// Reset drops all records. It must not be called concurrently with other operations.
func (t *SearchTree) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nodes = make(map[state.Key]*nodeStats)
}

// Len returns the number of records in the tree.
func (t *SearchTree) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.nodes)
}
