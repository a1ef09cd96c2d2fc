// Package chain owns the line topology: an ordered, fixed-size sequence of
// nodes with left/right adjacency derived from position. The chain is the
// sole owner of node storage; neighbor relations are index arithmetic, so a
// single-node chain simply has no neighbors.
package chain

import (
	"errors"
	"fmt"

	"github.com/stabsim/stabsim/internal/constants"
)

var (
	// ErrInvalidSize reports a chain size below 1.
	ErrInvalidSize = errors.New("chain size must be at least 1")

	// ErrIndexOutOfBounds reports a node index outside [0, Size).
	ErrIndexOutOfBounds = errors.New("node index out of bounds")

	// ErrSecondaryDecrease reports an attempt to lower a secondary priority.
	ErrSecondaryDecrease = errors.New("secondary priority cannot decrease")
)

// Chain is a fixed-size line of nodes.
type Chain struct {
	nodes []Node
}

// New constructs a chain of n nodes, all with primary Zero and the baseline
// secondary priority. Returns ErrInvalidSize when n < 1.
func New(n int) (*Chain, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSize, n)
	}
	nodes := make([]Node, n)
	for i := range nodes {
		nodes[i] = Node{index: i, primary: Zero, secondary: constants.BaselineSecondary}
	}
	return &Chain{nodes: nodes}, nil
}

// Size returns the number of nodes.
func (c *Chain) Size() int { return len(c.nodes) }

// At returns the node at index i.
func (c *Chain) At(i int) (*Node, error) {
	if err := c.check(i); err != nil {
		return nil, err
	}
	return &c.nodes[i], nil
}

// Neighbors returns the nodes adjacent to index i. Either side is nil at a
// chain endpoint; both are nil for a single-node chain.
func (c *Chain) Neighbors(i int) (*Node, *Node, error) {
	if err := c.check(i); err != nil {
		return nil, nil, err
	}
	var left, right *Node
	if i > 0 {
		left = &c.nodes[i-1]
	}
	if i < len(c.nodes)-1 {
		right = &c.nodes[i+1]
	}
	return left, right, nil
}

// Snapshot returns the primary values in chain order. The slice is a copy;
// callers cannot reach node storage through it.
func (c *Chain) Snapshot() []Value {
	out := make([]Value, len(c.nodes))
	for i := range c.nodes {
		out[i] = c.nodes[i].primary
	}
	return out
}

// Secondaries returns the secondary priorities in chain order, as a copy.
func (c *Chain) Secondaries() []int {
	out := make([]int, len(c.nodes))
	for i := range c.nodes {
		out[i] = c.nodes[i].secondary
	}
	return out
}

// FlipPrimary flips the primary value at index i. Primaries change only
// through rule application and fault injection; both go through here.
func (c *Chain) FlipPrimary(i int) error {
	if err := c.check(i); err != nil {
		return err
	}
	c.nodes[i].primary = c.nodes[i].primary.Flip()
	return nil
}

// SetSecondary raises the secondary priority at index i to v. Secondary
// priorities never decrease for the lifetime of a node; the storage boundary
// enforces that by rejecting lower values with ErrSecondaryDecrease.
func (c *Chain) SetSecondary(i, v int) error {
	if err := c.check(i); err != nil {
		return err
	}
	if v < c.nodes[i].secondary {
		return fmt.Errorf("%w: node %d has %d, tried %d", ErrSecondaryDecrease, i, c.nodes[i].secondary, v)
	}
	c.nodes[i].secondary = v
	return nil
}

// IncrementSecondary raises the secondary priority at index i by one.
func (c *Chain) IncrementSecondary(i int) error {
	if err := c.check(i); err != nil {
		return err
	}
	c.nodes[i].secondary++
	return nil
}

func (c *Chain) check(i int) error {
	if i < 0 || i >= len(c.nodes) {
		return fmt.Errorf("%w: index %d, size %d", ErrIndexOutOfBounds, i, len(c.nodes))
	}
	return nil
}
