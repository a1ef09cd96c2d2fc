package chain

import "strconv"

// Value is the binary primary state a node holds.
type Value uint8

// The two primary values nodes try to agree on.
const (
	Zero Value = 0
	One  Value = 1
)

// Flip returns the opposite value.
func (v Value) Flip() Value { return v ^ 1 }

// String implements fmt.Stringer.
func (v Value) String() string { return strconv.Itoa(int(v)) }

// Node is a single protocol participant on the chain. Position is fixed at
// construction; primary and secondary change only through the chain's write
// methods.
type Node struct {
	index     int
	primary   Value
	secondary int
}

// Index returns the node's position on the chain.
func (n *Node) Index() int { return n.index }

// Primary returns the node's current primary value.
func (n *Node) Primary() Value { return n.primary }

// Secondary returns the node's current secondary priority.
func (n *Node) Secondary() int { return n.secondary }
