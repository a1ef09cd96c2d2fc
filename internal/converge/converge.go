// Package converge decides when the chain has stabilized. The legality test
// is the protocol's sole termination predicate.
package converge

import "github.com/stabsim/stabsim/internal/chain"

// Legal reports whether the configuration is legal: every node's primary
// equals node 0's. It inspects primaries only and never mutates.
func Legal(c *chain.Chain) bool {
	// Indices are in range by construction; a chain has at least one node.
	first, _ := c.At(0)
	for i := 1; i < c.Size(); i++ {
		n, _ := c.At(i)
		if n.Primary() != first.Primary() {
			return false
		}
	}
	return true
}

// Boundaries returns the indices i where the primary at i differs from the
// primary at i+1. An empty result means the configuration is legal. The
// boundary count is the containment measure: it tracks how far corruption
// has spread along the chain.
func Boundaries(c *chain.Chain) []int {
	var out []int
	for i := 0; i+1 < c.Size(); i++ {
		a, _ := c.At(i)
		b, _ := c.At(i + 1)
		if a.Primary() != b.Primary() {
			out = append(out, i)
		}
	}
	return out
}

// CountBoundaries counts adjacent disagreements in a primary snapshot. It
// accepts raw values so replayed or persisted states can be measured
// without rebuilding a chain.
func CountBoundaries(values []chain.Value) int {
	count := 0
	for i := 0; i+1 < len(values); i++ {
		if values[i] != values[i+1] {
			count++
		}
	}
	return count
}
