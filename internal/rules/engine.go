// Package rules implements the per-activation decision logic of the
// stabilization protocol: neighbor-agreement classification, leader
// arbitration, and priority escalation. Everything here is pure local
// neighborhood logic; the engine never selects nodes and never checks
// global convergence.
package rules

import (
	"fmt"

	"github.com/stabsim/stabsim/internal/chain"
	"github.com/stabsim/stabsim/internal/constants"
)

// Config holds tunable parameters for the rule engine.
type Config struct {
	// Margin is the priority boost a leader takes over its neighborhood
	// maximum when it resolves a mixed neighborhood. Default: 20.
	Margin int
}

// DefaultConfig returns the default rule engine configuration.
func DefaultConfig() Config {
	return Config{Margin: constants.LeaderMargin}
}

// Case classifies a node's agreement with its existing neighbors.
type Case int

const (
	// CaseAllAgree means every existing neighbor shares the node's primary.
	CaseAllAgree Case = iota

	// CaseAllDisagree means every existing neighbor opposes the node's primary.
	CaseAllDisagree

	// CaseMixed means one neighbor agrees and the other disagrees. Only
	// interior nodes can classify mixed; endpoints have a single neighbor.
	CaseMixed
)

// String implements fmt.Stringer.
func (c Case) String() string {
	switch c {
	case CaseAllAgree:
		return "all-agree"
	case CaseAllDisagree:
		return "all-disagree"
	case CaseMixed:
		return "mixed"
	default:
		return fmt.Sprintf("case(%d)", int(c))
	}
}

// Outcome records what one rule application did: which case fired and the
// node's state before and after. The driver hands outcomes to observers;
// tests assert against them.
type Outcome struct {
	Node            int
	Case            Case
	Flipped         bool
	Leader          bool // meaningful only for CaseMixed
	PrimaryBefore   chain.Value
	PrimaryAfter    chain.Value
	SecondaryBefore int
	SecondaryAfter  int
}

// Changed reports whether the application mutated any node state.
func (o Outcome) Changed() bool {
	return o.Flipped || o.SecondaryAfter != o.SecondaryBefore
}

// Engine applies the stabilization rules to one selected node at a time.
// The engine is stateless apart from its configuration; all protocol state
// lives in the chain.
type Engine struct {
	chain *chain.Chain
	cfg   Config
}

// NewEngine creates a rule engine over c.
func NewEngine(c *chain.Chain, cfg Config) *Engine {
	return &Engine{chain: c, cfg: cfg}
}

// Apply runs one rule application on the node at index i, freshly selected
// by the scheduler:
//
//   - all existing neighbors disagree: the node yields and flips its primary;
//   - all existing neighbors agree: nothing to do;
//   - mixed (interior nodes only): leader arbitration. A node whose
//     secondary is at least every existing neighbor's secondary (ties lead)
//     flips its primary and raises its secondary to the neighborhood maximum
//     plus the configured margin. A follower keeps its primary and gains one
//     point of priority, so persistent disagreement eventually promotes it.
func (e *Engine) Apply(i int) (Outcome, error) {
	node, err := e.chain.At(i)
	if err != nil {
		return Outcome{}, fmt.Errorf("apply rules: %w", err)
	}
	left, right, err := e.chain.Neighbors(i)
	if err != nil {
		return Outcome{}, fmt.Errorf("apply rules: %w", err)
	}

	out := Outcome{
		Node:            i,
		Case:            classify(node, left, right),
		PrimaryBefore:   node.Primary(),
		SecondaryBefore: node.Secondary(),
	}

	switch out.Case {
	case CaseAllDisagree:
		// No local support for the current value: yield to the neighborhood.
		if err := e.chain.FlipPrimary(i); err != nil {
			return Outcome{}, err
		}
		out.Flipped = true

	case CaseAllAgree:
		// Locally consistent already.

	case CaseMixed:
		max := neighborMax(left, right)
		if node.Secondary() >= max {
			// Leader: flip and take priority strictly above both neighbors.
			out.Leader = true
			if err := e.chain.FlipPrimary(i); err != nil {
				return Outcome{}, err
			}
			if err := e.chain.SetSecondary(i, max+e.cfg.Margin); err != nil {
				return Outcome{}, err
			}
			out.Flipped = true
		} else {
			// Follower: accumulate priority one point at a time.
			if err := e.chain.IncrementSecondary(i); err != nil {
				return Outcome{}, err
			}
		}
	}

	out.PrimaryAfter = node.Primary()
	out.SecondaryAfter = node.Secondary()
	return out, nil
}

// IsLeader reports whether the node at index i holds a secondary priority at
// least as high as every existing neighbor's. Ties count as leadership; the
// comparison is >= by the protocol's definition. A node with no neighbors
// trivially leads.
func (e *Engine) IsLeader(i int) (bool, error) {
	node, err := e.chain.At(i)
	if err != nil {
		return false, err
	}
	left, right, err := e.chain.Neighbors(i)
	if err != nil {
		return false, err
	}
	if left == nil && right == nil {
		return true, nil
	}
	return node.Secondary() >= neighborMax(left, right), nil
}

// classify determines the node's agreement case against its existing
// neighbors. Every neighborhood falls into exactly one case: endpoints are
// all-agree or all-disagree, interior nodes may additionally be mixed.
func classify(node, left, right *chain.Node) Case {
	p := node.Primary()
	switch {
	case left == nil && right == nil:
		// A single-node chain agrees with its empty neighborhood.
		return CaseAllAgree
	case left == nil:
		if right.Primary() == p {
			return CaseAllAgree
		}
		return CaseAllDisagree
	case right == nil:
		if left.Primary() == p {
			return CaseAllAgree
		}
		return CaseAllDisagree
	}

	leftAgrees := left.Primary() == p
	rightAgrees := right.Primary() == p
	switch {
	case leftAgrees && rightAgrees:
		return CaseAllAgree
	case !leftAgrees && !rightAgrees:
		return CaseAllDisagree
	default:
		return CaseMixed
	}
}

// neighborMax returns the highest secondary among the existing neighbors.
// At least one neighbor must exist.
func neighborMax(left, right *chain.Node) int {
	switch {
	case left == nil:
		return right.Secondary()
	case right == nil:
		return left.Secondary()
	case left.Secondary() > right.Secondary():
		return left.Secondary()
	default:
		return right.Secondary()
	}
}
