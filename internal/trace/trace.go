// Package trace records the per-activation history of a stabilization run.
// A Recorder plugs into the driver's step observer; the collected steps feed
// run reports, the result store, and the export formats.
package trace

import (
	"github.com/stabsim/stabsim/internal/rules"
)

// Step is one recorded rule application.
type Step struct {
	Step            int    `json:"step"`
	Node            int    `json:"node"`
	Case            string `json:"case"`
	Flipped         bool   `json:"flipped"`
	Leader          bool   `json:"leader"`
	PrimaryBefore   uint8  `json:"primary_before"`
	PrimaryAfter    uint8  `json:"primary_after"`
	SecondaryBefore int    `json:"secondary_before"`
	SecondaryAfter  int    `json:"secondary_after"`
}

// Recorder accumulates steps as a run progresses. Observe matches the
// driver's OnStep signature, so wiring is a single assignment.
type Recorder struct {
	steps []Step
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Observe appends one rule application to the trace.
func (r *Recorder) Observe(step int, out rules.Outcome) {
	r.steps = append(r.steps, Step{
		Step:            step,
		Node:            out.Node,
		Case:            out.Case.String(),
		Flipped:         out.Flipped,
		Leader:          out.Leader,
		PrimaryBefore:   uint8(out.PrimaryBefore),
		PrimaryAfter:    uint8(out.PrimaryAfter),
		SecondaryBefore: out.SecondaryBefore,
		SecondaryAfter:  out.SecondaryAfter,
	})
}

// Steps returns the recorded steps in activation order.
func (r *Recorder) Steps() []Step { return r.steps }

// Len returns the number of recorded steps.
func (r *Recorder) Len() int { return len(r.steps) }

// Stats aggregates a trace into headline counters.
type Stats struct {
	Steps              int `json:"steps"`
	Flips              int `json:"flips"`
	LeaderPromotions   int `json:"leader_promotions"`
	FollowerIncrements int `json:"follower_increments"`
	NoOps              int `json:"no_ops"`
}

// Summarize derives run statistics from a trace. The counters are computed
// from the recorded state changes alone: a leader promotion is the only step
// that sets Leader, a follower increment is the only non-flip that moves the
// secondary, and a no-op changes nothing.
func Summarize(steps []Step) Stats {
	st := Stats{Steps: len(steps)}
	for _, s := range steps {
		if s.Flipped {
			st.Flips++
		}
		switch {
		case s.Leader:
			st.LeaderPromotions++
		case !s.Flipped && s.SecondaryAfter > s.SecondaryBefore:
			st.FollowerIncrements++
		case !s.Flipped:
			st.NoOps++
		}
	}
	return st
}
