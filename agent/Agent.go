// Package agent defines the interfaces between policies and the
// stepping loops that consume them.
package agent

import (
	"github.com/rushbgti/trackmania-rl/network"
)

// State is the rollout state a stepping loop threads through
// successive Act calls. Reset returns an empty State; for recurrent
// policies the true hidden state is reconstructed lazily on the first
// Act after a reset and carried in the State returned by each call.
// Feed-forward policies always produce an empty State.
type State struct {
	Hidden network.State
}

// Empty returns whether the State carries no hidden state.
func (s State) Empty() bool {
	return s.Hidden == nil
}

// Actor is the uniform bridge between a stepping loop and a policy.
//
// An Actor is not safe for concurrent use: recurrent state would be
// cross-contaminated by interleaved calls. For parallel rollout
// collection, construct one Actor (and underlying network bundle) per
// worker; read-only parameter sharing across workers is safe only
// when no concurrent training write occurs.
type Actor interface {
	// Reset signals that a fresh rollout window begins, returning the
	// placeholder State to thread into the first Act call of the
	// episode.
	Reset() State

	// Act selects an action for the argument observation, which is an
	// ordered tuple of flattened arrays matching the policy's
	// observation space. Exploration noise is sampled iff train is
	// true. The reward, done flag, and info map describe the step
	// that produced the observation; they are passed through for
	// loops that record trajectories and do not affect action
	// selection. Act returns the action, the State to thread into the
	// next call, and auxiliary per-step information.
	Act(state State, obs [][]float64, reward float64, done bool,
		info map[string]float64, train bool) ([]float64, State,
		map[string]float64, error)
}
