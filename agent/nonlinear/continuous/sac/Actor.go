package sac

import (
	"fmt"

	G "gorgonia.org/gorgonia"

	"github.com/rushbgti/trackmania-rl/agent"
)

// Actor adapts a squashed-Gaussian policy for use inside a stepping
// loop. It accepts raw observation tuples, runs the policy without
// gradient bookkeeping, and threads the recurrent state through the
// agent.State values the loop passes between calls, so the Actor
// itself holds no mutable rollout state.
//
// An Actor is not safe for concurrent use; construct one Actor and
// underlying bundle per rollout worker.
type Actor struct {
	policy *SquashedGaussian
	device G.Device
}

// NewActor returns a new Actor over the argument policy, which must
// be a single-sample policy (batch size 1, sequence length 1).
// Observations are materialized on the argument device before every
// forward pass; the device is fixed at construction.
func NewActor(policy *SquashedGaussian, device G.Device) (*Actor, error) {
	if policy.BatchSize() != 1 {
		return nil, fmt.Errorf("newActor: action selection requires a "+
			"policy with batch size 1 \n\twant(1) \n\thave(%v)",
			policy.BatchSize())
	}
	if policy.SeqLen() != 1 {
		return nil, fmt.Errorf("newActor: action selection requires a "+
			"policy with sequence length 1 \n\twant(1) \n\thave(%v)",
			policy.SeqLen())
	}

	return &Actor{
		policy: policy,
		device: device,
	}, nil
}

// Device returns the compute device the Actor's observations are
// placed on.
func (a *Actor) Device() G.Device {
	return a.device
}

// Policy returns the policy the Actor selects actions with.
func (a *Actor) Policy() *SquashedGaussian {
	return a.policy
}

// Reset signals that a fresh rollout window begins. The returned
// State is an empty placeholder: for a recurrent policy the true
// hidden state is reconstructed from zeros on the first Act call that
// receives it.
func (a *Actor) Reset() agent.State {
	return agent.State{}
}

// Act selects an action for the argument observation tuple. When
// train is true the policy samples with exploration noise; otherwise
// it acts deterministically at the Gaussian mean. The returned action
// is a plain flat vector within the policy's action bounds, the
// returned State carries the recurrent hidden state into the next
// call, and the auxiliary map reports the log probability of the
// selected action under the stochastic policy.
//
// The reward, done flag, and info arguments describe the step that
// produced the observation and do not affect action selection.
func (a *Actor) Act(state agent.State, obs [][]float64, reward float64,
	done bool, info map[string]float64, train bool) ([]float64,
	agent.State, map[string]float64, error) {
	action, logProb, hidden, err := a.policy.Forward(obs, state.Hidden,
		!train, true)
	if err != nil {
		return nil, state, nil, fmt.Errorf("act: %v", err)
	}

	aux := make(map[string]float64, 1)
	if len(logProb) == 1 {
		aux["logProb"] = logProb[0]
	}

	return action, agent.State{Hidden: hidden}, aux, nil
}
