package sac

import (
	"fmt"

	"github.com/rushbgti/trackmania-rl/network"
	"github.com/rushbgti/trackmania-rl/spec"
	"github.com/rushbgti/trackmania-rl/utils/floatutils"
)

// ActorCritic bundles one squashed-Gaussian policy with an ensemble
// of independently initialized action-value heads over the same
// observation and action spaces. Ensemble members share no
// parameters with each other or with the policy; combining their
// estimates (see MinQ) mitigates the overestimation bias of a single
// estimator.
//
// The policy is the bundle's external entry point; the critics exist
// for the training loop. An ActorCritic is not safe for concurrent
// use; construct one bundle per parallel rollout worker.
type ActorCritic struct {
	policy  *SquashedGaussian
	critics []*ActionValue

	obsSpace spec.Composite
	actSpace spec.Bounded
	config   Config
}

// New constructs the actor-critic bundle described by the argument
// configuration over the argument spaces.
func New(config Config, obsSpace spec.Composite,
	actSpace spec.Bounded) (*ActorCritic, error) {
	return config.Build(obsSpace, actSpace)
}

// Policy returns the bundle's policy.
func (a *ActorCritic) Policy() *SquashedGaussian {
	return a.policy
}

// Critics returns the bundle's action-value ensemble.
func (a *ActorCritic) Critics() []*ActionValue {
	return a.critics
}

// NumCritics returns the size of the action-value ensemble.
func (a *ActorCritic) NumCritics() int {
	return len(a.critics)
}

// ObservationSpace returns the observation space the bundle was built
// over.
func (a *ActorCritic) ObservationSpace() spec.Composite {
	return a.obsSpace
}

// ActionSpace returns the action space the bundle was built over.
func (a *ActorCritic) ActionSpace() spec.Bounded {
	return a.actSpace
}

// MinQ runs every critic on the argument observation tuple and action
// batch and returns the elementwise ensemble minimum, along with each
// critic's successor recurrent state. The states slice holds one
// prior state per critic, or is nil to run every critic from a fresh
// state.
func (a *ActorCritic) MinQ(obs [][]float64, action []float64,
	states []network.State) ([]float64, []network.State, error) {
	if states != nil && len(states) != len(a.critics) {
		return nil, nil, fmt.Errorf("minQ: invalid number of critic "+
			"states \n\twant(%v) \n\thave(%v)", len(a.critics), len(states))
	}

	var min []float64
	next := make([]network.State, len(a.critics))
	for k, critic := range a.critics {
		var state network.State
		if states != nil {
			state = states[k]
		}
		q, nextState, err := critic.Forward(obs, action, state)
		if err != nil {
			return nil, nil, fmt.Errorf("minQ: critic %v: %v", k, err)
		}
		next[k] = nextState

		if min == nil {
			min = q
			continue
		}
		for i := range min {
			min[i] = floatutils.Min(min[i], q[i])
		}
	}

	return min, next, nil
}

// CloneWithSize returns a new bundle with the same architecture and
// weights as this bundle, built for a different sequence length and
// batch size. A training loop uses this to run batched unrolls of the
// same parameters that a batch-1 rollout bundle uses; weights are
// copied, not shared, so the loop must Set them back after updates.
//
// Feed-forward bundles ignore seqLen.
func (a *ActorCritic) CloneWithSize(seqLen, batch int) (*ActorCritic,
	error) {
	if seqLen <= 0 || batch <= 0 {
		return nil, fmt.Errorf("cloneWithSize: sequence length and batch "+
			"size must be positive \n\thave(%v, %v)", seqLen, batch)
	}

	clone, err := a.config.buildWithSize(a.obsSpace, a.actSpace, seqLen,
		batch)
	if err != nil {
		return nil, fmt.Errorf("cloneWithSize: %v", err)
	}

	if err := clone.Set(a); err != nil {
		return nil, fmt.Errorf("cloneWithSize: %v", err)
	}
	return clone, nil
}

// Set sets the weights of the bundle to be equal to the weights of
// another bundle with the same architecture.
func (dest *ActorCritic) Set(source *ActorCritic) error {
	if len(dest.critics) != len(source.critics) {
		return fmt.Errorf("set: ensemble sizes differ \n\twant(%v) "+
			"\n\thave(%v)", len(dest.critics), len(source.critics))
	}
	if err := dest.policy.Set(source.policy); err != nil {
		return fmt.Errorf("set: could not set policy weights: %v", err)
	}
	for k := range dest.critics {
		if err := dest.critics[k].Set(source.critics[k]); err != nil {
			return fmt.Errorf("set: could not set weights of critic %v: %v",
				k, err)
		}
	}
	return nil
}

// Polyak sets the weights of the bundle to a Polyak average between
// its existing weights and the weights of another bundle with the
// same architecture. Training loops use this for target networks.
func (dest *ActorCritic) Polyak(source *ActorCritic, tau float64) error {
	if len(dest.critics) != len(source.critics) {
		return fmt.Errorf("polyak: ensemble sizes differ \n\twant(%v) "+
			"\n\thave(%v)", len(dest.critics), len(source.critics))
	}
	if err := dest.policy.Polyak(source.policy, tau); err != nil {
		return fmt.Errorf("polyak: could not average policy weights: %v",
			err)
	}
	for k := range dest.critics {
		err := dest.critics[k].Polyak(source.critics[k], tau)
		if err != nil {
			return fmt.Errorf("polyak: could not average weights of "+
				"critic %v: %v", k, err)
		}
	}
	return nil
}

// Close cleans up the bundle's virtual machines.
func (a *ActorCritic) Close() error {
	err := a.policy.Close()
	for _, critic := range a.critics {
		if cerr := critic.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
