// Package network implements the neural network backbones that policy
// and action-value heads are built on.
package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// State holds the hidden activations of a recurrent Backbone, one
// [batch, hidden] dense tensor per stacked recurrent layer. State is
// a plain value: it is passed into a forward pass explicitly and a
// new State is returned, so no hidden state is ever shared between
// callers or between training unrolls and online rollouts. A nil
// State means a fresh zero hidden state.
//
// Stateless backbones always consume and produce a nil State.
type State []*tensor.Dense

// Clone returns a deep copy of the State.
func (s State) Clone() State {
	if s == nil {
		return nil
	}
	clone := make(State, len(s))
	for i := range s {
		clone[i] = s[i].Clone().(*tensor.Dense)
	}
	return clone
}

// validateState ensures a State agrees with the hidden configuration
// of a recurrent backbone.
func validateState(s State, layers, batch, hidden int) error {
	if len(s) != layers {
		return fmt.Errorf("invalid number of hidden layers in state "+
			"\n\twant(%v) \n\thave(%v)", layers, len(s))
	}
	for i := range s {
		shape := s[i].Shape()
		if len(shape) != 2 || shape[0] != batch || shape[1] != hidden {
			return fmt.Errorf("invalid hidden state shape for layer %v "+
				"\n\twant(%v, %v) \n\thave(%v)", i, batch, hidden, shape)
		}
	}
	return nil
}

// Backbone maps a tuple of observation tensors to a latent
// representation that policy and action-value heads consume. Two
// implementations exist: a stateless feed-forward trunk and a
// stateful recurrent (GRU) trunk. Heads depend only on this
// interface, so the two are interchangeable at construction time.
//
// A Backbone is built over a fixed sequence length and batch size,
// and its forward pass is part of a larger computational graph that
// is run by whichever head owns the Backbone.
type Backbone interface {
	// Graph returns the computational graph the backbone is built on.
	// Heads add their own nodes to this graph.
	Graph() *G.ExprGraph

	// Latent returns the [batch, LatentSize] node holding the latent
	// representation. For recurrent backbones this is the top layer's
	// output at the final time step.
	Latent() *G.Node

	// LatentValue returns the value of the latent node after the
	// graph has been run.
	LatentValue() G.Value

	LatentSize() int
	BatchSize() int
	SeqLen() int

	// Features returns the total observation width the backbone
	// consumes at each time step.
	Features() int

	// SetInput binds a tuple of flattened observations, one slice per
	// observation sub-space, to the backbone's input nodes before a
	// run. Each slice must hold SeqLen * BatchSize * subDim values in
	// time-major order. For recurrent backbones, a nil state starts
	// the unroll from zeros and a non-nil state resumes from it;
	// stateless backbones ignore the state.
	SetInput(obs [][]float64, state State) error

	// NextState returns the successor hidden state produced by the
	// most recent run, or nil for stateless backbones.
	NextState() State

	// Learnables returns the learnable nodes of the backbone in a
	// deterministic order.
	Learnables() G.Nodes

	// Model returns the learnable nodes with their gradients.
	Model() []G.ValueGrad
}
