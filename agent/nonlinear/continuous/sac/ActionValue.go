package sac

import (
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/rushbgti/trackmania-rl/network"
	"github.com/rushbgti/trackmania-rl/spec"
)

// ActionValue implements an action-value (Q) head over a
// network.Backbone. The backbone's latent representation is
// concatenated with the action along the feature dimension and passed
// through a fully connected stack ending in a single unit; the
// trailing singleton dimension is removed, so a batch of size B
// produces a length-B value vector.
//
// For the feed-forward family the backbone is a pure concatenation of
// the raw sub-observations, so the head consumes (observation,
// action) directly; for the recurrent family the backbone is the Q
// function's own GRU and the action is merged in the latent space
// after it. The head is deterministic.
type ActionValue struct {
	backbone network.Backbone
	actions  *G.Node
	layers   []network.Layer

	qVal G.Value
	vm   G.VM

	actSpace spec.Bounded
	dimAct   int

	learnables G.Nodes
	model      []G.ValueGrad
}

// NewActionValue returns a new action-value head over the argument
// backbone. The fully connected stack has len(hiddenSizes) hidden
// layers with the argument activation between every layer and a final
// linear layer of size one.
func NewActionValue(b network.Backbone, actSpace spec.Bounded,
	hiddenSizes []int, activation *network.Activation,
	init G.InitWFn) (*ActionValue, error) {
	if len(hiddenSizes) == 0 {
		return nil, fmt.Errorf("newActionValue: at least one hidden layer " +
			"is required")
	}

	g := b.Graph()
	dimAct := actSpace.Dim()
	batch := b.BatchSize()

	actions := G.NewMatrix(
		g,
		tensor.Float64,
		G.WithShape(batch, dimAct),
		G.WithName("actions"),
		G.WithInit(G.Zeroes()),
	)
	x := G.Must(G.Concat(1, b.Latent(), actions))

	sizes := make([]int, len(hiddenSizes)+1)
	copy(sizes, hiddenSizes)
	sizes[len(sizes)-1] = 1
	biases := make([]bool, len(sizes))
	activations := make([]*network.Activation, len(sizes))
	for i := range sizes {
		biases[i] = true
		activations[i] = activation
	}
	activations[len(activations)-1] = network.Identity()

	layers, err := network.NewFCLayers(g, b.LatentSize()+dimAct, sizes,
		biases, activations, init, "Q")
	if err != nil {
		return nil, fmt.Errorf("newActionValue: %v", err)
	}

	out, err := network.FwdLayers(layers, x)
	if err != nil {
		return nil, fmt.Errorf("newActionValue: could not compute forward "+
			"pass: %v", err)
	}

	// Remove the trailing singleton dimension so the output rank
	// equals the batch rank
	q := G.Must(G.Ravel(out))

	head := &ActionValue{
		backbone: b,
		actions:  actions,
		layers:   layers,
		actSpace: actSpace,
		dimAct:   dimAct,
	}
	G.Read(q, &head.qVal)

	head.vm = G.NewTapeMachine(g)

	return head, nil
}

// Forward runs the head on an observation tuple and an action batch,
// returning one value estimate per sample and the successor recurrent
// state. The action slice holds BatchSize action vectors in row-major
// order. The state argument is the prior recurrent state to resume
// from (nil for a fresh unroll) and is ignored by feed-forward
// backbones.
func (a *ActionValue) Forward(obs [][]float64, action []float64,
	state network.State) ([]float64, network.State, error) {
	if err := a.backbone.SetInput(obs, state); err != nil {
		return nil, nil, fmt.Errorf("forward: %v", err)
	}

	batch := a.backbone.BatchSize()
	if len(action) != batch*a.dimAct {
		return nil, nil, fmt.Errorf("forward: invalid number of action "+
			"inputs \n\twant(%v) \n\thave(%v)", batch*a.dimAct, len(action))
	}
	actionTensor := tensor.New(
		tensor.WithBacking(action),
		tensor.WithShape(batch, a.dimAct),
	)
	if err := G.Let(a.actions, actionTensor); err != nil {
		return nil, nil, fmt.Errorf("forward: could not set actions: %v",
			err)
	}

	if err := a.vm.RunAll(); err != nil {
		return nil, nil, fmt.Errorf("forward: could not run value VM: %v",
			err)
	}
	defer a.vm.Reset()

	return valueFloats(a.qVal), a.backbone.NextState(), nil
}

// Backbone returns the feature network of the head.
func (a *ActionValue) Backbone() network.Backbone {
	return a.backbone
}

// BatchSize returns the batch size of inputs to the head.
func (a *ActionValue) BatchSize() int {
	return a.backbone.BatchSize()
}

// Learnables returns the learnable nodes of the head in a
// deterministic order.
func (a *ActionValue) Learnables() G.Nodes {
	// Lazy instantiation
	if a.learnables == nil {
		a.learnables = append(a.learnables, a.backbone.Learnables()...)
		a.learnables = append(a.learnables,
			network.LayerLearnables(a.layers)...)
	}
	return a.learnables
}

// Model returns the learnable nodes with their gradients.
func (a *ActionValue) Model() []G.ValueGrad {
	// Lazy instantiation
	if a.model == nil {
		a.model = make([]G.ValueGrad, 0, len(a.Learnables()))
		for _, node := range a.Learnables() {
			a.model = append(a.model, node)
		}
	}
	return a.model
}

// Set sets the weights of the head to be equal to the weights of
// another head with the same architecture.
func (dest *ActionValue) Set(source *ActionValue) error {
	return setLearnables(dest.Learnables(), source.Learnables())
}

// Polyak sets the weights of the head to a Polyak average between its
// existing weights and the weights of another head with the same
// architecture.
func (dest *ActionValue) Polyak(source *ActionValue, tau float64) error {
	return polyakLearnables(dest.Learnables(), source.Learnables(), tau)
}

// Close cleans up the head's virtual machine.
func (a *ActionValue) Close() error {
	return a.vm.Close()
}
