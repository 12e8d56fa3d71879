package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/rushbgti/trackmania-rl/spec"
)

// feedForward implements a stateless feed-forward Backbone. The
// observation sub-tensors are concatenated along the feature
// dimension and passed through a stack of fully connected layers.
// Nothing persists between calls.
type feedForward struct {
	g      *G.ExprGraph
	inputs []*G.Node // One input node per observation sub-space
	layers []Layer

	obsSpace  spec.Composite
	features  int
	batchSize int

	latent     *G.Node
	latentSize int
	latentVal  G.Value

	learnables G.Nodes
	model      []G.ValueGrad
}

// NewFeedForward returns a new feed-forward Backbone over the
// argument observation space. The trunk has len(hiddenSizes) fully
// connected layers; hiddenSizes, biases, and activations must agree
// in length. When hiddenSizes is empty the backbone is a pure
// concatenation of its sub-observations, which is the form the
// feed-forward action-value head consumes.
func NewFeedForward(obsSpace spec.Composite, batch int, hiddenSizes []int,
	biases []bool, activations []*Activation,
	init G.InitWFn) (Backbone, error) {
	if batch <= 0 {
		return nil, fmt.Errorf("newFeedForward: batch size must be positive "+
			"\n\thave(%v)", batch)
	}

	g := G.NewGraph()
	features := obsSpace.TotalDim()

	inputs := make([]*G.Node, obsSpace.NumSpaces())
	for i := range inputs {
		inputs[i] = G.NewMatrix(
			g,
			tensor.Float64,
			G.WithShape(batch, obsSpace.SubDim(i)),
			G.WithName(fmt.Sprintf("observation%d", i)),
			G.WithInit(G.Zeroes()),
		)
	}

	var input *G.Node
	if len(inputs) > 1 {
		input = G.Must(G.Concat(1, inputs...))
	} else {
		input = inputs[0]
	}

	layers, err := NewFCLayers(g, features, hiddenSizes, biases, activations,
		init, "Trunk")
	if err != nil {
		return nil, fmt.Errorf("newFeedForward: %v", err)
	}

	latent, err := FwdLayers(layers, input)
	if err != nil {
		return nil, fmt.Errorf("newFeedForward: could not compute forward "+
			"pass: %v", err)
	}

	latentSize := features
	if len(hiddenSizes) > 0 {
		latentSize = hiddenSizes[len(hiddenSizes)-1]
	}

	net := &feedForward{
		g:          g,
		inputs:     inputs,
		layers:     layers,
		obsSpace:   obsSpace,
		features:   features,
		batchSize:  batch,
		latent:     latent,
		latentSize: latentSize,
	}
	G.Read(net.latent, &net.latentVal)

	return net, nil
}

// Graph returns the computational graph of the backbone.
func (f *feedForward) Graph() *G.ExprGraph {
	return f.g
}

// Latent returns the node holding the latent representation.
func (f *feedForward) Latent() *G.Node {
	return f.latent
}

// LatentValue returns the value of the latent node after the graph
// has been run.
func (f *feedForward) LatentValue() G.Value {
	return f.latentVal
}

// LatentSize returns the width of the latent representation.
func (f *feedForward) LatentSize() int {
	return f.latentSize
}

// BatchSize returns the batch size of inputs to the backbone.
func (f *feedForward) BatchSize() int {
	return f.batchSize
}

// SeqLen returns 1: a feed-forward backbone consumes no sequences.
func (f *feedForward) SeqLen() int {
	return 1
}

// Features returns the total observation width of the backbone.
func (f *feedForward) Features() int {
	return f.features
}

// SetInput sets the values of the input nodes before running the
// forward pass. The state argument is ignored.
func (f *feedForward) SetInput(obs [][]float64, _ State) error {
	if len(obs) != len(f.inputs) {
		return fmt.Errorf("setInput: invalid number of sub-observations "+
			"\n\twant(%v) \n\thave(%v)", len(f.inputs), len(obs))
	}

	for i, sub := range obs {
		want := f.batchSize * f.obsSpace.SubDim(i)
		if len(sub) != want {
			return fmt.Errorf("setInput: invalid number of inputs for "+
				"sub-observation %v \n\twant(%v) \n\thave(%v)", i, want,
				len(sub))
		}
		subTensor := tensor.New(
			tensor.WithBacking(sub),
			tensor.WithShape(f.batchSize, f.obsSpace.SubDim(i)),
		)
		if err := G.Let(f.inputs[i], subTensor); err != nil {
			return fmt.Errorf("setInput: could not set sub-observation %v: "+
				"%v", i, err)
		}
	}
	return nil
}

// NextState returns nil: a feed-forward backbone carries no state.
func (f *feedForward) NextState() State {
	return nil
}

// Learnables returns the learnable nodes of the backbone.
func (f *feedForward) Learnables() G.Nodes {
	// Lazy instantiation
	if f.learnables == nil {
		f.learnables = LayerLearnables(f.layers)
	}
	return f.learnables
}

// Model returns the learnable nodes with their gradients.
func (f *feedForward) Model() []G.ValueGrad {
	// Lazy instantiation
	if f.model == nil {
		f.model = make([]G.ValueGrad, 0, len(f.Learnables()))
		for _, node := range f.Learnables() {
			f.model = append(f.model, node)
		}
	}
	return f.model
}
