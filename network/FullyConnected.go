package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Layer implements a single layer of a neural network.
type Layer interface {
	// Fwd adds the forward pass of the Layer to the computational
	// graph, returning the node that holds the Layer's output.
	Fwd(x *G.Node) (*G.Node, error)

	Weights() *G.Node
	Bias() *G.Node
	Activation() *Activation
}

// fcLayer implements a fully connected layer of a feed forward neural
// network
type fcLayer struct {
	weights *G.Node
	bias    *G.Node
	act     *Activation
}

// Fwd adds the forward pass of the fcLayer to the computational graph
func (f *fcLayer) Fwd(x *G.Node) (*G.Node, error) {
	if f.Weights() != nil {
		x = G.Must(G.Mul(x, f.Weights()))
	}
	if f.Bias() != nil {
		// Broadcast the bias weights to all samples along the batch
		// dimension
		x = G.Must(G.BroadcastAdd(x, f.Bias(), nil, []byte{0}))
	}
	if f.Activation() == nil || f.Activation().IsNil() {
		return x, nil
	}
	return f.Activation().fwd(x)
}

func (f *fcLayer) Activation() *Activation {
	return f.act
}

func (f *fcLayer) Bias() *G.Node {
	return f.bias
}

func (f *fcLayer) Weights() *G.Node {
	return f.weights
}

// NewFCLayer returns a new fully connected layer on the graph g with
// in input features and out output features. The layer's weights are
// initialized using init, and its nodes are named with the argument
// prefix.
func NewFCLayer(g *G.ExprGraph, in, out int, bias bool, act *Activation,
	init G.InitWFn, prefix string) Layer {
	weights := G.NewMatrix(
		g,
		tensor.Float64,
		G.WithShape(in, out),
		G.WithName(fmt.Sprintf("%vW", prefix)),
		G.WithInit(init),
	)

	var biasNode *G.Node
	if bias {
		biasNode = G.NewVector(
			g,
			tensor.Float64,
			G.WithShape(out),
			G.WithName(fmt.Sprintf("%vB", prefix)),
			G.WithInit(init),
		)
	}

	return &fcLayer{
		weights: weights,
		bias:    biasNode,
		act:     act,
	}
}

// NewFCLayers returns a stack of fully connected layers on the graph
// g. The stack's first layer takes features input features, and layer
// i has sizes[i] output features. The number of sizes, biases, and
// activations must agree.
func NewFCLayers(g *G.ExprGraph, features int, sizes []int, biases []bool,
	activations []*Activation, init G.InitWFn, prefix string) ([]Layer,
	error) {
	if len(sizes) != len(activations) {
		msg := "newFCLayers: invalid number of activations" +
			"\n\twant(%d)\n\thave(%d)"
		return nil, fmt.Errorf(msg, len(sizes), len(activations))
	}

	if len(sizes) != len(biases) {
		msg := "newFCLayers: invalid number of biases\n\twant(%d)" +
			"\n\thave(%d)"
		return nil, fmt.Errorf(msg, len(sizes), len(biases))
	}

	layers := make([]Layer, len(sizes))
	in := features
	for i, out := range sizes {
		if out <= 0 {
			return nil, fmt.Errorf("newFCLayers: layer %v has illegal size "+
				"\n\twant(positive) \n\thave(%v)", i, out)
		}
		name := fmt.Sprintf("%vL%d", prefix, i)
		layers[i] = NewFCLayer(g, in, out, biases[i], activations[i], init,
			name)
		in = out
	}

	return layers, nil
}

// FwdLayers runs the forward pass of a stack of layers on the input
// node x, returning the node that holds the final layer's output.
func FwdLayers(layers []Layer, x *G.Node) (*G.Node, error) {
	var err error
	for i, l := range layers {
		if x, err = l.Fwd(x); err != nil {
			msg := "fwdLayers: could not compute forward pass of layer %v: %v"
			return nil, fmt.Errorf(msg, i, err)
		}
	}
	return x, nil
}

// LayerLearnables collects the learnable nodes of a stack of layers
// in a deterministic order.
func LayerLearnables(layers []Layer) G.Nodes {
	learnables := make([]*G.Node, 0, 2*len(layers))
	for i := range layers {
		learnables = append(learnables, layers[i].Weights())
		if bias := layers[i].Bias(); bias != nil {
			learnables = append(learnables, bias)
		}
	}
	return G.Nodes(learnables)
}
