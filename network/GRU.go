package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/rushbgti/trackmania-rl/spec"
	"github.com/rushbgti/trackmania-rl/utils/tensorutils"
)

// gruLayer holds the parameters of one gated recurrent unit layer.
// The three gates (reset, update, candidate) are stored fused along
// the output dimension, so the weight matrices have 3 * hidden
// columns and each gate is a column slice.
type gruLayer struct {
	wx     *G.Node // [in, 3 * hidden] input weights
	wh     *G.Node // [hidden, 3 * hidden] recurrent weights
	bx     *G.Node // [3 * hidden] input bias
	bh     *G.Node // [3 * hidden] recurrent bias
	hidden int
}

func newGRULayer(g *G.ExprGraph, in, hidden int, init G.InitWFn,
	layer int) *gruLayer {
	return &gruLayer{
		wx: G.NewMatrix(g, tensor.Float64, G.WithShape(in, 3*hidden),
			G.WithName(fmt.Sprintf("GRUL%dWx", layer)), G.WithInit(init)),
		wh: G.NewMatrix(g, tensor.Float64, G.WithShape(hidden, 3*hidden),
			G.WithName(fmt.Sprintf("GRUL%dWh", layer)), G.WithInit(init)),
		bx: G.NewVector(g, tensor.Float64, G.WithShape(3*hidden),
			G.WithName(fmt.Sprintf("GRUL%dBx", layer)), G.WithInit(init)),
		bh: G.NewVector(g, tensor.Float64, G.WithShape(3*hidden),
			G.WithName(fmt.Sprintf("GRUL%dBh", layer)), G.WithInit(init)),
		hidden: hidden,
	}
}

// gate slices one gate's columns out of a fused [batch, 3 * hidden]
// pre-activation.
func (l *gruLayer) gate(fused *G.Node, i int) *G.Node {
	s := tensorutils.NewSlice(i*l.hidden, (i+1)*l.hidden, 1)
	return G.Must(G.Slice(fused, nil, s))
}

// step adds one GRU time step to the graph. Given the input x of
// shape [batch, in] and the previous hidden state h of shape
// [batch, hidden], it returns the new hidden state:
//
//	r  = σ(x·Wxr + bxr + h·Whr + bhr)
//	z  = σ(x·Wxz + bxz + h·Whz + bhz)
//	n  = tanh(x·Wxn + bxn + r ⊙ (h·Whn + bhn))
//	h' = (1 - z) ⊙ n + z ⊙ h
func (l *gruLayer) step(x, h *G.Node) *G.Node {
	gi := G.Must(G.Mul(x, l.wx))
	gi = G.Must(G.BroadcastAdd(gi, l.bx, nil, []byte{0}))
	gh := G.Must(G.Mul(h, l.wh))
	gh = G.Must(G.BroadcastAdd(gh, l.bh, nil, []byte{0}))

	r := G.Must(G.Sigmoid(G.Must(G.Add(l.gate(gi, 0), l.gate(gh, 0)))))
	z := G.Must(G.Sigmoid(G.Must(G.Add(l.gate(gi, 1), l.gate(gh, 1)))))
	n := G.Must(G.Tanh(G.Must(G.Add(
		l.gate(gi, 2),
		G.Must(G.HadamardProd(r, l.gate(gh, 2))),
	))))

	// (1 - z) ⊙ n + z ⊙ h, expanded so that only Hadamard products
	// and sums touch the matrix operands
	zn := G.Must(G.HadamardProd(z, n))
	zh := G.Must(G.HadamardProd(z, h))
	return G.Must(G.Add(G.Must(G.Sub(n, zn)), zh))
}

func (l *gruLayer) learnables() G.Nodes {
	return G.Nodes{l.wx, l.wh, l.bx, l.bh}
}

// gru implements a recurrent Backbone: a stack of GRU layers unrolled
// over a fixed-length, time-major observation sequence. The latent
// representation is the top layer's output at the final time step.
//
// The backbone stores no hidden state between calls. SetInput takes
// the prior State explicitly (nil for a fresh zero state, as in a
// training unroll) and NextState returns the successor, so training
// unrolls and persisted online rollouts can never interfere through
// shared storage. A gru is still not safe for concurrent use: one
// instance per rollout worker.
type gru struct {
	g      *G.ExprGraph
	inputs [][]*G.Node // inputs[t][i]: sub-observation i at step t
	h0     []*G.Node   // Initial hidden state, one node per layer
	layers []*gruLayer

	obsSpace  spec.Composite
	features  int
	rnnSize   int
	rnnLen    int
	seqLen    int
	batchSize int

	latent    *G.Node
	latentVal G.Value
	hVals     []G.Value // Final hidden state per layer after a run

	learnables G.Nodes
	model      []G.ValueGrad
}

// NewGRU returns a new recurrent Backbone over the argument
// observation space with rnnLen stacked GRU layers of width rnnSize,
// unrolled over seqLen time steps. Online rollouts use seqLen 1 and
// thread the returned State between calls; training unrolls use the
// window length and a nil State.
func NewGRU(obsSpace spec.Composite, seqLen, batch, rnnSize, rnnLen int,
	init G.InitWFn) (Backbone, error) {
	if rnnLen < 1 {
		return nil, fmt.Errorf("newGRU: at least one recurrent layer is "+
			"required \n\thave(%v)", rnnLen)
	}
	if rnnSize <= 0 {
		return nil, fmt.Errorf("newGRU: recurrent layer size must be "+
			"positive \n\thave(%v)", rnnSize)
	}
	if seqLen <= 0 || batch <= 0 {
		return nil, fmt.Errorf("newGRU: sequence length and batch size "+
			"must be positive \n\thave(%v, %v)", seqLen, batch)
	}

	g := G.NewGraph()
	features := obsSpace.TotalDim()

	inputs := make([][]*G.Node, seqLen)
	for t := range inputs {
		inputs[t] = make([]*G.Node, obsSpace.NumSpaces())
		for i := range inputs[t] {
			inputs[t][i] = G.NewMatrix(
				g,
				tensor.Float64,
				G.WithShape(batch, obsSpace.SubDim(i)),
				G.WithName(fmt.Sprintf("observation%dT%d", i, t)),
				G.WithInit(G.Zeroes()),
			)
		}
	}

	h0 := make([]*G.Node, rnnLen)
	layers := make([]*gruLayer, rnnLen)
	in := features
	for l := 0; l < rnnLen; l++ {
		h0[l] = G.NewMatrix(
			g,
			tensor.Float64,
			G.WithShape(batch, rnnSize),
			G.WithName(fmt.Sprintf("hidden%d", l)),
			G.WithInit(G.Zeroes()),
		)
		layers[l] = newGRULayer(g, in, rnnSize, init, l)
		in = rnnSize
	}

	// Unroll the stack over the sequence. hs[l] tracks layer l's
	// hidden state at the current time step.
	hs := make([]*G.Node, rnnLen)
	copy(hs, h0)
	var top *G.Node
	for t := 0; t < seqLen; t++ {
		var x *G.Node
		if len(inputs[t]) > 1 {
			x = G.Must(G.Concat(1, inputs[t]...))
		} else {
			x = inputs[t][0]
		}
		for l := 0; l < rnnLen; l++ {
			hs[l] = layers[l].step(x, hs[l])
			x = hs[l]
		}
		top = x
	}

	net := &gru{
		g:         g,
		inputs:    inputs,
		h0:        h0,
		layers:    layers,
		obsSpace:  obsSpace,
		features:  features,
		rnnSize:   rnnSize,
		rnnLen:    rnnLen,
		seqLen:    seqLen,
		batchSize: batch,
		latent:    top,
		hVals:     make([]G.Value, rnnLen),
	}
	G.Read(net.latent, &net.latentVal)
	for l := 0; l < rnnLen; l++ {
		G.Read(hs[l], &net.hVals[l])
	}

	return net, nil
}

// Graph returns the computational graph of the backbone.
func (r *gru) Graph() *G.ExprGraph {
	return r.g
}

// Latent returns the node holding the top layer's output at the
// final time step.
func (r *gru) Latent() *G.Node {
	return r.latent
}

// LatentValue returns the value of the latent node after the graph
// has been run.
func (r *gru) LatentValue() G.Value {
	return r.latentVal
}

// LatentSize returns the width of the latent representation.
func (r *gru) LatentSize() int {
	return r.rnnSize
}

// BatchSize returns the batch size of inputs to the backbone.
func (r *gru) BatchSize() int {
	return r.batchSize
}

// SeqLen returns the unrolled sequence length of the backbone.
func (r *gru) SeqLen() int {
	return r.seqLen
}

// Features returns the total observation width at each time step.
func (r *gru) Features() int {
	return r.features
}

// SetInput sets the observation sequence and the initial hidden state
// before running the forward pass. Each sub-observation slice holds
// SeqLen * BatchSize * subDim values in time-major order. A nil state
// unrolls from zeros; a non-nil state resumes from it.
func (r *gru) SetInput(obs [][]float64, state State) error {
	if len(obs) != r.obsSpace.NumSpaces() {
		return fmt.Errorf("setInput: invalid number of sub-observations "+
			"\n\twant(%v) \n\thave(%v)", r.obsSpace.NumSpaces(), len(obs))
	}

	for i, sub := range obs {
		stepSize := r.batchSize * r.obsSpace.SubDim(i)
		if len(sub) != r.seqLen*stepSize {
			return fmt.Errorf("setInput: invalid number of inputs for "+
				"sub-observation %v \n\twant(%v) \n\thave(%v)", i,
				r.seqLen*stepSize, len(sub))
		}
		for t := 0; t < r.seqLen; t++ {
			stepTensor := tensor.New(
				tensor.WithBacking(sub[t*stepSize:(t+1)*stepSize]),
				tensor.WithShape(r.batchSize, r.obsSpace.SubDim(i)),
			)
			if err := G.Let(r.inputs[t][i], stepTensor); err != nil {
				return fmt.Errorf("setInput: could not set sub-observation "+
					"%v at step %v: %v", i, t, err)
			}
		}
	}

	if state == nil {
		for l := range r.h0 {
			zero := tensor.New(
				tensor.Of(tensor.Float64),
				tensor.WithShape(r.batchSize, r.rnnSize),
			)
			if err := G.Let(r.h0[l], zero); err != nil {
				return fmt.Errorf("setInput: could not zero hidden state "+
					"of layer %v: %v", l, err)
			}
		}
		return nil
	}

	if err := validateState(state, r.rnnLen, r.batchSize, r.rnnSize); err != nil {
		return fmt.Errorf("setInput: %v", err)
	}
	for l := range r.h0 {
		if err := G.Let(r.h0[l], state[l].Clone().(*tensor.Dense)); err != nil {
			return fmt.Errorf("setInput: could not set hidden state of "+
				"layer %v: %v", l, err)
		}
	}
	return nil
}

// NextState returns the hidden state produced by the most recent run.
// The returned State shares no storage with the backbone, so it can
// be held across calls and passed back in later.
func (r *gru) NextState() State {
	state := make(State, r.rnnLen)
	for l := range r.hVals {
		if r.hVals[l] == nil {
			return nil
		}
		var backing []float64
		switch data := r.hVals[l].Data().(type) {
		case []float64:
			backing = make([]float64, len(data))
			copy(backing, data)
		case float64:
			backing = []float64{data}
		}
		state[l] = tensor.New(
			tensor.WithBacking(backing),
			tensor.WithShape(r.batchSize, r.rnnSize),
		)
	}
	return state
}

// Learnables returns the learnable nodes of all GRU layers.
func (r *gru) Learnables() G.Nodes {
	// Lazy instantiation
	if r.learnables == nil {
		r.learnables = make(G.Nodes, 0, 4*r.rnnLen)
		for _, l := range r.layers {
			r.learnables = append(r.learnables, l.learnables()...)
		}
	}
	return r.learnables
}

// Model returns the learnable nodes with their gradients.
func (r *gru) Model() []G.ValueGrad {
	// Lazy instantiation
	if r.model == nil {
		r.model = make([]G.ValueGrad, 0, len(r.Learnables()))
		for _, node := range r.Learnables() {
			r.model = append(r.model, node)
		}
	}
	return r.model
}
