// Package sac implements the actor-critic neural architectures of a
// Soft Actor-Critic agent: a squashed-Gaussian policy and an ensemble
// of action-value estimators, over either a feed-forward or a
// recurrent backbone. The package implements only the forward
// architecture and inference contract; losses, replay, and weight
// updates belong to an external training loop.
package sac

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/rushbgti/trackmania-rl/network"
	"github.com/rushbgti/trackmania-rl/spec"
	"github.com/rushbgti/trackmania-rl/utils/floatutils"
	"github.com/rushbgti/trackmania-rl/utils/op"
)

// Bounds on the log standard deviation projection. The projection is
// clamped into [LogStdMin, LogStdMax] before exponentiation so the
// standard deviation can neither collapse to zero nor explode.
const (
	LogStdMin float64 = -20
	LogStdMax float64 = 2
)

// SquashedGaussian implements a squashed-Gaussian policy head over a
// network.Backbone. The backbone's latent representation is projected
// through two independent linear layers to the mean and log standard
// deviation of a diagonal Gaussian. A pre-squash action is drawn by
// reparameterized sampling (x = μ + σ·ε with ε standard normal, or
// x = μ in deterministic mode) and squashed into the action bounds by
// actLimit · tanh(x), so actions always lie within the action space
// by construction.
//
// The log probability of the squashed action is the Gaussian log
// density of x summed across the action dimension, corrected by the
// tanh Jacobian term Σ 2·(ln 2 − x − softplus(−2x)). This form is
// mathematically equal to Σ ln(1 − tanh(x)²) but does not cancel
// catastrophically when |x| saturates the squash.
type SquashedGaussian struct {
	backbone    network.Backbone
	trunk       []network.Layer
	muLayer     network.Layer
	logStdLayer network.Layer

	epsilon *G.Node // Reparameterization noise input

	actionVal  G.Value
	logProbVal G.Value
	meanVal    G.Value
	stdVal     G.Value

	vm     G.VM
	normal distmv.Rander

	actSpace spec.Bounded
	dimAct   int

	learnables G.Nodes
	model      []G.ValueGrad
}

// NewSquashedGaussian returns a new squashed-Gaussian policy head
// over the argument backbone. The trunkSizes layers are inserted
// between the backbone's latent representation and the mean/log-std
// projections with the argument activation after every layer; a
// feed-forward backbone that already ends in its trunk passes nil.
// The seed parameter seeds the policy's noise sampler.
func NewSquashedGaussian(b network.Backbone, actSpace spec.Bounded,
	trunkSizes []int, activation *network.Activation, init G.InitWFn,
	seed uint64) (*SquashedGaussian, error) {
	g := b.Graph()
	dimAct := actSpace.Dim()
	batch := b.BatchSize()

	trunkBiases := make([]bool, len(trunkSizes))
	trunkActivations := make([]*network.Activation, len(trunkSizes))
	for i := range trunkSizes {
		trunkBiases[i] = true
		trunkActivations[i] = activation
	}
	trunk, err := network.NewFCLayers(g, b.LatentSize(), trunkSizes,
		trunkBiases, trunkActivations, init, "Policy")
	if err != nil {
		return nil, fmt.Errorf("newSquashedGaussian: %v", err)
	}

	latent, err := network.FwdLayers(trunk, b.Latent())
	if err != nil {
		return nil, fmt.Errorf("newSquashedGaussian: could not compute "+
			"trunk forward pass: %v", err)
	}
	latentSize := b.LatentSize()
	if len(trunkSizes) > 0 {
		latentSize = trunkSizes[len(trunkSizes)-1]
	}

	// Independent projections to the Gaussian parameters
	muLayer := network.NewFCLayer(g, latentSize, dimAct, true,
		network.Identity(), init, "Mu")
	logStdLayer := network.NewFCLayer(g, latentSize, dimAct, true,
		network.Identity(), init, "LogStd")

	mu := G.Must(muLayer.Fwd(latent))
	logStd := G.Must(logStdLayer.Fwd(latent))
	logStd, err = op.Clip(logStd, LogStdMin, LogStdMax)
	if err != nil {
		return nil, fmt.Errorf("newSquashedGaussian: could not clamp log "+
			"std: %v", err)
	}
	std := G.Must(G.Exp(logStd))

	// Reparameterized pre-squash sample. Deterministic evaluation
	// sets ε = 0 so that x = μ.
	epsilon := G.NewMatrix(
		g,
		tensor.Float64,
		G.WithShape(batch, dimAct),
		G.WithName("epsilon"),
		G.WithInit(G.Zeroes()),
	)
	x := G.Must(G.Add(mu, G.Must(G.HadamardProd(std, epsilon))))

	logProb := squashedLogProb(mu, std, x)

	squashed := G.Must(G.Tanh(x))
	action := G.Must(G.Mul(G.NewConstant(actSpace.ActLimit()), squashed))

	// Create standard normal for the reparameterization noise
	means := make([]float64, dimAct)
	stds := mat.NewDiagDense(dimAct, floatutils.Ones(dimAct))
	source := rand.NewSource(seed)
	normal, ok := distmv.NewNormal(means, stds, source)
	if !ok {
		return nil, fmt.Errorf("newSquashedGaussian: could not create " +
			"standard normal for action noise")
	}

	pol := &SquashedGaussian{
		backbone:    b,
		trunk:       trunk,
		muLayer:     muLayer,
		logStdLayer: logStdLayer,
		epsilon:     epsilon,
		normal:      normal,
		actSpace:    actSpace,
		dimAct:      dimAct,
	}
	G.Read(action, &pol.actionVal)
	G.Read(logProb, &pol.logProbVal)
	G.Read(mu, &pol.meanVal)
	G.Read(std, &pol.stdVal)

	pol.vm = G.NewTapeMachine(g)

	return pol, nil
}

// squashedLogProb adds the log probability of the squashed action to
// the graph: the Gaussian log density of the pre-squash sample x
// under N(mu, std), summed across the action dimension, minus the
// tanh-squash correction Σ 2·(ln 2 − x − softplus(−2x)).
func squashedLogProb(mu, std, x *G.Node) *G.Node {
	base := op.GaussianLogPdf(mu, std, x)

	negTwoX := G.Must(G.Mul(G.NewConstant(-2.0), x))
	inner := G.Must(G.Sub(G.NewConstant(math.Ln2), x))
	inner = G.Must(G.Sub(inner, op.Softplus(negTwoX)))
	correction := G.Must(G.Mul(G.NewConstant(2.0), inner))
	correction = G.Must(G.Sum(correction, 1))

	return G.Must(G.Sub(base, correction))
}

// Forward runs the policy on an observation tuple, returning the
// squashed action, the log probability of the action (nil when
// withLogProb is false), and the successor recurrent state. The state
// argument is the prior recurrent state to resume from (nil for a
// fresh unroll) and is ignored by feed-forward backbones.
//
// In deterministic mode the pre-squash sample is the mean, so
// repeated calls with unchanged parameters and observation return
// identical actions. Otherwise the sample is reparameterized noise
// scaled by the policy's standard deviation.
//
// For a single-sample policy (batch size 1), the returned action is
// the flat action vector with no batch dimension.
func (s *SquashedGaussian) Forward(obs [][]float64, state network.State,
	deterministic, withLogProb bool) ([]float64, []float64, network.State,
	error) {
	if err := s.backbone.SetInput(obs, state); err != nil {
		return nil, nil, nil, fmt.Errorf("forward: %v", err)
	}

	batch := s.backbone.BatchSize()
	eps := make([]float64, batch*s.dimAct)
	if !deterministic {
		for b := 0; b < batch; b++ {
			copy(eps[b*s.dimAct:(b+1)*s.dimAct], s.normal.Rand(nil))
		}
	}
	epsTensor := tensor.New(
		tensor.WithBacking(eps),
		tensor.WithShape(batch, s.dimAct),
	)
	if err := G.Let(s.epsilon, epsTensor); err != nil {
		return nil, nil, nil, fmt.Errorf("forward: could not set noise: %v",
			err)
	}

	if err := s.vm.RunAll(); err != nil {
		return nil, nil, nil, fmt.Errorf("forward: could not run policy "+
			"VM: %v", err)
	}
	defer s.vm.Reset()

	action := valueFloats(s.actionVal)
	var logProb []float64
	if withLogProb {
		logProb = valueFloats(s.logProbVal)
	}

	return action, logProb, s.backbone.NextState(), nil
}

// Backbone returns the feature network of the policy.
func (s *SquashedGaussian) Backbone() network.Backbone {
	return s.backbone
}

// ActionSpace returns the action space the policy selects actions
// from.
func (s *SquashedGaussian) ActionSpace() spec.Bounded {
	return s.actSpace
}

// BatchSize returns the batch size of inputs to the policy.
func (s *SquashedGaussian) BatchSize() int {
	return s.backbone.BatchSize()
}

// SeqLen returns the unrolled sequence length of the policy's
// backbone.
func (s *SquashedGaussian) SeqLen() int {
	return s.backbone.SeqLen()
}

// Mean returns the Gaussian mean computed by the most recent forward
// pass.
func (s *SquashedGaussian) Mean() []float64 {
	return valueFloats(s.meanVal)
}

// Std returns the (clamped) standard deviation computed by the most
// recent forward pass.
func (s *SquashedGaussian) Std() []float64 {
	return valueFloats(s.stdVal)
}

// Learnables returns the learnable nodes of the policy in a
// deterministic order.
func (s *SquashedGaussian) Learnables() G.Nodes {
	// Lazy instantiation
	if s.learnables == nil {
		s.learnables = append(s.learnables, s.backbone.Learnables()...)
		s.learnables = append(s.learnables,
			network.LayerLearnables(s.trunk)...)
		s.learnables = append(s.learnables,
			network.LayerLearnables([]network.Layer{s.muLayer,
				s.logStdLayer})...)
	}
	return s.learnables
}

// Model returns the learnable nodes with their gradients.
func (s *SquashedGaussian) Model() []G.ValueGrad {
	// Lazy instantiation
	if s.model == nil {
		s.model = make([]G.ValueGrad, 0, len(s.Learnables()))
		for _, node := range s.Learnables() {
			s.model = append(s.model, node)
		}
	}
	return s.model
}

// Set sets the weights of the policy to be equal to the weights of
// another policy with the same architecture.
func (dest *SquashedGaussian) Set(source *SquashedGaussian) error {
	return setLearnables(dest.Learnables(), source.Learnables())
}

// Polyak sets the weights of the policy to a Polyak average between
// its existing weights and the weights of another policy with the
// same architecture.
func (dest *SquashedGaussian) Polyak(source *SquashedGaussian,
	tau float64) error {
	return polyakLearnables(dest.Learnables(), source.Learnables(), tau)
}

// Close cleans up the policy's virtual machine.
func (s *SquashedGaussian) Close() error {
	return s.vm.Close()
}

// valueFloats copies the argument value's data into a flat slice.
func valueFloats(v G.Value) []float64 {
	if v == nil {
		return nil
	}
	switch data := v.Data().(type) {
	case []float64:
		out := make([]float64, len(data))
		copy(out, data)
		return out
	case float64:
		return []float64{data}
	}
	return nil
}

// setLearnables copies the values of source nodes into dest nodes.
func setLearnables(dest, source G.Nodes) error {
	if len(dest) != len(source) {
		return fmt.Errorf("set: architectures differ \n\twant(%v "+
			"learnables) \n\thave(%v)", len(dest), len(source))
	}
	for i, destLearnable := range dest {
		sourceLearnable := source[i].Clone()
		err := G.Let(destLearnable, sourceLearnable.(*G.Node).Value())
		if err != nil {
			return err
		}
	}
	return nil
}

// polyakLearnables sets dest nodes to a Polyak average between their
// existing values and the values of source nodes.
func polyakLearnables(dest, source G.Nodes, tau float64) error {
	if len(dest) != len(source) {
		return fmt.Errorf("polyak: architectures differ \n\twant(%v "+
			"learnables) \n\thave(%v)", len(dest), len(source))
	}
	for i := range dest {
		weights := dest[i].Value().(*tensor.Dense)
		sourceWeights := source[i].Value().(*tensor.Dense)

		weights, err := weights.MulScalar(1-tau, true)
		if err != nil {
			return err
		}

		sourceWeights, err = sourceWeights.MulScalar(tau, true)
		if err != nil {
			return err
		}

		var newWeights *tensor.Dense
		newWeights, err = weights.Add(sourceWeights)
		if err != nil {
			return err
		}

		if err := G.Let(dest[i], newWeights); err != nil {
			return err
		}
	}
	return nil
}
