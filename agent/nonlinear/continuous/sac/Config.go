package sac

import (
	"fmt"

	"github.com/rushbgti/trackmania-rl/initwfn"
	"github.com/rushbgti/trackmania-rl/network"
	"github.com/rushbgti/trackmania-rl/spec"
)

// Config describes the architecture of an actor-critic bundle and can
// build the bundle it describes. Two implementations exist, one per
// backbone family: MLPConfig for the feed-forward family and
// RNNConfig for the recurrent family. Which family a bundle uses is
// decided here, at construction time; everything downstream depends
// only on the network.Backbone interface.
type Config interface {
	// Validate returns an error describing the first illegal field of
	// the configuration, or nil if the configuration is legal.
	Validate() error

	// Build constructs the bundle the configuration describes over
	// the argument spaces.
	Build(obsSpace spec.Composite, actSpace spec.Bounded) (*ActorCritic,
		error)

	// buildWithSize constructs the bundle with an overridden sequence
	// length and batch size, used when cloning bundles for batched
	// training.
	buildWithSize(obsSpace spec.Composite, actSpace spec.Bounded, seqLen,
		batch int) (*ActorCritic, error)
}

// MLPConfig configures a feed-forward actor-critic bundle. The zero
// value of any field is replaced by its default when building.
type MLPConfig struct {
	// HiddenSizes are the widths of the fully connected trunk layers
	// of the policy and of each action-value head. Defaults to
	// (256, 256).
	HiddenSizes []int

	// NumCritics is the action-value ensemble size. Defaults to 2.
	NumCritics int

	// Activation is the nonlinearity between trunk layers. Defaults
	// to ReLU.
	Activation *network.Activation

	// InitWFn is the weight initialization scheme for all networks.
	// Defaults to Glorot uniform.
	InitWFn *initwfn.InitWFn

	// Seed seeds the policy's noise sampler.
	Seed uint64

	// BatchSize is the input batch size the networks are built for.
	// Defaults to 1, the single-sample size a rollout Actor requires.
	BatchSize int
}

// withDefaults returns the configuration with zero-valued fields
// replaced by their defaults.
func (c MLPConfig) withDefaults() (MLPConfig, error) {
	if c.HiddenSizes == nil {
		c.HiddenSizes = []int{256, 256}
	}
	if c.NumCritics == 0 {
		c.NumCritics = 2
	}
	if c.Activation == nil {
		c.Activation = network.ReLU()
	}
	if c.InitWFn == nil {
		init, err := initwfn.NewGlorotU(1.0)
		if err != nil {
			return c, fmt.Errorf("withDefaults: could not create default "+
				"weight initializer: %v", err)
		}
		c.InitWFn = init
	}
	if c.BatchSize == 0 {
		c.BatchSize = 1
	}
	return c, nil
}

// Validate returns an error describing the first illegal field of the
// configuration.
func (c MLPConfig) Validate() error {
	for i, size := range c.HiddenSizes {
		if size <= 0 {
			return fmt.Errorf("validate: hidden layer %v has illegal size "+
				"\n\twant(positive) \n\thave(%v)", i, size)
		}
	}
	if c.NumCritics < 0 {
		return fmt.Errorf("validate: number of critics cannot be negative "+
			"\n\thave(%v)", c.NumCritics)
	}
	if c.BatchSize < 0 {
		return fmt.Errorf("validate: batch size cannot be negative "+
			"\n\thave(%v)", c.BatchSize)
	}
	return nil
}

// Build constructs the feed-forward bundle the configuration
// describes.
func (c MLPConfig) Build(obsSpace spec.Composite,
	actSpace spec.Bounded) (*ActorCritic, error) {
	return c.buildWithSize(obsSpace, actSpace, 1, 0)
}

func (c MLPConfig) buildWithSize(obsSpace spec.Composite,
	actSpace spec.Bounded, _, batch int) (*ActorCritic, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("build: %v", err)
	}
	c, err := c.withDefaults()
	if err != nil {
		return nil, fmt.Errorf("build: %v", err)
	}
	if batch > 0 {
		c.BatchSize = batch
	}
	init := c.InitWFn.InitWFn()

	// Policy: feed-forward trunk with the activation after every
	// layer, then the Gaussian projections
	biases := make([]bool, len(c.HiddenSizes))
	activations := make([]*network.Activation, len(c.HiddenSizes))
	for i := range c.HiddenSizes {
		biases[i] = true
		activations[i] = c.Activation
	}
	policyBackbone, err := network.NewFeedForward(obsSpace, c.BatchSize,
		c.HiddenSizes, biases, activations, init)
	if err != nil {
		return nil, fmt.Errorf("build: could not create policy backbone: "+
			"%v", err)
	}
	policy, err := NewSquashedGaussian(policyBackbone, actSpace, nil,
		c.Activation, init, c.Seed)
	if err != nil {
		return nil, fmt.Errorf("build: could not create policy: %v", err)
	}

	// Critics: each head consumes the raw observation concatenation
	// directly, so its backbone is a passthrough
	critics := make([]*ActionValue, c.NumCritics)
	for k := range critics {
		criticBackbone, err := network.NewFeedForward(obsSpace, c.BatchSize,
			nil, nil, nil, init)
		if err != nil {
			return nil, fmt.Errorf("build: could not create backbone of "+
				"critic %v: %v", k, err)
		}
		critics[k], err = NewActionValue(criticBackbone, actSpace,
			c.HiddenSizes, c.Activation, init)
		if err != nil {
			return nil, fmt.Errorf("build: could not create critic %v: %v",
				k, err)
		}
	}

	return &ActorCritic{
		policy:   policy,
		critics:  critics,
		obsSpace: obsSpace,
		actSpace: actSpace,
		config:   c,
	}, nil
}

// RNNConfig configures a recurrent actor-critic bundle: the policy
// and every action-value head own an independent stack of GRU layers.
// The zero value of any field is replaced by its default when
// building.
type RNNConfig struct {
	// RnnSize is the width of each recurrent layer. Defaults to 100.
	RnnSize int

	// RnnLen is the number of stacked recurrent layers. Defaults
	// to 2.
	RnnLen int

	// MLPSizes are the widths of the fully connected layers between
	// the recurrent latent representation and each head's output.
	// Defaults to (100, 100).
	MLPSizes []int

	// NumCritics is the action-value ensemble size. Defaults to 2.
	NumCritics int

	// Activation is the nonlinearity between fully connected layers.
	// Defaults to ReLU.
	Activation *network.Activation

	// InitWFn is the weight initialization scheme for all networks.
	// Defaults to Glorot uniform.
	InitWFn *initwfn.InitWFn

	// Seed seeds the policy's noise sampler.
	Seed uint64

	// SeqLen is the unrolled sequence length the networks are built
	// for. Defaults to 1, the single-step length a rollout Actor
	// requires; training unrolls rebuild with the window length.
	SeqLen int

	// BatchSize is the input batch size the networks are built for.
	// Defaults to 1.
	BatchSize int
}

// withDefaults returns the configuration with zero-valued fields
// replaced by their defaults.
func (c RNNConfig) withDefaults() (RNNConfig, error) {
	if c.RnnSize == 0 {
		c.RnnSize = 100
	}
	if c.RnnLen == 0 {
		c.RnnLen = 2
	}
	if c.MLPSizes == nil {
		c.MLPSizes = []int{100, 100}
	}
	if c.NumCritics == 0 {
		c.NumCritics = 2
	}
	if c.Activation == nil {
		c.Activation = network.ReLU()
	}
	if c.InitWFn == nil {
		init, err := initwfn.NewGlorotU(1.0)
		if err != nil {
			return c, fmt.Errorf("withDefaults: could not create default "+
				"weight initializer: %v", err)
		}
		c.InitWFn = init
	}
	if c.SeqLen == 0 {
		c.SeqLen = 1
	}
	if c.BatchSize == 0 {
		c.BatchSize = 1
	}
	return c, nil
}

// Validate returns an error describing the first illegal field of the
// configuration.
func (c RNNConfig) Validate() error {
	if c.RnnSize < 0 {
		return fmt.Errorf("validate: recurrent layer size cannot be "+
			"negative \n\thave(%v)", c.RnnSize)
	}
	if c.RnnLen < 0 {
		return fmt.Errorf("validate: number of recurrent layers cannot be "+
			"negative \n\thave(%v)", c.RnnLen)
	}
	for i, size := range c.MLPSizes {
		if size <= 0 {
			return fmt.Errorf("validate: fully connected layer %v has "+
				"illegal size \n\twant(positive) \n\thave(%v)", i, size)
		}
	}
	if c.NumCritics < 0 {
		return fmt.Errorf("validate: number of critics cannot be negative "+
			"\n\thave(%v)", c.NumCritics)
	}
	if c.SeqLen < 0 {
		return fmt.Errorf("validate: sequence length cannot be negative "+
			"\n\thave(%v)", c.SeqLen)
	}
	if c.BatchSize < 0 {
		return fmt.Errorf("validate: batch size cannot be negative "+
			"\n\thave(%v)", c.BatchSize)
	}
	return nil
}

// Build constructs the recurrent bundle the configuration describes.
func (c RNNConfig) Build(obsSpace spec.Composite,
	actSpace spec.Bounded) (*ActorCritic, error) {
	return c.buildWithSize(obsSpace, actSpace, 0, 0)
}

func (c RNNConfig) buildWithSize(obsSpace spec.Composite,
	actSpace spec.Bounded, seqLen, batch int) (*ActorCritic, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("build: %v", err)
	}
	c, err := c.withDefaults()
	if err != nil {
		return nil, fmt.Errorf("build: %v", err)
	}
	if seqLen > 0 {
		c.SeqLen = seqLen
	}
	if batch > 0 {
		c.BatchSize = batch
	}
	init := c.InitWFn.InitWFn()

	policyBackbone, err := network.NewGRU(obsSpace, c.SeqLen, c.BatchSize,
		c.RnnSize, c.RnnLen, init)
	if err != nil {
		return nil, fmt.Errorf("build: could not create policy backbone: "+
			"%v", err)
	}
	policy, err := NewSquashedGaussian(policyBackbone, actSpace, c.MLPSizes,
		c.Activation, init, c.Seed)
	if err != nil {
		return nil, fmt.Errorf("build: could not create policy: %v", err)
	}

	// Each critic owns an independent recurrent backbone; the action
	// is merged in the latent space after it
	critics := make([]*ActionValue, c.NumCritics)
	for k := range critics {
		criticBackbone, err := network.NewGRU(obsSpace, c.SeqLen,
			c.BatchSize, c.RnnSize, c.RnnLen, init)
		if err != nil {
			return nil, fmt.Errorf("build: could not create backbone of "+
				"critic %v: %v", k, err)
		}
		critics[k], err = NewActionValue(criticBackbone, actSpace,
			c.MLPSizes, c.Activation, init)
		if err != nil {
			return nil, fmt.Errorf("build: could not create critic %v: %v",
				k, err)
		}
	}

	return &ActorCritic{
		policy:   policy,
		critics:  critics,
		obsSpace: obsSpace,
		actSpace: actSpace,
		config:   c,
	}, nil
}
