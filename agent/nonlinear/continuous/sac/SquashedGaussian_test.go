package sac_test

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
	G "gorgonia.org/gorgonia"

	"github.com/rushbgti/trackmania-rl/agent/nonlinear/continuous/sac"
	"github.com/rushbgti/trackmania-rl/network"
	"github.com/rushbgti/trackmania-rl/spec"
)

const tolerance float64 = 1e-8

// testSpaces returns a width-4 observation space and a 2D action
// space bounded by ±1.
func testSpaces(t *testing.T) (spec.Composite, spec.Bounded) {
	t.Helper()
	obsSpace, err := spec.NewComposite(mat.NewVecDense(1, []float64{4}))
	if err != nil {
		t.Fatalf("could not create observation space: %v", err)
	}
	actSpace, err := spec.NewBounded(
		mat.NewVecDense(2, []float64{-1, -1}),
		mat.NewVecDense(2, []float64{1, 1}),
	)
	if err != nil {
		t.Fatalf("could not create action space: %v", err)
	}
	return obsSpace, actSpace
}

// constantPolicy returns a policy over a passthrough backbone whose
// weights and biases are all set by init, so its outputs can be
// computed by hand.
func constantPolicy(t *testing.T, init G.InitWFn) *sac.SquashedGaussian {
	t.Helper()
	obsSpace, actSpace := testSpaces(t)

	backbone, err := network.NewFeedForward(obsSpace, 1, nil, nil, nil, init)
	if err != nil {
		t.Fatalf("could not create backbone: %v", err)
	}
	policy, err := sac.NewSquashedGaussian(backbone, actSpace, nil,
		network.ReLU(), init, 14)
	if err != nil {
		t.Fatalf("could not create policy: %v", err)
	}
	return policy
}

func TestSquashedGaussianDeterministic(t *testing.T) {
	obsSpace, actSpace := testSpaces(t)

	config := sac.MLPConfig{HiddenSizes: []int{32}, Seed: 42}
	bundle, err := sac.New(config, obsSpace, actSpace)
	if err != nil {
		t.Fatalf("could not create actor-critic: %v", err)
	}
	defer bundle.Close()
	policy := bundle.Policy()

	observations := [][][]float64{
		{{0.1, -0.5, 2, 0.25}},
		{{0, 0, 0, 0}},
	}
	for _, obs := range observations {
		first, logProb, _, err := policy.Forward(obs, nil, true, true)
		if err != nil {
			t.Fatalf("could not run policy: %v", err)
		}
		second, _, _, err := policy.Forward(obs, nil, true, true)
		if err != nil {
			t.Fatalf("could not run policy: %v", err)
		}

		if len(first) != actSpace.Dim() {
			t.Fatalf("wrong action dimensionality: want(%v) have(%v)",
				actSpace.Dim(), len(first))
		}
		for i := range first {
			if first[i] != second[i] {
				t.Errorf("deterministic actions differ at index %v: "+
					"%v != %v", i, first[i], second[i])
			}
		}
		if !actSpace.Contains(first) {
			t.Errorf("action %v lies outside the action bounds", first)
		}
		if len(logProb) != 1 {
			t.Errorf("wrong number of log probabilities: want(1) have(%v)",
				len(logProb))
		}
	}
}

func TestSquashedGaussianStochasticBounds(t *testing.T) {
	obsSpace, actSpace := testSpaces(t)

	config := sac.MLPConfig{HiddenSizes: []int{32}, Seed: 42}
	bundle, err := sac.New(config, obsSpace, actSpace)
	if err != nil {
		t.Fatalf("could not create actor-critic: %v", err)
	}
	defer bundle.Close()
	policy := bundle.Policy()

	obs := [][]float64{{0.1, -0.5, 2, 0.25}}
	var previous []float64
	varied := false
	for i := 0; i < 20; i++ {
		action, _, _, err := policy.Forward(obs, nil, false, false)
		if err != nil {
			t.Fatalf("could not run policy: %v", err)
		}
		if !actSpace.Contains(action) {
			t.Errorf("sampled action %v lies outside the action bounds",
				action)
		}
		if previous != nil && (action[0] != previous[0] ||
			action[1] != previous[1]) {
			varied = true
		}
		previous = action
	}
	if !varied {
		t.Error("sampled actions should vary between draws")
	}
}

func TestSquashedGaussianStdClamp(t *testing.T) {
	policy := constantPolicy(t, G.Ones())
	defer policy.Close()

	// With all weights and biases at one, the log std projection of
	// this observation is 4 * 10 + 1 = 41, far above the clamp
	_, _, _, err := policy.Forward([][]float64{{10, 10, 10, 10}}, nil,
		true, false)
	if err != nil {
		t.Fatalf("could not run policy: %v", err)
	}
	for i, std := range policy.Std() {
		if math.Abs(std-math.Exp(2)) > tolerance {
			t.Errorf("std %v not clamped from above: want(%v) have(%v)",
				i, math.Exp(2), std)
		}
	}

	// The projection of the negated observation is -39, far below
	// the clamp
	_, _, _, err = policy.Forward([][]float64{{-10, -10, -10, -10}}, nil,
		true, false)
	if err != nil {
		t.Fatalf("could not run policy: %v", err)
	}
	for i, std := range policy.Std() {
		if math.Abs(std-math.Exp(-20)) > tolerance {
			t.Errorf("std %v not clamped from below: want(%v) have(%v)",
				i, math.Exp(-20), std)
		}
	}
}

func TestSquashedGaussianLogProb(t *testing.T) {
	policy := constantPolicy(t, G.Zeroes())
	defer policy.Close()

	// With zero weights the policy is a standard normal in each
	// action dimension, its deterministic pre-squash sample is the
	// zero vector, and the squash correction vanishes at zero, so
	// the log probability is that of a 2D standard normal at its
	// mean
	action, logProb, _, err := policy.Forward([][]float64{{0, 0, 0, 0}},
		nil, true, true)
	if err != nil {
		t.Fatalf("could not run policy: %v", err)
	}

	for i := range action {
		if action[i] != 0 {
			t.Errorf("action component %v should be zero, have(%v)", i,
				action[i])
		}
	}

	expected := -math.Log(2 * math.Pi)
	if math.Abs(logProb[0]-expected) > tolerance {
		t.Errorf("wrong log probability: want(%v) have(%v)", expected,
			logProb[0])
	}
}

func TestSquashedGaussianSaturatedLogProb(t *testing.T) {
	policy := constantPolicy(t, G.Ones())
	defer policy.Close()

	// With all weights at one the deterministic pre-squash sample is
	// the mean 41 in each dimension and the clamped std is e², so
	// the squash is fully saturated. The corrected Jacobian term
	// keeps the log probability finite where ln(1 - tanh²(41)) is
	// -Inf in double precision.
	action, logProb, _, err := policy.Forward([][]float64{{10, 10, 10, 10}},
		nil, true, true)
	if err != nil {
		t.Fatalf("could not run policy: %v", err)
	}

	if !policy.ActionSpace().Contains(action) {
		t.Errorf("saturated action %v lies outside the action bounds",
			action)
	}

	base := 2 * (-2 - 0.5*math.Log(2*math.Pi))
	correction := 2 * 2 * (math.Ln2 - 41 - math.Log1p(math.Exp(-82)))
	expected := base - correction
	if math.IsInf(logProb[0], 0) || math.IsNaN(logProb[0]) {
		t.Fatalf("saturated log probability is not finite: %v", logProb[0])
	}
	if math.Abs(logProb[0]-expected) > tolerance {
		t.Errorf("wrong saturated log probability: want(%v) have(%v)",
			expected, logProb[0])
	}
}
