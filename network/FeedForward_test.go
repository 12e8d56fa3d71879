package network_test

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
	G "gorgonia.org/gorgonia"

	"github.com/rushbgti/trackmania-rl/network"
	"github.com/rushbgti/trackmania-rl/spec"
)

const tolerance float64 = 1e-8

// latentFloats extracts the latent value of a backbone as a flat
// slice after the backbone's graph has been run.
func latentFloats(t *testing.T, b network.Backbone) []float64 {
	t.Helper()
	switch data := b.LatentValue().Data().(type) {
	case []float64:
		out := make([]float64, len(data))
		copy(out, data)
		return out
	case float64:
		return []float64{data}
	default:
		t.Fatalf("unexpected latent type %T", data)
		return nil
	}
}

func TestFeedForwardPassthrough(t *testing.T) {
	obsSpace, err := spec.NewComposite(
		mat.NewVecDense(1, []float64{2}),
		mat.NewVecDense(1, []float64{3}),
	)
	if err != nil {
		t.Fatalf("could not create observation space: %v", err)
	}

	b, err := network.NewFeedForward(obsSpace, 1, nil, nil, nil,
		G.GlorotU(1.0))
	if err != nil {
		t.Fatalf("could not create backbone: %v", err)
	}

	if b.LatentSize() != 5 {
		t.Errorf("wrong latent size: want(5) have(%v)", b.LatentSize())
	}
	if b.SeqLen() != 1 {
		t.Errorf("wrong sequence length: want(1) have(%v)", b.SeqLen())
	}
	if len(b.Learnables()) != 0 {
		t.Errorf("passthrough backbone should have no learnables, have(%v)",
			len(b.Learnables()))
	}

	vm := G.NewTapeMachine(b.Graph())
	defer vm.Close()

	obs := [][]float64{{1, 2}, {3, 4, 5}}
	if err := b.SetInput(obs, nil); err != nil {
		t.Fatalf("could not set input: %v", err)
	}
	if err := vm.RunAll(); err != nil {
		t.Fatalf("could not run VM: %v", err)
	}

	// A passthrough backbone's latent representation is the
	// concatenation of its sub-observations
	expected := []float64{1, 2, 3, 4, 5}
	latent := latentFloats(t, b)
	for i := range expected {
		if math.Abs(latent[i]-expected[i]) > tolerance {
			t.Errorf("wrong latent value at index %v: want(%v) have(%v)",
				i, expected[i], latent[i])
		}
	}

	if b.NextState() != nil {
		t.Error("feed-forward backbone should produce a nil state")
	}
}

func TestFeedForwardTrunk(t *testing.T) {
	obsSpace, err := spec.NewComposite(mat.NewVecDense(1, []float64{4}))
	if err != nil {
		t.Fatalf("could not create observation space: %v", err)
	}

	hiddenSizes := []int{8, 6}
	biases := []bool{true, true}
	activations := []*network.Activation{network.ReLU(), network.ReLU()}
	b, err := network.NewFeedForward(obsSpace, 2, hiddenSizes, biases,
		activations, G.GlorotU(1.0))
	if err != nil {
		t.Fatalf("could not create backbone: %v", err)
	}

	if b.LatentSize() != 6 {
		t.Errorf("wrong latent size: want(6) have(%v)", b.LatentSize())
	}
	if b.Features() != 4 {
		t.Errorf("wrong feature size: want(4) have(%v)", b.Features())
	}

	// Two weight matrices and two biases
	if len(b.Learnables()) != 4 {
		t.Errorf("wrong number of learnables: want(4) have(%v)",
			len(b.Learnables()))
	}
}

func TestFeedForwardIllegalConstruction(t *testing.T) {
	obsSpace, err := spec.NewComposite(mat.NewVecDense(1, []float64{4}))
	if err != nil {
		t.Fatalf("could not create observation space: %v", err)
	}

	_, err = network.NewFeedForward(obsSpace, 0, nil, nil, nil,
		G.GlorotU(1.0))
	if err == nil {
		t.Error("expected an error for a non-positive batch size")
	}

	_, err = network.NewFeedForward(obsSpace, 1, []int{8}, nil, nil,
		G.GlorotU(1.0))
	if err == nil {
		t.Error("expected an error for mismatched layer configuration " +
			"lengths")
	}
}

func TestFeedForwardSetInputErrors(t *testing.T) {
	obsSpace, err := spec.NewComposite(
		mat.NewVecDense(1, []float64{2}),
		mat.NewVecDense(1, []float64{3}),
	)
	if err != nil {
		t.Fatalf("could not create observation space: %v", err)
	}

	b, err := network.NewFeedForward(obsSpace, 1, nil, nil, nil,
		G.GlorotU(1.0))
	if err != nil {
		t.Fatalf("could not create backbone: %v", err)
	}

	if err := b.SetInput([][]float64{{1, 2}}, nil); err == nil {
		t.Error("expected an error for a missing sub-observation")
	}
	if err := b.SetInput([][]float64{{1, 2}, {3, 4}}, nil); err == nil {
		t.Error("expected an error for a sub-observation of the wrong " +
			"length")
	}
}
