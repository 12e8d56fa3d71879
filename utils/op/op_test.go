package op

import (
	"math"
	"testing"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

const tolerance float64 = 1e-8

func TestClip(t *testing.T) {
	g := G.NewGraph()
	in := G.NewVector(g, tensor.Float64, G.WithShape(7),
		G.WithName("in"), G.WithInit(G.Zeroes()))

	clipped, err := Clip(in, -20, 2)
	if err != nil {
		t.Fatalf("could not clip node: %v", err)
	}
	var clippedVal G.Value
	G.Read(clipped, &clippedVal)

	vm := G.NewTapeMachine(g)
	defer vm.Close()

	// Values exactly at a clamp bound must map to themselves, not
	// fall through the masks
	backing := []float64{-100, -20, -19.5, 0, 1.9, 2, 41}
	err = G.Let(in, tensor.New(tensor.WithBacking(backing),
		tensor.WithShape(7)))
	if err != nil {
		t.Fatalf("could not set input: %v", err)
	}
	if err := vm.RunAll(); err != nil {
		t.Fatalf("could not run VM: %v", err)
	}

	expected := []float64{-20, -20, -19.5, 0, 1.9, 2, 2}
	out := clippedVal.Data().([]float64)
	for i := range expected {
		if math.Abs(out[i]-expected[i]) > tolerance {
			t.Errorf("wrong clipped value at index %v: want(%v) have(%v)",
				i, expected[i], out[i])
		}
	}
}

func TestSoftplus(t *testing.T) {
	g := G.NewGraph()
	in := G.NewVector(g, tensor.Float64, G.WithShape(5),
		G.WithName("in"), G.WithInit(G.Zeroes()))

	sp := Softplus(in)
	var spVal G.Value
	G.Read(sp, &spVal)

	vm := G.NewTapeMachine(g)
	defer vm.Close()

	// The last two inputs overflow or underflow a naive
	// ln(1 + exp(x)) composition
	backing := []float64{-5, 0, 5, 800, -800}
	err := G.Let(in, tensor.New(tensor.WithBacking(backing),
		tensor.WithShape(5)))
	if err != nil {
		t.Fatalf("could not set input: %v", err)
	}
	if err := vm.RunAll(); err != nil {
		t.Fatalf("could not run VM: %v", err)
	}

	expected := []float64{
		math.Log1p(math.Exp(-5)),
		math.Ln2,
		5 + math.Log1p(math.Exp(-5)),
		800,
		0,
	}
	out := spVal.Data().([]float64)
	for i := range expected {
		if math.Abs(out[i]-expected[i]) > tolerance {
			t.Errorf("wrong softplus value at index %v: want(%v) have(%v)",
				i, expected[i], out[i])
		}
		if math.IsInf(out[i], 0) || math.IsNaN(out[i]) {
			t.Errorf("softplus value at index %v is not finite: %v", i,
				out[i])
		}
	}
}

// logProbFloats extracts a computed log probability value as a flat
// slice.
func logProbFloats(t *testing.T, v G.Value) []float64 {
	t.Helper()
	switch data := v.Data().(type) {
	case []float64:
		out := make([]float64, len(data))
		copy(out, data)
		return out
	case float64:
		return []float64{data}
	default:
		t.Fatalf("unexpected log probability type %T", data)
		return nil
	}
}

// TestGaussianLogPdf checks the multi-dimensional branch with a batch
// of one, the single-sample shape a rollout policy runs with.
func TestGaussianLogPdf(t *testing.T) {
	g := G.NewGraph()
	mean := G.NewMatrix(g, tensor.Float64, G.WithShape(1, 2),
		G.WithName("mean"), G.WithInit(G.Zeroes()))
	std := G.NewMatrix(g, tensor.Float64, G.WithShape(1, 2),
		G.WithName("std"), G.WithInit(G.Ones()))
	actions := G.NewMatrix(g, tensor.Float64, G.WithShape(1, 2),
		G.WithName("actions"), G.WithInit(G.Zeroes()))

	logProb := GaussianLogPdf(mean, std, actions)
	var logProbVal G.Value
	G.Read(logProb, &logProbVal)

	vm := G.NewTapeMachine(g)
	defer vm.Close()

	run := func(m, s, a []float64) float64 {
		t.Helper()
		let := func(node *G.Node, backing []float64) {
			err := G.Let(node, tensor.New(tensor.WithBacking(backing),
				tensor.WithShape(1, 2)))
			if err != nil {
				t.Fatalf("could not set input: %v", err)
			}
		}
		let(mean, m)
		let(std, s)
		let(actions, a)
		if err := vm.RunAll(); err != nil {
			t.Fatalf("could not run VM: %v", err)
		}
		defer vm.Reset()
		return logProbFloats(t, logProbVal)[0]
	}

	// The density of a 2D standard normal at its mean is 1 / (2π)
	expected := -math.Log(2 * math.Pi)
	out := run([]float64{0, 0}, []float64{1, 1}, []float64{0, 0})
	if math.Abs(out-expected) > tolerance {
		t.Errorf("wrong log probability: want(%v) have(%v)", expected, out)
	}

	// With std (2, 1/2) the log determinant terms cancel and the
	// exponent is -((1/2)² + 2²) / 2
	expected = -math.Log(2*math.Pi) - 2.125
	out = run([]float64{0, 0}, []float64{2, 0.5}, []float64{1, -1})
	if math.Abs(out-expected) > tolerance {
		t.Errorf("wrong log probability: want(%v) have(%v)", expected, out)
	}
}

func TestGaussianLogPdfBatch(t *testing.T) {
	g := G.NewGraph()
	mean := G.NewMatrix(g, tensor.Float64, G.WithShape(2, 2),
		G.WithName("mean"), G.WithInit(G.Zeroes()))
	std := G.NewMatrix(g, tensor.Float64, G.WithShape(2, 2),
		G.WithName("std"), G.WithInit(G.Ones()))
	actions := G.NewMatrix(g, tensor.Float64, G.WithShape(2, 2),
		G.WithName("actions"), G.WithInit(G.Zeroes()))

	logProb := GaussianLogPdf(mean, std, actions)
	var logProbVal G.Value
	G.Read(logProb, &logProbVal)

	vm := G.NewTapeMachine(g)
	defer vm.Close()

	err := G.Let(std, tensor.New(
		tensor.WithBacking([]float64{1, 1, 2, 0.5}),
		tensor.WithShape(2, 2)))
	if err != nil {
		t.Fatalf("could not set std: %v", err)
	}
	err = G.Let(actions, tensor.New(
		tensor.WithBacking([]float64{0, 0, 1, -1}),
		tensor.WithShape(2, 2)))
	if err != nil {
		t.Fatalf("could not set actions: %v", err)
	}
	if err := vm.RunAll(); err != nil {
		t.Fatalf("could not run VM: %v", err)
	}

	expected := []float64{
		-math.Log(2 * math.Pi),
		-math.Log(2*math.Pi) - 2.125,
	}
	out := logProbFloats(t, logProbVal)
	if len(out) != 2 {
		t.Fatalf("wrong number of log probabilities: want(2) have(%v)",
			len(out))
	}
	for i := range expected {
		if math.Abs(out[i]-expected[i]) > tolerance {
			t.Errorf("wrong log probability for sample %v: want(%v) "+
				"have(%v)", i, expected[i], out[i])
		}
	}
}
