// Package op provides extended Gorgonia graph operations.
//
// Adapted from aunum/G.ld on GitHub
package op

import (
	"math"

	G "gorgonia.org/gorgonia"
)

// Clip clips the value of a node
func Clip(value *G.Node, min, max float64) (retVal *G.Node, err error) {
	// Construct clipping nodes
	var minNode, maxNode *G.Node
	switch value.Dtype() {
	case G.Float32:
		minNode = G.NewScalar(
			value.Graph(),
			G.Float32,
			G.WithValue(float32(min)),
			G.WithName("clip_min"),
		)
		maxNode = G.NewScalar(
			value.Graph(),
			G.Float32,
			G.WithValue(float32(max)),
			G.WithName("clip_max"),
		)
	case G.Float64:
		minNode = G.NewScalar(
			value.Graph(),
			G.Float64,
			G.WithValue(min),
			G.WithName("clip_min"),
		)
		maxNode = G.NewScalar(
			value.Graph(),
			G.Float64,
			G.WithValue(max),
			G.WithName("clip_max"),
		)
	}

	// Check if its the min value. The boundary belongs to the min
	// mask so that a value exactly at the clamp maps to itself.
	minMask, err := G.Lte(value, minNode, true)
	if err != nil {
		return nil, err
	}
	minVal, err := G.HadamardProd(minNode, minMask)
	if err != nil {
		return nil, err
	}

	// Check if its the given value
	isMaskGt, err := G.Gt(value, minNode, true)
	if err != nil {
		return nil, err
	}
	isMaskLt, err := G.Lt(value, maxNode, true)
	if err != nil {
		return nil, err
	}
	isMask, err := G.HadamardProd(isMaskGt, isMaskLt)
	if err != nil {
		return nil, err
	}
	isVal, err := G.HadamardProd(value, isMask)
	if err != nil {
		return nil, err
	}

	// Check if its the max value
	maxMask, err := G.Gte(value, maxNode, true)
	if err != nil {
		return nil, err
	}
	maxVal, err := G.HadamardProd(maxNode, maxMask)
	if err != nil {
		return nil, err
	}
	return G.ReduceAdd(G.Nodes{minVal, isVal, maxVal})
}

// Softplus calculates ln(1 + exp(x)) elementwise in a numerically
// stable way. The naive composition overflows for large positive x;
// this uses the identity
//
//	softplus(x) = max(x, 0) + ln(1 + exp(-|x|))
//
// whose exponent argument is never positive.
func Softplus(x *G.Node) *G.Node {
	pos := G.Must(G.Rectify(x))
	negAbs := G.Must(G.Neg(G.Must(G.Abs(x))))
	return G.Must(G.Add(pos, G.Must(G.Log1p(G.Must(G.Exp(negAbs))))))
}

// GaussianLogPdf calculate the log of the probability density function
// of actions drawn from a diagonal Gaussian distribution with mean mean and
// standard deviation std.
//
// All arguments should be two-dimensional and of the same size m x n.
// For each argument, the rows (m) denote the number of sampled in the
// batch. For the mean and std, the columns (n) denote the main diagonal
// of the mean or standard deviation respectively in the diagonal Gaussian,
// for which the PDF of actions is calculated. For the actions parameter,
// the columns denote each dimension of the actions.
//
// For row j and column i, mean[i, j] and std[i, j] denote the mean and
// standard deviation respectively of the Gaussiasn distribution from
// which the j-th component of actions[i] was drawn.
func GaussianLogPdf(mean, std, actions *G.Node) *G.Node {
	graph := mean.Graph()
	if graph != std.Graph() || graph != actions.Graph() {
		panic("gaussianLogPdf: all nodes must share the same graph")
	}

	negativeHalf := G.NewConstant(-0.5)

	if std.Shape()[1] != 1 {
		// Multi-dimensional actions
		variance := G.Must(G.Square(std))
		dims := float64(mean.Shape()[1])
		term1 := G.NewConstant((-dims / 2.0) * math.Log(2*math.Pi))

		// ln det Σ = Σ ln σ², summed as logs rather than taking the
		// log of a product. Summing keeps the node a tensor for any
		// batch size, where slicing out single columns collapses a
		// batch of one to a scalar, and it cannot underflow when many
		// dimensions sit at the std floor.
		term2 := G.Must(G.Sum(G.Must(G.Log(variance)), 1))
		term2 = G.Must(G.HadamardProd(term2, negativeHalf))

		// Calculate (-1/2) * (A - μ)^T σ^(-1) (A - μ)
		// Since everything is stored as a vector, this boils down to a
		// bunch of Hadamard products, sums, and differences.
		diff := G.Must(G.Sub(actions, mean))
		exponent := G.Must(G.HadamardDiv(diff, variance))
		exponent = G.Must(G.HadamardProd(exponent, diff))
		exponent = G.Must(G.Sum(exponent, 1))
		exponent = G.Must(G.HadamardProd(exponent, negativeHalf))

		// Calculate the probability
		terms := G.Must(G.Add(term1, term2))
		logProb := G.Must(G.Add(exponent, terms))

		return logProb
	} else {
		// If actions are sinlge-dimensional, we can cut a few corners
		// to increase the computational efficiency
		two := G.NewConstant(2.0)
		exponent := G.Must(G.Sub(actions, mean))
		exponent = G.Must(G.HadamardDiv(exponent, std))
		exponent = G.Must(G.Pow(exponent, two))
		exponent = G.Must(G.HadamardProd(negativeHalf, exponent))

		term2 := G.Must(G.Log(std))
		term3 := G.NewConstant(math.Log(math.Pow(2*math.Pi, 0.5)))

		terms := G.Must(G.Add(term2, term3))
		logProb := G.Must(G.Sub(exponent, terms))
		logProb = G.Must(G.Ravel(logProb))

		return logProb
	}
}
