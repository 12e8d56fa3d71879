// Package spec describes the observation and action spaces that
// networks are built over.
package spec

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"
)

// Composite describes an ordered collection of observation sub-spaces.
// Each sub-space has a shape, and a raw observation is an ordered
// tuple of arrays, one per sub-space. Networks concatenate the
// flattened sub-observations along the feature dimension, so the
// total input width of a network is TotalDim().
//
// A Composite is immutable once constructed.
type Composite struct {
	shapes  []mat.Vector
	subDims []int
}

// NewComposite constructs a composite observation space from the
// shapes of its sub-spaces. Each shape must have at least one
// dimension, and every dimension must be a positive integer.
func NewComposite(shapes ...mat.Vector) (Composite, error) {
	if len(shapes) == 0 {
		return Composite{}, fmt.Errorf("newComposite: at least one " +
			"sub-space is required")
	}

	subDims := make([]int, len(shapes))
	for i, shape := range shapes {
		if shape.Len() == 0 {
			return Composite{}, fmt.Errorf("newComposite: sub-space %v has "+
				"an empty shape", i)
		}
		dim := 1
		for j := 0; j < shape.Len(); j++ {
			size := shape.AtVec(j)
			if size <= 0 || size != math.Trunc(size) {
				return Composite{}, fmt.Errorf("newComposite: sub-space %v "+
					"has illegal dimension \n\twant(positive integer) "+
					"\n\thave(%v)", i, size)
			}
			dim *= int(size)
		}
		subDims[i] = dim
	}

	return Composite{shapes: shapes, subDims: subDims}, nil
}

// NumSpaces returns the number of sub-spaces in the composite space.
func (c Composite) NumSpaces() int {
	return len(c.shapes)
}

// Shape returns the shape of sub-space i.
func (c Composite) Shape(i int) mat.Vector {
	return c.shapes[i]
}

// SubDim returns the flattened size of sub-space i.
func (c Composite) SubDim(i int) int {
	return c.subDims[i]
}

// SubDims returns the flattened size of each sub-space in order.
func (c Composite) SubDims() []int {
	dims := make([]int, len(c.subDims))
	copy(dims, c.subDims)
	return dims
}

// TotalDim returns the summed flattened size of all sub-spaces.
func (c Composite) TotalDim() int {
	total := 0
	for _, dim := range c.subDims {
		total += dim
	}
	return total
}

// Bounded describes a bounded continuous action space. Bounds are
// symmetric about zero in each dimension, and networks squash their
// actions into [-ActLimit(), ActLimit()], taking the scalar limit
// from the first bound component.
//
// A Bounded is immutable once constructed.
type Bounded struct {
	lower mat.Vector
	upper mat.Vector
}

// NewBounded constructs a bounded continuous action space from
// per-dimension lower and upper bounds. Bounds must be finite,
// symmetric about zero, and each lower bound must be below its upper
// bound.
func NewBounded(lower, upper mat.Vector) (Bounded, error) {
	if lower.Len() != upper.Len() {
		return Bounded{}, fmt.Errorf("newBounded: bound lengths differ "+
			"\n\twant(%v) \n\thave(%v)", lower.Len(), upper.Len())
	}
	if lower.Len() == 0 {
		return Bounded{}, fmt.Errorf("newBounded: action space must have " +
			"at least one dimension")
	}

	for i := 0; i < lower.Len(); i++ {
		low, high := lower.AtVec(i), upper.AtVec(i)
		if math.IsInf(low, 0) || math.IsInf(high, 0) || math.IsNaN(low) ||
			math.IsNaN(high) {
			return Bounded{}, fmt.Errorf("newBounded: bounds of dimension "+
				"%v are not finite", i)
		}
		if low >= high {
			return Bounded{}, fmt.Errorf("newBounded: lower bound of "+
				"dimension %v is not below its upper bound \n\tlower(%v) "+
				"\n\tupper(%v)", i, low, high)
		}
		if low != -high {
			return Bounded{}, fmt.Errorf("newBounded: bounds of dimension "+
				"%v are not symmetric \n\tlower(%v) \n\tupper(%v)", i, low,
				high)
		}
	}

	return Bounded{lower: lower, upper: upper}, nil
}

// Dim returns the dimensionality of the action space.
func (b Bounded) Dim() int {
	return b.upper.Len()
}

// ActLimit returns the scalar action limit, taken from the first
// upper bound component.
func (b Bounded) ActLimit() float64 {
	return b.upper.AtVec(0)
}

// Bounds returns the interval of legal values for action dimension i.
func (b Bounded) Bounds(i int) r1.Interval {
	return r1.Interval{Min: b.lower.AtVec(i), Max: b.upper.AtVec(i)}
}

// Contains returns whether the argument action lies within the bounds
// of the action space.
func (b Bounded) Contains(action []float64) bool {
	if len(action) != b.Dim() {
		return false
	}
	for i, a := range action {
		if a < b.lower.AtVec(i) || a > b.upper.AtVec(i) {
			return false
		}
	}
	return true
}
