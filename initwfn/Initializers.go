package initwfn

import (
	"fmt"

	G "gorgonia.org/gorgonia"
)

// NewGlorotU returns a new Glorot uniform weight initializer
func NewGlorotU(gain float64) (*InitWFn, error) {
	config := GlorotUConfig{
		Gain: gain,
	}

	return newInitWFn(config)
}

// GlorotUConfig implements a configuration of the Glorot uniform
// weight initialization algorithm
type GlorotUConfig struct {
	Gain float64
}

// Type returns the type of the InitWFn that the Config describes
func (g GlorotUConfig) Type() Type {
	return GlorotU
}

// Create returns the InitWFn that the Config describes
func (g GlorotUConfig) Create() G.InitWFn {
	return G.GlorotU(g.Gain)
}

// String implements the fmt.Stringer interface
func (g GlorotUConfig) String() string {
	return fmt.Sprintf("Gain: %v", g.Gain)
}

// NewGlorotN returns a new Glorot normal weight initializer
func NewGlorotN(gain float64) (*InitWFn, error) {
	config := GlorotNConfig{
		Gain: gain,
	}

	return newInitWFn(config)
}

// GlorotNConfig implements a configuration of the Glorot normal
// weight initialization algorithm
type GlorotNConfig struct {
	Gain float64
}

// Type returns the type of the InitWFn that the Config describes
func (g GlorotNConfig) Type() Type {
	return GlorotN
}

// Create returns the InitWFn that the Config describes
func (g GlorotNConfig) Create() G.InitWFn {
	return G.GlorotN(g.Gain)
}

// String implements the fmt.Stringer interface
func (g GlorotNConfig) String() string {
	return fmt.Sprintf("Gain: %v", g.Gain)
}

// NewHeU returns a new He uniform weight initializer
func NewHeU(gain float64) (*InitWFn, error) {
	config := HeUConfig{
		Gain: gain,
	}

	return newInitWFn(config)
}

// HeUConfig implements a configuration of the He uniform weight
// initialization algorithm
type HeUConfig struct {
	Gain float64
}

// Type returns the type of the InitWFn that the Config describes
func (h HeUConfig) Type() Type {
	return HeU
}

// Create returns the InitWFn that the Config describes
func (h HeUConfig) Create() G.InitWFn {
	return G.HeU(h.Gain)
}

// String implements the fmt.Stringer interface
func (h HeUConfig) String() string {
	return fmt.Sprintf("Gain: %v", h.Gain)
}

// NewHeN returns a new He normal weight initializer
func NewHeN(gain float64) (*InitWFn, error) {
	config := HeNConfig{
		Gain: gain,
	}

	return newInitWFn(config)
}

// HeNConfig implements a configuration of the He normal weight
// initialization algorithm
type HeNConfig struct {
	Gain float64
}

// Type returns the type of the InitWFn that the Config describes
func (h HeNConfig) Type() Type {
	return HeN
}

// Create returns the InitWFn that the Config describes
func (h HeNConfig) Create() G.InitWFn {
	return G.HeN(h.Gain)
}

// String implements the fmt.Stringer interface
func (h HeNConfig) String() string {
	return fmt.Sprintf("Gain: %v", h.Gain)
}

// NewZeroes returns a new initializer that fills weights with zeros
func NewZeroes() (*InitWFn, error) {
	return newInitWFn(ZeroesConfig{})
}

// ZeroesConfig implements a configuration of weight initialization
// which sets all weights to zero
type ZeroesConfig struct{}

// Type returns the type of the InitWFn that the Config describes
func (z ZeroesConfig) Type() Type {
	return Zeroes
}

// Create returns the InitWFn that the Config describes
func (z ZeroesConfig) Create() G.InitWFn {
	return G.Zeroes()
}

// String implements the fmt.Stringer interface
func (z ZeroesConfig) String() string {
	return "Zeroes"
}

// NewOnes returns a new initializer that fills weights with ones
func NewOnes() (*InitWFn, error) {
	return newInitWFn(OnesConfig{})
}

// OnesConfig implements a configuration of weight initialization
// which sets all weights to one
type OnesConfig struct{}

// Type returns the type of the InitWFn that the Config describes
func (o OnesConfig) Type() Type {
	return Ones
}

// Create returns the InitWFn that the Config describes
func (o OnesConfig) Create() G.InitWFn {
	return G.Ones()
}

// String implements the fmt.Stringer interface
func (o OnesConfig) String() string {
	return "Ones"
}

// NewConstant returns a new initializer that fills weights with a
// constant value
func NewConstant(value float64) (*InitWFn, error) {
	config := ConstantConfig{
		Value: value,
	}

	return newInitWFn(config)
}

// ConstantConfig implements a configuration of weight initialization
// which sets all weights to a constant value
type ConstantConfig struct {
	Value float64
}

// Type returns the type of the InitWFn that the Config describes
func (c ConstantConfig) Type() Type {
	return Constant
}

// Create returns the InitWFn that the Config describes
func (c ConstantConfig) Create() G.InitWFn {
	return G.ValuesOf(c.Value)
}

// String implements the fmt.Stringer interface
func (c ConstantConfig) String() string {
	return fmt.Sprintf("Value: %v", c.Value)
}

// NewUniform returns a new initializer that draws weights from a
// uniform distribution on [low, high)
func NewUniform(low, high float64) (*InitWFn, error) {
	if low >= high {
		return nil, fmt.Errorf("newUniform: low must be less than high")
	}
	config := UniformConfig{
		Low:  low,
		High: high,
	}

	return newInitWFn(config)
}

// UniformConfig implements a configuration of uniform random weight
// initialization
type UniformConfig struct {
	Low  float64
	High float64
}

// Type returns the type of the InitWFn that the Config describes
func (u UniformConfig) Type() Type {
	return Uniform
}

// Create returns the InitWFn that the Config describes
func (u UniformConfig) Create() G.InitWFn {
	return G.Uniform(u.Low, u.High)
}

// String implements the fmt.Stringer interface
func (u UniformConfig) String() string {
	return fmt.Sprintf("Low: %v, High: %v", u.Low, u.High)
}

// NewGaussian returns a new initializer that draws weights from a
// Gaussian distribution
func NewGaussian(mean, stdDev float64) (*InitWFn, error) {
	if stdDev < 0 {
		return nil, fmt.Errorf("newGaussian: stdDev must be non-negative")
	}
	config := GaussianConfig{
		Mean:   mean,
		StdDev: stdDev,
	}

	return newInitWFn(config)
}

// GaussianConfig implements a configuration of Gaussian random weight
// initialization
type GaussianConfig struct {
	Mean   float64
	StdDev float64
}

// Type returns the type of the InitWFn that the Config describes
func (g GaussianConfig) Type() Type {
	return Gaussian
}

// Create returns the InitWFn that the Config describes
func (g GaussianConfig) Create() G.InitWFn {
	return G.Gaussian(g.Mean, g.StdDev)
}

// String implements the fmt.Stringer interface
func (g GaussianConfig) String() string {
	return fmt.Sprintf("Mean: %v, StdDev: %v", g.Mean, g.StdDev)
}
