// Package contract holds the frozen feature contract: the descriptor order,
// the per-descriptor standardization parameters learned from the training
// population, and the extractor parameters they were learned with.
package contract

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/mealphase/mealphase/features"
)

// SchemaVersion identifies the serialized contract layout.
const SchemaVersion = "1"

var (
	// ErrContractMismatch means a vector, a classifier or a loaded contract does
	// not agree with the frozen descriptor order or count.
	ErrContractMismatch = errors.New("feature contract mismatch")
	// ErrArtifactLoad means a contract or model artifact is absent or corrupt.
	ErrArtifactLoad = errors.New("artifact load failed")
)

// Contract is immutable once built or loaded.
type Contract struct {
	Version        string    `yaml:"version"`
	Features       []string  `yaml:"features"`
	Mean           []float64 `yaml:"mean"`
	Scale          []float64 `yaml:"scale"`
	PNN50Threshold float64   `yaml:"pnn50_threshold"`
	Samples        int       `yaml:"samples"`
}

// Fit learns per-descriptor mean and population standard deviation from the
// training vectors. A zero deviation becomes a scale of 1 so constant
// descriptors standardize to zero instead of dividing by zero.
func Fit(vectors []features.Vector, ex features.Extractor) (*Contract, error) {
	if len(vectors) == 0 {
		return nil, fmt.Errorf("fitting contract: no training vectors")
	}
	if err := ex.Validate(); err != nil {
		return nil, fmt.Errorf("fitting contract: %w", err)
	}
	for i, v := range vectors {
		if !v.Finite() {
			return nil, fmt.Errorf("fitting contract: vector %d has non-finite descriptors", i)
		}
	}

	c := &Contract{
		Version:        SchemaVersion,
		Features:       features.NameList(),
		Mean:           make([]float64, features.NumFeatures),
		Scale:          make([]float64, features.NumFeatures),
		PNN50Threshold: ex.PNN50Threshold,
		Samples:        len(vectors),
	}
	column := make([]float64, len(vectors))
	for j := 0; j < features.NumFeatures; j++ {
		for i, v := range vectors {
			column[i] = v[j]
		}
		mean, variance := stat.PopMeanVariance(column, nil)
		scale := math.Sqrt(variance)
		if scale == 0 {
			scale = 1
		}
		c.Mean[j] = mean
		c.Scale[j] = scale
	}
	return c, nil
}

// Validate checks that the contract matches the frozen descriptor order exactly
// and that every standardization parameter is usable.
func (c *Contract) Validate() error {
	if c.Version != SchemaVersion {
		return fmt.Errorf("unsupported contract version %q, want %q", c.Version, SchemaVersion)
	}
	if len(c.Features) != features.NumFeatures {
		return fmt.Errorf("%w: %d descriptors, want %d", ErrContractMismatch, len(c.Features), features.NumFeatures)
	}
	for i, name := range c.Features {
		if name != features.Names[i] {
			return fmt.Errorf("%w: descriptor %d is %q, want %q", ErrContractMismatch, i, name, features.Names[i])
		}
	}
	if len(c.Mean) != len(c.Features) || len(c.Scale) != len(c.Features) {
		return fmt.Errorf("%w: %d means and %d scales for %d descriptors",
			ErrContractMismatch, len(c.Mean), len(c.Scale), len(c.Features))
	}
	for i := range c.Features {
		if math.IsNaN(c.Mean[i]) || math.IsInf(c.Mean[i], 0) {
			return fmt.Errorf("mean of %q must be finite, got %v", c.Features[i], c.Mean[i])
		}
		s := c.Scale[i]
		if math.IsNaN(s) || math.IsInf(s, 0) || s == 0 {
			return fmt.Errorf("scale of %q must be finite and non-zero, got %v", c.Features[i], s)
		}
	}
	return c.Extractor().Validate()
}

// Extractor returns the extractor the contract was fitted with.
func (c *Contract) Extractor() features.Extractor {
	return features.Extractor{PNN50Threshold: c.PNN50Threshold}
}

// Len returns the number of descriptors the contract standardizes.
func (c *Contract) Len() int { return len(c.Features) }

// Standardize returns (v[i] - mean[i]) / scale[i] in contract order.
func (c *Contract) Standardize(v features.Vector) ([]float64, error) {
	if len(c.Mean) != features.NumFeatures || len(c.Scale) != features.NumFeatures {
		return nil, fmt.Errorf("%w: contract holds %d parameters, vector has %d",
			ErrContractMismatch, len(c.Mean), features.NumFeatures)
	}
	z := make([]float64, features.NumFeatures)
	for i, x := range v {
		z[i] = (x - c.Mean[i]) / c.Scale[i]
	}
	return z, nil
}

// Inverse maps standardized values back to descriptor space.
func (c *Contract) Inverse(z []float64) (features.Vector, error) {
	var v features.Vector
	if len(z) != features.NumFeatures || len(c.Mean) != features.NumFeatures || len(c.Scale) != features.NumFeatures {
		return v, fmt.Errorf("%w: %d standardized values, want %d", ErrContractMismatch, len(z), features.NumFeatures)
	}
	for i, x := range z {
		v[i] = x*c.Scale[i] + c.Mean[i]
	}
	return v, nil
}
