// Package features derives the fixed-length descriptor vector shared by the
// training and serving paths. Extract is the only place descriptors are
// computed; anything that feeds the classifier goes through it.
package features

import (
	"fmt"
	"math"
)

// NumFeatures is the length of every descriptor vector.
const NumFeatures = 18

// Names is the frozen descriptor order. A standardization contract and a
// classifier are only valid for this exact order.
var Names = [NumFeatures]string{
	"mean",
	"std",
	"min",
	"max",
	"range",
	"slope",
	"skew",
	"kurtosis",
	"median",
	"rmssd",
	"mean_abs_change",
	"max_diff",
	"iqr",
	"variance",
	"baseline_shift",
	"energy",
	"zero_crossings",
	"pnn50",
}

var nameIndex = func() map[string]int {
	m := make(map[string]int, NumFeatures)
	for i, n := range Names {
		m[n] = i
	}
	return m
}()

// NameList returns Names as a fresh slice.
func NameList() []string {
	out := make([]string, NumFeatures)
	copy(out, Names[:])
	return out
}

// Vector holds one value per descriptor, in Names order.
type Vector [NumFeatures]float64

// Get returns the value of the named descriptor.
func (v Vector) Get(name string) (float64, error) {
	i, ok := nameIndex[name]
	if !ok {
		return 0, fmt.Errorf("unknown descriptor %q", name)
	}
	return v[i], nil
}

// Values returns the descriptors as a slice in Names order.
func (v Vector) Values() []float64 {
	out := make([]float64, NumFeatures)
	copy(out, v[:])
	return out
}

// Finite reports whether every descriptor is a finite number.
func (v Vector) Finite() bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

// FromValues builds a Vector from a slice that must have NumFeatures entries.
func FromValues(values []float64) (Vector, error) {
	var v Vector
	if len(values) != NumFeatures {
		return v, fmt.Errorf("descriptor count %d, want %d", len(values), NumFeatures)
	}
	copy(v[:], values)
	return v, nil
}
