package features

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ErrInsufficientData is returned when a window holds fewer than two values.
// Callers must not substitute a default vector.
var ErrInsufficientData = errors.New("insufficient heart rate data")

// ErrDegenerateWindow is returned for a window with enough values whose
// descriptors are not all finite, as happens when the values do not vary.
var ErrDegenerateWindow = errors.New("heart rate window has no variation")

// MinWindow is the smallest window Extract accepts.
const MinWindow = 2

// DefaultPNN50Threshold is the successive-difference threshold, in beats per
// minute, that the pnn50 descriptor counts against.
const DefaultPNN50Threshold = 50.0

// Extractor computes descriptor vectors. The zero value is not usable; build
// one with DefaultExtractor or from a contract so training and serving share
// the same parameters.
type Extractor struct {
	PNN50Threshold float64
}

// DefaultExtractor returns the extractor with bpm-scale thresholds.
func DefaultExtractor() Extractor {
	return Extractor{PNN50Threshold: DefaultPNN50Threshold}
}

// Validate rejects thresholds that would make pnn50 meaningless.
func (e Extractor) Validate() error {
	if math.IsNaN(e.PNN50Threshold) || math.IsInf(e.PNN50Threshold, 0) || e.PNN50Threshold < 0 {
		return fmt.Errorf("pnn50 threshold must be a finite non-negative number, got %v", e.PNN50Threshold)
	}
	return nil
}

// Extract computes all descriptors over window, which must already be free of
// absent values and in temporal order. The result is bit-for-bit reproducible
// for a given input. Skew and kurtosis are NaN for a zero-variance window.
func (e Extractor) Extract(window []float64) (Vector, error) {
	var v Vector
	n := len(window)
	if n < MinWindow {
		return v, fmt.Errorf("window of %d values: %w", n, ErrInsufficientData)
	}

	mean, variance := stat.PopMeanVariance(window, nil)
	sorted := make([]float64, n)
	copy(sorted, window)
	sort.Float64s(sorted)
	median := percentileSorted(sorted, 50)
	minV, maxV := sorted[0], sorted[n-1]
	skew, kurtosis := shapeMoments(window)

	index := make([]float64, n)
	for i := range index {
		index[i] = float64(i)
	}
	_, slope := stat.LinearRegression(index, window, nil, false)

	d := Diff(window)
	var absSum, maxAbs float64
	over := 0
	for _, x := range d {
		a := math.Abs(x)
		absSum += a
		if a > maxAbs {
			maxAbs = a
		}
		if a > e.PNN50Threshold {
			over++
		}
	}
	m := float64(len(d))

	v[0] = mean
	v[1] = math.Sqrt(variance)
	v[2] = minV
	v[3] = maxV
	v[4] = maxV - minV
	v[5] = slope
	v[6] = skew
	v[7] = kurtosis
	v[8] = median
	v[9] = math.Sqrt(floats.Dot(d, d) / m)
	v[10] = absSum / m
	v[11] = maxAbs
	v[12] = percentileSorted(sorted, 75) - percentileSorted(sorted, 25)
	v[13] = variance
	v[14] = mean - median
	v[15] = floats.Dot(window, window)
	v[16] = float64(zeroCrossings(window, mean))
	v[17] = float64(over) / m
	return v, nil
}

// Extract runs the default extractor.
func Extract(window []float64) (Vector, error) {
	return DefaultExtractor().Extract(window)
}

// zeroCrossings counts consecutive pairs whose deviations from mean fall on
// different sides, with zero counted as non-negative.
func zeroCrossings(x []float64, mean float64) int {
	count := 0
	prevNeg := x[0]-mean < 0
	for _, v := range x[1:] {
		neg := v-mean < 0
		if neg != prevNeg {
			count++
		}
		prevNeg = neg
	}
	return count
}
