package features

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Percentile returns the p-th percentile (0..100) of data using linear
// interpolation between closest ranks, rank = p/100 * (n-1). data is not modified.
func Percentile(data []float64, p float64) float64 {
	n := len(data)
	if n == 0 {
		return math.NaN()
	}
	sorted := make([]float64, n)
	copy(sorted, data)
	sort.Float64s(sorted)
	return percentileSorted(sorted, p)
}

func percentileSorted(sorted []float64, p float64) float64 {
	n := len(sorted)
	rank := p / 100.0 * float64(n-1)
	lowerIdx := int(math.Floor(rank))
	upperIdx := int(math.Ceil(rank))
	if lowerIdx < 0 {
		return sorted[0]
	}
	if upperIdx >= n {
		return sorted[n-1]
	}
	if lowerIdx == upperIdx {
		return sorted[lowerIdx]
	}
	lowerVal, upperVal := sorted[lowerIdx], sorted[upperIdx]
	return lowerVal + (upperVal-lowerVal)*(rank-float64(lowerIdx))
}

// Diff returns the first-difference series x[i+1]-x[i].
func Diff(x []float64) []float64 {
	if len(x) < 2 {
		return nil
	}
	d := make([]float64, len(x)-1)
	for i := 1; i < len(x); i++ {
		d[i-1] = x[i] - x[i-1]
	}
	return d
}

// momentResolution is the decimal resolution of float64 (1e-15), below which a
// second moment is treated as zero.
const momentResolution = 1e-15

// shapeMoments returns the biased Fisher-Pearson skewness and the excess
// kurtosis of x. NaN entries are omitted. Both are NaN when fewer than one
// value remains or when the second central moment is within float64 decimal
// resolution of zero relative to the mean.
func shapeMoments(x []float64) (skew, kurtosis float64) {
	clean := x
	for _, v := range x {
		if math.IsNaN(v) {
			clean = make([]float64, 0, len(x))
			for _, w := range x {
				if !math.IsNaN(w) {
					clean = append(clean, w)
				}
			}
			break
		}
	}
	if len(clean) == 0 {
		return math.NaN(), math.NaN()
	}

	mean := stat.Mean(clean, nil)
	m2 := stat.Moment(2, clean, nil)
	if m2 <= (momentResolution*mean)*(momentResolution*mean) {
		return math.NaN(), math.NaN()
	}
	m3 := stat.Moment(3, clean, nil)
	m4 := stat.Moment(4, clean, nil)
	return m3 / math.Pow(m2, 1.5), m4/(m2*m2) - 3
}
