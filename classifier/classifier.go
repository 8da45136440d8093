// Package classifier evaluates a pretrained soft-voting ensemble over
// standardized descriptor vectors. Training happens elsewhere; this package
// only loads the exported artifact and applies it.
package classifier

import (
	"errors"
	"fmt"
	"math"
)

// ErrShapeMismatch is returned when an input's length differs from the arity
// the model was trained with.
var ErrShapeMismatch = errors.New("input shape mismatch")

// Classifier returns class probabilities [p0, p1] for one input row.
// Implementations are immutable and safe for concurrent use.
type Classifier interface {
	NumFeatures() int
	PredictProba(x []float64) ([2]float64, error)
}

// Predict returns the most probable class, preferring 0 on a tie, together
// with the probability of class 1.
func Predict(c Classifier, x []float64) (label int, p1 float64, err error) {
	proba, err := c.PredictProba(x)
	if err != nil {
		return 0, 0, err
	}
	if proba[1] > proba[0] {
		return 1, proba[1], nil
	}
	return 0, proba[1], nil
}

func checkShape(want int, x []float64) error {
	if len(x) != want {
		return fmt.Errorf("%w: got %d values, model expects %d", ErrShapeMismatch, len(x), want)
	}
	return nil
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}
