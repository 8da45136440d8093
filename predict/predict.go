// Package predict is the inference entry point: a window of readings in, a
// phase label and its probability out. The server and the offline CLI both go
// through Predictor so there is exactly one serving path.
package predict

import (
	"errors"
	"fmt"

	"github.com/mealphase/mealphase/classifier"
	"github.com/mealphase/mealphase/contract"
	"github.com/mealphase/mealphase/features"
)

// ErrMalformedInput marks requests whose payload cannot be interpreted.
var ErrMalformedInput = errors.New("malformed input")

// Reading is one request sample. Timestamp is informational and never parsed;
// Valid is false when the caller supplied no heart rate for it.
type Reading struct {
	Timestamp string
	HeartRate float64
	Valid     bool
}

// Result is the outcome of one prediction.
type Result struct {
	Label       int
	Probability float64
	Samples     int
}

// Predictor holds the loaded artifacts. It is immutable after New and safe for
// concurrent use.
type Predictor struct {
	contract  *contract.Contract
	model     classifier.Classifier
	extractor features.Extractor
}

// New checks that the contract and the classifier agree before any request is
// served.
func New(c *contract.Contract, m classifier.Classifier) (*Predictor, error) {
	if c == nil || m == nil {
		return nil, fmt.Errorf("predictor needs both a contract and a classifier")
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validating contract: %w", err)
	}
	if m.NumFeatures() != c.Len() {
		return nil, fmt.Errorf("%w: classifier expects %d descriptors, contract has %d",
			contract.ErrContractMismatch, m.NumFeatures(), c.Len())
	}
	return &Predictor{contract: c, model: m, extractor: c.Extractor()}, nil
}

// Load reads both artifacts from disk and builds a Predictor.
func Load(contractPath, modelPath string) (*Predictor, error) {
	c, err := contract.Load(contractPath)
	if err != nil {
		return nil, err
	}
	m, err := classifier.Load(modelPath)
	if err != nil {
		return nil, err
	}
	return New(c, m)
}

// Contract returns the contract the predictor standardizes with.
func (p *Predictor) Contract() *contract.Contract { return p.contract }

// Predict classifies the readings in the order given. Absent readings are
// dropped; fewer than two present values, or a window whose descriptors are
// not all finite, is insufficient data. Readings are not re-sorted.
func (p *Predictor) Predict(readings []Reading) (Result, error) {
	window := make([]float64, 0, len(readings))
	for _, r := range readings {
		if r.Valid {
			window = append(window, r.HeartRate)
		}
	}
	v, err := p.extractor.Extract(window)
	if err != nil {
		return Result{}, err
	}
	if !v.Finite() {
		return Result{}, fmt.Errorf("%w: descriptors undefined for a window of %d values",
			features.ErrDegenerateWindow, len(window))
	}
	x, err := p.contract.Standardize(v)
	if err != nil {
		return Result{}, err
	}
	label, p1, err := classifier.Predict(p.model, x)
	if err != nil {
		return Result{}, fmt.Errorf("classifying: %w", err)
	}
	return Result{Label: label, Probability: p1, Samples: len(window)}, nil
}

// PredictValues is Predict over a plain sequence of present heart rates.
func (p *Predictor) PredictValues(values []float64) (Result, error) {
	readings := make([]Reading, len(values))
	for i, v := range values {
		readings[i] = Reading{HeartRate: v, Valid: true}
	}
	return p.Predict(readings)
}
