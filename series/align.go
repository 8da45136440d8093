package series

import (
	"fmt"
	"time"
)

// Label is the binary phase label attached to each grid point.
type Label int

const (
	// PreMeal marks grid points strictly before the phase boundary.
	PreMeal Label = 0
	// PostMeal marks grid points at or after the phase boundary.
	PostMeal Label = 1
)

// GridPoint is one emitted, evenly spaced sample holding the last known value.
type GridPoint struct {
	Timestamp time.Time
	Value     float64
	Label     Label
}

// AlignConfig bounds the grid walk. All fields are required.
type AlignConfig struct {
	Start         time.Time
	End           time.Time
	PhaseBoundary time.Time
	Step          time.Duration
}

// Validate checks Step > 0 and Start <= PhaseBoundary <= End.
func (c AlignConfig) Validate() error {
	if c.Step <= 0 {
		return fmt.Errorf("align step must be positive, got %s", c.Step)
	}
	if c.End.Before(c.Start) {
		return fmt.Errorf("align end %s is before start %s", c.End.Format(TimeLayout), c.Start.Format(TimeLayout))
	}
	if c.PhaseBoundary.Before(c.Start) || c.PhaseBoundary.After(c.End) {
		return fmt.Errorf("phase boundary %s outside [%s, %s]", c.PhaseBoundary.Format(TimeLayout),
			c.Start.Format(TimeLayout), c.End.Format(TimeLayout))
	}
	return nil
}

// LabelAt returns the phase label for a grid timestamp. It depends only on the
// timestamp, never on data availability.
func (c AlignConfig) LabelAt(ts time.Time) Label {
	if ts.Before(c.PhaseBoundary) {
		return PreMeal
	}
	return PostMeal
}

// Aligner walks the grid lazily with last-value-held resampling.
// Not safe for concurrent use.
type Aligner struct {
	store   *Store
	cfg     AlignConfig
	index   int64 // grid index of the next candidate point
	cursor  int
	held    float64
	hasHeld bool
	done    bool
}

// NewAligner validates cfg and positions the walk at cfg.Start.
func NewAligner(store *Store, cfg AlignConfig) (*Aligner, error) {
	if store == nil {
		return nil, fmt.Errorf("nil store")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Aligner{store: store, cfg: cfg}, nil
}

// Next returns the next emitted grid point. Points before the first observed
// sample are suppressed. ok is false once the grid passes cfg.End.
func (a *Aligner) Next() (gp GridPoint, ok bool) {
	for !a.done {
		current := a.cfg.Start.Add(time.Duration(a.index) * a.cfg.Step)
		if current.After(a.cfg.End) {
			a.done = true
			break
		}
		a.index++

		for a.cursor < a.store.Len() {
			o := a.store.At(a.cursor)
			if o.Timestamp.After(current) {
				break
			}
			a.held = o.Value
			a.hasHeld = true
			a.cursor++
		}
		if !a.hasHeld {
			continue
		}
		return GridPoint{Timestamp: current, Value: a.held, Label: a.cfg.LabelAt(current)}, true
	}
	return GridPoint{}, false
}

// Sink receives grid points in ascending timestamp order.
type Sink interface {
	Write(GridPoint) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(GridPoint) error

// Write calls f(gp).
func (f SinkFunc) Write(gp GridPoint) error { return f(gp) }

// Align streams every emitted grid point to sink and returns how many were written.
func Align(store *Store, cfg AlignConfig, sink Sink) (int, error) {
	a, err := NewAligner(store, cfg)
	if err != nil {
		return 0, err
	}
	n := 0
	for {
		gp, ok := a.Next()
		if !ok {
			return n, nil
		}
		if err := sink.Write(gp); err != nil {
			return n, fmt.Errorf("writing grid point %s: %w", gp.Timestamp.Format(TimeLayout), err)
		}
		n++
	}
}

// AlignAll collects the whole grid in memory. Intended for tests and short sessions.
func AlignAll(store *Store, cfg AlignConfig) ([]GridPoint, error) {
	var out []GridPoint
	_, err := Align(store, cfg, SinkFunc(func(gp GridPoint) error {
		out = append(out, gp)
		return nil
	}))
	return out, err
}
