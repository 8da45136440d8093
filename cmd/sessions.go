package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mealphase/mealphase/series"
	"github.com/mealphase/mealphase/series/healthkit"
	"github.com/mealphase/mealphase/series/shimmer"
)

// SessionsVersion is the only sessions.yaml layout this build reads.
const SessionsVersion = "1"

// DefaultStep is the grid spacing used when a session leaves step unset.
const DefaultStep = 10 * time.Second

// Source formats a session can be read from.
const (
	SourceHealthKit = "healthkit"
	SourceShimmer   = "shimmer"
)

// SessionConfig is the sessions.yaml structure. Relative paths inside it are
// resolved against the file's directory.
type SessionConfig struct {
	Version    string    `yaml:"version"`
	TimeLayout string    `yaml:"time_layout"`
	Sessions   []Session `yaml:"sessions"`
}

// Session is one recording to align: where to read it, where to write it and
// the window around the phase boundary.
type Session struct {
	Subject               string        `yaml:"subject"`
	Source                string        `yaml:"source"`
	QuantityType          string        `yaml:"quantity_type"` // healthkit only; defaults to heart rate
	Input                 string        `yaml:"input"`
	Output                string        `yaml:"output"`
	Start                 string        `yaml:"start"`
	PhaseBoundary         string        `yaml:"phase_boundary"`
	End                   string        `yaml:"end"`
	DurationAfterBoundary time.Duration `yaml:"duration_after_boundary"`
	Step                  time.Duration `yaml:"step"`
	Lookback              time.Duration `yaml:"lookback"`
}

// loadSessionConfig parses sessions.yaml with strict field checking.
func loadSessionConfig(path string) (*SessionConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading sessions file: %w", err)
	}
	var cfg SessionConfig
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parsing sessions YAML: %w", err)
	}
	if cfg.Version != SessionsVersion {
		return nil, fmt.Errorf("unsupported sessions version %q, want %q", cfg.Version, SessionsVersion)
	}
	if cfg.TimeLayout == "" {
		cfg.TimeLayout = series.TimeLayout
	}
	if len(cfg.Sessions) == 0 {
		return nil, fmt.Errorf("sessions file %s lists no sessions", path)
	}
	base := filepath.Dir(path)
	for i := range cfg.Sessions {
		s := &cfg.Sessions[i]
		s.Input = resolvePath(base, s.Input)
		s.Output = resolvePath(base, s.Output)
		if _, err := s.alignConfig(cfg.TimeLayout); err != nil {
			return nil, fmt.Errorf("session %d (%s): %w", i, s.Subject, err)
		}
	}
	return &cfg, nil
}

func resolvePath(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// alignConfig checks the session and derives its grid. Exactly one of End and
// DurationAfterBoundary must be set.
func (s *Session) alignConfig(layout string) (series.AlignConfig, error) {
	var cfg series.AlignConfig
	switch s.Source {
	case SourceHealthKit, SourceShimmer:
	default:
		return cfg, fmt.Errorf("unknown source %q (want %s or %s)", s.Source, SourceHealthKit, SourceShimmer)
	}
	if s.Input == "" || s.Output == "" {
		return cfg, fmt.Errorf("input and output are required")
	}
	if s.Lookback < 0 {
		return cfg, fmt.Errorf("lookback must not be negative, got %s", s.Lookback)
	}

	start, err := time.Parse(layout, s.Start)
	if err != nil {
		return cfg, fmt.Errorf("start: %w", err)
	}
	boundary, err := time.Parse(layout, s.PhaseBoundary)
	if err != nil {
		return cfg, fmt.Errorf("phase_boundary: %w", err)
	}
	var end time.Time
	switch {
	case s.End != "" && s.DurationAfterBoundary != 0:
		return cfg, fmt.Errorf("set either end or duration_after_boundary, not both")
	case s.End != "":
		if end, err = time.Parse(layout, s.End); err != nil {
			return cfg, fmt.Errorf("end: %w", err)
		}
	case s.DurationAfterBoundary > 0:
		end = boundary.Add(s.DurationAfterBoundary)
	default:
		return cfg, fmt.Errorf("one of end or a positive duration_after_boundary is required")
	}

	step := s.Step
	if step == 0 {
		step = DefaultStep
	}
	cfg = series.AlignConfig{Start: start, End: end, PhaseBoundary: boundary, Step: step}
	return cfg, cfg.Validate()
}

func (s *Session) readings() ([]series.Reading, error) {
	switch s.Source {
	case SourceHealthKit:
		qt := s.QuantityType
		if qt == "" {
			qt = healthkit.HeartRateType
		}
		return healthkit.ReadFile(s.Input, qt)
	case SourceShimmer:
		return shimmer.ReadFile(s.Input)
	default:
		return nil, fmt.Errorf("unknown source %q", s.Source)
	}
}

// alignResult summarizes one aligned session for logging.
type alignResult struct {
	Samples int
	Dropped int
	Points  int
}

// alignSession reads, stores, aligns and writes one session.
func alignSession(s *Session, layout string) (alignResult, error) {
	var res alignResult
	cfg, err := s.alignConfig(layout)
	if err != nil {
		return res, err
	}
	readings, err := s.readings()
	if err != nil {
		return res, err
	}
	store, err := series.NewStore(readings, cfg.Start.Add(-s.Lookback), cfg.End)
	if err != nil {
		return res, err
	}
	res.Samples, res.Dropped = store.Len(), store.Dropped()

	f, err := os.Create(s.Output)
	if err != nil {
		return res, fmt.Errorf("creating aligned CSV: %w", err)
	}
	sink := series.NewCSVSink(f, s.Subject)
	n, err := series.Align(store, cfg, sink)
	if err == nil {
		err = sink.Close()
	}
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("closing aligned CSV: %w", cerr)
	}
	res.Points = n
	return res, err
}
