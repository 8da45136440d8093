package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mealphase/mealphase/features"
	"github.com/mealphase/mealphase/series"
)

// SegmentColumns is the header of a segment table: the source tag, the phase
// label and then one column per descriptor in frozen order.
var SegmentColumns = append([]string{"source", "label"}, features.NameList()...)

// Segment is the descriptor vector of one phase of one session.
type Segment struct {
	Source string
	Label  series.Label
	Vector features.Vector
}

// Segments builds one segment per phase present in points, pre-meal first.
// Phases with fewer than two present values or with a zero-variance window
// are skipped and reported in warnings instead of failing the whole session.
func Segments(points []LabeledPoint, source string, ex features.Extractor) ([]Segment, []string, error) {
	if err := ex.Validate(); err != nil {
		return nil, nil, err
	}
	var segments []Segment
	var warnings []string
	for _, label := range []series.Label{series.PreMeal, series.PostMeal} {
		var window []float64
		seen := false
		for _, p := range points {
			if p.Label != label {
				continue
			}
			seen = true
			if p.Valid {
				window = append(window, p.Value)
			}
		}
		if !seen {
			continue
		}
		v, err := ex.Extract(window)
		if errors.Is(err, features.ErrInsufficientData) {
			warnings = append(warnings, fmt.Sprintf("%s label %d: %v", source, label, err))
			continue
		}
		if err != nil {
			return nil, nil, fmt.Errorf("%s label %d: %w", source, label, err)
		}
		if !v.Finite() {
			warnings = append(warnings, fmt.Sprintf("%s label %d: %v (%d values)", source, label, features.ErrDegenerateWindow, len(window)))
			continue
		}
		segments = append(segments, Segment{Source: source, Label: label, Vector: v})
	}
	return segments, warnings, nil
}

// Vectors returns the descriptor vectors of segs in order.
func Vectors(segs []Segment) []features.Vector {
	out := make([]features.Vector, len(segs))
	for i, s := range segs {
		out[i] = s.Vector
	}
	return out
}

// WriteSegments writes segs as a CSV table headed by SegmentColumns.
func WriteSegments(w io.Writer, segs []Segment) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(SegmentColumns); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}
	row := make([]string, len(SegmentColumns))
	for i, s := range segs {
		row[0] = s.Source
		row[1] = strconv.Itoa(int(s.Label))
		for j, x := range s.Vector {
			row[2+j] = strconv.FormatFloat(x, 'g', -1, 64)
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("writing CSV row %d: %w", i, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteSegmentsFile creates path and writes segs to it.
func WriteSegmentsFile(path string, segs []Segment) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating segment table: %w", err)
	}
	if err := WriteSegments(f, segs); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// ReadSegments parses a segment table. The descriptor columns must match the
// frozen order exactly.
func ReadSegments(r io.Reader) ([]Segment, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}
	if len(header) != len(SegmentColumns) {
		return nil, fmt.Errorf("segment table has %d columns, expected %d", len(header), len(SegmentColumns))
	}
	for i, name := range header {
		if strings.TrimSpace(name) != SegmentColumns[i] {
			return nil, fmt.Errorf("segment table column %d is %q, expected %q", i, name, SegmentColumns[i])
		}
	}

	var segs []Segment
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			return segs, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV row %d: %w", line, err)
		}
		s, err := parseSegmentRow(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		segs = append(segs, s)
	}
}

// ReadSegmentsFile opens path and parses its segment table.
func ReadSegmentsFile(path string) ([]Segment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening segment table: %w", err)
	}
	defer func() { _ = f.Close() }()
	return ReadSegments(f)
}

func parseSegmentRow(row []string) (Segment, error) {
	s := Segment{Source: row[0]}
	label, err := strconv.Atoi(strings.TrimSpace(row[1]))
	if err != nil {
		return s, fmt.Errorf("label: %w", err)
	}
	if label != int(series.PreMeal) && label != int(series.PostMeal) {
		return s, fmt.Errorf("label must be 0 or 1, got %d", label)
	}
	s.Label = series.Label(label)
	values := make([]float64, len(row)-2)
	for j, cell := range row[2:] {
		x, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
		if err != nil {
			return s, fmt.Errorf("%s: %w", features.Names[j], err)
		}
		values[j] = x
	}
	s.Vector, err = features.FromValues(values)
	return s, err
}
