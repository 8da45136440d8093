// Package dataset turns aligned session CSVs into the per-phase descriptor
// table that a contract is fitted on and a classifier is trained against.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mealphase/mealphase/series"
)

// LabeledPoint is one row of an aligned session CSV. Valid is false when the
// heart_rate cell is empty.
type LabeledPoint struct {
	Subject   string
	Timestamp time.Time
	Value     float64
	Valid     bool
	Label     series.Label
}

// ReadLabeledFile opens path and reads its rows.
func ReadLabeledFile(path string) ([]LabeledPoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening aligned CSV: %w", err)
	}
	defer func() { _ = f.Close() }()
	points, err := ReadLabeled(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return points, nil
}

// ReadLabeled parses an aligned CSV. Columns are located by header name;
// subject_id is optional. Rows come back stable-sorted by timestamp.
func ReadLabeled(r io.Reader) ([]LabeledPoint, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.TrimSpace(name)] = i
	}
	for _, name := range []string{"timestamp", "heart_rate", "label"} {
		if _, ok := idx[name]; !ok {
			return nil, fmt.Errorf("aligned CSV missing column %q", name)
		}
	}
	subjectCol, hasSubject := idx["subject_id"]

	var points []LabeledPoint
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV row %d: %w", line, err)
		}
		p, err := parseLabeledRow(row, idx)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		if hasSubject {
			p.Subject = row[subjectCol]
		}
		points = append(points, p)
	}
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})
	return points, nil
}

func parseLabeledRow(row []string, idx map[string]int) (LabeledPoint, error) {
	var p LabeledPoint
	ts, err := time.Parse(series.TimeLayout, strings.TrimSpace(row[idx["timestamp"]]))
	if err != nil {
		return p, fmt.Errorf("timestamp: %w", err)
	}
	p.Timestamp = ts

	label, err := strconv.Atoi(strings.TrimSpace(row[idx["label"]]))
	if err != nil {
		return p, fmt.Errorf("label: %w", err)
	}
	if label != int(series.PreMeal) && label != int(series.PostMeal) {
		return p, fmt.Errorf("label must be 0 or 1, got %d", label)
	}
	p.Label = series.Label(label)

	if hr := strings.TrimSpace(row[idx["heart_rate"]]); hr != "" {
		v, err := strconv.ParseFloat(hr, 64)
		if err != nil {
			return p, fmt.Errorf("heart_rate: %w", err)
		}
		p.Value, p.Valid = v, !math.IsNaN(v)
	}
	return p, nil
}
