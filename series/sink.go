package series

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// AlignedColumns is the header of an aligned session CSV.
var AlignedColumns = []string{"subject_id", "timestamp", "heart_rate", "label"}

// CSVSink writes grid points as aligned CSV rows as they arrive.
type CSVSink struct {
	subject string
	w       *csv.Writer
	wrote   bool
}

// NewCSVSink returns a sink that tags every row with subject.
func NewCSVSink(w io.Writer, subject string) *CSVSink {
	return &CSVSink{subject: subject, w: csv.NewWriter(w)}
}

// Write appends one row, writing the header first if needed.
func (s *CSVSink) Write(gp GridPoint) error {
	if err := s.header(); err != nil {
		return err
	}
	row := []string{
		s.subject,
		gp.Timestamp.Format(TimeLayout),
		strconv.FormatFloat(gp.Value, 'f', -1, 64),
		strconv.Itoa(int(gp.Label)),
	}
	if err := s.w.Write(row); err != nil {
		return fmt.Errorf("writing CSV row: %w", err)
	}
	return nil
}

// Close writes the header if no rows were emitted and flushes buffered rows.
func (s *CSVSink) Close() error {
	if err := s.header(); err != nil {
		return err
	}
	s.w.Flush()
	return s.w.Error()
}

func (s *CSVSink) header() error {
	if s.wrote {
		return nil
	}
	s.wrote = true
	if err := s.w.Write(AlignedColumns); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}
	return nil
}
