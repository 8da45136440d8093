// Package healthkit reads quantity samples from an Apple Health export.xml.
package healthkit

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/mealphase/mealphase/series"
)

// HeartRateType is the quantity type identifier for heart-rate records.
const HeartRateType = "HKQuantityTypeIdentifierHeartRate"

// DateLayout is the layout of startDate attributes in an export.
const DateLayout = "2006-01-02 15:04:05 -0700"

// ReadFile opens path and reads every record of the given quantity type.
func ReadFile(path, quantityType string) ([]series.Reading, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening health export: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Read(f, quantityType)
}

// Read streams the export and returns one reading per matching Record element,
// in document order. Timestamps keep their wall-clock fields and drop the UTC
// offset, so they compare directly with session bounds written in local time.
// A record whose value does not parse is returned as an absent reading.
func Read(r io.Reader, quantityType string) ([]series.Reading, error) {
	dec := xml.NewDecoder(r)
	var readings []series.Reading
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return readings, nil
		}
		if err != nil {
			return nil, fmt.Errorf("decoding health export: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "Record" {
			continue
		}
		if attr(start, "type") != quantityType {
			continue
		}
		reading, err := parseRecord(start)
		if err != nil {
			line, _ := dec.InputPos()
			return nil, fmt.Errorf("record at line %d: %w", line, err)
		}
		readings = append(readings, reading)
	}
}

func parseRecord(start xml.StartElement) (series.Reading, error) {
	raw := attr(start, "startDate")
	ts, err := time.Parse(DateLayout, raw)
	if err != nil {
		return series.Reading{}, fmt.Errorf("parsing startDate %q: %w", raw, err)
	}
	reading := series.Reading{Timestamp: WallClock(ts)}
	if v, err := strconv.ParseFloat(attr(start, "value"), 64); err == nil {
		reading.Value = v
		reading.Valid = true
	}
	return reading, nil
}

// WallClock re-expresses t's wall-clock fields in UTC, discarding its offset.
func WallClock(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

func attr(start xml.StartElement, name string) string {
	for _, a := range start.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}
