// Package shimmer reads heart-rate samples from a wearable sensor session log.
//
// A log is a CSV with the columns sensor_timestamp, system_timestamp,
// heart_rate_raw, heart_rate_calibrated, gsr_raw and gsr_calibrated. Missing
// channels are written as "None" or left empty.
package shimmer

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mealphase/mealphase/series"
)

// Columns is the header of a sensor session log.
var Columns = []string{
	"sensor_timestamp", "system_timestamp", "heart_rate_raw",
	"heart_rate_calibrated", "gsr_raw", "gsr_calibrated",
}

// FullScaleBPM is the heart rate reported at the top of the 10-bit ADC range.
const FullScaleBPM = 200.0

// CalibrateHeartRate maps a raw 10-bit ADC reading to beats per minute.
func CalibrateHeartRate(raw float64) float64 {
	return raw / 1023.0 * FullScaleBPM
}

// ReadFile opens path and reads its heart-rate samples.
func ReadFile(path string) ([]series.Reading, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening sensor log: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Read(f)
}

// Read returns one reading per row, timestamped by the host clock. The
// calibrated channel is preferred; when it is missing but the raw channel is
// present the raw value is calibrated here. Rows with neither are absent.
func Read(r io.Reader) ([]series.Reading, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading sensor log header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.TrimSpace(name)] = i
	}
	for _, name := range []string{"system_timestamp", "heart_rate_raw", "heart_rate_calibrated"} {
		if _, ok := idx[name]; !ok {
			return nil, fmt.Errorf("sensor log missing column %q", name)
		}
	}

	var readings []series.Reading
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			return readings, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading sensor log row %d: %w", line, err)
		}
		ts, err := parseUnixSeconds(row[idx["system_timestamp"]])
		if err != nil {
			return nil, fmt.Errorf("row %d: system_timestamp: %w", line, err)
		}
		reading := series.Reading{Timestamp: ts}
		if v, ok := optionalFloat(row[idx["heart_rate_calibrated"]]); ok {
			reading.Value, reading.Valid = v, true
		} else if raw, ok := optionalFloat(row[idx["heart_rate_raw"]]); ok {
			reading.Value, reading.Valid = CalibrateHeartRate(raw), true
		}
		readings = append(readings, reading)
	}
}

func parseUnixSeconds(s string) (time.Time, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return time.Time{}, err
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(math.Round(frac*1e9))).UTC(), nil
}

func optionalFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || s == "None" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}
