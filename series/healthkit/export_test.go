package healthkit

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const export = `<?xml version="1.0" encoding="UTF-8"?>
<HealthData locale="en_US">
 <ExportDate value="2025-04-02 09:00:00 +0900"/>
 <Record type="HKQuantityTypeIdentifierHeartRate" sourceName="Watch" unit="count/min" startDate="2025-04-01 11:36:10 +0900" endDate="2025-04-01 11:36:10 +0900" value="72"/>
 <Record type="HKQuantityTypeIdentifierStepCount" unit="count" startDate="2025-04-01 11:36:00 +0900" endDate="2025-04-01 11:37:00 +0900" value="40"/>
 <Record type="HKQuantityTypeIdentifierHeartRate" unit="count/min" startDate="2025-04-01 11:35:50 +0900" endDate="2025-04-01 11:35:50 +0900" value="70.5">
  <MetadataEntry key="HKMetadataKeyHeartRateMotionContext" value="0"/>
 </Record>
 <Record type="HKQuantityTypeIdentifierHeartRate" unit="count/min" startDate="2025-04-01 11:37:00 +0900" endDate="2025-04-01 11:37:00 +0900" value=""/>
</HealthData>`

func TestRead_FiltersByTypeInDocumentOrder(t *testing.T) {
	readings, err := Read(strings.NewReader(export), HeartRateType)
	require.NoError(t, err)

	require.Len(t, readings, 3)
	assert.Equal(t, time.Date(2025, 4, 1, 11, 36, 10, 0, time.UTC), readings[0].Timestamp)
	assert.Equal(t, 72.0, readings[0].Value)
	assert.True(t, readings[0].Valid)
	assert.Equal(t, 70.5, readings[1].Value)
}

func TestRead_UnparseableValue_IsAbsent(t *testing.T) {
	readings, err := Read(strings.NewReader(export), HeartRateType)
	require.NoError(t, err)

	last := readings[2]
	assert.False(t, last.Valid)
	assert.Equal(t, time.Date(2025, 4, 1, 11, 37, 0, 0, time.UTC), last.Timestamp)
}

func TestRead_BadStartDate_ReturnsError(t *testing.T) {
	doc := `<HealthData><Record type="HKQuantityTypeIdentifierHeartRate" startDate="yesterday" value="60"/></HealthData>`
	_, err := Read(strings.NewReader(doc), HeartRateType)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "startDate")
}

func TestRead_TruncatedDocument_ReturnsError(t *testing.T) {
	_, err := Read(strings.NewReader(`<HealthData><Record type="x"`), HeartRateType)
	assert.Error(t, err)
}

func TestReadFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.xml")
	require.NoError(t, os.WriteFile(path, []byte(export), 0644))

	readings, err := ReadFile(path, "HKQuantityTypeIdentifierStepCount")
	require.NoError(t, err)
	require.Len(t, readings, 1)
	assert.Equal(t, 40.0, readings[0].Value)
}

func TestWallClock_DropsOffset(t *testing.T) {
	seoul := time.FixedZone("KST", 9*3600)
	in := time.Date(2025, 4, 1, 12, 0, 0, 0, seoul)
	assert.Equal(t, time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC), WallClock(in))
}
