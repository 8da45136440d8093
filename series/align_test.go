package series

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 4, 1, 11, 35, 0, 0, time.UTC)

func at(sec int) time.Time { return t0.Add(time.Duration(sec) * time.Second) }

func present(sec int, v float64) Reading {
	return Reading{Timestamp: at(sec), Value: v, Valid: true}
}

func mustStore(t *testing.T, readings []Reading, start, end time.Time) *Store {
	t.Helper()
	s, err := NewStore(readings, start, end)
	require.NoError(t, err)
	return s
}

func TestAlign_TwoSamples_HoldsAndLabels(t *testing.T) {
	// GIVEN samples at t0 and t0+15s over [t0, t0+30s], boundary at t0+20s
	store := mustStore(t, []Reading{present(0, 70), present(15, 72)}, at(0), at(30))
	cfg := AlignConfig{Start: at(0), End: at(30), PhaseBoundary: at(20), Step: 10 * time.Second}

	// WHEN aligning
	grid, err := AlignAll(store, cfg)
	require.NoError(t, err)

	// THEN the held values and labels follow the boundary
	want := []GridPoint{
		{Timestamp: at(0), Value: 70, Label: PreMeal},
		{Timestamp: at(10), Value: 70, Label: PreMeal},
		{Timestamp: at(20), Value: 72, Label: PostMeal},
		{Timestamp: at(30), Value: 72, Label: PostMeal},
	}
	assert.Equal(t, want, grid)
}

func TestAlign_SuppressesPointsBeforeFirstSample(t *testing.T) {
	store := mustStore(t, []Reading{present(25, 80)}, at(0), at(40))
	cfg := AlignConfig{Start: at(0), End: at(40), PhaseBoundary: at(10), Step: 10 * time.Second}

	grid, err := AlignAll(store, cfg)
	require.NoError(t, err)

	require.Len(t, grid, 2)
	assert.Equal(t, at(30), grid[0].Timestamp)
	assert.Equal(t, at(40), grid[1].Timestamp)
	for _, gp := range grid {
		assert.Equal(t, 80.0, gp.Value)
		assert.Equal(t, PostMeal, gp.Label)
	}
}

func TestAlign_NoSamples_EmptyGrid(t *testing.T) {
	store := mustStore(t, nil, at(0), at(60))
	cfg := AlignConfig{Start: at(0), End: at(60), PhaseBoundary: at(30), Step: 10 * time.Second}

	grid, err := AlignAll(store, cfg)
	require.NoError(t, err)
	assert.Empty(t, grid)
}

func TestAlign_SampleBeforeStart_SeedsFirstPoint(t *testing.T) {
	// GIVEN a store widened with lookback so a pre-start sample is retained
	store := mustStore(t, []Reading{present(-5, 64), present(12, 66)}, at(-60), at(20))
	cfg := AlignConfig{Start: at(0), End: at(20), PhaseBoundary: at(20), Step: 10 * time.Second}

	grid, err := AlignAll(store, cfg)
	require.NoError(t, err)

	require.Len(t, grid, 3)
	assert.Equal(t, 64.0, grid[0].Value)
	assert.Equal(t, 64.0, grid[1].Value)
	assert.Equal(t, 66.0, grid[2].Value)
	assert.Equal(t, PostMeal, grid[2].Label, "boundary equal to timestamp is post-meal")
}

func TestAlign_EndNotOnGrid_StopsAtLastStepBeforeEnd(t *testing.T) {
	store := mustStore(t, []Reading{present(0, 70)}, at(0), at(25))
	cfg := AlignConfig{Start: at(0), End: at(25), PhaseBoundary: at(10), Step: 10 * time.Second}

	grid, err := AlignAll(store, cfg)
	require.NoError(t, err)
	require.Len(t, grid, 3)
	assert.Equal(t, at(20), grid[2].Timestamp)
}

func TestAlign_SeveralSamplesWithinOneStep_LastWins(t *testing.T) {
	store := mustStore(t, []Reading{present(1, 60), present(3, 61), present(9, 62)}, at(0), at(10))
	cfg := AlignConfig{Start: at(0), End: at(10), PhaseBoundary: at(10), Step: 10 * time.Second}

	grid, err := AlignAll(store, cfg)
	require.NoError(t, err)
	require.Len(t, grid, 1)
	assert.Equal(t, 62.0, grid[0].Value)
}

func TestAlignConfig_Validate(t *testing.T) {
	cases := []struct {
		name string
		cfg  AlignConfig
		msg  string
	}{
		{"zero step", AlignConfig{Start: at(0), End: at(10), PhaseBoundary: at(5)}, "step"},
		{"end before start", AlignConfig{Start: at(10), End: at(0), PhaseBoundary: at(5), Step: time.Second}, "before start"},
		{"boundary after end", AlignConfig{Start: at(0), End: at(10), PhaseBoundary: at(11), Step: time.Second}, "phase boundary"},
		{"boundary before start", AlignConfig{Start: at(0), End: at(10), PhaseBoundary: at(-1), Step: time.Second}, "phase boundary"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.msg)
		})
	}
	assert.NoError(t, AlignConfig{Start: at(0), End: at(0), PhaseBoundary: at(0), Step: time.Second}.Validate())
}

// TestAlign_EmittedCount_MonotonicInEnd verifies that extending the interval end
// never removes emitted points.
func TestAlign_EmittedCount_MonotonicInEnd(t *testing.T) {
	readings := []Reading{present(7, 70), present(31, 75), present(44, 73), present(90, 68)}
	for _, step := range []time.Duration{time.Second, 7 * time.Second, 10 * time.Second, 45 * time.Second} {
		prev := -1
		for end := 0; end <= 120; end += 5 {
			store := mustStore(t, readings, at(0), at(end))
			cfg := AlignConfig{Start: at(0), End: at(end), PhaseBoundary: at(0), Step: step}
			n, err := Align(store, cfg, SinkFunc(func(GridPoint) error { return nil }))
			require.NoError(t, err)
			assert.GreaterOrEqual(t, n, prev, "step=%s end=%d", step, end)
			prev = n
		}
	}
}

// TestAlign_Idempotent re-aligns the emitted grid as a new store.
func TestAlign_Idempotent(t *testing.T) {
	readings := []Reading{present(13, 70), present(14, 71), present(38, 90), present(55, 64)}
	cfg := AlignConfig{Start: at(0), End: at(70), PhaseBoundary: at(40), Step: 10 * time.Second}
	first, err := AlignAll(mustStore(t, readings, cfg.Start, cfg.End), cfg)
	require.NoError(t, err)

	again := make([]Reading, len(first))
	for i, gp := range first {
		again[i] = Reading{Timestamp: gp.Timestamp, Value: gp.Value, Valid: true}
	}
	second, err := AlignAll(mustStore(t, again, cfg.Start, cfg.End), cfg)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestAlign_SinkError_StopsAndWraps(t *testing.T) {
	store := mustStore(t, []Reading{present(0, 70)}, at(0), at(30))
	cfg := AlignConfig{Start: at(0), End: at(30), PhaseBoundary: at(10), Step: 10 * time.Second}
	boom := errors.New("disk full")

	calls := 0
	n, err := Align(store, cfg, SinkFunc(func(GridPoint) error {
		calls++
		if calls == 2 {
			return boom
		}
		return nil
	}))

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, n)
}

func TestNewAligner_NilStore(t *testing.T) {
	_, err := NewAligner(nil, AlignConfig{Step: time.Second})
	assert.Error(t, err)
}

func TestCSVSink_WritesHeaderAndRows(t *testing.T) {
	var buf bytes.Buffer
	sink := NewCSVSink(&buf, "guk il kim")
	store := mustStore(t, []Reading{present(0, 70.5), present(15, 72)}, at(0), at(20))
	cfg := AlignConfig{Start: at(0), End: at(20), PhaseBoundary: at(20), Step: 10 * time.Second}

	n, err := Align(store, cfg, sink)
	require.NoError(t, err)
	require.NoError(t, sink.Close())

	assert.Equal(t, 3, n)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, []string{
		"subject_id,timestamp,heart_rate,label",
		"guk il kim,2025-04-01 11:35:00,70.5,0",
		"guk il kim,2025-04-01 11:35:10,70.5,0",
		"guk il kim,2025-04-01 11:35:20,72,1",
	}, lines)
}

func TestCSVSink_EmptyGrid_StillWritesHeader(t *testing.T) {
	var buf bytes.Buffer
	sink := NewCSVSink(&buf, "s")
	require.NoError(t, sink.Close())
	assert.Equal(t, "subject_id,timestamp,heart_rate,label\n", buf.String())
}
