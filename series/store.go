// Package series holds the sample store and the fixed-step aligner that turns
// irregular heart-rate readings into a dense, labeled grid.
package series

import (
	"fmt"
	"sort"
	"time"
)

// TimeLayout is the wall-clock layout used for session bounds and aligned CSV rows.
const TimeLayout = "2006-01-02 15:04:05"

// Reading is one raw sample as produced by a source. Valid is false when the
// source reported the timestamp but no usable value.
type Reading struct {
	Timestamp time.Time
	Value     float64
	Valid     bool
}

// Observation is a present sample held by a Store.
type Observation struct {
	Timestamp time.Time
	Value     float64
}

// Store is an immutable, ascending, timestamp-deduplicated sequence of
// observations confined to a closed interval.
type Store struct {
	obs     []Observation
	dropped int
}

// NewStore builds a Store from readings. Absent readings are dropped here and
// never reach the aligner. Readings outside [start, end] are discarded. When two
// readings share a timestamp the one encountered last wins.
func NewStore(readings []Reading, start, end time.Time) (*Store, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("store interval end %s is before start %s",
			end.Format(TimeLayout), start.Format(TimeLayout))
	}
	s := &Store{}
	obs := make([]Observation, 0, len(readings))
	for _, r := range readings {
		if !r.Valid {
			s.dropped++
			continue
		}
		if r.Timestamp.Before(start) || r.Timestamp.After(end) {
			continue
		}
		obs = append(obs, Observation{Timestamp: r.Timestamp, Value: r.Value})
	}
	sort.SliceStable(obs, func(i, j int) bool {
		return obs[i].Timestamp.Before(obs[j].Timestamp)
	})

	// Collapse runs of equal timestamps onto their last element.
	out := obs[:0]
	for i, o := range obs {
		if i+1 < len(obs) && obs[i+1].Timestamp.Equal(o.Timestamp) {
			continue
		}
		out = append(out, o)
	}
	s.obs = out
	return s, nil
}

// Len returns the number of observations.
func (s *Store) Len() int { return len(s.obs) }

// At returns the i-th observation in ascending order.
func (s *Store) At(i int) Observation { return s.obs[i] }

// Dropped returns how many absent readings were discarded at construction.
func (s *Store) Dropped() int { return s.dropped }
