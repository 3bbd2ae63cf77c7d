// Package timeseries holds the in-memory fiat price history.
package timeseries

import (
	"time"

	"github.com/newthinker/btcticker/internal/core"
)

// Series is an ordered, timestamp-keyed store of price samples.
// Timestamps are strictly increasing; duplicates and out-of-order
// inserts are rejected so re-merging an overlapping fetch window is
// idempotent. Series is not safe for concurrent use.
type Series struct {
	samples []core.PriceSample

	now func() time.Time
}

// New creates an empty series.
func New() *Series {
	return &Series{now: time.Now}
}

// Add inserts one sample. It is a no-op returning false when the price
// is not positive or the timestamp is not strictly after the last
// stored timestamp.
func (s *Series) Add(t time.Time, price float64) bool {
	if price <= 0 {
		return false
	}
	if n := len(s.samples); n > 0 && !t.After(s.samples[n-1].Time) {
		return false
	}
	s.samples = append(s.samples, core.PriceSample{Time: t, Price: price})
	return true
}

// Merge applies Add for each sample in order and reports how many were
// inserted. Samples at or before the last known timestamp are skipped.
func (s *Series) Merge(samples []core.PriceSample) int {
	added := 0
	for _, sm := range samples {
		if s.Add(sm.Time, sm.Price) {
			added++
		}
	}
	return added
}

// Len returns the number of stored samples.
func (s *Series) Len() int {
	return len(s.samples)
}

// Last returns the most recent sample.
func (s *Series) Last() (core.PriceSample, bool) {
	if len(s.samples) == 0 {
		return core.PriceSample{}, false
	}
	return s.samples[len(s.samples)-1], true
}

// Timestamps returns all stored timestamps as unix seconds. Providers
// use the last entry as the fetch cutoff for incremental history.
func (s *Series) Timestamps() []float64 {
	out := make([]float64, len(s.samples))
	for i, sm := range s.samples {
		out[i] = float64(sm.Time.Unix())
	}
	return out
}

// Samples returns a copy of the samples within the lookback window.
// A non-positive lookback returns everything.
func (s *Series) Samples(lookback time.Duration) []core.PriceSample {
	if lookback <= 0 {
		out := make([]core.PriceSample, len(s.samples))
		copy(out, s.samples)
		return out
	}

	cutoff := s.now().UTC().Add(-lookback)
	i := 0
	for i < len(s.samples) && s.samples[i].Time.Before(cutoff) {
		i++
	}
	out := make([]core.PriceSample, len(s.samples)-i)
	copy(out, s.samples[i:])
	return out
}

// PercentChange compares the latest sample against the earliest sample
// at or after now-lookback. It reports false when fewer than two
// samples fall inside the window.
func (s *Series) PercentChange(lookback time.Duration) (float64, bool) {
	window := s.Samples(lookback)
	if len(window) < 2 {
		return 0, false
	}

	first := window[0].Price
	last := window[len(window)-1].Price
	return (last - first) / first * 100, true
}

// ResampleOHLC groups samples into fixed-width buckets aligned to the
// bucket boundary. For each non-empty bucket open is the first price,
// close the last, high/low the extremes. Empty buckets are omitted.
// Derived candles carry no volume.
func (s *Series) ResampleOHLC(bucket time.Duration) []core.Candle {
	if bucket <= 0 || len(s.samples) == 0 {
		return nil
	}

	var out []core.Candle
	for _, sm := range s.samples {
		start := sm.Time.Truncate(bucket)
		if n := len(out); n > 0 && out[n-1].Time.Equal(start) {
			c := &out[n-1]
			if sm.Price > c.High {
				c.High = sm.Price
			}
			if sm.Price < c.Low {
				c.Low = sm.Price
			}
			c.Close = sm.Price
			continue
		}
		out = append(out, core.Candle{
			Open:  sm.Price,
			High:  sm.Price,
			Low:   sm.Price,
			Close: sm.Price,
			Time:  start,
		})
	}
	return out
}
