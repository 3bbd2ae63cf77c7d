package core

import (
	"fmt"
	"strconv"
	"time"
)

// SatsPerBTC is the number of satoshis in one bitcoin.
const SatsPerBTC = 1e8

// PriceSample is a single observed price at a point in time.
type PriceSample struct {
	Time  time.Time
	Price float64
}

// IsValid checks if the sample can be stored.
func (s PriceSample) IsValid() bool {
	return s.Price > 0
}

// PriceRecord is the unified snapshot built from a single provider call.
// All fields are populated together; a record is never assembled from
// more than one provider.
type PriceRecord struct {
	USD        float64
	Fiat       float64
	SatPerUSD  float64
	SatPerFiat float64
	Time       time.Time
}

// NewPriceRecord builds a record from USD and fiat spot prices.
func NewPriceRecord(usd, fiat float64, t time.Time) PriceRecord {
	return PriceRecord{
		USD:        usd,
		Fiat:       fiat,
		SatPerUSD:  SatsPerBTC / usd,
		SatPerFiat: SatsPerBTC / fiat,
		Time:       t,
	}
}

// IsZero reports whether the record has ever been populated.
func (r PriceRecord) IsZero() bool {
	return r.Time.IsZero()
}

// Candle represents an OHLC aggregate over a fixed time bucket.
// HasVolume is false for candles derived by resampling, where no
// traded volume is known.
type Candle struct {
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	HasVolume bool
	Time      time.Time
}

// ParseInterval converts an interval string like "30m", "1h" or "1d"
// into a duration. A malformed interval is a configuration error and
// is reported eagerly rather than swallowed.
func ParseInterval(s string) (time.Duration, error) {
	if len(s) < 2 {
		return 0, WrapError(ErrInvalidInterval, fmt.Errorf("interval %q", s))
	}

	value, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || value <= 0 {
		return 0, WrapError(ErrInvalidInterval, fmt.Errorf("interval %q", s))
	}

	switch s[len(s)-1] {
	case 'm':
		return time.Duration(value) * time.Minute, nil
	case 'h':
		return time.Duration(value) * time.Hour, nil
	case 'd':
		return time.Duration(value) * 24 * time.Hour, nil
	default:
		return 0, WrapError(ErrInvalidInterval, fmt.Errorf("interval %q", s))
	}
}
