// Package price implements the fetch orchestrator: it owns the
// provider rotation, the unified price record and the shared time
// series, and decides when a refresh actually contacts the network.
package price

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/newthinker/btcticker/internal/core"
	"github.com/newthinker/btcticker/internal/metrics"
	"github.com/newthinker/btcticker/internal/provider"
	"github.com/newthinker/btcticker/internal/timeseries"
	"go.uber.org/zap"
)

const (
	// DefaultMinRefresh is the window inside which Refresh is a no-op.
	DefaultMinRefresh = 120 * time.Second

	// priceNowAttempts bounds the rotation in PriceNow.
	priceNowAttempts = 3
)

// Options configures the orchestrator.
type Options struct {
	Fiat             string
	DaysAgo          int
	MinRefresh       time.Duration
	OHLCInterval     string
	EnableTimeseries bool
	EnableOHLC       bool
	Service          string
	Providers        []provider.Provider
	Logger           *zap.Logger
	Metrics          *metrics.Registry
}

// Price orchestrates refreshes across the provider rotation. All
// mutable state sits behind one mutex; Refresh performs a
// read-check-then-write sequence that would race otherwise.
type Price struct {
	mu sync.Mutex

	fiat             string
	daysAgo          int
	minRefresh       time.Duration
	ohlcInterval     time.Duration
	enableTimeseries bool
	enableOHLC       bool

	providers []provider.Provider
	active    int

	series      *timeseries.Series
	record      core.PriceRecord
	candles     []core.Candle
	lastRefresh time.Time

	log     *zap.Logger
	metrics *metrics.Registry
	now     func() time.Time
}

// New creates an orchestrator. The OHLC interval is validated eagerly.
func New(opts Options) (*Price, error) {
	if len(opts.Providers) == 0 {
		return nil, core.WrapError(core.ErrConfigMissing, fmt.Errorf("at least one provider is required"))
	}

	if opts.Fiat == "" {
		opts.Fiat = "EUR"
	}
	if opts.DaysAgo < 1 {
		opts.DaysAgo = 1
	}
	if opts.MinRefresh <= 0 {
		opts.MinRefresh = DefaultMinRefresh
	}
	if opts.OHLCInterval == "" {
		opts.OHLCInterval = "1h"
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	ohlcInterval, err := core.ParseInterval(opts.OHLCInterval)
	if err != nil {
		return nil, err
	}

	active := 0
	for i, p := range opts.Providers {
		if p.Name() == opts.Service {
			active = i
			break
		}
	}

	return &Price{
		fiat:             strings.ToUpper(opts.Fiat),
		daysAgo:          opts.DaysAgo,
		minRefresh:       opts.MinRefresh,
		ohlcInterval:     ohlcInterval,
		enableTimeseries: opts.EnableTimeseries,
		enableOHLC:       opts.EnableOHLC,
		providers:        opts.Providers,
		active:           active,
		series:           timeseries.New(),
		log:              opts.Logger,
		metrics:          opts.Metrics,
		now:              time.Now,
	}, nil
}

// Refresh updates the price record if the previous one is stale.
// Inside the min-refresh window it returns true without contacting any
// provider. On staleness it walks the rotation, advancing past failed
// providers, up to one full cycle. A fully failed refresh leaves the
// previous record and the refresh timestamp untouched and returns
// false.
func (p *Price) Refresh() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.refreshLocked()
}

func (p *Price) refreshLocked() bool {
	now := p.now().UTC()
	if !p.lastRefresh.IsZero() && now.Sub(p.lastRefresh) < p.minRefresh {
		return true
	}

	p.log.Info("fetching price data",
		zap.String("provider", p.providers[p.active].Name()),
		zap.String("fiat", p.fiat),
	)

	for attempt := 0; attempt < len(p.providers); attempt++ {
		prov := p.providers[p.active]
		if err := p.fetchFrom(prov, now); err != nil {
			p.log.Warn("provider refresh failed",
				zap.String("provider", prov.Name()),
				zap.Error(err),
			)
			p.metrics.RecordProviderFailure(prov.Name())
			p.active = (p.active + 1) % len(p.providers)
			continue
		}

		p.lastRefresh = now
		p.metrics.RecordRefresh(true)
		p.metrics.SetSpotPrice("USD", p.record.USD)
		p.metrics.SetSpotPrice(p.fiat, p.record.Fiat)
		p.metrics.SetSeriesSamples(p.series.Len())
		return true
	}

	p.metrics.RecordRefresh(false)
	return false
}

// fetchFrom builds a complete record from a single provider. The
// stored record is only replaced once everything needed succeeded, so
// a partial failure never leaves mixed or half-filled state behind.
func (p *Price) fetchFrom(prov provider.Provider, now time.Time) error {
	usd, err := prov.Spot("USD")
	if err != nil {
		return err
	}
	fiat, err := prov.Spot(p.fiat)
	if err != nil {
		return err
	}
	if usd <= 0 || fiat <= 0 {
		return core.WrapError(core.ErrNoData,
			fmt.Errorf("non-positive spot price from %s", prov.Name()))
	}

	if p.enableTimeseries {
		// History never errors; a failed fetch merges nothing.
		p.series.Merge(prov.History(p.fiat, p.series.Timestamps()))
	}
	p.series.Add(now, fiat)

	if p.enableOHLC {
		candles, err := prov.OHLC(p.fiat)
		if err != nil || len(candles) == 0 {
			candles = p.series.ResampleOHLC(p.ohlcInterval)
		}
		p.candles = candles
	}

	p.record = core.NewPriceRecord(usd, fiat, now)
	return nil
}

// PriceNow refreshes, rotating providers for up to three attempts, and
// formats the fiat price for display.
func (p *Price) PriceNow() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ok := false
	for attempt := 0; attempt < priceNowAttempts && !ok; attempt++ {
		ok = p.refreshLocked()
	}
	if p.record.IsZero() {
		return "", core.ErrNoData
	}
	return FormatPrice(p.record.Fiat), nil
}

// FormatPrice renders a fiat price for display: values of 1000 and
// above get thousands separators and no decimals, smaller values keep
// 5 significant digits.
func FormatPrice(v float64) string {
	if v >= 1000 {
		return humanize.Commaf(math.Round(v))
	}
	return strconv.FormatFloat(v, 'g', 5, 64)
}

// Record returns the current unified price record.
func (p *Price) Record() core.PriceRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.record
}

// FiatPrice returns the last fetched fiat price.
func (p *Price) FiatPrice() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.record.Fiat
}

// USDPrice returns the last fetched USD price.
func (p *Price) USDPrice() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.record.USD
}

// SatsPerFiat returns how many satoshis one fiat unit buys.
func (p *Price) SatsPerFiat() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.record.Fiat == 0 {
		return 0
	}
	return core.SatsPerBTC / p.record.Fiat
}

// SatsPerUSD returns how many satoshis one USD buys.
func (p *Price) SatsPerUSD() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.record.USD == 0 {
		return 0
	}
	return core.SatsPerBTC / p.record.USD
}

// Timestamp returns the time of the last successful refresh.
func (p *Price) Timestamp() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.record.Time
}

// PriceChange formats the percentage change over the lookback window,
// e.g. "+2.50%". It returns an empty string when the series holds too
// few samples.
func (p *Price) PriceChange() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	change, ok := p.series.PercentChange(time.Duration(p.daysAgo) * 24 * time.Hour)
	if !ok {
		return ""
	}
	return fmt.Sprintf("%+.2f%%", change)
}

// Samples returns the time series within the lookback window.
func (p *Price) Samples() []core.PriceSample {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.series.Samples(time.Duration(p.daysAgo) * 24 * time.Hour)
}

// Candles returns the candles from the last refresh: native provider
// data when available, resampled from the series otherwise.
func (p *Price) Candles() []core.Candle {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]core.Candle, len(p.candles))
	copy(out, p.candles)
	return out
}

// CandlesWithVolume returns candles with the volume column zero-filled
// when the source had no volume data.
func (p *Price) CandlesWithVolume() []core.Candle {
	out := p.Candles()
	for i := range out {
		if !out[i].HasVolume {
			out[i].Volume = 0
			out[i].HasVolume = true
		}
	}
	return out
}

// SetDaysAgo adjusts the lookback window for change and history views.
func (p *Price) SetDaysAgo(days int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if days >= 1 {
		p.daysAgo = days
	}
}

// ActiveProvider returns the name of the provider the rotation
// currently points at.
func (p *Price) ActiveProvider() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.providers[p.active].Name()
}
