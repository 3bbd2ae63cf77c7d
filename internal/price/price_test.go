package price

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/newthinker/btcticker/internal/core"
	"github.com/newthinker/btcticker/internal/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stub implements provider.Provider for orchestrator tests.
type stub struct {
	name    string
	spot    map[string]float64
	spotErr error
	history []core.PriceSample
	candles []core.Candle
	ohlcErr error

	spotCalls    int
	historyCalls int
}

func (s *stub) Name() string { return s.name }

func (s *stub) Spot(currency string) (float64, error) {
	s.spotCalls++
	if s.spotErr != nil {
		return 0, s.spotErr
	}
	v, ok := s.spot[strings.ToUpper(currency)]
	if !ok {
		return 0, core.ErrUnsupportedCurrency
	}
	return v, nil
}

func (s *stub) History(currency string, existing []float64) []core.PriceSample {
	s.historyCalls++
	return s.history
}

func (s *stub) OHLC(currency string) ([]core.Candle, error) {
	if s.ohlcErr != nil {
		return nil, s.ohlcErr
	}
	return s.candles, nil
}

func newTestPrice(t *testing.T, opts Options) *Price {
	t.Helper()
	if opts.Fiat == "" {
		opts.Fiat = "EUR"
	}
	p, err := New(opts)
	require.NoError(t, err)
	return p
}

func TestNew_RequiresProviders(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestNew_InvalidOHLCInterval(t *testing.T) {
	_, err := New(Options{
		Providers:    []provider.Provider{&stub{name: "a"}},
		OHLCInterval: "bogus",
	})
	assert.Error(t, err, "malformed interval must fail eagerly")
}

func TestRefresh_Success(t *testing.T) {
	a := &stub{name: "a", spot: map[string]float64{"USD": 50000, "EUR": 42000}}
	p := newTestPrice(t, Options{Providers: []provider.Provider{a}})

	require.True(t, p.Refresh())

	rec := p.Record()
	assert.Equal(t, 50000.0, rec.USD)
	assert.Equal(t, 42000.0, rec.Fiat)
	assert.Equal(t, 2000.0, p.SatsPerUSD())
	assert.InDelta(t, 2380.9523809523807, p.SatsPerFiat(), 1e-9)
	assert.False(t, p.Timestamp().IsZero())
}

func TestRefresh_FallbackUsesNextProvider(t *testing.T) {
	a := &stub{name: "a", spotErr: fmt.Errorf("connection refused")}
	b := &stub{name: "b", spot: map[string]float64{"USD": 50000, "EUR": 42000}}
	c := &stub{name: "c", spot: map[string]float64{"USD": 1, "EUR": 1}}
	p := newTestPrice(t, Options{Providers: []provider.Provider{a, b, c}, Service: "a"})

	require.True(t, p.Refresh())

	// The record must come entirely from b, no fields mixed from a or c.
	rec := p.Record()
	assert.Equal(t, 50000.0, rec.USD)
	assert.Equal(t, 42000.0, rec.Fiat)
	assert.Equal(t, "b", p.ActiveProvider())
	assert.Equal(t, 1, a.spotCalls, "a fails on the first spot call")
	assert.Equal(t, 0, c.spotCalls, "rotation stops at the first success")
}

func TestRefresh_AllProvidersFail(t *testing.T) {
	a := &stub{name: "a", spotErr: fmt.Errorf("down")}
	b := &stub{name: "b", spotErr: fmt.Errorf("down too")}
	p := newTestPrice(t, Options{Providers: []provider.Provider{a, b}})

	assert.False(t, p.Refresh())
	assert.True(t, p.Record().IsZero())
	assert.True(t, p.lastRefresh.IsZero(), "failed refresh must not update the refresh timestamp")
}

func TestRefresh_KeepsPreviousRecordOnFailure(t *testing.T) {
	a := &stub{name: "a", spot: map[string]float64{"USD": 50000, "EUR": 42000}}
	p := newTestPrice(t, Options{Providers: []provider.Provider{a}})
	require.True(t, p.Refresh())
	before := p.Record()

	// Make the provider fail and force staleness.
	a.spotErr = fmt.Errorf("gone")
	p.lastRefresh = p.lastRefresh.Add(-DefaultMinRefresh - time.Second)

	assert.False(t, p.Refresh())
	assert.Equal(t, before, p.Record(), "previous record must survive a failed refresh")
}

func TestRefresh_IdempotentWithinWindow(t *testing.T) {
	a := &stub{name: "a", spot: map[string]float64{"USD": 50000, "EUR": 42000}}
	p := newTestPrice(t, Options{Providers: []provider.Provider{a}})

	require.True(t, p.Refresh())
	calls := a.spotCalls
	require.True(t, p.Refresh(), "second refresh inside the window reports success")
	assert.Equal(t, calls, a.spotCalls, "no provider contact inside the refresh window")
}

func TestRefresh_StaleTriggersFetch(t *testing.T) {
	a := &stub{name: "a", spot: map[string]float64{"USD": 50000, "EUR": 42000}}
	p := newTestPrice(t, Options{Providers: []provider.Provider{a}})

	require.True(t, p.Refresh())
	calls := a.spotCalls

	p.lastRefresh = p.lastRefresh.Add(-DefaultMinRefresh - time.Second)
	require.True(t, p.Refresh())
	assert.Greater(t, a.spotCalls, calls)
}

func TestRefresh_MergesHistory(t *testing.T) {
	now := time.Now().UTC()
	a := &stub{
		name: "a",
		spot: map[string]float64{"USD": 60000, "EUR": 50000},
		history: []core.PriceSample{
			{Time: now.Add(-2 * time.Hour), Price: 40000},
		},
	}
	p := newTestPrice(t, Options{Providers: []provider.Provider{a}, EnableTimeseries: true})

	require.True(t, p.Refresh())
	assert.Equal(t, 1, a.historyCalls)

	samples := p.Samples()
	require.Len(t, samples, 2, "history sample plus current spot")
	assert.Equal(t, 40000.0, samples[0].Price)
	assert.Equal(t, 50000.0, samples[1].Price)

	assert.Equal(t, "+25.00%", p.PriceChange())
}

func TestPriceChange_EmptyWithoutSamples(t *testing.T) {
	a := &stub{name: "a", spot: map[string]float64{"USD": 50000, "EUR": 42000}}
	p := newTestPrice(t, Options{Providers: []provider.Provider{a}})
	assert.Equal(t, "", p.PriceChange())
}

func TestRefresh_NativeCandles(t *testing.T) {
	native := []core.Candle{{
		Open: 49000, High: 51000, Low: 48000, Close: 50000,
		Volume: 12.5, HasVolume: true,
		Time: time.Now().UTC(),
	}}
	a := &stub{
		name:    "a",
		spot:    map[string]float64{"USD": 50000, "EUR": 42000},
		candles: native,
	}
	p := newTestPrice(t, Options{Providers: []provider.Provider{a}, EnableOHLC: true})

	require.True(t, p.Refresh())
	candles := p.Candles()
	require.Len(t, candles, 1)
	assert.Equal(t, native[0], candles[0])
}

func TestRefresh_DerivesCandlesWhenUnsupported(t *testing.T) {
	now := time.Now().UTC()
	a := &stub{
		name: "a",
		spot: map[string]float64{"USD": 60000, "EUR": 50000},
		history: []core.PriceSample{
			{Time: now.Add(-30 * time.Minute), Price: 40000},
			{Time: now.Add(-20 * time.Minute), Price: 43000},
		},
		ohlcErr: core.ErrNoData,
	}
	p := newTestPrice(t, Options{
		Providers:        []provider.Provider{a},
		EnableTimeseries: true,
		EnableOHLC:       true,
		OHLCInterval:     "1d",
	})

	require.True(t, p.Refresh())
	candles := p.Candles()
	require.NotEmpty(t, candles, "candles must be derived from the series")
	for _, c := range candles {
		assert.False(t, c.HasVolume)
	}
}

func TestCandlesWithVolume_ZeroFills(t *testing.T) {
	now := time.Now().UTC()
	a := &stub{
		name: "a",
		spot: map[string]float64{"USD": 60000, "EUR": 50000},
		history: []core.PriceSample{
			{Time: now.Add(-30 * time.Minute), Price: 40000},
		},
		ohlcErr: core.ErrNoData,
	}
	p := newTestPrice(t, Options{
		Providers:        []provider.Provider{a},
		EnableTimeseries: true,
		EnableOHLC:       true,
	})
	require.True(t, p.Refresh())

	for _, c := range p.CandlesWithVolume() {
		assert.True(t, c.HasVolume)
		assert.Equal(t, 0.0, c.Volume)
	}
}

func TestPriceNow_RotatesAndFormats(t *testing.T) {
	a := &stub{name: "a", spotErr: fmt.Errorf("down")}
	b := &stub{name: "b", spot: map[string]float64{"USD": 60000.2, "EUR": 50000.3}}
	p := newTestPrice(t, Options{Providers: []provider.Provider{a, b}, Service: "a"})

	out, err := p.PriceNow()
	require.NoError(t, err)
	assert.Equal(t, "50,000", out)
}

func TestPriceNow_NoDataEver(t *testing.T) {
	a := &stub{name: "a", spotErr: fmt.Errorf("down")}
	p := newTestPrice(t, Options{Providers: []provider.Provider{a}})

	_, err := p.PriceNow()
	assert.Error(t, err)
}

func TestFormatPrice(t *testing.T) {
	tests := []struct {
		input    float64
		expected string
	}{
		{50000.3, "50,000"},
		{1234567.0, "1,234,567"},
		{1000.0, "1,000"},
		{999.99, "999.99"},
		{0.0452, "0.0452"},
		{123.456, "123.46"},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.expected, FormatPrice(tc.input), "FormatPrice(%v)", tc.input)
	}
}

func TestSetDaysAgo(t *testing.T) {
	a := &stub{name: "a", spot: map[string]float64{"USD": 50000, "EUR": 42000}}
	p := newTestPrice(t, Options{Providers: []provider.Provider{a}, DaysAgo: 1})

	p.SetDaysAgo(7)
	assert.Equal(t, 7, p.daysAgo)

	p.SetDaysAgo(0)
	assert.Equal(t, 7, p.daysAgo, "invalid lookback is ignored")
}

func TestActiveProvider_StartsAtService(t *testing.T) {
	a := &stub{name: "a"}
	b := &stub{name: "b"}
	p := newTestPrice(t, Options{Providers: []provider.Provider{a, b}, Service: "b"})
	assert.Equal(t, "b", p.ActiveProvider())
}
