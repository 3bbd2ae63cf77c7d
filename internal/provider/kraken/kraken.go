// Package kraken adapts the Kraken exchange's public REST API.
package kraken

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/newthinker/btcticker/internal/core"
	"go.uber.org/zap"
)

const baseURL = "https://api.kraken.com"

// Kraken implements the provider interface for the Kraken exchange.
// Kraken quotes BTC as XBT and supplies native OHLC candles with
// traded volume.
type Kraken struct {
	client    *http.Client
	baseURL   string
	baseAsset string
	interval  time.Duration
	daysAgo   int
	log       *zap.Logger

	now func() time.Time
}

// New creates a new Kraken provider. The interval is parsed eagerly;
// a malformed interval is a configuration error.
func New(interval string, daysAgo int, log *zap.Logger) (*Kraken, error) {
	d, err := core.ParseInterval(interval)
	if err != nil {
		return nil, err
	}
	return &Kraken{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL:   baseURL,
		baseAsset: "XBT",
		interval:  d,
		daysAgo:   daysAgo,
		log:       log,
		now:       time.Now,
	}, nil
}

// NewWithBaseURL creates a Kraken provider with custom base URL (for testing)
func NewWithBaseURL(interval string, daysAgo int, log *zap.Logger, url string) (*Kraken, error) {
	k, err := New(interval, daysAgo, log)
	if err != nil {
		return nil, err
	}
	k.baseURL = url
	return k, nil
}

func (k *Kraken) Name() string {
	return "kraken"
}

// pair builds the Kraken pair name, e.g. XBTUSD.
func (k *Kraken) pair(currency string) string {
	return k.baseAsset + strings.ToUpper(currency)
}

func (k *Kraken) getJSON(path string, query url.Values, out any) error {
	u := k.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := k.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// Spot fetches the last trade price from the public ticker.
func (k *Kraken) Spot(currency string) (float64, error) {
	var payload struct {
		Error  []string `json:"error"`
		Result map[string]struct {
			C []string `json:"c"`
		} `json:"result"`
	}
	query := url.Values{"pair": {k.pair(currency)}}
	if err := k.getJSON("/0/public/Ticker", query, &payload); err != nil {
		return 0, err
	}
	if len(payload.Error) > 0 {
		return 0, core.WrapError(core.ErrProviderFailed, fmt.Errorf("kraken: %s", strings.Join(payload.Error, "; ")))
	}

	// The result key is Kraken's internal pair name, take the first entry.
	for _, ticker := range payload.Result {
		if len(ticker.C) == 0 {
			continue
		}
		price, err := strconv.ParseFloat(ticker.C[0], 64)
		if err != nil {
			return 0, fmt.Errorf("parsing last price: %w", err)
		}
		return price, nil
	}
	return 0, core.WrapError(core.ErrNoData, fmt.Errorf("empty ticker for %s", k.pair(currency)))
}

// fetchCandles queries the public OHLC endpoint. since is unix seconds;
// zero means Kraken's default window.
func (k *Kraken) fetchCandles(currency string, since int64) ([]core.Candle, error) {
	minutes := int(k.interval / time.Minute)
	if minutes < 1 {
		minutes = 1
	}

	query := url.Values{
		"pair":     {k.pair(currency)},
		"interval": {strconv.Itoa(minutes)},
	}
	if since > 0 {
		query.Set("since", strconv.FormatInt(since, 10))
	}

	var payload struct {
		Error  []string                   `json:"error"`
		Result map[string]json.RawMessage `json:"result"`
	}
	if err := k.getJSON("/0/public/OHLC", query, &payload); err != nil {
		return nil, err
	}
	if len(payload.Error) > 0 {
		return nil, core.WrapError(core.ErrProviderFailed, fmt.Errorf("kraken: %s", strings.Join(payload.Error, "; ")))
	}

	// Rows: [time, "open", "high", "low", "close", "vwap", "volume", count]
	for key, raw := range payload.Result {
		if key == "last" {
			continue
		}
		var rows [][]any
		if err := json.Unmarshal(raw, &rows); err != nil {
			return nil, fmt.Errorf("decoding candles: %w", err)
		}

		candles := make([]core.Candle, 0, len(rows))
		for _, row := range rows {
			if len(row) < 7 {
				continue
			}
			ts, okT := toFloat(row[0])
			open, okO := toFloat(row[1])
			high, okH := toFloat(row[2])
			low, okL := toFloat(row[3])
			closeP, okC := toFloat(row[4])
			volume, okV := toFloat(row[6])
			if !okT || !okO || !okH || !okL || !okC || !okV {
				continue
			}
			candles = append(candles, core.Candle{
				Open:      open,
				High:      high,
				Low:       low,
				Close:     closeP,
				Volume:    volume,
				HasVolume: true,
				Time:      time.Unix(int64(ts), 0).UTC(),
			})
		}
		return candles, nil
	}
	return nil, core.WrapError(core.ErrNoData, fmt.Errorf("empty ohlc result for %s", k.pair(currency)))
}

// History derives price samples from candle closes, starting one
// interval after the last known timestamp or daysAgo back when the
// series is empty.
func (k *Kraken) History(currency string, existing []float64) []core.PriceSample {
	var since int64
	if len(existing) > 0 {
		since = int64(existing[len(existing)-1]) + int64(k.interval/time.Second)
	} else {
		since = k.now().UTC().AddDate(0, 0, -k.daysAgo).Unix()
	}

	candles, err := k.fetchCandles(currency, since)
	if err != nil {
		k.log.Warn("kraken history fetch failed", zap.Error(err))
		return nil
	}

	var last float64
	if len(existing) > 0 {
		last = existing[len(existing)-1]
	}

	samples := make([]core.PriceSample, 0, len(candles))
	for _, c := range candles {
		if last > 0 && float64(c.Time.Unix()) <= last {
			continue
		}
		samples = append(samples, core.PriceSample{Time: c.Time, Price: c.Close})
	}
	return samples
}

// OHLC fetches native candles for the configured interval.
func (k *Kraken) OHLC(currency string) ([]core.Candle, error) {
	return k.fetchCandles(currency, 0)
}

// toFloat coerces the mixed numeric/string cells of a Kraken OHLC row.
func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
