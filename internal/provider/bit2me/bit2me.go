// Package bit2me adapts the Bit2Me market-data aggregator.
//
// Bit2Me prices everything in USD; other fiat currencies are converted
// through a rate table cached for a short TTL. API credentials are read
// from BIT2ME_API_KEY / BIT2ME_API_SECRET and, when absent, requests go
// out unsigned against the public endpoints.
package bit2me

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/newthinker/btcticker/internal/core"
	"go.uber.org/zap"
)

const (
	baseURL  = "https://gateway.bit2me.com"
	ratesTTL = 300 * time.Second
)

// chartTemporality maps interval strings to the chart endpoint's
// temporality parameter. Note "1m" means one month here, matching the
// upstream chart granularity, not one minute.
var chartTemporality = map[string]string{
	"1h":  "one-hour",
	"4h":  "four-hours",
	"12h": "twelve-hours",
	"1d":  "one-day",
	"1w":  "one-week",
	"1m":  "one-month",
	"3m":  "three-months",
	"6m":  "six-months",
	"1y":  "one-year",
	"max": "all-time",
}

// timeframeSeconds maps OHLC timeframes to their bucket width.
var timeframeSeconds = map[string]int64{
	"1H":  3600,
	"4H":  4 * 3600,
	"12H": 12 * 3600,
	"1D":  24 * 3600,
	"1W":  7 * 24 * 3600,
	"1M":  30 * 24 * 3600,
	"1Y":  365 * 24 * 3600,
}

// Bit2Me implements the provider interface for the Bit2Me aggregator.
type Bit2Me struct {
	client    *http.Client
	baseURL   string
	apiKey    string
	apiSecret string
	baseAsset string
	interval  string
	daysAgo   int
	log       *zap.Logger

	// fiat-rate cache, owned by the instance
	rates        map[string]float64
	ratesFetched time.Time

	now func() time.Time
}

// New creates a new Bit2Me provider.
func New(interval string, daysAgo int, log *zap.Logger) *Bit2Me {
	return &Bit2Me{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL:   baseURL,
		apiKey:    os.Getenv("BIT2ME_API_KEY"),
		apiSecret: os.Getenv("BIT2ME_API_SECRET"),
		baseAsset: "BTC",
		interval:  interval,
		daysAgo:   daysAgo,
		log:       log,
		now:       time.Now,
	}
}

// NewWithBaseURL creates a Bit2Me provider with custom base URL (for testing)
func NewWithBaseURL(interval string, daysAgo int, log *zap.Logger, url string) *Bit2Me {
	b := New(interval, daysAgo, log)
	b.baseURL = url
	return b
}

func (b *Bit2Me) Name() string {
	return "bit2me"
}

// sign attaches the authentication headers when credentials are
// configured. The signature is an HMAC-SHA512 over the SHA-256 digest
// of "nonce:requestURI".
func (b *Bit2Me) sign(req *http.Request) {
	if b.apiKey == "" {
		return
	}
	req.Header.Set("x-api-key", b.apiKey)
	nonce := strconv.FormatInt(b.now().UnixMilli(), 10)
	req.Header.Set("x-nonce", nonce)

	if b.apiSecret == "" {
		return
	}
	message := nonce + ":" + req.URL.RequestURI()
	digest := sha256.Sum256([]byte(message))
	mac := hmac.New(sha512.New, []byte(b.apiSecret))
	mac.Write(digest[:])
	req.Header.Set("api-signature", base64.StdEncoding.EncodeToString(mac.Sum(nil)))
}

func (b *Bit2Me) getJSON(path string, query url.Values, out any) error {
	u := b.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	b.sign(req)

	resp, err := b.client.Do(req)
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

// usdPrice fetches the USD spot price for the base asset.
// Payload shape: {"USD": {"BTC": [{"price": ...}, ...]}}
func (b *Bit2Me) usdPrice() (float64, error) {
	var payload map[string]map[string][]map[string]any
	if err := b.getJSON("/v3/currency/ticker/"+b.baseAsset, nil, &payload); err != nil {
		return 0, err
	}

	entries := payload["USD"][b.baseAsset]
	for _, entry := range entries {
		if price, ok := toFloat(entry["price"]); ok && price > 0 {
			return price, nil
		}
	}
	return 0, core.WrapError(core.ErrNoData, fmt.Errorf("no USD price for %s", b.baseAsset))
}

// decodeRates extracts a currency->rate map from the rate endpoint
// payload: [{"fiat": {"EUR": 0.92, ...}}, ...]
func decodeRates(payload []map[string]map[string]any) map[string]float64 {
	rates := make(map[string]float64)
	for _, entry := range payload {
		for code, value := range entry["fiat"] {
			if rate, ok := toFloat(value); ok {
				rates[strings.ToUpper(code)] = rate
			}
		}
	}
	return rates
}

func (b *Bit2Me) refreshRates() {
	var payload []map[string]map[string]any
	if err := b.getJSON("/v1/currency/rate", url.Values{"type": {"fiat"}}, &payload); err != nil {
		b.log.Warn("bit2me rate refresh failed", zap.Error(err))
		return
	}

	rates := decodeRates(payload)
	if len(rates) == 0 {
		return
	}
	rates["USD"] = 1.0
	b.rates = rates
	b.ratesFetched = b.now()
}

// fiatRate returns the USD->currency conversion rate. USD is always
// exactly 1.0 and never triggers a network call. Other rates come from
// the cached table, refreshed after ratesTTL.
func (b *Bit2Me) fiatRate(currency string) (float64, bool) {
	code := strings.ToUpper(currency)
	if code == "USD" {
		return 1.0, true
	}

	if len(b.rates) == 0 || b.now().Sub(b.ratesFetched) > ratesTTL {
		b.refreshRates()
	}
	if rate, ok := b.rates[code]; ok {
		return rate, true
	}

	// One more refresh in case the table was stale or incomplete.
	b.refreshRates()
	rate, ok := b.rates[code]
	return rate, ok
}

// Spot fetches the current price in the given currency, converting the
// USD ticker through the fiat-rate table.
func (b *Bit2Me) Spot(currency string) (float64, error) {
	usd, err := b.usdPrice()
	if err != nil {
		return 0, err
	}

	code := strings.ToUpper(currency)
	if code == "USD" {
		return usd, nil
	}

	rate, ok := b.fiatRate(code)
	if !ok {
		return 0, core.WrapError(core.ErrUnsupportedCurrency, fmt.Errorf("no fiat rate for %s", code))
	}
	return usd * rate, nil
}

// History fetches chart samples newer than the last existing
// timestamp. The chart encodes each point as
// [timestamp_ms, inverse_price, multiplier] where the real price is
// (1/inverse)*multiplier; points with a zero inverse are
// unrepresentable and skipped.
func (b *Bit2Me) History(currency string, existing []float64) []core.PriceSample {
	params := url.Values{"ticker": {b.baseAsset + "/" + strings.ToUpper(currency)}}
	if temporality, ok := chartTemporality[strings.ToLower(b.interval)]; ok {
		params.Set("temporality", temporality)
	}

	var rows [][]float64
	if err := b.getJSON("/v3/currency/chart", params, &rows); err != nil {
		b.log.Warn("bit2me chart request failed", zap.Error(err))
		return nil
	}

	var last float64
	if len(existing) > 0 {
		last = existing[len(existing)-1]
	}

	samples := make([]core.PriceSample, 0, len(rows))
	for _, row := range rows {
		if len(row) < 3 {
			continue
		}
		tsMs, inverse, multiplier := row[0], row[1], row[2]
		if inverse == 0 {
			continue
		}
		ts := tsMs / 1000
		if last > 0 && ts <= last {
			continue
		}
		samples = append(samples, core.PriceSample{
			Time:  time.UnixMilli(int64(tsMs)).UTC(),
			Price: (1 / inverse) * multiplier,
		})
	}
	return samples
}

// rateAt fetches the fiat rate valid at a specific time, used to
// convert the USD OHLC aggregate.
func (b *Bit2Me) rateAt(currency string, at time.Time) (float64, error) {
	if strings.ToUpper(currency) == "USD" {
		return 1.0, nil
	}

	params := url.Values{
		"type": {"fiat"},
		"time": {strconv.FormatInt(at.UnixMilli(), 10)},
	}
	var payload []map[string]map[string]any
	if err := b.getJSON("/v1/currency/rate", params, &payload); err != nil {
		return 0, err
	}

	rates := decodeRates(payload)
	rate, ok := rates[strings.ToUpper(currency)]
	if !ok {
		return 0, core.WrapError(core.ErrUnsupportedCurrency, fmt.Errorf("no rate for %s", currency))
	}
	return rate, nil
}

// OHLC fetches the aggregate for the current bucket. The endpoint
// reports USD values; they are converted with the rate at bucket time.
func (b *Bit2Me) OHLC(currency string) ([]core.Candle, error) {
	timeframe := strings.ToUpper(b.interval)
	if _, ok := timeframeSeconds[timeframe]; !ok {
		timeframe = "1H"
	}

	target := b.now().UTC()
	params := url.Values{
		"timeframe": {timeframe},
		"time":      {target.Format("2006-01-02T15:04:05.000Z")},
	}
	var values map[string]any
	if err := b.getJSON("/v1/currency/ohlca/"+b.baseAsset, params, &values); err != nil {
		return nil, err
	}

	rate, err := b.rateAt(currency, target)
	if err != nil {
		return nil, err
	}

	open, okO := toFloat(values["open"])
	high, okH := toFloat(values["high"])
	low, okL := toFloat(values["low"])
	closeP, okC := toFloat(values["close"])
	if !okO || !okH || !okL || !okC {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("incomplete ohlc payload"))
	}

	return []core.Candle{{
		Open:  open * rate,
		High:  high * rate,
		Low:   low * rate,
		Close: closeP * rate,
		Time:  target,
	}}, nil
}

// toFloat coerces the loosely typed JSON values Bit2Me returns.
func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
