// Package mempool adapts the mempool.space blockchain explorer's price
// feed. The feed has no candle data; OHLC is left to the caller to
// derive from the time series.
package mempool

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

const baseURL = "https://mempool.space"

// Mempool implements the provider interface for mempool.space.
type Mempool struct {
	client   *http.Client
	baseURL  string
	interval time.Duration
	daysAgo  int
	log      *zap.Logger

	now func() time.Time
}

// New creates a new mempool.space provider. The interval is parsed
// eagerly; a malformed interval is a configuration error.
func New(interval string, daysAgo int, log *zap.Logger) (*Mempool, error) {
	d, err := core.ParseInterval(interval)
	if err != nil {
		return nil, err
	}
	return &Mempool{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL:  baseURL,
		interval: d,
		daysAgo:  daysAgo,
		log:      log,
		now:      time.Now,
	}, nil
}

// NewWithBaseURL creates a mempool provider with custom base URL (for testing)
func NewWithBaseURL(interval string, daysAgo int, log *zap.Logger, url string) (*Mempool, error) {
	m, err := New(interval, daysAgo, log)
	if err != nil {
		return nil, err
	}
	m.baseURL = url
	return m, nil
}

func (m *Mempool) Name() string {
	return "mempool"
}

func (m *Mempool) getJSON(path string, query url.Values, out any) error {
	u := m.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := m.client.Do(req)
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

// Spot fetches the current price map and picks the requested currency.
func (m *Mempool) Spot(currency string) (float64, error) {
	var prices map[string]float64
	if err := m.getJSON("/api/v1/prices", nil, &prices); err != nil {
		return 0, err
	}

	price, ok := prices[strings.ToUpper(currency)]
	if !ok || price <= 0 {
		return 0, core.WrapError(core.ErrUnsupportedCurrency,
			fmt.Errorf("no %s price in feed", strings.ToUpper(currency)))
	}
	return price, nil
}

// timeVector builds the timestamps to query, stepping by the interval.
// With existing history the vector resumes two intervals after the
// last known sample so the next uncovered bucket is hit.
func (m *Mempool) timeVector(existing []float64) []int64 {
	step := int64(m.interval / time.Second)
	now := m.now().UTC().Unix()

	var start int64
	if len(existing) > 0 {
		start = int64(existing[len(existing)-1]) + 2*step
	} else {
		start = m.now().UTC().AddDate(0, 0, -m.daysAgo).Unix()
	}

	var vector []int64
	for ts := start; ts < now; ts += step {
		vector = append(vector, ts)
	}
	return vector
}

// historicalPrice fetches the price closest to one timestamp.
// Payload shape: {"prices": [{"time": ..., "EUR": ...}], ...}
func (m *Mempool) historicalPrice(currency string, ts int64) (float64, error) {
	query := url.Values{
		"currency":  {currency},
		"timestamp": {strconv.FormatInt(ts, 10)},
	}
	var payload struct {
		Prices []map[string]float64 `json:"prices"`
	}
	if err := m.getJSON("/api/v1/historical-price", query, &payload); err != nil {
		return 0, err
	}
	if len(payload.Prices) == 0 {
		return 0, core.WrapError(core.ErrNoData, fmt.Errorf("no price at %d", ts))
	}
	return payload.Prices[0][currency], nil
}

// History walks the time vector with one request per timestamp. A
// failed request ends the walk; whatever was collected so far is
// returned for merging.
func (m *Mempool) History(currency string, existing []float64) []core.PriceSample {
	code := strings.ToUpper(currency)
	vector := m.timeVector(existing)
	m.log.Info("fetching historical prices",
		zap.String("currency", code),
		zap.Int("points", len(vector)),
	)

	samples := make([]core.PriceSample, 0, len(vector))
	for _, ts := range vector {
		price, err := m.historicalPrice(code, ts)
		if err != nil {
			m.log.Warn("historical price fetch failed",
				zap.Int64("timestamp", ts),
				zap.Error(err),
			)
			break
		}
		if price <= 0 {
			continue
		}
		samples = append(samples, core.PriceSample{
			Time:  time.Unix(ts, 0).UTC(),
			Price: price,
		})
	}
	return samples
}

// OHLC is unsupported; the explorer feed exposes raw prices only.
func (m *Mempool) OHLC(currency string) ([]core.Candle, error) {
	return nil, core.ErrNoData
}
