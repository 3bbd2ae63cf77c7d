package kraken

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/0/public/Ticker", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"error": []string{},
			"result": map[string]any{
				"XXBTZEUR": map[string]any{
					"c": []string{"42000.5", "0.01"},
				},
			},
		})
	})

	mux.HandleFunc("/0/public/OHLC", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"error": []string{},
			"result": map[string]any{
				"XXBTZEUR": [][]any{
					{1609459200, "29000", "29500", "28500", "29200", "29100", "10.5", 120},
					{1609462800, "29200", "29600", "28900", "29450", "29300", "8.3", 98},
				},
				"last": 1609462800,
			},
		})
	})

	return httptest.NewServer(mux)
}

func TestKraken_New_InvalidInterval(t *testing.T) {
	if _, err := New("bogus", 1, zap.NewNop()); err == nil {
		t.Error("expected hard error for malformed interval")
	}
}

func TestKraken_Name(t *testing.T) {
	k, err := New("1h", 1, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if k.Name() != "kraken" {
		t.Errorf("expected 'kraken', got '%s'", k.Name())
	}
}

func TestKraken_Pair(t *testing.T) {
	k, _ := New("1h", 1, zap.NewNop())
	if got := k.pair("eur"); got != "XBTEUR" {
		t.Errorf("expected XBTEUR, got %s", got)
	}
	if got := k.pair("USD"); got != "XBTUSD" {
		t.Errorf("expected XBTUSD, got %s", got)
	}
}

func TestKraken_Spot(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	k, err := NewWithBaseURL("1h", 1, zap.NewNop(), srv.URL)
	if err != nil {
		t.Fatal(err)
	}

	price, err := k.Spot("EUR")
	if err != nil {
		t.Fatalf("Spot failed: %v", err)
	}
	if price != 42000.5 {
		t.Errorf("expected 42000.5, got %f", price)
	}
}

func TestKraken_Spot_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"error":  []string{"EQuery:Unknown asset pair"},
			"result": map[string]any{},
		})
	}))
	defer srv.Close()

	k, _ := NewWithBaseURL("1h", 1, zap.NewNop(), srv.URL)
	if _, err := k.Spot("XXX"); err == nil {
		t.Error("expected error from kraken error array")
	}
}

func TestKraken_OHLC(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	k, _ := NewWithBaseURL("1h", 1, zap.NewNop(), srv.URL)
	candles, err := k.OHLC("EUR")
	if err != nil {
		t.Fatalf("OHLC failed: %v", err)
	}
	if len(candles) != 2 {
		t.Fatalf("expected 2 candles, got %d", len(candles))
	}

	c := candles[0]
	if c.Open != 29000 || c.High != 29500 || c.Low != 28500 || c.Close != 29200 {
		t.Errorf("unexpected candle: %+v", c)
	}
	if !c.HasVolume || c.Volume != 10.5 {
		t.Errorf("expected native volume 10.5, got %+v", c)
	}
	if !c.Time.Equal(time.Unix(1609459200, 0).UTC()) {
		t.Errorf("unexpected candle time: %s", c.Time)
	}
}

func TestKraken_History(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	k, _ := NewWithBaseURL("1h", 1, zap.NewNop(), srv.URL)
	samples := k.History("EUR", nil)
	if len(samples) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(samples))
	}
	if samples[0].Price != 29200 || samples[1].Price != 29450 {
		t.Errorf("expected candle closes, got %+v", samples)
	}
}

func TestKraken_History_SkipsExisting(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	k, _ := NewWithBaseURL("1h", 1, zap.NewNop(), srv.URL)
	samples := k.History("EUR", []float64{1609459200})
	if len(samples) != 1 {
		t.Fatalf("expected 1 sample after cutoff, got %d", len(samples))
	}
	if samples[0].Price != 29450 {
		t.Errorf("unexpected sample: %+v", samples[0])
	}
}

func TestKraken_History_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	k, _ := NewWithBaseURL("1h", 1, zap.NewNop(), srv.URL)
	if samples := k.History("EUR", nil); len(samples) != 0 {
		t.Errorf("expected empty history on failure, got %d samples", len(samples))
	}
}
