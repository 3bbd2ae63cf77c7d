package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	refreshTotal     *prometheus.CounterVec
	providerFailures *prometheus.CounterVec
	spotPrice        *prometheus.GaugeVec
	seriesSamples    prometheus.Gauge
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		refreshTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "btcticker_refresh_total",
				Help: "Total number of price refresh attempts by result",
			},
			[]string{"result"},
		),

		providerFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "btcticker_provider_failures_total",
				Help: "Total number of failed provider fetches",
			},
			[]string{"provider"},
		),

		spotPrice: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "btcticker_spot_price",
				Help: "Last fetched spot price by currency",
			},
			[]string{"currency"},
		),

		seriesSamples: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "btcticker_series_samples",
				Help: "Number of samples held in the price time series",
			},
		),
	}

	reg.MustRegister(r.refreshTotal)
	reg.MustRegister(r.providerFailures)
	reg.MustRegister(r.spotPrice)
	reg.MustRegister(r.seriesSamples)

	return r
}

// RecordRefresh increments the refresh counter with the outcome.
func (r *Registry) RecordRefresh(ok bool) {
	if r == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	r.refreshTotal.WithLabelValues(result).Inc()
}

// RecordProviderFailure increments the failure counter for a provider.
func (r *Registry) RecordProviderFailure(provider string) {
	if r == nil {
		return
	}
	r.providerFailures.WithLabelValues(provider).Inc()
}

// SetSpotPrice records the last fetched spot price for a currency.
func (r *Registry) SetSpotPrice(currency string, price float64) {
	if r == nil {
		return
	}
	r.spotPrice.WithLabelValues(currency).Set(price)
}

// SetSeriesSamples records the current time series length.
func (r *Registry) SetSeriesSamples(n int) {
	if r == nil {
		return
	}
	r.seriesSamples.Set(float64(n))
}

// Handler returns an HTTP handler exposing the registry.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.Registry, promhttp.HandlerOpts{})
}
