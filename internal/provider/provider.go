// Package provider defines the uniform capability implemented by every
// upstream price source and the registry used to build the fallback
// rotation.
package provider

import (
	"fmt"

	"github.com/newthinker/btcticker/internal/core"
	"github.com/newthinker/btcticker/internal/provider/bit2me"
	"github.com/newthinker/btcticker/internal/provider/kraken"
	"github.com/newthinker/btcticker/internal/provider/mempool"
	"go.uber.org/zap"
)

// Provider is implemented by each upstream adapter.
//
// Failure semantics: transport faults, non-2xx responses, malformed
// payloads and unsupported currencies are all converted at this
// boundary. Spot and OHLC surface them as a plain error the caller
// must not inspect further; History logs and returns an empty slice.
// The orchestrator applies the same fallback whatever the cause was.
type Provider interface {
	// Name returns the provider identifier (e.g., "kraken", "mempool")
	Name() string

	// Spot fetches the current price of one BTC in the given currency.
	Spot(currency string) (float64, error)

	// History fetches price samples strictly newer than the last entry
	// of existing (unix seconds). With no existing timestamps a
	// provider-defined default lookback window applies.
	History(currency string, existing []float64) []core.PriceSample

	// OHLC fetches native candle data. Providers without candle
	// support return core.ErrNoData and the caller resamples instead.
	OHLC(currency string) ([]core.Candle, error)
}

// Settings carries the knobs shared by all provider constructors.
type Settings struct {
	Interval string
	DaysAgo  int
	Logger   *zap.Logger
}

// New builds a single provider by identifier.
func New(name string, s Settings) (Provider, error) {
	switch name {
	case "mempool":
		return mempool.New(s.Interval, s.DaysAgo, s.Logger)
	case "kraken":
		return kraken.New(s.Interval, s.DaysAgo, s.Logger)
	case "bit2me":
		return bit2me.New(s.Interval, s.DaysAgo, s.Logger), nil
	default:
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown provider %q", name))
	}
}

// Rotation builds the fallback rotation from the configured provider
// identifiers, preserving their order. The rotation operates over
// whatever set is configured, not a fixed triple.
func Rotation(names []string, s Settings) ([]Provider, error) {
	providers := make([]Provider, 0, len(names))
	for _, name := range names {
		p, err := New(name, s)
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	return providers, nil
}
