package main

import (
	"fmt"
	"net/http"

	"github.com/newthinker/btcticker/internal/config"
	"github.com/newthinker/btcticker/internal/logger"
	"github.com/newthinker/btcticker/internal/metrics"
	"github.com/newthinker/btcticker/internal/price"
	"github.com/newthinker/btcticker/internal/provider"
	"go.uber.org/zap"
)

// newTicker wires config, logger, metrics and the provider rotation
// into an orchestrator for one CLI invocation. The fiat symbol and
// interval come from command arguments and override the config file.
func newTicker(fiat, interval string, enableTimeseries, enableOHLC bool) (*price.Price, error) {
	log := logger.Must(verbose)

	var cfg *config.Config
	var err error
	if cfgFile != "" {
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
	} else {
		cfg = config.Defaults()
	}

	if fiat != "" {
		cfg.Fiat = fiat
	}
	if interval != "" {
		cfg.Interval = interval
		cfg.OHLCInterval = interval
	}
	if service != "" {
		cfg.Service = service
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	providers, err := provider.Rotation(cfg.Providers, provider.Settings{
		Interval: cfg.Interval,
		DaysAgo:  cfg.DaysAgo,
		Logger:   log,
	})
	if err != nil {
		return nil, fmt.Errorf("building providers: %w", err)
	}

	reg := metrics.NewRegistry()
	if cfg.Metrics.Enabled {
		go func() {
			if err := http.ListenAndServe(cfg.Metrics.Listen, reg.Handler()); err != nil {
				log.Error("metrics listener failed", zap.Error(err))
			}
		}()
	}

	return price.New(price.Options{
		Fiat:             cfg.Fiat,
		DaysAgo:          cfg.DaysAgo,
		MinRefresh:       cfg.MinRefresh,
		OHLCInterval:     cfg.OHLCInterval,
		EnableTimeseries: enableTimeseries,
		EnableOHLC:       enableOHLC,
		Service:          cfg.Service,
		Providers:        providers,
		Logger:           log,
		Metrics:          reg,
	})
}
