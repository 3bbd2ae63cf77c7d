package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/newthinker/btcticker/internal/core"
	"github.com/spf13/viper"
)

type Config struct {
	Fiat         string        `mapstructure:"fiat"`
	Service      string        `mapstructure:"service"`
	Interval     string        `mapstructure:"interval"`
	OHLCInterval string        `mapstructure:"ohlc_interval"`
	DaysAgo      int           `mapstructure:"days_ago"`
	MinRefresh   time.Duration `mapstructure:"min_refresh"`
	Providers    []string      `mapstructure:"providers"`
	Metrics      MetricsConfig `mapstructure:"metrics"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}

// Load reads configuration from file, layered over the defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Support environment variable overrides
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	cfg := Defaults()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return cfg, nil
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		Fiat:         "EUR",
		Service:      "mempool",
		Interval:     "1h",
		OHLCInterval: "1h",
		DaysAgo:      1,
		MinRefresh:   120 * time.Second,
		Providers:    []string{"mempool", "kraken", "bit2me"},
		Metrics: MetricsConfig{
			Enabled: false,
			Listen:  ":9090",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Fiat == "" {
		return core.WrapError(core.ErrConfigMissing, fmt.Errorf("fiat currency is required"))
	}
	if _, err := core.ParseInterval(c.Interval); err != nil {
		return core.WrapError(core.ErrConfigInvalid, err)
	}
	if _, err := core.ParseInterval(c.OHLCInterval); err != nil {
		return core.WrapError(core.ErrConfigInvalid, err)
	}
	if c.DaysAgo < 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("days_ago must be at least 1, got %d", c.DaysAgo))
	}
	if c.MinRefresh < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("min_refresh cannot be negative, got %s", c.MinRefresh))
	}
	if len(c.Providers) == 0 {
		return core.WrapError(core.ErrConfigMissing, fmt.Errorf("at least one provider is required"))
	}

	found := false
	for _, p := range c.Providers {
		if p == c.Service {
			found = true
			break
		}
	}
	if !found {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("service %q is not in the provider rotation %v", c.Service, c.Providers))
	}

	return nil
}
