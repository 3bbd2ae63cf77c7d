package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose int
	service string
)

var rootCmd = &cobra.Command{
	Use:   "btcticker",
	Short: "btcticker - Bitcoin price ticker",
	Long: `btcticker fetches the current and historical Bitcoin price from
interchangeable upstream providers (mempool.space, Kraken, Bit2Me),
with automatic fallback when a provider is unavailable.`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().IntVarP(&verbose, "verbose", "v", 3, "verbosity 0-4 (critical..debug)")
	rootCmd.PersistentFlags().StringVarP(&service, "service", "s", "", "provider to query first (mempool, kraken, bit2me)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
