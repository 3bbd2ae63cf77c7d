package main

import (
	"fmt"
	"time"

	"github.com/newthinker/btcticker/internal/core"
	"github.com/spf13/cobra"
)

var ohlcCmd = &cobra.Command{
	Use:   "ohlc [currency] [interval]",
	Short: "Print OHLC candle data",
	Args:  cobra.ExactArgs(2),
	RunE:  runOHLC,
}

var ohlcvCmd = &cobra.Command{
	Use:   "ohlcv [currency] [interval]",
	Short: "Print OHLC candle data with a volume column",
	Args:  cobra.ExactArgs(2),
	RunE:  runOHLCV,
}

func init() {
	rootCmd.AddCommand(ohlcCmd)
	rootCmd.AddCommand(ohlcvCmd)
}

func fetchCandles(fiat, interval string, withVolume bool) ([]core.Candle, error) {
	t, err := newTicker(fiat, interval, true, true)
	if err != nil {
		return nil, err
	}
	if !t.Refresh() {
		return nil, fmt.Errorf("all providers failed to refresh")
	}
	if withVolume {
		return t.CandlesWithVolume(), nil
	}
	return t.Candles(), nil
}

func runOHLC(cmd *cobra.Command, args []string) error {
	candles, err := fetchCandles(args[0], args[1], false)
	if err != nil {
		return err
	}
	for _, c := range candles {
		fmt.Printf("%s  open=%.2f high=%.2f low=%.2f close=%.2f\n",
			c.Time.UTC().Format(time.RFC3339), c.Open, c.High, c.Low, c.Close)
	}
	return nil
}

func runOHLCV(cmd *cobra.Command, args []string) error {
	candles, err := fetchCandles(args[0], args[1], true)
	if err != nil {
		return err
	}
	for _, c := range candles {
		fmt.Printf("%s  open=%.2f high=%.2f low=%.2f close=%.2f volume=%.2f\n",
			c.Time.UTC().Format(time.RFC3339), c.Open, c.High, c.Low, c.Close, c.Volume)
	}
	return nil
}
