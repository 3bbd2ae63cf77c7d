package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history [currency] [interval]",
	Short: "Print the collected price time series",
	Args:  cobra.ExactArgs(2),
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	t, err := newTicker(args[0], args[1], true, false)
	if err != nil {
		return err
	}

	if !t.Refresh() {
		return fmt.Errorf("all providers failed to refresh")
	}

	for _, s := range t.Samples() {
		fmt.Printf("%s  %.2f\n", s.Time.UTC().Format(time.RFC3339), s.Price)
	}
	if change := t.PriceChange(); change != "" {
		fmt.Printf("change: %s\n", change)
	}
	return nil
}
