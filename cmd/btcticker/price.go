package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var priceCmd = &cobra.Command{
	Use:   "price [currency]",
	Short: "Print the current Bitcoin price",
	Args:  cobra.ExactArgs(1),
	RunE:  runPrice,
}

func init() {
	rootCmd.AddCommand(priceCmd)
}

func runPrice(cmd *cobra.Command, args []string) error {
	t, err := newTicker(args[0], "", false, false)
	if err != nil {
		return err
	}

	out, err := t.PriceNow()
	if err != nil {
		return fmt.Errorf("fetching price: %w", err)
	}
	fmt.Println(out)
	return nil
}
