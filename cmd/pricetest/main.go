package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"btcarena/internal/infra"
)

// Standalone smoke test for the price oracle. Hits the live REST API,
// so it needs network access.
func main() {
	cfg := infra.DefaultConfig()
	oracle := infra.NewPriceOracle(cfg.Oracle.RestURL, cfg.Oracle.Symbol, cfg.QuoteTTL())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	quote, err := oracle.Quote(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "quote failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("%s = %s USD (as of %s)\n", cfg.Oracle.Symbol, quote.Price, quote.ObservedAt.Format(time.RFC3339))

	candles, err := oracle.Klines(ctx, "1h", 6)
	if err != nil {
		fmt.Fprintf(os.Stderr, "klines failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("recent 1h candles:")
	for _, c := range candles {
		fmt.Printf("  %s  O=%s H=%s L=%s C=%s V=%s\n",
			c.OpenTime.Format("01-02 15:04"), c.Open, c.High, c.Low, c.Close, c.Volume)
	}
}
