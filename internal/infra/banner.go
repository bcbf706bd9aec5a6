package infra

import (
	"fmt"
)

// ANSI color codes
const (
	ColorReset = "\033[0m"
	ColorGreen = "\033[32m"
	ColorCyan  = "\033[36m"
)

// PrintBanner displays the startup banner.
func PrintBanner(cfg *Config) {
	fmt.Println()
	fmt.Printf("%s#########################################################%s\n", ColorCyan, ColorReset)
	fmt.Printf("%s#                                                       #%s\n", ColorCyan, ColorReset)
	fmt.Printf("%s#              BTC Arena Trading Contest                #%s\n", ColorCyan, ColorReset)
	fmt.Printf("%s#                                                       #%s\n", ColorCyan, ColorReset)
	fmt.Printf("%s#   SYMBOL:  %-42s #%s\n", ColorCyan, cfg.Oracle.Symbol, ColorReset)
	fmt.Printf("%s#   CAPITAL: $%-41s #%s\n", ColorCyan, cfg.Contest.StartingCapitalUSD, ColorReset)
	fmt.Printf("%s#   VERSION: %-42s #%s\n", ColorCyan, cfg.App.Version, ColorReset)
	fmt.Printf("%s#                                                       #%s\n", ColorCyan, ColorReset)
	fmt.Printf("%s#   %sALL BALANCES ARE SIMULATED. NO REAL MONEY MOVES.%s%s   #%s\n", ColorCyan, ColorGreen, ColorReset, ColorCyan, ColorReset)
	fmt.Printf("%s#########################################################%s\n", ColorCyan, ColorReset)
	fmt.Println()
}
