// Command backtest runs the simulator over a CSV candle file and prints
// the report.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"quant-trading-engine/internal/backtest"
	"quant-trading-engine/internal/market"
	"quant-trading-engine/internal/signals"
)

func main() {
	var (
		csvPath  = flag.String("csv", "", "path to candle CSV (timestamp,open,high,low,close,volume)")
		quantity = flag.Float64("qty", 1, "quantity per trade")
		maxDaily = flag.Int("max-daily", 0, "max trades per day, 0 for unlimited")
		intraday = flag.Bool("intraday", true, "force close positions at end of day")
		pretty   = flag.Bool("pretty", true, "indent JSON output")
	)
	flag.Parse()

	if *csvPath == "" {
		fmt.Fprintln(os.Stderr, "usage: backtest -csv <file> [-qty N] [-max-daily N]")
		os.Exit(2)
	}

	candles, err := market.LoadCandlesCSV(*csvPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading candles: %v\n", err)
		os.Exit(1)
	}

	cfg := backtest.DefaultConfig()
	cfg.Quantity = *quantity
	cfg.MaxTradesPerDay = *maxDaily
	cfg.Intraday = *intraday

	sim := backtest.NewSimulator(cfg, signals.DefaultRegistry())
	report, err := sim.Run(context.Background(), candles)
	if err != nil {
		fmt.Fprintf(os.Stderr, "backtest: %v\n", err)
		os.Exit(1)
	}

	var out []byte
	if *pretty {
		out, err = json.MarshalIndent(report, "", "  ")
	} else {
		out, err = json.Marshal(report)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "encoding report: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}
