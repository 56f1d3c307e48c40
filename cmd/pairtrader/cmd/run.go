package cmd

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/pairtrader/broker"
	"github.com/rustyeddy/pairtrader/config"
	"github.com/rustyeddy/pairtrader/engine"
	"github.com/rustyeddy/pairtrader/feed"
	"github.com/rustyeddy/pairtrader/journal"
	"github.com/rustyeddy/pairtrader/market"
	"github.com/rustyeddy/pairtrader/model"
	"github.com/rustyeddy/pairtrader/order"
	"github.com/rustyeddy/pairtrader/risk"
	"github.com/rustyeddy/pairtrader/sim"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Replay a price file through the full decision pipeline",
	Long: `Run the pairs-trading engine over a historical price file.

The config file sets thresholds, capital policy and risk rules; the params
file carries the modeled pair parameters; the tick file supplies prices
(time,instrument,bid,ask, optionally .xz compressed).

Example:
  pairtrader run -f run.yaml -p params.yaml -t prices.csv.xz`,
	RunE: runRun,
}

var (
	runConfigPath string
	runParamsPath string
	runTicksPath  string
	runCloseEnd   bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runConfigPath, "config", "f", "", "path to config file (YAML or JSON) (required)")
	runCmd.Flags().StringVarP(&runParamsPath, "params", "p", "", "path to pair-parameters file (required)")
	runCmd.Flags().StringVarP(&runTicksPath, "ticks", "t", "", "price file (time,instrument,bid,ask) (required)")
	runCmd.Flags().BoolVar(&runCloseEnd, "close-end", true, "close all open positions at end of run")
	runCmd.MarkFlagRequired("config")
	runCmd.MarkFlagRequired("params")
	runCmd.MarkFlagRequired("ticks")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(runConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	params, err := model.FileSource{Path: runParamsPath}.Fetch()
	if err != nil {
		return fmt.Errorf("load params: %w", err)
	}

	ticks, err := feed.ReadTicks(runTicksPath)
	if err != nil {
		return fmt.Errorf("load ticks: %w", err)
	}
	sessions := feed.Sessions(ticks)
	if len(sessions) == 0 {
		return fmt.Errorf("tick file %s is empty", runTicksPath)
	}

	runID := uuid.NewString()
	fmt.Printf("Run %s\n", runID)
	fmt.Printf("  Account: %s ($%.2f %s)\n", cfg.Account.ID, cfg.Account.InitialCapital, cfg.Account.Currency)
	fmt.Printf("  Pairs: %d, sessions: %d\n", len(params), len(sessions))
	fmt.Println()

	jnl, err := openJournal(cfg)
	if err != nil {
		return fmt.Errorf("create journal: %w", err)
	}
	defer jnl.Close()

	store := market.NewTickStore()
	catalog := market.NewCatalog(market.InstrumentMeta{
		LotSize:         cfg.Margin.LotSize,
		MinimumTrade:    cfg.Margin.MinimumTrade,
		LongMarginRate:  cfg.Margin.LongRate,
		ShortMarginRate: cfg.Margin.ShortRate,
	})

	paper := sim.NewPaper(broker.Account{
		ID:       cfg.Account.ID,
		Currency: cfg.Account.Currency,
		Balance:  cfg.Account.InitialCapital,
		Equity:   cfg.Account.InitialCapital,
	}, store, catalog, nil)

	coord := engine.New(cfg, paper, store, catalog, jnl, runID)
	paper.Notify(coord.Queue().Push)
	coord.Refresh(params)

	ctx := context.Background()
	vol := newVolWindow(20)

	for _, session := range sessions {
		now := session[0].Time
		for _, t := range session {
			store.Set(t)
		}

		acct, err := paper.GetAccount(ctx)
		if err != nil {
			return fmt.Errorf("account at %s: %w", now, err)
		}
		mc := risk.MarketConditions{Volatility: vol.observe(acct.Equity)}

		if err := coord.Tick(ctx, now, mc); err != nil {
			return fmt.Errorf("tick at %s: %w", now, err)
		}
	}

	last := sessions[len(sessions)-1][0].Time
	if runCloseEnd {
		n := coord.CloseAll(ctx, last, order.ReasonNormal)
		coord.Drain()
		if n > 0 {
			fmt.Printf("Closed %d positions at end of run\n", n)
		}
	}

	acct, _ := paper.GetAccount(ctx)
	fmt.Printf("\nRun complete!\n")
	fmt.Printf("  Balance: $%.2f\n", acct.Balance)
	fmt.Printf("  Equity: $%.2f\n", acct.Equity)
	fmt.Printf("  Profit/Loss: $%.2f\n", acct.Equity-cfg.Account.InitialCapital)
	if cfg.Journal.Type == "csv" {
		fmt.Printf("\nResults saved to:\n  - %s\n  - %s\n", cfg.Journal.TradesFile, cfg.Journal.EquityFile)
	} else {
		fmt.Printf("\nResults saved to: %s (run %s)\n", cfg.Journal.DBPath, runID)
	}
	return nil
}

func openJournal(cfg *config.Config) (journal.Journal, error) {
	if cfg.Journal.Type == "csv" {
		return journal.NewCSV(cfg.Journal.TradesFile, cfg.Journal.EquityFile)
	}
	return journal.NewSQLite(cfg.Journal.DBPath)
}

// volWindow feeds the entry gate a realized volatility of per-session equity
// returns over a trailing window.
type volWindow struct {
	size   int
	rets   []float64
	lastEq float64
}

func newVolWindow(size int) *volWindow {
	return &volWindow{size: size}
}

func (w *volWindow) observe(equity float64) float64 {
	if w.lastEq > 0 {
		w.rets = append(w.rets, equity/w.lastEq-1)
		if len(w.rets) > w.size {
			w.rets = w.rets[1:]
		}
	}
	w.lastEq = equity

	if len(w.rets) < 2 {
		return 0
	}
	mean := 0.0
	for _, r := range w.rets {
		mean += r
	}
	mean /= float64(len(w.rets))
	varsum := 0.0
	for _, r := range w.rets {
		varsum += (r - mean) * (r - mean)
	}
	return math.Sqrt(varsum / float64(len(w.rets)-1))
}
