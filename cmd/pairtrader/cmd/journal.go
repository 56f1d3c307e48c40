package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/pairtrader/journal"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query trade journal data",
	Long: `Query and display trade journal records from a SQLite database.

Subcommands:
  trade  - Get details of a specific trade by ID
  report - Summarize a run's closed trades

Examples:
  pairtrader journal trade <trade-id>
  pairtrader journal report <run-id>`,
}

var journalTradeCmd = &cobra.Command{
	Use:   "trade <trade-id>",
	Short: "Get details of a specific trade",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalTrade,
}

var journalReportCmd = &cobra.Command{
	Use:   "report <run-id>",
	Short: "Summarize a run's closed trades",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalReport,
}

var journalDBPath string

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalTradeCmd)
	journalCmd.AddCommand(journalReportCmd)

	journalCmd.PersistentFlags().StringVarP(&journalDBPath, "db", "d", "./pairtrader.sqlite", "path to SQLite journal DB")
}

func runJournalTrade(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	rec, err := j.GetTrade(args[0])
	if err != nil {
		return fmt.Errorf("get trade: %w", err)
	}

	fmt.Printf("Trade %s (run %s)\n", rec.TradeID, rec.RunID)
	fmt.Printf("  Pair: %s\n", rec.Pair)
	fmt.Printf("  Leg A: %s %+.0f @ %.4f -> %.4f\n", rec.InstrumentA, rec.UnitsA, rec.EntryPriceA, rec.ExitPriceA)
	fmt.Printf("  Leg B: %s %+.0f @ %.4f -> %.4f\n", rec.InstrumentB, rec.UnitsB, rec.EntryPriceB, rec.ExitPriceB)
	fmt.Printf("  Opened: %s\n", rec.OpenTime.Format("2006-01-02 15:04:05"))
	fmt.Printf("  Closed: %s (%s, %.1f days)\n", rec.CloseTime.Format("2006-01-02 15:04:05"), rec.Reason, rec.HoldingDays)
	fmt.Printf("  Realized P/L: $%.2f (margin $%.2f)\n", rec.RealizedPL, rec.MarginCost)
	return nil
}

func runJournalReport(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	sum, err := j.SummarizeRun(args[0])
	if err != nil {
		return fmt.Errorf("summarize run: %w", err)
	}

	fmt.Printf("Run %s\n", sum.RunID)
	fmt.Printf("  Trades: %d (%d wins / %d losses)\n", sum.Trades, sum.Wins, sum.Losses)
	fmt.Printf("  Gross profit: $%.2f\n", sum.GrossProfit)
	fmt.Printf("  Gross loss: $%.2f\n", sum.GrossLoss)
	fmt.Printf("  Net P/L: $%.2f\n", sum.NetPL)
	if sum.ProfitFactor > 0 {
		fmt.Printf("  Profit factor: %.2f\n", sum.ProfitFactor)
	}
	return nil
}
