package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "pairtrader",
	Short: "A statistical pairs-trading engine and research platform",
	Long: `Pairtrader is a pairs-trading decision engine written in Go.

It provides tools for:
  - Replaying historical price files through the full decision pipeline
  - Mean-reversion entry/exit signals over cointegrated pairs
  - Quality-ranked capital allocation with a fixed reserve
  - Layered risk rules with portfolio and per-pair cooldowns
  - Trade journals and equity curves in CSV or SQLite

Complete documentation is available at https://github.com/rustyeddy/pairtrader`,
}

var verbose bool

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	cobra.OnInitialize(func() {
		if verbose {
			logrus.SetLevel(logrus.DebugLevel)
		}
	})
}
