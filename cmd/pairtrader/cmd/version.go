package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

const version = "0.3.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  `Display the current version of the pairtrader CLI.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("pairtrader version %s\n", version)
		fmt.Println("A statistical pairs-trading engine and research platform")
		fmt.Println("https://github.com/rustyeddy/pairtrader")
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
