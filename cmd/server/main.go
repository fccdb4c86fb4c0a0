package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "fabricstock",
	Short: "Draft service for fabric receipts and deliveries",
	Long: `fabricstock holds receipt and delivery drafts while they are edited,
checks every quantity against the stock of the source receipt, and submits
finished drafts to the inventory system of record.

Configuration is read from the environment and an optional .env file.`,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
