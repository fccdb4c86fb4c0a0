package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rongwang/fabricstock/internal/config"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the inventory tables used by the postgres backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()

		db, err := config.SetupDatabase(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := config.CreateTables(db); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "tables ready in %s\n", cfg.Database.DBName)
		return nil
	},
}
