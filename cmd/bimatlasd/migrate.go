package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bimatlas/core/internal/store/relational"
	"github.com/bimatlas/core/internal/store/relational/migrations"
)

var (
	migrateConfigPath string
	migrateDialect     string
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "apply schema and follow-on migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(rootCtx, migrateConfigPath, relational.Dialect(migrateDialect))
		if err != nil {
			return err
		}
		defer func() { _ = a.closeFunc() }()

		if err := migrations.Run(rootCtx, a.rel.DB()); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		fmt.Println("migrations applied")
		return nil
	},
}

func init() {
	migrateCmd.Flags().StringVar(&migrateConfigPath, "config", "", "path to bimatlas.toml")
	migrateCmd.Flags().StringVar(&migrateDialect, "dialect", "sqlite", "relational dialect: postgres or sqlite")
}
