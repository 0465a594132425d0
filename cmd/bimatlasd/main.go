// Command bimatlasd is the BimAtlas daemon: a cobra root command wrapping
// the serve/ingest/migrate subcommands, grounded on the teacher's
// cmd/bd/main.go root-command-plus-signal-aware-context shape.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var rootCtx context.Context

var rootCmd = &cobra.Command{
	Use:   "bimatlasd",
	Short: "bimatlasd - versioned IFC 4.3 ingestion and query daemon",
	Long:  "Ingests IFC 4.3 building models into a bitemporal store and serves point/range/filter/tree/diff/streaming queries over them.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		rootCtx = ctx
		cmd.Root().PersistentPostRunE = func(*cobra.Command, []string) error {
			cancel()
			return nil
		}
	},
}

func main() {
	rootCmd.AddCommand(serveCmd, ingestCmd, migrateCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
