package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bimatlas/core/internal/store/relational"
)

var (
	ingestConfigPath string
	ingestDialect    string
	ingestBranchID   int64
	ingestLabel      string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [ifc-file]",
	Short: "ingest an IFC 4.3 STEP file as a new revision on a branch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(rootCtx, ingestConfigPath, relational.Dialect(ingestDialect))
		if err != nil {
			return err
		}
		defer func() { _ = a.closeFunc() }()

		var label *string
		if ingestLabel != "" {
			label = &ingestLabel
		}

		result, err := a.writer.Ingest(rootCtx, ingestBranchID, args[0], label)
		if err != nil {
			return fmt.Errorf("ingesting %s: %w", args[0], err)
		}

		fmt.Printf("revision %d: +%d ~%d -%d =%d (edges: %d)\n",
			result.RevisionID,
			result.Counts.Added, result.Counts.Modified, result.Counts.Deleted, result.Counts.Unchanged,
			result.Counts.EdgesCreated,
		)
		for _, note := range result.Diagnostics.Notes {
			fmt.Printf("  note: %s %s %s\n", note.Kind, note.Subject, note.Message)
		}
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestConfigPath, "config", "", "path to bimatlas.toml")
	ingestCmd.Flags().StringVar(&ingestDialect, "dialect", "sqlite", "relational dialect: postgres or sqlite")
	ingestCmd.Flags().Int64Var(&ingestBranchID, "branch", 0, "target branch id")
	ingestCmd.Flags().StringVar(&ingestLabel, "label", "", "optional human label for the new revision")
	_ = ingestCmd.MarkFlagRequired("branch")
}
