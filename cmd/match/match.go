// Package match handles the auto-match command
package match

import (
	"context"

	"finrecon/bankrecon/cmd/common"
	"finrecon/bankrecon/cmd/root"
	"finrecon/bankrecon/internal/config"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var statementID string

// Cmd represents the match command
var Cmd = &cobra.Command{
	Use:   "match",
	Short: "Run the automatic matching pass over a statement",
	Long:  `Run the automatic matching pass over an imported statement and print the summary.`,
	Run:   matchFunc,
}

func init() {
	Cmd.Flags().StringVarP(&statementID, "statement", "s", "", "Statement ID to match")
	_ = Cmd.MarkFlagRequired("statement")
}

func matchFunc(cmd *cobra.Command, args []string) {
	id, err := uuid.Parse(statementID)
	if err != nil {
		root.Log.Fatalf("Invalid statement ID %q: %v", statementID, err)
	}

	cfg, err := config.Load()
	if err != nil {
		root.Log.Fatalf("Error loading configuration: %v", err)
	}

	svc, err := common.BuildService(cfg, root.Log)
	if err != nil {
		root.Log.Fatalf("Error building service: %v", err)
	}

	summary, err := svc.AutoMatch(context.Background(), id)
	if err != nil {
		root.Log.Fatalf("Auto-match failed: %v", err)
	}

	root.Log.Infof("Matched %d, partial %d, ambiguous %d, skipped %d, errors %d",
		summary.Matched, summary.Partial, summary.Ambiguous, summary.Skipped, summary.Errors)

	report, err := svc.Report(context.Background(), id)
	if err != nil {
		root.Log.Fatalf("Report failed: %v", err)
	}
	root.Log.Infof("Match rate: %.1f%% (%d of %d transactions resolved)",
		report.MatchRate, report.MatchedTransactions+report.PartialTransactions, report.TotalTransactions)
}
