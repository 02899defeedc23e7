// Package importcmd handles the statement import command
package importcmd

import (
	"context"
	"os"

	"finrecon/bankrecon/cmd/common"
	"finrecon/bankrecon/cmd/root"
	"finrecon/bankrecon/internal/config"
	"finrecon/bankrecon/internal/parser"

	"github.com/spf13/cobra"
)

// Cmd represents the import command
var Cmd = &cobra.Command{
	Use:   "import",
	Short: "Import a bank statement file",
	Long:  `Import a bank statement file (MT940, CAMT.053, CSV or OFX) into the reconciliation store.`,
	Run:   importFunc,
}

func importFunc(cmd *cobra.Command, args []string) {
	if root.SharedFlags.Input == "" {
		root.Log.Fatal("No input file given, use --input")
	}

	cfg, err := config.Load()
	if err != nil {
		root.Log.Fatalf("Error loading configuration: %v", err)
	}

	svc, err := common.BuildService(cfg, root.Log)
	if err != nil {
		root.Log.Fatalf("Error building service: %v", err)
	}

	data, err := os.ReadFile(root.SharedFlags.Input)
	if err != nil {
		root.Log.Fatalf("Error reading %s: %v", root.SharedFlags.Input, err)
	}

	result, err := svc.Import(context.Background(), data, parser.Format(root.SharedFlags.Format))
	if err != nil {
		root.Log.Fatalf("Import failed: %v", err)
	}

	for _, w := range result.Warnings {
		root.Log.Warnf("%s: %s", w.Code, w.Message)
	}
	if result.AlreadyImported {
		root.Log.Infof("Statement already imported as %s", result.Statement.ID)
		return
	}
	root.Log.Infof("Imported statement %s with %d transactions", result.Statement.ID, result.TransactionCount)
}
