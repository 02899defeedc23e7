// Package root contains the root command for the application
package root

import (
	"finrecon/bankrecon/internal/camtparser"
	"finrecon/bankrecon/internal/candidates"
	"finrecon/bankrecon/internal/config"
	"finrecon/bankrecon/internal/csvparser"
	"finrecon/bankrecon/internal/handlers"
	"finrecon/bankrecon/internal/matcher"
	"finrecon/bankrecon/internal/mt940parser"
	"finrecon/bankrecon/internal/normalizer"
	"finrecon/bankrecon/internal/ofxparser"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// CommonFlags represents the flags that are common to multiple commands
type CommonFlags struct {
	Input  string
	Format string
}

var (
	// Log is the shared logger instance for commands
	Log = logrus.New()

	// Cmd is the root command
	Cmd = &cobra.Command{
		Use:   "bankrecon",
		Short: "A bank statement reconciliation engine.",
		Long: `bankrecon imports bank statements (MT940, CAMT.053, CSV, OFX),
matches their transactions against open invoices and expected payments,
and keeps an append-only log of every match decision.`,
		Run: func(cmd *cobra.Command, args []string) {
			Log.Info("Welcome to bankrecon!")
			Log.Info("Use --help to see available commands")
		},
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			config.LoadEnv()
			Log = config.ConfigureLogging()

			camtparser.SetLogger(Log)
			mt940parser.SetLogger(Log)
			csvparser.SetLogger(Log)
			ofxparser.SetLogger(Log)
			normalizer.SetLogger(Log)
			candidates.SetLogger(Log)
			matcher.SetLogger(Log)
			handlers.SetLogger(Log)
		},
	}

	// Common flags accessible to all commands
	SharedFlags = CommonFlags{}

	// Specific serve command flags
	ListenAddr string
)

// Init initializes the root command and all flags
func Init() {
	Cmd.PersistentFlags().StringVarP(&SharedFlags.Input, "input", "i", "", "Input statement file")
	Cmd.PersistentFlags().StringVarP(&SharedFlags.Format, "format", "f", "auto", "Statement format (auto, mt940, camt053, csv, ofx)")
}
