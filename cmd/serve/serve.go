// Package serve handles the HTTP server command
package serve

import (
	"finrecon/bankrecon/cmd/common"
	"finrecon/bankrecon/cmd/root"
	"finrecon/bankrecon/internal/config"
	"finrecon/bankrecon/internal/routes"

	"github.com/spf13/cobra"
)

// Cmd represents the serve command
var Cmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the reconciliation HTTP API",
	Long:  `Run the HTTP API exposing statement import, matching and reporting.`,
	Run:   serveFunc,
}

func init() {
	Cmd.Flags().StringVarP(&root.ListenAddr, "addr", "a", "", "Listen address (overrides configuration)")
}

func serveFunc(cmd *cobra.Command, args []string) {
	cfg, err := config.Load()
	if err != nil {
		root.Log.Fatalf("Error loading configuration: %v", err)
	}

	svc, err := common.BuildService(cfg, root.Log)
	if err != nil {
		root.Log.Fatalf("Error building service: %v", err)
	}

	addr := cfg.HTTP.Addr
	if root.ListenAddr != "" {
		addr = root.ListenAddr
	}

	engine := routes.Register(svc, cfg.HTTP.AllowedOrigins)
	root.Log.Infof("Listening on %s", addr)
	if err := engine.Run(addr); err != nil {
		root.Log.Fatalf("Server stopped: %v", err)
	}
}
