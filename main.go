package main

import (
	"fmt"
	"os"

	"finrecon/bankrecon/cmd/importcmd"
	"finrecon/bankrecon/cmd/match"
	"finrecon/bankrecon/cmd/root"
	"finrecon/bankrecon/cmd/serve"
)

func init() {
	root.Init()
	root.Cmd.AddCommand(importcmd.Cmd)
	root.Cmd.AddCommand(match.Cmd)
	root.Cmd.AddCommand(serve.Cmd)
}

func main() {
	if err := root.Cmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
