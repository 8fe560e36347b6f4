package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/fx"

	"github.com/matheus3301/lawdesk/internal/daemon"
	"github.com/matheus3301/lawdesk/internal/workspace"
)

func main() {
	workspaceFlag := flag.String("workspace", "", "workspace name (overrides config default)")
	flag.Parse()

	name := workspace.Resolve(*workspaceFlag)
	if err := workspace.ValidateName(name); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if err := workspace.EnsureDir(name); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	app := fx.New(
		daemon.Module(daemon.Params{Workspace: name}),
	)

	app.Run()
}
