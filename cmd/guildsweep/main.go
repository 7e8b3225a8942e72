// Package main is the guildsweep command.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rshade/guildsweep/internal/cli"
	"github.com/rshade/guildsweep/pkg/version"
)

func run() error {
	root := cli.NewRootCmd(version.GetVersion())
	root.SetVersionTemplate("guildsweep " + version.String() + "\n")
	return root.ExecuteContext(context.Background())
}

// exitCode reports err unless it was already shown, and returns the code to exit with.
func exitCode(err error) int {
	if err != nil && !cli.IsSilent(err) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return cli.ExitCode(err)
}

func main() {
	if code := exitCode(run()); code != cli.ExitOK {
		os.Exit(code)
	}
}
