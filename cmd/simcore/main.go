// Command simcore compiles, runs, replays and tests simulation models.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/simcore/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "simcore:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
