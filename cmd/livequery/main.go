// Command livequery validates schemas, runs queries and checks live-query
// scenarios from the shell.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/livequery/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "livequery: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
