// Naptrack CLI entry point.
//
// Naptrack mirrors a baby-tracking account into a local SQLite store and
// drives its activity state machines: sleep and feeding sessions, one-shot
// diaper, bottle and growth logs, and a calendar view over the history.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/naptrack/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
