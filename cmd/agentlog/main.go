// Command agentlog captures coding-agent activity, maintains the durable
// work log, and syncs the raw log to a SQL warehouse.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/agentlog/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "agentlog:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
