package main

import (
	"fmt"
	"os"

	"github.com/odyssey-erp/rentroll/cmd/rentroll/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "rentroll:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
