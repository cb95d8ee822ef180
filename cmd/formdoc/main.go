// Command formdoc manages single-file JSON form documents.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/formdoc/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		// Commands report their own failures; only cobra's usage errors
		// reach here unprinted.
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
