package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/jeeftor/rowpilot/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		var silent interface{ Silent() bool }
		if !errors.As(err, &silent) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(cmd.ExitCode(err))
	}
}
