// Package main launches audarr.
package main

import (
	"os"

	"github.com/jmylchreest/audarr/cmd/audarr/cmd"
)

func main() {
	// Cobra has already printed the error by the time Execute returns.
	if cmd.Execute() != nil {
		os.Exit(1)
	}
}
