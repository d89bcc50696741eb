// Package main provides the entry point for the featureplus CLI.
package main

import (
	"os"

	"github.com/randalmurphal/featureplus/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
