// Package main provides the leapschema command.
package main

import (
	"os"

	"github.com/leapstack-labs/leapschema/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
