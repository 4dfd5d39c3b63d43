// Package main is the entry point for the opensync CLI.
package main

import (
	"os"

	"github.com/opensync-io/opensync/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
