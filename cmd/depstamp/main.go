// Package main is the entry point for the depstamp CLI.
package main

import (
	"os"

	"github.com/depstamp/depstamp/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
