// Package main is the entry point for the Scriptbook CLI.
// The CLI drives a running Scriptbook server from the terminal.
package main

import (
	"os"

	"github.com/aescanero/scriptbook/cmd/scriptbookctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
