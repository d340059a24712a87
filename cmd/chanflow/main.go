// Package main is the entry point for the chanflow demo CLI.
//
// Usage:
//
//	chanflow [flags] <command> [args]
//
// Commands:
//
//	squares    - Square a range of numbers on concurrent fan-out lanes
//	wordcount  - Count the words of the text files in a directory, in batches
//	version    - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/kbukum/chanflow/cmd/chanflow/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
