// Entry point for the dongo snapshot CLI.
// Build with: go build -o bin/dongo ./cmd/dongo
// Usage: dongo --snapshot data.dngo <command> [options]
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
