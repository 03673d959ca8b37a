// Command retailctl runs the dashboard computations against the source CSVs
// and prints the results as tables.
package main

import (
	"fmt"
	"os"

	"retail-dashboard/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := newRootCmd(cfg).Execute(); err != nil {
		os.Exit(1)
	}
}
