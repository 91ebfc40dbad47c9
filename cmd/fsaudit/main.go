// Package main provides the entry point for the fsaudit CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/fsaudit/cmd/fsaudit/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
