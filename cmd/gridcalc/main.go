// Package main provides the gridcalc CLI, a spreadsheet formula
// recalculation engine over a JSONL-backed workbook store.
package main

import (
	"errors"
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		// the check report has already been printed by then
		if !errors.Is(err, errCellErrors) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(exitUserError)
	}
}
