// Read command dumps one sheet's cells.
package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var readCmd = &cobra.Command{
	Use:   "read [sheet]",
	Short: "Read a sheet's cells",
	Long: `Read prints every occupied cell of a sheet with its formula and
computed value. Without an argument it reads the default sheet.

Example:
  gridcalc read
  gridcalc read Sheet2 --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRead,
}

func runRead(cmd *cobra.Command, args []string) error {
	ctx := cliContext()
	eng, store, err := loadWorkbook(ctx)
	if err != nil {
		return err
	}
	defer store.Detach()

	sheet := engineConfig.DefaultSheet
	if len(args) == 1 {
		sheet = args[0]
	}

	snaps, err := eng.SheetCells(ctx, sheet)
	if err != nil {
		return fmt.Errorf("read sheet %s: %w", sheet, err)
	}

	if flagJSON {
		cells := make([]cellJSON, len(snaps))
		for i, snap := range snaps {
			cells[i] = snapshotJSON(snap)
		}
		return printJSON(struct {
			Sheet string     `json:"sheet"`
			Cells []cellJSON `json:"cells"`
		}{sheet, cells})
	}

	for _, snap := range snaps {
		if snap.Formula != "" {
			fmt.Printf("%s = %s  (%s)\n", snap.Address, snap.Value.Display(), snap.Formula)
			continue
		}
		fmt.Printf("%s = %s\n", snap.Address, snap.Value.Display())
	}
	return nil
}
