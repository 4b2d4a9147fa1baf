// Check command scans the workbook for error values.
package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// errCellErrors tells main to exit with the user-error code after the scan
// report has already been printed.
var errCellErrors = errors.New("workbook contains error cells")

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "List every cell holding an error value",
	Long: `Check scans the whole workbook and reports each cell whose computed
value is an error (#DIV/0!, #REF!, #NAME?, #VALUE!, #N/A, #NULL!, #NUM!,
#CIRCULAR!), with its formula when it has one. Exits non-zero when errors
are found, so the command works as a validation gate.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx := cliContext()
	eng, store, err := loadWorkbook(ctx)
	if err != nil {
		return err
	}
	defer store.Detach()

	snaps := eng.CheckErrors(ctx)

	if flagJSON {
		cells := make([]cellJSON, len(snaps))
		for i, snap := range snaps {
			cells[i] = snapshotJSON(snap)
		}
		if err := printJSON(struct {
			Errors []cellJSON `json:"errors"`
		}{cells}); err != nil {
			return err
		}
	} else if len(snaps) == 0 {
		fmt.Println("No errors found")
	} else {
		for _, snap := range snaps {
			if snap.Formula != "" {
				fmt.Printf("%s: %s  (%s)\n", snap.Address, snap.Value.Display(), snap.Formula)
				continue
			}
			fmt.Printf("%s: %s\n", snap.Address, snap.Value.Display())
		}
	}

	if len(snaps) > 0 {
		return errCellErrors
	}
	return nil
}
