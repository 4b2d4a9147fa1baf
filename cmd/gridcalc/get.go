// Get command prints one cell's computed value.
package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var getCmd = &cobra.Command{
	Use:   "get <address>",
	Short: "Get a cell's computed value",
	Long: `Get prints the last computed value of one cell. Addresses use A1
notation with an optional sheet prefix.

Example:
  gridcalc get B3
  gridcalc get 'Sheet2!B3'`,
	Args: cobra.ExactArgs(1),
	RunE: runGet,
}

func runGet(cmd *cobra.Command, args []string) error {
	ctx := cliContext()
	eng, store, err := loadWorkbook(ctx)
	if err != nil {
		return err
	}
	defer store.Detach()

	value, err := eng.GetCell(ctx, args[0])
	if err != nil {
		return fmt.Errorf("get cell %s: %w", args[0], err)
	}

	if flagJSON {
		kind, v := value.Encode()
		return printJSON(cellJSON{Address: args[0], Kind: kind, Value: v})
	}
	fmt.Println(value.Display())
	return nil
}
