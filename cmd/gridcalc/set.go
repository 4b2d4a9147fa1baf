// Set command applies one cell edit and persists the workbook.
package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var setCmd = &cobra.Command{
	Use:   "set <address> <value>",
	Short: "Set a cell to a literal or formula",
	Long: `Set stores raw input into one cell. Input starting with '=' is
parsed as a formula; anything else becomes a Number, Boolean, or Text
literal. An empty value clears the cell. Dependent cells recalculate and the
workbook is persisted.

Example:
  gridcalc set A1 10
  gridcalc set B1 '=A1*2'`,
	Args: cobra.ExactArgs(2),
	RunE: runSet,
}

func runSet(cmd *cobra.Command, args []string) error {
	ctx := cliContext()
	eng, store, err := loadWorkbook(ctx)
	if err != nil {
		return err
	}
	defer store.Detach()

	result, err := eng.SetCell(ctx, args[0], args[1])
	if err != nil {
		return fmt.Errorf("set cell %s: %w", args[0], err)
	}
	if err := saveWorkbook(eng, store); err != nil {
		return err
	}

	if flagJSON {
		kind, value := result.Value.Encode()
		changed := make([]string, len(result.Changed))
		for i, addr := range result.Changed {
			changed[i] = addr.String()
		}
		return printJSON(struct {
			Address string   `json:"address"`
			Kind    string   `json:"kind"`
			Value   string   `json:"value"`
			Changed []string `json:"changed"`
		}{result.Address.String(), kind, value, changed})
	}

	fmt.Printf("%s = %s\n", result.Address, result.Value.Display())
	for _, addr := range result.Changed {
		value, err := eng.GetCell(ctx, addr.String())
		if err != nil {
			return err
		}
		fmt.Printf("%s = %s\n", addr, value.Display())
	}
	return nil
}
