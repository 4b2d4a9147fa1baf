// Edit command applies a batch of cell edits in one pass.
package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var flagEditSets []string

var editCmd = &cobra.Command{
	Use:   "edit",
	Short: "Apply a batch of cell edits",
	Long: `Edit applies one or more --set assignments, each of the form
ADDRESS=VALUE. A value starting with '=' is a formula, so a formula
assignment carries two equals signs. All edits are applied in order, then
the workbook is persisted once.

Example:
  gridcalc edit --set A1=5 --set 'B1==A1*2'`,
	Args: cobra.NoArgs,
	RunE: runEdit,
}

func init() {
	editCmd.Flags().StringArrayVar(&flagEditSets, "set", nil, "cell assignment ADDRESS=VALUE (repeatable)")
	editCmd.MarkFlagRequired("set")
}

func runEdit(cmd *cobra.Command, args []string) error {
	ctx := cliContext()
	eng, store, err := loadWorkbook(ctx)
	if err != nil {
		return err
	}
	defer store.Detach()

	type editOut struct {
		Address string `json:"address"`
		Kind    string `json:"kind"`
		Value   string `json:"value"`
	}
	var results []editOut

	for _, assignment := range flagEditSets {
		address, raw, ok := strings.Cut(assignment, "=")
		if !ok {
			return fmt.Errorf("malformed --set %q: want ADDRESS=VALUE", assignment)
		}
		result, err := eng.SetCell(ctx, address, raw)
		if err != nil {
			return fmt.Errorf("set cell %s: %w", address, err)
		}
		kind, value := result.Value.Encode()
		results = append(results, editOut{result.Address.String(), kind, value})
	}

	if err := saveWorkbook(eng, store); err != nil {
		return err
	}

	if flagJSON {
		return printJSON(results)
	}
	for _, r := range results {
		fmt.Printf("%s = %s\n", r.Address, r.Value)
	}
	return nil
}
