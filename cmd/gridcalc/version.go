// Version command for the gridcalc CLI.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/gridcalc/pkg/gridcalc"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the gridcalc version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("gridcalc", gridcalc.Version)
	},
}
