// Package types defines the cell data model, error taxonomy, and
// configuration for the gridcalc recalculation engine: addresses, ranges,
// the tagged CellValue union, spreadsheet error kinds, and the sentinel
// errors shared by the engine, the store, and the CLI.
package types
