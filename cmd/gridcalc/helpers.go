// Shared helpers for gridcalc CLI commands.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mesh-intelligence/gridcalc/internal/ctxlog"
	"github.com/mesh-intelligence/gridcalc/internal/engine"
	"github.com/mesh-intelligence/gridcalc/internal/sqlite"
	"github.com/mesh-intelligence/gridcalc/pkg/types"
)

// cliContext returns the context subcommands run under, carrying the
// configured logger.
func cliContext() context.Context {
	return ctxlog.WithLogger(context.Background(), slog.Default())
}

// attachStore resolves the data directory and attaches the workbook store.
// The caller must defer store.Detach().
func attachStore() (*sqlite.Store, error) {
	dataDir, err := resolveDataDir()
	if err != nil {
		return nil, fmt.Errorf("resolve data dir: %w", err)
	}

	store := sqlite.NewStore()
	cfg := types.StoreConfig{Backend: types.BackendSQLite, DataDir: dataDir}
	if err := store.Attach(cfg); err != nil {
		return nil, fmt.Errorf("attach store: %w", err)
	}
	return store, nil
}

// loadWorkbook attaches the store and loads its cells into a fresh engine.
// The caller must defer store.Detach().
func loadWorkbook(ctx context.Context) (*engine.Engine, *sqlite.Store, error) {
	store, err := attachStore()
	if err != nil {
		return nil, nil, err
	}

	records, err := store.Cells()
	if err != nil {
		store.Detach()
		return nil, nil, fmt.Errorf("read cells: %w", err)
	}

	eng := engine.New(engineConfig)
	if err := eng.Load(ctx, records); err != nil {
		store.Detach()
		return nil, nil, fmt.Errorf("load workbook: %w", err)
	}
	return eng, store, nil
}

// saveWorkbook persists the engine's cells back to the store.
func saveWorkbook(eng *engine.Engine, store *sqlite.Store) error {
	if err := store.SaveCells(eng.Records()); err != nil {
		return fmt.Errorf("save cells: %w", err)
	}
	return nil
}

// printJSON writes v as indented JSON to stdout.
func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

// cellJSON is the JSON shape for one cell in read/check/set output.
type cellJSON struct {
	Address string `json:"address"`
	Formula string `json:"formula,omitempty"`
	Kind    string `json:"kind"`
	Value   string `json:"value"`
}

func snapshotJSON(snap engine.CellSnapshot) cellJSON {
	kind, value := snap.Value.Encode()
	return cellJSON{
		Address: snap.Address.String(),
		Formula: snap.Formula,
		Kind:    kind,
		Value:   value,
	}
}
