package sqlite

import (
	"fmt"
	"path/filepath"

	"github.com/mesh-intelligence/gridcalc/pkg/types"
)

// Cells returns every persisted cell, ordered by sheet then address.
func (s *Store) Cells() ([]types.CellRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.attached {
		return nil, types.ErrStoreDetached
	}
	return s.queryCellsLocked(
		`SELECT sheet, address, formula, kind, value FROM cells ORDER BY sheet, address`)
}

// SheetCells returns the persisted cells of one sheet, ordered by address.
func (s *Store) SheetCells(sheet string) ([]types.CellRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.attached {
		return nil, types.ErrStoreDetached
	}
	return s.queryCellsLocked(
		`SELECT sheet, address, formula, kind, value FROM cells WHERE sheet = ? ORDER BY address`,
		sheet)
}

// ErrorCells returns every persisted cell whose value is an error, ordered by
// sheet then address.
func (s *Store) ErrorCells() ([]types.CellRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.attached {
		return nil, types.ErrStoreDetached
	}
	return s.queryCellsLocked(
		`SELECT sheet, address, formula, kind, value FROM cells WHERE kind = ? ORDER BY sheet, address`,
		types.KindError.String())
}

// Sheets returns the distinct sheet names present in the store, sorted.
func (s *Store) Sheets() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.attached {
		return nil, types.ErrStoreDetached
	}
	rows, err := s.db.Query(`SELECT DISTINCT sheet FROM cells ORDER BY sheet`)
	if err != nil {
		return nil, fmt.Errorf("querying sheets: %w", err)
	}
	defer rows.Close()

	var sheets []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning sheet name: %w", err)
		}
		sheets = append(sheets, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sheets: %w", err)
	}
	return sheets, nil
}

// SaveCells replaces the persisted workbook contents: the cells table is
// rewritten and the JSONL journal persisted atomically, then the workbook's
// updated_at advances.
func (s *Store) SaveCells(records []types.CellRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.attached {
		return types.ErrStoreDetached
	}

	if err := s.replaceCellsLocked(records); err != nil {
		return err
	}
	if err := writeCellRecords(filepath.Join(s.cfg.DataDir, cellsFileName), records); err != nil {
		return fmt.Errorf("persisting journal: %w", err)
	}

	s.meta.UpdatedAt = timestamp()
	if err := writeWorkbookMeta(filepath.Join(s.cfg.DataDir, workbookFileName), s.meta); err != nil {
		return fmt.Errorf("persisting workbook metadata: %w", err)
	}
	_, err := s.db.Exec(`UPDATE workbook SET updated_at = ? WHERE workbook_id = ?`,
		s.meta.UpdatedAt, s.meta.WorkbookID)
	if err != nil {
		return fmt.Errorf("updating workbook row: %w", err)
	}
	return nil
}

// replaceCellsLocked rewrites the cells table inside one transaction. Caller
// holds s.mu.
func (s *Store) replaceCellsLocked(records []types.CellRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM cells`); err != nil {
		tx.Rollback()
		return fmt.Errorf("clearing cells: %w", err)
	}
	stmt, err := tx.Prepare(
		`INSERT INTO cells (sheet, address, formula, kind, value) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("preparing insert: %w", err)
	}
	for _, rec := range records {
		if _, err := stmt.Exec(rec.Sheet, rec.Address, rec.Formula, rec.Kind, rec.Value); err != nil {
			stmt.Close()
			tx.Rollback()
			return fmt.Errorf("inserting cell %s!%s: %w", rec.Sheet, rec.Address, err)
		}
	}
	stmt.Close()
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing cells: %w", err)
	}
	return nil
}

func (s *Store) queryCellsLocked(query string, args ...any) ([]types.CellRecord, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying cells: %w", err)
	}
	defer rows.Close()

	var records []types.CellRecord
	for rows.Next() {
		var rec types.CellRecord
		if err := rows.Scan(&rec.Sheet, &rec.Address, &rec.Formula, &rec.Kind, &rec.Value); err != nil {
			return nil, fmt.Errorf("scanning cell: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating cells: %w", err)
	}
	return records, nil
}
