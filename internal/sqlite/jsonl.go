package sqlite

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mesh-intelligence/gridcalc/pkg/types"
)

// readJSONL reads a JSONL file, returning each non-empty valid line.
// Malformed lines are skipped so a hand-edited journal degrades gracefully.
func readJSONL(path string) ([]json.RawMessage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var records []json.RawMessage
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 || !json.Valid(line) {
			continue
		}
		cp := make([]byte, len(line))
		copy(cp, line)
		records = append(records, json.RawMessage(cp))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning %s: %w", path, err)
	}
	return records, nil
}

// writeJSONL atomically writes records using the temp-file, fsync, rename
// pattern.
func writeJSONL(path string, records []json.RawMessage) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".jsonl-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	w := bufio.NewWriter(tmp)
	for _, rec := range records {
		if _, err := w.Write(rec); err != nil {
			tmp.Close()
			os.Remove(tmpName)
			return fmt.Errorf("writing record: %w", err)
		}
		if err := w.WriteByte('\n'); err != nil {
			tmp.Close()
			os.Remove(tmpName)
			return fmt.Errorf("writing newline: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("flushing buffer: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// readCellRecords decodes cells.jsonl into CellRecords.
func readCellRecords(path string) ([]types.CellRecord, error) {
	raw, err := readJSONL(path)
	if err != nil {
		return nil, err
	}
	records := make([]types.CellRecord, 0, len(raw))
	for _, line := range raw {
		var rec types.CellRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			// skip lines that are valid JSON but not cell records
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// writeCellRecords encodes records to cells.jsonl atomically.
func writeCellRecords(path string, records []types.CellRecord) error {
	raw := make([]json.RawMessage, 0, len(records))
	for _, rec := range records {
		line, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encoding cell %s!%s: %w", rec.Sheet, rec.Address, err)
		}
		raw = append(raw, line)
	}
	return writeJSONL(path, raw)
}

// readWorkbookMeta reads the single-record workbook.jsonl.
func readWorkbookMeta(path string) (workbookMeta, error) {
	raw, err := readJSONL(path)
	if err != nil {
		return workbookMeta{}, err
	}
	if len(raw) == 0 {
		return workbookMeta{}, fmt.Errorf("%s holds no workbook record", path)
	}
	var meta workbookMeta
	if err := json.Unmarshal(raw[0], &meta); err != nil {
		return workbookMeta{}, fmt.Errorf("decoding workbook record: %w", err)
	}
	return meta, nil
}

// writeWorkbookMeta writes the single-record workbook.jsonl atomically.
func writeWorkbookMeta(path string, meta workbookMeta) error {
	line, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encoding workbook record: %w", err)
	}
	return writeJSONL(path, []json.RawMessage{line})
}
