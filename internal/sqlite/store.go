// Package sqlite implements the workbook store using SQLite as the query
// engine and a JSONL journal as the source of truth. The database file is
// disposable: every Attach rebuilds it from the journal, so only the JSONL
// files need to live in version control.
package sqlite

import (
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/gridcalc/pkg/types"
)

//go:embed schema.sql
var schemaSQL string

const (
	dbFileName       = "gridcalc.db"
	cellsFileName    = "cells.jsonl"
	workbookFileName = "workbook.jsonl"
)

// workbookMeta is the single-line workbook.jsonl record.
type workbookMeta struct {
	WorkbookID string `json:"workbook_id"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

// Store persists one workbook's cells.
type Store struct {
	mu       sync.RWMutex
	attached bool
	cfg      types.StoreConfig
	db       *sql.DB
	meta     workbookMeta
}

// NewStore returns a detached store; call Attach with a StoreConfig before use.
func NewStore() *Store {
	return &Store{}
}

// Attach opens the store: creates the data directory if needed, rebuilds the
// SQLite database from the embedded schema, initializes the JSONL journal on
// first use, and loads it into SQLite. Returns ErrAlreadyAttached when
// called twice.
func (s *Store) Attach(cfg types.StoreConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.attached {
		return types.ErrAlreadyAttached
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	dataDir := cfg.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	// the database is rebuilt from the journal on every attach
	dbPath := filepath.Join(dataDir, dbFileName)
	_ = os.Remove(dbPath)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return fmt.Errorf("applying schema: %w", err)
	}

	s.db = db
	s.cfg = cfg
	s.cfg.DataDir = dataDir

	if err := s.initJournalLocked(); err != nil {
		db.Close()
		s.db = nil
		return err
	}
	if err := s.loadJournalLocked(); err != nil {
		db.Close()
		s.db = nil
		return fmt.Errorf("loading journal: %w", err)
	}

	s.attached = true
	return nil
}

// Detach closes the database. Idempotent; after Detach every operation
// returns ErrStoreDetached.
func (s *Store) Detach() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.attached {
		return nil
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			return fmt.Errorf("closing database: %w", err)
		}
		s.db = nil
	}
	s.attached = false
	return nil
}

// WorkbookID returns the stable identifier assigned when the journal was
// first created.
func (s *Store) WorkbookID() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.attached {
		return "", types.ErrStoreDetached
	}
	return s.meta.WorkbookID, nil
}

// generateUUID returns a UUID v7, falling back to v4 if v7 generation fails.
func generateUUID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// initJournalLocked creates cells.jsonl and workbook.jsonl when absent, and
// reads the workbook metadata. Caller holds s.mu.
func (s *Store) initJournalLocked() error {
	cellsPath := filepath.Join(s.cfg.DataDir, cellsFileName)
	if _, err := os.Stat(cellsPath); os.IsNotExist(err) {
		if err := writeJSONL(cellsPath, nil); err != nil {
			return fmt.Errorf("initializing %s: %w", cellsFileName, err)
		}
	}

	metaPath := filepath.Join(s.cfg.DataDir, workbookFileName)
	if _, err := os.Stat(metaPath); os.IsNotExist(err) {
		now := timestamp()
		s.meta = workbookMeta{WorkbookID: generateUUID(), CreatedAt: now, UpdatedAt: now}
		return writeWorkbookMeta(metaPath, s.meta)
	}

	meta, err := readWorkbookMeta(metaPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", workbookFileName, err)
	}
	s.meta = meta
	return nil
}

// loadJournalLocked loads cells.jsonl into the cells table and records the
// workbook row. Caller holds s.mu.
func (s *Store) loadJournalLocked() error {
	records, err := readCellRecords(filepath.Join(s.cfg.DataDir, cellsFileName))
	if err != nil {
		return err
	}
	if err := s.replaceCellsLocked(records); err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO workbook (workbook_id, created_at, updated_at) VALUES (?, ?, ?)`,
		s.meta.WorkbookID, s.meta.CreatedAt, s.meta.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting workbook row: %w", err)
	}
	return nil
}
