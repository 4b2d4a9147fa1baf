package types

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors shared across the engine, store, and CLI.
var (
	// ErrInvalidReference reports a cell or range address that does not
	// parse or lies outside the configured grid bounds.
	ErrInvalidReference = errors.New("invalid cell reference")

	// ErrSheetNotFound reports an operation against a sheet the engine
	// does not know.
	ErrSheetNotFound = errors.New("sheet not found")

	// ErrSheetExists reports an attempt to add a sheet that already exists.
	ErrSheetExists = errors.New("sheet already exists")

	// Store lifecycle errors.
	ErrAlreadyAttached = errors.New("store already attached")
	ErrStoreDetached   = errors.New("store not attached")
)

// ParseError reports a malformed formula. It is the only failure surfaced
// out-of-band from SetCell: an unparsable formula is rejected before it
// reaches the dependency graph, and the cell's prior formula and edges are
// left untouched.
type ParseError struct {
	Position int    // byte offset into the formula text
	Reason   string // human-readable description
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at offset %d: %s", e.Position, e.Reason)
}

// CycleError reports a circular reference detected at schedule time. Members
// holds every cell participating in the cycle, so a user can see the whole
// loop rather than a single node.
type CycleError struct {
	Members []CellAddress
}

func (e *CycleError) Error() string {
	names := make([]string, len(e.Members))
	for i, a := range e.Members {
		names[i] = a.String()
	}
	return "circular reference: " + strings.Join(names, " -> ")
}
