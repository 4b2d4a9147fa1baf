// Package refs resolves cell and range addresses written in A1 notation
// ("B3", "AZ100", "Sheet2!B3:B10") into structural coordinates. Resolution
// is pure and deterministic; the only state a Resolver carries is the
// configured grid bound.
package refs

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mesh-intelligence/gridcalc/pkg/types"
)

// Resolver parses addresses against a fixed grid bound.
type Resolver struct {
	maxRows int
	maxCols int
}

// NewResolver returns a Resolver enforcing the grid bounds in cfg.
func NewResolver(cfg types.Config) *Resolver {
	cfg = cfg.WithDefaults()
	return &Resolver{maxRows: cfg.MaxRows, maxCols: cfg.MaxCols}
}

// ParseAddress parses a single-cell address with an optional sheet-name
// prefix separated by '!'. Column letters are case-insensitive and may
// carry '$' absolute markers, which are accepted and ignored. Addresses
// beyond the grid bound fail with ErrInvalidReference.
func (r *Resolver) ParseAddress(text string) (types.CellAddress, error) {
	sheet, rest, err := splitSheet(text)
	if err != nil {
		return types.CellAddress{}, err
	}
	row, col, err := r.parseA1(rest)
	if err != nil {
		return types.CellAddress{}, fmt.Errorf("%w: %q", types.ErrInvalidReference, text)
	}
	return types.CellAddress{Sheet: sheet, Row: row, Col: col}, nil
}

// ParseRange parses a rectangular range "A1:B3" with an optional sheet
// prefix applying to both corners. The corners are normalized so the stored
// top-left is componentwise <= the bottom-right.
func (r *Resolver) ParseRange(text string) (types.CellRange, error) {
	sheet, rest, err := splitSheet(text)
	if err != nil {
		return types.CellRange{}, err
	}
	first, second, ok := strings.Cut(rest, ":")
	if !ok {
		return types.CellRange{}, fmt.Errorf("%w: %q is not a range", types.ErrInvalidReference, text)
	}
	r1, c1, err := r.parseA1(first)
	if err != nil {
		return types.CellRange{}, fmt.Errorf("%w: %q", types.ErrInvalidReference, text)
	}
	r2, c2, err := r.parseA1(second)
	if err != nil {
		return types.CellRange{}, fmt.Errorf("%w: %q", types.ErrInvalidReference, text)
	}
	if r2 < r1 {
		r1, r2 = r2, r1
	}
	if c2 < c1 {
		c1, c2 = c2, c1
	}
	return types.CellRange{
		Sheet:    sheet,
		StartRow: r1, StartCol: c1,
		EndRow: r2, EndCol: c2,
	}, nil
}

// InBounds reports whether the address lies inside the configured grid.
func (r *Resolver) InBounds(a types.CellAddress) bool {
	return a.Row >= 0 && a.Row < r.maxRows && a.Col >= 0 && a.Col < r.maxCols
}

// splitSheet separates an optional sheet-name prefix from the cell part.
// Sheet names containing spaces are written single-quoted: 'My Sheet'!A1.
func splitSheet(text string) (sheet, rest string, err error) {
	if strings.HasPrefix(text, "'") {
		end := strings.Index(text[1:], "'")
		if end < 0 {
			return "", "", fmt.Errorf("%w: unclosed sheet name in %q", types.ErrInvalidReference, text)
		}
		sheet = text[1 : 1+end]
		rest = text[2+end:]
		if !strings.HasPrefix(rest, "!") {
			return "", "", fmt.Errorf("%w: expected '!' after sheet name in %q", types.ErrInvalidReference, text)
		}
		return sheet, rest[1:], nil
	}
	if sheet, rest, ok := strings.Cut(text, "!"); ok {
		if sheet == "" {
			return "", "", fmt.Errorf("%w: empty sheet name in %q", types.ErrInvalidReference, text)
		}
		return sheet, rest, nil
	}
	return "", text, nil
}

// parseA1 converts "B3" (optionally "$B$3", any letter case) to zero-based
// row and column indices, enforcing the grid bound.
func (r *Resolver) parseA1(text string) (row, col int, err error) {
	s := strings.TrimPrefix(text, "$")

	i := 0
	col = 0
	for i < len(s) {
		ch := s[i]
		switch {
		case ch >= 'A' && ch <= 'Z':
			col = col*26 + int(ch-'A') + 1
		case ch >= 'a' && ch <= 'z':
			col = col*26 + int(ch-'a') + 1
		default:
			goto digits
		}
		i++
		// guard against absurd column strings overflowing int
		if col > r.maxCols {
			return 0, 0, fmt.Errorf("column out of bounds")
		}
	}
digits:
	if i == 0 {
		return 0, 0, fmt.Errorf("missing column letters")
	}
	digitPart := strings.TrimPrefix(s[i:], "$")
	if digitPart == "" {
		return 0, 0, fmt.Errorf("missing row number")
	}
	n, convErr := strconv.Atoi(digitPart)
	if convErr != nil || n <= 0 {
		return 0, 0, fmt.Errorf("bad row number %q", digitPart)
	}
	row = n - 1
	col = col - 1
	if row >= r.maxRows || col >= r.maxCols {
		return 0, 0, fmt.Errorf("address out of bounds")
	}
	return row, col, nil
}
