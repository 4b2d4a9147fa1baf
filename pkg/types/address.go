package types

// CellAddress identifies a single cell: a sheet name plus zero-based row and
// column indices. Row and Col are always >= 0 and bounded by the configured
// grid size.
type CellAddress struct {
	Sheet string `json:"sheet"`
	Row   int    `json:"row"`
	Col   int    `json:"col"`
}

// String renders the address in A1 notation, prefixed with the sheet name
// and '!' when the sheet is set, e.g. "Sheet2!B3".
func (a CellAddress) String() string {
	s := ColumnLetters(a.Col) + itoa(a.Row+1)
	if a.Sheet != "" {
		return a.Sheet + "!" + s
	}
	return s
}

// CellRange is a rectangular block of cells on a single sheet, stored as the
// top-left and bottom-right corners. StartRow <= EndRow and
// StartCol <= EndCol always hold; iteration is row-major.
type CellRange struct {
	Sheet    string `json:"sheet"`
	StartRow int    `json:"start_row"`
	StartCol int    `json:"start_col"`
	EndRow   int    `json:"end_row"`
	EndCol   int    `json:"end_col"`
}

// String renders the range in A1:B2 notation with an optional sheet prefix.
func (r CellRange) String() string {
	s := ColumnLetters(r.StartCol) + itoa(r.StartRow+1) + ":" +
		ColumnLetters(r.EndCol) + itoa(r.EndRow+1)
	if r.Sheet != "" {
		return r.Sheet + "!" + s
	}
	return s
}

// Contains reports whether the address lies inside the range. The sheet
// names must match exactly.
func (r CellRange) Contains(a CellAddress) bool {
	return a.Sheet == r.Sheet &&
		a.Row >= r.StartRow && a.Row <= r.EndRow &&
		a.Col >= r.StartCol && a.Col <= r.EndCol
}

// Rows returns the number of rows in the range.
func (r CellRange) Rows() int { return r.EndRow - r.StartRow + 1 }

// Cols returns the number of columns in the range.
func (r CellRange) Cols() int { return r.EndCol - r.StartCol + 1 }

// ColumnLetters converts a zero-based column index to spreadsheet column
// letters: 0 -> "A", 25 -> "Z", 26 -> "AA".
func ColumnLetters(col int) string {
	if col < 0 {
		return ""
	}
	var buf [8]byte
	i := len(buf)
	n := col
	for {
		i--
		buf[i] = byte('A' + n%26)
		n = n/26 - 1
		if n < 0 {
			break
		}
	}
	return string(buf[i:])
}

// itoa is a small positive-integer formatter, avoiding a strconv import for
// the two String methods above.
func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
