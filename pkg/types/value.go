package types

import (
	"math"
	"strconv"
)

// ValueKind tags the active variant of a CellValue.
type ValueKind int

// CellValue variants. Exactly one is active at a time.
const (
	KindEmpty ValueKind = iota
	KindNumber
	KindText
	KindBool
	KindError
)

// String returns the variant name for logging and test output.
func (k ValueKind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindNumber:
		return "number"
	case KindText:
		return "text"
	case KindBool:
		return "bool"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// ErrorKind is the closed set of spreadsheet error values. These are data,
// not Go errors: they are stored in cells and propagated through formulas.
type ErrorKind int

const (
	ErrorDivideByZero ErrorKind = iota
	ErrorInvalidReference
	ErrorNameNotFound
	ErrorValueTypeMismatch
	ErrorNotApplicable
	ErrorNullIntersection
	ErrorNumericOverflow
	ErrorCircularReference
)

// Display returns the conventional spreadsheet display string for the error.
func (k ErrorKind) Display() string {
	switch k {
	case ErrorDivideByZero:
		return "#DIV/0!"
	case ErrorInvalidReference:
		return "#REF!"
	case ErrorNameNotFound:
		return "#NAME?"
	case ErrorValueTypeMismatch:
		return "#VALUE!"
	case ErrorNotApplicable:
		return "#N/A"
	case ErrorNullIntersection:
		return "#NULL!"
	case ErrorNumericOverflow:
		return "#NUM!"
	case ErrorCircularReference:
		return "#CIRCULAR!"
	default:
		return "#VALUE!"
	}
}

// String returns the error kind name.
func (k ErrorKind) String() string {
	switch k {
	case ErrorDivideByZero:
		return "DivideByZero"
	case ErrorInvalidReference:
		return "InvalidReference"
	case ErrorNameNotFound:
		return "NameNotFound"
	case ErrorValueTypeMismatch:
		return "ValueTypeMismatch"
	case ErrorNotApplicable:
		return "NotApplicable"
	case ErrorNullIntersection:
		return "NullIntersection"
	case ErrorNumericOverflow:
		return "NumericOverflow"
	case ErrorCircularReference:
		return "CircularReference"
	default:
		return "Unknown"
	}
}

// errorKindByDisplay maps display strings back to error kinds, used when
// loading persisted cells.
var errorKindByDisplay = map[string]ErrorKind{
	"#DIV/0!":    ErrorDivideByZero,
	"#REF!":      ErrorInvalidReference,
	"#NAME?":     ErrorNameNotFound,
	"#VALUE!":    ErrorValueTypeMismatch,
	"#N/A":       ErrorNotApplicable,
	"#NULL!":     ErrorNullIntersection,
	"#NUM!":      ErrorNumericOverflow,
	"#CIRCULAR!": ErrorCircularReference,
}

// ErrorKindFromDisplay resolves a display string like "#DIV/0!" to its
// ErrorKind. The second return is false for unrecognized strings.
func ErrorKindFromDisplay(s string) (ErrorKind, bool) {
	k, ok := errorKindByDisplay[s]
	return k, ok
}

// CellValue is the tagged union of spreadsheet values: Empty, Number, Text,
// Bool, or Error. Only the field matching Kind is meaningful. CellValue is
// comparable, so it can be used directly as a map key and compared with ==.
type CellValue struct {
	Kind   ValueKind
	Number float64
	Text   string
	Bool   bool
	Err    ErrorKind
}

// EmptyValue returns the Empty variant.
func EmptyValue() CellValue {
	return CellValue{Kind: KindEmpty}
}

// NumberValue returns a Number variant holding f.
func NumberValue(f float64) CellValue {
	return CellValue{Kind: KindNumber, Number: f}
}

// TextValue returns a Text variant holding s.
func TextValue(s string) CellValue {
	return CellValue{Kind: KindText, Text: s}
}

// BoolValue returns a Bool variant holding b.
func BoolValue(b bool) CellValue {
	return CellValue{Kind: KindBool, Bool: b}
}

// ErrorValue returns an Error variant holding k.
func ErrorValue(k ErrorKind) CellValue {
	return CellValue{Kind: KindError, Err: k}
}

// IsEmpty reports whether the value is the Empty variant.
func (v CellValue) IsEmpty() bool { return v.Kind == KindEmpty }

// IsError reports whether the value is an Error variant.
func (v CellValue) IsError() bool { return v.Kind == KindError }

// Display renders the value the way a spreadsheet cell would show it:
// numbers in shortest round-trip form, TRUE/FALSE for booleans, the
// conventional #-code for errors, and the empty string for Empty.
func (v CellValue) Display() string {
	switch v.Kind {
	case KindNumber:
		return FormatNumber(v.Number)
	case KindText:
		return v.Text
	case KindBool:
		if v.Bool {
			return "TRUE"
		}
		return "FALSE"
	case KindError:
		return v.Err.Display()
	default:
		return ""
	}
}

// FormatNumber renders a float the way formula text and cell display do:
// integers without a decimal point, everything else in the shortest form
// that round-trips, so 10 renders as "10" and 1.5 as "1.5".
func FormatNumber(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
