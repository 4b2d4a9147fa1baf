package types

import (
	"fmt"
	"strconv"
)

// CellRecord is the persisted form of one non-empty cell, shared by the JSONL
// journal and the SQLite store. Address is A1-style without the sheet prefix.
type CellRecord struct {
	Sheet   string `json:"sheet"`
	Address string `json:"address"`
	Formula string `json:"formula,omitempty"`
	Kind    string `json:"kind"`
	Value   string `json:"value"`
}

// Encode returns the persisted kind tag and value string for v.
func (v CellValue) Encode() (kind, value string) {
	return v.Kind.String(), v.Display()
}

// DecodeValue rebuilds a CellValue from its persisted kind tag and value
// string, the inverse of Encode.
func DecodeValue(kind, value string) (CellValue, error) {
	switch kind {
	case KindEmpty.String():
		return EmptyValue(), nil
	case KindNumber.String():
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return CellValue{}, fmt.Errorf("decoding number %q: %w", value, err)
		}
		return NumberValue(f), nil
	case KindText.String():
		return TextValue(value), nil
	case KindBool.String():
		return BoolValue(value == "TRUE"), nil
	case KindError.String():
		k, ok := ErrorKindFromDisplay(value)
		if !ok {
			return CellValue{}, fmt.Errorf("unknown error value %q", value)
		}
		return ErrorValue(k), nil
	}
	return CellValue{}, fmt.Errorf("unknown value kind %q", kind)
}
