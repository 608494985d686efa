package core

// convert.go provides type coercion for spreadsheet cells.
//
// These functions handle the messy reality of user-provided files:
//   - Numbers stored as text, with or without a trailing ".0"
//   - Excel formula prefixes (="value") and stray quotes
//   - The placeholder strings spreadsheet tools write for "no value"
//
// Required numbers come back as (value, error); optional numbers come back
// as an OptionalFloat plus a flag saying whether coercion failed.

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// numericRegex validates that a string is a plain decimal number.
// Matches integers, decimals, and scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

var (
	errMissing   = errors.New("missing value")
	errNotNumber = errors.New("not a number")
)

// nullTokens are cell texts treated as "no value". This is the same list
// spreadsheet readers conventionally map to NaN.
var nullTokens = map[string]struct{}{
	"":         {},
	"#N/A":     {},
	"#N/A N/A": {},
	"#NA":      {},
	"-1.#IND":  {},
	"-1.#QNAN": {},
	"-NaN":     {},
	"-nan":     {},
	"1.#IND":   {},
	"1.#QNAN":  {},
	"<NA>":     {},
	"N/A":      {},
	"NA":       {},
	"NULL":     {},
	"NaN":      {},
	"None":     {},
	"n/a":      {},
	"nan":      {},
	"null":     {},
}

// IsNullToken reports whether s (already trimmed) stands for "no value".
func IsNullToken(s string) bool {
	_, ok := nullTokens[s]
	return ok
}

// OptionalFloat is a float that may be absent.
type OptionalFloat struct {
	Float64 float64
	Valid   bool
}

// Ptr returns nil when the value is absent.
func (o OptionalFloat) Ptr() *float64 {
	if !o.Valid {
		return nil
	}
	v := o.Float64
	return &v
}

// CleanCell removes common spreadsheet artifacts from a cell value:
// - Trims whitespace
// - Removes Excel formula prefix (="...")
// - Removes surrounding double quotes
//
// Apostrophes are kept; they are legitimate in names.
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	s = strings.Trim(s, `"`)
	return strings.TrimSpace(s)
}

// CellValue returns the trimmed text of a cell. Numbers are rendered without
// a trailing ".0", so a numeric name column still produces "123".
func CellValue(c Cell) string {
	switch c.Kind {
	case CellText:
		return CleanCell(c.Text)
	case CellNumber:
		if math.IsNaN(c.Number) {
			return "nan"
		}
		return strconv.FormatFloat(c.Number, 'f', -1, 64)
	default:
		return ""
	}
}

// isAbsent reports whether a cell carries no usable value.
func isAbsent(c Cell) bool {
	switch c.Kind {
	case CellMissing, CellBlank:
		return true
	case CellNumber:
		return math.IsNaN(c.Number)
	default:
		return IsNullToken(CleanCell(c.Text))
	}
}

// ParseWholeNumber coerces a cell to an int64. Floats are truncated toward
// zero, so "2020.0" and "2020.7" both give 2020 and "-3.9" gives -3.
// Returns errMissing for absent cells and errNotNumber for anything that
// does not convert.
func ParseWholeNumber(c Cell) (int64, error) {
	if isAbsent(c) {
		return 0, errMissing
	}

	if c.Kind == CellNumber {
		return floatToInt64(c.Number)
	}

	s := CleanCell(c.Text)
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, nil
	}
	if !numericRegex.MatchString(s) {
		return 0, errNotNumber
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errNotNumber
	}
	return floatToInt64(f)
}

func floatToInt64(f float64) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errNotNumber
	}
	f = math.Trunc(f)
	// float64(math.MaxInt64) rounds up to 2^63, which does not fit.
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, errNotNumber
	}
	return int64(f), nil
}

// normalizeOptionalFloat turns an optional numeric cell into an
// OptionalFloat. Absent values (missing, blank, whitespace, null tokens)
// yield an invalid OptionalFloat and bad=false. Text that is not a number
// yields an invalid OptionalFloat and bad=true.
func normalizeOptionalFloat(c Cell) (v OptionalFloat, bad bool) {
	if isAbsent(c) {
		return OptionalFloat{}, false
	}

	if c.Kind == CellNumber {
		if math.IsInf(c.Number, 0) {
			return OptionalFloat{}, true
		}
		return OptionalFloat{Float64: c.Number, Valid: true}, false
	}

	s := CleanCell(c.Text)
	if !numericRegex.MatchString(s) {
		return OptionalFloat{}, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) {
		return OptionalFloat{}, true
	}
	return OptionalFloat{Float64: f, Valid: true}, false
}

// formatFloat renders averages in messages: 85 rather than 85.000000.
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
