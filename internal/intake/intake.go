// Package intake parses uploaded spreadsheets into core datasets.
//
// Two formats are accepted: CSV (UTF-8, with or without BOM, falling back
// to Windows-1252 for files saved by older spreadsheet tools) and XLSX
// workbooks, of which the first sheet is read. Legacy .xls workbooks are
// rejected.
//
// Header cells are resolved with core.CanonicalColumn; unknown columns are
// ignored. Rows whose cells are all blank are skipped, and every kept row
// remembers its physical line in the file so reports point at the right
// place.
package intake

import (
	"io"
	"strings"

	"github.com/go-faster/errors"

	"github.com/raulbatres90/challenge-estudiantes/internal/core"
)

// DefaultMaxFileSize is the upload limit used when none is configured.
const DefaultMaxFileSize = 10 << 20

var (
	ErrEmptyFile       = errors.New("empty file")
	ErrFileTooLarge    = errors.New("file too large")
	ErrUnsupportedType = errors.New("unsupported file type")
)

// Format is a supported input format.
type Format int

const (
	FormatCSV Format = iota + 1
	FormatXLSX
)

func (f Format) String() string {
	switch f {
	case FormatCSV:
		return "csv"
	case FormatXLSX:
		return "xlsx"
	default:
		return "unknown"
	}
}

// ReadAll reads r up to maxSize bytes. Larger inputs fail with ErrFileTooLarge.
func ReadAll(r io.Reader, maxSize int64) ([]byte, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	data, err := io.ReadAll(io.LimitReader(r, maxSize+1))
	if err != nil {
		return nil, errors.Wrap(err, "read upload")
	}
	if int64(len(data)) > maxSize {
		return nil, errors.Wrapf(ErrFileTooLarge, "limit is %d bytes", maxSize)
	}
	return data, nil
}

// Parse reads a file and returns its dataset.
func Parse(name string, r io.Reader, maxSize int64) (core.Dataset, error) {
	data, err := ReadAll(r, maxSize)
	if err != nil {
		return core.Dataset{}, err
	}
	return ParseBytes(name, data)
}

// ParseBytes parses an in-memory file.
func ParseBytes(name string, data []byte) (core.Dataset, error) {
	format, err := Detect(name, data)
	if err != nil {
		return core.Dataset{}, err
	}

	switch format {
	case FormatXLSX:
		return parseXLSX(data)
	default:
		return parseCSV(data)
	}
}

// headerIndex maps column positions to canonical column names.
type headerIndex map[int]string

// buildHeader resolves header cells. When two headers resolve to the same
// column the first one wins.
func buildHeader(cells []string) (headerIndex, []string) {
	idx := make(headerIndex, len(cells))
	var columns []string
	seen := make(map[string]bool, len(cells))

	for i, h := range cells {
		col, ok := core.CanonicalColumn(h)
		if !ok || seen[col] {
			continue
		}
		seen[col] = true
		idx[i] = col
		columns = append(columns, col)
	}
	return idx, columns
}

// isEmptyRow returns true if every cell is blank.
func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
