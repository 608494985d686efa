// Package core provides the business logic for student record imports.
// This package has no transport dependencies and can be used by any frontend.
package core

import (
	"context"
	"strconv"
	"time"
)

// CellKind describes what a spreadsheet cell held before coercion.
type CellKind int

const (
	CellMissing CellKind = iota // column absent from the row
	CellBlank                   // column present, no value
	CellText
	CellNumber
)

// Cell is an untyped spreadsheet value. The zero value is a missing cell.
type Cell struct {
	Kind   CellKind
	Text   string
	Number float64
}

// TextCell returns a text cell, or a blank cell when s is empty.
func TextCell(s string) Cell {
	if s == "" {
		return Cell{Kind: CellBlank}
	}
	return Cell{Kind: CellText, Text: s}
}

// NumberCell returns a numeric cell.
func NumberCell(f float64) Cell {
	return Cell{Kind: CellNumber, Number: f}
}

// String renders the cell the way it is echoed back in error reports.
func (c Cell) String() string {
	switch c.Kind {
	case CellText:
		return c.Text
	case CellNumber:
		return strconv.FormatFloat(c.Number, 'f', -1, 64)
	default:
		return ""
	}
}

// RawRow is one data row keyed by canonical column name.
type RawRow struct {
	// Line is the display row number in the source file (header is line 1).
	// Zero means "derive from position".
	Line  int
	Cells map[string]Cell
}

// Get returns the cell for a column, or a missing cell.
func (r RawRow) Get(column string) Cell {
	if r.Cells == nil {
		return Cell{}
	}
	return r.Cells[column]
}

// Dataset is a parsed tabular file: the canonical columns found in the
// header plus the data rows in file order.
type Dataset struct {
	Columns []string
	Rows    []RawRow
}

// HasColumn reports whether the header contained the canonical column.
func (d Dataset) HasColumn(column string) bool {
	for _, c := range d.Columns {
		if c == column {
			return true
		}
	}
	return false
}

// StudentRecord is a row that passed validation.
type StudentRecord struct {
	Name              string   `json:"name"`
	ExternalID        int64    `json:"external_id"`
	StartYear         int      `json:"start_year"`
	CurrentAverage    *float64 `json:"current_average"`
	GraduationAverage *float64 `json:"graduation_average"`
	Graduated         bool     `json:"graduated"`
}

// Student is a persisted StudentRecord.
type Student struct {
	ID int64 `json:"id"`
	StudentRecord
	CreatedAt time.Time `json:"created_at"`
}

// ValidationResult partitions a dataset into accepted records and errors.
type ValidationResult struct {
	Accepted []StudentRecord  `json:"accepted"`
	Errors   []ValidationError `json:"errors"`
	// TotalRows is the number of data rows examined.
	TotalRows int `json:"total_rows"`
}

// Valid returns true if no error was reported.
func (r ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

// InsertFailure reports a record the store did not accept.
type InsertFailure struct {
	Name  string `json:"student"`
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// InsertOutcome is the result of one persistence attempt.
type InsertOutcome struct {
	Record StudentRecord
	ID     int64
	Err    error
}

// InsertResult aggregates the outcomes of a batch insert.
type InsertResult struct {
	Inserted int             `json:"inserted"`
	Failures []InsertFailure `json:"errors,omitempty"`
}

// ImportPhase indicates how far an import got.
type ImportPhase string

const (
	PhaseRejected  ImportPhase = "rejected"  // validation failed, nothing written
	PhaseCompleted ImportPhase = "completed" // inserts attempted
)

// ImportResult is the outcome of Service.Import.
type ImportResult struct {
	ImportID   string            `json:"import_id"`
	FileName   string            `json:"file_name"`
	Phase      ImportPhase       `json:"phase"`
	TotalRows  int               `json:"total_rows"`
	ValidCount int               `json:"valid_count"`
	Errors     []ValidationError `json:"errors,omitempty"`
	Insert     InsertResult      `json:"insert"`
	Duration   time.Duration     `json:"duration"`
}

// ImportRun is a recorded import, as stored in the history table.
type ImportRun struct {
	ID        string    `json:"id"`
	FileName  string    `json:"file_name"`
	TotalRows int       `json:"total_rows"`
	Accepted  int       `json:"accepted"`
	Rejected  int       `json:"rejected"`
	Inserted  int       `json:"inserted"`
	Failed    int       `json:"failed"`
	ClientIP  string    `json:"client_ip,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// KeyLoader loads the names and external ids already persisted.
type KeyLoader interface {
	LoadExistingKeys(ctx context.Context) (*Snapshot, error)
}

// Persister writes one record and returns its id.
type Persister interface {
	Persist(ctx context.Context, rec StudentRecord) (int64, error)
}

// Store is everything the import service needs from persistence.
type Store interface {
	KeyLoader
	Persister
	RecordImport(ctx context.Context, run ImportRun) error
}
