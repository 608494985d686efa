package core

// validation.go turns parsed rows into student records.
//
// Validation happens at two levels:
//  1. Header validation: the required columns must be present. A missing
//     column is a single row-0 error and no row is examined.
//  2. Row validation: every field of every row is checked and all errors
//     are collected, so the report shows every problem at once.
//
// Rows are processed strictly in file order because each row consults and
// extends the uniqueness snapshot. Do not parallelize this loop.

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// HeaderOffset converts a 0-based data row index to the display row number
// (1-based, plus one line of header).
const HeaderOffset = 2

// AverageTolerance is the largest accepted difference between the current
// and graduation averages of a graduated student.
const AverageTolerance = 0.01

// averageEpsilon absorbs binary representation error, so that 85.00 and
// 85.01 compare as exactly AverageTolerance apart.
const averageEpsilon = 1e-9

// GraduatedStatus is the status value that marks a student as graduated.
const GraduatedStatus = "graduado"

// Field names used in reports that are not columns.
const (
	FieldColumns = "columns"
	FieldFile    = "file"
	FieldAverage = "average"
)

// ValidationError is a single problem found in the input.
// Row 0 denotes a file-level error.
type ValidationError struct {
	Row     int    `json:"row"`
	Field   string `json:"field"`
	Value   string `json:"value"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("row %d: %s", e.Row, e.Message)
	}
	return e.Message
}

// FileError reports a source that could not be read at all.
func FileError(err error) ValidationError {
	return ValidationError{
		Row:     0,
		Field:   FieldFile,
		Message: fmt.Sprintf("unable to read file: %v", err),
	}
}

// MissingColumnsError reports required columns absent from the header.
func MissingColumnsError(missing []string) ValidationError {
	list := strings.Join(missing, ", ")
	return ValidationError{
		Row:     0,
		Field:   FieldColumns,
		Value:   list,
		Message: "missing required columns: " + list,
	}
}

// NoValidRowsError reports a file without a single valid student.
func NoValidRowsError() ValidationError {
	return ValidationError{
		Row:     0,
		Field:   FieldFile,
		Message: "no valid students in file",
	}
}

// ReservationPolicy decides when a row's name and external id are added to
// the snapshot.
type ReservationPolicy int

const (
	// ReserveOnFieldPass reserves a key as soon as its own field validates,
	// even if another field of the same row fails. A rejected row still
	// blocks later rows that reuse its name or id.
	ReserveOnFieldPass ReservationPolicy = iota

	// ReserveOnAccept reserves keys only for rows that are accepted.
	ReserveOnAccept
)

func (p ReservationPolicy) String() string {
	switch p {
	case ReserveOnAccept:
		return "reserve-on-accept"
	default:
		return "reserve-on-field-pass"
	}
}

// RecordValidator validates datasets of student rows.
type RecordValidator struct {
	now    func() time.Time
	policy ReservationPolicy
}

// ValidatorOption configures a RecordValidator.
type ValidatorOption func(*RecordValidator)

// WithClock sets the clock used to find the current year.
func WithClock(now func() time.Time) ValidatorOption {
	return func(v *RecordValidator) {
		v.now = now
	}
}

// WithReservationPolicy sets when keys are reserved in the snapshot.
func WithReservationPolicy(p ReservationPolicy) ValidatorOption {
	return func(v *RecordValidator) {
		v.policy = p
	}
}

// NewRecordValidator creates a validator.
func NewRecordValidator(opts ...ValidatorOption) *RecordValidator {
	v := &RecordValidator{
		now:    time.Now,
		policy: ReserveOnFieldPass,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate checks every row of ds against existing and returns the accepted
// records and all errors. existing is mutated as rows pass; pass a fresh
// snapshot per call. A nil snapshot is treated as empty.
func (v *RecordValidator) Validate(ds Dataset, existing *Snapshot) ValidationResult {
	result := ValidationResult{TotalRows: len(ds.Rows)}

	if missing := MissingColumns(ds); len(missing) > 0 {
		result.Errors = []ValidationError{MissingColumnsError(missing)}
		return result
	}

	if existing == nil {
		existing = NewSnapshot(nil, nil)
	}
	currentYear := v.now().Year()

	for i, row := range ds.Rows {
		line := row.Line
		if line == 0 {
			line = i + HeaderOffset
		}

		rec, errs := v.validateRow(row, line, currentYear, existing)
		if len(errs) > 0 {
			result.Errors = append(result.Errors, errs...)
			continue
		}
		result.Accepted = append(result.Accepted, rec)
	}

	return result
}

// rowCheck collects the errors of one row.
type rowCheck struct {
	line int
	errs []ValidationError
}

func (c *rowCheck) fail(field, value, message string) {
	c.errs = append(c.errs, ValidationError{
		Row:     c.line,
		Field:   field,
		Value:   value,
		Message: message,
	})
}

func (v *RecordValidator) validateRow(row RawRow, line, currentYear int, existing *Snapshot) (StudentRecord, []ValidationError) {
	c := &rowCheck{line: line}
	reserveNow := v.policy == ReserveOnFieldPass

	// name
	name := CellValue(row.Get(ColName))
	switch {
	case name == "" || IsNullToken(name):
		c.fail(ColName, name, "name is required")
	case existing.HasName(name):
		c.fail(ColName, name, fmt.Sprintf("name %q already exists", name))
	case reserveNow:
		existing.ReserveName(name)
	}

	// start_year
	yearCell := row.Get(ColStartYear)
	year, err := ParseWholeNumber(yearCell)
	switch {
	case errors.Is(err, errMissing):
		c.fail(ColStartYear, CellValue(yearCell), "start_year is required")
	case err != nil:
		c.fail(ColStartYear, CellValue(yearCell), "start_year must be a valid number")
	case year > int64(currentYear):
		c.fail(ColStartYear, strconv.FormatInt(year, 10),
			fmt.Sprintf("start_year (%d) cannot be greater than the current year (%d)", year, currentYear))
	}

	// external_id
	idCell := row.Get(ColExternalID)
	externalID, err := ParseWholeNumber(idCell)
	switch {
	case errors.Is(err, errMissing):
		c.fail(ColExternalID, CellValue(idCell), "external_id is required")
	case err != nil:
		c.fail(ColExternalID, CellValue(idCell), "external_id must be a valid number")
	case existing.HasExternalID(externalID):
		c.fail(ColExternalID, strconv.FormatInt(externalID, 10),
			fmt.Sprintf("external_id %d already exists", externalID))
	case reserveNow:
		existing.ReserveExternalID(externalID)
	}

	graduated := strings.ToLower(CellValue(row.Get(ColStatus))) == GraduatedStatus

	currentCell := row.Get(ColCurrentAverage)
	current, bad := normalizeOptionalFloat(currentCell)
	if bad {
		c.fail(ColCurrentAverage, CellValue(currentCell),
			"current_average must be a valid number (decimals allowed)")
	}

	graduationCell := row.Get(ColGraduationAverage)
	graduation, bad := normalizeOptionalFloat(graduationCell)
	if bad {
		c.fail(ColGraduationAverage, CellValue(graduationCell),
			"graduation_average must be a valid number (decimals allowed) or empty")
	}

	if graduated && current.Valid && graduation.Valid {
		if math.Abs(current.Float64-graduation.Float64) > AverageTolerance+averageEpsilon {
			a, b := formatFloat(current.Float64), formatFloat(graduation.Float64)
			c.fail(FieldAverage,
				fmt.Sprintf("current: %s, graduation: %s", a, b),
				fmt.Sprintf("for graduated students with both averages present, current_average (%s) and graduation_average (%s) must be equal", a, b))
		}
	}

	if len(c.errs) > 0 {
		return StudentRecord{}, c.errs
	}

	if !reserveNow {
		existing.ReserveName(name)
		existing.ReserveExternalID(externalID)
	}

	return StudentRecord{
		Name:              name,
		ExternalID:        externalID,
		StartYear:         int(year),
		CurrentAverage:    current.Ptr(),
		GraduationAverage: graduation.Ptr(),
		Graduated:         graduated,
	}, nil
}
