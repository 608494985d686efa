// Package core provides the business logic for student record imports.
//
// This package is the heart of the importer, containing all domain logic
// independent of any transport or storage. It can be used by web handlers,
// the CLI, or tests without modification.
//
// # Architecture
//
// An import moves through two components, used in sequence:
//
//   - [RecordValidator]: checks the header, then every row, against the
//     persisted keys held in a [Snapshot]. Produces accepted records and
//     row-level errors.
//   - [BulkInserter]: persists accepted records one at a time. A failed
//     record is reported and the rest continue.
//
// [Service] ties them together with a [Store], an [ImportLimiter] and an
// optional [Observer]:
//
//  1. Load the existing names and external ids from the store
//  2. Validate every row; any error rejects the whole file
//  3. Reject a file with no valid rows
//  4. Insert the accepted records and record the run in the history
//
// # Cells
//
// Parsers hand rows over as [RawRow] values keyed by canonical column name.
// A [Cell] remembers whether it was missing, blank, text or a number, so
// coercion can tell "2020.0" typed in a CSV from 2020 read off a workbook.
// Headers are matched with [CanonicalColumn], which also accepts the
// Spanish column names.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - DB001-DB007: Database errors (duplicates, connections)
//   - VAL002-VAL009: Validation errors (numbers, required fields, columns)
//   - FILE001-FILE007: File errors (size, format, no valid rows)
//   - IMP002-IMP005: Import errors (busy, cancelled, timeout)
package core
