// Package core provides the business logic for student record imports.
//
// # Error Codes Reference
//
// This file defines user-friendly error messages with codes for support reference.
// When users encounter errors, they can quote the error code to support staff
// for faster diagnosis.
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Duplicate student: the store already holds this name or external id
//	        Patterns: "student already exists", "duplicate key"
//	DB002 - Unique constraint: a value must be unique but already exists
//	        Patterns: "unique constraint", "violates unique"
//	DB003 - Out of range: an average does not fit the stored precision
//	        Patterns: "out of range"
//	DB004 - Connection refused: unable to connect to database
//	DB005 - Connection reset: database connection was interrupted
//	DB006 - Timeout: operation timed out
//	DB007 - Deadlock: database was busy with conflicting operations
//
// # Validation Errors (VAL001-VAL099)
//
//	VAL002 - Invalid number        Patterns: "must be a valid"
//	VAL003 - Required field        Patterns: "is required"
//	VAL004 - Missing column        Patterns: "missing required column"
//	VAL007 - Duplicate value       Patterns: "already exists"
//	VAL008 - Year in the future    Patterns: "greater than the current year"
//	VAL009 - Averages differ       Patterns: "must be equal"
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large       Patterns: "file too large"
//	FILE002 - Unreadable file      Patterns: "unable to read file"
//	FILE004 - No file              Patterns: "no file provided"
//	FILE005 - Empty file           Patterns: "empty file"
//	FILE006 - Unsupported type     Patterns: "unsupported file type"
//	FILE007 - No valid students    Patterns: "no valid students"
//
// # Import Errors (IMP001-IMP099)
//
//	IMP002 - System busy           Patterns: "too many imports"
//	IMP004 - Request cancelled     Patterns: "context canceled"
//	IMP005 - Request timeout       Patterns: "context deadline exceeded"
//
// # Default Error (ERR000)
//
// Fallback when no specific pattern matches. Check application logs for the
// original technical error.
//
// # Pattern Matching
//
// Error patterns are matched case-insensitively using strings.Contains.
// The first matching pattern wins, so more specific patterns are defined
// before general ones.
package core

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

var duplicateStudent = UserMessage{
	Message: "A student with this name or external id already exists",
	Action:  "Remove the student from the file or correct its name or id",
	Code:    "DB001",
}

// errorPatterns maps technical error patterns (case-insensitive) to user messages.
// Order matters: specific patterns come before general ones.
var errorPatterns = []errorPattern{
	// =========================================================================
	// Database Constraint Errors (DB001-DB003)
	// =========================================================================
	{pattern: "student already exists", msg: duplicateStudent},
	{pattern: "duplicate key", msg: duplicateStudent},
	{
		pattern: "unique constraint",
		msg: UserMessage{
			Message: "This value must be unique but already exists",
			Action:  "Check for duplicate entries in your file",
			Code:    "DB002",
		},
	},
	{
		pattern: "violates unique",
		msg: UserMessage{
			Message: "A duplicate value was found",
			Action:  "Review your data for duplicate key values",
			Code:    "DB002",
		},
	},

	{
		pattern: "out of range",
		msg: UserMessage{
			Message: "A value is too large to be stored",
			Action:  "Averages must be below 1000 with at most two decimals",
			Code:    "DB003",
		},
	},

	// =========================================================================
	// Database Connection Errors (DB004-DB007)
	// =========================================================================
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB004",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Try importing a smaller file or try again later",
			Code:    "DB006",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB007",
		},
	},

	// =========================================================================
	// Validation Errors (VAL002-VAL009)
	// =========================================================================
	{
		pattern: "missing required column",
		msg: UserMessage{
			Message: "Required column is missing from the file",
			Action:  "The file needs name, start_year and external_id columns",
			Code:    "VAL004",
		},
	},
	{
		pattern: "is required",
		msg: UserMessage{
			Message: "Required field is empty",
			Action:  "Fill in name, start_year and external_id for every row",
			Code:    "VAL003",
		},
	},
	{
		pattern: "must be a valid",
		msg: UserMessage{
			Message: "Invalid number format detected",
			Action:  "Use plain numbers; averages may use a decimal point",
			Code:    "VAL002",
		},
	},
	{
		pattern: "greater than the current year",
		msg: UserMessage{
			Message: "Start year is in the future",
			Action:  "Use a start year no later than the current year",
			Code:    "VAL008",
		},
	},
	{
		pattern: "must be equal",
		msg: UserMessage{
			Message: "Current and graduation averages differ",
			Action:  "For graduated students both averages must match",
			Code:    "VAL009",
		},
	},
	{
		pattern: "already exists",
		msg: UserMessage{
			Message: "Duplicate name or external id",
			Action:  "Each student must have a unique name and external id",
			Code:    "VAL007",
		},
	},

	// =========================================================================
	// File Errors (FILE001-FILE007)
	// =========================================================================
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds maximum size limit",
			Action:  "Split the file into smaller chunks",
			Code:    "FILE001",
		},
	},
	{
		pattern: "unable to read file",
		msg: UserMessage{
			Message: "The file could not be read",
			Action:  "Save the file as .xlsx or UTF-8 .csv and try again",
			Code:    "FILE002",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a .xlsx or .csv file to upload",
			Code:    "FILE004",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The uploaded file is empty",
			Action:  "Please upload a file with a header and data rows",
			Code:    "FILE005",
		},
	},
	{
		pattern: "unsupported file type",
		msg: UserMessage{
			Message: "File type not allowed",
			Action:  "Use .xlsx or .csv",
			Code:    "FILE006",
		},
	},
	{
		pattern: "no valid students",
		msg: UserMessage{
			Message: "The file has no valid students",
			Action:  "Add at least one complete student row",
			Code:    "FILE007",
		},
	},

	// =========================================================================
	// Import Errors (IMP002-IMP005)
	// =========================================================================
	{
		pattern: "too many imports",
		msg: UserMessage{
			Message: "System is busy processing other imports",
			Action:  "Please wait a moment and try again",
			Code:    "IMP002",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "IMP004",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try importing a smaller file or check your connection",
			Code:    "IMP005",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// It returns the first matching pattern, or ERR000 if none matches.
//
// Example:
//
//	msg := MapError(errors.New("duplicate key value violates unique constraint"))
//	// msg.Code == "DB001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())

	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether an error matches a known pattern rather than
// the generic ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError wraps a technical error with a user-friendly message.
// The original error is preserved for logging.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps a technical error to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
