package crud

// messages.go turns errors into user-facing messages with support codes.
//
// # Error Codes Reference
//
// Typed controller errors are matched first (errors.As), then driver
// messages by case-insensitive substring. The first match wins.
//
// # Configuration (CFG001)
//
//	CFG001 - Resource misconfigured: table missing, no primary key, every column hidden
//
// # Request Errors (REQ001-REQ003)
//
//	REQ001 - Missing identifier: the id parameter is absent or incomplete
//	REQ002 - Record not found: the identifier matches no record
//	REQ003 - Unknown resource: no table is served under the requested name
//
// # Query Errors (QRY001-QRY002)
//
//	QRY001 - Invalid sort: column is not sortable or direction is not ASC/DESC
//	QRY002 - Invalid search: column index out of range or value of the wrong type
//
// # Validation Errors (VAL001)
//
//	VAL001 - Form invalid: one or more fields failed validation
//
// # Database Errors (DB001-DB008)
//
//	DB001 - Duplicate key          Patterns: "duplicate key", "duplicate entry"
//	DB002 - Unique constraint      Patterns: "unique constraint", "violates unique"
//	DB003 - Foreign key            Patterns: "foreign key constraint", "violates foreign key"
//	DB004 - Connection refused     Patterns: "connection refused"
//	DB005 - Connection reset       Patterns: "connection reset"
//	DB006 - Timeout                Patterns: "timeout", "context deadline exceeded"
//	DB007 - Deadlock               Patterns: "deadlock", "database is locked"
//	DB008 - Not null               Patterns: "not-null constraint", "not null constraint", "cannot be null"
//
// # Rate Limiting (RATE001)
//
//	RATE001 - Too many requests    Patterns: "rate limit"
//
// # Default Error (ERR000)
//
// Fallback when nothing matches. Support staff should check the application
// logs for the original error.

import (
	"errors"
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

// errorPatterns maps driver error text (case-insensitive) to user messages.
// More specific patterns come before general ones.
var errorPatterns = []errorPattern{
	{"duplicate key", UserMessage{"A record with this key already exists", "Use a different key value", "DB001"}},
	{"duplicate entry", UserMessage{"A record with this key already exists", "Use a different key value", "DB001"}},
	{"unique constraint", UserMessage{"This value must be unique but already exists", "Change the value and try again", "DB002"}},
	{"violates unique", UserMessage{"A duplicate value was found", "Change the value and try again", "DB002"}},
	{"foreign key constraint", UserMessage{"Referenced record does not exist or is still referenced", "Check related records first", "DB003"}},
	{"violates foreign key", UserMessage{"Referenced record does not exist or is still referenced", "Check related records first", "DB003"}},
	{"not-null constraint", UserMessage{"A required value is missing", "Fill in every required field", "DB008"}},
	{"not null constraint", UserMessage{"A required value is missing", "Fill in every required field", "DB008"}},
	{"cannot be null", UserMessage{"A required value is missing", "Fill in every required field", "DB008"}},
	{"connection refused", UserMessage{"Unable to connect to database", "Please try again in a few moments", "DB004"}},
	{"connection reset", UserMessage{"Database connection was interrupted", "Please try again", "DB005"}},
	{"context deadline exceeded", UserMessage{"Operation timed out", "Please try again later", "DB006"}},
	{"timeout", UserMessage{"Operation timed out", "Please try again later", "DB006"}},
	{"deadlock", UserMessage{"Database was busy with conflicting operations", "Please try again", "DB007"}},
	{"database is locked", UserMessage{"Database was busy with conflicting operations", "Please try again", "DB007"}},
	{"rate limit", UserMessage{"Too many requests", "Please wait a moment before trying again", "RATE001"}},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts an error to a user-friendly message.
//
// Example:
//
//	msg := MapError(&NotFoundError{Resource: "users", ID: []string{"42"}})
//	// msg.Code == "REQ002"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var (
		cfgErr     *ConfigurationError
		missingErr *MissingParameterError
		notFound   *NotFoundError
		unknownErr *UnknownResourceError
		sortErr    *InvalidSortError
		searchErr  *InvalidSearchError
		validErr   *ValidationError
	)
	switch {
	case errors.As(err, &cfgErr):
		return UserMessage{"This resource is not configured correctly", "Contact the administrator", "CFG001"}
	case errors.As(err, &missingErr):
		return UserMessage{"No record was selected", "Choose a record from the list", "REQ001"}
	case errors.As(err, &notFound):
		return UserMessage{"Record not found", "It may have been deleted. Return to the list", "REQ002"}
	case errors.As(err, &unknownErr):
		return UserMessage{"Page not found", "Choose a table from the dashboard", "REQ003"}
	case errors.As(err, &sortErr):
		return UserMessage{"This column cannot be sorted that way", "Use the column headers to sort", "QRY001"}
	case errors.As(err, &searchErr):
		return UserMessage{"The search could not be applied", "Pick a listed column and a matching value", "QRY002"}
	case errors.As(err, &validErr):
		return UserMessage{"Some fields are invalid", "Correct the highlighted fields and submit again", "VAL001"}
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

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
