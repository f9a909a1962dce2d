package crud

import (
	"fmt"
	"strings"
)

// ConfigurationError reports bad resource wiring. It aborts controller
// construction and is never produced while serving a request.
type ConfigurationError struct {
	Resource string
	Reason   string
	Err      error
}

func (e *ConfigurationError) Error() string {
	msg := fmt.Sprintf("resource %q misconfigured: %s", e.Resource, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// MissingParameterError reports an absent required request parameter.
type MissingParameterError struct {
	Param  string
	Reason string
}

func (e *MissingParameterError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("missing parameter %q: %s", e.Param, e.Reason)
	}
	return fmt.Sprintf("missing parameter %q", e.Param)
}

// NotFoundError reports a well-formed identifier that matches no record.
type NotFoundError struct {
	Resource string
	ID       []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s record %s not found", e.Resource, strings.Join(e.ID, "/"))
}

// UnknownResourceError reports a request for a resource no controller serves.
type UnknownResourceError struct {
	Name string
}

func (e *UnknownResourceError) Error() string {
	return fmt.Sprintf("unknown resource %q", e.Name)
}

// InvalidSortError reports a sort column or direction outside the whitelist.
type InvalidSortError struct {
	Column    string
	Direction string
}

func (e *InvalidSortError) Error() string {
	if e.Column == "" {
		return "invalid sort: sort direction given without a column"
	}
	return fmt.Sprintf("invalid sort: column %q direction %q", e.Column, e.Direction)
}

// InvalidSearchError reports a search submission that cannot be applied.
type InvalidSearchError struct {
	Reason string
}

func (e *InvalidSearchError) Error() string {
	return "invalid search: " + e.Reason
}

// FieldError is a single form field failure.
type FieldError struct {
	Field   string // Field/column name, empty for form-level errors
	Value   string // The rejected input
	Message string
}

func (e FieldError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// ValidationError collects every field failure of one form submission.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Error()
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// For returns the message recorded for field, or "".
func (e *ValidationError) For(field string) string {
	for _, f := range e.Fields {
		if f.Field == field {
			return f.Message
		}
	}
	return ""
}

// StorageError wraps a failure returned by the storage engine. It is terminal
// for the request and never retried.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
