package models

import (
	"errors"
	"fmt"
)

const (
	SourceAgmarknet = "agmarknet"
	SourceEnam      = "enam"
)

// InputError is a bad or missing request parameter. Never retried.
type InputError struct {
	Field   string
	Message string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func NewInputError(field, message string) *InputError {
	return &InputError{Field: field, Message: message}
}

// NetworkError is a transport failure or a non-success HTTP status from a portal.
// StatusCode is zero when no response was received.
type NetworkError struct {
	Source     string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("[%s] network error: HTTP %d", e.Source, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("[%s] network error: %v", e.Source, e.Err)
	default:
		return fmt.Sprintf("[%s] network error", e.Source)
	}
}

func (e *NetworkError) Unwrap() error { return e.Err }

func NewNetworkError(source string, statusCode int, err error) *NetworkError {
	return &NetworkError{Source: source, StatusCode: statusCode, Err: err}
}

// DataSourceError means the portal answered but its data could not be used.
type DataSourceError struct {
	Source  string
	Message string
	Err     error
}

func (e *DataSourceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Source, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Source, e.Message)
}

func (e *DataSourceError) Unwrap() error { return e.Err }

func NewDataSourceError(source, message string, err error) *DataSourceError {
	return &DataSourceError{Source: source, Message: message, Err: err}
}

// DataValidationError names the field or invariant a raw record violated.
type DataValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *DataValidationError) Error() string {
	if e.Field == "" {
		return "invalid price record: " + e.Message
	}
	return fmt.Sprintf("invalid price record: %s: %s", e.Field, e.Message)
}

func (e *DataValidationError) Unwrap() error { return e.Err }

// OrchestrationError aborts a fetch immediately.
type OrchestrationError struct {
	Message string
	Err     error
}

func (e *OrchestrationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *OrchestrationError) Unwrap() error { return e.Err }

// IsRetryable reports whether err should go through retry and failover.
func IsRetryable(err error) bool {
	var netErr *NetworkError
	var srcErr *DataSourceError
	return errors.As(err, &netErr) || errors.As(err, &srcErr)
}
