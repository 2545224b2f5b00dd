package anonapi

import (
	"errors"
	"fmt"
)

var ErrNoCity = errors.New("no city returned")

// AuthError is returned when the token endpoint is unreachable, answers with a
// non-2xx status or returns an incomplete token.
type AuthError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *AuthError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("auth error: %s (status code: %d)", e.Message, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("auth error: %s: %v", e.Message, e.Err)
	}
	return "auth error: " + e.Message
}

func (e *AuthError) Unwrap() error { return e.Err }

func NewAuthError(statusCode int, message string, err error) *AuthError {
	return &AuthError{StatusCode: statusCode, Message: message, Err: err}
}

// NetworkError is returned when a resource endpoint is unreachable or answers with a non-2xx status.
type NetworkError struct {
	Path       string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("network error on %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("network error on %s: unexpected status code %d", e.Path, e.StatusCode)
}

func (e *NetworkError) Unwrap() error { return e.Err }

func NewNetworkError(path string, statusCode int, err error) *NetworkError {
	return &NetworkError{Path: path, StatusCode: statusCode, Err: err}
}

// ParseError is returned when a response body is not valid JSON after
// normalization, or does not have the expected shape.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error on %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func NewParseError(path string, err error) *ParseError {
	return &ParseError{Path: path, Err: err}
}

// AggregationError reports a semantic precondition failure during FetchAll.
type AggregationError struct {
	Reason string
	Err    error
}

func (e *AggregationError) Error() string {
	return "aggregation error: " + e.Reason
}

func (e *AggregationError) Unwrap() error { return e.Err }

func NewAggregationError(err error) *AggregationError {
	return &AggregationError{Reason: err.Error(), Err: err}
}

// StepError identifies the FetchAll step that failed. Step is "token" for the
// forced refreshes, otherwise the requested path.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
