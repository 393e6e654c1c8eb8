package backend

import (
	"encoding/json"
	"errors"
	"strings"
)

// Code classifies a backend failure independent of the operation.
type Code string

const (
	// CodeUnreachable means the request never produced an HTTP response.
	CodeUnreachable Code = "unreachable"
	// CodeServer means the backend answered with a non-2xx status.
	CodeServer Code = "server_error"
	// CodeInvalidResponse means the body could not be decoded.
	CodeInvalidResponse Code = "invalid_response"
)

// Sentinels for errors.Is matching by code.
var (
	ErrUnreachable     = &Error{Code: CodeUnreachable}
	ErrServer          = &Error{Code: CodeServer}
	ErrInvalidResponse = &Error{Code: CodeInvalidResponse}
)

// Error wraps a backend failure with a stable code and the message the
// operator should see.
type Error struct {
	Code    Code
	Status  int
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Code)
}

// Unwrap implements error unwrapping for error chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is enables errors.Is() to match errors by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// HasCode checks if err is a backend error with the given code.
func HasCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return 0
}

// errorBody is the backend's error envelope. detail may be a string or a
// structured validation report.
type errorBody struct {
	Error  string          `json:"error"`
	Detail json.RawMessage `json:"detail"`
}

// message picks error, then detail, then fallback.
func (b errorBody) message(fallback string) string {
	if b.Error != "" {
		return b.Error
	}
	if len(b.Detail) > 0 && string(b.Detail) != "null" {
		var s string
		if err := json.Unmarshal(b.Detail, &s); err == nil {
			if s != "" {
				return s
			}
		} else {
			return strings.TrimSpace(string(b.Detail))
		}
	}
	return fallback
}

func unreachable(err error) error {
	return &Error{Code: CodeUnreachable, Message: "Backend unreachable", Err: err}
}

func invalidResponse(status int, err error) error {
	return &Error{Code: CodeInvalidResponse, Status: status, Message: "Server error: Invalid response", Err: err}
}

func serverError(status int, msg string) error {
	return &Error{Code: CodeServer, Status: status, Message: msg}
}
