package api

import (
	"errors"
	"fmt"

	"github.com/unruly-software/api/schema"
)

// Stage identifies where in the call pipeline an error was raised.
type Stage string

const (
	StageRequestValidation  Stage = "request-validation"
	StageResolver           Stage = "resolver"
	StageResponseValidation Stage = "response-validation"
)

// ErrorFormatter replaces an error raised at the given stage with the error
// surfaced to the caller.
type ErrorFormatter func(err error, stage Stage) error

// CodeUnexpectedPayload is the issue code reported when an operation without
// a shape receives a non-empty value.
const CodeUnexpectedPayload = "unexpected_payload"

var ErrOperationNotFound = errors.New("operation not found")

// OperationNotFoundError reports a lookup of a name missing from the
// catalog. It is a programming error and is never formatted or published.
type OperationNotFoundError struct {
	Name string
}

func (e *OperationNotFoundError) Error() string {
	return fmt.Sprintf("operation %q not found", e.Name)
}

func (e *OperationNotFoundError) Is(target error) bool { return target == ErrOperationNotFound }

// RequestValidationError wraps the schema issues for an invalid request.
// Its message is the serialized issue list.
type RequestValidationError struct {
	Operation string
	Err       *schema.ValidationError
}

func (e *RequestValidationError) Error() string { return e.Err.Error() }
func (e *RequestValidationError) Unwrap() error { return e.Err }

// Issues returns the underlying schema issues.
func (e *RequestValidationError) Issues() []schema.Issue { return e.Err.Issues }

// ResponseValidationError wraps the schema issues for an invalid response.
type ResponseValidationError struct {
	Operation string
	Err       *schema.ValidationError
}

func (e *ResponseValidationError) Error() string { return e.Err.Error() }
func (e *ResponseValidationError) Unwrap() error { return e.Err }
func (e *ResponseValidationError) Issues() []schema.Issue { return e.Err.Issues }

// RemoteError is an error reported by the serving side and decoded by a
// resolver. Error returns Message unchanged so handler messages survive the
// round trip.
type RemoteError struct {
	Status  int
	Message string
}

func (e *RemoteError) Error() string { return e.Message }

// IsValidation reports whether err is a request or response validation error.
func IsValidation(err error) bool {
	var req *RequestValidationError
	var resp *ResponseValidationError
	return errors.As(err, &req) || errors.As(err, &resp)
}

// StatusCode maps err to an HTTP-style status: 400 for validation errors,
// 404 for unknown operations, the carried status for remote errors with one
// and 500 otherwise.
func StatusCode(err error) int {
	var remote *RemoteError
	switch {
	case err == nil:
		return 200
	case IsValidation(err):
		return 400
	case errors.Is(err, ErrOperationNotFound):
		return 404
	case errors.As(err, &remote) && remote.Status != 0:
		return remote.Status
	}
	return 500
}
