// Package renderresult defines the structured (statusCode, message,
// traceback) triple that both the HTTP dispatcher and the CLI bridge
// translate render outcomes into, so the error-kind-to-status mapping
// lives in exactly one place.
package renderresult

import (
	"errors"
	"fmt"
)

// Kind classifies a render failure for status-code mapping.
type Kind int

const (
	KindOK Kind = iota
	KindInvalidArgument
	KindNotFound
	KindInternalFailure
	KindAborted
)

// ErrNotFound should be wrapped by callers that fail because the
// source input file does not exist.
var ErrNotFound = errors.New("renderresult: input not found")

// ErrInvalidArgument should be wrapped by callers that fail a
// precondition check (a wrong argument count, a malformed note name or
// number, bad pitch-bend encoding, and the like).
var ErrInvalidArgument = errors.New("renderresult: invalid argument")

// ErrAborted is returned when a render is cancelled mid-flight.
var ErrAborted = errors.New("renderresult: aborted")

// Result is the outcome of a single render or status request.
type Result struct {
	StatusCode int
	Message    string
	Traceback  string
}

// FromError classifies err into a Result with an HTTP-style status
// code. A nil err produces a 200 success result with successMsg as the
// message.
func FromError(err error, successMsg string) Result {
	if err == nil {
		return Result{StatusCode: 200, Message: successMsg}
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return Result{StatusCode: 404, Message: err.Error()}
	case errors.Is(err, ErrInvalidArgument):
		return Result{StatusCode: 400, Message: err.Error()}
	case errors.Is(err, ErrAborted):
		return Result{StatusCode: 499, Message: err.Error()}
	default:
		return Result{
			StatusCode: 500,
			Message:    "Internal error",
			Traceback:  fmt.Sprintf("%+v", err),
		}
	}
}
