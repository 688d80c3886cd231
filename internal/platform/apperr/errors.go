// Package apperr defines the engine's error taxonomy: a small closed set of
// codes the control plane returns to callers, plus the propagation rule that
// none of them are ever broadcast.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is one of the taxonomy entries from the error handling design.
type Code string

const (
	CodeInvalidArguments               Code = "INVALID_ARGUMENTS"
	CodeNotFound                       Code = "NOT_FOUND"
	CodeInvalidTrackID                 Code = "INVALID_TRACK_ID"
	CodeInvalidFormat                  Code = "INVALID_FORMAT"
	CodeInvalidDefaultSimulcastEncoding Code = "INVALID_DEFAULT_SIMULCAST_ENCODING"
	CodeTimeout                        Code = "TIMEOUT"
	CodeProtocolError                  Code = "PROTOCOL_ERROR"
	CodeEndpointCrash                  Code = "ENDPOINT_CRASH"
	// CodeInternal covers anything the admin HTTP surface returns that isn't
	// one of the control-plane's own taxonomy entries above.
	CodeInternal Code = "INTERNAL_ERROR"
)

// httpStatus maps a code to the status the admin HTTP surface returns for
// it. The Media Event transport never uses these; it only ever reports a
// Code to the immediate caller or the offending peer.
var httpStatus = map[Code]int{
	CodeInvalidArguments:               http.StatusBadRequest,
	CodeNotFound:                       http.StatusNotFound,
	CodeInvalidTrackID:                 http.StatusBadRequest,
	CodeInvalidFormat:                  http.StatusBadRequest,
	CodeInvalidDefaultSimulcastEncoding: http.StatusBadRequest,
	CodeTimeout:                        http.StatusGatewayTimeout,
	CodeProtocolError:                  http.StatusBadRequest,
	CodeEndpointCrash:                  http.StatusInternalServerError,
	CodeInternal:                       http.StatusInternalServerError,
}

// AppError is the concrete error type returned across the control API.
type AppError struct {
	Code    Code
	Message string
	Cause   error
	Context map[string]interface{}
}

func New(code Code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) *AppError {
	return &AppError{Code: code, Message: message, Cause: cause}
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// HTTPStatus returns the admin-API status code for this error's taxonomy
// entry, defaulting to 500 for anything unrecognized.
func (e *AppError) HTTPStatus() int {
	if s, ok := httpStatus[e.Code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// Is lets errors.Is match on code rather than identity.
func (e *AppError) Is(target error) bool {
	var other *AppError
	if errors.As(target, &other) {
		return other.Code == e.Code
	}
	return false
}

func InvalidArguments(msg string) *AppError { return New(CodeInvalidArguments, msg) }
func NotFound(msg string) *AppError         { return New(CodeNotFound, msg) }
func InvalidTrackID(msg string) *AppError   { return New(CodeInvalidTrackID, msg) }
func InvalidFormat(msg string) *AppError    { return New(CodeInvalidFormat, msg) }
func InvalidDefaultSimulcastEncoding(msg string) *AppError {
	return New(CodeInvalidDefaultSimulcastEncoding, msg)
}
func Timeout(msg string) *AppError       { return New(CodeTimeout, msg) }
func ProtocolError(msg string) *AppError { return New(CodeProtocolError, msg) }
func EndpointCrash(msg string) *AppError { return New(CodeEndpointCrash, msg) }
func Internal(msg string) *AppError      { return New(CodeInternal, msg) }

// As extracts an *AppError from an error chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// CodeOf returns the code of err if it (or something it wraps) is an
// *AppError, and ok=false otherwise.
func CodeOf(err error) (Code, bool) {
	if ae, ok := As(err); ok {
		return ae.Code, true
	}
	return "", false
}
