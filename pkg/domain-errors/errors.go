package domainerrors

import "errors"

// Code classifies a domain failure so transports can translate it without
// inspecting message text.
type Code string

const (
	// CodeBadRequest covers malformed requests (unparseable bodies, bad hex).
	CodeBadRequest Code = "bad_request"

	// CodeInvalidInput covers well-formed requests that violate a domain
	// invariant (zero price, zero address, mismatched list lengths).
	CodeInvalidInput Code = "invalid_input"

	// CodeUnauthorized covers failed authentication, including purchase
	// authorizations whose signature does not recover to a registered signer.
	CodeUnauthorized Code = "unauthorized"

	// CodeForbidden covers authenticated callers lacking authority
	// (non-owner invoking an owner-only operation).
	CodeForbidden Code = "forbidden"

	// CodeNotFound covers missing records.
	CodeNotFound Code = "not_found"

	// CodeConflict covers lifecycle violations: the operation is valid in
	// some state of the sale, just not the current one.
	CodeConflict Code = "conflict"

	// CodeInternal covers unexpected failures; details stay in logs.
	CodeInternal Code = "internal"
)

// Error is a coded domain error. Services return it; handlers map it to an
// HTTP status via ToHTTPStatus.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a coded error with a static message.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap builds a coded error around an underlying cause.
func Wrap(code Code, message string, err error) error {
	return &Error{Code: code, Message: message, Err: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf extracts the code from an error, defaulting to CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a domain error code onto an HTTP status.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest, CodeInvalidInput:
		return 400
	case CodeUnauthorized:
		return 401
	case CodeForbidden:
		return 403
	case CodeNotFound:
		return 404
	case CodeConflict:
		return 409
	default:
		return 500
	}
}
