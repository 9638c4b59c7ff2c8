package invite

import "errors"

// ErrorCode is the stable machine-readable taxonomy for lifecycle failures.
// Handlers translate codes to HTTP statuses mechanically; no business logic
// lives in that mapping.
type ErrorCode string

const (
	CodeNotFound   ErrorCode = "NOT_FOUND"
	CodeForbidden  ErrorCode = "FORBIDDEN"
	CodeValidation ErrorCode = "VALIDATION"
	// CodeStructuralForbidden marks a hard-constraint failure (owner role via
	// a position-scoped invite). Unlike FORBIDDEN it is independent of the
	// issuer's privilege: no role can satisfy it.
	CodeStructuralForbidden ErrorCode = "STRUCTURAL_FORBIDDEN"
	CodeScopeRefRequired    ErrorCode = "SCOPE_REF_REQUIRED"
	CodePositionOccupied    ErrorCode = "POSITION_OCCUPIED"
	CodePositionNotFound    ErrorCode = "POSITION_NOT_FOUND"
	CodeAlreadyMember       ErrorCode = "ALREADY_MEMBER"
	CodeInvalidToken        ErrorCode = "INVALID_TOKEN"
	CodeExpired             ErrorCode = "EXPIRED"
	CodeAlreadyAccepted     ErrorCode = "ALREADY_ACCEPTED"
	CodeRevoked             ErrorCode = "REVOKED"
	// CodeConflict: a race lost at the store's uniqueness constraint.
	// Retryable once.
	CodeConflict ErrorCode = "CONFLICT"
)

// Error is a lifecycle failure with a taxonomy code. Token values never
// appear in Message.
type Error struct {
	Code    ErrorCode
	Message string
}

func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

func newError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// CodeOf extracts the taxonomy code from err, reporting false for
// infrastructure errors that carry no code.
func CodeOf(err error) (ErrorCode, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return "", false
}
