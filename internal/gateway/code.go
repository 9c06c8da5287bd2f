package gateway

import "net/http"

// Code is the stable machine-readable error code carried in every failure
// body. UI code branches on it instead of parsing message text.
type Code string

const (
	CodeUnauthenticated Code = "UNAUTHENTICATED"
	CodeForbidden       Code = "FORBIDDEN"
	CodeTenantNotFound  Code = "TENANT_NOT_FOUND"
	CodeTenantSuspended Code = "TENANT_SUSPENDED"
	CodeValidation      Code = "VALIDATION_ERROR"
	CodeDuplicateEntry  Code = "DUPLICATE_ENTRY"
	CodeInternal        Code = "INTERNAL_ERROR"
)

// Status returns the fixed HTTP status for the code.
func (c Code) Status() int {
	switch c {
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeForbidden, CodeTenantSuspended:
		return http.StatusForbidden
	case CodeTenantNotFound:
		return http.StatusNotFound
	case CodeValidation, CodeDuplicateEntry:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// FieldError is one per-field validation message.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Rejection is the terminal outcome of a failed gateway stage or handler.
type Rejection struct {
	Code    Code
	Message string

	// Details is populated for validation failures only.
	Details []FieldError
}

// Reject builds a Rejection with the given code and message.
func Reject(code Code, message string) *Rejection {
	return &Rejection{Code: code, Message: message}
}

// RejectValidation builds a VALIDATION_ERROR rejection with per-field detail.
func RejectValidation(message string, details []FieldError) *Rejection {
	return &Rejection{Code: CodeValidation, Message: message, Details: details}
}
