package dto

// APIError represents a structured error response.
// All error responses from the API use this format for consistency.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Common error codes
const (
	ErrCodeNotFound       = "not_found"
	ErrCodeBadRequest     = "bad_request"
	ErrCodeInternalError  = "internal_error"
	ErrCodeValidation     = "validation_error"
	ErrCodeConflict       = "conflict"
	ErrCodeInvalidState   = "invalid_state"
	ErrCodeLedgerRejected = "ledger_rejected"
	ErrCodeBatchBlocked   = "batch_blocked"
)

// NewAPIError creates a new APIError with the given code and message.
func NewAPIError(code, message string) APIError {
	return APIError{
		Code:    code,
		Message: message,
	}
}

// NotFoundError creates a not found error response.
func NotFoundError(resource string) APIError {
	return NewAPIError(ErrCodeNotFound, resource+" not found")
}

// BadRequestError creates a bad request error response.
func BadRequestError(message string) APIError {
	return NewAPIError(ErrCodeBadRequest, message)
}

// InternalError creates an internal server error response.
func InternalError() APIError {
	return NewAPIError(ErrCodeInternalError, "an internal error occurred")
}

// ValidationError creates a validation error response.
func ValidationError(message string) APIError {
	return NewAPIError(ErrCodeValidation, message)
}

// ConflictError creates a conflict error response.
func ConflictError(message string) APIError {
	return NewAPIError(ErrCodeConflict, message)
}

// InvalidStateError creates an invalid state-transition error response.
func InvalidStateError(message string) APIError {
	return NewAPIError(ErrCodeInvalidState, message)
}

// LedgerRejectedError creates a ledger rejection error response.
func LedgerRejectedError(message string) APIError {
	return NewAPIError(ErrCodeLedgerRejected, message)
}

// BatchBlockedError creates a batch-accept safety error response with
// per-member reasons attached.
func BatchBlockedError(details any) APIError {
	err := NewAPIError(ErrCodeBatchBlocked, "batch accept blocked by safety checks")
	err.Details = details
	return err
}
