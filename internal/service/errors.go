package service

import "net/http"

// Error is a service-level failure carrying the API error code and the
// HTTP status it renders as. Validation errors surface verbatim; anything
// that is not an *Error is treated as a backend failure and rendered
// generically with a correlation id.
type Error struct {
	Code    string `json:"code"`
	Status  int    `json:"-"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Message
}

var (
	// Auth
	ErrTokenMissing       = &Error{Code: "AUTH_TOKEN_MISSING", Status: http.StatusUnauthorized, Message: "Authorization bearer token is required"}
	ErrTokenExpired       = &Error{Code: "AUTH_TOKEN_EXPIRED", Status: http.StatusUnauthorized, Message: "Authorization token has expired"}
	ErrTokenInvalid       = &Error{Code: "AUTH_TOKEN_INVALID", Status: http.StatusUnauthorized, Message: "Authorization token is invalid"}
	ErrAuthUnavailable    = &Error{Code: "AUTH_SERVICE_UNAVAILABLE", Status: http.StatusServiceUnavailable, Message: "Identity verifier is not configured"}
	ErrForbidden          = &Error{Code: "FORBIDDEN", Status: http.StatusForbidden, Message: "You do not have permission to perform this action"}

	// Validation
	ErrRequiredField   = &Error{Code: "VALIDATION_REQUIRED_FIELD", Status: http.StatusBadRequest, Message: "A required field is missing"}
	ErrInvalidFormat   = &Error{Code: "VALIDATION_INVALID_FORMAT", Status: http.StatusBadRequest, Message: "A field has an invalid format"}
	ErrFileTooLarge    = &Error{Code: "FILE_TOO_LARGE", Status: http.StatusRequestEntityTooLarge, Message: "Uploaded file exceeds the size limit"}
	ErrInvalidFileType = &Error{Code: "INVALID_FILE_TYPE", Status: http.StatusBadRequest, Message: "Uploaded file type is not allowed"}

	// Resources
	ErrNotFound      = &Error{Code: "NOT_FOUND", Status: http.StatusNotFound, Message: "Resource not found"}
	ErrUserNotFound  = &Error{Code: "NOT_FOUND", Status: http.StatusNotFound, Message: "User not found"}
	ErrGroupNotFound = &Error{Code: "NOT_FOUND", Status: http.StatusNotFound, Message: "Family group not found"}
	ErrLimitExceeded = &Error{Code: "LIMIT_EXCEEDED", Status: http.StatusBadRequest, Message: "Group member limit exceeded"}

	// Family
	ErrInvitationNotFound  = &Error{Code: "INVITATION_NOT_FOUND", Status: http.StatusNotFound, Message: "Invitation not found"}
	ErrInvitationExpired   = &Error{Code: "INVITATION_EXPIRED", Status: http.StatusGone, Message: "Invitation has expired"}
	ErrDuplicateInvitation = &Error{Code: "DUPLICATE_INVITATION", Status: http.StatusConflict, Message: "A pending invitation already exists for this email"}
	ErrDuplicateMember     = &Error{Code: "DUPLICATE_MEMBER", Status: http.StatusConflict, Message: "User is already an active member of this group"}
	ErrEmailMismatch       = &Error{Code: "EMAIL_MISMATCH", Status: http.StatusBadRequest, Message: "Invitation was addressed to a different email"}
	ErrCannotRemoveCreator = &Error{Code: "CANNOT_REMOVE_CREATOR", Status: http.StatusBadRequest, Message: "The group creator cannot be removed"}
	ErrCannotChangeCreator = &Error{Code: "CANNOT_CHANGE_CREATOR", Status: http.StatusBadRequest, Message: "The group creator's role cannot be changed"}

	// Backend
	ErrDBOperation        = &Error{Code: "DB_OPERATION_FAILED", Status: http.StatusInternalServerError, Message: "Operation failed"}
	ErrServiceUnavailable = &Error{Code: "SERVICE_UNAVAILABLE", Status: http.StatusServiceUnavailable, Message: "Service temporarily unavailable"}
	ErrRateLimited        = &Error{Code: "RATE_LIMIT_EXCEEDED", Status: http.StatusTooManyRequests, Message: "Too many requests, slow down"}
)

// validationError clones ErrRequiredField/ErrInvalidFormat style errors
// with a concrete message so handlers can surface it verbatim.
func validationError(base *Error, message string) *Error {
	return &Error{Code: base.Code, Status: base.Status, Message: message}
}
