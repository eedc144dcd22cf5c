package errorutil

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	HTTPStatus int            `json:"-"`
	Details    map[string]any `json:"details,omitempty"`
	Err        error          `json:"-"`
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches any DomainError carrying the same code.
func (e *DomainError) Is(target error) bool {
	var other *DomainError
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

const (
	CodeDuplicateUser         = "DUPLICATE_USER"
	CodeUserNotFound          = "USER_NOT_FOUND"
	CodeInvalidCredentials    = "INVALID_CREDENTIALS"
	CodeTokenMismatch         = "TOKEN_MISMATCH"
	CodeInvalidToken          = "INVALID_TOKEN"
	CodeMissingToken          = "MISSING_TOKEN"
	CodeValidationUnavailable = "VALIDATION_UNAVAILABLE"
	CodeResourceNotFound      = "RESOURCE_NOT_FOUND"
	CodeNotAuthorized         = "NOT_AUTHORIZED"
	CodeSigningError          = "SIGNING_ERROR"
	CodeValidationFailed      = "VALIDATION_FAILED"
	CodeInternal              = "INTERNAL_ERROR"
)

// Sentinels for errors.Is checks. Never mutate them; use With to attach a cause.
var (
	ErrDuplicateUser         = NewDomainError(CodeDuplicateUser, "this mail is already registered", http.StatusConflict, nil)
	ErrUserNotFound          = NewDomainError(CodeUserNotFound, "no user found", http.StatusForbidden, nil)
	ErrInvalidCredentials    = NewDomainError(CodeInvalidCredentials, "invalid password", http.StatusForbidden, nil)
	ErrTokenMismatch         = NewDomainError(CodeTokenMismatch, "token does not match", http.StatusForbidden, nil)
	ErrInvalidToken          = NewDomainError(CodeInvalidToken, "invalid token", http.StatusUnauthorized, nil)
	ErrMissingToken          = NewDomainError(CodeMissingToken, "token missing", http.StatusUnauthorized, nil)
	ErrValidationUnavailable = NewDomainError(CodeValidationUnavailable, "token validation unavailable", http.StatusServiceUnavailable, nil)
	ErrResourceNotFound      = NewDomainError(CodeResourceNotFound, "product not found", http.StatusNotFound, nil)
	ErrNotAuthorized         = NewDomainError(CodeNotAuthorized, "not authorized to modify this product", http.StatusForbidden, nil)
	ErrSigningError          = NewDomainError(CodeSigningError, "unable to sign token", http.StatusInternalServerError, nil)
)

// With returns a copy of e wrapping cause.
func (e *DomainError) With(cause error) *DomainError {
	cp := *e
	cp.Err = cause
	return &cp
}

// FromCode rebuilds a DomainError received over the wire. Unknown codes
// become internal errors carrying the remote message.
func FromCode(code, message string) *DomainError {
	for _, known := range []*DomainError{
		ErrDuplicateUser, ErrUserNotFound, ErrInvalidCredentials, ErrTokenMismatch,
		ErrInvalidToken, ErrMissingToken, ErrValidationUnavailable, ErrResourceNotFound,
		ErrNotAuthorized, ErrSigningError,
	} {
		if known.Code == code {
			cp := *known
			if message != "" {
				cp.Message = message
			}
			return &cp
		}
	}
	if code == CodeValidationFailed {
		return NewDomainError(code, message, http.StatusBadRequest, nil)
	}
	return NewDomainError(CodeInternal, message, http.StatusInternalServerError, nil)
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidationFailed, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError("UNAUTHORIZED", message, http.StatusUnauthorized, nil)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return NewNotFound("resource", nil).(*DomainError)
	}
	return NewInternalError(err).(*DomainError)
}

func MapError(err error) error {
	return ToDomainError(err)
}
