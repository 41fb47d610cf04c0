package errorutil

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes surfaced to API clients. Every failure leaving a flow maps to
// exactly one of these; raw errors never reach the response body.
const (
	CodeInvalidBody = "invalid_body"

	CodeMissingToken        = "missing_token"
	CodeInvalidToken        = "invalid_token"
	CodeInvalidCredentials  = "invalid_credentials"
	CodeInvalidTokenSubject = "invalid_token_subject"
	CodeInvalidTokenScope   = "invalid_token_scope"

	CodeInvalidChallenge     = "invalid_challenge"
	CodeInvalidCredential    = "invalid_credential"
	CodeAuthenticationFailed = "authentication_failed"
	CodePermitRequired       = "birthdate_permit_required"
	CodePermitInvalid        = "birthdate_permit_invalid"
	CodePermitExpired        = "birthdate_permit_expired"
	CodeNoPermitRequired     = "no_permit_required"

	CodeUnknownUser   = "unknown_user"
	CodeUnknownError  = "unknown_error"
	CodeInternalError = "internal_error"

	CodeCredentialNotStored = "credential_not_stored"
	CodeUserCreationFailed  = "user_creation_failed"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	HTTPStatus int
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return e.Code
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code string, status int) *DomainError {
	return &DomainError{Code: code, HTTPStatus: status}
}

// NewBadRequest flags malformed or rejected client input.
func NewBadRequest(code string) error {
	return NewDomainError(code, http.StatusBadRequest)
}

// NewUnauthorized flags missing or failed authentication.
func NewUnauthorized(code string) error {
	return NewDomainError(code, http.StatusUnauthorized)
}

// NewForbidden flags an authenticated caller lacking access.
func NewForbidden(code string) error {
	return NewDomainError(code, http.StatusForbidden)
}

// NewNotFound flags an unresolvable subject or record.
func NewNotFound(code string) error {
	return NewDomainError(code, http.StatusNotFound)
}

// NewInternalError wraps an unexpected downstream failure.
func NewInternalError(err error) error {
	return &DomainError{Code: CodeInternalError, HTTPStatus: http.StatusInternalServerError, Err: err}
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
	return &DomainError{
		Code:       CodeInternalError,
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}
