package domain

import (
	"errors"
	"fmt"
)

// ProviderAccount is what the identity provider returns after a successful sign-in or sign-up.
type ProviderAccount struct {
	AccountID string
	Token     string
	Email     string
}

// ProviderCode is the closed vocabulary of identity provider failures.
type ProviderCode string

const (
	ProviderEmailNotFound   ProviderCode = "EMAIL_NOT_FOUND"
	ProviderInvalidPassword ProviderCode = "INVALID_PASSWORD"
	ProviderInvalidLogin    ProviderCode = "INVALID_LOGIN_CREDENTIALS"
	ProviderInvalidEmail    ProviderCode = "INVALID_EMAIL"
	ProviderEmailExists     ProviderCode = "EMAIL_EXISTS"
	ProviderWeakPassword    ProviderCode = "WEAK_PASSWORD"
	ProviderTooManyAttempts ProviderCode = "TOO_MANY_ATTEMPTS_TRY_LATER"
	ProviderUserDisabled    ProviderCode = "USER_DISABLED"
	ProviderInvalidToken    ProviderCode = "INVALID_ID_TOKEN"
	ProviderUserNotFound    ProviderCode = "USER_NOT_FOUND"
	ProviderInvalidOOBCode  ProviderCode = "INVALID_OOB_CODE"
	ProviderExpiredOOBCode  ProviderCode = "EXPIRED_OOB_CODE"
	ProviderUnavailable     ProviderCode = "UNAVAILABLE"
	ProviderUnknown         ProviderCode = "UNKNOWN"
)

var knownProviderCodes = map[ProviderCode]struct{}{
	ProviderEmailNotFound:   {},
	ProviderInvalidPassword: {},
	ProviderInvalidLogin:    {},
	ProviderInvalidEmail:    {},
	ProviderEmailExists:     {},
	ProviderWeakPassword:    {},
	ProviderTooManyAttempts: {},
	ProviderUserDisabled:    {},
	ProviderInvalidToken:    {},
	ProviderUserNotFound:    {},
	ProviderInvalidOOBCode:  {},
	ProviderExpiredOOBCode:  {},
	ProviderUnavailable:     {},
}

// ParseProviderCode maps a raw provider code onto the closed vocabulary.
func ParseProviderCode(raw string) ProviderCode {
	code := ProviderCode(raw)
	if _, ok := knownProviderCodes[code]; ok {
		return code
	}
	return ProviderUnknown
}

// ProviderError is a typed identity provider failure. Error() never includes
// the provider's raw diagnostic; Unwrap exposes it for logging.
type ProviderError struct {
	Code ProviderCode
	Err  error
}

// NewProviderError wraps cause under code.
func NewProviderError(code ProviderCode, cause error) *ProviderError {
	return &ProviderError{Code: code, Err: cause}
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("identity provider: %s", e.Code)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// ProviderCodeOf extracts the provider code carried by err, or ProviderUnknown.
func ProviderCodeOf(err error) ProviderCode {
	var pErr *ProviderError
	if errors.As(err, &pErr) {
		return pErr.Code
	}
	return ProviderUnknown
}

// FailureKind classifies an unsuccessful AuthResult so transports can pick a status.
type FailureKind string

const (
	FailureCredentials FailureKind = "credentials"
	FailureValidation  FailureKind = "validation"
	FailureConflict    FailureKind = "conflict"
	FailureNotFound    FailureKind = "not_found"
	FailureRateLimited FailureKind = "rate_limited"
	FailureUnavailable FailureKind = "unavailable"
	FailureInternal    FailureKind = "internal"
)

var providerFailureKinds = map[ProviderCode]FailureKind{
	ProviderEmailNotFound:   FailureCredentials,
	ProviderInvalidPassword: FailureCredentials,
	ProviderInvalidLogin:    FailureCredentials,
	ProviderUserDisabled:    FailureCredentials,
	ProviderInvalidToken:    FailureCredentials,
	ProviderUserNotFound:    FailureCredentials,
	ProviderInvalidEmail:    FailureValidation,
	ProviderWeakPassword:    FailureValidation,
	ProviderInvalidOOBCode:  FailureValidation,
	ProviderExpiredOOBCode:  FailureValidation,
	ProviderEmailExists:     FailureConflict,
	ProviderTooManyAttempts: FailureRateLimited,
	ProviderUnavailable:     FailureUnavailable,
}

// FailureKindOf classifies a provider code. Unknown codes are internal failures.
func FailureKindOf(code ProviderCode) FailureKind {
	if kind, ok := providerFailureKinds[code]; ok {
		return kind
	}
	return FailureInternal
}

// AuthResult answers a single authentication call. Failure is empty on success.
type AuthResult struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Failure FailureKind `json:"failure,omitempty"`
	UserID  string      `json:"userId,omitempty"`
	Token   string      `json:"token,omitempty"`
	Email   string      `json:"email,omitempty"`
	Role    Role        `json:"role,omitempty"`
}

// Failed builds an unsuccessful result.
func Failed(kind FailureKind, message string) AuthResult {
	return AuthResult{Success: false, Message: message, Failure: kind}
}
