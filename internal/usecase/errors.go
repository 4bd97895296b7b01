package usecase

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrProfileNotFound indicates no users document exists for the id.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrInvalidCredentials indicates re-authentication with the current password failed.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrPasswordPolicyViolation indicates the new password does not meet the password policy.
	ErrPasswordPolicyViolation = errors.New("password does not meet complexity requirements")
	// ErrEmailTaken indicates another profile already uses the email address.
	ErrEmailTaken = errors.New("email already in use")
	// ErrEmailOutOfSync indicates the provider and the profile disagree on the account email
	// after a failed mirror and a failed compensation.
	ErrEmailOutOfSync = errors.New("email changed at the identity provider but not on the profile")
	// ErrSkillNotFound indicates the skill does not exist.
	ErrSkillNotFound = errors.New("skill not found")
	// ErrTrainingNotFound indicates the training record does not exist.
	ErrTrainingNotFound = errors.New("training not found")
	// ErrNotificationNotFound indicates the notification does not exist or belongs to another user.
	ErrNotificationNotFound = errors.New("notification not found")
	// ErrPermissionDenied indicates the caller may not act on the record.
	ErrPermissionDenied = errors.New("insufficient permissions")
	// ErrSelfModification indicates an administrator tried to change their own role or status.
	ErrSelfModification = errors.New("cannot change own role or status")
)

// ValidationError reports invalid input per field.
type ValidationError struct {
	Fields map[string][]string
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return "validation failed"
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(e.Fields[k], ", "))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records message against field.
func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], message)
}

// OrNil returns e when it carries at least one message.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}
