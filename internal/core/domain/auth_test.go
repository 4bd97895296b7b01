package domain

import (
	"errors"
	"testing"
)

func TestFailureKindOf(t *testing.T) {
	tests := []struct {
		code ProviderCode
		want FailureKind
	}{
		{ProviderInvalidLogin, FailureCredentials},
		{ProviderUserDisabled, FailureCredentials},
		{ProviderWeakPassword, FailureValidation},
		{ProviderExpiredOOBCode, FailureValidation},
		{ProviderEmailExists, FailureConflict},
		{ProviderTooManyAttempts, FailureRateLimited},
		{ProviderUnavailable, FailureUnavailable},
		{ProviderUnknown, FailureInternal},
		{ProviderCode("SOMETHING_NEW"), FailureInternal},
	}
	for _, tt := range tests {
		if got := FailureKindOf(tt.code); got != tt.want {
			t.Errorf("FailureKindOf(%s) = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestProviderCodeOfUnwrapsProviderErrors(t *testing.T) {
	err := NewProviderError(ProviderUnavailable, errors.New("timeout"))
	if got := ProviderCodeOf(err); got != ProviderUnavailable {
		t.Fatalf("expected UNAVAILABLE, got %s", got)
	}
	if got := ProviderCodeOf(errors.New("plain")); got != ProviderUnknown {
		t.Fatalf("expected UNKNOWN for plain errors, got %s", got)
	}
}
