package security

import (
	"testing"

	zxcvbn "github.com/nbutton23/zxcvbn-go"
)

func codes(t *testing.T, err error) map[string]bool {
	t.Helper()
	violations, ok := AsPasswordViolations(err)
	if !ok {
		t.Fatalf("expected password violations, got %v", err)
	}
	out := make(map[string]bool, len(violations))
	for _, v := range violations {
		out[v.Code] = true
	}
	return out
}

func TestDefaultPasswordPolicyAcceptsStrongPassword(t *testing.T) {
	password := "Kudu!Savanna#2025"
	if strength := zxcvbn.PasswordStrength(password, nil); strength.Score < 2 {
		t.Fatalf("test password unexpectedly weak: score=%d", strength.Score)
	}
	if err := PasswordPolicyWithStrength(2).Validate(password, "thandi@treasury.gov.za"); err != nil {
		t.Fatalf("expected password to pass, got %v", err)
	}
}

func TestDefaultPasswordPolicyAcceptsCharacterClassPassword(t *testing.T) {
	if err := DefaultPasswordPolicy().Validate("Secret1!"); err != nil {
		t.Fatalf("expected password to pass, got %v", err)
	}
}

func TestEstimateStrength(t *testing.T) {
	weak := EstimateStrength("password")
	strong := EstimateStrength("Kudu!Savanna#2025")
	if weak.Score >= strong.Score {
		t.Fatalf("expected weak score below strong score, got %d and %d", weak.Score, strong.Score)
	}
	if strong.CrackTime == "" {
		t.Fatal("expected crack time display")
	}
}

func TestDefaultPasswordPolicyReportsEveryViolation(t *testing.T) {
	got := codes(t, DefaultPasswordPolicy().Validate("abc"))
	if !got["min_length"] || !got["character_classes"] {
		t.Fatalf("expected length and class violations, got %v", got)
	}
}

func TestDefaultPasswordPolicyRequiresSpecialCharacter(t *testing.T) {
	got := codes(t, DefaultPasswordPolicy().Validate("Abcdefgh1"))
	if !got["character_classes"] {
		t.Fatalf("expected character class violation, got %v", got)
	}
}

func TestStrengthRuleUsesUserInputs(t *testing.T) {
	rule := RequirePasswordStrengthRule(4)
	if err := rule.Validate("Password1!", []string{"password"}); err == nil {
		t.Fatal("expected weak password rejection")
	}
}

func TestRequireDifferentFrom(t *testing.T) {
	policy := NewPasswordPolicy(MinLengthRule(4), RequireDifferentFrom("Old#Pass1"))

	got := codes(t, policy.Validate("Old#Pass1"))
	if !got["different"] {
		t.Fatalf("expected different violation, got %v", got)
	}
	if err := policy.Validate("New#Pass2"); err != nil {
		t.Fatalf("expected pass, got %v", err)
	}
}
