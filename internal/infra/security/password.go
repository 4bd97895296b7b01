package security

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	zxcvbn "github.com/nbutton23/zxcvbn-go"
)

const defaultMinPasswordLength = 8

// PasswordValidationError represents a single password policy violation.
type PasswordValidationError struct {
	Code    string
	Message string
}

func (e *PasswordValidationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// PasswordViolations collects every rule a password failed.
type PasswordViolations []*PasswordValidationError

func (v PasswordViolations) Error() string {
	msgs := make([]string, 0, len(v))
	for _, item := range v {
		msgs = append(msgs, item.Message)
	}
	return strings.Join(msgs, "; ")
}

// Messages returns the human readable message of each violation.
func (v PasswordViolations) Messages() []string {
	out := make([]string, 0, len(v))
	for _, item := range v {
		out = append(out, item.Message)
	}
	return out
}

// AsPasswordViolations extracts the collected violations from err.
func AsPasswordViolations(err error) (PasswordViolations, bool) {
	var v PasswordViolations
	if errors.As(err, &v) {
		return v, true
	}
	var single *PasswordValidationError
	if errors.As(err, &single) {
		return PasswordViolations{single}, true
	}
	return nil, false
}

// PasswordRule validates a password according to a specific policy rule.
type PasswordRule interface {
	Validate(password string, userInputs []string) error
}

// PasswordRuleFunc adapts a function to be used as a PasswordRule.
type PasswordRuleFunc func(password string, userInputs []string) error

func (f PasswordRuleFunc) Validate(password string, userInputs []string) error {
	return f(password, userInputs)
}

// PasswordPolicy applies a sequence of rules and reports every violation at once.
type PasswordPolicy struct {
	rules []PasswordRule
}

// NewPasswordPolicy constructs a policy from rules.
func NewPasswordPolicy(rules ...PasswordRule) *PasswordPolicy {
	copied := make([]PasswordRule, len(rules))
	copy(copied, rules)
	return &PasswordPolicy{rules: copied}
}

// DefaultPasswordPolicy requires eight characters including upper case, lower
// case, digit and special characters.
func DefaultPasswordPolicy() *PasswordPolicy {
	return PasswordPolicyWithStrength(0)
}

// PasswordPolicyWithStrength adds a minimum zxcvbn score to the default rules.
// A score of zero skips the estimate.
func PasswordPolicyWithStrength(minScore int) *PasswordPolicy {
	return NewPasswordPolicy(
		MinLengthRule(defaultMinPasswordLength),
		RequireEveryCharacterClassRule(),
		RequirePasswordStrengthRule(minScore),
	)
}

// PasswordStrength is the zxcvbn estimate reported to clients.
type PasswordStrength struct {
	Score     int    `json:"score"`
	CrackTime string `json:"crackTime"`
}

// EstimateStrength scores password against the given user inputs.
func EstimateStrength(password string, userInputs ...string) PasswordStrength {
	result := zxcvbn.PasswordStrength(password, trimInputs(userInputs))
	return PasswordStrength{Score: result.Score, CrackTime: result.CrackTimeDisplay}
}

func trimInputs(userInputs []string) []string {
	inputs := make([]string, 0, len(userInputs))
	for _, in := range userInputs {
		if in = strings.TrimSpace(in); in != "" {
			inputs = append(inputs, in)
		}
	}
	return inputs
}

// Validate runs every rule. userInputs (email, names) feed the strength estimate
// so passwords derived from them score lower.
func (p *PasswordPolicy) Validate(password string, userInputs ...string) error {
	if p == nil {
		return fmt.Errorf("password policy not configured")
	}

	var violations PasswordViolations
	for _, rule := range p.rules {
		err := rule.Validate(password, userInputs)
		if err == nil {
			continue
		}
		var vErr *PasswordValidationError
		if !errors.As(err, &vErr) {
			return err
		}
		violations = append(violations, vErr)
	}
	if len(violations) > 0 {
		return violations
	}
	return nil
}

// MinLengthRule ensures the password has at least min characters.
func MinLengthRule(min int) PasswordRule {
	return PasswordRuleFunc(func(password string, _ []string) error {
		if len([]rune(password)) < min {
			return &PasswordValidationError{
				Code:    "min_length",
				Message: fmt.Sprintf("Password must be at least %d characters long", min),
			}
		}
		return nil
	})
}

// RequireEveryCharacterClassRule demands at least one upper case letter, lower case
// letter, digit and character that is neither letter nor digit.
func RequireEveryCharacterClassRule() PasswordRule {
	return PasswordRuleFunc(func(password string, _ []string) error {
		var hasUpper, hasLower, hasDigit, hasSpecial bool
		for _, r := range password {
			switch {
			case unicode.IsUpper(r):
				hasUpper = true
			case unicode.IsLower(r):
				hasLower = true
			case unicode.IsDigit(r):
				hasDigit = true
			case !unicode.IsLetter(r):
				hasSpecial = true
			}
		}

		var missing []string
		if !hasUpper {
			missing = append(missing, "an uppercase letter")
		}
		if !hasLower {
			missing = append(missing, "a lowercase letter")
		}
		if !hasDigit {
			missing = append(missing, "a digit")
		}
		if !hasSpecial {
			missing = append(missing, "a special character")
		}
		if len(missing) == 0 {
			return nil
		}

		return &PasswordValidationError{
			Code:    "character_classes",
			Message: "Password must contain " + strings.Join(missing, ", "),
		}
	})
}

// RequireDifferentFrom ensures the new password differs from the provided comparator.
func RequireDifferentFrom(comparator string) PasswordRule {
	return PasswordRuleFunc(func(password string, _ []string) error {
		if password == comparator {
			return &PasswordValidationError{
				Code:    "different",
				Message: "New password must be different from the current password",
			}
		}
		return nil
	})
}

// RequirePasswordStrengthRule enforces a minimum zxcvbn score.
func RequirePasswordStrengthRule(minScore int) PasswordRule {
	if minScore > 4 {
		minScore = 4
	}
	return PasswordRuleFunc(func(password string, userInputs []string) error {
		if minScore <= 0 || password == "" {
			return nil
		}

		if zxcvbn.PasswordStrength(password, trimInputs(userInputs)).Score >= minScore {
			return nil
		}
		return &PasswordValidationError{
			Code:    "weak_password",
			Message: "Password is too easy to guess",
		}
	})
}
