package security

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	employeeIDPattern = regexp.MustCompile(`(?i)^EMP\d{4,6}$`)
	phonePattern      = regexp.MustCompile(`^(\+27|0)[1-9]\d{8}$`)

	fieldValidator = validator.New(validator.WithRequiredStructEnabled())
)

// IsValidEmail applies the validator "email" rule.
func IsValidEmail(email string) bool {
	if strings.TrimSpace(email) == "" {
		return false
	}
	return fieldValidator.Var(email, "email") == nil
}

// IsValidEmployeeID accepts EMP followed by four to six digits, in any case.
func IsValidEmployeeID(id string) bool {
	return employeeIDPattern.MatchString(id)
}

// IsValidPhoneNumber accepts South African numbers; the field is optional so empty is valid.
func IsValidPhoneNumber(phone string) bool {
	if phone == "" {
		return true
	}
	return phonePattern.MatchString(phone)
}

// NormalizeEmail lower-cases and trims an address for storage and lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeEmployeeID upper-cases and trims an employee id.
func NormalizeEmployeeID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}
