package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/arklim/skills-audit/internal/core/document"
	"github.com/arklim/skills-audit/internal/core/domain"
	"github.com/arklim/skills-audit/internal/repository"
)

func TestLoginReturnsProfileRole(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	id := f.identity.seed("manager@treasury.gov.za", "Secret1!")
	seedProfile(t, f.store, domain.Profile{
		ID:         id,
		FirstName:  "Lerato",
		LastName:   "Mokoena",
		Email:      "manager@treasury.gov.za",
		EmployeeID: "EMP2001",
		Department: "Finance",
		Role:       domain.RoleManager,
		IsActive:   true,
	})

	result := f.service.Login(ctx, "manager@treasury.gov.za", "Secret1!")
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if result.UserID != id || result.Role != domain.RoleManager || result.Token == "" {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.Message != MessageLoginSuccessful {
		t.Fatalf("unexpected message %q", result.Message)
	}
}

func TestLoginDefaultsMissingRoleToEmployee(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	id := f.identity.seed("legacy@treasury.gov.za", "Secret1!")
	if err := f.store.Set(ctx, domain.CollectionUsers, id, map[string]any{
		domain.FieldEmail:     "legacy@treasury.gov.za",
		domain.FieldFirstName: "Legacy",
	}); err != nil {
		t.Fatalf("seed legacy profile: %v", err)
	}

	result := f.service.Login(ctx, "legacy@treasury.gov.za", "Secret1!")
	if !result.Success || result.Role != domain.RoleEmployee {
		t.Fatalf("expected employee login for legacy profile, got %+v", result)
	}
}

func TestLoginFailures(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	inactive := f.identity.seed("gone@treasury.gov.za", "Secret1!")
	seedProfile(t, f.store, domain.Profile{
		ID:         inactive,
		Email:      "gone@treasury.gov.za",
		EmployeeID: "EMP3001",
		Role:       domain.RoleEmployee,
		IsActive:   false,
	})
	f.identity.seed("orphan@treasury.gov.za", "Secret1!")

	tests := []struct {
		name     string
		email    string
		password string
		want     string
		kind     domain.FailureKind
	}{
		{"wrong password", "gone@treasury.gov.za", "nope", "Invalid login credentials", domain.FailureCredentials},
		{"deactivated", "gone@treasury.gov.za", "Secret1!", MessageAccountDeactivated, domain.FailureCredentials},
		{"no profile", "orphan@treasury.gov.za", "Secret1!", MessageProfileNotFound, domain.FailureCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := f.service.Login(ctx, tt.email, tt.password)
			if result.Success {
				t.Fatalf("expected failure, got %+v", result)
			}
			if result.Message != tt.want || result.Failure != tt.kind {
				t.Fatalf("expected %q (%s), got %q (%s)", tt.want, tt.kind, result.Message, result.Failure)
			}
			if result.Token != "" || result.UserID != "" {
				t.Fatalf("failure leaked credentials: %+v", result)
			}
		})
	}
}

func TestRegisterCreatesAccountAndProfile(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	result := f.service.Register(ctx, domain.Registration{
		FirstName:  "Sipho",
		LastName:   "Ndlovu",
		Email:      "Sipho.Ndlovu@treasury.gov.za",
		Password:   "Secret1!",
		EmployeeID: "emp1234",
		Department: "Finance",
	})
	if !result.Success {
		t.Fatalf("expected registration to succeed, got %+v", result)
	}
	if result.Message != MessageRegistrationSucceeded || result.Role != domain.RoleEmployee {
		t.Fatalf("unexpected result %+v", result)
	}

	doc, err := f.store.Get(ctx, domain.CollectionUsers, result.UserID)
	if err != nil {
		t.Fatalf("profile not stored: %v", err)
	}
	profile := domain.ProfileFromDocument(doc)
	if profile.Email != "sipho.ndlovu@treasury.gov.za" || profile.EmployeeID != "EMP1234" {
		t.Fatalf("expected normalised identifiers, got %+v", profile)
	}
	if !profile.IsActive || profile.Role != domain.RoleEmployee {
		t.Fatalf("expected active employee, got %+v", profile)
	}
	if !profile.CreatedAt.Equal(testNow) || !profile.UpdatedAt.Equal(testNow) {
		t.Fatalf("expected timestamps %v, got %v/%v", testNow, profile.CreatedAt, profile.UpdatedAt)
	}
	if len(f.events.registered) != 1 || f.events.registered[0].UserID != result.UserID {
		t.Fatalf("expected one registration event, got %+v", f.events.registered)
	}

	login := f.service.Login(ctx, "sipho.ndlovu@treasury.gov.za", "Secret1!")
	if !login.Success || login.UserID != result.UserID {
		t.Fatalf("expected login after registration, got %+v", login)
	}
}

func TestRegisterDuplicatesNeverReachProvider(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	seedProfile(t, f.store, domain.Profile{
		ID:         "existing",
		Email:      "taken@treasury.gov.za",
		EmployeeID: "EMP1000",
		IsActive:   true,
	})

	tests := []struct {
		name       string
		email      string
		employeeID string
		want       string
	}{
		{"email", "Taken@Treasury.gov.za", "EMP9999", MessageEmailRegistered},
		{"employee id", "new@treasury.gov.za", "emp1000", MessageEmployeeIDRegistered},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := f.service.Register(ctx, domain.Registration{
				FirstName:  "New",
				LastName:   "Person",
				Email:      tt.email,
				Password:   "Secret1!",
				EmployeeID: tt.employeeID,
				Department: "Finance",
			})
			if result.Success || result.Message != tt.want || result.Failure != domain.FailureConflict {
				t.Fatalf("expected %q, got %+v", tt.want, result)
			}
		})
	}
	if f.identity.createCalls != 0 {
		t.Fatalf("expected no provider calls, got %d", f.identity.createCalls)
	}
}

func TestRegisterReportsDuplicateBeforeWeakPassword(t *testing.T) {
	f := newAuthFixture(t)
	seedProfile(t, f.store, domain.Profile{
		ID:         "existing",
		Email:      "taken@treasury.gov.za",
		EmployeeID: "EMP1000",
		IsActive:   true,
	})

	result := f.service.Register(context.Background(), domain.Registration{
		FirstName:  "New",
		LastName:   "Person",
		Email:      "taken@treasury.gov.za",
		Password:   "password",
		EmployeeID: "EMP9999",
		Department: "Finance",
	})
	if result.Success || result.Message != MessageEmailRegistered || result.Failure != domain.FailureConflict {
		t.Fatalf("expected duplicate email to win, got %+v", result)
	}
	if f.identity.createCalls != 0 {
		t.Fatalf("expected no provider calls, got %d", f.identity.createCalls)
	}
}

func TestRegisterRejectsWeakPassword(t *testing.T) {
	f := newAuthFixture(t)

	result := f.service.Register(context.Background(), domain.Registration{
		FirstName:  "Weak",
		LastName:   "Password",
		Email:      "weak@treasury.gov.za",
		Password:   "password",
		EmployeeID: "EMP4321",
		Department: "Finance",
	})
	if result.Success || result.Failure != domain.FailureValidation {
		t.Fatalf("expected weak password to be rejected, got %+v", result)
	}
	if f.identity.createCalls != 0 {
		t.Fatalf("weak password reached the provider")
	}
}

func TestRegisterRemovesAccountWhenProfileWriteFails(t *testing.T) {
	f := newAuthFixture(t)
	f.store.WithWriteHook(func(op document.Write) error {
		if op.Collection == domain.CollectionUsers {
			return errors.New("disk full")
		}
		return nil
	})

	result := f.service.Register(context.Background(), domain.Registration{
		FirstName:  "Half",
		LastName:   "Done",
		Email:      "half@treasury.gov.za",
		Password:   "Secret1!",
		EmployeeID: "EMP5555",
		Department: "Finance",
	})
	if result.Success || result.Message != MessageAccountNotCreated {
		t.Fatalf("expected account creation failure, got %+v", result)
	}
	if f.identity.deleteCalls != 1 {
		t.Fatalf("expected orphaned account removal, got %d deletes", f.identity.deleteCalls)
	}
	if len(f.identity.accounts) != 0 {
		t.Fatalf("provider still holds %d accounts", len(f.identity.accounts))
	}
	if len(f.events.registered) != 0 {
		t.Fatalf("registration event published for failed registration")
	}
}

func TestTokenValidationCollapsesFailures(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	id := f.identity.seed("token@treasury.gov.za", "Secret1!")
	account, err := f.identity.VerifyPassword(ctx, "token@treasury.gov.za", "Secret1!")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}

	if got := f.service.GetUserIDFromToken(ctx, account.Token); got != id {
		t.Fatalf("expected %s, got %q", id, got)
	}
	if !f.service.ValidateToken(ctx, account.Token) {
		t.Fatal("expected token to validate")
	}
	for _, token := range []string{"", "   ", "forged"} {
		if f.service.ValidateToken(ctx, token) || f.service.GetUserIDFromToken(ctx, token) != "" {
			t.Fatalf("token %q should be rejected", token)
		}
	}

	f.identity.verifyTokenErr = domain.NewProviderError(domain.ProviderUnavailable, errors.New("timeout"))
	if got := f.service.GetUserIDFromToken(ctx, account.Token); got != "" {
		t.Fatalf("transport failure must collapse to empty id, got %q", got)
	}
}

func TestChangePasswordRequiresCurrentPassword(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	id := f.identity.seed("change@treasury.gov.za", "Secret1!")
	seedProfile(t, f.store, domain.Profile{ID: id, Email: "change@treasury.gov.za", EmployeeID: "EMP6001", IsActive: true})

	err := f.service.ChangePassword(ctx, id, "wrong", "N3w!Passw0rd")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if f.identity.updatePasswordCalls != 0 {
		t.Fatalf("provider update called %d times", f.identity.updatePasswordCalls)
	}

	if err := f.service.ChangePassword(ctx, "missing", "Secret1!", "N3w!Passw0rd"); !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("expected ErrProfileNotFound, got %v", err)
	}

	if err := f.service.ChangePassword(ctx, id, "Secret1!", "Secret1!"); !errors.Is(err, ErrPasswordPolicyViolation) {
		t.Fatalf("expected reuse to violate the policy, got %v", err)
	}

	if err := f.service.ChangePassword(ctx, id, "Secret1!", "N3w!Passw0rd"); err != nil {
		t.Fatalf("change password: %v", err)
	}
	if f.identity.updatePasswordCalls != 1 {
		t.Fatalf("expected one provider update, got %d", f.identity.updatePasswordCalls)
	}
	if !f.service.Login(ctx, "change@treasury.gov.za", "N3w!Passw0rd").Success {
		t.Fatal("expected login with the new password")
	}
	if len(f.events.passwords) != 1 {
		t.Fatalf("expected one password changed event, got %d", len(f.events.passwords))
	}
}

func TestResetPassword(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.identity.seed("reset@treasury.gov.za", "Secret1!")

	result := f.service.ResetPassword(ctx, "Reset@Treasury.gov.za")
	if !result.Success || result.Message != MessageResetSent {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(f.events.resets) != 1 || f.events.resets[0].MaskedDestination == "reset@treasury.gov.za" {
		t.Fatalf("expected one masked reset event, got %+v", f.events.resets)
	}

	missing := f.service.ResetPassword(ctx, "nobody@treasury.gov.za")
	if missing.Success || missing.Message != "No account found with this email address" || missing.Failure != domain.FailureCredentials {
		t.Fatalf("unexpected result %+v", missing)
	}

	bad := f.service.ConfirmPasswordReset(ctx, "bogus", "N3w!Passw0rd")
	if bad.Success || bad.Message != "The password reset code is invalid" || bad.Failure != domain.FailureValidation {
		t.Fatalf("unexpected result %+v", bad)
	}
	ok := f.service.ConfirmPasswordReset(ctx, "valid-code", "N3w!Passw0rd")
	if !ok.Success {
		t.Fatalf("unexpected result %+v", ok)
	}
}

func TestUpdateEmail(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	id := f.identity.seed("old@treasury.gov.za", "Secret1!")
	seedProfile(t, f.store, domain.Profile{ID: id, Email: "old@treasury.gov.za", EmployeeID: "EMP7001", IsActive: true})
	seedProfile(t, f.store, domain.Profile{ID: "other", Email: "taken@treasury.gov.za", EmployeeID: "EMP7002", IsActive: true})

	if err := f.service.UpdateEmail(ctx, id, "taken@treasury.gov.za"); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
	if f.identity.updateEmailCalls != 0 {
		t.Fatal("provider called for a taken email")
	}

	if err := f.service.UpdateEmail(ctx, id, "New@Treasury.gov.za"); err != nil {
		t.Fatalf("update email: %v", err)
	}
	profile, err := f.store.Get(ctx, domain.CollectionUsers, id)
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if got := profile.String(domain.FieldEmail); got != "new@treasury.gov.za" {
		t.Fatalf("profile email not mirrored: %q", got)
	}
	if f.identity.accounts[id].email != "new@treasury.gov.za" {
		t.Fatalf("provider email not updated")
	}
	if len(f.events.emails) != 1 || f.events.emails[0].OldEmail != "old@treasury.gov.za" {
		t.Fatalf("unexpected email events %+v", f.events.emails)
	}
}

func TestUpdateEmailCompensatesFailedMirror(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	id := f.identity.seed("old@treasury.gov.za", "Secret1!")
	seedProfile(t, f.store, domain.Profile{ID: id, Email: "old@treasury.gov.za", EmployeeID: "EMP8001", IsActive: true})
	f.store.WithWriteHook(func(op document.Write) error {
		if op.Collection == domain.CollectionUsers {
			return errors.New("write rejected")
		}
		return nil
	})

	err := f.service.UpdateEmail(ctx, id, "new@treasury.gov.za")
	if err == nil || errors.Is(err, ErrEmailOutOfSync) {
		t.Fatalf("expected plain mirror failure, got %v", err)
	}
	if f.identity.accounts[id].email != "old@treasury.gov.za" {
		t.Fatalf("provider email not restored: %q", f.identity.accounts[id].email)
	}

	f.identity.updateEmailErrs = []error{nil, domain.NewProviderError(domain.ProviderUnavailable, nil)}
	err = f.service.UpdateEmail(ctx, id, "new@treasury.gov.za")
	if !errors.Is(err, ErrEmailOutOfSync) {
		t.Fatalf("expected ErrEmailOutOfSync, got %v", err)
	}
}

func TestLogoutRecordsLastActivity(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	seedProfile(t, f.store, domain.Profile{ID: "u1", Email: "u1@treasury.gov.za", EmployeeID: "EMP9001", IsActive: true})

	f.service.Logout(ctx, "u1")
	doc, err := f.store.Get(ctx, domain.CollectionUsers, "u1")
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if last := doc.OptionalTime(domain.FieldLastActivity); last == nil || !last.Equal(testNow) {
		t.Fatalf("expected last activity %v, got %v", testNow, last)
	}

	// unknown users are ignored
	f.service.Logout(ctx, "missing")
	if _, err := f.store.Get(ctx, domain.CollectionUsers, "missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("logout created a profile: %v", err)
	}
}

func TestProviderMessageFallsBack(t *testing.T) {
	if got := ProviderMessage(domain.ProviderTooManyAttempts); got != "Too many failed attempts. Please try again later" {
		t.Fatalf("unexpected message %q", got)
	}
	if got := ProviderMessage(domain.ProviderUnknown); got != "Authentication failed. Please try again" {
		t.Fatalf("unexpected fallback %q", got)
	}
}
