package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/skills-audit/internal/core/document"
	"github.com/arklim/skills-audit/internal/core/domain"
	"github.com/arklim/skills-audit/internal/core/port"
	"github.com/arklim/skills-audit/internal/infra/logger"
	"github.com/arklim/skills-audit/internal/infra/security"
	"github.com/arklim/skills-audit/internal/infra/telemetry"
	"github.com/arklim/skills-audit/internal/repository"
)

// User-facing outcome messages.
const (
	MessageLoginSuccessful       = "Login successful"
	MessageRegistrationSucceeded = "Registration successful"
	MessageResetSent             = "Password reset email sent successfully"
	MessageResetConfirmed        = "Password has been reset successfully"
	MessageProfileNotFound       = "User profile not found"
	MessageAccountDeactivated    = "Account is deactivated"
	MessageEmailRegistered       = "Email already registered"
	MessageEmployeeIDRegistered  = "Employee ID already registered"
	MessageAccountNotCreated     = "Failed to create user account"
	MessageUnexpected            = "An unexpected error occurred"
)

// providerMessages translates provider failure codes into the text shown to users.
var providerMessages = map[domain.ProviderCode]string{
	domain.ProviderEmailNotFound:   "No account found with this email address",
	domain.ProviderInvalidPassword: "Invalid password",
	domain.ProviderInvalidLogin:    "Invalid login credentials",
	domain.ProviderInvalidEmail:    "Invalid email address format",
	domain.ProviderEmailExists:     "An account already exists with this email",
	domain.ProviderWeakPassword:    "Password is too weak",
	domain.ProviderTooManyAttempts: "Too many failed attempts. Please try again later",
	domain.ProviderUserDisabled:    "This account has been disabled",
	domain.ProviderInvalidOOBCode:  "The password reset code is invalid",
	domain.ProviderExpiredOOBCode:  "The password reset code has expired",
	domain.ProviderUnavailable:     "The authentication service is unavailable. Please try again",
}

const defaultProviderMessage = "Authentication failed. Please try again"

// ProviderMessage returns the user-facing text for a provider failure code.
func ProviderMessage(code domain.ProviderCode) string {
	if msg, ok := providerMessages[code]; ok {
		return msg
	}
	return defaultProviderMessage
}

// AuthSessionService orchestrates sign-in, registration and credential changes by
// combining identity provider results with profile documents. It holds no session state.
type AuthSessionService struct {
	identity port.IdentityProvider
	store    port.DocumentStore
	events   port.EventPublisher
	policy   *security.PasswordPolicy
	metrics  *telemetry.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

// NewAuthSessionService constructs the service. events and metrics may be nil.
func NewAuthSessionService(
	identity port.IdentityProvider,
	store port.DocumentStore,
	events port.EventPublisher,
	policy *security.PasswordPolicy,
	metrics *telemetry.Metrics,
	log *zap.Logger,
) *AuthSessionService {
	if policy == nil {
		policy = security.DefaultPasswordPolicy()
	}
	return &AuthSessionService{
		identity: identity,
		store:    store,
		events:   events,
		policy:   policy,
		metrics:  metrics,
		logger:   logger.OrNop(log),
		now:      time.Now,
	}
}

// WithClock overrides the service clock.
func (s *AuthSessionService) WithClock(now func() time.Time) *AuthSessionService {
	if now != nil {
		s.now = now
	}
	return s
}

// Login verifies credentials with the provider, then requires an active profile.
func (s *AuthSessionService) Login(ctx context.Context, email, password string) domain.AuthResult {
	log := logger.Enrich(ctx, s.logger)

	account, err := s.identity.VerifyPassword(ctx, email, password)
	if err != nil {
		return s.providerFailure(ctx, "login", err)
	}

	doc, err := s.store.Get(ctx, domain.CollectionUsers, account.AccountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			log.Warn("login without profile", zap.String("account_id", account.AccountID))
			s.metrics.ObserveAuth("login", "profile_not_found")
			return domain.Failed(domain.FailureCredentials, MessageProfileNotFound)
		}
		log.Error("load profile during login", zap.String("account_id", account.AccountID), zap.Error(err))
		s.metrics.ObserveAuth("login", "error")
		return domain.Failed(domain.FailureInternal, MessageUnexpected)
	}

	profile := domain.ProfileFromDocument(doc)
	if !profile.IsActive {
		s.metrics.ObserveAuth("login", "deactivated")
		return domain.Failed(domain.FailureCredentials, MessageAccountDeactivated)
	}

	resolvedEmail := account.Email
	if resolvedEmail == "" {
		resolvedEmail = profile.Email
	}

	s.metrics.ObserveAuth("login", "success")
	log.Info("user signed in", zap.String("user_id", account.AccountID), zap.String("role", string(profile.EffectiveRole())))
	return domain.AuthResult{
		Success: true,
		Message: MessageLoginSuccessful,
		UserID:  account.AccountID,
		Token:   account.Token,
		Email:   resolvedEmail,
		Role:    profile.EffectiveRole(),
	}
}

// Register checks uniqueness, then password strength, then creates the provider
// account and writes the profile.
// A failed profile write removes the freshly created account again.
func (s *AuthSessionService) Register(ctx context.Context, reg domain.Registration) domain.AuthResult {
	log := logger.Enrich(ctx, s.logger)

	reg.Email = security.NormalizeEmail(reg.Email)
	reg.EmployeeID = security.NormalizeEmployeeID(reg.EmployeeID)
	reg.FirstName = strings.TrimSpace(reg.FirstName)
	reg.LastName = strings.TrimSpace(reg.LastName)

	exists, err := s.IsEmailExists(ctx, reg.Email)
	if err != nil {
		log.Error("check email uniqueness", zap.Error(err))
		return domain.Failed(domain.FailureInternal, MessageUnexpected)
	}
	if exists {
		s.metrics.ObserveAuth("register", "email_exists")
		return domain.Failed(domain.FailureConflict, MessageEmailRegistered)
	}

	exists, err = s.IsEmployeeIDExists(ctx, reg.EmployeeID)
	if err != nil {
		log.Error("check employee id uniqueness", zap.Error(err))
		return domain.Failed(domain.FailureInternal, MessageUnexpected)
	}
	if exists {
		s.metrics.ObserveAuth("register", "employee_id_exists")
		return domain.Failed(domain.FailureConflict, MessageEmployeeIDRegistered)
	}

	if err := s.policy.Validate(reg.Password, reg.Email, reg.FirstName, reg.LastName); err != nil {
		s.metrics.ObserveAuth("register", "weak_password")
		if violations, ok := security.AsPasswordViolations(err); ok {
			return domain.Failed(domain.FailureValidation, strings.Join(violations.Messages(), ". "))
		}
		return domain.Failed(domain.FailureInternal, MessageUnexpected)
	}

	account, err := s.identity.CreateAccount(ctx, reg.Email, reg.Password)
	if err != nil {
		return s.providerFailure(ctx, "register", err)
	}
	if account.AccountID == "" {
		log.Error("provider returned account without id")
		s.metrics.ObserveAuth("register", "error")
		return domain.Failed(domain.FailureInternal, MessageAccountNotCreated)
	}

	now := s.now().UTC()
	profile := domain.Profile{
		ID:          account.AccountID,
		FirstName:   reg.FirstName,
		LastName:    reg.LastName,
		Email:       reg.Email,
		EmployeeID:  reg.EmployeeID,
		Department:  reg.Department,
		Role:        domain.RoleEmployee,
		IsActive:    true,
		PhoneNumber: reg.PhoneNumber,
		Position:    reg.Position,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.store.Set(ctx, domain.CollectionUsers, profile.ID, profile.ToDocument()); err != nil {
		log.Error("write profile after account creation", zap.String("account_id", account.AccountID), zap.Error(err))
		s.removeOrphanAccount(ctx, account.AccountID)
		s.metrics.ObserveAuth("register", "error")
		if errors.Is(err, repository.ErrConflict) {
			return domain.Failed(domain.FailureConflict, s.conflictMessage(ctx, reg.Email))
		}
		return domain.Failed(domain.FailureInternal, MessageAccountNotCreated)
	}

	if s.events != nil {
		event := domain.UserRegisteredEvent{
			EventID:      uuid.NewString(),
			UserID:       profile.ID,
			Email:        profile.Email,
			EmployeeID:   profile.EmployeeID,
			Department:   profile.Department,
			Role:         profile.Role,
			RegisteredAt: now,
		}
		if err := s.events.PublishUserRegistered(ctx, event); err != nil {
			log.Warn("publish user registered event failed", zap.String("user_id", profile.ID), zap.Error(err))
		}
	}

	s.metrics.ObserveAuth("register", "success")
	log.Info("user registered", zap.String("user_id", profile.ID), zap.String("email", logger.MaskEmail(profile.Email)))
	return domain.AuthResult{
		Success: true,
		Message: MessageRegistrationSucceeded,
		UserID:  profile.ID,
		Token:   account.Token,
		Email:   profile.Email,
		Role:    domain.RoleEmployee,
	}
}

// conflictMessage works out which unique field a rejected profile write collided on.
func (s *AuthSessionService) conflictMessage(ctx context.Context, email string) string {
	if exists, err := s.IsEmailExists(ctx, email); err == nil && exists {
		return MessageEmailRegistered
	}
	return MessageEmployeeIDRegistered
}

func (s *AuthSessionService) removeOrphanAccount(ctx context.Context, accountID string) {
	if err := s.identity.DeleteAccount(ctx, accountID); err != nil {
		logger.Enrich(ctx, s.logger).Error("remove orphaned provider account",
			zap.String("account_id", accountID),
			zap.Error(err),
		)
	}
}

// ResetPassword asks the provider to deliver a reset message.
func (s *AuthSessionService) ResetPassword(ctx context.Context, email string) domain.AuthResult {
	email = security.NormalizeEmail(email)
	if err := s.identity.SendPasswordReset(ctx, email); err != nil {
		return s.providerFailure(ctx, "password_reset", err)
	}

	if s.events != nil {
		event := domain.PasswordResetRequestedEvent{
			EventID:           uuid.NewString(),
			MaskedDestination: logger.MaskEmail(email),
			RequestedAt:       s.now().UTC(),
		}
		if err := s.events.PublishPasswordResetRequested(ctx, event); err != nil {
			logger.Enrich(ctx, s.logger).Warn("publish password reset requested failed", zap.Error(err))
		}
	}

	s.metrics.ObserveAuth("password_reset", "success")
	return domain.AuthResult{Success: true, Message: MessageResetSent}
}

// ConfirmPasswordReset completes a reset with the delivered code.
func (s *AuthSessionService) ConfirmPasswordReset(ctx context.Context, code, newPassword string) domain.AuthResult {
	if err := s.policy.Validate(newPassword); err != nil {
		if violations, ok := security.AsPasswordViolations(err); ok {
			return domain.Failed(domain.FailureValidation, strings.Join(violations.Messages(), ". "))
		}
		return domain.Failed(domain.FailureInternal, MessageUnexpected)
	}
	if err := s.identity.ConfirmPasswordReset(ctx, code, newPassword); err != nil {
		return s.providerFailure(ctx, "password_reset_confirm", err)
	}
	s.metrics.ObserveAuth("password_reset_confirm", "success")
	return domain.AuthResult{Success: true, Message: MessageResetConfirmed}
}

// Logout records the user's last activity. Failures are logged and never surfaced.
func (s *AuthSessionService) Logout(ctx context.Context, uid string) {
	if strings.TrimSpace(uid) == "" {
		return
	}
	now := s.now().UTC()
	patch := domain.ProfilePatch{LastActivity: &now}
	if err := s.store.Update(ctx, domain.CollectionUsers, uid, patch.Fields()); err != nil {
		logger.Enrich(ctx, s.logger).Warn("record last activity on logout", zap.String("user_id", uid), zap.Error(err))
	}
}

// ValidateToken reports whether the provider accepts token.
func (s *AuthSessionService) ValidateToken(ctx context.Context, token string) bool {
	return s.GetUserIDFromToken(ctx, token) != ""
}

// GetUserIDFromToken returns the account id behind token, or "" when the token
// is missing, invalid, or cannot be checked. "" never denotes a valid user.
func (s *AuthSessionService) GetUserIDFromToken(ctx context.Context, token string) string {
	token = strings.TrimSpace(token)
	if token == "" {
		return ""
	}
	uid, err := s.identity.VerifyToken(ctx, token)
	if err != nil {
		level := zap.DebugLevel
		if domain.ProviderCodeOf(err) == domain.ProviderUnavailable {
			level = zap.WarnLevel
		}
		if ce := logger.Enrich(ctx, s.logger).Check(level, "token verification failed"); ce != nil {
			ce.Write(zap.String("code", string(domain.ProviderCodeOf(err))), zap.Error(err))
		}
		return ""
	}
	return strings.TrimSpace(uid)
}

// ChangePassword re-authenticates with the current password before asking the
// provider to store the new one.
func (s *AuthSessionService) ChangePassword(ctx context.Context, uid, currentPassword, newPassword string) error {
	doc, err := s.store.Get(ctx, domain.CollectionUsers, uid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrProfileNotFound
		}
		return fmt.Errorf("load profile: %w", err)
	}
	profile := domain.ProfileFromDocument(doc)

	result := s.Login(ctx, profile.Email, currentPassword)
	if !result.Success || result.UserID != uid {
		return ErrInvalidCredentials
	}

	err = s.policy.Validate(newPassword, profile.Email, profile.FirstName, profile.LastName)
	if err == nil {
		err = security.RequireDifferentFrom(currentPassword).Validate(newPassword, nil)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPasswordPolicyViolation, err)
	}

	if err := s.identity.UpdatePassword(ctx, uid, newPassword); err != nil {
		s.metrics.ObserveAuth("change_password", string(domain.ProviderCodeOf(err)))
		return fmt.Errorf("update password: %w", err)
	}

	if s.events != nil {
		event := domain.PasswordChangedEvent{
			EventID:   uuid.NewString(),
			UserID:    uid,
			ChangedAt: s.now().UTC(),
		}
		if err := s.events.PublishPasswordChanged(ctx, event); err != nil {
			logger.Enrich(ctx, s.logger).Warn("publish password changed event failed", zap.String("user_id", uid), zap.Error(err))
		}
	}
	s.metrics.ObserveAuth("change_password", "success")
	return nil
}

// UpdateEmail changes the address at the provider and mirrors it into the
// profile. When the mirror fails the provider change is rolled back; if the
// rollback fails too the stores are left disagreeing and ErrEmailOutOfSync is returned.
func (s *AuthSessionService) UpdateEmail(ctx context.Context, uid, newEmail string) error {
	log := logger.Enrich(ctx, s.logger)

	newEmail = security.NormalizeEmail(newEmail)
	if !security.IsValidEmail(newEmail) {
		verr := &ValidationError{}
		verr.Add("email", "Invalid email address format")
		return verr
	}

	doc, err := s.store.Get(ctx, domain.CollectionUsers, uid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrProfileNotFound
		}
		return fmt.Errorf("load profile: %w", err)
	}
	profile := domain.ProfileFromDocument(doc)
	oldEmail := profile.Email
	if oldEmail == newEmail {
		return nil
	}

	owner, err := document.First(ctx, s.store, document.Query{
		Collection: domain.CollectionUsers,
		Filters:    []document.Filter{document.Eq(domain.FieldEmail, newEmail)},
	})
	if err != nil {
		return fmt.Errorf("check email owner: %w", err)
	}
	if owner != nil && owner.ID != uid {
		return ErrEmailTaken
	}

	if err := s.identity.UpdateEmail(ctx, uid, newEmail); err != nil {
		if domain.ProviderCodeOf(err) == domain.ProviderEmailExists {
			return ErrEmailTaken
		}
		return fmt.Errorf("update provider email: %w", err)
	}

	now := s.now().UTC()
	patch := domain.ProfilePatch{Email: &newEmail, UpdatedAt: &now}
	if mirrorErr := s.store.Update(ctx, domain.CollectionUsers, uid, patch.Fields()); mirrorErr != nil {
		log.Error("mirror email into profile", zap.String("user_id", uid), zap.Error(mirrorErr))
		if rollbackErr := s.identity.UpdateEmail(ctx, uid, oldEmail); rollbackErr != nil {
			log.Error("email out of sync between provider and profile",
				zap.String("user_id", uid),
				zap.String("provider_email", logger.MaskEmail(newEmail)),
				zap.String("profile_email", logger.MaskEmail(oldEmail)),
				zap.Error(rollbackErr),
			)
			return fmt.Errorf("%w: %v", ErrEmailOutOfSync, mirrorErr)
		}
		if errors.Is(mirrorErr, repository.ErrConflict) {
			return ErrEmailTaken
		}
		return fmt.Errorf("update profile email: %w", mirrorErr)
	}

	if s.events != nil {
		event := domain.EmailChangedEvent{
			EventID:   uuid.NewString(),
			UserID:    uid,
			OldEmail:  oldEmail,
			NewEmail:  newEmail,
			ChangedAt: now,
		}
		if err := s.events.PublishEmailChanged(ctx, event); err != nil {
			log.Warn("publish email changed event failed", zap.String("user_id", uid), zap.Error(err))
		}
	}
	return nil
}

// IsEmailExists reports whether any profile uses email.
func (s *AuthSessionService) IsEmailExists(ctx context.Context, email string) (bool, error) {
	return s.exists(ctx, domain.FieldEmail, security.NormalizeEmail(email))
}

// IsEmployeeIDExists reports whether any profile uses the employee id.
func (s *AuthSessionService) IsEmployeeIDExists(ctx context.Context, employeeID string) (bool, error) {
	return s.exists(ctx, domain.FieldEmployeeID, security.NormalizeEmployeeID(employeeID))
}

func (s *AuthSessionService) exists(ctx context.Context, field, value string) (bool, error) {
	if value == "" {
		return false, nil
	}
	doc, err := document.First(ctx, s.store, document.Query{
		Collection: domain.CollectionUsers,
		Filters:    []document.Filter{document.Eq(field, value)},
	})
	if err != nil {
		return false, fmt.Errorf("query users by %s: %w", field, err)
	}
	return doc != nil, nil
}

// providerFailure logs the full provider diagnostic and returns the caller-safe message.
func (s *AuthSessionService) providerFailure(ctx context.Context, operation string, err error) domain.AuthResult {
	code := domain.ProviderCodeOf(err)
	s.metrics.ObserveAuth(operation, string(code))

	log := logger.Enrich(ctx, s.logger)
	fields := []zap.Field{
		zap.String("operation", operation),
		zap.String("code", string(code)),
		zap.Error(err),
		zap.NamedError("cause", errors.Unwrap(err)),
	}
	switch code {
	case domain.ProviderUnavailable, domain.ProviderUnknown:
		log.Error("identity provider failure", fields...)
	default:
		log.Info("identity provider rejected request", fields...)
	}
	return domain.Failed(domain.FailureKindOf(code), ProviderMessage(code))
}
