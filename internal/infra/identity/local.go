package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/skills-audit/internal/core/document"
	"github.com/arklim/skills-audit/internal/core/domain"
	"github.com/arklim/skills-audit/internal/core/port"
	"github.com/arklim/skills-audit/internal/ids"
	"github.com/arklim/skills-audit/internal/infra/logger"
	"github.com/arklim/skills-audit/internal/infra/security"
	"github.com/arklim/skills-audit/internal/repository"
)

// Account document fields.
const (
	fieldEmail          = "email"
	fieldPasswordHash   = "passwordHash"
	fieldDisabled       = "disabled"
	fieldCreatedAt      = "createdAt"
	fieldUpdatedAt      = "updatedAt"
	fieldResetCodeHash  = "resetCodeHash"
	fieldResetExpiresAt = "resetExpiresAt"
)

const (
	// minProviderPasswordLength matches the hosted provider's own floor.
	minProviderPasswordLength = 6
	resetCodeBytes            = 24
	defaultResetTTL           = time.Hour
	defaultFailedAttempts     = 5
	defaultFailedWindow       = 15 * time.Minute
)

// LocalOptions tunes the local provider.
type LocalOptions struct {
	MaxFailedAttempts int
	FailedWindow      time.Duration
	ResetTTL          time.Duration
	Degradation       domain.DegradationPolicy
}

// LocalProvider keeps identity accounts in the document store. It backs
// development and test deployments that have no hosted provider.
type LocalProvider struct {
	store    port.DocumentStore
	hasher   *security.PasswordHasher
	tokens   *security.TokenManager
	attempts port.RateLimitStore
	logger   *zap.Logger
	opts     LocalOptions
	now      func() time.Time
}

// NewLocalProvider wires a local provider. attempts may be nil, which disables
// failed-login throttling.
func NewLocalProvider(
	store port.DocumentStore,
	hasher *security.PasswordHasher,
	tokens *security.TokenManager,
	attempts port.RateLimitStore,
	opts LocalOptions,
	log *zap.Logger,
) *LocalProvider {
	if opts.MaxFailedAttempts <= 0 {
		opts.MaxFailedAttempts = defaultFailedAttempts
	}
	if opts.FailedWindow <= 0 {
		opts.FailedWindow = defaultFailedWindow
	}
	if opts.ResetTTL <= 0 {
		opts.ResetTTL = defaultResetTTL
	}
	return &LocalProvider{
		store:    store,
		hasher:   hasher,
		tokens:   tokens,
		attempts: attempts,
		logger:   logger.OrNop(log),
		opts:     opts,
		now:      time.Now,
	}
}

// WithClock overrides the provider clock.
func (p *LocalProvider) WithClock(now func() time.Time) *LocalProvider {
	if now != nil {
		p.now = now
	}
	return p
}

func (p *LocalProvider) VerifyPassword(ctx context.Context, email, password string) (domain.ProviderAccount, error) {
	email = security.NormalizeEmail(email)
	if !security.IsValidEmail(email) {
		return domain.ProviderAccount{}, domain.NewProviderError(domain.ProviderInvalidEmail, nil)
	}

	throttleKey := "identity:failed:" + email
	if err := p.checkThrottle(ctx, throttleKey); err != nil {
		return domain.ProviderAccount{}, err
	}

	doc, err := p.findByEmail(ctx, email)
	if err != nil {
		return domain.ProviderAccount{}, err
	}
	if doc == nil {
		p.recordFailure(ctx, throttleKey)
		return domain.ProviderAccount{}, domain.NewProviderError(domain.ProviderInvalidLogin, errors.New("unknown email"))
	}
	if doc.Bool(fieldDisabled) {
		return domain.ProviderAccount{}, domain.NewProviderError(domain.ProviderUserDisabled, nil)
	}

	encoded := doc.String(fieldPasswordHash)
	ok, err := p.hasher.Verify(password, encoded)
	if err != nil {
		return domain.ProviderAccount{}, domain.NewProviderError(domain.ProviderUnknown, fmt.Errorf("verify password: %w", err))
	}
	if !ok {
		p.recordFailure(ctx, throttleKey)
		return domain.ProviderAccount{}, domain.NewProviderError(domain.ProviderInvalidLogin, errors.New("password mismatch"))
	}

	if p.attempts != nil {
		if err := p.attempts.Reset(ctx, throttleKey); err != nil {
			p.logger.Warn("reset failed login counter", zap.String("email", logger.MaskEmail(email)), zap.Error(err))
		}
	}
	if p.hasher.NeedsRehash(encoded) {
		p.rehash(ctx, doc.ID, password)
	}

	return p.issue(doc.ID, email)
}

func (p *LocalProvider) CreateAccount(ctx context.Context, email, password string) (domain.ProviderAccount, error) {
	email = security.NormalizeEmail(email)
	if !security.IsValidEmail(email) {
		return domain.ProviderAccount{}, domain.NewProviderError(domain.ProviderInvalidEmail, nil)
	}
	if len(password) < minProviderPasswordLength {
		return domain.ProviderAccount{}, domain.NewProviderError(domain.ProviderWeakPassword, nil)
	}

	existing, err := p.findByEmail(ctx, email)
	if err != nil {
		return domain.ProviderAccount{}, err
	}
	if existing != nil {
		return domain.ProviderAccount{}, domain.NewProviderError(domain.ProviderEmailExists, nil)
	}

	hash, err := p.hasher.Hash(password)
	if err != nil {
		return domain.ProviderAccount{}, domain.NewProviderError(domain.ProviderUnknown, fmt.Errorf("hash password: %w", err))
	}

	id := ids.New()
	now := p.now().UTC()
	err = p.store.Set(ctx, domain.CollectionIdentityAccounts, id, map[string]any{
		fieldEmail:        email,
		fieldPasswordHash: hash,
		fieldDisabled:     false,
		fieldCreatedAt:    now,
		fieldUpdatedAt:    now,
	})
	if err != nil {
		return domain.ProviderAccount{}, p.storeError("create account", err)
	}

	return p.issue(id, email)
}

func (p *LocalProvider) SendPasswordReset(ctx context.Context, email string) error {
	email = security.NormalizeEmail(email)
	if !security.IsValidEmail(email) {
		return domain.NewProviderError(domain.ProviderInvalidEmail, nil)
	}
	doc, err := p.findByEmail(ctx, email)
	if err != nil {
		return err
	}
	if doc == nil {
		return domain.NewProviderError(domain.ProviderEmailNotFound, nil)
	}

	code, err := security.GenerateSecureToken(resetCodeBytes)
	if err != nil {
		return domain.NewProviderError(domain.ProviderUnknown, fmt.Errorf("generate reset code: %w", err))
	}
	now := p.now().UTC()
	err = p.store.Update(ctx, domain.CollectionIdentityAccounts, doc.ID, map[string]any{
		fieldResetCodeHash:  security.HashToken(code),
		fieldResetExpiresAt: now.Add(p.opts.ResetTTL),
		fieldUpdatedAt:      now,
	})
	if err != nil {
		return p.storeError("store reset code", err)
	}

	// The in-app inbox stands in for the email a hosted provider would send.
	note := domain.Notification{
		ID:        ids.New(),
		UserID:    doc.ID,
		Kind:      domain.NotificationPasswordReset,
		Title:     "Password reset requested",
		Body:      fmt.Sprintf("Use this code to reset your password: %s. It expires in %s.", code, p.opts.ResetTTL),
		CreatedAt: now,
	}
	if err := p.store.Set(ctx, domain.CollectionNotifications, note.ID, note.ToDocument()); err != nil {
		return p.storeError("deliver reset code", err)
	}

	p.logger.Info("password reset code issued", zap.String("email", logger.MaskEmail(email)))
	return nil
}

func (p *LocalProvider) ConfirmPasswordReset(ctx context.Context, code, newPassword string) error {
	if code == "" {
		return domain.NewProviderError(domain.ProviderInvalidOOBCode, nil)
	}
	if len(newPassword) < minProviderPasswordLength {
		return domain.NewProviderError(domain.ProviderWeakPassword, nil)
	}

	doc, err := document.First(ctx, p.store, document.Query{
		Collection: domain.CollectionIdentityAccounts,
		Filters:    []document.Filter{document.Eq(fieldResetCodeHash, security.HashToken(code))},
	})
	if err != nil {
		return p.storeError("find reset code", err)
	}
	if doc == nil {
		return domain.NewProviderError(domain.ProviderInvalidOOBCode, nil)
	}
	if expires := doc.OptionalTime(fieldResetExpiresAt); expires == nil || !p.now().Before(*expires) {
		return domain.NewProviderError(domain.ProviderExpiredOOBCode, nil)
	}

	hash, err := p.hasher.Hash(newPassword)
	if err != nil {
		return domain.NewProviderError(domain.ProviderUnknown, fmt.Errorf("hash password: %w", err))
	}
	err = p.store.Update(ctx, domain.CollectionIdentityAccounts, doc.ID, map[string]any{
		fieldPasswordHash:   hash,
		fieldResetCodeHash:  nil,
		fieldResetExpiresAt: nil,
		fieldUpdatedAt:      p.now().UTC(),
	})
	if err != nil {
		return p.storeError("reset password", err)
	}
	return nil
}

func (p *LocalProvider) VerifyToken(ctx context.Context, token string) (string, error) {
	claims, err := p.tokens.Verify(token)
	if err != nil {
		return "", domain.NewProviderError(domain.ProviderInvalidToken, err)
	}
	doc, err := p.store.Get(ctx, domain.CollectionIdentityAccounts, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", domain.NewProviderError(domain.ProviderUserNotFound, nil)
		}
		return "", p.storeError("load account", err)
	}
	if doc.Bool(fieldDisabled) {
		return "", domain.NewProviderError(domain.ProviderUserDisabled, nil)
	}
	return doc.ID, nil
}

func (p *LocalProvider) UpdatePassword(ctx context.Context, accountID, newPassword string) error {
	if len(newPassword) < minProviderPasswordLength {
		return domain.NewProviderError(domain.ProviderWeakPassword, nil)
	}
	hash, err := p.hasher.Hash(newPassword)
	if err != nil {
		return domain.NewProviderError(domain.ProviderUnknown, fmt.Errorf("hash password: %w", err))
	}
	err = p.store.Update(ctx, domain.CollectionIdentityAccounts, accountID, map[string]any{
		fieldPasswordHash: hash,
		fieldUpdatedAt:    p.now().UTC(),
	})
	if err != nil {
		return p.storeError("update password", err)
	}
	return nil
}

func (p *LocalProvider) UpdateEmail(ctx context.Context, accountID, newEmail string) error {
	newEmail = security.NormalizeEmail(newEmail)
	if !security.IsValidEmail(newEmail) {
		return domain.NewProviderError(domain.ProviderInvalidEmail, nil)
	}
	existing, err := p.findByEmail(ctx, newEmail)
	if err != nil {
		return err
	}
	if existing != nil && existing.ID != accountID {
		return domain.NewProviderError(domain.ProviderEmailExists, nil)
	}
	err = p.store.Update(ctx, domain.CollectionIdentityAccounts, accountID, map[string]any{
		fieldEmail:     newEmail,
		fieldUpdatedAt: p.now().UTC(),
	})
	if err != nil {
		return p.storeError("update email", err)
	}
	return nil
}

func (p *LocalProvider) DeleteAccount(ctx context.Context, accountID string) error {
	if err := p.store.Delete(ctx, domain.CollectionIdentityAccounts, accountID); err != nil {
		return p.storeError("delete account", err)
	}
	return nil
}

func (p *LocalProvider) findByEmail(ctx context.Context, email string) (*document.Document, error) {
	doc, err := document.First(ctx, p.store, document.Query{
		Collection: domain.CollectionIdentityAccounts,
		Filters:    []document.Filter{document.Eq(fieldEmail, email)},
	})
	if err != nil {
		return nil, p.storeError("find account", err)
	}
	return doc, nil
}

func (p *LocalProvider) issue(accountID, email string) (domain.ProviderAccount, error) {
	token, err := p.tokens.Issue(accountID, email)
	if err != nil {
		return domain.ProviderAccount{}, domain.NewProviderError(domain.ProviderUnknown, fmt.Errorf("issue token: %w", err))
	}
	return domain.ProviderAccount{AccountID: accountID, Token: token, Email: email}, nil
}

func (p *LocalProvider) checkThrottle(ctx context.Context, key string) error {
	if p.attempts == nil {
		return nil
	}
	count, err := p.attempts.Count(ctx, key, p.opts.FailedWindow, p.now())
	if err != nil {
		p.logger.Warn("read failed login counter", zap.Error(err))
		if p.opts.Degradation.AllowsFallback(domain.DegradationReasonLoginThrottle) {
			return nil
		}
		return domain.NewProviderError(domain.ProviderUnavailable, fmt.Errorf("failed login counter: %w", err))
	}
	if count >= p.opts.MaxFailedAttempts {
		return domain.NewProviderError(domain.ProviderTooManyAttempts, nil)
	}
	return nil
}

func (p *LocalProvider) recordFailure(ctx context.Context, key string) {
	if p.attempts == nil {
		return
	}
	if _, err := p.attempts.Hit(ctx, key, p.opts.FailedWindow, p.now()); err != nil {
		p.logger.Warn("record failed login", zap.Error(err))
	}
}

func (p *LocalProvider) rehash(ctx context.Context, accountID, password string) {
	hash, err := p.hasher.Hash(password)
	if err != nil {
		p.logger.Warn("rehash password", zap.String("account_id", accountID), zap.Error(err))
		return
	}
	err = p.store.Update(ctx, domain.CollectionIdentityAccounts, accountID, map[string]any{
		fieldPasswordHash: hash,
		fieldUpdatedAt:    p.now().UTC(),
	})
	if err != nil {
		p.logger.Warn("store rehashed password", zap.String("account_id", accountID), zap.Error(err))
	}
}

// storeError classifies document store failures in provider terms.
func (p *LocalProvider) storeError(op string, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return domain.NewProviderError(domain.ProviderUserNotFound, fmt.Errorf("%s: %w", op, err))
	case errors.Is(err, repository.ErrConflict):
		return domain.NewProviderError(domain.ProviderEmailExists, fmt.Errorf("%s: %w", op, err))
	}
	p.logger.Error("identity store failure", zap.String("operation", op), zap.Error(err))
	return domain.NewProviderError(domain.ProviderUnavailable, fmt.Errorf("%s: %w", op, err))
}

var _ port.IdentityProvider = (*LocalProvider)(nil)
