package port

import (
	"context"

	"github.com/arklim/skills-audit/internal/core/domain"
)

// IdentityProvider is the external account directory. Failures are reported as *domain.ProviderError.
type IdentityProvider interface {
	VerifyPassword(ctx context.Context, email, password string) (domain.ProviderAccount, error)
	CreateAccount(ctx context.Context, email, password string) (domain.ProviderAccount, error)
	SendPasswordReset(ctx context.Context, email string) error
	// ConfirmPasswordReset sets a new password using the code delivered by SendPasswordReset.
	ConfirmPasswordReset(ctx context.Context, code, newPassword string) error
	// VerifyToken returns the account id the bearer token was issued to.
	VerifyToken(ctx context.Context, token string) (string, error)
	UpdatePassword(ctx context.Context, accountID, newPassword string) error
	UpdateEmail(ctx context.Context, accountID, newEmail string) error
	DeleteAccount(ctx context.Context, accountID string) error
}
