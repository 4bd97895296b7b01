package port

import (
	"context"

	"github.com/arklim/skills-audit/internal/core/domain"
)

// EventPublisher publishes domain events to the message bus.
type EventPublisher interface {
	PublishUserRegistered(ctx context.Context, event domain.UserRegisteredEvent) error
	PublishPasswordChanged(ctx context.Context, event domain.PasswordChangedEvent) error
	PublishPasswordResetRequested(ctx context.Context, event domain.PasswordResetRequestedEvent) error
	PublishEmailChanged(ctx context.Context, event domain.EmailChangedEvent) error
	PublishRoleChanged(ctx context.Context, event domain.RoleChangedEvent) error
	PublishAccountStatusChanged(ctx context.Context, event domain.AccountStatusChangedEvent) error
	PublishSkillsImported(ctx context.Context, event domain.SkillsImportedEvent) error
	PublishTrainingReminder(ctx context.Context, event domain.TrainingReminderEvent) error
}
